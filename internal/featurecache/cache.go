// Package featurecache persists extracted feature tensors in SQLite so
// repeated training runs over the same corpus skip decoding and the FFT.
//
// Entries are keyed by the source file's path, size and modification time,
// plus the pipeline fingerprint. Changing any pipeline constant therefore
// misses the cache instead of returning incompatible tensors.
package featurecache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"faultsense/internal/features"
	"faultsense/internal/logging"
	"faultsense/internal/sqlstore"
)

const schemaVersion = 1

const schemaSQL = `
CREATE TABLE features (
	cache_key   TEXT PRIMARY KEY,
	source_path TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	tensor      BLOB NOT NULL,
	created_at  TEXT NOT NULL
);
CREATE INDEX idx_features_fingerprint ON features(fingerprint);
`

// Cache stores msgpack-encoded tensors.
type Cache struct {
	db          *sqlstore.DB
	fingerprint string
	logger      *slog.Logger
}

// Open connects to the cache database for one pipeline fingerprint.
func Open(ctx context.Context, path, fingerprint string, logger *slog.Logger) (*Cache, error) {
	db, err := sqlstore.Open(ctx, path, sqlstore.Schema{Name: "feature cache", SQL: schemaSQL, Version: schemaVersion})
	if err != nil {
		return nil, err
	}
	return &Cache{db: db, fingerprint: fingerprint, logger: logging.NewComponentLogger(logger, "featurecache")}, nil
}

// Close releases the database.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.db.Close()
}

// Key derives the cache key for a source file.
func (c *Cache) Key(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	for _, part := range []string{
		path,
		strconv.FormatInt(info.Size(), 10),
		strconv.FormatInt(info.ModTime().UnixNano(), 10),
		c.fingerprint,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Get returns the cached tensor for path. A missing or stale entry reports
// false without error. Undecodable entries are logged and treated as misses.
func (c *Cache) Get(ctx context.Context, path string) (features.Tensor, bool, error) {
	key, err := c.Key(path)
	if err != nil {
		return features.Tensor{}, false, nil
	}
	var blob []byte
	err = c.db.QueryRow(ctx, "SELECT tensor FROM features WHERE cache_key = ?", []any{key}, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return features.Tensor{}, false, nil
	}
	if err != nil {
		return features.Tensor{}, false, fmt.Errorf("read feature cache: %w", err)
	}
	var tensor features.Tensor
	if err := msgpack.Unmarshal(blob, &tensor); err != nil {
		logging.WarnWithContext(c.logger, "discarding undecodable cache entry", "feature_cache_corrupt",
			logging.String(logging.FieldPath, path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete the feature cache database if this repeats"),
			logging.String(logging.FieldImpact, "features are recomputed"))
		return features.Tensor{}, false, nil
	}
	return tensor, true, nil
}

// Put stores the tensor extracted from path.
func (c *Cache) Put(ctx context.Context, path string, tensor features.Tensor) error {
	key, err := c.Key(path)
	if err != nil {
		return fmt.Errorf("feature cache key: %w", err)
	}
	blob, err := msgpack.Marshal(&tensor)
	if err != nil {
		return fmt.Errorf("encode tensor: %w", err)
	}
	_, err = c.db.Exec(ctx,
		`INSERT INTO features (cache_key, source_path, fingerprint, tensor, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET tensor = excluded.tensor, created_at = excluded.created_at`,
		key, path, c.fingerprint, blob, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("write feature cache: %w", err)
	}
	return nil
}

// Prune deletes entries written under other pipeline fingerprints and
// returns how many were removed.
func (c *Cache) Prune(ctx context.Context) (int64, error) {
	res, err := c.db.Exec(ctx, "DELETE FROM features WHERE fingerprint <> ?", c.fingerprint)
	if err != nil {
		return 0, fmt.Errorf("prune feature cache: %w", err)
	}
	return res.RowsAffected()
}
