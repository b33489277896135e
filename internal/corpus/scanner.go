package corpus

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"faultsense/internal/failures"
	"faultsense/internal/logging"
)

// ErrScannerConsumed is yielded when a Scanner is iterated a second time.
var ErrScannerConsumed = errors.New("corpus scanner already consumed")

// Entry is one labeled audio file.
type Entry struct {
	Path  string
	Label Label
	Group string
	Root  string
}

type root struct {
	path  string
	token string
}

// Scanner lazily walks one or more corpus roots.
type Scanner struct {
	roots    []root
	logger   *slog.Logger
	consumed bool
}

// NewScanner prepares a scan over roots. With more than one root, group ids
// are prefixed with a token derived from the absolute root path so equal
// machine ids under different roots stay distinct.
func NewScanner(roots []string, logger *slog.Logger) (*Scanner, error) {
	if len(roots) == 0 {
		return nil, failures.Wrap(failures.ErrConfiguration, "corpus", "scan", "no dataset roots", nil)
	}
	s := &Scanner{logger: logging.NewComponentLogger(logger, "corpus")}
	seen := make(map[string]struct{}, len(roots))
	for _, r := range roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, failures.Wrap(failures.ErrConfiguration, "corpus", "scan", fmt.Sprintf("resolve root %q", r), err)
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		s.roots = append(s.roots, root{path: abs, token: RootToken(abs)})
	}
	if len(s.roots) == 1 {
		s.roots[0].token = ""
	}
	return s, nil
}

// RootToken returns the stable group prefix for an absolute root path.
func RootToken(absRoot string) string {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(absRoot)))
	return strings.ReplaceAll(id.String(), "-", "")[:8]
}

// Entries returns the scan as a sequence. Walk errors for a single path are
// yielded with failures.ErrSkip and the walk continues. The sequence can be
// ranged over once; later iterations yield ErrScannerConsumed.
func (s *Scanner) Entries() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		if s.consumed {
			yield(Entry{}, ErrScannerConsumed)
			return
		}
		s.consumed = true

		for _, r := range s.roots {
			if !s.walk(r, yield) {
				return
			}
		}
	}
}

func (s *Scanner) walk(r root, yield func(Entry, error) bool) bool {
	ambiguous := map[string]struct{}{}
	stopped := false
	err := filepath.WalkDir(r.path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == r.path {
				return err
			}
			if !yield(Entry{Path: path, Root: r.path}, failures.Wrap(failures.ErrSkip, "corpus", "walk", path, err)) {
				stopped = true
				return fs.SkipAll
			}
			return nil
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".wav") {
			return nil
		}

		folder := filepath.Base(filepath.Dir(path))
		label, ok := Classify(folder).Label()
		if !ok {
			dir := filepath.Dir(path)
			if _, logged := ambiguous[dir]; !logged {
				ambiguous[dir] = struct{}{}
				s.logger.Debug("skipping ambiguous label folder",
					logging.String("folder", folder),
					logging.String(logging.FieldPath, dir),
					logging.String(logging.FieldEventType, "ambiguous_label"))
			}
			return nil
		}

		group := GroupOf(path)
		if rel, relErr := filepath.Rel(r.path, path); relErr == nil && len(strings.Split(rel, string(filepath.Separator))) < 3 {
			// Files too close to the root have no machine folder of their own.
			group = ""
		}
		if group == "" {
			if !yield(Entry{Path: path, Root: r.path}, failures.Wrap(failures.ErrSkip, "corpus", "group", "no machine folder above "+path, nil)) {
				stopped = true
				return fs.SkipAll
			}
			return nil
		}
		if r.token != "" {
			group = r.token + "_" + group
		}

		if !yield(Entry{Path: path, Label: label, Group: group, Root: r.path}, nil) {
			stopped = true
			return fs.SkipAll
		}
		return nil
	})
	if err != nil && !stopped {
		return yield(Entry{Root: r.path}, failures.Wrap(failures.ErrConfiguration, "corpus", "walk", "open root "+r.path, err))
	}
	return !stopped
}
