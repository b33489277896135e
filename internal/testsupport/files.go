package testsupport

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = 0x42
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteWAV encodes interleaved samples in [-1, 1] as a PCM WAV file.
func WriteWAV(t testing.TB, path string, samples []float32, sampleRate, channels, bitDepth int) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	scale := float64(int64(1)<<(bitDepth-1)) - 1
	data := make([]int, len(samples))
	for i, s := range samples {
		v := math.Max(-1, math.Min(1, float64(s)))
		data[i] = int(math.Round(v * scale))
		if bitDepth == 8 {
			data[i] += 128
		}
	}

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("finalize %s: %v", path, err)
	}
}

// CorpusFile describes one file of a synthetic corpus tree.
type CorpusFile struct {
	MachineType string
	MachineID   string
	Folder      string
	Count       int
	// Frequency of the tone written to each file; 0 writes noise.
	Frequency float64
}

// WriteCorpus lays out <root>/<machine_type>/<machine_id>/<folder>/NNN.wav
// files and returns the root. Each file carries a distinct seed so no two
// files are identical.
func WriteCorpus(t testing.TB, root string, sampleRate int, seconds float64, files []CorpusFile) string {
	t.Helper()

	n := int(float64(sampleRate) * seconds)
	seed := int64(1)
	for _, file := range files {
		dir := filepath.Join(root, file.MachineType, file.MachineID, file.Folder)
		for i := 0; i < file.Count; i++ {
			var samples []float32
			if file.Frequency > 0 {
				samples = Mix(Tone(sampleRate, n, file.Frequency, 0.5), Noise(seed, n, 0.05))
			} else {
				samples = Noise(seed, n, 0.3)
			}
			WriteWAV(t, filepath.Join(dir, fmt.Sprintf("%03d.wav", i)), samples, sampleRate, 1, 16)
			seed++
		}
	}
	return root
}
