package features

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

// Tensor is a row-major (mel, frame, channel) array.
type Tensor struct {
	Mels     int       `msgpack:"mels"`
	Frames   int       `msgpack:"frames"`
	Channels int       `msgpack:"channels"`
	Data     []float32 `msgpack:"data"`
}

// At returns the value at (mel, frame) of the first channel.
func (t Tensor) At(mel, frame int) float32 {
	return t.Data[(mel*t.Frames+frame)*t.Channels]
}

// Shape returns the three axis lengths.
func (t Tensor) Shape() [3]int {
	return [3]int{t.Mels, t.Frames, t.Channels}
}

// Stats summarizes a tensor.
type Stats struct {
	Mean   float64
	Std    float64
	Min    float64
	Max    float64
	Finite bool
}

// Stats computes the population mean and standard deviation over every
// element, in float64.
func (t Tensor) Stats() Stats {
	if len(t.Data) == 0 {
		return Stats{Finite: true}
	}
	s := Stats{Min: math.Inf(1), Max: math.Inf(-1), Finite: true}
	var sum float64
	for _, v := range t.Data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			s.Finite = false
		}
		sum += f
		s.Min = math.Min(s.Min, f)
		s.Max = math.Max(s.Max, f)
	}
	s.Mean = sum / float64(len(t.Data))
	var sq float64
	for _, v := range t.Data {
		d := float64(v) - s.Mean
		sq += d * d
	}
	s.Std = math.Sqrt(sq / float64(len(t.Data)))
	return s
}

// Bytes returns the little-endian float32 encoding of the data.
func (t Tensor) Bytes() []byte {
	out := make([]byte, 4*len(t.Data))
	for i, v := range t.Data {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}

// Digest returns the hex SHA-256 of Bytes. Two tensors with the same digest
// are bit-identical.
func (t Tensor) Digest() string {
	sum := sha256.Sum256(t.Bytes())
	return hex.EncodeToString(sum[:])
}
