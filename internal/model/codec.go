package model

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// MarshalBinary encodes the model with msgpack.
func (m *Model) MarshalBinary() ([]byte, error) {
	return msgpack.Marshal((*plain)(m))
}

// UnmarshalBinary decodes and validates a msgpack model.
func (m *Model) UnmarshalBinary(data []byte) error {
	if err := msgpack.Unmarshal(data, (*plain)(m)); err != nil {
		return fmt.Errorf("decode model: %w", err)
	}
	return m.Validate()
}

// plain drops the methods so msgpack does not recurse into BinaryMarshaler.
type plain Model
