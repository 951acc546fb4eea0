package cache

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Payload is a cached value: a mapping of string to scalars, lists and nested mappings.
type Payload map[string]interface{}

// Encode serializes a payload with msgpack.
func Encode(p Payload) ([]byte, error) {
	data, err := msgpack.Marshal(map[string]interface{}(p))
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return data, nil
}

// Decode deserializes a msgpack payload.
// Integers decode as int64 and floats as float64 regardless of their wire width.
func Decode(data []byte) (Payload, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)

	var m map[string]interface{}
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("failed to decode payload: not a map")
	}
	return Payload(m), nil
}
