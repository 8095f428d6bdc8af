package config

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Setting is one runtime-setting key and its scalar value.
type Setting struct {
	Key   string
	Value any
}

// INI is an ordered set of runtime settings. Order follows the project file.
type INI []Setting

// Get returns the value stored for key.
func (i INI) Get(key string) (any, bool) {
	for _, s := range i {
		if s.Key == key {
			return s.Value, true
		}
	}
	return nil, false
}

// With returns a copy of i with key set to value. An existing key keeps its
// position.
func (i INI) With(key string, value any) INI {
	out := make(INI, len(i), len(i)+1)
	copy(out, i)
	for idx := range out {
		if out[idx].Key == key {
			out[idx].Value = value
			return out
		}
	}
	return append(out, Setting{Key: key, Value: value})
}

// Merge layers override on top of base: colliding keys take the override's
// value in base's position, new keys are appended in override order.
func Merge(base, override INI) INI {
	out := make(INI, len(base), len(base)+len(override))
	copy(out, base)
	for _, s := range override {
		out = out.With(s.Key, s.Value)
	}
	return out
}

// UnmarshalJSON decodes a JSON object preserving key order.
func (i *INI) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*i = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("ini must be an object, got %v", tok)
	}

	var out INI
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("ini key must be a string, got %v", keyTok)
		}

		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("ini %q: %w", key, err)
		}
		if !isScalar(value) {
			return fmt.Errorf("ini %q: value must be a string, number or boolean", key)
		}
		out = out.With(key, value)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*i = out
	return nil
}

// MarshalJSON encodes i as a JSON object in order.
func (i INI) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for idx, s := range i {
		if idx > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(s.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(s.Value)
		if err != nil {
			return nil, fmt.Errorf("ini %q: %w", s.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, bool, json.Number, int, int64, float64:
		return true
	default:
		return false
	}
}
