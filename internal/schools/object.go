package schools

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Object is a decoded JSON object that remembers the order of its members.
// Only a payload root is decoded this way; nested objects stay plain maps.
type Object struct {
	Keys   []string
	Values map[string]any
}

// DecodeDocument decodes a payload like DecodeJSON, but an object root is
// returned as *Object so dict-of-records payloads keep document order.
// A duplicated member keeps its first position and its last value.
func DecodeDocument(data []byte) (any, error) {
	v, err := DecodeJSON(data)
	if err != nil {
		return nil, err
	}

	m, ok := v.(map[string]any)
	if !ok {
		return v, nil
	}

	keys, err := memberOrder(data)
	if err != nil {
		return nil, err
	}

	return &Object{Keys: keys, Values: m}, nil
}

func memberOrder(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	var keys []string

	seen := make(map[string]bool)

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}

		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}

		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}

	return keys, nil
}

// MarshalJSON writes the members in their original order without HTML escaping.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	buf.WriteByte('{')

	for i, k := range o.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}

		if err := enc.Encode(k); err != nil {
			return nil, err
		}

		buf.Truncate(buf.Len() - 1)
		buf.WriteByte(':')

		if err := enc.Encode(o.Values[k]); err != nil {
			return nil, err
		}

		buf.Truncate(buf.Len() - 1)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}
