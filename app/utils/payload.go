package utils

import (
	"bytes"
	"encoding/json"
	"fmt"

	"blackfong-core/app/domains"
)

// CanonicalPayload turns an optional JSON value from a request into the text
// stored for it. A JSON string is stored as its unquoted contents; any other
// value is re-encoded compactly with object keys sorted. Empty or null input
// yields nil so the stored value is left unchanged.
func CanonicalPayload(raw json.RawMessage) (*string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: payload is not valid JSON: %v", domains.ErrInvalidArgument, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: payload has trailing data", domains.ErrInvalidArgument)
	}

	if s, ok := v.(string); ok {
		return &s, nil
	}

	// encoding/json writes map keys in sorted order
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	s := string(out)
	return &s, nil
}

// ClampLimit bounds a list limit to 1..max, using def when n is not positive
func ClampLimit(n, def, max int) int {
	if n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
