package query

import (
	"encoding/json"

	"github.com/mr-tron/base58"
)

// Cursor is the opaque pagination resumption token. It encodes the address
// of the last returned row and its sort-key value at encode time.
type Cursor struct {
	LastKey   string   `json:"lastKey"`
	LastValue *float64 `json:"lastValue"`
}

// EncodeCursor serializes a cursor into its opaque wire form.
func EncodeCursor(c Cursor) string {
	payload, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base58.Encode(payload)
}

// DecodeCursor parses an opaque cursor. Empty, malformed, or otherwise
// undecodable input yields nil, which callers treat as "start from the
// beginning" rather than an error.
func DecodeCursor(raw string) *Cursor {
	if raw == "" {
		return nil
	}
	payload, err := base58.Decode(raw)
	if err != nil {
		return nil
	}
	var c Cursor
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil
	}
	if c.LastKey == "" {
		return nil
	}
	return &c
}
