package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// marshalContent converts content to JSON TEXT for storage.
// Uses json.Encoder with HTML escaping disabled so stored text matches
// the caller's payload byte-for-byte where possible.
func marshalContent(content Content) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(content); err != nil {
		return "", fmt.Errorf("marshal content: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalContent parses stored JSON TEXT back to its structured form.
func unmarshalContent(data string) (Content, error) {
	if data == "" {
		return nil, nil
	}
	var content Content
	if err := json.Unmarshal([]byte(data), &content); err != nil {
		return nil, fmt.Errorf("unmarshal content: %w", err)
	}
	return content, nil
}
