package store

import (
	"strings"

	"github.com/go-json-experiment/json"
)

// placeholderList returns "?,?,?" for n placeholders.
func placeholderList(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// int64sToArgs converts []int64 to []any for use with database/sql.
func int64sToArgs(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// marshalMetadata converts decision metadata to JSON text for storage.
// Keys are emitted in sorted order so equal metadata stores equal text.
func marshalMetadata(md map[string]any) (string, error) {
	if len(md) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(md, json.Deterministic(true))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// unmarshalMetadata converts JSON text back to a metadata map.
func unmarshalMetadata(s string) (map[string]any, error) {
	if s == "" || s == "{}" || s == "null" {
		return nil, nil
	}
	var md map[string]any
	if err := json.Unmarshal([]byte(s), &md); err != nil {
		return nil, err
	}
	return md, nil
}
