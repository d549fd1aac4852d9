// Package transform rewrites the key casing of decoded upstream JSON.
//
// The upstream API speaks snake_case (and prefixes collection envelopes
// with an underscore, e.g. "_items"); downstream consumers of the fetch
// helper expect camelCase. Values are never touched, only object keys.
package transform

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// KeyFunc maps a single object key to its replacement.
type KeyFunc func(string) string

// CamelizeKeys returns a copy of v with every object key camelized.
// Arrays are walked element by element; scalars are returned as is.
func CamelizeKeys(v any) any {
	return TransformKeys(v, Camelize)
}

// TransformKeys returns a copy of v with fn applied to every object key at
// every depth. v is expected to be the output of encoding/json decoding
// into an empty interface.
func TransformKeys(v any, fn KeyFunc) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[fn(k)] = TransformKeys(child, fn)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = TransformKeys(child, fn)
		}
		return out
	default:
		return v
	}
}

// Camelize converts a single key: every run of '-', '_' or whitespace is
// removed and the character following it is upper-cased, then the first
// character is lower-cased. Numeric keys are returned unchanged.
//
//	"_items"         -> "items"
//	"profile_image"  -> "profileImage"
//	"active-at"      -> "activeAt"
//	"42"             -> "42"
func Camelize(key string) string {
	if isNumeric(key) {
		return key
	}

	var b strings.Builder
	b.Grow(len(key))

	upperNext := false
	for _, r := range key {
		if isSeparator(r) {
			upperNext = true
			continue
		}
		if upperNext {
			r = unicode.ToUpper(r)
			upperNext = false
		}
		b.WriteRune(r)
	}

	out := b.String()
	first, size := utf8.DecodeRuneInString(out)
	if size == 0 {
		return out
	}
	return string(unicode.ToLower(first)) + out[size:]
}

func isSeparator(r rune) bool {
	return r == '-' || r == '_' || unicode.IsSpace(r)
}

// isNumeric reports whether key reads as a number once surrounding
// whitespace is dropped. An empty key counts as numeric.
func isNumeric(key string) bool {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return true
	}
	if _, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return true
	}
	_, err := strconv.ParseInt(trimmed, 0, 64)
	return err == nil
}
