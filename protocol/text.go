package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Text is a string field that also decodes from a JSON array of
// character codes, a form the Relay server uses for some string values.
type Text string

// UnmarshalJSON decodes a JSON string, a character code array, or null.
func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) < 1 || bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if b[0] == '[' {
		var codes []rune
		if err := json.Unmarshal(b, &codes); err != nil {
			return fmt.Errorf("decoding character codes: %w", err)
		}
		*t = Text(codes)
		return nil
	}
	if b[0] != '"' {
		// numbers and booleans are kept in their literal form
		*t = Text(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*t = Text(s)
	return nil
}

// String returns t as a plain string.
func (t Text) String() string {
	return string(t)
}

// textFromValue converts a generically decoded JSON value to a string.
func textFromValue(v interface{}) string {
	switch v := v.(type) {
	case string:
		return v
	case []interface{}:
		var sb strings.Builder
		for _, c := range v {
			f, ok := c.(float64)
			if !ok {
				return ""
			}
			sb.WriteRune(rune(f))
		}
		return sb.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
