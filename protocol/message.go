package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// ErrProtocol indicates a malformed inbound message.
var ErrProtocol = errors.New("protocol error")

// Kind classifies an inbound message.
type Kind int

const (
	KindEvent Kind = iota + 1
	KindResponse
)

func (k Kind) String() string {
	switch k {
	case KindEvent:
		return "event"
	case KindResponse:
		return "response"
	default:
		return "unknown"
	}
}

var typeRe = regexp.MustCompile(`^wf_api_(\w+)_(event|response)$`)

// Message is a decoded inbound message.
type Message struct {
	// Type is the full wire type, e.g. "wf_api_button_event".
	Type string
	Kind Kind
	// Name is Type without its prefix and suffix, e.g. "button".
	Name string
	// ID is the correlation id ("_id"), if any.
	ID string

	raw    []byte
	fields map[string]json.RawMessage
}

// Decode parses raw into a Message.
// Any failure wraps ErrProtocol.
func Decode(raw []byte) (*Message, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: not a JSON object", ErrProtocol)
	}
	m := &Message{raw: raw, fields: fields}
	rawType, ok := fields["_type"]
	if !ok {
		return nil, fmt.Errorf("%w: missing _type", ErrProtocol)
	}
	if err := json.Unmarshal(rawType, &m.Type); err != nil {
		return nil, fmt.Errorf("%w: _type: %v", ErrProtocol, err)
	}
	match := typeRe.FindStringSubmatch(m.Type)
	if match == nil {
		return nil, fmt.Errorf("%w: unrecognized _type: %s", ErrProtocol, m.Type)
	}
	m.Name = match[1]
	if match[2] == "event" {
		m.Kind = KindEvent
	} else {
		m.Kind = KindResponse
	}
	m.ID = m.String("_id")
	return m, nil
}

// Event returns the event type of m or the empty string if m is not an event.
func (m *Message) Event() EventType {
	if m.Kind != KindEvent {
		return ""
	}
	return EventType(m.Name)
}

// IsError reports whether m is an error response.
func (m *Message) IsError() bool {
	return m.Kind == KindResponse && m.Name == ResponseError
}

// ErrorText returns the server supplied error of an error response.
func (m *Message) ErrorText() string {
	return m.String("error")
}

// Raw returns the original bytes of the message.
func (m *Message) Raw() []byte {
	return m.raw
}

// Has reports whether the top-level key k is present.
func (m *Message) Has(k string) bool {
	_, ok := m.fields[k]
	return ok
}

// Field returns the raw JSON value of the top-level key k.
func (m *Message) Field(k string) (json.RawMessage, bool) {
	v, ok := m.fields[k]
	return v, ok
}

// String returns the top-level key k as a string. Character code
// arrays and scalars are converted; anything else yields "".
func (m *Message) String(k string) string {
	v, ok := m.fields[k]
	if !ok {
		return ""
	}
	var t Text
	if err := json.Unmarshal(v, &t); err != nil {
		return ""
	}
	return string(t)
}

// Unmarshal decodes the whole message into v.
func (m *Message) Unmarshal(v interface{}) error {
	if err := json.Unmarshal(m.raw, v); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", ErrProtocol, m.Type, err)
	}
	return nil
}
