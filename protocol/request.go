package protocol

import (
	"encoding/json"
	"fmt"
)

// Target is the "_target" of a request.
type Target struct {
	URIs []string `json:"uris"`
}

// Request is an outbound request.
type Request struct {
	Type   RequestType
	ID     string
	Target *Target
	Params map[string]interface{}
}

// NewRequest creates a new request of type t without a target.
func NewRequest(t RequestType, params map[string]interface{}) *Request {
	if params == nil {
		params = make(map[string]interface{})
	}
	return &Request{Type: t, Params: params}
}

// NewTargetedRequest creates a new request of type t addressed to uris.
func NewTargetedRequest(t RequestType, params map[string]interface{}, uris ...string) *Request {
	r := NewRequest(t, params)
	r.Target = &Target{URIs: uris}
	return r
}

// FirstTarget returns the first target URI or the empty string.
func (r *Request) FirstTarget() string {
	if r.Target == nil || len(r.Target.URIs) < 1 {
		return ""
	}
	return r.Target.URIs[0]
}

// MarshalJSON flattens the request params alongside the envelope keys.
func (r *Request) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, len(r.Params)+3)
	for k, v := range r.Params {
		m[k] = v
	}
	m["_type"] = r.Type.Wire()
	if r.ID != "" {
		m["_id"] = r.ID
	}
	if r.Target != nil {
		m["_target"] = r.Target
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", r.Type, err)
	}
	return b, nil
}
