// Package test provides helpers for testing workflows without an engine.
package test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/relaypro/relay-go/correlate"
	"github.com/relaypro/relay-go/protocol"
	"github.com/relaypro/relay-go/relay"
	"github.com/relaypro/relay-go/session"
	"github.com/relaypro/relay-go/transport/memory"
	"github.com/relaypro/relay-go/workflow"
)

// Harness runs one session of a workflow against an in-memory transport.
type Harness struct {
	Transport  *memory.Transport
	Session    *session.Session
	Correlator *correlate.Correlator
	Relay      *relay.Relay
	Workflow   *workflow.Workflow
}

// NewHarness builds a new session of b.
func NewHarness(b workflow.Builder, opts ...relay.Option) *Harness {
	tr := memory.New("test")
	s := session.New(tr.ID(), b.Name(), tr)
	c := correlate.New()
	return &Harness{
		Transport:  tr,
		Session:    s,
		Correlator: c,
		Relay:      relay.New(s, c, opts...),
		Workflow:   b.NewWorkflow(),
	}
}

// Deliver routes the raw inbound message like the engine would and
// returns the handler error, if any. Replies to outstanding requests are
// resolved instead of routed.
func (h *Harness) Deliver(ctx context.Context, raw string) error {
	msg, err := protocol.Decode([]byte(raw))
	if err != nil {
		return err
	}
	if h.Correlator.Resolve(h.Session, msg) {
		return nil
	}
	h.Correlator.Observe(h.Session, msg)
	fn, ok := h.Workflow.Handler(msg.Event())
	if !ok {
		return nil
	}
	return fn(ctx, h.Relay, msg)
}

// DeliverAsync runs Deliver in a new goroutine for handlers that block
// on replies.
func (h *Harness) DeliverAsync(ctx context.Context, raw string) <-chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- h.Deliver(ctx, raw) }()
	return errCh
}

// Request is a decoded outbound request.
type Request map[string]interface{}

// Type returns the short request type, e.g. "say".
func (r Request) Type() string {
	t, _ := r["_type"].(string)
	return strings.TrimSuffix(strings.TrimPrefix(t, "wf_api_"), "_request")
}

// ID returns the correlation id.
func (r Request) ID() string {
	id, _ := r["_id"].(string)
	return id
}

// NextRequest waits for the next request the workflow sends.
func (h *Harness) NextRequest(ctx context.Context) (Request, error) {
	m, err := h.Transport.NextRequest(ctx)
	return Request(m), err
}

// Reply answers req with a response carrying fields.
func (h *Harness) Reply(ctx context.Context, req Request, fields map[string]interface{}) error {
	m := map[string]interface{}{}
	for k, v := range fields {
		m[k] = v
	}
	m["_type"] = protocol.RequestType(req.Type()).ResponseWire()
	m["_id"] = req.ID()
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	msg, err := protocol.Decode(b)
	if err != nil {
		return err
	}
	if !h.Correlator.Resolve(h.Session, msg) {
		return fmt.Errorf("reply to %s %s unclaimed", req.Type(), req.ID())
	}
	return nil
}

// CompletePrompt answers a say or play request with promptID and then
// reports the prompt as stopped, releasing callers that wait on it.
func (h *Harness) CompletePrompt(ctx context.Context, req Request, promptID string) error {
	if err := h.Reply(ctx, req, map[string]interface{}{"id": promptID}); err != nil {
		return err
	}
	b, err := json.Marshal(map[string]interface{}{
		"_type":      protocol.EventPrompt.Wire(),
		"id":         promptID,
		"type":       protocol.PromptStopped,
		"source_uri": req.FirstTarget(),
	})
	if err != nil {
		return err
	}
	return h.Deliver(ctx, string(b))
}

// FirstTarget returns the first target URI of the request.
func (r Request) FirstTarget() string {
	t, _ := r["_target"].(map[string]interface{})
	uris, _ := t["uris"].([]interface{})
	if len(uris) < 1 {
		return ""
	}
	uri, _ := uris[0].(string)
	return uri
}
