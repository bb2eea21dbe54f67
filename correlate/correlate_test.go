package correlate

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/relaypro/relay-go/protocol"
	"github.com/relaypro/relay-go/session"
	"github.com/relaypro/relay-go/transport/memory"
	"github.com/relaypro/relay-go/utils/uuid"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, opts ...Option) (*Correlator, *session.Registry, *session.Session, *memory.Transport) {
	t.Helper()
	r := session.NewRegistry()
	tr := memory.New("abc")
	s, err := r.Start("abc", "test", tr)
	require.NoError(t, err)
	return New(opts...), r, s, tr
}

func decode(t *testing.T, raw string) *protocol.Message {
	t.Helper()
	m, err := protocol.Decode([]byte(raw))
	require.NoError(t, err)
	return m
}

func deviceInfoRequest() *protocol.Request {
	return protocol.NewTargetedRequest(protocol.RequestGetDeviceInfo, map[string]interface{}{
		"query":   protocol.QueryBattery,
		"refresh": true,
	}, "urn:relay-resource:name:device:Bob")
}

func TestSendNoReply(t *testing.T) {
	c, _, s, tr := setup(t)
	ctx := context.Background()

	req := protocol.NewTargetedRequest(protocol.RequestSay, map[string]interface{}{"text": "hello"}, "abc")
	call, err := c.Send(ctx, s, req, false, 0)
	require.NoError(t, err)
	assert.Nil(t, call)
	assert.Equal(t, 0, s.PendingCount())

	m, err := tr.NextRequest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "wf_api_say_request", m["_type"])
	assert.Equal(t, "hello", m["text"])
}

func TestSendReply(t *testing.T) {
	c, _, s, tr := setup(t, WithIDer(uuid.NewStaticIDs("0011223344556677")))
	ctx := context.Background()

	call, err := c.Send(ctx, s, deviceInfoRequest(), true, time.Second)
	require.NoError(t, err)
	require.NotNil(t, call)
	assert.Equal(t, "0011223344556677", call.ID())
	assert.Equal(t, 1, s.PendingCount())

	m, err := tr.NextRequest(ctx)
	require.NoError(t, err)
	assert.Equal(t, call.ID(), m["_id"])

	reply := decode(t, fmt.Sprintf(`{"_type":"wf_api_get_device_info_response","_id":%q,"battery":87}`, call.ID()))
	assert.True(t, c.Resolve(s, reply))

	have, err := call.Wait(ctx)
	require.NoError(t, err)
	assert.Same(t, reply, have)
	assert.Equal(t, 0, s.PendingCount())

	// never resolves twice
	assert.False(t, c.Resolve(s, reply))
}

func TestUnknownID(t *testing.T) {
	c, _, s, _ := setup(t)
	ctx := context.Background()

	_, err := c.Send(ctx, s, deviceInfoRequest(), true, time.Second)
	require.NoError(t, err)

	assert.False(t, c.Resolve(s, decode(t, `{"_type":"wf_api_get_device_info_response","_id":"stale","battery":1}`)))
	assert.False(t, c.Resolve(s, decode(t, `{"_type":"wf_api_button_event","button":"action"}`)))
	assert.Equal(t, 1, s.PendingCount())
}

func TestTimeout(t *testing.T) {
	c, _, s, _ := setup(t)
	ctx := context.Background()

	call, err := c.Send(ctx, s, deviceInfoRequest(), true, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 1, s.PendingCount())

	_, err = call.Wait(ctx)
	assert.ErrorIs(t, err, ErrCommandTimeout)
	assert.Equal(t, 0, s.PendingCount())

	// a late reply is unclaimed
	late := decode(t, fmt.Sprintf(`{"_type":"wf_api_get_device_info_response","_id":%q}`, call.ID()))
	assert.False(t, c.Resolve(s, late))
}

func TestContextCancel(t *testing.T) {
	c, _, s, _ := setup(t)

	call, err := c.Send(context.Background(), s, deviceInfoRequest(), true, time.Minute)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = call.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s.PendingCount())
}

func TestSessionClosed(t *testing.T) {
	c, r, s, _ := setup(t)
	ctx := context.Background()

	call, err := c.Send(ctx, s, deviceInfoRequest(), true, time.Minute)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := call.Wait(ctx)
		done <- err
	}()

	r.Stop("abc")
	select {
	case err = <-done:
		assert.ErrorIs(t, err, session.ErrSessionClosed)
	case <-time.After(time.Second):
		t.Fatal("waiter not released")
	}

	_, err = c.Send(ctx, s, deviceInfoRequest(), true, time.Minute)
	assert.ErrorIs(t, err, session.ErrSessionClosed)
}

func TestErrorResponse(t *testing.T) {
	c, _, s, _ := setup(t)
	ctx := context.Background()

	call, err := c.Send(ctx, s, deviceInfoRequest(), true, time.Second)
	require.NoError(t, err)

	reply := decode(t, fmt.Sprintf(`{"_type":"wf_api_error_response","_id":%q,"error":"invalid target"}`, call.ID()))
	assert.True(t, c.Resolve(s, reply))

	_, err = call.Wait(ctx)
	assert.ErrorIs(t, err, ErrCommandFailed)
	assert.Contains(t, err.Error(), "invalid target")
}

func TestAwaitPrompt(t *testing.T) {
	c, _, s, _ := setup(t)
	ctx := context.Background()

	req := protocol.NewTargetedRequest(protocol.RequestSay, map[string]interface{}{"text": "hi"}, "abc")
	call, err := c.SendAwaitPrompt(ctx, s, req, time.Second)
	require.NoError(t, err)

	resp := decode(t, fmt.Sprintf(`{"_type":"wf_api_say_response","_id":%q,"id":"prompt-1"}`, call.ID()))
	assert.True(t, c.Resolve(s, resp))
	select {
	case <-call.p.Done():
		t.Fatal("resolved before the prompt stopped")
	default:
	}

	c.Observe(s, decode(t, `{"_type":"wf_api_prompt_event","id":"prompt-1","type":"started"}`))
	assert.Equal(t, 1, s.PendingCount())

	c.Observe(s, decode(t, `{"_type":"wf_api_prompt_event","id":"prompt-1","type":"stopped"}`))
	have, err := call.Wait(ctx)
	require.NoError(t, err)
	assert.Same(t, resp, have)
	assert.Equal(t, 0, s.PendingCount())
}

func TestAwaitPromptFailed(t *testing.T) {
	c, _, s, _ := setup(t)
	ctx := context.Background()

	req := protocol.NewTargetedRequest(protocol.RequestPlay, map[string]interface{}{"filename": "x.mp3"}, "abc")
	call, err := c.SendAwaitPrompt(ctx, s, req, time.Second)
	require.NoError(t, err)

	assert.True(t, c.Resolve(s, decode(t, fmt.Sprintf(`{"_type":"wf_api_play_response","_id":%q,"id":"p2"}`, call.ID()))))
	c.Observe(s, decode(t, `{"_type":"wf_api_prompt_event","id":"p2","type":"failed"}`))

	_, err = call.Wait(ctx)
	assert.ErrorIs(t, err, ErrCommandFailed)
}

func TestProgressExtends(t *testing.T) {
	c, _, s, _ := setup(t)
	ctx := context.Background()

	call, err := c.Send(ctx, s, deviceInfoRequest(), true, 200*time.Millisecond)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := call.Wait(ctx)
		done <- err
	}()

	time.Sleep(120 * time.Millisecond)
	c.Observe(s, decode(t, fmt.Sprintf(`{"_type":"wf_api_progress_event","id":%q}`, call.ID())))
	time.Sleep(120 * time.Millisecond)

	reply := decode(t, fmt.Sprintf(`{"_type":"wf_api_get_device_info_response","_id":%q}`, call.ID()))
	assert.True(t, c.Resolve(s, reply), "extended request should still be outstanding")
	assert.NoError(t, <-done)
}

func TestSweep(t *testing.T) {
	c, r, s, _ := setup(t)
	ctx := context.Background()

	call, err := c.Send(ctx, s, deviceInfoRequest(), true, time.Millisecond)
	require.NoError(t, err)
	_, err = c.Send(ctx, s, deviceInfoRequest(), true, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 1, c.Sweep(r, time.Now().Add(time.Second)))
	assert.Equal(t, 1, s.PendingCount())

	_, err = call.Wait(ctx)
	assert.ErrorIs(t, err, ErrCommandTimeout)
}

func TestSendFailure(t *testing.T) {
	c, _, s, tr := setup(t)
	errBroken := errors.New("broken pipe")
	tr.FailWith(errBroken)

	_, err := c.Send(context.Background(), s, deviceInfoRequest(), true, time.Second)
	assert.ErrorIs(t, err, errBroken)
	assert.Equal(t, 0, s.PendingCount())
}

func TestDuplicateIDRetried(t *testing.T) {
	c, _, s, _ := setup(t, WithIDer(uuid.NewStaticIDs("a", "a", "b")))
	ctx := context.Background()

	first, err := c.Send(ctx, s, deviceInfoRequest(), true, time.Second)
	require.NoError(t, err)
	second, err := c.Send(ctx, s, deviceInfoRequest(), true, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "a", first.ID())
	assert.Equal(t, "b", second.ID())
}

func TestEventDoesNotSettle(t *testing.T) {
	c, _, s, _ := setup(t)
	ctx := context.Background()

	call, err := c.Send(ctx, s, deviceInfoRequest(), true, 200*time.Millisecond)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := call.Wait(ctx)
		done <- err
	}()

	time.Sleep(120 * time.Millisecond)
	progress := decode(t, fmt.Sprintf(`{"_type":"wf_api_progress_event","_id":%q}`, call.ID()))
	assert.False(t, c.Resolve(s, progress))
	c.Observe(s, progress)
	assert.Equal(t, 1, s.PendingCount())
	time.Sleep(120 * time.Millisecond)

	reply := decode(t, fmt.Sprintf(`{"_type":"wf_api_get_device_info_response","_id":%q,"battery":87}`, call.ID()))
	assert.True(t, c.Resolve(s, reply), "extended request should still be outstanding")
	assert.NoError(t, <-done)
}

func TestAwaitPromptByCorrelationID(t *testing.T) {
	c, _, s, _ := setup(t)
	ctx := context.Background()

	req := protocol.NewTargetedRequest(protocol.RequestSay, map[string]interface{}{"text": "hi"}, "abc")
	call, err := c.SendAwaitPrompt(ctx, s, req, time.Second)
	require.NoError(t, err)

	started := decode(t, fmt.Sprintf(`{"_type":"wf_api_prompt_event","_id":%q,"id":"prompt-1","type":"started"}`, call.ID()))
	assert.False(t, c.Resolve(s, started))
	c.Observe(s, started)
	assert.Equal(t, 1, s.PendingCount())

	resp := decode(t, fmt.Sprintf(`{"_type":"wf_api_say_response","_id":%q,"id":"prompt-1"}`, call.ID()))
	assert.True(t, c.Resolve(s, resp))

	c.Observe(s, decode(t, fmt.Sprintf(`{"_type":"wf_api_prompt_event","_id":%q,"id":"prompt-1","type":"stopped"}`, call.ID())))
	have, err := call.Wait(ctx)
	require.NoError(t, err)
	assert.Same(t, resp, have)
	assert.Equal(t, 0, s.PendingCount())
}
