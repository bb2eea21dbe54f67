package engine

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/relaypro/relay-go/correlate"
	"github.com/relaypro/relay-go/engine/storage/inmem"
	"github.com/relaypro/relay-go/protocol"
	"github.com/relaypro/relay-go/relay"
	"github.com/relaypro/relay-go/session"
	"github.com/relaypro/relay-go/transport/memory"
	"github.com/relaypro/relay-go/workflow"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const device = "urn:relay-resource:name:device:Alice"

func event(name string, fields map[string]interface{}) []byte {
	m := map[string]interface{}{"_type": "wf_api_" + name + "_event"}
	for k, v := range fields {
		m[k] = v
	}
	b, _ := json.Marshal(m)
	return b
}

func response(name, id string, fields map[string]interface{}) []byte {
	m := map[string]interface{}{"_type": "wf_api_" + name + "_response", "_id": id}
	for k, v := range fields {
		m[k] = v
	}
	b, _ := json.Marshal(m)
	return b
}

// accept opens a connection and closes it when the test ends.
func accept(t *testing.T, e *Engine, id, name string) (*Conn, *memory.Transport) {
	t.Helper()
	tr := memory.New(id)
	c, err := e.Accept(id, name, tr)
	require.NoError(t, err)
	t.Cleanup(func() {
		c.Close(ReasonClosed)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, c.Wait(ctx))
	})
	return c, tr
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// recv waits for a value on ch.
func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting")
	}
	var zero T
	return zero
}

func TestStartSay(t *testing.T) {
	ctx := testCtx(t)
	e := New()
	started := make(chan string, 1)
	require.NoError(t, e.RegisterWorkflow(workflow.NewFunc("hello", func(w *workflow.Workflow) {
		w.OnStart(func(ctx context.Context, r *relay.Relay, ev *protocol.StartEvent) error {
			started <- string(ev.Trigger.Type)
			return r.Say(ctx, device, "hello")
		})
	})))

	c, tr := accept(t, e, "abc", "hello")
	c.OnMessage(event("start", map[string]interface{}{"trigger": "user"}))

	req, err := tr.NextRequest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user", recv(t, started))
	assert.Equal(t, "wf_api_say_request", req["_type"])
	assert.Equal(t, "hello", req["text"])
	assert.NotEmpty(t, req["_id"])

	s, err := e.Registry().Lookup("abc")
	require.NoError(t, err)
	assert.Equal(t, 0, s.PendingCount())
	assert.Equal(t, "hello", s.Workflow())
}

func TestAcceptUnknownWorkflow(t *testing.T) {
	e := New()
	_, err := e.Accept("abc", "nope", memory.New("abc"))
	assert.ErrorIs(t, err, ErrNoSuchWorkflow)
}

func batteryWorkflow(name string, battery chan<- int, errCh chan<- error) workflow.Builder {
	return workflow.NewFunc(name, func(w *workflow.Workflow) {
		w.OnStart(func(ctx context.Context, r *relay.Relay, _ *protocol.StartEvent) error {
			b, err := r.GetDeviceBattery(ctx, device, true)
			if battery != nil {
				battery <- b
			}
			errCh <- err
			return err
		})
	})
}

func TestBatteryReply(t *testing.T) {
	ctx := testCtx(t)
	e := New()
	battery := make(chan int, 1)
	errCh := make(chan error, 1)
	require.NoError(t, e.RegisterWorkflow(batteryWorkflow("battery", battery, errCh)))

	c, tr := accept(t, e, "abc", "battery")
	c.OnMessage(event("start", nil))

	req, err := tr.NextRequest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "wf_api_get_device_info_request", req["_type"])
	assert.Equal(t, "battery", req["query"])
	assert.Equal(t, true, req["refresh"])

	s := c.Session()
	require.NotNil(t, s)
	assert.Equal(t, 1, s.PendingCount())

	c.OnMessage(response("get_device_info", req["_id"].(string), map[string]interface{}{"battery": 87}))
	require.NoError(t, recv(t, errCh))
	assert.Equal(t, 87, recv(t, battery))
	assert.Equal(t, 0, s.PendingCount())
}

func TestReplyTimeout(t *testing.T) {
	ctx := testCtx(t)
	e := New(WithCorrelator(correlate.New(correlate.WithTimeout(50 * time.Millisecond))))
	errCh := make(chan error, 1)
	require.NoError(t, e.RegisterWorkflow(batteryWorkflow("battery", nil, errCh)))

	c, tr := accept(t, e, "abc", "battery")
	c.OnMessage(event("start", nil))
	req, err := tr.NextRequest(ctx)
	require.NoError(t, err)

	assert.ErrorIs(t, recv(t, errCh), correlate.ErrCommandTimeout)
	assert.Equal(t, 0, c.Session().PendingCount())

	// a late reply is unclaimed and dropped
	c.OnMessage(response("get_device_info", req["_id"].(string), map[string]interface{}{"battery": 87}))
	assert.Equal(t, 0, c.Session().PendingCount())
}

func TestWorkerSweep(t *testing.T) {
	ctx := testCtx(t)
	e := New()
	sent := make(chan *correlate.Call, 1)
	require.NoError(t, e.RegisterWorkflow(workflow.NewFunc("sweep", func(w *workflow.Workflow) {
		w.OnStart(func(ctx context.Context, r *relay.Relay, _ *protocol.StartEvent) error {
			req := protocol.NewTargetedRequest(protocol.RequestGetDeviceInfo, map[string]interface{}{"query": "id"}, device)
			call, err := e.Correlator().Send(ctx, r.Session(), req, true, time.Minute)
			sent <- call
			return err
		})
	})))

	c, tr := accept(t, e, "abc", "sweep")
	c.OnMessage(event("start", nil))
	_, err := tr.NextRequest(ctx)
	require.NoError(t, err)
	call := recv(t, sent)
	require.NotNil(t, call)

	w := NewWorker(e)
	assert.Equal(t, 0, w.RunOnce(time.Now()))
	assert.Equal(t, 1, w.RunOnce(time.Now().Add(time.Hour)))
	assert.Equal(t, 0, c.Session().PendingCount())

	_, err = call.Wait(ctx)
	assert.ErrorIs(t, err, correlate.ErrCommandTimeout)
}

func TestUnknownCorrelationID(t *testing.T) {
	e := New()
	buttons := make(chan string, 1)
	require.NoError(t, e.RegisterWorkflow(workflow.NewFunc("buttons", func(w *workflow.Workflow) {
		w.OnButton(func(ctx context.Context, r *relay.Relay, ev *protocol.ButtonEvent) error {
			buttons <- string(ev.Taps)
			return nil
		})
	})))

	c, _ := accept(t, e, "abc", "buttons")
	c.OnMessage(event("start", nil))
	c.OnMessage(response("get_device_info", "nope", map[string]interface{}{"battery": 87}))
	c.OnMessage(event("button", map[string]interface{}{"_id": "stale", "button": "action", "taps": "single"}))

	assert.Equal(t, "single", recv(t, buttons))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.Unclaimed))
	assert.Equal(t, 0, c.Session().PendingCount())
}

func TestStopCancelsPending(t *testing.T) {
	ctx := testCtx(t)
	store := inmem.New()
	e := New(WithStorage(store))
	errCh := make(chan error, 1)
	stopped := make(chan string, 1)
	require.NoError(t, e.RegisterWorkflow(workflow.NewFunc("battery", func(w *workflow.Workflow) {
		w.OnStart(func(ctx context.Context, r *relay.Relay, _ *protocol.StartEvent) error {
			_, err := r.GetDeviceBattery(ctx, device, true)
			errCh <- err
			return err
		})
		w.OnStop(func(ctx context.Context, r *relay.Relay, ev *protocol.StopEvent) error {
			stopped <- string(ev.Reason)
			return nil
		})
	})))

	c, tr := accept(t, e, "abc", "battery")
	c.OnMessage(event("start", map[string]interface{}{
		"trigger": map[string]interface{}{
			"type": "phrase",
			"args": map[string]interface{}{"source_uri": device},
		},
	}))
	_, err := tr.NextRequest(ctx)
	require.NoError(t, err)

	c.OnMessage(event("stop", map[string]interface{}{"reason": "normal"}))

	assert.ErrorIs(t, recv(t, errCh), session.ErrSessionClosed)
	assert.Equal(t, "normal", recv(t, stopped))

	require.Eventually(t, func() bool {
		_, err := e.Registry().Lookup("abc")
		return err != nil
	}, 5*time.Second, 5*time.Millisecond)
	_, err = e.Registry().Lookup("abc")
	assert.ErrorIs(t, err, session.ErrNotFound)

	require.Eventually(t, func() bool {
		st, err := store.RetrieveSession(ctx, "abc")
		return err == nil && st.Stopped != nil
	}, 5*time.Second, 5*time.Millisecond)
	st, err := store.RetrieveSession(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "battery", st.Workflow)
	assert.Equal(t, "phrase", st.Trigger)
	assert.Equal(t, device, st.SourceURI)
	assert.Equal(t, "normal", st.Reason)

	// events after the stop are dropped
	c.OnMessage(event("button", nil))
}

func TestDuplicateStart(t *testing.T) {
	e := New()
	var starts atomic.Int32
	require.NoError(t, e.RegisterWorkflow(workflow.NewFunc("hello", func(w *workflow.Workflow) {
		w.OnStart(func(ctx context.Context, r *relay.Relay, _ *protocol.StartEvent) error {
			starts.Add(1)
			return nil
		})
	})))

	first, _ := accept(t, e, "abc", "hello")
	first.OnMessage(event("start", nil))
	s := first.Session()
	require.NotNil(t, s)

	second, _ := accept(t, e, "abc", "hello")
	second.OnMessage(event("start", nil))
	assert.Nil(t, second.Session())

	// a second start on the same connection is rejected too
	first.OnMessage(event("start", nil))

	live, err := e.Registry().Lookup("abc")
	require.NoError(t, err)
	assert.Same(t, s, live)
	assert.Equal(t, 1, e.Registry().Len())
	assert.Equal(t, 2.0, testutil.ToFloat64(e.metrics.SessionsRejected.WithLabelValues("duplicate")))

	first.Close(ReasonClosed)
	require.NoError(t, first.Wait(testCtx(t)))
	assert.Equal(t, int32(1), starts.Load())
}

func TestStartAfterStop(t *testing.T) {
	e := New()
	var starts atomic.Int32
	require.NoError(t, e.RegisterWorkflow(workflow.NewFunc("hello", func(w *workflow.Workflow) {
		w.OnStart(func(ctx context.Context, r *relay.Relay, _ *protocol.StartEvent) error {
			starts.Add(1)
			return nil
		})
	})))

	c, _ := accept(t, e, "abc", "hello")
	c.OnMessage(event("start", nil))
	c.OnMessage(event("stop", map[string]interface{}{"reason": "normal"}))
	require.Eventually(t, func() bool {
		return c.Session() == nil
	}, 5*time.Second, 5*time.Millisecond)

	c.OnMessage(event("start", nil))
	assert.Nil(t, c.Session())
	assert.Equal(t, 0, e.Registry().Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.SessionsRejected.WithLabelValues("ended")))
	assert.Equal(t, 0.0, testutil.ToFloat64(e.metrics.SessionsRejected.WithLabelValues("duplicate")))

	c.Close(ReasonClosed)
	require.NoError(t, c.Wait(testCtx(t)))
	assert.Equal(t, int32(1), starts.Load())
}

func TestUnregisteredEventDropped(t *testing.T) {
	e := New()
	fired := make(chan string, 1)
	require.NoError(t, e.RegisterWorkflow(workflow.NewFunc("timers", func(w *workflow.Workflow) {
		w.OnTimerFired(func(ctx context.Context, r *relay.Relay, ev *protocol.TimerFiredEvent) error {
			fired <- string(ev.Name)
			return nil
		})
	})))

	c, _ := accept(t, e, "abc", "timers")
	c.OnMessage(event("start", nil))
	c.OnMessage(event("button", map[string]interface{}{"button": "action", "taps": "single"}))
	c.OnMessage(event("timer_fired", map[string]interface{}{"name": "t1"}))

	assert.Equal(t, "t1", recv(t, fired))
	assert.Equal(t, 0.0, testutil.ToFloat64(e.metrics.Events.WithLabelValues("button")))
	assert.Equal(t, 0.0, testutil.ToFloat64(e.metrics.CallbackErrors.WithLabelValues("button")))
}

func TestCallbackFailureNotFatal(t *testing.T) {
	e := New()
	fired := make(chan string, 1)
	require.NoError(t, e.RegisterWorkflow(workflow.NewFunc("panics", func(w *workflow.Workflow) {
		w.OnButton(func(ctx context.Context, r *relay.Relay, ev *protocol.ButtonEvent) error {
			if ev.Taps == protocol.TapsDouble {
				return assert.AnError
			}
			panic("boom")
		})
		w.OnTimerFired(func(ctx context.Context, r *relay.Relay, ev *protocol.TimerFiredEvent) error {
			fired <- string(ev.Name)
			return nil
		})
	})))

	c, _ := accept(t, e, "abc", "panics")
	c.OnMessage(event("start", nil))
	c.OnMessage(event("button", map[string]interface{}{"taps": "single"}))
	c.OnMessage(event("button", map[string]interface{}{"taps": "double"}))
	c.OnMessage(event("timer_fired", map[string]interface{}{"name": "after"}))

	assert.Equal(t, "after", recv(t, fired))
	assert.Equal(t, 2.0, testutil.ToFloat64(e.metrics.CallbackErrors.WithLabelValues("button")))
	assert.NotNil(t, c.Session())
}

func TestProtocolErrorDropped(t *testing.T) {
	e := New()
	fired := make(chan string, 1)
	require.NoError(t, e.RegisterWorkflow(workflow.NewFunc("timers", func(w *workflow.Workflow) {
		w.OnTimerFired(func(ctx context.Context, r *relay.Relay, ev *protocol.TimerFiredEvent) error {
			fired <- string(ev.Name)
			return nil
		})
	})))

	c, _ := accept(t, e, "abc", "timers")
	c.OnMessage(event("start", nil))
	c.OnMessage([]byte("not json"))
	c.OnMessage([]byte(`{"type":"button"}`))
	c.OnMessage([]byte(`[1,2,3]`))
	c.OnMessage(event("timer_fired", map[string]interface{}{"name": "t1"}))

	assert.Equal(t, "t1", recv(t, fired))
	assert.Equal(t, 3.0, testutil.ToFloat64(e.metrics.ProtocolErrors))
}

func TestTransportCloseStopsOnlyThatSession(t *testing.T) {
	ctx := testCtx(t)
	store := inmem.New()
	e := New(WithStorage(store))
	errCh := make(chan error, 2)
	require.NoError(t, e.RegisterWorkflow(batteryWorkflow("battery", nil, errCh)))

	a, trA := accept(t, e, "a", "battery")
	b, trB := accept(t, e, "b", "battery")
	a.OnMessage(event("start", nil))
	b.OnMessage(event("start", nil))
	_, err := trA.NextRequest(ctx)
	require.NoError(t, err)
	reqB, err := trB.NextRequest(ctx)
	require.NoError(t, err)

	a.Close(ReasonClosed)
	assert.ErrorIs(t, recv(t, errCh), session.ErrSessionClosed)
	require.NoError(t, a.Wait(ctx))

	_, err = e.Registry().Lookup("a")
	assert.ErrorIs(t, err, session.ErrNotFound)
	sb, err := e.Registry().Lookup("b")
	require.NoError(t, err)
	assert.Equal(t, 1, sb.PendingCount())

	st, err := store.RetrieveSession(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, st.Stopped)
	assert.Equal(t, ReasonClosed, st.Reason)

	b.OnMessage(response("get_device_info", reqB["_id"].(string), map[string]interface{}{"battery": 50}))
	assert.NoError(t, recv(t, errCh))
}

func TestSerialDispatch(t *testing.T) {
	e := New()
	const n = 20
	var (
		mu       sync.Mutex
		order    []string
		inFlight atomic.Int32
		overlap  atomic.Bool
	)
	done := make(chan struct{})
	require.NoError(t, e.RegisterWorkflow(workflow.NewFunc("serial", func(w *workflow.Workflow) {
		w.OnTimerFired(func(ctx context.Context, r *relay.Relay, ev *protocol.TimerFiredEvent) error {
			if inFlight.Add(1) > 1 {
				overlap.Store(true)
			}
			defer inFlight.Add(-1)
			time.Sleep(time.Millisecond)
			mu.Lock()
			order = append(order, string(ev.Name))
			if len(order) == n {
				close(done)
			}
			mu.Unlock()
			return nil
		})
	})))

	c, _ := accept(t, e, "abc", "serial")
	c.OnMessage(event("start", nil))
	var want []string
	for i := 0; i < n; i++ {
		name := string(rune('a' + i))
		want = append(want, name)
		c.OnMessage(event("timer_fired", map[string]interface{}{"name": name}))
	}
	recv(t, done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, order)
	assert.False(t, overlap.Load())
}

func TestTerminate(t *testing.T) {
	ctx := testCtx(t)
	e := New()
	require.NoError(t, e.RegisterWorkflow(workflow.NewFunc("hello", func(*workflow.Workflow) {})))

	err := e.Terminate(ctx, "abc")
	assert.ErrorIs(t, err, session.ErrNotFound)

	c, tr := accept(t, e, "abc", "hello")
	c.OnMessage(event("start", nil))
	require.NoError(t, e.Terminate(ctx, "abc"))

	req, err := tr.NextRequest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "wf_api_terminate_request", req["_type"])
	assert.NotContains(t, req, "_target")

	infos := e.Sessions()
	require.Len(t, infos, 1)
	assert.Equal(t, "abc", infos[0].ID)
	assert.Equal(t, "hello", infos[0].Workflow)
	assert.Equal(t, 0, infos[0].Pending)
}

func TestRegistration(t *testing.T) {
	e := New()
	require.NoError(t, e.RegisterWorkflow(workflow.NewFunc("b", func(*workflow.Workflow) {})))
	require.NoError(t, e.RegisterWorkflow(workflow.NewFunc("a", func(*workflow.Workflow) {})))
	assert.Equal(t, []string{"a", "b"}, e.WorkflowNames())
	assert.True(t, e.WorkflowRegistered("a"))

	require.NoError(t, e.UnregisterWorkflow("a"))
	require.NoError(t, e.UnregisterWorkflow("a"))
	assert.False(t, e.WorkflowRegistered("a"))
	assert.Nil(t, e.Workflow("a"))
	assert.NotNil(t, e.Workflow("b"))
}
