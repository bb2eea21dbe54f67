package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/relaypro/relay-go/engine"
	"github.com/relaypro/relay-go/engine/storage"
	"github.com/relaypro/relay-go/engine/storage/inmem"
	"github.com/relaypro/relay-go/transport/memory"
	"github.com/relaypro/relay-go/workflow"

	"github.com/alexedwards/flow"
	"github.com/micromdm/nanolib/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(mux http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestEngineAPI(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := inmem.New()
	e := engine.New(engine.WithStorage(store))
	require.NoError(t, e.RegisterWorkflow(workflow.NewFunc("hello", func(*workflow.Workflow) {})))

	tr := memory.New("abc")
	c, err := e.Accept("abc", "hello", tr)
	require.NoError(t, err)
	defer func() {
		c.Close(engine.ReasonClosed)
		require.NoError(t, c.Wait(ctx))
	}()
	c.OnMessage([]byte(`{"_type":"wf_api_start_event","trigger":{"type":"manual"}}`))

	mux := flow.New()
	HandleAPIv1("/v1", mux, log.NopLogger, e, store)

	rec := serve(mux, http.MethodGet, "/v1/workflows")
	require.Equal(t, http.StatusOK, rec.Code)
	var names []string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&names))
	assert.Equal(t, []string{"hello"}, names)

	rec = serve(mux, http.MethodGet, "/v1/sessions")
	require.Equal(t, http.StatusOK, rec.Code)
	var infos []engine.SessionInfo
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "abc", infos[0].ID)

	rec = serve(mux, http.MethodPost, "/v1/sessions/abc/terminate")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	req, err := tr.NextRequest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "wf_api_terminate_request", req["_type"])

	rec = serve(mux, http.MethodPost, "/v1/sessions/nope/terminate")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// the start is recorded by the connection goroutine
	require.Eventually(t, func() bool {
		return serve(mux, http.MethodGet, "/v1/sessions/abc").Code == http.StatusOK
	}, 5*time.Second, 5*time.Millisecond)
	rec = serve(mux, http.MethodGet, "/v1/sessions/abc")
	var st storage.Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
	assert.Equal(t, "hello", st.Workflow)
	assert.Equal(t, "manual", st.Trigger)
	assert.Nil(t, st.Stopped)

	rec = serve(mux, http.MethodGet, "/v1/sessions/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(mux, http.MethodGet, "/v1/history?workflow=hello&limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	var statuses []storage.Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&statuses))
	assert.Len(t, statuses, 1)

	rec = serve(mux, http.MethodGet, "/v1/history?limit=x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNoStorage(t *testing.T) {
	mux := flow.New()
	HandleAPIv1("/v1", mux, log.NopLogger, engine.New(), nil)

	rec := serve(mux, http.MethodGet, "/v1/sessions/abc")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = serve(mux, http.MethodGet, "/v1/sessions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}
