package http

import (
	"net/http"

	"github.com/relaypro/relay-go/engine/storage"

	"github.com/micromdm/nanolib/log"
)

type APIEngine interface {
	WorkflowNamer
	SessionLister
	SessionTerminator
}

// Mux can register HTTP handlers.
// Ostensibly this supports flow router.
type Mux interface {
	// Handle registers the handler for the given pattern.
	Handle(pattern string, handler http.Handler, methods ...string)
}

// HandleAPIv1 registers the various API handlers into mux.
// API endpoint paths are prepended with prefix.
// Authentication or any other layered handlers are not present.
// They are assumed to be layered with mux, possibly at the Handle call.
// The logger is adorned with a "handler" key of the endpoint name.
func HandleAPIv1(prefix string, mux Mux, logger log.Logger, e APIEngine, s storage.ReadStorage) {
	// engine (workflows and live sessions)

	mux.Handle(
		prefix+"/workflows",
		ListWorkflowsHandler(e, logger.With("handler", "list workflows")),
		"GET",
	)
	mux.Handle(
		prefix+"/sessions",
		ListSessionsHandler(e, logger.With("handler", "list sessions")),
		"GET",
	)
	mux.Handle(
		prefix+"/sessions/:id/terminate",
		TerminateSessionHandler(e, logger.With("handler", "terminate session")),
		"POST",
	)

	// session history

	mux.Handle(
		prefix+"/sessions/:id",
		GetSessionHandler(s, logger.With("handler", "get session")),
		"GET",
	)
	mux.Handle(
		prefix+"/history",
		SessionHistoryHandler(s, logger.With("handler", "session history")),
		"GET",
	)
}
