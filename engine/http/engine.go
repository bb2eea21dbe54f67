// Package http contains HTTP handlers that work with the Relay workflow engine.
package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/relaypro/relay-go/engine"
	"github.com/relaypro/relay-go/http/api"
	"github.com/relaypro/relay-go/logkeys"
	"github.com/relaypro/relay-go/session"

	"github.com/alexedwards/flow"
	"github.com/micromdm/nanolib/log"
	"github.com/micromdm/nanolib/log/ctxlog"
)

var ErrNoTerminator = errors.New("missing session terminator")

type WorkflowNamer interface {
	WorkflowNames() []string
}

type SessionLister interface {
	Sessions() []engine.SessionInfo
}

type SessionTerminator interface {
	Terminate(ctx context.Context, id string) error
}

// ListWorkflowsHandler creates a HandlerFunc that lists registered workflow names.
func ListWorkflowsHandler(namer WorkflowNamer, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		names := namer.WorkflowNames()
		if names == nil {
			names = []string{}
		}
		logger.Debug(logkeys.Message, "listed workflows", logkeys.GenericCount, len(names))
		api.JSON(w, logger, names)
	}
}

// ListSessionsHandler creates a HandlerFunc that lists live sessions.
func ListSessionsHandler(lister SessionLister, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		infos := lister.Sessions()
		if infos == nil {
			infos = []engine.SessionInfo{}
		}
		logger.Debug(logkeys.Message, "listed sessions", logkeys.GenericCount, len(infos))
		api.JSON(w, logger, infos)
	}
}

// TerminateSessionHandler creates a HandlerFunc that asks the Relay
// server to end a live session.
func TerminateSessionHandler(t SessionTerminator, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := flow.Param(r.Context(), "id")
		logger := ctxlog.Logger(r.Context(), logger).With(logkeys.SessionID, id)
		if t == nil {
			logger.Info(logkeys.Message, "terminating session", logkeys.Error, ErrNoTerminator)
			api.JSONError(w, ErrNoTerminator, 0)
			return
		}

		err := t.Terminate(r.Context(), id)
		if errors.Is(err, session.ErrNotFound) {
			logger.Info(logkeys.Message, "terminating session", logkeys.Error, err)
			api.JSONError(w, err, http.StatusNotFound)
			return
		} else if err != nil {
			logger.Info(logkeys.Message, "terminating session", logkeys.Error, err)
			api.JSONError(w, err, 0)
			return
		}
		logger.Debug(logkeys.Message, "terminated session")
		w.WriteHeader(http.StatusNoContent)
	}
}
