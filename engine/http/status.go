package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/relaypro/relay-go/engine/storage"
	"github.com/relaypro/relay-go/http/api"
	"github.com/relaypro/relay-go/logkeys"

	"github.com/alexedwards/flow"
	"github.com/micromdm/nanolib/log"
	"github.com/micromdm/nanolib/log/ctxlog"
)

var ErrNoStorage = errors.New("no storage backend")

// GetSessionHandler creates a HandlerFunc that returns the stored status of a session.
func GetSessionHandler(store storage.ReadStorage, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := flow.Param(r.Context(), "id")
		logger := ctxlog.Logger(r.Context(), logger).With(logkeys.SessionID, id)
		if store == nil {
			logger.Info(logkeys.Message, "retrieving session", logkeys.Error, ErrNoStorage)
			api.JSONError(w, ErrNoStorage, 0)
			return
		}

		st, err := store.RetrieveSession(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			logger.Info(logkeys.Message, "retrieving session", logkeys.Error, err)
			api.JSONError(w, err, http.StatusNotFound)
			return
		} else if err != nil {
			logger.Info(logkeys.Message, "retrieving session", logkeys.Error, err)
			api.JSONError(w, err, 0)
			return
		}
		logger.Debug(logkeys.Message, "retrieved session")
		api.JSON(w, logger, st)
	}
}

// SessionHistoryHandler creates a HandlerFunc that lists stored session
// statuses, most recent first. The "workflow" and "limit" query
// parameters narrow the results.
func SessionHistoryHandler(store storage.ReadStorage, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		if store == nil {
			logger.Info(logkeys.Message, "retrieving sessions", logkeys.Error, ErrNoStorage)
			api.JSONError(w, ErrNoStorage, 0)
			return
		}

		opts := &storage.SearchOptions{Workflow: r.URL.Query().Get("workflow")}
		if limit := r.URL.Query().Get("limit"); limit != "" {
			var err error
			if opts.Limit, err = strconv.Atoi(limit); err != nil {
				logger.Info(logkeys.Message, "parameters", logkeys.Error, err)
				api.JSONError(w, err, http.StatusBadRequest)
				return
			}
		}

		statuses, err := store.RetrieveSessions(r.Context(), opts)
		if err != nil {
			logger.Info(logkeys.Message, "retrieving sessions", logkeys.Error, err)
			api.JSONError(w, err, 0)
			return
		}
		if statuses == nil {
			statuses = []*storage.Status{}
		}
		logger.Debug(logkeys.Message, "retrieved sessions", logkeys.GenericCount, len(statuses))
		api.JSON(w, logger, statuses)
	}
}
