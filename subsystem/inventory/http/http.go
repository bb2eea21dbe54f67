// Package http contains HTTP handlers for working with the inventory subsystem.
package http

import (
	"errors"
	"net/http"

	"github.com/relaypro/relay-go/http/api"
	"github.com/relaypro/relay-go/logkeys"
	"github.com/relaypro/relay-go/subsystem/inventory/storage"

	"github.com/micromdm/nanolib/log"
	"github.com/micromdm/nanolib/log/ctxlog"
)

var (
	ErrNoIDs     = errors.New("no IDs provided")
	ErrNoStorage = errors.New("no storage backend")
)

// RetrieveInventory returns an HTTP handler that retrieves inventory data for device URNs.
func RetrieveInventory(store storage.ReadStorage, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		if store == nil {
			logger.Info(logkeys.Message, "retrieve inventory", logkeys.Error, ErrNoStorage)
			api.JSONError(w, ErrNoStorage, 0)
			return
		}

		ids := r.URL.Query()["id"]
		if len(ids) < 1 {
			logger.Info(logkeys.Message, "parameters", logkeys.Error, ErrNoIDs)
			api.JSONError(w, ErrNoIDs, http.StatusBadRequest)
			return
		}

		logger = logger.With(
			logkeys.Target, ids[0],
			logkeys.GenericCount, len(ids),
		)
		opts := &storage.SearchOptions{IDs: ids}
		idValues, err := store.RetrieveInventory(r.Context(), opts)
		if err != nil {
			logger.Info(logkeys.Message, "retrieve inventory", logkeys.Error, err)
			api.JSONError(w, err, 0)
			return
		}
		logger.Debug(
			logkeys.Message, "retrieved inventory",
		)
		api.JSON(w, logger, idValues)
	}
}

// DeleteInventory returns an HTTP handler that forgets the inventory data of device URNs.
func DeleteInventory(store storage.Storage, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		if store == nil {
			logger.Info(logkeys.Message, "delete inventory", logkeys.Error, ErrNoStorage)
			api.JSONError(w, ErrNoStorage, 0)
			return
		}

		ids := r.URL.Query()["id"]
		if len(ids) < 1 {
			logger.Info(logkeys.Message, "parameters", logkeys.Error, ErrNoIDs)
			api.JSONError(w, ErrNoIDs, http.StatusBadRequest)
			return
		}

		for _, id := range ids {
			if err := store.DeleteInventory(r.Context(), id); err != nil {
				logger.Info(logkeys.Message, "delete inventory", logkeys.Target, id, logkeys.Error, err)
				api.JSONError(w, err, 0)
				return
			}
		}
		logger.Debug(logkeys.Message, "deleted inventory", logkeys.GenericCount, len(ids))
		w.WriteHeader(http.StatusNoContent)
	}
}
