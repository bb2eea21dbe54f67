// Package api holds response helpers shared by the JSON HTTP handlers.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/relaypro/relay-go/logkeys"

	"github.com/micromdm/nanolib/log"
)

type errorResponse struct {
	Err string `json:"error"`
}

// JSONError writes err as a JSON error object with statusCode.
// A statusCode below one is sent as 500.
func JSONError(w http.ResponseWriter, err error, statusCode int) {
	if statusCode < 1 {
		statusCode = http.StatusInternalServerError
	}
	w.Header().Set("Content-type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(&errorResponse{Err: err.Error()})
}

// JSON writes v as a JSON response. Encoding failures are logged;
// the status line has usually been sent by then.
func JSON(w http.ResponseWriter, logger log.Logger, v interface{}) {
	w.Header().Set("Content-type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Info(logkeys.Message, "encoding json response", logkeys.Error, err)
	}
}
