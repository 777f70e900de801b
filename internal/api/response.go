package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/autopilot"
	"github.com/sells-group/leadgen/internal/campaign"
	"github.com/sells-group/leadgen/internal/leads"
	"github.com/sells-group/leadgen/internal/search"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 4 << 20

// ErrorResponse is the error envelope of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// decode reads a JSON body into dst and writes a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, search.ErrInvalidQuery),
		errors.Is(err, autopilot.ErrInvalidRequest),
		errors.Is(err, campaign.ErrInvalidName),
		errors.Is(err, leads.ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, leads.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, autopilot.ErrRunInFlight):
		return http.StatusConflict
	case errors.Is(err, campaign.ErrDisabled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// fail writes err with the mapped status. Server errors are logged and
// returned to the client without internals.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		failWith(w, r, status, err)
		return
	}
	writeError(w, status, err.Error())
}

func failWith(w http.ResponseWriter, r *http.Request, status int, err error) {
	zap.L().Error("api: request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	)
	writeError(w, status, http.StatusText(status))
}
