package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"streamflix-rag/internal/validation"
	"streamflix-rag/pkg/logging/logging"
)

type errorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Count   *int   `json:"count,omitempty"`
}

// writeJSON sends v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// decode reads a JSON body into dst and validates it. It writes the error
// response itself and reports whether the handler may continue.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	logger := logging.L(r.Context())

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "request_too_large", err.Error())
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, "invalid_request", "request body is empty")
		default:
			logger.Warn("invalid request", zap.Error(err))
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON")
		}
		return false
	}

	if err := validation.Struct(dst); err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
				Error:   "validation_error",
				Message: verr.Error(),
				Fields:  verr.Fields,
			})
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return false
	}
	return true
}

func intPtr(n int) *int { return &n }
