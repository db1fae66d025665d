// Package httputil holds the JSON response and request helpers shared by handlers.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

// maxBodyBytes bounds request bodies; claim payloads are small.
const maxBodyBytes = 64 << 10

// Validatable is implemented by request bodies that normalise and check
// themselves after decoding.
type Validatable interface {
	Validate() error
}

// ErrorResponse is the body written for every non-2xx response.
type ErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteErrorCode writes an ErrorResponse. Internal errors never carry a description.
func WriteErrorCode(w http.ResponseWriter, status int, code, description string) {
	WriteErrorResponse(w, status, ErrorResponse{Error: code, Description: description})
}

// WriteErrorResponse writes a fully populated ErrorResponse.
func WriteErrorResponse(w http.ResponseWriter, status int, body ErrorResponse) {
	if status >= http.StatusInternalServerError {
		body.Description = ""
		body.Reason = ""
	}
	WriteJSON(w, status, body)
}

// DecodeAndPrepare decodes a JSON body into T and runs its validation. On
// failure it writes a 400 response and returns ok=false.
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if logger != nil {
			logger.WarnContext(ctx, "failed to decode request body",
				"request_id", requestID,
				"error", err,
			)
		}
		description := "invalid JSON body"
		if errors.Is(err, io.EOF) {
			description = "request body is required"
		}
		WriteErrorCode(w, http.StatusBadRequest, "bad_request", description)
		return nil, false
	}
	if err := PT(&req).Validate(); err != nil {
		WriteErrorCode(w, http.StatusBadRequest, "bad_request", err.Error())
		return nil, false
	}
	return &req, true
}
