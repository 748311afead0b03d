// Package httputil centralizes JSON envelopes and domain error translation so
// every handler answers with the same shape.
package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "trustledger/pkg/domain-errors"
)

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ToHTTPStatus maps domain error codes to HTTP statuses.
func ToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeValidation, dErrors.CodeThreshold, dErrors.CodeReference:
		return http.StatusUnprocessableEntity
	case dErrors.CodeSignature, dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeDuplicate:
		return http.StatusConflict
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeStorage, dErrors.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON writes v with the given status; encoding failures are abandoned
// since the status line is already committed.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into the uniform envelope. Message text
// is exposed only for coded errors; uncoded causes stay server-side.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := ErrorResponse{Success: false, Error: string(code)}
	var de *dErrors.Error
	if errors.As(err, &de) {
		resp.Message = de.Message
	}
	WriteJSON(w, ToHTTPStatus(code), resp)
}

// Decode parses the request body into T, answering with a validation error on
// malformed JSON. The bool result tells the handler whether to continue.
func Decode[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (T, bool) {
	var req T
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if logger != nil {
			logger.WarnContext(r.Context(), "malformed request body", "error", err)
		}
		WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "malformed request body"))
		return req, false
	}
	return req, true
}
