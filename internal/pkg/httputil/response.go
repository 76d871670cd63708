// Package httputil holds the JSON envelope helpers and middleware shared by the HTTP handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// DataEnvelope wraps successful API payloads.
type DataEnvelope struct {
	Data any `json:"data"`
}

// ErrorEnvelope wraps API errors.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes an API error. Details is set for validation failures only.
type ErrorBody struct {
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// FieldError is one failed validation rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "status", status, "error", err)
	}
}

// JSON writes body as is, without the data envelope.
func JSON(w http.ResponseWriter, status int, body any) {
	writeJSON(w, status, body)
}

// Text writes a plain text response.
func Text(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(text)); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// Success writes data inside the {"data": ...} envelope.
func Success(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, DataEnvelope{Data: data})
}

// NoContent writes an empty 204 response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error writes message inside the {"error": {...}} envelope.
func Error(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorEnvelope{Error: ErrorBody{Message: message}})
}

// ValidationError writes a 400 response. Validator errors are listed per field;
// any other error is reported as a single details string.
func ValidationError(w http.ResponseWriter, err error) {
	body := ErrorBody{Message: "validation error", Details: err.Error()}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]FieldError, 0, len(verrs))
		for _, e := range verrs {
			fields = append(fields, FieldError{Field: e.Field(), Message: e.Tag()})
		}
		body.Details = fields
	}

	writeJSON(w, http.StatusBadRequest, ErrorEnvelope{Error: body})
}
