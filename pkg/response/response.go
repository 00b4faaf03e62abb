// Package response writes the API's JSON bodies.
//
// Success responses carry the document(s) directly, matching what clients of
// the catalog API expect. Every failure is a `{"error": "..."}` body:
// validation, not-found and upstream failures map to 400, authorization
// failures to 403.
package response

import (
	"encoding/json"
	"net/http"
)

type errBody struct {
	Error string `json:"error"`
}

func write(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}

// JSON sends an arbitrary payload with the given status.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	write(w, status, data)
}

// Success sends a 200 response whose body is the data itself.
func Success(w http.ResponseWriter, data interface{}) {
	write(w, http.StatusOK, data)
}

// Created sends a 201 response whose body is the data itself.
func Created(w http.ResponseWriter, data interface{}) {
	write(w, http.StatusCreated, data)
}

// Error sends `{"error": message}` with the given status.
func Error(w http.ResponseWriter, status int, message string) {
	write(w, status, errBody{Error: message})
}

// Validation sends a 400 for missing or malformed input.
func Validation(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, message)
}

// NotFound sends a 400; absent referenced entities are reported the same
// way as bad input on this API.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, message)
}

// Forbidden sends a 403 for ownership or role mismatches.
func Forbidden(w http.ResponseWriter, message string) {
	Error(w, http.StatusForbidden, message)
}

// Upstream sends a 400 carrying a best-effort human-readable message for a
// database or storage failure.
func Upstream(w http.ResponseWriter, err error) {
	Error(w, http.StatusBadRequest, err.Error())
}

// Unauthorized sends a 401.
func Unauthorized(w http.ResponseWriter) {
	Error(w, http.StatusUnauthorized, "Unauthorized")
}
