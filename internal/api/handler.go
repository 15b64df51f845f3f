// Package api provides shared HTTP helpers and the health endpoint.
package api

import (
	"encoding/json"
	"net/http"
)

// Response status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error","detail":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, detail string) {
	JSON(w, status, ErrorBody{Status: StatusError, Detail: detail})
}
