// Package httputil provides HTTP handler utilities for consistent error handling,
// JSON encoding/decoding, and request parsing.
package httputil

import (
	"encoding/json"
	"net/http"
)

// Machine-readable error reasons carried in the "error" field of every error body
const (
	ReasonUnauthorized              = "unauthorized"
	ReasonInvalidInput              = "invalid_input"
	ReasonQuotaExceeded             = "quota_exceeded"
	ReasonUpstreamUnauthorized      = "upstream_unauthorized"
	ReasonUpstreamRateLimited       = "upstream_rate_limited"
	ReasonUpstreamError             = "upstream_error"
	ReasonMalformedUpstreamResponse = "malformed_upstream_response"
	ReasonRateLimited               = "rate_limited"
	ReasonNotFound                  = "not_found"
	ReasonInternalError             = "internal_error"
)

// ErrorResponse is the error body written by every handler
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// QuotaErrorResponse is the error body for quota_exceeded
type QuotaErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Current int    `json:"current"`
	Limit   int    `json:"limit"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a {error, details} body with the given status code
func WriteError(w http.ResponseWriter, status int, reason, details string) {
	_ = WriteJSON(w, status, ErrorResponse{Error: reason, Details: details})
}

// WriteBadRequest writes an invalid_input error (400)
func WriteBadRequest(w http.ResponseWriter, details string) {
	WriteError(w, http.StatusBadRequest, ReasonInvalidInput, details)
}

// WriteUnauthorized writes an unauthorized error (401)
func WriteUnauthorized(w http.ResponseWriter, details string) {
	WriteError(w, http.StatusUnauthorized, ReasonUnauthorized, details)
}

// WriteQuotaExceeded writes a quota_exceeded error (403) carrying the usage figures
func WriteQuotaExceeded(w http.ResponseWriter, details string, current, limit int) {
	_ = WriteJSON(w, http.StatusForbidden, QuotaErrorResponse{
		Error:   ReasonQuotaExceeded,
		Details: details,
		Current: current,
		Limit:   limit,
	})
}

// WriteNotFound writes a not_found error (404)
func WriteNotFound(w http.ResponseWriter, details string) {
	WriteError(w, http.StatusNotFound, ReasonNotFound, details)
}

// WriteTooManyRequests writes a rate_limited error (429)
func WriteTooManyRequests(w http.ResponseWriter, details string) {
	WriteError(w, http.StatusTooManyRequests, ReasonRateLimited, details)
}

// WriteInternalError writes an internal_error (500). The error text is only
// exposed when exposeDetails is set (development mode).
func WriteInternalError(w http.ResponseWriter, err error, exposeDetails bool) {
	details := "an unexpected error occurred"
	if exposeDetails && err != nil {
		details = err.Error()
	}
	WriteError(w, http.StatusInternalServerError, ReasonInternalError, details)
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
