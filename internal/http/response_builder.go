// Package http provides the JSON API server and its handlers.
//
// This file implements the Builder Pattern for constructing JSON responses.
// Every body is an envelope with a "success" flag; successful responses add
// named fields next to it and failures carry a single "error" message.

package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// JSONResponseBuilder provides a fluent API for building envelope responses.
type JSONResponseBuilder struct {
	statusCode int
	fields     map[string]any
	headers    map[string]string
}

// NewJSONResponse creates a new successful response builder with 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		fields:     map[string]any{"success": true},
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Field adds a named value to the envelope.
func (b *JSONResponseBuilder) Field(name string, value any) *JSONResponseBuilder {
	b.fields[name] = value
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Created is a convenience for 201 responses carrying one record.
func (b *JSONResponseBuilder) Created(name string, value any) *JSONResponseBuilder {
	return b.Status(http.StatusCreated).Field(name, value)
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	body, err := json.Marshal(b.fields)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"error":"internal error"}`))
		return
	}

	w.WriteHeader(b.statusCode)
	_, _ = w.Write(body)
}

// ErrorResponse creates a failed envelope with the given status and message.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: statusCode,
		fields:     map[string]any{"success": false, "error": message},
		headers:    make(map[string]string),
	}
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnauthorizedError creates a 401 response with a bearer challenge.
func UnauthorizedError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, message).
		Header("WWW-Authenticate", `Bearer realm="fintrack"`)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// ConflictError creates a 409 Conflict error response.
func ConflictError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusConflict, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// MethodNotAllowedError creates a 405 Method Not Allowed error response.
func MethodNotAllowedError(allowedMethods string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").
		Header("Allow", allowedMethods)
}

// TooManyRequestsError creates a 429 response for rate limited clients.
func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later")
}
