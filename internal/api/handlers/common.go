// Package handlers provides HTTP request handlers for the tellix API.
// This file contains response helpers shared by all handlers.
package handlers

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/anstrom/tellix/internal/api/middleware"
	"github.com/anstrom/tellix/internal/errors"
	"github.com/anstrom/tellix/internal/logging"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, r *http.Request, logger *logging.Logger, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are gone, so only log
		logger.Error("Failed to encode JSON response",
			"request_id", middleware.GetRequestID(r),
			"error", err)
	}
}

// writeError writes an error response in the shape the middleware uses.
func writeError(w http.ResponseWriter, r *http.Request, logger *logging.Logger, statusCode int, err error) {
	if encErr := middleware.WriteError(w, r, statusCode, http.StatusText(statusCode), err.Error()); encErr != nil {
		logger.Error("Failed to encode JSON response",
			"request_id", middleware.GetRequestID(r),
			"error", encErr)
	}
}

// NotFound answers requests that match no route.
func NotFound(logger *logging.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, logger, http.StatusNotFound, fmt.Errorf("no route for %s", r.URL.Path))
	})
}

// MethodNotAllowed answers requests whose path exists under another method.
func MethodNotAllowed(logger *logging.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, logger, http.StatusMethodNotAllowed,
			fmt.Errorf("method %s is not allowed on %s", r.Method, r.URL.Path))
	})
}

// parseJSON decodes a single JSON value from the request body.
func parseJSON(r *http.Request, dest interface{}) error {
	if r.Body == nil || r.Body == http.NoBody {
		return fmt.Errorf("request body is empty")
	}

	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			return fmt.Errorf("request body too large (max %d bytes)", maxErr.Limit)
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// statusForError maps a probe error code onto an HTTP status.
func statusForError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if errors.IsClientError(err) {
		return http.StatusBadRequest
	}

	switch errors.GetCode(err) {
	case errors.CodeTimeout:
		return http.StatusGatewayTimeout
	case errors.CodeExecutionFailed, errors.CodeBinaryNotFound, errors.CodeOutputParse:
		return http.StatusBadGateway
	case errors.CodeCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
