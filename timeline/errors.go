// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"errors"
	"fmt"
)

// APIError represents a structured error response from the Parley
// server. Callers can use errors.As to extract the structured
// information:
//
//	var apiErr *timeline.APIError
//	if errors.As(err, &apiErr) {
//	    if apiErr.StatusCode == http.StatusNotFound { ... }
//	}
type APIError struct {
	// Code is the machine-readable error code (e.g., "room_not_found").
	Code string `json:"code"`
	// Message is the human-readable description from the server.
	Message string `json:"error"`
	// StatusCode is the HTTP status code of the response.
	StatusCode int `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("parley: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// IsStatus reports whether err is an *APIError with the given HTTP
// status code.
func IsStatus(err error, statusCode int) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == statusCode
	}
	return false
}
