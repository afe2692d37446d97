// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package httpx provides bounded HTTP response body helpers.
//
// Every JSON API response read in this module goes through these
// helpers so that a misbehaving server cannot cause an unbounded
// allocation. They are for request/response bodies only — the SSE
// stream is read incrementally by the timeline package and never
// passes through here.
package httpx

import (
	"encoding/json"
	"fmt"
	"io"
)

// MaxResponseSize bounds JSON API response body reads: 64 MB. A room
// history response is the largest payload this client ever receives
// and it is orders of magnitude below this; the limit only exists to
// stop a pathological response from exhausting memory.
const MaxResponseSize int64 = 64 << 20

// ReadResponse reads a JSON API response body up to MaxResponseSize
// bytes. Use instead of io.ReadAll on HTTP response bodies.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// DecodeResponse reads a JSON API response body (up to MaxResponseSize
// bytes) and JSON-decodes it into v.
func DecodeResponse(body io.Reader, v any) error {
	data, err := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	return json.Unmarshal(data, v)
}

// ErrorBody reads an HTTP error response body and returns it as a
// string for diagnostic messages. Read errors are ignored — a partial
// or empty body is still useful in an error message.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	return string(data)
}
