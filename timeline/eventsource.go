// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"bufio"
	"io"
	"strings"
)

// WireEvent is a single event parsed from the room's event stream,
// which follows the W3C Server-Sent Events wire format.
type WireEvent struct {
	// Name is the event type from the "event:" field. Empty when the
	// server sent no event field (the SSE default event type); the
	// dispatcher treats unnamed events as keepalives.
	Name string

	// Data is the event payload, assembled from one or more "data:"
	// lines. Multiple data lines are joined with newlines per the SSE
	// specification.
	Data string
}

// EventReader reads events from a room stream connection.
//
// Events are delimited by blank lines. Within an event, "data:" lines
// carry the payload and an "event:" line names the event. Comment
// lines (starting with ":") — which the server uses as keepalives —
// and unknown fields are ignored.
//
//	reader := NewEventReader(body)
//	for {
//	    event, err := reader.Read()
//	    if err != nil {
//	        break // io.EOF on clean stream end
//	    }
//	    dispatch(event)
//	}
type EventReader struct {
	reader *bufio.Reader
	err    error
}

// NewEventReader creates an EventReader over r, typically the
// response body returned by [Client.OpenStream].
func NewEventReader(r io.Reader) *EventReader {
	return &EventReader{reader: bufio.NewReaderSize(r, 64*1024)}
}

// Read returns the next event from the stream. Returns io.EOF when
// the stream ends cleanly, or the underlying read error otherwise. A
// partial event interrupted by EOF (data lines with no terminating
// blank line) is delivered before the EOF is reported.
func (er *EventReader) Read() (WireEvent, error) {
	if er.err != nil {
		return WireEvent{}, er.err
	}

	var dataLines []string
	var name string
	hasData := false

	for {
		line, err := er.reader.ReadString('\n')

		if err != nil && line == "" {
			er.err = err
			if err == io.EOF && hasData {
				// Emit the trailing partial event; the stored EOF is
				// returned on the next call.
				return WireEvent{Name: name, Data: strings.Join(dataLines, "\n")}, nil
			}
			return WireEvent{}, err
		}

		line = strings.TrimRight(line, "\r\n")

		// Blank line = event boundary.
		if line == "" {
			if hasData {
				return WireEvent{Name: name, Data: strings.Join(dataLines, "\n")}, nil
			}
			// Empty block (e.g. consecutive keepalive comments) —
			// keep scanning.
			name = ""
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, hasColon := strings.Cut(line, ":")
		if !hasColon {
			// A line without a colon is a field name with empty value.
			field = line
			value = ""
		} else {
			// The SSE format strips exactly one leading space from
			// the value.
			value = strings.TrimPrefix(value, " ")
		}

		switch field {
		case "data":
			dataLines = append(dataLines, value)
			hasData = true
		case "event":
			name = value
		case "id", "retry":
			// Recognized fields this client does not use.
		default:
			// Unknown fields are ignored per the SSE specification.
		}
	}
}
