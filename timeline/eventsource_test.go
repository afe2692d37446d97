// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestEventReaderBasic(t *testing.T) {
	t.Parallel()

	input := "event: stream_start\ndata: {\"agent_id\":5,\"temp_id\":\"t1\"}\n\nevent: ping\ndata: {}\n\n"
	reader := NewEventReader(strings.NewReader(input))

	event, err := reader.Read()
	if err != nil {
		t.Fatalf("first Read: %v", err)
	}
	if event.Name != "stream_start" {
		t.Errorf("event.Name = %q, want stream_start", event.Name)
	}
	if event.Data != `{"agent_id":5,"temp_id":"t1"}` {
		t.Errorf("event.Data = %q, want JSON", event.Data)
	}

	event, err = reader.Read()
	if err != nil {
		t.Fatalf("second Read: %v", err)
	}
	if event.Name != "ping" {
		t.Errorf("event.Name = %q, want ping", event.Name)
	}

	if _, err := reader.Read(); err != io.EOF {
		t.Errorf("Read at end = %v, want io.EOF", err)
	}
}

func TestEventReaderMultipleDataLines(t *testing.T) {
	t.Parallel()

	// Per the SSE spec, multiple data lines are joined with newlines.
	input := "data: line one\ndata: line two\n\n"
	reader := NewEventReader(strings.NewReader(input))

	event, err := reader.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if event.Name != "" {
		t.Errorf("event.Name = %q, want empty", event.Name)
	}
	if event.Data != "line one\nline two" {
		t.Errorf("event.Data = %q", event.Data)
	}
}

func TestEventReaderCommentsAndUnknownFields(t *testing.T) {
	t.Parallel()

	input := ": keepalive\nid: 42\nretry: 1000\nfancy: field\nevent: stream_end\ndata: {\"agent_id\":5}\n\n"
	reader := NewEventReader(strings.NewReader(input))

	event, err := reader.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if event.Name != "stream_end" {
		t.Errorf("event.Name = %q, want stream_end", event.Name)
	}
	if event.Data != `{"agent_id":5}` {
		t.Errorf("event.Data = %q", event.Data)
	}
}

func TestEventReaderCRLF(t *testing.T) {
	t.Parallel()

	input := "event: new_message\r\ndata: {}\r\n\r\n"
	reader := NewEventReader(strings.NewReader(input))

	event, err := reader.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if event.Name != "new_message" || event.Data != "{}" {
		t.Errorf("event = %+v", event)
	}
}

func TestEventReaderNoSpaceAfterColon(t *testing.T) {
	t.Parallel()

	reader := NewEventReader(strings.NewReader("data:tight\n\n"))
	event, err := reader.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if event.Data != "tight" {
		t.Errorf("event.Data = %q, want tight", event.Data)
	}
}

func TestEventReaderTrailingPartialEvent(t *testing.T) {
	t.Parallel()

	// A stream cut mid-event still delivers the accumulated data
	// before reporting EOF.
	reader := NewEventReader(strings.NewReader("event: content_delta\ndata: {\"delta\":\"He\"}"))

	event, err := reader.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if event.Name != "content_delta" || event.Data != `{"delta":"He"}` {
		t.Errorf("event = %+v", event)
	}

	if _, err := reader.Read(); err != io.EOF {
		t.Errorf("Read after partial event = %v, want io.EOF", err)
	}
}

func TestEventReaderEmptyBlocks(t *testing.T) {
	t.Parallel()

	// Keepalive comments followed by blank lines produce no events.
	reader := NewEventReader(strings.NewReader(": ping\n\n: ping\n\nevent: x\ndata: y\n\n"))

	event, err := reader.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if event.Name != "x" || event.Data != "y" {
		t.Errorf("event = %+v", event)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestEventReaderPropagatesError(t *testing.T) {
	t.Parallel()

	reader := NewEventReader(failingReader{})
	if _, err := reader.Read(); err == nil || err == io.EOF {
		t.Fatalf("Read = %v, want transport error", err)
	}
}
