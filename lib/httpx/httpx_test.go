// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package httpx

import (
	"strings"
	"testing"
)

func TestReadResponse(t *testing.T) {
	data, err := ReadResponse(strings.NewReader(`{"ok":true}`))
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Fatalf("ReadResponse = %q", data)
	}
}

func TestDecodeResponse(t *testing.T) {
	var payload struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	if err := DecodeResponse(strings.NewReader(`{"id":7,"name":"scribe"}`), &payload); err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if payload.ID != 7 || payload.Name != "scribe" {
		t.Fatalf("DecodeResponse = %+v", payload)
	}
}

func TestDecodeResponseInvalidJSON(t *testing.T) {
	var payload map[string]any
	if err := DecodeResponse(strings.NewReader("not json"), &payload); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestErrorBody(t *testing.T) {
	if got := ErrorBody(strings.NewReader("gateway timeout")); got != "gateway timeout" {
		t.Fatalf("ErrorBody = %q", got)
	}
}
