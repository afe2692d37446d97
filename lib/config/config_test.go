// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "parley.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvVar, "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.BaseURL != "http://localhost:8787" {
		t.Fatalf("default base_url = %q", cfg.Server.BaseURL)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  base_url: https://parley.example.com
poll:
  active_interval: 5s
  safety_interval: 1m
viewer:
  room: 7
  display_name: Operator
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.BaseURL != "https://parley.example.com" {
		t.Fatalf("base_url = %q", cfg.Server.BaseURL)
	}
	if cfg.Poll.ActiveInterval.Std() != 5*time.Second {
		t.Fatalf("active_interval = %v", cfg.Poll.ActiveInterval.Std())
	}
	if cfg.Poll.SafetyInterval.Std() != time.Minute {
		t.Fatalf("safety_interval = %v", cfg.Poll.SafetyInterval.Std())
	}
	if cfg.Viewer.Room != 7 || cfg.Viewer.DisplayName != "Operator" {
		t.Fatalf("viewer = %+v", cfg.Viewer)
	}
}

func TestLoadFromEnv(t *testing.T) {
	path := writeConfig(t, "server:\n  base_url: http://env.example\n")
	t.Setenv(EnvVar, path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.BaseURL != "http://env.example" {
		t.Fatalf("base_url = %q", cfg.Server.BaseURL)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadBadDuration(t *testing.T) {
	path := writeConfig(t, "poll:\n  active_interval: soon\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unparseable duration")
	}
}

func TestLoadEmptyBaseURL(t *testing.T) {
	path := writeConfig(t, "server:\n  base_url: \"\"\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for empty base_url")
	}
}
