// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// parley-viewer is a terminal UI for a Parley chat room. It keeps the
// room synchronized over a live event stream with an automatic polling
// fallback, renders agent responses as they stream in, and sends
// messages typed on the input line.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/parley-chat/parley/lib/chatui"
	"github.com/parley-chat/parley/lib/config"
	"github.com/parley-chat/parley/timeline"
)

// version is overridden at build time via
// -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var serverURL string
	var roomID int64
	var displayName string
	var logOutput string

	flagSet := pflag.NewFlagSet("parley-viewer", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to YAML config file (default: $"+config.EnvVar+")")
	flagSet.StringVar(&serverURL, "server", "", "Parley server base URL (overrides config)")
	flagSet.Int64Var(&roomID, "room", 0, "room ID to open (overrides config)")
	flagSet.StringVar(&displayName, "name", "", "participant name for outgoing messages (overrides config)")
	flagSet.StringVar(&logOutput, "log-output", "", "write JSON log records to this file")
	flagSet.BoolP("help", "h", false, "show help")

	// Handled before flag parsing so it works regardless of other
	// arguments.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Println("parley-viewer", version)
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if serverURL != "" {
		cfg.Server.BaseURL = serverURL
	}
	if roomID != 0 {
		cfg.Viewer.Room = roomID
	}
	if displayName != "" {
		cfg.Viewer.DisplayName = displayName
	}
	if cfg.Viewer.Room == 0 {
		return fmt.Errorf("no room selected: pass --room or set viewer.room in the config file")
	}

	logger, cleanup, err := newViewerLogger(logOutput)
	if err != nil {
		return err
	}
	defer cleanup()

	client, err := timeline.NewClient(timeline.ClientConfig{
		BaseURL:    cfg.Server.BaseURL,
		HTTPClient: &http.Client{},
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tl := timeline.NewTimeline(timeline.SessionConfig{
		Client: client,
		Logger: logger,
		Poll: timeline.PollerConfig{
			ActiveInterval: cfg.Poll.ActiveInterval.Std(),
			SafetyInterval: cfg.Poll.SafetyInterval.Std(),
			StatusInterval: cfg.Poll.StatusInterval.Std(),
			SendDebounce:   cfg.Poll.SendDebounce.Std(),
		},
	})
	defer tl.Close()

	session, err := tl.SwitchRoom(ctx, cfg.Viewer.Room)
	if err != nil {
		// The session is live and its loops retry; a failed initial
		// load only means the first screen may be empty.
		logger.Warn("initial room load failed",
			"room_id", cfg.Viewer.Room,
			"error", err,
		)
	}
	if session == nil {
		return fmt.Errorf("opening room %d failed", cfg.Viewer.Room)
	}

	model := chatui.NewModel(session, cfg.Viewer.DisplayName)
	program := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithReportFocus(),
	)
	_, err = program.Run()
	return err
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Parley chat viewer: an interactive terminal UI for a chat room.

The room stays synchronized over a live event stream; when the stream
is unavailable the viewer falls back to polling automatically and
recovers on its own.

Usage:
  parley-viewer [flags]

Examples:
  # Open room 7 on the default local server
  parley-viewer --room 7

  # Connect to a remote server with a display name
  parley-viewer --server https://parley.example.com --room 7 --name ben

  # Use a config file
  PARLEY_CONFIG=~/.config/parley/viewer.yaml parley-viewer

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}

// newViewerLogger builds the background logger. Without --log-output,
// records go to stderr: text when stderr is a terminal, JSON when
// piped. With --log-output, all records go to a JSON file instead,
// since stderr writes would corrupt the alt-screen display.
func newViewerLogger(logOutput string) (*slog.Logger, func(), error) {
	options := &slog.HandlerOptions{Level: slog.LevelInfo}

	if logOutput != "" {
		file, err := os.Create(logOutput)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot open log file %s: %w", logOutput, err)
		}
		logger := slog.New(slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug}))
		return logger, func() { file.Close() }, nil
	}

	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		// Warnings only: routine records would repaint over the TUI.
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler), func() {}, nil
}
