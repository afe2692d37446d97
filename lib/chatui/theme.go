// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import "github.com/charmbracelet/lipgloss"

// Theme defines the color palette for the chat viewer. All colors use
// lipgloss ANSI 256-color codes for broad terminal compatibility.
type Theme struct {
	// Text colors.
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Speaker labels.
	UserName  lipgloss.Color
	AgentName lipgloss.Color

	// Streaming placeholder accents.
	StreamingText lipgloss.Color
	ThinkingText  lipgloss.Color
	NarrationText lipgloss.Color

	// Connection status indicator.
	StatusLive    lipgloss.Color // Push channel connected.
	StatusPolling lipgloss.Color // Poll fallback only.
	StatusOffline lipgloss.Color // Neither channel healthy.

	// UI chrome.
	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color
	ErrorText        lipgloss.Color
}

// DefaultTheme is the built-in dark-terminal color scheme.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("243"),

	UserName:  lipgloss.Color("117"),
	AgentName: lipgloss.Color("150"),

	StreamingText: lipgloss.Color("189"),
	ThinkingText:  lipgloss.Color("245"),
	NarrationText: lipgloss.Color("180"),

	StatusLive:    lipgloss.Color("114"),
	StatusPolling: lipgloss.Color("221"),
	StatusOffline: lipgloss.Color("203"),

	HeaderForeground: lipgloss.Color("230"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("243"),
	ErrorText:        lipgloss.Color("203"),
}
