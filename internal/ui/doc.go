// Package ui renders terminal output for the homecam command.
//
// Result boxes report the outcome of one-shot commands such as provision and
// resolve. The dashboard is a Bubble Tea program that polls a running
// daemon's /status endpoint and redraws connectivity, the bound frame source,
// live stream count and running listeners.
//
// Styling uses Lipgloss. Output that is not a terminal should go through the
// plain formatters in cmd/homecam instead.
package ui
