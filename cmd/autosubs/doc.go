// Package main hosts the autosubs CLI entrypoint and command graph.
//
// The Cobra-based command tree covers one-shot library scans, a watch mode
// that follows Kodi's JSON-RPC notifications, and configuration
// scaffolding. It centralizes configuration resolution and logging setup so
// subcommands can focus on user experience instead of wiring.
package main
