// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual stream properties plus tag/disposition helpers
//
// Primary entry point:
//   - Inspect: executes ffprobe and returns a parsed Result
package ffprobe
