// Package kodirpc implements a client for Kodi's TCP JSON-RPC service.
//
// Kodi pushes library and player notifications over the same socket it
// answers calls on, so the client runs a read loop that routes responses
// to pending calls and notifications to registered handlers.
package kodirpc
