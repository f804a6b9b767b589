// Package info classifies extracted media streams into the track model
// the selection policy operates on.
package info
