// Package session orchestrates the per-file decision flow: skip
// shortcuts, metadata extraction, track classification, the selection
// policy, optional user confirmation, and persistence into the library
// database. One bad file never aborts the batch.
package session
