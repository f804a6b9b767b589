// Package language normalizes ISO 639 language identifiers and full
// English names to a canonical form used for track matching.
package language
