// Package selection implements the track-selection decision policy: given
// a file's classified tracks and the player's recorded state, it decides
// whether the default audio track should be replaced and which subtitle
// track, if any, should be active.
package selection
