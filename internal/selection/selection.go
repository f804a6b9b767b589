package selection

import (
	"autosubs/internal/language"
	"autosubs/internal/media/info"
)

// Config carries the run-wide settings the policy needs. It is threaded in
// explicitly; the policy keeps no state of its own.
type Config struct {
	Target       language.Lang
	AudioEnabled bool
}

// LibraryState is the player's recorded selection for one file.
type LibraryState struct {
	// AudioIndex is the per-type index of the currently selected audio
	// track, with the player default already applied (never negative).
	AudioIndex int
	// SubtitleIndex is the recorded subtitle selection, nil when none.
	SubtitleIndex *int
	// SubtitlesOn reports whether subtitles are enabled for the file.
	SubtitlesOn bool
}

// Decision is the policy outcome for one file.
type Decision struct {
	// AudioIndex is set only when the audio feature is enabled and a
	// better default track was found.
	AudioIndex *int
	// SubtitleIndex is the subtitle track to enable, nil when no track
	// should be enabled.
	SubtitleIndex *int
	// SubtitlesOff is true when the cascade ran and found no candidate:
	// subtitles should be explicitly off. It stays false when the
	// effective audio language already matches the target and subtitles
	// were not evaluated at all.
	SubtitlesOff bool
	// NeedsChange is true iff either field differs from the recorded
	// library state.
	NeedsChange bool
}

// Decide computes the recommended track selection for a file.
//
// The audio recommendation picks the first non-default, non-commentary
// track in native order. The heuristic deliberately ignores track
// language, so dubbed alternates can produce false positives; callers are
// expected to confirm interactively.
//
// The subtitle cascade runs only when the effective default audio language
// does not match the target: external sidecar, then first forced, first
// default, first target-language embedded track, then none.
func Decide(file info.FileInfo, state LibraryState, cfg Config) Decision {
	var decision Decision

	if cfg.AudioEnabled {
		if rec, ok := recommendAudio(file.Audio); ok && rec.Index != state.AudioIndex {
			idx := rec.Index
			decision.AudioIndex = &idx
		}
	}
	audioChanged := decision.AudioIndex != nil

	effective := ""
	if decision.AudioIndex != nil {
		effective = file.Audio[*decision.AudioIndex].Language
	} else if current, ok := file.SelectedAudio(state.AudioIndex); ok {
		effective = current.Language
	}
	if cfg.Target.Matches(effective) {
		decision.NeedsChange = audioChanged
		return decision
	}

	if winner, ok := pickSubtitle(file.Subtitles, cfg.Target); ok {
		idx := winner.Index
		decision.SubtitleIndex = &idx
		subtitleChanged := state.SubtitleIndex == nil || *state.SubtitleIndex != idx || !state.SubtitlesOn
		decision.NeedsChange = audioChanged || subtitleChanged
		return decision
	}

	// No candidate: subtitles should be off, which is still a change when
	// the library currently has a track enabled.
	decision.SubtitlesOff = true
	subtitleChanged := state.SubtitlesOn && state.SubtitleIndex != nil
	decision.NeedsChange = audioChanged || subtitleChanged
	return decision
}

func recommendAudio(tracks []info.Track) (info.Track, bool) {
	for _, track := range tracks {
		if !track.Default && !track.Commentary {
			return track, true
		}
	}
	return info.Track{}, false
}

func pickSubtitle(tracks []info.Track, target language.Lang) (info.Track, bool) {
	for _, track := range tracks {
		if track.External {
			return track, true
		}
	}
	for _, track := range tracks {
		if track.Forced {
			return track, true
		}
	}
	for _, track := range tracks {
		if track.Default {
			return track, true
		}
	}
	// Among equal language matches, prefer tracks not marked SDH; fall
	// back to the first match when all are.
	var fallback *info.Track
	for i := range tracks {
		track := tracks[i]
		if !target.Matches(track.Language) {
			continue
		}
		if !track.IsSDH() {
			return track, true
		}
		if fallback == nil {
			fallback = &tracks[i]
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return info.Track{}, false
}
