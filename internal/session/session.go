package session

import (
	"context"
	"fmt"
	"log/slog"

	"autosubs/internal/kodidb"
	"autosubs/internal/media/ffprobe"
	"autosubs/internal/media/info"
	"autosubs/internal/selection"
)

// Extractor produces raw stream metadata for a media file.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]ffprobe.Stream, error)
}

// Library is the media-library state collaborator, keyed by file path via
// FileID. *kodidb.Store satisfies it.
type Library interface {
	FileID(ctx context.Context, mediaPath string) (int64, bool, error)
	AudioLanguage(ctx context.Context, fileID int64) (lang string, ok bool, err error)
	HasSubtitleSettings(ctx context.Context, fileID int64) (bool, error)
	HasAudioSettings(ctx context.Context, fileID int64) (bool, error)
	GetSettings(ctx context.Context, fileID int64) (kodidb.Settings, error)
	SetSubtitle(ctx context.Context, fileID int64, track int, force bool) (bool, error)
	SetAudio(ctx context.Context, fileID int64, track int, force bool) (bool, error)
	DisableSubtitles(ctx context.Context, fileID int64) error
}

// Confirmer resolves the policy recommendation into a final choice. The
// session never holds database transactions across these calls; a prompt
// may block on user input indefinitely.
type Confirmer interface {
	// ChooseSubtitle presents the candidate subtitle tracks with the
	// recommended one as the default answer. Returns the chosen per-type
	// index, or accepted=false to leave the file untouched.
	ChooseSubtitle(file info.FileInfo, recommended *info.Track) (choice int, accepted bool)
	// ChooseAudio presents the audio tracks with the recommended
	// alternative as the default answer.
	ChooseAudio(file info.FileInfo, recommended *info.Track) (choice int, accepted bool)
	// ConfirmOverwrite asks whether a differing selection already in the
	// library should be replaced.
	ConfirmOverwrite(kind string) bool
}

// Options carries the run-wide configuration for a session.
type Options struct {
	Selection  selection.Config
	UpdateOnly bool
	FastMode   bool
	Quiet      bool
}

// Failure records one file the session could not process.
type Failure struct {
	Path string
	Err  error
}

// Summary aggregates the outcome of a run.
type Summary struct {
	Processed int
	Changed   int
	Skipped   int
	Failed    int
	Failures  []Failure
}

// Session processes files one at a time: skip shortcuts, extraction,
// classification, policy, confirmation, persistence. A failing file is
// recorded and the batch continues.
type Session struct {
	library   Library
	extractor Extractor
	confirmer Confirmer
	opts      Options
	logger    *slog.Logger
}

// New constructs a session. A nil confirmer auto-accepts recommendations
// and never overwrites, which is what quiet mode wants.
func New(library Library, extractor Extractor, confirmer Confirmer, opts Options, logger *slog.Logger) *Session {
	if confirmer == nil {
		confirmer = autoConfirm{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Quiet {
		// Quiet implies the safe skip modes and disables the audio
		// feature; prompts are replaced by automatic acceptance.
		opts.UpdateOnly = true
		opts.FastMode = true
		opts.Selection.AudioEnabled = false
		confirmer = autoConfirm{}
	}
	return &Session{
		library:   library,
		extractor: extractor,
		confirmer: confirmer,
		opts:      opts,
		logger:    logger.With("component", "session"),
	}
}

// Run processes the given files sequentially and returns the run summary.
func (s *Session) Run(ctx context.Context, files []string) Summary {
	summary := Summary{}
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			break
		}
		s.logger.Info("processing file", "n", i+1, "total", len(files), "path", path)
		summary.Processed++
		changed, skipped, err := s.processFile(ctx, path)
		switch {
		case err != nil:
			summary.Failed++
			summary.Failures = append(summary.Failures, Failure{Path: path, Err: err})
			s.logger.Error("file failed", "path", path, "error", err)
		case skipped:
			summary.Skipped++
		case changed:
			summary.Changed++
		}
	}
	return summary
}

func (s *Session) processFile(ctx context.Context, path string) (changed, skipped bool, err error) {
	fileID, known, err := s.library.FileID(ctx, path)
	if err != nil {
		return false, false, err
	}
	if !known {
		s.logger.Warn("file not in library database", "path", path)
		return false, true, nil
	}

	canSubtitles, canAudio, err := s.applySkipShortcuts(ctx, fileID)
	if err != nil {
		return false, false, err
	}
	if !canSubtitles && !canAudio {
		s.logger.Debug("skipping file, nothing to update", "path", path)
		return false, true, nil
	}

	// Skip shortcuts exhausted; only now pay for extraction.
	streams, err := s.extractor.Extract(ctx, path)
	if err != nil {
		return false, false, err
	}
	file, err := info.Classify(path, streams, info.ExternalSubtitle(path))
	if err != nil {
		return false, false, err
	}
	for _, warning := range file.Warnings {
		s.logger.Warn(warning, "path", path)
	}

	settings, err := s.library.GetSettings(ctx, fileID)
	if err != nil {
		return false, false, err
	}
	state := libraryState(settings)

	cfg := s.opts.Selection
	cfg.AudioEnabled = cfg.AudioEnabled && canAudio
	decision := selection.Decide(file, state, cfg)
	if !decision.NeedsChange {
		s.logger.Debug("no change needed", "path", path)
		return false, false, nil
	}

	if canSubtitles {
		applied, err := s.applySubtitleDecision(ctx, fileID, file, state, decision)
		if err != nil {
			return changed, false, err
		}
		changed = changed || applied
	}
	if canAudio && decision.AudioIndex != nil {
		applied, err := s.applyAudioDecision(ctx, fileID, file, decision)
		if err != nil {
			return changed, false, err
		}
		changed = changed || applied
	}
	return changed, false, nil
}

// applySkipShortcuts evaluates update-only and fast-mode without touching
// the file itself, so configured files cost a handful of library reads.
func (s *Session) applySkipShortcuts(ctx context.Context, fileID int64) (canSubtitles, canAudio bool, err error) {
	canSubtitles = true
	canAudio = s.opts.Selection.AudioEnabled

	if s.opts.FastMode {
		lang, ok, err := s.library.AudioLanguage(ctx, fileID)
		if err != nil {
			return false, false, err
		}
		if !ok {
			s.logger.Warn("library has no usable stream details, verifying with extraction", "file_id", fileID)
		} else if s.opts.Selection.Target.Matches(lang) {
			canSubtitles = false
		}
	}
	if canSubtitles && s.opts.UpdateOnly {
		has, err := s.library.HasSubtitleSettings(ctx, fileID)
		if err != nil {
			return false, false, err
		}
		if has {
			canSubtitles = false
		}
	}
	if canAudio && s.opts.UpdateOnly {
		has, err := s.library.HasAudioSettings(ctx, fileID)
		if err != nil {
			return false, false, err
		}
		if has {
			canAudio = false
		}
	}
	return canSubtitles, canAudio, nil
}

func (s *Session) applySubtitleDecision(ctx context.Context, fileID int64, file info.FileInfo, state selection.LibraryState, decision selection.Decision) (bool, error) {
	if decision.SubtitlesOff {
		if state.SubtitleIndex == nil || !state.SubtitlesOn {
			return false, nil
		}
		if s.opts.Quiet {
			// Quiet mode never unsets an existing user choice.
			s.logger.Info("no subtitle candidate, leaving existing selection", "file_id", fileID)
			return false, nil
		}
		if !s.confirmer.ConfirmOverwrite("subtitle") {
			return false, nil
		}
		if err := s.library.DisableSubtitles(ctx, fileID); err != nil {
			return false, err
		}
		s.logger.Info("subtitles disabled", "file_id", fileID)
		return true, nil
	}
	if decision.SubtitleIndex == nil {
		return false, nil
	}

	recommended := file.Subtitles[*decision.SubtitleIndex]
	choice, accepted := s.confirmer.ChooseSubtitle(file, &recommended)
	if !accepted {
		s.logger.Info("subtitle change declined", "file_id", fileID)
		return false, nil
	}
	if choice < 0 || choice >= len(file.Subtitles) {
		return false, fmt.Errorf("subtitle choice %d out of range", choice)
	}

	applied, err := s.library.SetSubtitle(ctx, fileID, choice, false)
	if err != nil {
		return false, err
	}
	if !applied {
		if s.opts.Quiet || !s.confirmer.ConfirmOverwrite("subtitle") {
			s.logger.Info("different subtitle previously set, leaving it", "file_id", fileID)
			return false, nil
		}
		if applied, err = s.library.SetSubtitle(ctx, fileID, choice, true); err != nil {
			return false, err
		}
	}
	if applied {
		s.logger.Info("subtitle track set", "file_id", fileID, "track", choice)
	}
	return applied, nil
}

func (s *Session) applyAudioDecision(ctx context.Context, fileID int64, file info.FileInfo, decision selection.Decision) (bool, error) {
	recommended := file.Audio[*decision.AudioIndex]
	choice, accepted := s.confirmer.ChooseAudio(file, &recommended)
	if !accepted {
		s.logger.Info("audio change declined", "file_id", fileID)
		return false, nil
	}
	if choice < 0 || choice >= len(file.Audio) {
		return false, fmt.Errorf("audio choice %d out of range", choice)
	}

	applied, err := s.library.SetAudio(ctx, fileID, choice, false)
	if err != nil {
		return false, err
	}
	if !applied {
		if s.opts.Quiet || !s.confirmer.ConfirmOverwrite("audio") {
			s.logger.Info("different audio stream previously set, leaving it", "file_id", fileID)
			return false, nil
		}
		if applied, err = s.library.SetAudio(ctx, fileID, choice, true); err != nil {
			return false, err
		}
	}
	if applied {
		s.logger.Info("audio track set", "file_id", fileID, "track", choice)
	}
	return applied, nil
}

func libraryState(settings kodidb.Settings) selection.LibraryState {
	state := selection.LibraryState{SubtitlesOn: settings.SubtitlesOn}
	if settings.Exists && settings.AudioStream >= 0 {
		state.AudioIndex = settings.AudioStream
	}
	if settings.Exists && settings.SubtitleStream >= 0 {
		idx := settings.SubtitleStream
		state.SubtitleIndex = &idx
	}
	return state
}

// autoConfirm accepts every recommendation and refuses every overwrite.
type autoConfirm struct{}

func (autoConfirm) ChooseSubtitle(_ info.FileInfo, recommended *info.Track) (int, bool) {
	if recommended == nil {
		return 0, false
	}
	return recommended.Index, true
}

func (autoConfirm) ChooseAudio(_ info.FileInfo, recommended *info.Track) (int, bool) {
	if recommended == nil {
		return 0, false
	}
	return recommended.Index, true
}

func (autoConfirm) ConfirmOverwrite(string) bool { return false }
