package kodidb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

// ErrPersistence indicates a library database write failed. Callers report
// it and continue with the next file.
var ErrPersistence = errors.New("library write failed")

// unsetStream is the value Kodi stores when no track selection exists.
const unsetStream = -1

// Store provides access to a Kodi MyVideos database. Mutating operations
// serialize across processes through a sidecar lock file; the lock is
// scoped to the individual write so it is never held while a prompt waits
// for input.
type Store struct {
	db   *sql.DB
	path string
	lock *flock.Flock
}

// Settings mirrors the per-file row in Kodi's settings table.
type Settings struct {
	Exists         bool
	AudioStream    int
	SubtitleStream int
	SubtitlesOn    bool
}

// Open connects to the database at path. No lock is taken here; reads run
// unguarded and each write acquires the sidecar lock for its own duration.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open library db: %w", err)
	}
	// Kodi owns this database; do not alter its journal mode, just wait
	// out transient locks.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragma: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open library db: %w", err)
	}
	return &Store{db: db, path: path, lock: flock.New(path + ".lock")}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// withWriteLock runs fn holding the cross-process write lock. Writes are a
// handful of statements, so a concurrent run waits rather than failing.
func (s *Store) withWriteLock(fn func() error) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("%w: acquire library lock: %s", ErrPersistence, err)
	}
	defer s.lock.Unlock()
	return fn()
}

// FileID resolves a media path to Kodi's file identifier. Matching is by
// file name suffix against the movie path column, mirroring how the
// library records paths independently of local mount points.
func (s *Store) FileID(ctx context.Context, mediaPath string) (int64, bool, error) {
	name := filepath.Base(mediaPath)
	row := s.db.QueryRowContext(ctx, `SELECT idFile FROM movie WHERE c22 LIKE ? ORDER BY idFile LIMIT 1`, "%"+name)
	var id int64
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("lookup file id: %w", err)
	}
	return id, true, nil
}

// AudioLanguage returns the language tag of the file's currently selected
// audio stream as the library recorded it. ok is false when the library
// holds no stream details for the file or the selection refers to a
// stream outside the file (assumed external audio).
func (s *Store) AudioLanguage(ctx context.Context, fileID int64) (lang string, ok bool, err error) {
	selected := 0
	row := s.db.QueryRowContext(ctx, `SELECT AudioStream FROM settings WHERE idFile = ?`, fileID)
	var stream sql.NullInt64
	if scanErr := row.Scan(&stream); scanErr != nil && !errors.Is(scanErr, sql.ErrNoRows) {
		return "", false, fmt.Errorf("read audio stream setting: %w", scanErr)
	}
	if stream.Valid && stream.Int64 != unsetStream {
		selected = int(stream.Int64)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT strAudioLanguage FROM streamdetails WHERE idFile = ? AND iStreamType = 1`, fileID)
	if err != nil {
		return "", false, fmt.Errorf("read stream details: %w", err)
	}
	defer rows.Close()

	var languages []string
	for rows.Next() {
		var value sql.NullString
		if err := rows.Scan(&value); err != nil {
			return "", false, fmt.Errorf("scan stream details: %w", err)
		}
		languages = append(languages, value.String)
	}
	if err := rows.Err(); err != nil {
		return "", false, err
	}

	if len(languages) == 0 || selected >= len(languages) {
		return "", false, nil
	}
	return languages[selected], true, nil
}

// GetSettings returns the recorded playback settings for a file.
func (s *Store) GetSettings(ctx context.Context, fileID int64) (Settings, error) {
	row := s.db.QueryRowContext(ctx, `SELECT AudioStream, SubtitleStream, SubtitlesOn FROM settings WHERE idFile = ?`, fileID)
	var (
		audio    sql.NullInt64
		subtitle sql.NullInt64
		subsOn   sql.NullInt64
	)
	if err := row.Scan(&audio, &subtitle, &subsOn); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Settings{AudioStream: unsetStream, SubtitleStream: unsetStream}, nil
		}
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	settings := Settings{Exists: true, AudioStream: unsetStream, SubtitleStream: unsetStream}
	if audio.Valid {
		settings.AudioStream = int(audio.Int64)
	}
	if subtitle.Valid {
		settings.SubtitleStream = int(subtitle.Int64)
	}
	settings.SubtitlesOn = subsOn.Valid && subsOn.Int64 == 1
	return settings, nil
}

// HasSubtitleSettings reports whether the library already records an
// active subtitle selection for the file.
func (s *Store) HasSubtitleSettings(ctx context.Context, fileID int64) (bool, error) {
	settings, err := s.GetSettings(ctx, fileID)
	if err != nil {
		return false, err
	}
	return settings.Exists && settings.SubtitleStream != unsetStream && settings.SubtitlesOn, nil
}

// HasAudioSettings reports whether the library already records an audio
// track selection for the file.
func (s *Store) HasAudioSettings(ctx context.Context, fileID int64) (bool, error) {
	settings, err := s.GetSettings(ctx, fileID)
	if err != nil {
		return false, err
	}
	return settings.Exists && settings.AudioStream != unsetStream, nil
}

// SetSubtitle records a subtitle track selection. When a different track
// is already set the write is refused unless force is true; re-selecting
// the recorded track just switches subtitles back on. The applied return
// reports whether the database was updated.
func (s *Store) SetSubtitle(ctx context.Context, fileID int64, track int, force bool) (applied bool, err error) {
	err = s.withWriteLock(func() error {
		settings, err := s.GetSettings(ctx, fileID)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrPersistence, err)
		}
		if settings.Exists && settings.SubtitleStream != unsetStream {
			if settings.SubtitleStream == track {
				if _, err := s.db.ExecContext(ctx, `UPDATE settings SET SubtitlesOn = 1 WHERE idFile = ?`, fileID); err != nil {
					return fmt.Errorf("%w: enable subtitles: %s", ErrPersistence, err)
				}
				applied = true
				return nil
			}
			if !force {
				return nil
			}
		}
		if !settings.Exists {
			if err := s.insertSettingsRow(ctx, fileID); err != nil {
				return err
			}
		}
		if _, err := s.db.ExecContext(ctx, `UPDATE settings SET SubtitleStream = ?, SubtitlesOn = 1 WHERE idFile = ?`, track, fileID); err != nil {
			return fmt.Errorf("%w: set subtitle stream: %s", ErrPersistence, err)
		}
		applied = true
		return nil
	})
	return applied, err
}

// DisableSubtitles switches subtitles off for a file that has a settings
// row. Files without one already play without subtitles.
func (s *Store) DisableSubtitles(ctx context.Context, fileID int64) error {
	return s.withWriteLock(func() error {
		settings, err := s.GetSettings(ctx, fileID)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrPersistence, err)
		}
		if !settings.Exists {
			return nil
		}
		if _, err := s.db.ExecContext(ctx, `UPDATE settings SET SubtitlesOn = 0 WHERE idFile = ?`, fileID); err != nil {
			return fmt.Errorf("%w: disable subtitles: %s", ErrPersistence, err)
		}
		return nil
	})
}

// SetAudio records an audio track selection with the same conflict rules
// as SetSubtitle.
func (s *Store) SetAudio(ctx context.Context, fileID int64, track int, force bool) (applied bool, err error) {
	err = s.withWriteLock(func() error {
		settings, err := s.GetSettings(ctx, fileID)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrPersistence, err)
		}
		if settings.Exists && settings.AudioStream != unsetStream {
			if settings.AudioStream == track {
				applied = true
				return nil
			}
			if !force {
				return nil
			}
		}
		if !settings.Exists {
			if err := s.insertSettingsRow(ctx, fileID); err != nil {
				return err
			}
		}
		if _, err := s.db.ExecContext(ctx, `UPDATE settings SET AudioStream = ? WHERE idFile = ?`, track, fileID); err != nil {
			return fmt.Errorf("%w: set audio stream: %s", ErrPersistence, err)
		}
		applied = true
		return nil
	})
	return applied, err
}

// insertSettingsRow creates a settings row with Kodi's defaults for every
// column the player expects to be populated.
func (s *Store) insertSettingsRow(ctx context.Context, fileID int64) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO settings (
        idFile, Deinterlace, ViewMode, ZoomAmount, PixelRatio, VerticalShift,
        AudioStream, SubtitleStream, SubtitleDelay, SubtitlesOn,
        Brightness, Contrast, Gamma, VolumeAmplification, AudioDelay,
        ResumeTime, Sharpness, NoiseReduction, NonLinStretch, PostProcess,
        ScalingMethod, DeinterlaceMode, StereoMode, StereoInvert, VideoStream,
        TonemapMethod, TonemapParam, Orientation, CenterMixLevel
    ) VALUES (?, 1, 0, 1.0, 1.0, 0.0, -1, -1, 0.0, 1, 50.0, 50.0, 20.0, 0.0, 0.0,
        0, 0.0, 0.0, 0, 0, 1, NULL, 0, 0, -1, 1, 1.0, 0, 0)`, fileID)
	if err != nil {
		return fmt.Errorf("%w: insert settings row: %s", ErrPersistence, err)
	}
	return nil
}
