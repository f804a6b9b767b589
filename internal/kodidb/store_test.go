package kodidb

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"autosubs/internal/testsupport"
)

func mustOpen(t *testing.T, path string) *Store {
	t.Helper()
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestFileID(t *testing.T) {
	path := testsupport.NewVideosDB(t)
	testsupport.InsertMovie(t, path, 7, "Seven Samurai", "smb://nas/movies/Seven Samurai (1954).mkv")
	store := mustOpen(t, path)
	ctx := context.Background()

	// Matching is by file name, so a different local mount still resolves.
	id, ok, err := store.FileID(ctx, "/mnt/movies/Seven Samurai (1954).mkv")
	if err != nil {
		t.Fatalf("FileID: %v", err)
	}
	if !ok || id != 7 {
		t.Fatalf("FileID = (%d, %v), want (7, true)", id, ok)
	}

	_, ok, err = store.FileID(ctx, "/mnt/movies/Unknown.mkv")
	if err != nil {
		t.Fatalf("FileID: %v", err)
	}
	if ok {
		t.Fatal("expected unknown file to miss")
	}
}

func TestAudioLanguage(t *testing.T) {
	path := testsupport.NewVideosDB(t)
	testsupport.InsertAudioStream(t, path, 1, "jpn")
	testsupport.InsertAudioStream(t, path, 1, "eng")
	store := mustOpen(t, path)
	ctx := context.Background()

	// No settings row: the player default is the first stream.
	lang, ok, err := store.AudioLanguage(ctx, 1)
	if err != nil {
		t.Fatalf("AudioLanguage: %v", err)
	}
	if !ok || lang != "jpn" {
		t.Fatalf("AudioLanguage = (%q, %v), want (jpn, true)", lang, ok)
	}

	// Recorded selection picks the second stream.
	testsupport.InsertSettings(t, path, 1, 1, -1, false)
	lang, ok, err = store.AudioLanguage(ctx, 1)
	if err != nil {
		t.Fatalf("AudioLanguage: %v", err)
	}
	if !ok || lang != "eng" {
		t.Fatalf("AudioLanguage = (%q, %v), want (eng, true)", lang, ok)
	}

	// Missing stream details report unknown.
	if _, ok, err := store.AudioLanguage(ctx, 2); err != nil || ok {
		t.Fatalf("AudioLanguage for file without details = (ok=%v, err=%v), want (false, nil)", ok, err)
	}

	// A selection beyond the recorded streams is assumed external.
	testsupport.InsertSettings(t, path, 3, 9, -1, false)
	testsupport.InsertAudioStream(t, path, 3, "eng")
	if _, ok, err := store.AudioLanguage(ctx, 3); err != nil || ok {
		t.Fatalf("out-of-range AudioLanguage = (ok=%v, err=%v), want (false, nil)", ok, err)
	}
}

func TestSettingsPredicates(t *testing.T) {
	path := testsupport.NewVideosDB(t)
	testsupport.InsertSettings(t, path, 1, -1, 2, true)
	testsupport.InsertSettings(t, path, 2, 0, 2, false)
	store := mustOpen(t, path)
	ctx := context.Background()

	tests := []struct {
		fileID        int64
		wantSubtitles bool
		wantAudio     bool
	}{
		{1, true, false},
		{2, false, true}, // subtitle set but switched off does not count
		{3, false, false},
	}
	for _, tt := range tests {
		gotSubs, err := store.HasSubtitleSettings(ctx, tt.fileID)
		if err != nil {
			t.Fatalf("HasSubtitleSettings(%d): %v", tt.fileID, err)
		}
		if gotSubs != tt.wantSubtitles {
			t.Errorf("HasSubtitleSettings(%d) = %v, want %v", tt.fileID, gotSubs, tt.wantSubtitles)
		}
		gotAudio, err := store.HasAudioSettings(ctx, tt.fileID)
		if err != nil {
			t.Fatalf("HasAudioSettings(%d): %v", tt.fileID, err)
		}
		if gotAudio != tt.wantAudio {
			t.Errorf("HasAudioSettings(%d) = %v, want %v", tt.fileID, gotAudio, tt.wantAudio)
		}
	}
}

func TestSetSubtitle(t *testing.T) {
	path := testsupport.NewVideosDB(t)
	store := mustOpen(t, path)
	ctx := context.Background()

	// No settings row yet: one is created with Kodi defaults.
	applied, err := store.SetSubtitle(ctx, 1, 2, false)
	if err != nil {
		t.Fatalf("SetSubtitle: %v", err)
	}
	if !applied {
		t.Fatal("expected write to apply")
	}
	settings, err := store.GetSettings(ctx, 1)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if !settings.Exists || settings.SubtitleStream != 2 || !settings.SubtitlesOn {
		t.Fatalf("settings after write = %+v", settings)
	}

	// A different existing selection is refused without force.
	applied, err = store.SetSubtitle(ctx, 1, 0, false)
	if err != nil {
		t.Fatalf("SetSubtitle: %v", err)
	}
	if applied {
		t.Fatal("conflicting write should be refused")
	}
	applied, err = store.SetSubtitle(ctx, 1, 0, true)
	if err != nil {
		t.Fatalf("SetSubtitle force: %v", err)
	}
	if !applied {
		t.Fatal("forced write should apply")
	}

	// Re-selecting the recorded track flips subtitles back on.
	if err := store.DisableSubtitles(ctx, 1); err != nil {
		t.Fatalf("DisableSubtitles: %v", err)
	}
	applied, err = store.SetSubtitle(ctx, 1, 0, false)
	if err != nil {
		t.Fatalf("SetSubtitle: %v", err)
	}
	if !applied {
		t.Fatal("re-selecting the same track should apply")
	}
	settings, err = store.GetSettings(ctx, 1)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if !settings.SubtitlesOn {
		t.Fatal("subtitles should be back on")
	}
}

func TestSetAudio(t *testing.T) {
	path := testsupport.NewVideosDB(t)
	testsupport.InsertSettings(t, path, 1, 0, -1, false)
	store := mustOpen(t, path)
	ctx := context.Background()

	applied, err := store.SetAudio(ctx, 1, 1, false)
	if err != nil {
		t.Fatalf("SetAudio: %v", err)
	}
	if applied {
		t.Fatal("conflicting audio write should be refused")
	}

	applied, err = store.SetAudio(ctx, 1, 1, true)
	if err != nil {
		t.Fatalf("SetAudio force: %v", err)
	}
	if !applied {
		t.Fatal("forced audio write should apply")
	}

	settings, err := store.GetSettings(ctx, 1)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if settings.AudioStream != 1 {
		t.Fatalf("AudioStream = %d, want 1", settings.AudioStream)
	}
}

func TestDisableSubtitlesWithoutRowIsNoop(t *testing.T) {
	path := testsupport.NewVideosDB(t)
	store := mustOpen(t, path)
	if err := store.DisableSubtitles(context.Background(), 42); err != nil {
		t.Fatalf("DisableSubtitles: %v", err)
	}
	settings, err := store.GetSettings(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if settings.Exists {
		t.Fatal("no settings row should be created")
	}
}

func TestOpenDoesNotHoldTheWriteLock(t *testing.T) {
	path := testsupport.NewVideosDB(t)
	store := mustOpen(t, path)
	ctx := context.Background()

	// An open store, possibly waiting at a prompt, must not block another
	// process: the lock file is free between writes.
	outside := flock.New(path + ".lock")
	locked, err := outside.TryLock()
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if !locked {
		t.Fatal("lock file held while no write is in flight")
	}
	if err := outside.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}

	// A second store on the same database works too.
	second := mustOpen(t, path)
	if _, err := second.SetSubtitle(ctx, 1, 0, false); err != nil {
		t.Fatalf("SetSubtitle on second store: %v", err)
	}
	if _, err := store.SetSubtitle(ctx, 2, 0, false); err != nil {
		t.Fatalf("SetSubtitle on first store: %v", err)
	}
}

func TestWriteWaitsForLockRelease(t *testing.T) {
	path := testsupport.NewVideosDB(t)
	store := mustOpen(t, path)

	outside := flock.New(path + ".lock")
	locked, err := outside.TryLock()
	if err != nil || !locked {
		t.Fatalf("TryLock = (%v, %v)", locked, err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := store.SetSubtitle(context.Background(), 1, 0, false)
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("write completed while another process held the lock")
	case <-time.After(150 * time.Millisecond):
	}

	if err := outside.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("SetSubtitle after release: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("write did not proceed after the lock was released")
	}
}
