package main

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("touch %s: %v", path, err)
	}
}

func TestCollectFilesWalksDirectories(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "Heat (1995)", "Heat (1995).mkv"))
	touch(t, filepath.Join(root, "Heat (1995)", "Heat (1995).srt"))
	touch(t, filepath.Join(root, "Ran (1985)", "Ran (1985).mp4"))
	touch(t, filepath.Join(root, "notes.txt"))

	files, err := collectFiles([]string{root})
	if err != nil {
		t.Fatalf("collectFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files = %v, want 2 videos", files)
	}
	if filepath.Base(files[0]) != "Heat (1995).mkv" || filepath.Base(files[1]) != "Ran (1985).mp4" {
		t.Errorf("unexpected order or contents: %v", files)
	}
}

func TestCollectFilesTakesExplicitFilesAsIs(t *testing.T) {
	root := t.TempDir()
	odd := filepath.Join(root, "movie.weird")
	touch(t, odd)

	files, err := collectFiles([]string{odd})
	if err != nil {
		t.Fatalf("collectFiles: %v", err)
	}
	if len(files) != 1 || files[0] != odd {
		t.Errorf("files = %v, want the explicit file", files)
	}
}

func TestCollectFilesDeduplicates(t *testing.T) {
	root := t.TempDir()
	video := filepath.Join(root, "movie.mkv")
	touch(t, video)

	files, err := collectFiles([]string{video, root})
	if err != nil {
		t.Fatalf("collectFiles: %v", err)
	}
	if len(files) != 1 {
		t.Errorf("files = %v, want deduplicated single entry", files)
	}
}

func TestCollectFilesMissingPath(t *testing.T) {
	if _, err := collectFiles([]string{filepath.Join(t.TempDir(), "gone.mkv")}); err == nil {
		t.Fatal("expected error for missing path")
	}
}
