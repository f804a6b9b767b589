package logging_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"autosubs/internal/config"
	"autosubs/internal/logging"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}

	logger.Info("configured", "mode", "scan")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "autosubs.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "configured") {
		t.Fatalf("log file missing message: %q", content)
	}
}

func TestConsoleHandlerFormatsComponentAndAttrs(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")

	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.With("component", "session").Info("file processed", "path", "/media/movie.mkv", "changed", true)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if !strings.Contains(line, "session: file processed") {
		t.Errorf("component prefix missing: %q", line)
	}
	if !strings.Contains(line, "path=/media/movie.mkv") {
		t.Errorf("attr missing: %q", line)
	}
	if !strings.Contains(line, "changed=true") {
		t.Errorf("bool attr missing: %q", line)
	}
}

func TestConsoleHandlerHonorsLevel(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "level.log")

	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "warn",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("suppressed")
	logger.Warn("kept")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), "suppressed") {
		t.Error("info record should be suppressed at warn level")
	}
	if !strings.Contains(string(content), "kept") {
		t.Error("warn record missing")
	}
}

func TestJSONFormat(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")

	logger, err := logging.New(logging.Options{
		Format:      "json",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("structured", "files", 3)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), `"msg":"structured"`) {
		t.Errorf("unexpected json output: %q", content)
	}
	if !strings.Contains(string(content), `"level":"info"`) {
		t.Errorf("level not lowercased: %q", content)
	}
}

func TestUnsupportedFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
