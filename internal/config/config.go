package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"autosubs/internal/language"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains file and directory configuration.
type Paths struct {
	// Database is the Kodi MyVideos database (e.g. MyVideos116.db).
	Database string `toml:"database"`
	LogDir   string `toml:"log_dir"`
}

// Kodi contains the JSON-RPC connection settings used by watch mode.
type Kodi struct {
	// Address is the host:port of Kodi's TCP JSON-RPC service.
	Address string `toml:"address"`
}

// Selection contains the decision-engine settings.
type Selection struct {
	// Language is the viewer's native language: full name or 2/3-letter
	// ISO code. Files whose default audio differs get subtitles enabled.
	Language string `toml:"language"`
	// UpdateOnly skips files that already have a subtitle or audio
	// selection recorded.
	UpdateOnly bool `toml:"update_only"`
	// FastMode trusts the library's recorded audio language and skips
	// extraction when it already matches.
	FastMode bool `toml:"fast_mode"`
	// Quiet accepts defaults without prompting; implies UpdateOnly and
	// FastMode and disables the audio feature.
	Quiet bool `toml:"quiet"`
	// Audio enables the alternative-audio-track recommendation.
	Audio bool `toml:"audio"`
}

// Logging contains log output configuration.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Kodi      Kodi      `toml:"kodi"`
	Selection Selection `toml:"selection"`
	Logging   Logging   `toml:"logging"`
}

// Default returns the built-in configuration values.
func Default() Config {
	return Config{
		Kodi:      Kodi{Address: "localhost:9090"},
		Selection: Selection{Language: "English"},
		Logging:   Logging{Format: "console", Level: "info"},
	}
}

// DefaultConfigPath returns the absolute path of the default config file.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/autosubs/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("autosubs.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	if c.Paths.Database != "" {
		expanded, err := expandPath(c.Paths.Database)
		if err != nil {
			return err
		}
		c.Paths.Database = expanded
	}
	if c.Paths.LogDir != "" {
		expanded, err := expandPath(c.Paths.LogDir)
		if err != nil {
			return err
		}
		c.Paths.LogDir = expanded
	}
	c.Kodi.Address = strings.TrimSpace(c.Kodi.Address)
	c.Selection.Language = strings.TrimSpace(c.Selection.Language)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Selection.Quiet {
		c.Selection.UpdateOnly = true
		c.Selection.FastMode = true
		c.Selection.Audio = false
	}
	return nil
}

// Validate checks configuration values that would make a run fail at
// startup. An unrecognized target language is fatal here, not per file.
func (c *Config) Validate() error {
	if c.Selection.Language == "" {
		return errors.New("selection.language is required")
	}
	if _, err := c.TargetLanguage(); err != nil {
		return fmt.Errorf("selection.language: %w", err)
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}

// TargetLanguage resolves the configured language to its canonical form.
func (c *Config) TargetLanguage() (language.Lang, error) {
	return language.Normalize(c.Selection.Language)
}

// FFprobeBinary returns the ffprobe executable name used for extraction.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
