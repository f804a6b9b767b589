package main

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"autosubs/internal/config"
	"autosubs/internal/kodidb"
	"autosubs/internal/logging"
	"autosubs/internal/media/ffprobe"
	"autosubs/internal/selection"
	"autosubs/internal/session"
)

type commandContext struct {
	configFlag   *string
	databaseFlag *string
	languageFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag, databaseFlag, languageFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		databaseFlag: databaseFlag,
		languageFlag: languageFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.databaseFlag != nil && strings.TrimSpace(*c.databaseFlag) != "" {
			expanded, err := config.ExpandPath(*c.databaseFlag)
			if err != nil {
				c.configErr = err
				return
			}
			cfg.Paths.Database = expanded
		}
		if c.languageFlag != nil && strings.TrimSpace(*c.languageFlag) != "" {
			cfg.Selection.Language = strings.TrimSpace(*c.languageFlag)
			if err := cfg.Validate(); err != nil {
				c.configErr = err
				return
			}
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// openStore opens the configured Kodi database. Writes take the sidecar
// lock individually, so the store itself can stay open across prompts.
func (c *commandContext) openStore() (*kodidb.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Paths.Database == "" {
		return nil, errors.New("no database configured; set paths.database or pass --database")
	}
	return kodidb.Open(cfg.Paths.Database)
}

// sessionOptions builds session options from config plus per-command flags.
func (c *commandContext) sessionOptions(updateOnly, fastMode, quiet, audio bool) (session.Options, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return session.Options{}, err
	}
	target, err := cfg.TargetLanguage()
	if err != nil {
		return session.Options{}, err
	}
	return session.Options{
		Selection: selection.Config{
			Target:       target,
			AudioEnabled: cfg.Selection.Audio || audio,
		},
		UpdateOnly: cfg.Selection.UpdateOnly || updateOnly,
		FastMode:   cfg.Selection.FastMode || fastMode,
		Quiet:      cfg.Selection.Quiet || quiet,
	}, nil
}

// probeExtractor adapts ffprobe invocation to the session's extractor.
type probeExtractor struct {
	binary string
}

func (p probeExtractor) Extract(ctx context.Context, path string) ([]ffprobe.Stream, error) {
	result, err := ffprobe.Inspect(ctx, p.binary, path)
	if err != nil {
		return nil, err
	}
	return result.Streams, nil
}
