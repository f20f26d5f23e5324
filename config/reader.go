package config

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/stagecraft/scenecore/logging"
)

// Read reads a config from the given file.
func Read(ctx context.Context, filePath string, logger logging.Logger) (*Config, error) {
	buf, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return FromReader(ctx, filePath, bytes.NewReader(buf), logger)
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from.
func FromReader(ctx context.Context, originalPath string, r io.Reader, logger logging.Logger) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var raw map[string]interface{}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "failed to decode Config from json")
	}
	cfg := &Config{}
	if err := decode(raw, cfg, true); err != nil {
		return nil, errors.Wrap(err, "failed to decode Config")
	}
	cfg.ConfigFilePath = originalPath
	if err := cfg.Ensure(); err != nil {
		return nil, errors.Wrap(err, "failed to process Config")
	}
	logger.Debugw("config read", "path", originalPath, "assets", len(cfg.Assets), "persistence", cfg.Persistence.Type)
	return cfg, nil
}
