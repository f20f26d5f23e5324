package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/google/go-cmp/cmp"

	"github.com/stagecraft/scenecore/logging"
	"github.com/stagecraft/scenecore/utils"
)

// A Watcher is responsible for watching for changes
// to a config from some source and delivering those changes
// to some destination.
type Watcher interface {
	Config() <-chan *Config
	Close() error
}

type fsConfigWatcher struct {
	fsWatcher *fsnotify.Watcher
	workers   utils.StoppableWorkers
	configCh  chan *Config
}

// NewWatcher returns a Watcher that delivers the config in filePath every time it changes and still reads
// as a valid config. Invalid edits are logged and skipped. The directory is watched, not the file, so
// editors that save by renaming are seen.
func NewWatcher(ctx context.Context, initial *Config, logger logging.Logger) (Watcher, error) {
	filePath := initial.ConfigFilePath
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	guard := utils.NewGuard(fsWatcher.Close)
	defer guard.OnFail()
	if err := fsWatcher.Add(filepath.Dir(filePath)); err != nil {
		return nil, err
	}
	guard.Success()

	w := &fsConfigWatcher{fsWatcher: fsWatcher, configCh: make(chan *Config)}
	// an unreadable file compares as empty
	lastRead, _ := os.ReadFile(filePath)
	current := initial
	w.workers = utils.NewStoppableWorkers(func(cancelCtx context.Context) {
		for {
			select {
			case <-cancelCtx.Done():
				return
			case <-ctx.Done():
				return
			case err, ok := <-fsWatcher.Errors:
				if !ok {
					return
				}
				logger.Errorw("error watching config", "error", err)
			case event, ok := <-fsWatcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(filePath) ||
					!(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
					continue
				}
				contents, err := os.ReadFile(filePath)
				if err != nil || bytes.Equal(contents, lastRead) {
					continue
				}
				lastRead = contents
				newConfig, err := FromReader(cancelCtx, filePath, bytes.NewReader(contents), logger)
				if err != nil {
					logger.Errorw("error reading config after change", "error", err)
					continue
				}
				if cmp.Equal(current, newConfig) {
					continue
				}
				current = newConfig
				select {
				case <-cancelCtx.Done():
					return
				case <-ctx.Done():
					return
				case w.configCh <- newConfig:
				}
			}
		}
	})
	return w, nil
}

func (w *fsConfigWatcher) Config() <-chan *Config {
	return w.configCh
}

func (w *fsConfigWatcher) Close() error {
	w.workers.Stop()
	return w.fsWatcher.Close()
}
