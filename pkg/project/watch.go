package project

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultReloadDelay debounces bursts of file events into a single reload.
const DefaultReloadDelay = 500 * time.Millisecond

// Watcher reloads a build when its settings or build files change.
type Watcher struct {
	rootDir string
	delay   time.Duration
	logger  zerolog.Logger
	watcher *fsnotify.Watcher
}

// NewWatcher watches every directory below rootDir.
func NewWatcher(rootDir string, logger zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		rootDir: rootDir,
		delay:   DefaultReloadDelay,
		logger:  logger.With().Str("component", "build-watcher").Logger(),
		watcher: fw,
	}
	if err := w.addTree(rootDir); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

// SetDelay changes the debounce delay.
func (w *Watcher) SetDelay(d time.Duration) {
	w.delay = d
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// Run calls reload after relevant changes until ctx is done. Reload errors are
// logged and do not stop the watcher.
func (w *Watcher) Run(ctx context.Context, reload func(ctx context.Context) error) error {
	defer w.watcher.Close()

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	w.logger.Info().Str("dir", w.rootDir).Msg("Watching build for changes")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.logger.Warn().Err(err).Str("dir", event.Name).Msg("Failed to watch directory")
					}
				}
			}
			if !relevant(event) {
				continue
			}

			w.logger.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Build file changed")
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.delay, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			w.logger.Info().Msg("Reloading build")
			if err := reload(ctx); err != nil {
				w.logger.Error().Err(err).Msg("Failed to reload build")
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

func relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	switch filepath.Base(event.Name) {
	case SettingsFileName, BuildFileName:
		return true
	}
	return false
}
