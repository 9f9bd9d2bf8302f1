package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/threadline-ai/threadline/pkg/types"
)

// Watcher reloads the configuration when a config file changes and
// hands the fresh snapshot to a callback. Consumers that cache a
// read-only snapshot (the auth configuration surface) subscribe here
// instead of re-reading files on every request.
type Watcher struct {
	watcher   *fsnotify.Watcher
	directory string
	onReload  func(*types.Config)
	stopCh    chan struct{}
	doneCh    chan struct{}
	started   bool
	mu        sync.Mutex
}

// NewWatcher creates a watcher over the config files of a directory.
// onReload is called with the newly loaded configuration after each
// change; load errors keep the previous snapshot and are logged only.
func NewWatcher(directory string, onReload func(*types.Config)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory rather than individual files: editors often
	// replace files wholesale, which drops per-file watches.
	if err := w.Add(directory); err != nil {
		w.Close()
		return nil, err
	}

	return &Watcher{
		watcher:   w,
		directory: directory,
		onReload:  onReload,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}, nil
}

// Start begins watching for config changes.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()
	go w.run()
}

// Stop stops the watcher and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		w.watcher.Close()
		return
	}
	w.started = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	w.watcher.Close()
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isConfigFile(ev.Name) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			cfg, err := Load(w.directory)
			if err != nil {
				log.Warn().Err(err).Str("file", ev.Name).Msg("config reload failed, keeping previous snapshot")
				continue
			}
			log.Info().Str("file", ev.Name).Msg("configuration reloaded")
			w.onReload(cfg)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("config watcher error")
		case <-w.stopCh:
			return
		}
	}
}

func isConfigFile(path string) bool {
	base := filepath.Base(path)
	for _, name := range configFileNames {
		if base == name {
			return true
		}
	}
	return false
}
