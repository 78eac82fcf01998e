package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/binlog/internal/config"
	"git.home.luguber.info/inful/binlog/internal/logfields"
)

// reloader applies a freshly loaded configuration.
type reloader interface {
	ReloadConfig(ctx context.Context, cfg *config.Config) error
}

// ConfigWatcher monitors configuration file changes and triggers reloads.
type ConfigWatcher struct {
	configPath   string
	target       reloader
	watcher      *fsnotify.Watcher
	stopOnce     sync.Once
	stopChan     chan struct{}
	reloadChan   chan struct{}
	debounceTime time.Duration
	wg           sync.WaitGroup
}

// NewConfigWatcher creates a watcher for configPath that hands every
// successfully parsed version to target.
func NewConfigWatcher(configPath string, target reloader, debounce time.Duration) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	return &ConfigWatcher{
		configPath:   absPath,
		target:       target,
		watcher:      watcher,
		stopChan:     make(chan struct{}),
		reloadChan:   make(chan struct{}, 1),
		debounceTime: debounce,
	}, nil
}

// Start begins monitoring. The directory is watched rather than the file
// so editors that replace the file by rename are still seen.
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	configDir := filepath.Dir(cw.configPath)
	if err := cw.watcher.Add(configDir); err != nil {
		return fmt.Errorf("failed to watch config directory %s: %w", configDir, err)
	}
	slog.Info("Starting configuration watcher", logfields.Path(cw.configPath))

	cw.wg.Add(2)
	go func() { defer cw.wg.Done(); cw.watchLoop(ctx) }()
	go func() { defer cw.wg.Done(); cw.reloadLoop(ctx) }()
	return nil
}

// Stop ends both loops and releases the watcher.
func (cw *ConfigWatcher) Stop() error {
	var err error
	cw.stopOnce.Do(func() {
		slog.Info("Stopping configuration watcher")
		close(cw.stopChan)
		err = cw.watcher.Close()
		cw.wg.Wait()
	})
	return err
}

func (cw *ConfigWatcher) watchLoop(ctx context.Context) {
	configFile := filepath.Base(cw.configPath)
	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stopChan:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFile {
				continue
			}
			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create), event.Has(fsnotify.Rename):
				slog.Debug("Config file change detected", logfields.Path(event.Name), slog.String("op", event.Op.String()))
				cw.triggerReload()
			case event.Has(fsnotify.Remove):
				slog.Warn("Config file removed", logfields.Path(event.Name))
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Config watcher error", logfields.Error(err))
		}
	}
}

// reloadLoop coalesces bursts of events into one reload after debounceTime
// of quiet.
func (cw *ConfigWatcher) reloadLoop(ctx context.Context) {
	timer := time.NewTimer(cw.debounceTime)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stopChan:
			return
		case <-cw.reloadChan:
			timer.Reset(cw.debounceTime)
		case <-timer.C:
			if err := cw.performReload(ctx); err != nil {
				slog.Error("Failed to reload configuration", logfields.Error(err))
			}
		}
	}
}

func (cw *ConfigWatcher) triggerReload() {
	select {
	case cw.reloadChan <- struct{}{}:
	default:
	}
}

func (cw *ConfigWatcher) performReload(ctx context.Context) error {
	slog.Info("Reloading configuration", logfields.Path(cw.configPath))
	newConfig, err := config.Load(cw.configPath)
	if err != nil {
		return fmt.Errorf("failed to load new configuration: %w", err)
	}
	if err := cw.target.ReloadConfig(ctx, newConfig); err != nil {
		return fmt.Errorf("failed to apply new configuration: %w", err)
	}
	slog.Info("Configuration reloaded successfully")
	return nil
}
