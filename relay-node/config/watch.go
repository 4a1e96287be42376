package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"
	"github.com/fsnotify/fsnotify"
)

// Watch reloads the schedule section of the config file at path whenever the
// file changes, and passes every valid schedule to apply. Invalid files are
// logged and ignored. Watch blocks until ctx is done.
func Watch(ctx context.Context, logger log.Logger, path string, apply func(Schedule)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			logger.Error("Could not close config watcher", "err", err)
		}
	}()

	// Editors often replace the file instead of writing it, so watch the
	// directory and filter by name.
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", abs, err)
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			sched, err := ReloadSchedule(abs)
			if err != nil {
				logger.Warn("Ignoring invalid config change", "path", abs, "err", err)
				continue
			}
			logger.Info("Reloaded schedule", "path", abs, "lookback", sched.Lookback, "interval", sched.Interval, "retry_delay", sched.RetryDelay)
			apply(sched)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("Config watcher error", "err", err)
		case <-ctx.Done():
			return nil
		}
	}
}

// ReloadSchedule reads the schedule from the config file at path. Options
// outside the schedule section are ignored.
func ReloadSchedule(path string) (Schedule, error) {
	cfg := Default()
	if err := LoadFile(path, cfg); err != nil {
		return Schedule{}, err
	}
	if err := cfg.Schedule.Check(); err != nil {
		return Schedule{}, err
	}
	return cfg.Schedule, nil
}
