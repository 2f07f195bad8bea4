package rbac

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// RulesWatcher reloads a YAML rules file into a RuleSet whenever the file changes.
// A file that fails to parse leaves the current snapshot in place.
type RulesWatcher struct {
	path    string
	rules   *RuleSet
	watcher *fsnotify.Watcher
	logger  logrus.FieldLogger
}

// NewRulesWatcher watches the directory of path so editors that replace the file are seen
func NewRulesWatcher(path string, rules *RuleSet, logger logrus.FieldLogger) (*RulesWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching %s: %w", path, err)
	}
	return &RulesWatcher{
		path:    filepath.Clean(path),
		rules:   rules,
		watcher: w,
		logger:  logger.WithFields(logrus.Fields{"component": "rules_watcher", "path": path}),
	}, nil
}

// Run processes file events until ctx is done
func (rw *RulesWatcher) Run(ctx context.Context) error {
	defer rw.watcher.Close()
	rw.logger.Info("watching access rules")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-rw.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != rw.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			_ = rw.Reload()
		case err, ok := <-rw.watcher.Errors:
			if !ok {
				return nil
			}
			rw.logger.WithError(err).Warn("watcher error")
		}
	}
}

// Reload parses the file and installs it
func (rw *RulesWatcher) Reload() error {
	next, err := LoadAccessRulesFile(rw.path)
	if err != nil {
		rw.logger.WithError(err).Error("access rules reload rejected, keeping current rules")
		return err
	}
	rw.rules.Replace(next)
	rw.logger.WithField("rules", len(next.rules)).Info("access rules reloaded")
	return nil
}
