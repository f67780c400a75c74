package templatex

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads templates whenever an .html file below the template dir
// changes. It blocks until ctx is done.
func (e *Engine) Watch(ctx context.Context, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, dir := range []string{e.dir, filepath.Join(e.dir, "partials"), filepath.Join(e.dir, "plugins")} {
		if err := watcher.Add(dir); err != nil && dir == e.dir {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".html") {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := e.Reload(); err != nil {
				logger.Warn("template reload", "file", event.Name, "error", err)
				continue
			}
			logger.Info("templates reloaded", "file", event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("template watcher", "error", err)
		}
	}
}
