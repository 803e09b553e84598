package policy

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay coalesces the event bursts a single rewrite produces.
// Editors and os.WriteFile truncate before writing; loading on the first
// event would read a half-written file.
const debounceDelay = 100 * time.Millisecond

// Watcher hot-reloads the policy file. On every change the document is
// re-parsed and validated; an invalid document is logged and dropped, the
// previous policy stays in force.
type Watcher struct {
	path   string
	apply  func(*Policy)
	logger *slog.Logger
}

func NewWatcher(path string, apply func(*Policy), logger *slog.Logger) *Watcher {
	return &Watcher{path: path, apply: apply, logger: logger}
}

// Watch blocks until the context is done. The parent directory is watched
// rather than the file itself so atomic rename-style rewrites are seen.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			// Restart the quiet period on every event so one rewrite
			// triggers exactly one load.
			pending = time.After(debounceDelay)
		case <-pending:
			pending = nil
			p, err := Load(w.path)
			if err != nil {
				w.logger.Warn("policy reload rejected", slog.String("path", w.path), slog.Any("error", err))

				continue
			}
			w.logger.Info("policy reloaded", slog.String("path", w.path), slog.Int("rules", len(p.Rules)))
			w.apply(p)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("policy watcher error", slog.Any("error", err))
		}
	}
}
