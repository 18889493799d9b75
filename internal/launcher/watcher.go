package launcher

import (
	"github.com/fsnotify/fsnotify"

	"github.com/teranos/agora/internal/errors"
	"github.com/teranos/agora/internal/logging"
)

// Watcher observes the plugin root directory for installs and updates,
// so a running server can pick up a newly dropped plugin directory
// without a restart. It only logs changes; InitializeWorkspace still
// re-stages on the next plugin launch, so the watcher's job is purely
// observability.
type Watcher struct {
	fsw *fsnotify.Watcher
	log *logging.Logger
}

// NewWatcher starts watching pluginRoot (non-recursively; plugin
// directories are added and removed as units, not edited file-by-file
// while the server depends on them).
func NewWatcher(pluginRoot string, log *logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create plugin directory watcher")
	}
	if err := fsw.Add(pluginRoot); err != nil {
		fsw.Close()
		return nil, errors.Wrapf(err, "failed to watch plugin root %q", pluginRoot)
	}
	return &Watcher{fsw: fsw, log: log.Named("launcher.watcher")}, nil
}

// Run drains filesystem events until the watcher is closed, logging
// every create/write/remove/rename under the plugin root.
func (w *Watcher) Run() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.log.Infow("plugin directory changed", "op", event.Op.String(), "path", event.Name)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warnw("plugin directory watch error", "error", err)
		}
	}
}

func (w *Watcher) Close() error {
	return w.fsw.Close()
}
