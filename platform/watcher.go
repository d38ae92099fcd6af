package platform

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/nexusplugins/ptengine/ptlog"
)

// ChangeOp describes the kind of filesystem change observed for a plugin
// path.
type ChangeOp int

const (
	ChangeCreate ChangeOp = iota
	ChangeWrite
	ChangeRemove
	ChangeRename
)

func (op ChangeOp) String() string {
	switch op {
	case ChangeCreate:
		return "create"
	case ChangeWrite:
		return "write"
	case ChangeRemove:
		return "remove"
	case ChangeRename:
		return "rename"
	default:
		return "unknown"
	}
}

// ChangeEvent reports a single plugin-directory change. The engine itself
// never acts on these (hot-swap-during-a-call is an explicit non-goal);
// they exist for a host to build reload-on-change policy on top of the
// platform layer.
type ChangeEvent struct {
	Path string
	Op   ChangeOp
}

// Watcher watches one or more plugin directories for shared-object
// changes.
type Watcher struct {
	fsw    *fsnotify.Watcher
	Events chan ChangeEvent
	done   chan struct{}
}

// NewWatcher creates a Watcher over dirs. Callers must call Close when
// done.
func NewWatcher(dirs []string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("platform: new watcher: %w", err)
	}
	for _, d := range dirs {
		if err := fsw.Add(d); err != nil {
			ptlog.L().Warn("platform: watch directory failed", zap.String("dir", d), zap.Error(err))
		}
	}

	w := &Watcher{
		fsw:    fsw,
		Events: make(chan ChangeEvent, 16),
		done:   make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	ext := sharedObjectExt()
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				close(w.Events)
				return
			}
			if !strings.EqualFold(filepath.Ext(ev.Name), ext) {
				continue
			}
			op := translateOp(ev.Op)
			select {
			case w.Events <- ChangeEvent{Path: ev.Name, Op: op}:
			default:
				ptlog.L().Warn("platform: watcher event channel full, dropping event", zap.String("path", ev.Name))
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				continue
			}
			ptlog.L().Warn("platform: watcher error", zap.Error(err))
		case <-w.done:
			return
		}
	}
}

func translateOp(op fsnotify.Op) ChangeOp {
	switch {
	case op&fsnotify.Create != 0:
		return ChangeCreate
	case op&fsnotify.Remove != 0:
		return ChangeRemove
	case op&fsnotify.Rename != 0:
		return ChangeRename
	default:
		return ChangeWrite
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
