package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

var (
	// ErrWatcherFailed indicates the filesystem watcher could not start.
	ErrWatcherFailed = errors.New("failed to initialize membership file watcher")
	// ErrAlreadyWatching is returned by a second call to Watch.
	ErrAlreadyWatching = errors.New("membership file is already watched")
	// ErrDirectoryClosed is returned by Watch after Close.
	ErrDirectoryClosed = errors.New("membership directory is closed")
)

// FileDirectory reads memberships from a YAML file and reloads it when
// the file changes:
//
//	workspaces:
//	  payments:
//	    members: [alice, bob]
//	    admins: [carol]
//
// A reload that fails to parse keeps the previous table.
type FileDirectory struct {
	path   string
	logger *zap.Logger
	roster atomic.Pointer[roster]

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	closed   bool
	done     chan struct{}
	reloaded chan struct{}
}

// NewFileDirectory loads path. Call Watch to follow later edits.
func NewFileDirectory(path string, logger *zap.Logger) (*FileDirectory, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving membership file: %w", err)
	}
	d := &FileDirectory{
		path:     abs,
		logger:   logger,
		done:     make(chan struct{}),
		reloaded: make(chan struct{}, 1),
	}
	if err := d.reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// Role implements Directory.
func (d *FileDirectory) Role(_ context.Context, workspaceID, userID string) (Role, error) {
	return d.roster.Load().role(workspaceID, userID)
}

// Workspaces returns the known workspace ids, sorted.
func (d *FileDirectory) Workspaces() []string {
	return d.roster.Load().workspaces()
}

// Watch follows changes to the file until ctx is done or Close is called.
// The parent directory is watched so editors that replace the file by
// rename are picked up. A directory is watched at most once.
func (d *FileDirectory) Watch(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDirectoryClosed
	}
	if d.watcher != nil {
		return ErrAlreadyWatching
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	if err := watcher.Add(filepath.Dir(d.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	d.watcher = watcher
	go d.processEvents(ctx, watcher)
	return nil
}

// Reloaded signals after each successful reload triggered by a file event.
func (d *FileDirectory) Reloaded() <-chan struct{} {
	return d.reloaded
}

// Close stops watching. Later calls are no-ops.
func (d *FileDirectory) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	close(d.done)
	if d.watcher == nil {
		return nil
	}
	return d.watcher.Close()
}

func (d *FileDirectory) processEvents(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.done:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != d.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := d.reload(); err != nil {
				d.logger.Warn("membership reload failed, keeping previous table",
					zap.String("path", d.path), zap.Error(err))
				continue
			}
			d.logger.Info("membership reloaded", zap.String("path", d.path))
			select {
			case d.reloaded <- struct{}{}:
			default:
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			d.logger.Warn("membership watcher error", zap.Error(err))
		}
	}
}

func (d *FileDirectory) reload() error {
	content, err := os.ReadFile(d.path)
	if err != nil {
		return fmt.Errorf("reading membership file: %w", err)
	}

	k := koanf.New("/")
	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return fmt.Errorf("parsing membership file %s: %w", d.path, err)
	}
	if !k.Exists("workspaces") {
		return fmt.Errorf("membership file %s has no workspaces key", d.path)
	}
	var workspaces map[string]Membership
	if err := k.Unmarshal("workspaces", &workspaces); err != nil {
		return fmt.Errorf("decoding membership file %s: %w", d.path, err)
	}

	r := newRoster(workspaces)
	d.roster.Store(&r)
	return nil
}
