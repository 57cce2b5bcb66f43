package project

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yubzen/playground/internal/logging"
)

// Resolver supplies the project identifier. Updates returns nil when the
// identifier never changes after construction.
type Resolver interface {
	Current() ID
	Updates() <-chan ID
}

// Static is a Resolver with a fixed identifier.
type Static struct {
	id ID
}

func NewStatic(id ID) *Static { return &Static{id: id} }

// FromValue resolves immediately: a blank value yields Missing.
func FromValue(value string) *Static { return NewStatic(Resolved(value)) }

func (s *Static) Current() ID { return s.id }

func (s *Static) Updates() <-chan ID { return nil }

const fileDebounce = 150 * time.Millisecond

// FileResolver reads the project identifier from the first non-blank line
// of a file and re-resolves whenever the file changes. It is Unresolved
// until Start completes the first read.
type FileResolver struct {
	path string

	mu      sync.Mutex
	current ID
	updates chan ID

	Done chan struct{}
}

func NewFileResolver(path string) *FileResolver {
	return &FileResolver{
		path:    path,
		current: Unresolved(),
		updates: make(chan ID, 1),
		Done:    make(chan struct{}),
	}
}

func (r *FileResolver) Current() ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *FileResolver) Updates() <-chan ID { return r.updates }

// Start performs the initial read and watches the file's directory until
// ctx is cancelled. Done is closed when the watcher exits.
func (r *FileResolver) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create project watcher: %w", err)
	}
	dir := filepath.Dir(r.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	r.refresh()

	go func() {
		defer watcher.Close()
		defer close(r.Done)

		debounce := time.NewTimer(fileDebounce)
		if !debounce.Stop() {
			<-debounce.C
		}
		defer debounce.Stop()

		target := filepath.Clean(r.path)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
				debounce.Reset(fileDebounce)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Warn().Err(err).Str("path", r.path).Msg("project watcher error")
			case <-debounce.C:
				r.refresh()
			}
		}
	}()
	return nil
}

func (r *FileResolver) refresh() {
	next := readProjectFile(r.path)

	r.mu.Lock()
	if next == r.current {
		r.mu.Unlock()
		return
	}
	r.current = next
	r.mu.Unlock()

	logging.Debug().Str("path", r.path).Str("project", next.String()).Msg("project identifier changed")
	r.publish(next)
}

// publish keeps only the newest pending identifier in the channel.
func (r *FileResolver) publish(id ID) {
	for {
		select {
		case r.updates <- id:
			return
		default:
		}
		select {
		case <-r.updates:
		default:
		}
	}
}

func readProjectFile(path string) ID {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Missing()
	}
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("read project file")
		return Missing()
	}
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return Resolved(line)
	}
	return Missing()
}
