package lifecycle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileSource reads the application state from a file containing one of
// "active", "inactive" or "background" and follows changes to it. The
// parent directory is watched so editors and atomic renames are seen.
type FileSource struct {
	*Manual

	path    string
	watcher *fsnotify.Watcher
	onError func(error)

	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// FileOption configures a FileSource.
type FileOption func(*FileSource)

// WithFileErrorHandler sets the callback for watch and parse errors.
func WithFileErrorHandler(fn func(error)) FileOption {
	return func(f *FileSource) {
		f.onError = fn
	}
}

// NewFileSource reads the initial state from path and starts watching it.
// A missing file means Active.
func NewFileSource(path string, opts ...FileOption) (*FileSource, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve state file: %w", err)
	}

	f := &FileSource{
		path:    absPath,
		onError: func(error) {},
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}

	initial, err := readStateFile(absPath)
	if err != nil {
		return nil, err
	}
	f.Manual = NewManual(initial)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create state file watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(absPath)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(absPath), err)
	}
	f.watcher = w

	f.wg.Add(1)
	go f.loop()
	return f, nil
}

func (f *FileSource) loop() {
	defer f.wg.Done()
	for {
		select {
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != f.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			f.reload()
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.onError(err)
		case <-f.stopCh:
			return
		}
	}
}

func (f *FileSource) reload() {
	state, err := readStateFile(f.path)
	if err != nil {
		f.onError(err)
		return
	}
	f.SetState(state)
}

// Stop stops watching the file.
func (f *FileSource) Stop() {
	f.stopOnce.Do(func() {
		close(f.stopCh)
		f.watcher.Close()
		f.wg.Wait()
	})
}

// WriteStateFile atomically replaces the state file with s.
func WriteStateFile(path string, s State) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(s.String()+"\n"), 0644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename state file: %w", err)
	}
	return nil
}

func readStateFile(path string) (State, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Active, nil
	}
	if err != nil {
		return Active, fmt.Errorf("read state file: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return Active, nil
	}
	return ParseState(string(data))
}
