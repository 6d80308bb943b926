package failurelog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileLog keeps the mirror as a JSON array on local disk.
type FileLog struct {
	path string
	mu   sync.Mutex
}

// NewFileLog creates a file-backed log. The file is created on first append.
func NewFileLog(path string) *FileLog {
	return &FileLog{path: path}
}

func (l *FileLog) read() ([]Entry, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read failure log: %w", err)
	}
	return decode(data)
}

// write replaces the file through a rename so readers never see a partial array.
func (l *FileLog) write(entries []Entry) error {
	data, err := encode(entries)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(l.path), filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write failure log: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write failure log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write failure log: %w", err)
	}
	return os.Rename(tmp.Name(), l.path)
}

// Append implements Log.
func (l *FileLog) Append(_ context.Context, e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.read()
	if err != nil {
		return err
	}
	return l.write(append(entries, e))
}

// Prune implements Log.
func (l *FileLog) Prune(_ context.Context, ids []uint) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.read()
	if err != nil {
		return err
	}
	kept, changed := prune(entries, ids)
	if !changed {
		return nil
	}
	return l.write(kept)
}

// List implements Log.
func (l *FileLog) List(context.Context) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read()
}
