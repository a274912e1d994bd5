package logging

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// keepRotated is how many rotated files survive a rotation.
const keepRotated = 5

// RotatingWriter appends to a log file, renaming it aside with a timestamp
// suffix once it exceeds a maximum size.
type RotatingWriter struct {
	mu          sync.Mutex
	file        *os.File
	path        string
	maxSize     int64
	currentSize int64
	now         func() time.Time
}

// OpenRotating opens path for appending, creating it and its directory if
// needed. maxSize of 0 disables rotation.
func OpenRotating(path string, maxSize int64) (*RotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "failed to create log directory")
	}

	w := &RotatingWriter{path: path, maxSize: maxSize, now: time.Now}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotatingWriter) open() error {
	// #nosec G304 - path comes from the user's configuration
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return errors.Wrap(err, "failed to open log file")
	}
	w.currentSize = 0
	if info, err := f.Stat(); err == nil {
		w.currentSize = info.Size()
	}
	w.file = f
	return nil
}

// Write implements io.Writer. A record is never split across files.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}

	if w.maxSize > 0 && w.currentSize > 0 && w.currentSize+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.currentSize += int64(n)
	return n, err
}

// Close closes the underlying file.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *RotatingWriter) rotate() error {
	_ = w.file.Close()

	rotatedPath := w.path + "." + w.now().Format("20060102-150405.000")
	if err := os.Rename(w.path, rotatedPath); err != nil {
		// Keep appending to the same file rather than losing records.
		return w.open()
	}

	if err := w.open(); err != nil {
		w.file = nil
		return err
	}
	w.cleanupOldLogs()
	return nil
}

func (w *RotatingWriter) cleanupOldLogs() {
	matches, err := filepath.Glob(w.path + ".*")
	if err != nil || len(matches) <= keepRotated {
		return
	}

	// Timestamp suffixes sort oldest first.
	sort.Strings(matches)
	for _, m := range matches[:len(matches)-keepRotated] {
		_ = os.Remove(m)
	}
}
