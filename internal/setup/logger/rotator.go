package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// LogRotator is a file writer that caps a log file to its most recent lines.
// The file is compacted once twice the line limit has been written.
type LogRotator struct {
	mu   sync.Mutex
	file *os.File
	path string
	ring *lineRing
}

// NewLogRotator opens path for appending and returns a writer bounded to maxLines.
func NewLogRotator(path string, maxLines int) (*LogRotator, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cannot open log file %s: %w", path, err)
	}

	return &LogRotator{
		file: file,
		path: path,
		ring: newLineRing(maxLines),
	}, nil
}

// Write implements io.Writer.
func (w *LogRotator) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.file.Write(p)
	if err != nil {
		return n, err
	}

	for line := range strings.SplitSeq(strings.TrimRight(string(p), "\n"), "\n") {
		if line == "" {
			continue
		}

		w.ring.push(line)

		if w.ring.seen >= w.ring.capacity()*2 {
			if err := w.compact(); err != nil {
				return n, fmt.Errorf("failed to compact log file: %w", err)
			}

			w.ring.seen = w.ring.count
		}
	}

	return n, nil
}

// Sync flushes the underlying file.
func (w *LogRotator) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.file.Sync()
}

// Close closes the underlying file.
func (w *LogRotator) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.file.Close()
}

// compact replaces the file with the retained lines.
func (w *LogRotator) compact() error {
	lines := w.ring.ordered()
	if len(lines) == 0 {
		return nil
	}

	temp, err := os.CreateTemp(filepath.Dir(w.path), "compact-log-")
	if err != nil {
		return err
	}

	tempPath := temp.Name()

	if _, err := io.WriteString(temp, strings.Join(lines, "\n")+"\n"); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)

		return err
	}

	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return err
	}

	_ = w.file.Close()

	if err := os.Rename(tempPath, w.path); err != nil {
		return err
	}

	file, err := os.OpenFile(w.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	w.file = file

	return nil
}
