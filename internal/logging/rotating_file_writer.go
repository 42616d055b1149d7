package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Rotation defaults used when the caller passes non-positive values.
const (
	DefaultMaxBytes   = 10 << 20
	DefaultMaxBackups = 3
)

// RotatingFileWriter appends log output to a file and rotates it once
// the size limit is reached. Rotated files are kept as <path>.1 ..
// <path>.N, newest first; the oldest backup is dropped on each
// rotation. Safe for concurrent use, so it can back the global logger.
type RotatingFileWriter struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
	backups  int
	out      *os.File
	written  int64
}

// NewRotatingFileWriter opens path for appending, creating parent
// directories as needed. maxBytes <= 0 falls back to DefaultMaxBytes
// and backups < 0 to DefaultMaxBackups; backups == 0 discards the log
// on rotation instead of keeping a copy.
func NewRotatingFileWriter(path string, maxBytes int64, backups int) (*RotatingFileWriter, error) {
	if path == "" {
		return nil, fmt.Errorf("log path is required")
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if backups < 0 {
		backups = DefaultMaxBackups
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	w := &RotatingFileWriter{
		path:     path,
		maxBytes: maxBytes,
		backups:  backups,
		out:      out,
	}
	if stat, err := out.Stat(); err == nil {
		w.written = stat.Size()
	}

	// A leftover oversized file from a previous run rotates right away.
	if w.written > w.maxBytes {
		if err := w.rotate(); err != nil {
			return nil, err
		}
	}

	return w, nil
}

func (w *RotatingFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.out == nil {
		return 0, os.ErrClosed
	}

	// A single line larger than the limit still goes into an empty
	// file, otherwise rotation would loop.
	if w.written > 0 && w.written+int64(len(p)) > w.maxBytes {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.out.Write(p)
	w.written += int64(n)
	return n, err
}

func (w *RotatingFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.out == nil {
		return nil
	}
	err := w.out.Close()
	w.out = nil
	return err
}

// rotate closes the current file, shifts it into the backup chain and
// reopens a fresh one. Callers hold w.mu.
func (w *RotatingFileWriter) rotate() error {
	if w.out != nil {
		if err := w.out.Close(); err != nil {
			return err
		}
		w.out = nil
	}

	if w.backups == 0 {
		if err := removeIfPresent(w.path); err != nil {
			return err
		}
	} else if err := w.shiftBackups(); err != nil {
		return err
	}

	out, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	w.out = out
	w.written = 0
	return nil
}

// shiftBackups moves <path>.i to <path>.i+1 for every kept backup and
// then renames the live file to <path>.1.
func (w *RotatingFileWriter) shiftBackups() error {
	if err := removeIfPresent(w.backupPath(w.backups)); err != nil {
		return err
	}

	for idx := w.backups - 1; idx >= 1; idx-- {
		src := w.backupPath(idx)
		if _, err := os.Stat(src); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}

		dst := w.backupPath(idx + 1)
		if err := removeIfPresent(dst); err != nil {
			return err
		}
		if err := os.Rename(src, dst); err != nil {
			return err
		}
	}

	if _, err := os.Stat(w.path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	first := w.backupPath(1)
	if err := removeIfPresent(first); err != nil {
		return err
	}
	return os.Rename(w.path, first)
}

func (w *RotatingFileWriter) backupPath(idx int) string {
	return fmt.Sprintf("%s.%d", w.path, idx)
}

func removeIfPresent(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
