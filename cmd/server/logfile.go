package main

import (
	"io"
	"os"
	"path/filepath"
	"sync"
)

// A log file is trimmed to its newest keepLogSizeBytes once it grows past
// maxLogSizeBytes.
const (
	maxLogSizeBytes  = 6 * 1024 * 1024
	keepLogSizeBytes = 5 * 1024 * 1024
)

type logFileWriter struct {
	file    *os.File
	maxSize int64
	keep    int64
	mu      sync.Mutex
}

func newLogFileWriter(path string) (*logFileWriter, *os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, err
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	writer := &logFileWriter{file: file, maxSize: maxLogSizeBytes, keep: keepLogSizeBytes}
	if err := writer.trimIfNeeded(); err != nil {
		file.Close()
		return nil, nil, err
	}
	return writer, file, nil
}

func (w *logFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.file.Write(p)
	if err != nil {
		return n, err
	}
	return n, w.trimIfNeeded()
}

// trimIfNeeded keeps the tail of the file so the newest entries survive.
func (w *logFileWriter) trimIfNeeded() error {
	info, err := w.file.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	if size <= w.maxSize {
		return nil
	}

	buf := make([]byte, w.keep)
	n, err := w.file.ReadAt(buf, size-w.keep)
	if err != nil && err != io.EOF {
		return err
	}
	buf = buf[:n]

	if err := w.file.Truncate(0); err != nil {
		return err
	}
	// O_APPEND writes always land at the end, so after truncation this
	// rewrites the kept tail from offset zero.
	_, err = w.file.Write(buf)
	return err
}
