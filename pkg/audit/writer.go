// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cicd-ai-toolkit/agent-audit/pkg/errors"
)

const (
	// DefaultDirName is the log directory created under the working directory.
	DefaultDirName = "_logs"
	// DefaultFileName is the audit log file inside the log directory.
	DefaultFileName = "agent-audit.jsonl"
)

// Writer appends entries to <directory>/_logs/agent-audit.jsonl.
//
// Writes are best-effort: a failure to create the directory, encode the
// entry or append the line is discarded and leaves a gap in the trail.
// Each line is appended with a single write on an O_APPEND descriptor, so
// concurrent writers in one process never interleave within a line.
type Writer struct {
	dir  string
	path string
	now  func() time.Time
}

// WriterOption configures a Writer.
type WriterOption func(*writerOptions)

type writerOptions struct {
	dirName  string
	fileName string
	now      func() time.Time
}

// WithDirName overrides the log directory name.
func WithDirName(name string) WriterOption {
	return func(o *writerOptions) {
		o.dirName = name
	}
}

// WithFileName overrides the log file name.
func WithFileName(name string) WriterOption {
	return func(o *writerOptions) {
		o.fileName = name
	}
}

// WithClock sets the time source used to stamp entries.
func WithClock(now func() time.Time) WriterOption {
	return func(o *writerOptions) {
		o.now = now
	}
}

// NewWriter creates a writer rooted at the given working directory.
// Nothing touches the filesystem until the first write.
func NewWriter(directory string, opts ...WriterOption) *Writer {
	o := &writerOptions{
		dirName:  DefaultDirName,
		fileName: DefaultFileName,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	dir := filepath.Join(directory, o.dirName)
	return &Writer{
		dir:  dir,
		path: filepath.Join(dir, o.fileName),
		now:  o.now,
	}
}

// Dir returns the log directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Path returns the log file path.
func (w *Writer) Path() string {
	return w.path
}

// Log stamps a new entry with the current time and writes it.
func (w *Writer) Log(event string, fields map[string]any) {
	w.Write(NewEntry(w.now(), event, fields))
}

// Write appends the entry. It never returns an error and never panics.
func (w *Writer) Write(entry Entry) {
	defer func() {
		_ = recover()
	}()

	_ = w.append(entry)
}

// append does the actual work and reports what went wrong. The error is
// only for tests; callers outside the package cannot see it.
func (w *Writer) append(entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = w.now()
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return errors.IOError("failed to create log directory", err).WithContext("dir", w.dir)
	}

	data, err := entry.MarshalJSON()
	if err != nil {
		return errors.EncodeError(fmt.Sprintf("failed to encode %q entry", entry.Event), err)
	}
	line := append(data, '\n')

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.IOError("failed to open log file", err).WithContext("path", w.path)
	}

	if _, err := f.Write(line); err != nil {
		f.Close()
		return errors.IOError("failed to append log line", err).WithContext("path", w.path)
	}

	if err := f.Close(); err != nil {
		return errors.IOError("failed to close log file", err).WithContext("path", w.path)
	}

	return nil
}
