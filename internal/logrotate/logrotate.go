// Copyright 2017 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package logrotate wraps a *logrus.Logger whose output file is rotated on
// minute boundaries, compressing the file it rotates away from.
package logrotate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stanford-ssi/eve-l0b/internal/compressor"
)

// timestampFormatter renders log lines as "YYYY-MM-DD HH:MM:SS [LEVEL] MSG",
// the layout the reference logger used.
type timestampFormatter struct{}

func (timestampFormatter) Format(e *logrus.Entry) ([]byte, error) {
	line := fmt.Sprintf("%s [%s] %s\n", e.Time.Format("2006-01-02 15:04:05"), e.Level.String(), e.Message)
	return []byte(line), nil
}

// Rotator owns a *logrus.Logger and swaps its output file every minute.
type Rotator struct {
	Logger *logrus.Logger
	root   string
	comp   *compressor.Compressor

	mu      sync.Mutex
	current *os.File
	minute  time.Time
}

// New creates a Rotator writing under root/logs/<year>/<day-of-year>/.
func New(root string, comp *compressor.Compressor) *Rotator {
	l := logrus.New()
	l.SetFormatter(timestampFormatter{})
	r := &Rotator{Logger: l, root: root, comp: comp}
	return r
}

func (r *Rotator) filename(t time.Time) string {
	dir := filepath.Join(r.root, "logs", fmt.Sprintf("%04d", t.Year()), fmt.Sprintf("%03d", t.YearDay()))
	name := fmt.Sprintf("log_%04d_%03d_%02d_%02d_%02d_%02d_%02d.log",
		t.Year(), t.YearDay(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
	return filepath.Join(dir, name)
}

// RollIfNeeded checks now against the currently open file's minute and
// rotates if it has changed. It must be called before each log line is
// emitted by the pipeline, at packet boundaries, never on a timer: a quiet
// minute with no packets never produces an empty log file.
func (r *Rotator) RollIfNeeded(now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	minute := now.Truncate(time.Minute)
	if r.current != nil && minute.Equal(r.minute) {
		return nil
	}
	path := r.filename(now)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "logrotate: mkdir %s: %v\n", filepath.Dir(path), err)
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logrotate: create %s: %v\n", path, err)
		return err
	}
	old := r.current
	oldPath := ""
	if old != nil {
		oldPath = old.Name()
	}
	r.current = f
	r.minute = minute
	r.Logger.SetOutput(f)
	if old != nil {
		old.Close()
		if r.comp != nil {
			go r.comp.Compress(context.Background(), oldPath)
		}
	}
	return nil
}

// Close finalizes the currently open log file, compressing it like every
// other rotation.
func (r *Rotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil
	}
	path := r.current.Name()
	err := r.current.Close()
	r.current = nil
	if r.comp != nil {
		r.comp.Compress(context.Background(), path)
	}
	return err
}
