// Copyright 2017 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package rawrecord writes every accepted raw packet, verbatim, to a
// minute-rotating capture file so a run can be replayed exactly.
package rawrecord

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/stanford-ssi/eve-l0b/internal/compressor"
)

// Recorder appends raw packet bytes to record_<year>_<doy>_<HH>_<MM>_<SS>.rtlm
// files under root, rotating to a new file whenever the wall-clock minute
// changes.
type Recorder struct {
	root string
	comp *compressor.Compressor

	current *os.File
	minute  time.Time
}

// New creates a Recorder rooted at root.
func New(root string, comp *compressor.Compressor) *Recorder {
	return &Recorder{root: root, comp: comp}
}

func (r *Recorder) filename(t time.Time) string {
	name := fmt.Sprintf("record_%04d_%03d_%02d_%02d_%02d.rtlm",
		t.Year(), t.YearDay(), t.Hour(), t.Minute(), t.Second())
	return filepath.Join(r.root, name)
}

// rotate closes the current file, if any, and opens a new one for now. It
// only runs when the minute has actually changed, never on a fixed timer.
func (r *Recorder) rotate(now time.Time) error {
	path := r.filename(now)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("rawrecord: open %s: %w", path, err)
	}
	old := r.current
	oldPath := ""
	if old != nil {
		oldPath = old.Name()
	}
	r.current = f
	r.minute = now.Truncate(time.Minute)
	if old != nil {
		old.Close()
		if r.comp != nil {
			go r.comp.Compress(context.Background(), oldPath)
		}
	}
	return nil
}

// Write appends raw, the exact bytes of one accepted packet as the caller
// frames them (the pipeline passes sync marker, primary header and
// payload), rotating the file first if the minute has changed since the
// last write.
func (r *Recorder) Write(now time.Time, raw []byte) error {
	minute := now.Truncate(time.Minute)
	if r.current == nil || !minute.Equal(r.minute) {
		if err := r.rotate(now); err != nil {
			return err
		}
	}
	_, err := r.current.Write(raw)
	return err
}

// Close finalizes the currently open capture file, compressing it.
func (r *Recorder) Close() error {
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
