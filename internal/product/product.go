// Copyright 2017 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package product writes completed channel records as self-describing
// files under the archival directory layout and hands the closed file to
// the compressor.
package product

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stanford-ssi/eve-l0b/internal/compressor"
	"github.com/stanford-ssi/eve-l0b/internal/timeconv"
)

// lockWaitTimeout bounds how long acquireLock waits for a sibling archival
// process to release a held ".lock" sentinel before giving up.
const lockWaitTimeout = 5 * time.Second

// HeaderKV is one file header key/value pair.
type HeaderKV struct {
	Key   string
	Value interface{}
}

// Row is a single binary-table row: an ordered list of named columns, each
// either a scalar or a fixed-length array of uint16/uint32/float64.
type Row struct {
	Columns []Column
}

// Column is one named table column.
type Column struct {
	Name string
	U16  []uint16
	U32  []uint32
	F64  []float64
}

// TableImageWriter is the archival file format collaborator: it knows how
// to lay out header cards, a 2-D image extension and a binary table
// extension in whatever self-describing format the downstream consumers
// expect. This repository's own implementation lives in the fitsfile
// subpackage.
type TableImageWriter interface {
	WriteImage(path string, pixels [][]uint16, headers []HeaderKV, table Row) error
	WriteTable(path string, headers []HeaderKV, table []Row) error
}

// channel prefixes used to build a product's file name, mirroring the
// archival naming convention for each APID's product stream.
var channelPrefix = map[string]string{
	"megs_a": "MA__L0B_0",
	"megs_b": "MB__L0B_0",
	"megs_p": "MP__L0B_0",
	"esp":    "ESP_L0B_0",
	"shk":    "SHK_L0B_0",
	"unk":    "unknown_apid",
}

// Writer places completed records under root's archival tree.
type Writer struct {
	Root   string
	Writer TableImageWriter
	Comp   *compressor.Compressor
	Log    *logrus.Logger
}

// New returns a Writer rooted at root.
func New(root string, w TableImageWriter, comp *compressor.Compressor, log *logrus.Logger) *Writer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Writer{Root: root, Writer: w, Comp: comp, Log: log}
}

// pathFor returns the directory and base name (without extension) for a
// product of the given channel and TAI timestamp.
func (w *Writer) pathFor(channel string, taiSeconds float64) (dir, base string) {
	ts := timeconv.Timestamp{Seconds: uint32(taiSeconds)}
	t := ts.ToUnix()
	dir = filepath.Join(w.Root, "level0b", channel, fmt.Sprintf("%04d", t.Year()), fmt.Sprintf("%03d", t.YearDay()))
	prefix := channelPrefix[channel]
	if prefix == "" {
		prefix = channelPrefix["unk"]
	}
	base = fmt.Sprintf("%s_%04d%03d_%02d%02d%02d", prefix, t.Year(), t.YearDay(), t.Hour(), t.Minute(), t.Second())
	return dir, base
}

// commonHeaders builds the header keys every product carries.
func commonHeaders(extname string, taiSeconds, recTAI float64, firstPacketUnix time.Time) []HeaderKV {
	ts := timeconv.Timestamp{Seconds: uint32(taiSeconds)}
	t := ts.ToUnix()
	return []HeaderKV{
		{Key: "EXTNAME", Value: extname},
		{Key: "SOD", Value: t.Hour()*3600 + t.Minute()*60 + t.Second()},
		{Key: "YDOY", Value: fmt.Sprintf("%04d%03d", t.Year(), t.YearDay())},
		{Key: "TAI_TIME", Value: taiSeconds},
		{Key: "REC_TAI", Value: recTAI},
		{Key: "DATE-BEG", Value: firstPacketUnix.Format(time.RFC3339)},
		{Key: "SOLARNET", Value: 0.5},
		{Key: "OBS_HDU", Value: 1},
	}
}

// acquireLock creates path+".lock". If one already exists, it waits up to
// timeout for a sibling archival process to remove it before giving up with
// a retryable *LockError. It is a pure cooperative hint; no other process in
// this system actually checks it today, but archival siblings outside this
// repository do.
func acquireLock(path string, timeout time.Duration) (release func(), err error) {
	lockPath := path + ".lock"
	create := func() (*os.File, error) {
		return os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	}

	f, err := create()
	if err != nil && os.IsExist(err) && WaitForLockRemoval(lockPath, timeout) {
		f, err = create()
	}
	if err != nil {
		if os.IsExist(err) {
			return nil, &LockError{Path: lockPath}
		}
		return nil, err
	}
	f.Close()
	return func() { os.Remove(lockPath) }, nil
}

// LockError reports a held lock sentinel. Callers should retry later.
type LockError struct{ Path string }

func (e *LockError) Error() string { return fmt.Sprintf("product: lock held: %s", e.Path) }

// WriteImageProduct writes an image channel record (MEGS-A/MEGS-B).
func (w *Writer) WriteImageProduct(channel string, pixels [][]uint16, vcduCount int, taiSeconds, recTAI float64, temps [4]float64) error {
	dir, base := w.pathFor(channel, taiSeconds)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, base+".fit")
	release, err := acquireLock(path, lockWaitTimeout)
	if err != nil {
		return err
	}
	defer release()

	headers := commonHeaders(channel, taiSeconds, recTAI, timeconv.Timestamp{Seconds: uint32(recTAI)}.ToUnix())
	table := Row{Columns: []Column{
		{Name: "VCDU_COUNT", U16: []uint16{uint16(vcduCount)}},
		{Name: "TEMPERATURES", F64: temps[:]},
	}}
	if err := w.Writer.WriteImage(path, pixels, headers, table); err != nil {
		w.Log.WithFields(logrus.Fields{"path": path, "err": err}).Error("product write failed")
		return err
	}
	w.compress(path)
	return nil
}

// WriteTableProduct writes a time-series channel record (MEGS-P/ESP/SHK).
func (w *Writer) WriteTableProduct(channel string, rows []Row, taiSeconds, recTAI float64) error {
	dir, base := w.pathFor(channel, taiSeconds)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, base+".fit")
	release, err := acquireLock(path, lockWaitTimeout)
	if err != nil {
		return err
	}
	defer release()

	headers := commonHeaders(channel, taiSeconds, recTAI, timeconv.Timestamp{Seconds: uint32(recTAI)}.ToUnix())
	if err := w.Writer.WriteTable(path, headers, rows); err != nil {
		w.Log.WithFields(logrus.Fields{"path": path, "err": err}).Error("product write failed")
		return err
	}
	w.compress(path)
	return nil
}

func (w *Writer) compress(path string) {
	if w.Comp == nil {
		return
	}
	if err := w.Comp.Compress(context.Background(), path); err != nil {
		w.Log.WithFields(logrus.Fields{"path": path, "err": err}).Warn("product compression failed")
	}
}
