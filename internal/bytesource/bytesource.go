// Copyright 2017 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package bytesource provides the block-oriented byte stream abstraction
// the framer reads from, along with the two concrete sources this system
// supports: a plain (optionally gzip-compressed) file and the FPGA's USB
// bulk endpoint.
package bytesource

import (
	"bufio"
	"compress/gzip"
	"io"
	"os"
	"time"
)

// ByteSource is a blocking, sequential source of bytes. ReadExact either
// fills buf completely or returns a non-nil error; a short read is never
// reported as success.
type ByteSource interface {
	ReadExact(buf []byte) error
	IsOpen() bool
	Close() error
}

// FileSource reads from a regular file, transparently decompressing it if
// it starts with the gzip magic number, and optionally pacing reads to
// approximate real-time telemetry arrival during a replay.
type FileSource struct {
	f      *os.File
	r      *bufio.Reader
	gz     *gzip.Reader
	closed bool

	// Pace, when non-zero, is slept after every successful ReadExact. It
	// models -slowReplay.
	Pace time.Duration
}

// NewFileSource opens path for reading and detects gzip framing by peeking
// its first two bytes.
func NewFileSource(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReaderSize(f, 64*1024)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		f.Close()
		return nil, err
	}
	fs := &FileSource{f: f, r: br}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			f.Close()
			return nil, err
		}
		fs.gz = gz
	}
	return fs, nil
}

func (fs *FileSource) reader() io.Reader {
	if fs.gz != nil {
		return fs.gz
	}
	return fs.r
}

// ReadExact implements ByteSource.
func (fs *FileSource) ReadExact(buf []byte) error {
	if _, err := io.ReadFull(fs.reader(), buf); err != nil {
		return err
	}
	if fs.Pace > 0 {
		time.Sleep(fs.Pace)
	}
	return nil
}

// IsOpen implements ByteSource.
func (fs *FileSource) IsOpen() bool { return !fs.closed }

// Close implements ByteSource.
func (fs *FileSource) Close() error {
	fs.closed = true
	if fs.gz != nil {
		fs.gz.Close()
	}
	return fs.f.Close()
}
