// Copyright 2017 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package rawrecord

import (
	"os"
	"testing"
	"time"
)

func TestWriteCreatesFileAndRotates(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, nil)
	t0 := time.Date(2024, 10, 20, 10, 30, 0, 0, time.UTC)
	if err := r.Write(t0, []byte("abc")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	firstPath := r.current.Name()

	t1 := t0.Add(time.Minute)
	if err := r.Write(t1, []byte("def")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	secondPath := r.current.Name()
	if firstPath == secondPath {
		t.Fatal("rotation did not open a new file across a minute boundary")
	}
	if _, err := os.Stat(firstPath); err != nil {
		t.Errorf("first file missing after rotation: %v", err)
	}

	r.Close()
}

func TestWriteStaysInSameFileWithinMinute(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, nil)
	defer r.Close()
	t0 := time.Date(2024, 10, 20, 10, 30, 0, 0, time.UTC)
	r.Write(t0, []byte("a"))
	first := r.current.Name()
	r.Write(t0.Add(10*time.Second), []byte("b"))
	if r.current.Name() != first {
		t.Error("rotated within the same minute, should not have")
	}
}
