// Copyright 2017 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package product

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stanford-ssi/eve-l0b/internal/timeconv"
)

type fakeWriter struct {
	imagePaths []string
	tablePaths []string
}

func (f *fakeWriter) WriteImage(path string, pixels [][]uint16, headers []HeaderKV, table Row) error {
	f.imagePaths = append(f.imagePaths, path)
	return nil
}

func (f *fakeWriter) WriteTable(path string, headers []HeaderKV, table []Row) error {
	f.tablePaths = append(f.tablePaths, path)
	return nil
}

func TestPathForLayout(t *testing.T) {
	w := New(t.TempDir(), &fakeWriter{}, nil, nil)
	tai := timeconv.TAIEpochOffsetToUnix + timeconv.TAILeapSeconds + 100
	dir, base := w.pathFor("megs_a", tai)
	if !strings.Contains(dir, filepath.Join("level0b", "megs_a")) {
		t.Errorf("dir = %q, want to contain level0b/megs_a", dir)
	}
	if !strings.HasPrefix(base, "MA__L0B_0_") {
		t.Errorf("base = %q, want MA__L0B_0_ prefix", base)
	}
}

func TestWriteImageProductLocksAndWrites(t *testing.T) {
	fw := &fakeWriter{}
	w := New(t.TempDir(), fw, nil, nil)
	tai := timeconv.TAIEpochOffsetToUnix + timeconv.TAILeapSeconds + 100
	pixels := [][]uint16{{1, 2}, {3, 4}}
	if err := w.WriteImageProduct("megs_a", pixels, 2395, tai, tai, [4]float64{}); err != nil {
		t.Fatalf("WriteImageProduct() error = %v", err)
	}
	if len(fw.imagePaths) != 1 {
		t.Fatalf("len(imagePaths) = %d, want 1", len(fw.imagePaths))
	}
}

func TestAcquireLockRejectsExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "product.fit")
	release, err := acquireLock(path, time.Second)
	if err != nil {
		t.Fatalf("first acquireLock() error = %v", err)
	}
	defer release()
	if _, err := acquireLock(path, 50*time.Millisecond); err == nil {
		t.Fatal("second acquireLock() err = nil, want LockError")
	}
}

func TestAcquireLockWaitsForRemoval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "product.fit")
	release, err := acquireLock(path, time.Second)
	if err != nil {
		t.Fatalf("first acquireLock() error = %v", err)
	}
	go func() {
		time.Sleep(50 * time.Millisecond)
		release()
	}()
	if _, err := acquireLock(path, time.Second); err != nil {
		t.Fatalf("acquireLock() after release error = %v, want nil", err)
	}
}
