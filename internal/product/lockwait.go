// Copyright 2017 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package product

import (
	"time"

	"github.com/fsnotify/fsnotify"
)

// WaitForLockRemoval blocks until lockPath is removed or timeout elapses,
// returning true if the lock was observed to clear. It replaces a
// busy-poll loop with an fsnotify watch on the lock file itself.
func WaitForLockRemoval(lockPath string, timeout time.Duration) bool {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return false
	}
	defer watcher.Close()
	if err := watcher.Add(lockPath); err != nil {
		// Lock file is already gone.
		return true
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return false
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				return true
			}
		case <-watcher.Errors:
			return false
		case <-deadline.C:
			return false
		}
	}
}
