// Copyright 2017 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package compressor compresses closed raw-capture and log files by
// shelling out to an external gzip-compatible binary, the way the
// reference implementation offloaded compression to pigz rather than
// linking a compression library into the hot path.
package compressor

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"
)

// Compressor runs an external binary against closed files. The zero value
// uses "gzip".
type Compressor struct {
	Binary string // defaults to "gzip" when empty
	Log    *logrus.Logger
}

// Compress runs Binary against path. Failures are logged and otherwise
// swallowed: a file that fails to compress is left in place, never lost.
func (c *Compressor) Compress(ctx context.Context, path string) error {
	bin := c.Binary
	if bin == "" {
		bin = "gzip"
	}
	start := time.Now()
	cmd := exec.CommandContext(ctx, bin, "-f", path)
	err := cmd.Run()
	elapsed := time.Since(start)
	log := c.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err != nil {
		log.WithFields(logrus.Fields{"path": path, "elapsed": elapsed, "err": err}).
			Warn("compression failed, leaving file uncompressed")
		return fmt.Errorf("compressor: %s %s: %w", bin, path, err)
	}
	log.WithFields(logrus.Fields{"path": path, "elapsed": elapsed}).Debug("compressed file")
	return nil
}
