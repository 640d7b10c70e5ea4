// Copyright 2017 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package config parses the command line flags and environment that
// govern a single run of the ingest pipeline.
package config

import (
	"errors"
	"flag"
	"os"
	"time"
)

// Config is the immutable result of parsing the command line and
// environment for one run. It is built once in main and handed down to
// every collaborator; nothing in this repository consults flag or os.Getenv
// directly outside of Load.
type Config struct {
	DataRoot string // EVE_DATA_ROOT, required.

	SourcePath      string // replay file path, or "" for --usb.
	UseUSB          bool   // read from the FPGA device instead of SourcePath.
	USBDevice       string // device node used when UseUSB is set.
	ReadBinAsUSB    bool   // reinterpret SourcePath as a raw USB block stream.
	WriteBinaryRxBuf string // tee raw USB transfers to this path, "" disables it.

	SkipESP     bool
	SkipMP      bool
	SkipRecord  bool
	SlowReplay  bool
	ReplayPace  time.Duration

	MetricsAddr string // listen address for the Prometheus endpoint, "" disables it.
}

// Load parses os.Args[1:] and the process environment into a Config.
func Load(args []string) (Config, error) {
	fs := flag.NewFlagSet("eve-l0b", flag.ContinueOnError)
	cfg := Config{}
	fs.StringVar(&cfg.SourcePath, "source", "", "replay a recorded telemetry file instead of the live USB source")
	fs.BoolVar(&cfg.UseUSB, "usb", false, "read telemetry from the FPGA USB device")
	fs.StringVar(&cfg.USBDevice, "usb-device", "/dev/eve-fpga0", "device node for --usb")
	fs.BoolVar(&cfg.ReadBinAsUSB, "readBinAsUSB", false, "treat -source as a raw USB block stream rather than a packet stream")
	fs.StringVar(&cfg.WriteBinaryRxBuf, "writeBinaryRxBuff", "", "tee every raw USB transfer to this file")
	fs.BoolVar(&cfg.SkipESP, "skipESP", false, "do not accumulate or write ESP records")
	fs.BoolVar(&cfg.SkipMP, "skipMP", false, "do not accumulate or write MEGS-P records")
	fs.BoolVar(&cfg.SkipRecord, "skipRecord", false, "do not write the raw telemetry capture file")
	fs.BoolVar(&cfg.SlowReplay, "slowReplay", false, "pace file replay to approximate real-time arrival")
	fs.DurationVar(&cfg.ReplayPace, "slowReplayInterval", 10*time.Millisecond, "sleep interval used by -slowReplay")
	fs.StringVar(&cfg.MetricsAddr, "metricsAddr", ":9100", "listen address for the Prometheus /metrics endpoint, empty disables it")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.DataRoot = os.Getenv("EVE_DATA_ROOT")
	if cfg.DataRoot == "" {
		return Config{}, errors.New("config: EVE_DATA_ROOT is not set")
	}
	if cfg.UseUSB && cfg.SourcePath != "" {
		return Config{}, errors.New("config: -usb and -source are mutually exclusive")
	}
	if !cfg.UseUSB && cfg.SourcePath == "" {
		return Config{}, errors.New("config: one of -usb or -source is required")
	}
	if cfg.ReadBinAsUSB && cfg.SourcePath == "" {
		return Config{}, errors.New("config: -readBinAsUSB requires -source")
	}
	return cfg, nil
}
