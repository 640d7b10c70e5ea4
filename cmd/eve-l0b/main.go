// Copyright 2017 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Command eve-l0b ingests CCSDS space packet telemetry, either replayed
// from a file or read live from the instrument's USB interface, and
// produces Level-0B archival products.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/maruel/interrupt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/stanford-ssi/eve-l0b/internal/config"
	"github.com/stanford-ssi/eve-l0b/internal/pipeline"
	"github.com/stanford-ssi/eve-l0b/internal/sharedstate"
)

func mainImpl() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}

	log := logrus.StandardLogger()
	state := sharedstate.New()

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(sharedstate.NewCollector(state))
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.WithError(err).Warn("metrics server stopped")
			}
		}()
	}

	p, err := pipeline.New(cfg, state, log)
	if err != nil {
		return err
	}

	interrupt.HandleCtrlC()
	defer interrupt.Set()

	return p.Run(context.Background())
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "eve-l0b: %s\n", err)
		os.Exit(1)
	}
}
