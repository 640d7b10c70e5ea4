// Copyright 2017 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package demux

import (
	"testing"
	"time"

	"github.com/stanford-ssi/eve-l0b/internal/ccsds"
	"github.com/stanford-ssi/eve-l0b/internal/sharedstate"
)

func TestDispatchRoutesByAPID(t *testing.T) {
	state := sharedstate.New()
	var gotA bool
	d := &Dispatcher{Handlers: Handlers{MegsA: func(time.Time, ccsds.Packet) { gotA = true }}, State: state}
	d.Dispatch(time.Now(), ccsds.Packet{Header: ccsds.Header{APID: ccsds.APIDMegsA}})
	if !gotA {
		t.Error("MegsA handler was not invoked")
	}
	if state.MegsA.Received != 1 {
		t.Errorf("MegsA.Received = %d, want 1", state.MegsA.Received)
	}
}

func TestDispatchNilHandlerStillCounts(t *testing.T) {
	state := sharedstate.New()
	d := &Dispatcher{State: state}
	d.Dispatch(time.Now(), ccsds.Packet{Header: ccsds.Header{APID: ccsds.APIDESP}})
	if state.ESP.Received != 1 {
		t.Errorf("ESP.Received = %d, want 1", state.ESP.Received)
	}
}

func TestDispatchUnknownAPID(t *testing.T) {
	state := sharedstate.New()
	d := &Dispatcher{State: state}
	d.Dispatch(time.Now(), ccsds.Packet{Header: ccsds.Header{APID: 9999}})
	if state.UnknownAPID != 1 {
		t.Errorf("UnknownAPID = %d, want 1", state.UnknownAPID)
	}
}
