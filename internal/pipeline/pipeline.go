// Copyright 2017 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package pipeline wires the framer, channel processors, recorders and
// writer pool into the single ingest run described by a config.Config.
package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"runtime"
	"sync"
	"time"

	"github.com/maruel/interrupt"
	"github.com/sirupsen/logrus"

	"github.com/stanford-ssi/eve-l0b/internal/bytesource"
	"github.com/stanford-ssi/eve-l0b/internal/ccsds"
	"github.com/stanford-ssi/eve-l0b/internal/compressor"
	"github.com/stanford-ssi/eve-l0b/internal/config"
	"github.com/stanford-ssi/eve-l0b/internal/demux"
	"github.com/stanford-ssi/eve-l0b/internal/housekeeping"
	"github.com/stanford-ssi/eve-l0b/internal/imageassembler"
	"github.com/stanford-ssi/eve-l0b/internal/integration"
	"github.com/stanford-ssi/eve-l0b/internal/logrotate"
	"github.com/stanford-ssi/eve-l0b/internal/product"
	"github.com/stanford-ssi/eve-l0b/internal/product/fitsfile"
	"github.com/stanford-ssi/eve-l0b/internal/rawrecord"
	"github.com/stanford-ssi/eve-l0b/internal/sharedstate"
)

// Row count constants for the fixed-size integration/housekeeping records.
// Not carried in the reference material available to this repository; see
// DESIGN.md for how these values were chosen.
const (
	megsPRowsPerRecord = 50
	espRowsPerRecord   = 50
	hkRowsPerRecord    = 10

	espChannelsPerRow   = 9
	megsPChannelsPerRow = 1

	// Temperature floats trail the per-channel samples in each record's
	// first packet; see DESIGN.md for how these offsets/counts were chosen.
	megsPTempOffset = 8 + megsPChannelsPerRow*2
	megsPTempCount  = 2
	espTempOffset   = 8 + espChannelsPerRow*2
	espTempCount    = 3
)

// writeJob is one completed record queued for the writer pool.
type writeJob func()

// Pipeline owns every collaborator for one ingest run.
type Pipeline struct {
	cfg   config.Config
	state *sharedstate.State
	log   *logrus.Logger

	src    bytesource.ByteSource
	framer *ccsds.Framer

	rec  *rawrecord.Recorder
	logs *logrotate.Rotator
	comp *compressor.Compressor
	pw   *product.Writer

	megsA *imageassembler.Assembler
	megsB *imageassembler.Assembler
	megsP *integration.Accumulator
	esp   *integration.Accumulator
	shk   *housekeeping.Accumulator

	jobs chan writeJob
	wg   sync.WaitGroup
}

// New builds a Pipeline ready to Run, opening the configured byte source
// and every file-based collaborator.
func New(cfg config.Config, state *sharedstate.State, log *logrus.Logger) (*Pipeline, error) {
	src, usbFraming, err := openSource(cfg)
	if err != nil {
		return nil, err
	}

	comp := &compressor.Compressor{Log: log}
	var rec *rawrecord.Recorder
	if !cfg.SkipRecord {
		rec = rawrecord.New(cfg.DataRoot, comp)
	}
	logs := logrotate.New(".", comp)
	pw := product.New(cfg.DataRoot, fitsfile.New(), comp, log)

	p := &Pipeline{
		cfg:    cfg,
		state:  state,
		log:    log,
		src:    src,
		framer: ccsds.NewFramer(src, usbFraming),
		rec:    rec,
		logs:   logs,
		comp:   comp,
		pw:     pw,
		megsA:  imageassembler.New("megs_a"),
		megsB:  imageassembler.New("megs_b"),
		megsP:  integration.New("megs_p", megsPRowsPerRecord, megsPChannelsPerRow, 8, megsPTempOffset, megsPTempCount),
		esp:    integration.New("esp", espRowsPerRecord, espChannelsPerRow, 8, espTempOffset, espTempCount),
		shk:    housekeeping.New(hkRowsPerRecord),
		jobs:   make(chan writeJob, 256),
	}
	return p, nil
}

// openSource opens the configured byte source. The bool return reports
// whether the framer should hunt for the byte-swapped sync marker; both
// USB-framed paths destripe and un-swap their 32 bit words down at the
// bytesource layer (see bytesource.USBSource), so the framer always sees a
// normally-ordered stream and never needs the swapped marker itself.
func openSource(cfg config.Config) (bytesource.ByteSource, bool, error) {
	if cfg.UseUSB {
		src, err := bytesource.OpenUSB(cfg.USBDevice, cfg.WriteBinaryRxBuf)
		return src, false, err
	}
	file, err := bytesource.NewFileSource(cfg.SourcePath)
	if err != nil {
		return nil, false, err
	}
	if cfg.SlowReplay {
		file.Pace = cfg.ReplayPace
	}
	if cfg.ReadBinAsUSB {
		return bytesource.NewReplayedUSBSource(file), false, nil
	}
	return file, false, nil
}

// Run drives the framer until the source is exhausted or the process-wide
// interrupt flag is set, flushing every in-progress record on the way out.
func (p *Pipeline) Run(ctx context.Context) error {
	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	dispatcher := p.buildDispatcher()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	lastCount := uint64(0)
	lastSyncDrift := p.framer.SyncDriftWarnings()

loop:
	for !interrupt.IsSet() {
		select {
		case <-ticker.C:
			total := p.state.MegsA.Received + p.state.MegsB.Received + p.state.MegsP.Received + p.state.ESP.Received + p.state.SHK.Received
			p.log.WithFields(logrus.Fields{"packets_per_sec": total - lastCount, "total": total}).Info("status")
			lastCount = total
		default:
		}

		pkt, err := p.framer.NextPacket()
		if err != nil {
			if ferr, ok := err.(*ccsds.FramingError); ok {
				if ferr.Kind == ccsds.UnknownAPID {
					p.state.RecordUnknownAPID()
				}
				p.log.WithError(ferr).Debug("framing error")
				continue
			}
			break loop
		}

		if d := p.framer.SyncDriftWarnings(); d != lastSyncDrift {
			p.state.RecordSyncDrift()
			lastSyncDrift = d
		}

		now := time.Now()
		if p.rec != nil {
			p.recordRaw(now, pkt)
		}
		p.logs.RollIfNeeded(now)

		dispatcher.Dispatch(now, pkt)
	}

	p.flush()
	close(p.jobs)
	p.wg.Wait()

	if p.rec != nil {
		p.rec.Close()
	}
	p.logs.Close()
	return p.src.Close()
}

func (p *Pipeline) recordRaw(now time.Time, pkt ccsds.Packet) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, ccsds.SyncMarker)
	var hdr [ccsds.PrimaryHeaderSize]byte
	encodeHeader(hdr[:], pkt.Header)
	buf.Write(hdr[:])
	buf.Write(pkt.Payload)
	p.rec.Write(now, buf.Bytes())
}

func encodeHeader(b []byte, h ccsds.Header) {
	w0 := uint16(h.Version)<<13 | uint16(h.Type)<<12 | boolBit(h.SecondaryHeaderFlag)<<11 | h.APID
	w1 := uint16(h.SequenceFlags)<<14 | h.SequenceCount
	binary.BigEndian.PutUint16(b[0:2], w0)
	binary.BigEndian.PutUint16(b[2:4], w1)
	binary.BigEndian.PutUint16(b[4:6], h.PacketDataLength)
}

func boolBit(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}

func (p *Pipeline) buildDispatcher() *demux.Dispatcher {
	h := demux.Handlers{
		MegsA: func(now time.Time, pkt ccsds.Packet) { p.feedImage(p.megsA, "megs_a", now, pkt, p.state.SetMegsAImage) },
		MegsB: func(now time.Time, pkt ccsds.Packet) { p.feedImage(p.megsB, "megs_b", now, pkt, p.state.SetMegsBImage) },
		SHK:   func(now time.Time, pkt ccsds.Packet) { p.feedHK(now, pkt) },
	}
	if !p.cfg.SkipMP {
		h.MegsP = func(now time.Time, pkt ccsds.Packet) { p.feedIntegration(p.megsP, "megs_p", now, pkt) }
	}
	if !p.cfg.SkipESP {
		h.ESP = func(now time.Time, pkt ccsds.Packet) { p.feedIntegration(p.esp, "esp", now, pkt) }
	}
	return &demux.Dispatcher{Handlers: h, State: p.state}
}

func (p *Pipeline) feedImage(a *imageassembler.Assembler, channel string, now time.Time, pkt ccsds.Packet, publish func(*sharedstate.ImageSnapshot)) {
	rec, ok := a.Feed(now, pkt)
	if !ok {
		return
	}
	p.state.RecordParityErrors(channel, rec.ParityErrors)
	p.state.RecordDataGap(channel, rec.DataGaps)
	p.enqueueImage(channel, rec, publish)
}

func (p *Pipeline) enqueueImage(channel string, rec *imageassembler.Record, publish func(*sharedstate.ImageSnapshot)) {
	p.jobs <- func() {
		pixels := make([][]uint16, len(rec.Pixels))
		for i := range rec.Pixels {
			row := make([]uint16, len(rec.Pixels[i]))
			copy(row, rec.Pixels[i][:])
			pixels[i] = row
		}
		publish(&sharedstate.ImageSnapshot{Pixels: pixels, TAISeconds: rec.TAISeconds, ParityErrors: rec.ParityErrors})
		var temps [4]float64
		if err := p.pw.WriteImageProduct(channel, pixels, rec.VCDUCount, rec.TAISeconds, rec.ReceiveTAI, temps); err != nil {
			p.log.WithError(err).WithField("channel", channel).Error("image product write failed")
		}
	}
}

func (p *Pipeline) feedIntegration(a *integration.Accumulator, channel string, now time.Time, pkt ccsds.Packet) {
	rec, ok := a.Feed(now, pkt)
	if !ok {
		return
	}
	p.state.RecordDataGap(channel, rec.DataGaps)
	p.enqueueIntegration(channel, rec)
}

func (p *Pipeline) enqueueIntegration(channel string, rec *integration.Record) {
	p.jobs <- func() {
		rows := make([]product.Row, 0, len(rec.Rows))
		for _, r := range rec.Rows {
			rows = append(rows, product.Row{Columns: []product.Column{{Name: "DN", U16: r.Channels}}})
		}
		rows = append(rows, product.Row{Columns: []product.Column{{Name: "TEMPERATURES", F64: rec.Temps}}})
		if err := p.pw.WriteTableProduct(channel, rows, rec.TAISeconds, rec.ReceiveTAI); err != nil {
			p.log.WithError(err).WithField("channel", channel).Error("table product write failed")
		}
	}
}

func (p *Pipeline) feedHK(now time.Time, pkt ccsds.Packet) {
	rec, ok := p.shk.Feed(now, pkt)
	if !ok {
		return
	}
	p.state.RecordDataGap("shk", rec.DataGaps)
	p.jobs <- func() {
		rows := make([]product.Row, 0, len(rec.Rows))
		for _, r := range rec.Rows {
			raw := make([]uint32, len(r.Raw))
			copy(raw, r.Raw[:])
			eng := make([]float64, len(r.Eng))
			copy(eng, r.Eng[:])
			rows = append(rows, product.Row{Columns: []product.Column{
				{Name: "RAW", U32: raw},
				{Name: "ENG", F64: eng},
			}})
		}
		if err := p.pw.WriteTableProduct("shk", rows, rec.TAISeconds, rec.ReceiveTAI); err != nil {
			p.log.WithError(err).Error("housekeeping product write failed")
		}
	}
}

// flush delivers every channel processor's in-progress record, per the
// end-of-stream / shutdown contract.
func (p *Pipeline) flush() {
	if rec, ok := p.megsA.Flush(); ok {
		p.state.RecordParityErrors("megs_a", rec.ParityErrors)
		p.enqueueImage("megs_a", rec, p.state.SetMegsAImage)
	}
	if rec, ok := p.megsB.Flush(); ok {
		p.state.RecordParityErrors("megs_b", rec.ParityErrors)
		p.enqueueImage("megs_b", rec, p.state.SetMegsBImage)
	}
	if rec, ok := p.megsP.Flush(); ok {
		p.enqueueIntegration("megs_p", rec)
	}
	if rec, ok := p.esp.Flush(); ok {
		p.enqueueIntegration("esp", rec)
	}
	if rec, ok := p.shk.Flush(); ok {
		p.jobs <- func() {
			rows := make([]product.Row, 0, len(rec.Rows))
			for _, r := range rec.Rows {
				rows = append(rows, product.Row{Columns: []product.Column{
					{Name: "RAW", U32: append([]uint32(nil), r.Raw[:]...)},
					{Name: "ENG", F64: append([]float64(nil), r.Eng[:]...)},
				}})
			}
			p.pw.WriteTableProduct("shk", rows, rec.TAISeconds, rec.ReceiveTAI)
		}
	}
}

func (p *Pipeline) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		job()
	}
}
