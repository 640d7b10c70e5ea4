// Copyright 2017 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bytesource

import (
	"encoding/binary"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// USB bulk transfer geometry for the FPGA's telemetry endpoint. Every
// block is a 1 word (4 byte) header followed by up to usbDataWordsPerBlock
// 32 bit data words; the header's value is the number of those words that
// are actually valid in this block.
const (
	usbWordSize          = 4
	usbDataWordsPerBlock = 255
	usbBlockSize         = usbWordSize + usbDataWordsPerBlock*usbWordSize // 1024
	usbBlocksPerXfer     = 64
	usbTransferSize      = usbBlockSize * usbBlocksPerXfer // 64KiB
)

// unswapWord reverses the four bytes of one 32 bit word, undoing the
// FPGA's word-oriented byte order on its USB telemetry path.
func unswapWord(b []byte) [usbWordSize]byte {
	return [usbWordSize]byte{b[3], b[2], b[1], b[0]}
}

// destripeBlocks strips the per-1024-byte block header from xfer and
// un-swaps every word (header and data alike), returning a contiguous,
// normally-ordered byte stream ready for the framer.
func destripeBlocks(xfer []byte) []byte {
	out := make([]byte, 0, len(xfer))
	for blockStart := 0; blockStart+usbBlockSize <= len(xfer); blockStart += usbBlockSize {
		header := unswapWord(xfer[blockStart : blockStart+usbWordSize])
		count := int(binary.BigEndian.Uint32(header[:]))
		if count > usbDataWordsPerBlock {
			count = usbDataWordsPerBlock
		}
		for w := 0; w < count; w++ {
			off := blockStart + usbWordSize + w*usbWordSize
			word := unswapWord(xfer[off : off+usbWordSize])
			out = append(out, word[:]...)
		}
	}
	return out
}

// usbBulkRead is the ioctl request code for a bulk read against the
// device's single telemetry endpoint. Its value is a property of the FPGA
// driver ABI, not of this program.
const usbBulkRead = 0xC0185500

// USBSource reads fixed 64KiB bulk transfers from the FPGA's USB device
// node and serves them to the framer one byte at a time through a small
// internal buffer, exactly the way the replayed file sources do.
//
// Every block in a transfer carries a 1 word header ahead of its data
// words, and the FPGA writes every word byte-reversed; both are undone
// here so callers see a plain, normally-ordered byte stream.
type USBSource struct {
	closed int32
	lock   sync.Mutex
	f      *os.File

	xfer    [usbTransferSize]byte
	pending []byte // unconsumed destriped bytes from the last transfer

	tee *os.File // non-nil when -writeBinaryRxBuff is set
}

// OpenUSB opens device and prepares it for bulk reads.
func OpenUSB(device string, teePath string) (*USBSource, error) {
	f, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	u := &USBSource{f: f}
	if teePath != "" {
		tee, err := os.Create(teePath)
		if err != nil {
			f.Close()
			return nil, err
		}
		u.tee = tee
	}
	return u, nil
}

func (u *USBSource) ioctl(buf []byte) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, u.f.Fd(), usbBulkRead, uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return errno
	}
	return nil
}

func (u *USBSource) fillTransfer() error {
	if err := u.ioctl(u.xfer[:]); err != nil {
		return err
	}
	if u.tee != nil {
		if _, err := u.tee.Write(u.xfer[:]); err != nil {
			return err
		}
	}
	u.pending = destripeBlocks(u.xfer[:])
	return nil
}

// ReadExact implements bytesource.ByteSource.
func (u *USBSource) ReadExact(buf []byte) error {
	if atomic.LoadInt32(&u.closed) != 0 {
		return io.ErrClosedPipe
	}
	u.lock.Lock()
	defer u.lock.Unlock()
	need := len(buf)
	got := 0
	for got < need {
		if len(u.pending) == 0 {
			if err := u.fillTransfer(); err != nil {
				return err
			}
		}
		n := copy(buf[got:], u.pending)
		u.pending = u.pending[n:]
		got += n
	}
	return nil
}

// IsOpen implements bytesource.ByteSource.
func (u *USBSource) IsOpen() bool { return atomic.LoadInt32(&u.closed) == 0 }

// Close implements bytesource.ByteSource.
func (u *USBSource) Close() error {
	if !atomic.CompareAndSwapInt32(&u.closed, 0, 1) {
		return io.ErrClosedPipe
	}
	u.lock.Lock()
	defer u.lock.Unlock()
	if u.tee != nil {
		u.tee.Close()
	}
	return u.f.Close()
}

// ReplayedUSBSource reinterprets a plain file as the raw block stream a
// USBSource would have produced, so the USB framing path can be exercised
// from a recorded capture without hardware. It reuses USBSource's
// destriping logic against transfers read from the file instead of an
// ioctl.
type ReplayedUSBSource struct {
	file    *FileSource
	pending []byte
}

// NewReplayedUSBSource wraps an already-opened file source.
func NewReplayedUSBSource(file *FileSource) *ReplayedUSBSource {
	return &ReplayedUSBSource{file: file}
}

func (r *ReplayedUSBSource) fillTransfer() error {
	var xfer [usbTransferSize]byte
	if err := r.file.ReadExact(xfer[:]); err != nil {
		return err
	}
	r.pending = destripeBlocks(xfer[:])
	return nil
}

// ReadExact implements bytesource.ByteSource.
func (r *ReplayedUSBSource) ReadExact(buf []byte) error {
	need := len(buf)
	got := 0
	for got < need {
		if len(r.pending) == 0 {
			if err := r.fillTransfer(); err != nil {
				return err
			}
		}
		n := copy(buf[got:], r.pending)
		r.pending = r.pending[n:]
		got += n
	}
	return nil
}

// IsOpen implements bytesource.ByteSource.
func (r *ReplayedUSBSource) IsOpen() bool { return r.file.IsOpen() }

// Close implements bytesource.ByteSource.
func (r *ReplayedUSBSource) Close() error { return r.file.Close() }
