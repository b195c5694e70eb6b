// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m77

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Window is the register window of one M-module, as mapped by the bus
// backend. All accesses are 16-bit wide; only the low byte carries data.
type Window interface {
	io.ReaderAt
	io.WriterAt
}

// Identifier is implemented by windows able to report the module ID
// stored in the M-module ID PROM.
// Boards behind a window without it are only checked by the UART probe.
type Identifier interface {
	ModuleID() (uint16, error)
}

// bus performs D16 cycles on a register window.
// The first failing cycle is latched in err: all following cycles are
// no-ops until the error is collected with flush.
type bus struct {
	rw  Window
	err error
	buf [2]byte
}

func (b *bus) read(off int64) byte {
	if b.err != nil {
		return 0
	}
	_, err := b.rw.ReadAt(b.buf[:], off)
	if err != nil {
		b.err = fmt.Errorf("%w: could not read register 0x%02x: %w", ErrIO, off, err)
		return 0
	}
	return byte(binary.LittleEndian.Uint16(b.buf[:]) & 0x00ff)
}

func (b *bus) write(off int64, v byte) {
	if b.err != nil {
		return
	}
	binary.LittleEndian.PutUint16(b.buf[:], uint16(v))
	_, err := b.rw.WriteAt(b.buf[:], off)
	if err != nil {
		b.err = fmt.Errorf("%w: could not write register 0x%02x: %w", ErrIO, off, err)
	}
}

// flush returns and clears the latched error.
func (b *bus) flush() error {
	err := b.err
	b.err = nil
	return err
}

// in reads a UART register of the channel.
// The M-module interface has no A0 line: offsets are shifted by one.
// Callers hold c.mu.
func (c *Channel) in(off int) byte {
	return c.io.read(c.base + int64(off)<<1)
}

// out writes a UART register of the channel.
func (c *Channel) out(off int, v byte) {
	c.io.write(c.base+int64(off)<<1, v)
}

// ctlIn reads a board control register. Control offsets are not shifted.
func (c *Channel) ctlIn(off int) byte {
	return c.io.read(int64(off))
}

// ctlOut writes a board control register.
func (c *Channel) ctlOut(off int, v byte) {
	c.io.write(int64(off), v)
}
