// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m77

import (
	"math"
	"sync"

	"github.com/go-lpc/mmod/m77/internal/regs"
)

// Flag qualifies a received character.
type Flag uint8

const (
	FlagNormal Flag = iota
	FlagBreak
	FlagParity
	FlagFrame
	FlagOverrun
)

func (f Flag) String() string {
	switch f {
	case FlagNormal:
		return "normal"
	case FlagBreak:
		return "break"
	case FlagParity:
		return "parity"
	case FlagFrame:
		return "frame"
	case FlagOverrun:
		return "overrun"
	}
	return "unknown"
}

// Line is the line-discipline side of an open channel: it owns the
// inbound sink and the outbound queue.
//
// Line methods are called from the interrupt path with the channel lock
// held; they must not block nor call back into the Driver.
type Line interface {
	// Receive stores one received character.
	Receive(ch byte, flag Flag)
	// Flush signals the end of a receive burst.
	Flush()
	// Pending returns the number of bytes waiting to be sent.
	Pending() int
	// Fill moves up to len(p) pending bytes into p.
	Fill(p []byte) int
	// ModemStatus is called when a modem status line changed.
	ModemStatus(msr byte)
}

// Stats holds the per-channel counters. Counters saturate.
type Stats struct {
	RX      uint32 `json:"rx"`
	TX      uint32 `json:"tx"`
	Break   uint32 `json:"brk"`
	Parity  uint32 `json:"parity"`
	Frame   uint32 `json:"frame"`
	Overrun uint32 `json:"overrun"`
	Ring    uint32 `json:"rng"`
	DSR     uint32 `json:"dsr"`
	DCD     uint32 `json:"dcd"`
	CTS     uint32 `json:"cts"`
}

func inc(p *uint32) {
	if *p != math.MaxUint32 {
		*p++
	}
}

// UART capabilities and bugs discovered at probe time.
const (
	capFIFO = 1 << 8

	bugTXEN = 1 << 1 // THRE interrupt not raised when enabling THRI on an empty FIFO
)

const (
	fifoSize = 128 // Ox16C954 FIFO depth
	txLoad   = 128
)

// Channel is one UART of a board.
type Channel struct {
	// mu serializes every register access to the channel, including the
	// multi-cycle indexed and enhanced protocols.
	mu sync.Mutex

	brd   *Board
	index int   // channel number within the board
	line  int   // flat channel index, -1 while unbound
	base  int64 // offset of the UART registers in the board window
	io    bus

	dcrReg int  // M77: offset of this channel's DCR in the board window
	tcrReg int  // M45N: offset of this channel's TCR in the board window
	tcrBit byte // M45N: bit of this channel in its TCR

	caps uint16
	bugs uint16

	// acr shadows ACR: the indexed register set is write-only unless
	// ICRRD is armed, and arming it rewrites ACR from this value.
	acr byte
	// dcr shadows the last value written to the M77 DCR. Its RX_EN and
	// mode bits cannot be read back reliably on every module revision.
	dcr byte

	ier byte
	lcr byte
	mcr byte

	mctrl      uint
	readMask   byte
	ignoreMask byte

	mode Mode
	echo bool

	open  bool
	tty   Line
	xmit  [txLoad]byte
	stats Stats
}

func newChannel(brd *Board, i int) *Channel {
	c := &Channel{
		brd:      brd,
		index:    i,
		line:     -1,
		io:       bus{rw: brd.win},
		readMask: regs.LSR_OE | regs.LSR_THRE | regs.LSR_DR,
	}
	c.bind()
	return c
}

// bind computes the register offsets of the channel. They depend only on
// the board kind and the channel number and never change afterwards.
func (c *Channel) bind() {
	kind := c.brd.kind
	c.base = chanBase(kind, c.index)
	c.dcrReg = -1
	c.tcrReg = -1
	switch {
	case kind.hasDCR():
		c.dcrReg = (regs.DCR_BASE + c.index) << 1
	case kind.hasTCR():
		reg := regs.TCR1
		if c.index > 3 {
			reg = regs.TCR2
		}
		c.tcrReg = reg << 1
		c.tcrBit = tcrBits[c.index]
	}
}

// Board returns the board of the channel.
func (c *Channel) Board() *Board { return c.brd }

// Index returns the channel number within its board.
func (c *Channel) Index() int { return c.index }

// Line returns the flat channel index, or -1 if the channel is unbound.
func (c *Channel) Line() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.line
}

// Mode returns the current physical mode of the channel.
func (c *Channel) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Echo returns the current echo policy of the channel.
func (c *Channel) Echo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.echo
}

// Stats returns a snapshot of the channel counters.
func (c *Channel) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// clearFIFOs resets both FIFOs and leaves them disabled.
func (c *Channel) clearFIFOs() {
	if c.caps&capFIFO == 0 {
		return
	}
	c.out(regs.UART_FCR, regs.FCR_ENABLE_FIFO)
	c.out(regs.UART_FCR, regs.FCR_ENABLE_FIFO|regs.FCR_CLEAR_RCVR|regs.FCR_CLEAR_XMIT)
	c.out(regs.UART_FCR, 0)
}

// reset disables the channel interrupts and resets the UART core.
func (c *Channel) reset() {
	c.out(regs.UART_IER, 0)
	c.out(regs.UART_LCR, 0)
	c.icrWrite(regs.ICR_CSR, 0)
	c.ier = 0
	c.lcr = 0
}
