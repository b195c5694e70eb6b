// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m77

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-lpc/mmod/m77/internal/regs"
)

// Mode is the physical interface mode of a M77 channel.
// Its value is the 3-bit code written into the channel's DCR.
type Mode uint8

const (
	Unset   Mode = 0x00 // not configured since load
	RS422HD Mode = 0x01 // RS422 half duplex
	RS422FD Mode = 0x02 // RS422 full duplex
	RS485HD Mode = 0x03 // RS485 half duplex
	RS485FD Mode = 0x04 // RS485 full duplex
	RS232   Mode = 0x07 // RS232
)

// Modes lists the valid physical modes.
var Modes = []Mode{RS422HD, RS422FD, RS485HD, RS485FD, RS232}

func (m Mode) String() string {
	switch m {
	case Unset:
		return "unset"
	case RS422HD:
		return "rs422-hd"
	case RS422FD:
		return "rs422-fd"
	case RS485HD:
		return "rs485-hd"
	case RS485FD:
		return "rs485-fd"
	case RS232:
		return "rs232"
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// Valid reports whether m is one of the five physical modes.
func (m Mode) Valid() bool {
	switch m {
	case RS422HD, RS422FD, RS485HD, RS485FD, RS232:
		return true
	}
	return false
}

// HalfDuplex reports whether the transceiver is driven by DTR#.
func (m Mode) HalfDuplex() bool {
	return m == RS422HD || m == RS485HD
}

// ParseMode parses a mode name ("rs485-hd", "RS485HD") or its numeric
// code ("3").
func ParseMode(s string) (Mode, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.ParseUint(v, 0, 8); err == nil {
		m := Mode(n)
		if !m.Valid() {
			return Unset, fmt.Errorf("m77: invalid phys mode %d: %w", n, ErrInvalidArgument)
		}
		return m, nil
	}
	v = strings.NewReplacer("-", "", "_", "").Replace(v)
	for _, m := range Modes {
		if strings.ReplaceAll(m.String(), "-", "") == v {
			return m, nil
		}
	}
	return Unset, fmt.Errorf("m77: invalid phys mode %q: %w", s, ErrInvalidArgument)
}

// setMode switches the channel to physical mode m.
//
// ACR[DTR] must be armed before the transceiver enters a half-duplex
// mode, and the transceiver must leave half-duplex before ACR[DTR] is
// released: otherwise the driver is briefly enabled on a shared RS485 pair.
func (c *Channel) setMode(m Mode) error {
	if !c.brd.kind.hasDCR() {
		return fmt.Errorf("m77: phys mode on %v channel %d: %w", c.brd.kind, c.index, ErrUnsupported)
	}
	if !m.Valid() {
		return fmt.Errorf("m77: invalid phys mode %d: %w", uint8(m), ErrInvalidArgument)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	dcr := c.ctlIn(c.dcrReg) &^ regs.DCR_MODE_MASK
	acr := c.icrRead(regs.ICR_ACR) &^ regs.ACR_ICRRD

	dcr |= byte(m)
	if m.HalfDuplex() {
		acr |= regs.ACR_DTR
		c.writeACR(acr)
		c.writeDCR(dcr)
	} else {
		acr &^= regs.ACR_DTR
		c.writeDCR(dcr)
		c.writeACR(acr)
	}

	if err := c.io.flush(); err != nil {
		return fmt.Errorf("m77: could not set phys mode %v on channel %d: %w", m, c.index, err)
	}
	c.mode = m
	return nil
}

// writeDCR programs the channel DCR and updates its shadow.
func (c *Channel) writeDCR(dcr byte) {
	c.ctlOut(c.dcrReg, dcr)
	if c.io.err == nil {
		c.dcr = dcr
	}
}

// setEcho enables or suppresses the receiver while transmitting.
// The setting only matters in half-duplex modes.
func (c *Channel) setEcho(on bool) error {
	if !c.brd.kind.hasDCR() {
		return fmt.Errorf("m77: echo on %v channel %d: %w", c.brd.kind, c.index, ErrUnsupported)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	dcr := c.ctlIn(c.dcrReg) &^ regs.DCR_RX_EN
	if on {
		dcr |= regs.DCR_RX_EN
	}
	c.writeDCR(dcr)

	if err := c.io.flush(); err != nil {
		return fmt.Errorf("m77: could not set echo on channel %d: %w", c.index, err)
	}
	c.echo = on
	return nil
}

// setTristate switches the outputs of a M45N channel to tristate.
// Channels sharing a TCR bit are switched together.
func (c *Channel) setTristate(on bool) error {
	if !c.brd.kind.hasTCR() {
		return fmt.Errorf("m77: tristate on %v channel %d: %w", c.brd.kind, c.index, ErrUnsupported)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.brd.mu.Lock()
	defer c.brd.mu.Unlock()

	tcr := c.ctlIn(c.tcrReg)
	if on {
		tcr |= c.tcrBit
	} else {
		tcr &^= c.tcrBit
	}
	c.ctlOut(c.tcrReg, tcr)

	if err := c.io.flush(); err != nil {
		return fmt.Errorf("m77: could not set tristate on channel %d: %w", c.index, err)
	}
	return nil
}
