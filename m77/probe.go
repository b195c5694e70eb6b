// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m77

import (
	"fmt"

	"github.com/go-lpc/mmod/m77/internal/regs"
)

// probe checks that an Ox16C95x UART answers at the channel window and
// discovers its capabilities.
func (c *Channel) probe() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.bugs = 0

	ier := c.in(regs.UART_IER)
	c.out(regs.UART_IER, 0)
	ier1 := c.in(regs.UART_IER)
	c.out(regs.UART_IER, 0x0f)
	ier2 := c.in(regs.UART_IER)
	c.out(regs.UART_IER, ier)
	if err := c.io.flush(); err != nil {
		return fmt.Errorf("m77: could not probe channel %d: %w", c.index, err)
	}
	if ier1 != 0 || ier2 != 0x0f {
		return fmt.Errorf(
			"m77: IER test failed on channel %d (0x%02x, 0x%02x): %w",
			c.index, ier1, ier2, ErrDeviceNotFound,
		)
	}

	mcr := c.in(regs.UART_MCR)
	lcr := c.in(regs.UART_LCR)

	c.out(regs.UART_MCR, regs.MCR_LOOP|regs.MCR_OUT2|regs.MCR_RTS)
	msr := c.in(regs.UART_MSR) & 0xf0
	c.out(regs.UART_MCR, mcr)
	if err := c.io.flush(); err != nil {
		return fmt.Errorf("m77: could not probe channel %d: %w", c.index, err)
	}
	if msr != regs.MSR_DCD|regs.MSR_CTS {
		return fmt.Errorf(
			"m77: loopback test failed on channel %d (0x%02x): %w",
			c.index, msr, ErrDeviceNotFound,
		)
	}

	c.efrWrite(regs.UART_EFR, regs.EFR_ECB)
	c.out(regs.UART_FCR, regs.FCR_ENABLE_FIFO)
	if iir := c.in(regs.UART_IIR) >> 6; iir == 3 {
		c.out(regs.UART_LCR, regs.LCR_ENHANCED)
		efr := c.in(regs.UART_EFR)
		c.out(regs.UART_LCR, lcr)
		if efr&^regs.EFR_ECB == 0 {
			c.acr = 0
			c.icrWrite(regs.ICR_ACR, 0)
			id1 := c.icrRead(regs.ICR_ID1)
			id2 := c.icrRead(regs.ICR_ID2)
			id3 := c.icrRead(regs.ICR_ID3)
			if id1 != regs.OX_ID1 || id2 != regs.OX_ID2 || id3&0xf9 != 0x50 {
				c.brd.logf("channel %d: unexpected 16C95x id %02x:%02x:%02x", c.index, id1, id2, id3)
			}
		}
	} else {
		c.brd.logf("channel %d: unknown iir value %d (should be 3)", c.index, iir)
	}
	c.out(regs.UART_LCR, lcr)

	// the Ox16C954 configuration only advertises the FIFO, whatever the
	// enhanced features found above.
	c.caps = capFIFO

	c.out(regs.UART_MCR, mcr)
	c.clearFIFOs()
	_ = c.in(regs.UART_RX)
	c.out(regs.UART_IER, 0)

	if err := c.io.flush(); err != nil {
		return fmt.Errorf("m77: could not probe channel %d: %w", c.index, err)
	}
	return nil
}
