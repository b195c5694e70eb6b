// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m77

import (
	"github.com/go-lpc/mmod/m77/internal/regs"
)

// Handler services a shared interrupt line.
// Interrupt reports whether one of its sources raised the interrupt.
type Handler interface {
	Interrupt() bool
}

var _ Handler = (*Driver)(nil)

// Interrupt scans every registered board for a pending interrupt, services
// the channels of the boards that raised it and acknowledges them.
// It reports whether any board had its pending bit set.
func (drv *Driver) Interrupt() bool {
	drv.mu.RLock()
	defer drv.mu.RUnlock()

	handled := false
	for _, brd := range drv.reg.scan() {
		if !brd.kind.valid() {
			drv.msg.Printf("irq: skipping board %q of unknown kind %v", brd.name, brd.kind)
			continue
		}
		if drv.service(brd, regs.REG_IR, brd.channels()) {
			handled = true
		}
		// the second register is checked even if the first one was idle.
		if brd.kind.hasIR2() {
			if drv.service(brd, regs.M45_REG_IR2, brd.channels()[4:]) {
				handled = true
			}
		}
	}
	return handled
}

// service handles one CPLD interrupt register of a board.
// The register is acknowledged only once every channel has been serviced:
// an earlier acknowledge would lose an interrupt raised meanwhile.
func (drv *Driver) service(brd *Board, reg int64, chans []*Channel) bool {
	ctl := bus{rw: brd.win}
	ir := ctl.read(reg)
	if err := ctl.flush(); err != nil {
		drv.msg.Printf("irq: %s: %+v", brd.name, err)
		return false
	}
	if ir&regs.IR_IRQ == 0 {
		return false
	}

	for _, c := range chans {
		c.mu.Lock()
		if c.in(regs.UART_IIR)&regs.IIR_NO_INT == 0 {
			c.handlePort(drv.rxMax)
		}
		if err := c.io.flush(); err != nil {
			drv.msg.Printf("irq: %s: channel %d: %+v", brd.name, c.index, err)
		}
		c.mu.Unlock()
	}

	ctl.write(reg, ir)
	if err := ctl.flush(); err != nil {
		drv.msg.Printf("irq: %s: could not acknowledge: %+v", brd.name, err)
	}
	return true
}

// handlePort services one interrupting UART. Callers hold c.mu.
func (c *Channel) handlePort(rxMax int) {
	lsr := c.in(regs.UART_LSR)
	if lsr&regs.LSR_DR != 0 {
		lsr = c.receiveChars(lsr, rxMax)
	}
	c.checkModemStatus()
	if lsr&regs.LSR_THRE != 0 {
		c.transmitChars()
	}
}

// receiveChars drains the receive FIFO, at most max characters per call.
// It returns the last line status read.
func (c *Channel) receiveChars(lsr byte, max int) byte {
	for n := 0; n < max; n++ {
		ch := c.in(regs.UART_RX)
		flag := FlagNormal
		inc(&c.stats.RX)

		if lsr&(regs.LSR_BI|regs.LSR_PE|regs.LSR_FE|regs.LSR_OE) != 0 {
			switch {
			case lsr&regs.LSR_BI != 0:
				lsr &^= regs.LSR_FE | regs.LSR_PE
				inc(&c.stats.Break)
			case lsr&regs.LSR_PE != 0:
				inc(&c.stats.Parity)
			case lsr&regs.LSR_FE != 0:
				inc(&c.stats.Frame)
			}
			if lsr&regs.LSR_OE != 0 {
				inc(&c.stats.Overrun)
			}

			lsr &= c.readMask
			switch {
			case lsr&regs.LSR_BI != 0:
				flag = FlagBreak
			case lsr&regs.LSR_PE != 0:
				flag = FlagParity
			case lsr&regs.LSR_FE != 0:
				flag = FlagFrame
			}
		}

		if c.tty != nil {
			if lsr&c.ignoreMask&^regs.LSR_OE == 0 {
				c.tty.Receive(ch, flag)
			}
			if lsr&^c.ignoreMask&regs.LSR_OE != 0 {
				c.tty.Receive(0, FlagOverrun)
			}
		}

		lsr = c.in(regs.UART_LSR)
		if lsr&regs.LSR_DR == 0 {
			break
		}
	}
	if c.tty != nil {
		c.tty.Flush()
	}
	return lsr
}

// checkModemStatus accounts for modem status line changes.
func (c *Channel) checkModemStatus() {
	msr := c.in(regs.UART_MSR)
	if msr&regs.MSR_ANY_DELTA == 0 {
		return
	}

	if msr&regs.MSR_TERI != 0 {
		inc(&c.stats.Ring)
	}
	if msr&regs.MSR_DDSR != 0 {
		inc(&c.stats.DSR)
	}
	if msr&regs.MSR_DDCD != 0 {
		inc(&c.stats.DCD)
	}
	if msr&regs.MSR_DCTS != 0 {
		inc(&c.stats.CTS)
	}
	if c.tty != nil {
		c.tty.ModemStatus(msr)
	}
}

// transmitChars loads the transmit FIFO from the line queue.
func (c *Channel) transmitChars() {
	if c.tty == nil {
		c.stopTxIRQ()
		return
	}
	if c.tty.Pending() == 0 {
		c.stopTxIRQ()
		return
	}

	n := c.tty.Fill(c.xmit[:txLoad])
	for _, b := range c.xmit[:n] {
		c.out(regs.UART_TX, b)
		inc(&c.stats.TX)
	}

	if c.tty.Pending() == 0 {
		c.stopTxIRQ()
	}
}
