// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m77

import (
	"fmt"

	"github.com/go-lpc/mmod/m77/internal/regs"
)

// Modem control and status lines.
const (
	LineDTR  = 0x002
	LineRTS  = 0x004
	LineCTS  = 0x020
	LineCAR  = 0x040
	LineRNG  = 0x080
	LineDSR  = 0x100
	LineOUT1 = 0x2000
	LineOUT2 = 0x4000
	LineLoop = 0x8000
)

// startup wakes the UART up when the channel is opened: reset, enhanced
// mode, ACR restored from its shadow, FIFOs cleared, 8N1, interrupts on.
func (c *Channel) startup(tty Line) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.open {
		return fmt.Errorf("m77: line %d already open: %w", c.line, ErrInvalidArgument)
	}

	c.caps = capFIFO
	c.mcr = 0

	c.reset()
	c.efrWrite(regs.UART_EFR, regs.EFR_ECB)

	acr := c.acr &^ (regs.ACR_TXDIS | regs.ACR_ICRRD)
	if c.brd.kind.hasDCR() {
		if c.mode.HalfDuplex() {
			acr |= regs.ACR_DTR
		}
		if c.mode != Unset {
			c.writeDCR(c.dcr)
		}
	}
	c.writeACR(acr)

	c.clearFIFOs()
	c.drainStatus()

	c.lcr = regs.LCR_WLEN8
	c.out(regs.UART_LCR, c.lcr)

	c.mctrl |= LineOUT2
	c.setMctrl(c.mctrl)

	// check whether THRE is raised when enabling THRI on an empty FIFO.
	c.out(regs.UART_IER, regs.IER_THRI)
	lsr := c.in(regs.UART_LSR)
	iir := c.in(regs.UART_IIR)
	c.out(regs.UART_IER, 0)
	if lsr&regs.LSR_TEMT != 0 && iir&regs.IIR_NO_INT != 0 {
		if c.bugs&bugTXEN == 0 {
			c.bugs |= bugTXEN
			c.brd.logf("channel %d: enabling bad tx status workarounds", c.index)
		}
	} else {
		c.bugs &^= bugTXEN
	}

	c.ier = regs.IER_RLSI | regs.IER_RDI
	c.out(regs.UART_IER, c.ier)
	c.drainStatus()

	if err := c.io.flush(); err != nil {
		return fmt.Errorf("m77: could not start channel %d: %w", c.index, err)
	}
	c.tty = tty
	c.open = true
	return nil
}

// shutdown quiesces the UART on last close.
func (c *Channel) shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return nil
	}

	c.ier = 0
	c.out(regs.UART_IER, 0)

	c.mctrl &^= LineOUT2
	c.setMctrl(c.mctrl)

	c.lcr = c.in(regs.UART_LCR) &^ regs.LCR_SBC
	c.out(regs.UART_LCR, c.lcr)
	c.clearFIFOs()
	_ = c.in(regs.UART_RX)

	c.open = false
	c.tty = nil

	if err := c.io.flush(); err != nil {
		return fmt.Errorf("m77: could not shut channel %d down: %w", c.index, err)
	}
	return nil
}

// drainStatus clears pending interrupt conditions.
func (c *Channel) drainStatus() {
	_ = c.in(regs.UART_LSR)
	_ = c.in(regs.UART_RX)
	_ = c.in(regs.UART_IIR)
	_ = c.in(regs.UART_MSR)
}

func (c *Channel) setMctrl(mctrl uint) {
	var mcr byte
	if mctrl&LineRTS != 0 {
		mcr |= regs.MCR_RTS
	}
	if mctrl&LineDTR != 0 {
		mcr |= regs.MCR_DTR
	}
	if mctrl&LineOUT1 != 0 {
		mcr |= regs.MCR_OUT1
	}
	if mctrl&LineOUT2 != 0 {
		mcr |= regs.MCR_OUT2
	}
	if mctrl&LineLoop != 0 {
		mcr |= regs.MCR_LOOP
	}
	c.out(regs.UART_MCR, mcr|c.mcr)
}

func (c *Channel) getMctrl() uint {
	msr := c.in(regs.UART_MSR)
	var ret uint
	if msr&regs.MSR_DCD != 0 {
		ret |= LineCAR
	}
	if msr&regs.MSR_RI != 0 {
		ret |= LineRNG
	}
	if msr&regs.MSR_DSR != 0 {
		ret |= LineDSR
	}
	if msr&regs.MSR_CTS != 0 {
		ret |= LineCTS
	}
	return ret
}

// stopTxIRQ disables the transmit holding register interrupt.
func (c *Channel) stopTxIRQ() {
	if c.ier&regs.IER_THRI != 0 {
		c.ier &^= regs.IER_THRI
		c.out(regs.UART_IER, c.ier)
	}
}

// stopTx stops transmitting and disables the transmitter itself.
func (c *Channel) stopTx() {
	c.stopTxIRQ()
	c.writeACR(c.acr | regs.ACR_TXDIS)
}

// startTx enables the transmit interrupt and re-enables the transmitter.
func (c *Channel) startTx() {
	if c.ier&regs.IER_THRI == 0 {
		c.ier |= regs.IER_THRI
		c.out(regs.UART_IER, c.ier)

		if c.bugs&bugTXEN != 0 {
			lsr := c.in(regs.UART_LSR)
			iir := c.in(regs.UART_IIR)
			if lsr&regs.LSR_TEMT != 0 && iir&regs.IIR_NO_INT != 0 {
				c.transmitChars()
			}
		}
	}

	if c.acr&regs.ACR_TXDIS != 0 {
		c.writeACR(c.acr &^ regs.ACR_TXDIS)
	}
}

// stopRx stops reporting received characters.
func (c *Channel) stopRx() {
	c.ier &^= regs.IER_RLSI
	c.readMask &^= regs.LSR_DR
	c.out(regs.UART_IER, c.ier)
}

func (c *Channel) breakCtl(on bool) {
	if on {
		c.lcr |= regs.LCR_SBC
	} else {
		c.lcr &^= regs.LCR_SBC
	}
	c.out(regs.UART_LCR, c.lcr)
}

func (c *Channel) txEmpty() bool {
	return c.in(regs.UART_LSR)&regs.LSR_TEMT != 0
}
