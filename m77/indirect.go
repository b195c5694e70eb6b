// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m77

import (
	"github.com/go-lpc/mmod/m77/internal/regs"
)

// efrRead reads a register of the 650-compatible enhanced bank (EFR,
// XON1/2, XOFF1/2). The bank is only visible while LCR holds the access
// code, so the whole sequence runs under c.mu.
func (c *Channel) efrRead(off int) byte {
	lcr := c.in(regs.UART_LCR)
	c.out(regs.UART_LCR, regs.LCR_ENHANCED)
	v := c.in(off)
	c.out(regs.UART_LCR, lcr)
	return v
}

// efrWrite writes a register of the enhanced bank.
func (c *Channel) efrWrite(off int, v byte) {
	lcr := c.in(regs.UART_LCR)
	c.out(regs.UART_LCR, regs.LCR_ENHANCED)
	c.out(off, v)
	c.out(regs.UART_LCR, lcr)
}

// icrWrite writes a register of the indexed control register set.
func (c *Channel) icrWrite(idx, v byte) {
	c.out(regs.UART_SCR, idx)
	c.out(regs.UART_ICR, v)
}

// icrRead reads a register of the indexed control register set.
// Indexed registers are only readable while ACR[ICRRD] is set; ACR is
// restored from its shadow afterwards.
func (c *Channel) icrRead(idx byte) byte {
	c.icrWrite(regs.ICR_ACR, c.acr|regs.ACR_ICRRD)
	c.out(regs.UART_SCR, idx)
	v := c.in(regs.UART_ICR)
	c.icrWrite(regs.ICR_ACR, c.acr)
	return v
}

// writeACR programs ACR and updates its shadow once the cycle went through.
func (c *Channel) writeACR(acr byte) {
	c.icrWrite(regs.ICR_ACR, acr)
	if c.io.err == nil {
		c.acr = acr
	}
}

// setInbandFlowControl switches XON1/XOFF1 software flow control in EFR.
func (c *Channel) setInbandFlowControl(on bool) {
	efr := c.efrRead(regs.UART_EFR) &^ regs.EFR_FLOW_MASK
	if on {
		efr |= regs.EFR_INBAND
	}
	c.efrWrite(regs.UART_EFR, efr)
}
