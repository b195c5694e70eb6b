// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m77

import (
	"fmt"

	"github.com/go-lpc/mmod/m77/internal/regs"
)

// Parity is the parity mode of a line.
type Parity uint8

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "none"
	case ParityOdd:
		return "odd"
	case ParityEven:
		return "even"
	}
	return fmt.Sprintf("Parity(%d)", uint8(p))
}

// Termios holds the line settings of a channel.
type Termios struct {
	Baud     int    `json:"baud"`      // bits per second; 0 selects 9600
	DataBits int    `json:"data_bits"` // 5 to 8; 0 selects 8
	StopBits int    `json:"stop_bits"` // 1 or 2; 0 selects 1
	Parity   Parity `json:"parity"`

	RTSCTS  bool `json:"rtscts"`  // hardware flow control, ignored on M77
	XonXoff bool `json:"xonxoff"` // in-band flow control

	CheckParity  bool `json:"inpck"`  // report parity and framing errors
	IgnoreParity bool `json:"ignpar"` // drop characters with parity or framing errors
	IgnoreBreak  bool `json:"ignbrk"`
	BreakInt     bool `json:"brkint"` // report breaks
	DisableRx    bool `json:"-"`      // drop every received character
	Local        bool `json:"clocal"` // ignore modem status lines
}

const (
	defaultBaud = 9600
	maxBaud     = regs.UARTCLK / 16
)

// Divisor returns the baud rate divisor of the 18.432 MHz UART clock
// closest to baud.
func Divisor(baud int) (uint16, error) {
	if baud == 0 {
		baud = defaultBaud
	}
	if baud < 0 || baud > maxBaud {
		return 0, fmt.Errorf("m77: invalid baud rate %d: %w", baud, ErrInvalidArgument)
	}
	div := (regs.UARTCLK + 8*baud) / (16 * baud)
	if div > 0xffff {
		return 0, fmt.Errorf("m77: baud rate %d too low: %w", baud, ErrInvalidArgument)
	}
	return uint16(div), nil
}

func (t Termios) lcr() (byte, error) {
	var lcr byte
	switch t.DataBits {
	case 5:
		lcr = regs.LCR_WLEN5
	case 6:
		lcr = regs.LCR_WLEN6
	case 7:
		lcr = regs.LCR_WLEN7
	case 0, 8:
		lcr = regs.LCR_WLEN8
	default:
		return 0, fmt.Errorf("m77: invalid number of data bits %d: %w", t.DataBits, ErrInvalidArgument)
	}

	switch t.StopBits {
	case 0, 1:
	case 2:
		lcr |= regs.LCR_STOP
	default:
		return 0, fmt.Errorf("m77: invalid number of stop bits %d: %w", t.StopBits, ErrInvalidArgument)
	}

	switch t.Parity {
	case ParityNone:
	case ParityOdd:
		lcr |= regs.LCR_PARITY
	case ParityEven:
		lcr |= regs.LCR_PARITY | regs.LCR_EPAR
	default:
		return 0, fmt.Errorf("m77: invalid parity %v: %w", t.Parity, ErrInvalidArgument)
	}
	return lcr, nil
}

// SetTermios applies line settings to a channel.
func (drv *Driver) SetTermios(line int, t Termios) error {
	lcr, err := t.lcr()
	if err != nil {
		return err
	}
	div, err := Divisor(t.Baud)
	if err != nil {
		return err
	}
	return drv.with(line, func(c *Channel) error {
		return c.do(func() error {
			c.setTermios(t, lcr, div)
			return nil
		})
	})
}

func (c *Channel) setTermios(t Termios, lcr byte, div uint16) {
	var fcr byte
	if c.caps&capFIFO != 0 {
		fcr = regs.FCR_ENABLE_FIFO | regs.FCR_R_TRIG_10
		if t.Baud != 0 && t.Baud < 2400 {
			fcr = regs.FCR_ENABLE_FIFO | regs.FCR_TRIGGER_1
		}
	}

	c.readMask = regs.LSR_OE | regs.LSR_THRE | regs.LSR_DR
	if t.CheckParity {
		c.readMask |= regs.LSR_FE | regs.LSR_PE
	}
	if t.BreakInt {
		c.readMask |= regs.LSR_BI
	}

	c.ignoreMask = 0
	if t.IgnoreParity {
		c.ignoreMask |= regs.LSR_PE | regs.LSR_FE
	}
	if t.IgnoreBreak {
		c.ignoreMask |= regs.LSR_BI
		if t.IgnoreParity {
			c.ignoreMask |= regs.LSR_OE
		}
	}
	if t.DisableRx {
		c.ignoreMask |= regs.LSR_DR
	}

	c.ier &^= regs.IER_MSI
	if t.RTSCTS || !t.Local {
		c.ier |= regs.IER_MSI
	}
	c.out(regs.UART_IER, c.ier)

	efr := byte(regs.EFR_ECB)
	if t.RTSCTS {
		if c.brd.kind == M77 {
			c.brd.logf("channel %d: ignoring RTS/CTS flow control on M77", c.index)
		} else {
			efr |= regs.EFR_CTS
		}
	}
	c.efrWrite(regs.UART_EFR, efr)

	if t.XonXoff {
		c.efrWrite(regs.UART_XON1, regs.XON_CHAR)
		c.efrWrite(regs.UART_XON2, regs.XON_CHAR)
		c.efrWrite(regs.UART_XOFF1, regs.XOFF_CHAR)
		c.efrWrite(regs.UART_XOFF2, regs.XOFF_CHAR)
	}
	c.setInbandFlowControl(t.XonXoff)

	c.out(regs.UART_LCR, lcr|regs.LCR_DLAB)
	c.out(regs.UART_DLL, byte(div))
	c.out(regs.UART_DLM, byte(div>>8))
	c.out(regs.UART_LCR, lcr)
	c.lcr = lcr

	if fcr&regs.FCR_ENABLE_FIFO != 0 {
		c.out(regs.UART_FCR, regs.FCR_ENABLE_FIFO)
	}
	c.out(regs.UART_FCR, fcr)
}
