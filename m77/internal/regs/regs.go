// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package regs holds the register map of the M45N/M69N/M77 M-modules and of
// their Ox16C954 UART.
package regs // import "github.com/go-lpc/mmod/m77/internal/regs"

// M-module identification, as read from the module ID PROM.
const (
	MOD_M45 = 0x7d2d
	MOD_M69 = 0x7d45
	MOD_M77 = 0x004d
)

// Channel counts.
const (
	M45_CHAN_NUM = 8
	M69_CHAN_NUM = 4
	M77_CHAN_NUM = 4
)

// Board control window. These offsets are used unshifted.
const (
	WINDOW_SIZE = 0x100

	CHAN_STRIDE = 0x10 // distance between two channel windows
	M45_GAP     = 0x40 // extra offset of the M45N channels 4-7

	REG_IR      = 0x48 // interrupt register (M77, M69N, M45N channels 0-3)
	M45_REG_IR2 = 0xc8 // second interrupt register of the M45N

	DCR_BASE = 0x20 // M77 driver configuration registers, one per channel
	TCR1     = 0x20 // M45N tristate control, channels 0-3
	TCR2     = 0x60 // M45N tristate control, channels 4-7
)

// Interrupt register bits.
const (
	IR_IRQ   = 0x01 // interrupt pending
	IR_IMASK = 0x02 // interrupt enable
	IR_DRVEN = 0x04 // M77: enable the isolated line drivers
)

// M77 driver configuration register.
const (
	DCR_MODE_MASK = 0x07
	DCR_RX_EN     = 0x08
)

// M45N tristate bits.
const (
	TCR_TRISTATE0 = 0x1
	TCR_TRISTATE1 = 0x2
	TCR_TRISTATE2 = 0x4
	TCR_TRISTATE3 = 0x1
	TCR_TRISTATE4 = 0x2
)

// UART clock of all three modules.
const UARTCLK = 18432000

// Ox16C954 channel registers (shifted on the bus).
const (
	UART_RX  = 0 // receive buffer (DLAB=0, read)
	UART_TX  = 0 // transmit holding (DLAB=0, write)
	UART_DLL = 0 // divisor latch low (DLAB=1)
	UART_IER = 1
	UART_DLM = 1 // divisor latch high (DLAB=1)
	UART_IIR = 2 // read
	UART_FCR = 2 // write
	UART_EFR = 2 // LCR=0xbf
	UART_LCR = 3
	UART_MCR = 4
	UART_LSR = 5 // read
	UART_ICR = 5 // write; read when ACR[ICRRD] is set
	UART_MSR = 6
	UART_SCR = 7

	UART_XON1  = 4 // LCR=0xbf
	UART_XON2  = 5 // LCR=0xbf
	UART_XOFF1 = 6 // LCR=0xbf
	UART_XOFF2 = 7 // LCR=0xbf
)

// LCR value exposing the 650-compatible enhanced register bank.
const LCR_ENHANCED = 0xbf

// Indexed control register set.
const (
	ICR_ACR = 0x00
	ICR_CPR = 0x01
	ICR_TCR = 0x02
	ICR_CKS = 0x03
	ICR_TTL = 0x04
	ICR_RTL = 0x05
	ICR_FCL = 0x06
	ICR_FCH = 0x07
	ICR_ID1 = 0x08
	ICR_ID2 = 0x09
	ICR_ID3 = 0x0a
	ICR_REV = 0x0b
	ICR_CSR = 0x0c
	ICR_NMR = 0x0d
	ICR_MDM = 0x0e
	ICR_RFC = 0x0f
	ICR_GDS = 0x10
)

// ACR bits.
const (
	ACR_RXDIS = 0x01
	ACR_TXDIS = 0x02
	ACR_DSRFC = 0x04
	ACR_DTR   = 0x18 // DTR# line configuration, drives the half-duplex transceiver
	ACR_TRIG  = 0x20
	ACR_ICRRD = 0x40
	ACR_ASREN = 0x80
)

// EFR bits.
const (
	EFR_FLOW_MASK = 0x0f
	EFR_INBAND    = 0x0a // transmit XON1/XOFF1, receive XON1/XOFF1
	EFR_ECB       = 0x10
	EFR_SCD       = 0x20
	EFR_RTS       = 0x40
	EFR_CTS       = 0x80
)

// IER bits.
const (
	IER_RDI  = 0x01
	IER_THRI = 0x02
	IER_RLSI = 0x04
	IER_MSI  = 0x08
	IER_UUE  = 0x40
)

// IIR bits.
const (
	IIR_NO_INT = 0x01
	IIR_ID     = 0x3e
	IIR_FIFO   = 0xc0
)

// FCR bits.
const (
	FCR_ENABLE_FIFO = 0x01
	FCR_CLEAR_RCVR  = 0x02
	FCR_CLEAR_XMIT  = 0x04
	FCR_TRIGGER_1   = 0x00
	FCR_R_TRIG_10   = 0x80
)

// LCR bits.
const (
	LCR_WLEN5  = 0x00
	LCR_WLEN6  = 0x01
	LCR_WLEN7  = 0x02
	LCR_WLEN8  = 0x03
	LCR_STOP   = 0x04
	LCR_PARITY = 0x08
	LCR_EPAR   = 0x10
	LCR_SPAR   = 0x20
	LCR_SBC    = 0x40
	LCR_DLAB   = 0x80
)

// MCR bits.
const (
	MCR_DTR  = 0x01
	MCR_RTS  = 0x02
	MCR_OUT1 = 0x04
	MCR_OUT2 = 0x08
	MCR_LOOP = 0x10
	MCR_AFE  = 0x20
)

// LSR bits.
const (
	LSR_DR   = 0x01
	LSR_OE   = 0x02
	LSR_PE   = 0x04
	LSR_FE   = 0x08
	LSR_BI   = 0x10
	LSR_THRE = 0x20
	LSR_TEMT = 0x40
)

// MSR bits.
const (
	MSR_DCTS      = 0x01
	MSR_DDSR      = 0x02
	MSR_TERI      = 0x04
	MSR_DDCD      = 0x08
	MSR_ANY_DELTA = 0x0f
	MSR_CTS       = 0x10
	MSR_DSR       = 0x20
	MSR_RI        = 0x40
	MSR_DCD       = 0x80
)

// Ox16C95x identification.
const (
	OX_ID1 = 0x16
	OX_ID2 = 0xc9
)

// Default XON/XOFF characters.
const (
	XON_CHAR  = 0x11 // ^Q
	XOFF_CHAR = 0x13 // ^S
)
