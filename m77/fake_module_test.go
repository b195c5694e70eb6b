// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m77

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"

	"github.com/go-lpc/mmod/m77/internal/regs"
)

// fakeModule simulates the CPLD and the Ox16C954 UARTs of a M-module.
// It records the writes relevant to the tests in events.
type fakeModule struct {
	mu   sync.Mutex
	kind Kind
	ctl  [regs.WINDOW_SIZE]byte
	uart []*fakeUART

	cycles int
	events []string

	// fail, if set, is consulted before each bus cycle.
	fail func(off int64, write bool) error
}

type rxChar struct {
	ch  byte
	lsr byte
}

// fakeUART models the registers of one Ox16C954 channel.
type fakeUART struct {
	ier, lcr, mcr, msr, scr  byte
	fcr, dll, dlm            byte
	efr                      byte
	xon1, xon2, xoff1, xoff2 byte
	icr                      [0x20]byte

	rx []rxChar
	tx []byte

	dead bool // does not answer
}

func newFakeModule(kind Kind) *fakeModule {
	dev := &fakeModule{kind: kind}
	for i := 0; i < kind.Channels(); i++ {
		u := &fakeUART{}
		u.icr[regs.ICR_ID1] = regs.OX_ID1
		u.icr[regs.ICR_ID2] = regs.OX_ID2
		u.icr[regs.ICR_ID3] = 0x54
		dev.uart = append(dev.uart, u)
	}
	return dev
}

// route maps a window offset to a channel and a UART register.
func (dev *fakeModule) route(off int64) (int, int) {
	switch {
	case off < 0x40:
		return int(off / regs.CHAN_STRIDE), int(off%regs.CHAN_STRIDE) >> 1
	case dev.kind == M45 && off >= 0x80 && off < 0xc0:
		return 4 + int((off-0x80)/regs.CHAN_STRIDE), int(off%regs.CHAN_STRIDE) >> 1
	}
	return -1, -1
}

func (dev *fakeModule) ReadAt(p []byte, off int64) (int, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if len(p) != 2 || off&1 != 0 {
		return 0, fmt.Errorf("fake: invalid D16 read at 0x%x (len=%d)", off, len(p))
	}
	if off < 0 || off+2 > regs.WINDOW_SIZE {
		return 0, io.EOF
	}
	dev.cycles++
	if dev.fail != nil {
		if err := dev.fail(off, false); err != nil {
			return 0, err
		}
	}

	var v byte
	if ch, reg := dev.route(off); ch >= 0 {
		v = dev.uart[ch].read(reg)
	} else {
		v = dev.ctl[off]
	}
	// the upper byte of the data bus floats.
	binary.LittleEndian.PutUint16(p, 0xff00|uint16(v))
	return 2, nil
}

func (dev *fakeModule) WriteAt(p []byte, off int64) (int, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if len(p) != 2 || off&1 != 0 {
		return 0, fmt.Errorf("fake: invalid D16 write at 0x%x (len=%d)", off, len(p))
	}
	if off < 0 || off+2 > regs.WINDOW_SIZE {
		return 0, io.ErrShortWrite
	}
	dev.cycles++
	if dev.fail != nil {
		if err := dev.fail(off, true); err != nil {
			return 0, err
		}
	}

	v := byte(binary.LittleEndian.Uint16(p))
	if ch, reg := dev.route(off); ch >= 0 {
		u := dev.uart[ch]
		if reg == regs.UART_ICR && u.lcr != regs.LCR_ENHANCED && u.lcr&regs.LCR_DLAB == 0 && u.scr == regs.ICR_ACR {
			dev.events = append(dev.events, fmt.Sprintf("acr%d=0x%02x", ch, v))
		}
		u.write(reg, v)
		return 2, nil
	}

	switch {
	case off == regs.REG_IR || (dev.kind == M45 && off == regs.M45_REG_IR2):
		old := dev.ctl[off]
		nv := v &^ regs.IR_IRQ
		if v&regs.IR_IRQ == 0 {
			nv |= old & regs.IR_IRQ
		}
		dev.ctl[off] = nv
		dev.events = append(dev.events, fmt.Sprintf("ir@0x%02x=0x%02x", off, v))
	case dev.kind == M77 && off >= regs.DCR_BASE<<1 && off < (regs.DCR_BASE+regs.M77_CHAN_NUM)<<1:
		dev.ctl[off] = v
		dev.events = append(dev.events, fmt.Sprintf("dcr%d=0x%02x", (off>>1)-regs.DCR_BASE, v))
	case dev.kind == M45 && (off == regs.TCR1<<1 || off == regs.TCR2<<1):
		dev.ctl[off] = v
		dev.events = append(dev.events, fmt.Sprintf("tcr@0x%02x=0x%02x", off, v))
	default:
		dev.ctl[off] = v
	}
	return 2, nil
}

// note appends an event to the trace.
func (dev *fakeModule) note(format string, args ...any) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.events = append(dev.events, fmt.Sprintf(format, args...))
}

func (dev *fakeModule) trace() []string {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return append([]string(nil), dev.events...)
}

func (dev *fakeModule) reset() {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.events = nil
}

func (dev *fakeModule) dcr(i int) byte {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.ctl[(regs.DCR_BASE+i)<<1]
}

func (dev *fakeModule) reg(off int) byte {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.ctl[off]
}

func (dev *fakeModule) setReg(off int, v byte) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.ctl[off] = v
}

func (dev *fakeModule) acr(i int) byte {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.uart[i].icr[regs.ICR_ACR]
}

// inject queues received characters on channel i, with the given line
// status error bits.
func (dev *fakeModule) inject(i int, lsr byte, data ...byte) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	for _, b := range data {
		dev.uart[i].rx = append(dev.uart[i].rx, rxChar{ch: b, lsr: lsr})
	}
}

func (dev *fakeModule) sent(i int) []byte {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return append([]byte(nil), dev.uart[i].tx...)
}

func (dev *fakeModule) uartReg(i int, fn func(u *fakeUART) byte) byte {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return fn(dev.uart[i])
}

func (u *fakeUART) pending() bool {
	return (u.ier&regs.IER_RDI != 0 && len(u.rx) > 0) ||
		(u.ier&regs.IER_MSI != 0 && u.msr&regs.MSR_ANY_DELTA != 0) ||
		u.ier&regs.IER_THRI != 0
}

func (u *fakeUART) read(reg int) byte {
	if u.dead {
		return 0xff
	}
	switch {
	case u.lcr == regs.LCR_ENHANCED:
		switch reg {
		case 0:
			return u.dll
		case 1:
			return u.dlm
		case regs.UART_EFR:
			return u.efr
		case regs.UART_LCR:
			return u.lcr
		case regs.UART_XON1:
			return u.xon1
		case regs.UART_XON2:
			return u.xon2
		case regs.UART_XOFF1:
			return u.xoff1
		case regs.UART_XOFF2:
			return u.xoff2
		}
	case u.lcr&regs.LCR_DLAB != 0 && reg <= 1:
		if reg == 0 {
			return u.dll
		}
		return u.dlm
	}

	switch reg {
	case regs.UART_RX:
		if len(u.rx) == 0 {
			return 0
		}
		c := u.rx[0]
		u.rx = u.rx[1:]
		return c.ch
	case regs.UART_IER:
		return u.ier
	case regs.UART_IIR:
		var iir byte = regs.IIR_NO_INT
		if u.pending() {
			iir = 0x00
		}
		if u.fcr&regs.FCR_ENABLE_FIFO != 0 {
			iir |= regs.IIR_FIFO
		}
		return iir
	case regs.UART_LCR:
		return u.lcr
	case regs.UART_MCR:
		return u.mcr
	case regs.UART_LSR:
		if u.icr[regs.ICR_ACR]&regs.ACR_ICRRD != 0 {
			return u.icr[u.scr&0x1f]
		}
		lsr := byte(regs.LSR_THRE | regs.LSR_TEMT)
		if len(u.rx) > 0 {
			lsr |= regs.LSR_DR | u.rx[0].lsr
		}
		return lsr
	case regs.UART_MSR:
		msr := u.msr
		if u.mcr&regs.MCR_LOOP != 0 {
			msr &= 0x0f
			if u.mcr&regs.MCR_RTS != 0 {
				msr |= regs.MSR_CTS
			}
			if u.mcr&regs.MCR_DTR != 0 {
				msr |= regs.MSR_DSR
			}
			if u.mcr&regs.MCR_OUT1 != 0 {
				msr |= regs.MSR_RI
			}
			if u.mcr&regs.MCR_OUT2 != 0 {
				msr |= regs.MSR_DCD
			}
		}
		// deltas are cleared on read.
		u.msr &^= regs.MSR_ANY_DELTA
		return msr
	case regs.UART_SCR:
		return u.scr
	}
	return 0
}

func (u *fakeUART) write(reg int, v byte) {
	if u.dead {
		return
	}
	switch {
	case u.lcr == regs.LCR_ENHANCED:
		switch reg {
		case 0:
			u.dll = v
		case 1:
			u.dlm = v
		case regs.UART_EFR:
			u.efr = v
		case regs.UART_LCR:
			u.lcr = v
		case regs.UART_XON1:
			u.xon1 = v
		case regs.UART_XON2:
			u.xon2 = v
		case regs.UART_XOFF1:
			u.xoff1 = v
		case regs.UART_XOFF2:
			u.xoff2 = v
		}
		return
	case u.lcr&regs.LCR_DLAB != 0 && reg <= 1:
		if reg == 0 {
			u.dll = v
		} else {
			u.dlm = v
		}
		return
	}

	switch reg {
	case regs.UART_TX:
		u.tx = append(u.tx, v)
	case regs.UART_IER:
		u.ier = v
	case regs.UART_FCR:
		u.fcr = v
		if v&regs.FCR_CLEAR_RCVR != 0 {
			u.rx = nil
		}
	case regs.UART_LCR:
		u.lcr = v
	case regs.UART_MCR:
		u.mcr = v
	case regs.UART_ICR:
		u.icr[u.scr&0x1f] = v
	case regs.UART_SCR:
		u.scr = v
	}
}

// idModule is a fake module reporting its module ID.
type idModule struct {
	*fakeModule
	id  uint16
	err error
}

func (m idModule) ModuleID() (uint16, error) { return m.id, m.err }

// recLine is a line discipline recording its activity in the module trace.
type recLine struct {
	dev  *fakeModule
	name string
	rx   []byte
	flag []Flag
	tx   []byte
	msr  []byte
}

func (l *recLine) Receive(ch byte, flag Flag) {
	l.rx = append(l.rx, ch)
	l.flag = append(l.flag, flag)
	l.dev.note("%s:rx=0x%02x/%v", l.name, ch, flag)
}

func (l *recLine) Flush() { l.dev.note("%s:flush", l.name) }

func (l *recLine) Pending() int { return len(l.tx) }

func (l *recLine) Fill(p []byte) int {
	n := copy(p, l.tx)
	l.tx = l.tx[n:]
	l.dev.note("%s:tx=%d", l.name, n)
	return n
}

func (l *recLine) ModemStatus(msr byte) {
	l.msr = append(l.msr, msr)
}

func newTestDriver(t *testing.T, opts ...Option) *Driver {
	t.Helper()
	msg := log.New(io.Discard, "m77: ", 0)
	if testing.Verbose() {
		msg = log.New(testWriter{t}, "m77: ", 0)
	}
	return New(append([]Option{WithLogger(msg)}, opts...)...)
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func mustRegister(t *testing.T, drv *Driver, kind Kind, win Window, cfg BoardConfig) BoardHandle {
	t.Helper()
	h, err := drv.RegisterBoard(kind, fmt.Sprintf("%v", kind), win, cfg)
	if err != nil {
		t.Fatalf("could not register %v board: %+v", kind, err)
	}
	return h
}
