// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m77

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/go-lpc/mmod/m77/internal/regs"
)

// Kind identifies an M-module type by its module ID.
type Kind uint16

const (
	M45 Kind = regs.MOD_M45 // octal UART with tristate control
	M69 Kind = regs.MOD_M69 // quad UART with handshake lines
	M77 Kind = regs.MOD_M77 // quad UART with RS232/RS422/RS485 drivers
)

// ParseKind parses a module name such as "m77", "M45N" or "m69_1".
func ParseKind(name string) (Kind, error) {
	s := strings.ToLower(strings.TrimSpace(name))
	switch {
	case strings.HasPrefix(s, "m45"):
		return M45, nil
	case strings.HasPrefix(s, "m69"):
		return M69, nil
	case strings.HasPrefix(s, "m77"):
		return M77, nil
	}
	return 0, fmt.Errorf("m77: unknown module name %q: %w", name, ErrInvalidArgument)
}

func (k Kind) String() string {
	switch k {
	case M45:
		return "M45N"
	case M69:
		return "M69N"
	case M77:
		return "M77"
	}
	return fmt.Sprintf("Kind(0x%04x)", uint16(k))
}

func (k Kind) valid() bool {
	switch k {
	case M45, M69, M77:
		return true
	}
	return false
}

// Channels returns the number of UART channels of the module.
func (k Kind) Channels() int {
	switch k {
	case M45:
		return regs.M45_CHAN_NUM
	case M69:
		return regs.M69_CHAN_NUM
	case M77:
		return regs.M77_CHAN_NUM
	}
	return 0
}

// hasDCR reports whether the module selects its line drivers through the
// per-channel driver configuration registers.
func (k Kind) hasDCR() bool { return k == M77 }

// hasTCR reports whether the module has tristate control registers.
func (k Kind) hasTCR() bool { return k == M45 }

// hasIR2 reports whether the module has a second interrupt register for
// its upper channels.
func (k Kind) hasIR2() bool { return k == M45 }

// Board is one M-module registered with a Driver.
type Board struct {
	// mu serializes read-modify-write cycles on the control registers
	// shared by several channels (M45N TCR1/TCR2).
	// It is taken after the channel lock.
	mu sync.Mutex

	kind Kind
	name string
	win  Window
	msg  *log.Logger

	handle BoardHandle

	n     int
	chans [regs.M45_CHAN_NUM]*Channel
}

func newBoard(kind Kind, name string, win Window, msg *log.Logger) *Board {
	brd := &Board{
		kind: kind,
		name: name,
		win:  win,
		msg:  msg,
		n:    kind.Channels(),
	}
	for i := 0; i < brd.n; i++ {
		brd.chans[i] = newChannel(brd, i)
	}
	return brd
}

// Kind returns the module type of the board.
func (brd *Board) Kind() Kind { return brd.kind }

// Name returns the name the board was registered with.
func (brd *Board) Name() string { return brd.name }

// NumChannels returns the number of UART channels of the board.
func (brd *Board) NumChannels() int { return brd.n }

func (brd *Board) channels() []*Channel { return brd.chans[:brd.n] }

func (brd *Board) logf(format string, args ...any) {
	brd.msg.Printf("%s: "+format, append([]any{brd.name}, args...)...)
}

// chanBase returns the offset of the register window of channel i.
// The M45N second bank starts after the control registers.
func chanBase(kind Kind, i int) int64 {
	base := int64(regs.CHAN_STRIDE * i)
	if kind == M45 && i > 3 {
		base += regs.M45_GAP
	}
	return base
}

// tcrBits maps a M45N channel to its bit in TCR1/TCR2.
var tcrBits = [regs.M45_CHAN_NUM]byte{
	regs.TCR_TRISTATE0, regs.TCR_TRISTATE1,
	regs.TCR_TRISTATE2, regs.TCR_TRISTATE2,
	regs.TCR_TRISTATE3, regs.TCR_TRISTATE3,
	regs.TCR_TRISTATE4, regs.TCR_TRISTATE4,
}

// setupIRQ enables the module interrupt(s) in the CPLD.
func (brd *Board) setupIRQ(ctl *bus) {
	switch brd.kind {
	case M45:
		ctl.write(regs.REG_IR, regs.IR_IMASK)
		ctl.write(regs.M45_REG_IR2, regs.IR_IMASK)
	case M69:
		ctl.write(regs.REG_IR, regs.IR_IMASK)
	case M77:
		ctl.write(regs.REG_IR, regs.IR_IMASK|regs.IR_DRVEN)
	}
}

// teardown clears pending interrupts, disables them and restores the
// line driver registers to their power-up values.
func (brd *Board) teardown(ctl *bus) {
	ctl.write(regs.REG_IR, regs.IR_IRQ)
	ctl.write(regs.REG_IR, 0)
	switch brd.kind {
	case M77:
		for i := 0; i < brd.n; i++ {
			ctl.write((regs.DCR_BASE+int64(i))<<1, byte(RS422HD))
		}
	case M45:
		ctl.write(regs.M45_REG_IR2, regs.IR_IRQ)
		ctl.write(regs.M45_REG_IR2, 0)
		ctl.write(regs.TCR1<<1, 0)
		ctl.write(regs.TCR2<<1, 0)
	}
}
