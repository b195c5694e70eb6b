// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m77

import (
	"fmt"
	"log"
	"sync"

	"github.com/go-lpc/mmod/m77/internal/regs"
	"go.uber.org/multierr"
)

// BoardConfig holds the requested per-channel settings applied when a M77
// board is registered. Unset modes are left alone.
type BoardConfig struct {
	Mode [regs.M77_CHAN_NUM]Mode
	Echo [regs.M77_CHAN_NUM]bool
}

// Driver manages a set of M-module boards sharing one interrupt line.
type Driver struct {
	msg   *log.Logger
	rxMax int

	// mu guards the registry and the channel pool. Registration takes it
	// exclusively; the interrupt scan and channel requests share it.
	// It is always acquired before a channel lock.
	mu   sync.RWMutex
	reg  registry
	pool *pool
}

// New creates a new driver.
func New(opts ...Option) *Driver {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Driver{
		msg:   cfg.msg,
		rxMax: cfg.rxMax,
		pool:  newPool(cfg.pool),
	}
}

// RegisterBoard registers a board of the given kind, accessed through win.
// Each channel of the board is probed and bound to a flat channel index.
// On M77 boards, the modes and echo policies of cfg are then applied:
// invalid entries are logged and leave their channel unset.
//
// On failure, everything claimed for the board is released.
func (drv *Driver) RegisterBoard(kind Kind, name string, win Window, cfg BoardConfig) (BoardHandle, error) {
	if !kind.valid() {
		return BoardHandle{}, fmt.Errorf("m77: invalid board kind %v: %w", kind, ErrInvalidArgument)
	}
	if win == nil {
		return BoardHandle{}, fmt.Errorf("m77: nil register window for %q: %w", name, ErrInvalidArgument)
	}

	if id, ok := win.(Identifier); ok {
		v, err := id.ModuleID()
		if err != nil {
			return BoardHandle{}, fmt.Errorf("m77: could not read module id of %q: %w: %w", name, ErrIO, err)
		}
		if Kind(v) != kind {
			return BoardHandle{}, fmt.Errorf(
				"m77: board %q is a module 0x%04x, not a %v: %w",
				name, v, kind, ErrDeviceNotFound,
			)
		}
	}

	drv.mu.Lock()
	defer drv.mu.Unlock()

	brd := newBoard(kind, name, win, drv.msg)
	err := drv.bindBoard(brd, cfg)
	if err != nil {
		_ = drv.unbindBoard(brd)
		return BoardHandle{}, fmt.Errorf("m77: could not register board %q: %w", name, err)
	}

	h := drv.reg.insert(brd)
	drv.msg.Printf("registered %v board %q (%s), channels %v", kind, name, h, lines(brd))
	return h, nil
}

func (drv *Driver) bindBoard(brd *Board, cfg BoardConfig) error {
	ctl := bus{rw: brd.win}
	brd.setupIRQ(&ctl)
	if err := ctl.flush(); err != nil {
		return fmt.Errorf("could not setup interrupts: %w", err)
	}

	for _, c := range brd.channels() {
		line, err := drv.pool.claim(c)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.line = line
		c.mu.Unlock()

		err = c.probe()
		if err != nil {
			return err
		}
	}

	if !brd.kind.hasDCR() {
		return nil
	}

	for i, c := range brd.channels() {
		m := cfg.Mode[i]
		if m == Unset {
			continue
		}
		if !m.Valid() {
			brd.logf("channel %d: ignoring invalid phys mode %d", i, uint8(m))
			continue
		}
		err := c.setMode(m)
		if err != nil {
			return err
		}
		if cfg.Echo[i] && m.HalfDuplex() {
			err = c.setEcho(true)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// unbindBoard releases the channel indices of brd and quiesces it.
// Callers hold drv.mu.
func (drv *Driver) unbindBoard(brd *Board) error {
	var err error
	for _, c := range brd.channels() {
		c.mu.Lock()
		if c.line >= 0 {
			drv.pool.release(c.line)
			c.line = -1
		}
		c.open = false
		c.tty = nil
		c.reset()
		if e := c.io.flush(); e != nil {
			err = multierr.Append(err, fmt.Errorf("m77: could not reset channel %d of %q: %w", c.index, brd.name, e))
		}
		c.mu.Unlock()
	}

	ctl := bus{rw: brd.win}
	brd.teardown(&ctl)
	if e := ctl.flush(); e != nil {
		err = multierr.Append(err, fmt.Errorf("m77: could not tear board %q down: %w", brd.name, e))
	}
	return err
}

// UnregisterBoard releases a board and its channel indices.
// Unregistering an already unregistered board is a no-op.
func (drv *Driver) UnregisterBoard(h BoardHandle) error {
	drv.mu.Lock()
	defer drv.mu.Unlock()

	if !drv.reg.valid(h) {
		return fmt.Errorf("m77: invalid board handle %v: %w", h, ErrInvalidArgument)
	}
	brd := drv.reg.remove(h)
	if brd == nil {
		return nil
	}
	drv.msg.Printf("unregistering board %q (%s)", brd.name, h)
	return drv.unbindBoard(brd)
}

// Close unregisters all boards.
func (drv *Driver) Close() error {
	drv.mu.Lock()
	defer drv.mu.Unlock()

	var err error
	for _, brd := range drv.reg.scan() {
		drv.reg.remove(brd.handle)
		err = multierr.Append(err, drv.unbindBoard(brd))
	}
	return err
}

// Board returns the registered board referenced by h.
func (drv *Driver) Board(h BoardHandle) (*Board, error) {
	drv.mu.RLock()
	defer drv.mu.RUnlock()

	brd := drv.reg.get(h)
	if brd == nil {
		return nil, fmt.Errorf("m77: unknown board handle %v: %w", h, ErrInvalidArgument)
	}
	return brd, nil
}

// FindChannel maps a flat channel index to its board and channel number.
func (drv *Driver) FindChannel(line int) (BoardHandle, int, error) {
	drv.mu.RLock()
	defer drv.mu.RUnlock()

	c, err := drv.lookup(line)
	if err != nil {
		return BoardHandle{}, -1, err
	}
	return c.brd.handle, c.index, nil
}

func (drv *Driver) lookup(line int) (*Channel, error) {
	c := drv.pool.lookup(line)
	if c == nil {
		return nil, fmt.Errorf("m77: no channel bound to line %d: %w", line, ErrInvalidArgument)
	}
	return c, nil
}

// with runs fn on the channel bound to line, holding the registry lock.
func (drv *Driver) with(line int, fn func(c *Channel) error) error {
	drv.mu.RLock()
	defer drv.mu.RUnlock()

	c, err := drv.lookup(line)
	if err != nil {
		return err
	}
	return fn(c)
}

// do runs fn with the channel lock held and collects the bus error.
func (c *Channel) do(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := fn()
	if e := c.io.flush(); e != nil && err == nil {
		err = fmt.Errorf("m77: line %d: %w", c.line, e)
	}
	return err
}

func (c *Channel) mustBeOpen() error {
	if !c.open {
		return fmt.Errorf("m77: line %d is not open: %w", c.line, ErrInvalidArgument)
	}
	return nil
}

// SetMode switches the physical mode of a M77 channel.
func (drv *Driver) SetMode(line int, m Mode) error {
	return drv.with(line, func(c *Channel) error {
		return c.setMode(m)
	})
}

// SetEcho enables or suppresses the receiver of a M77 channel while it
// transmits.
func (drv *Driver) SetEcho(line int, on bool) error {
	return drv.with(line, func(c *Channel) error {
		return c.setEcho(on)
	})
}

// SetTristate switches the outputs of a M45N channel to tristate.
func (drv *Driver) SetTristate(line int, on bool) error {
	return drv.with(line, func(c *Channel) error {
		return c.setTristate(on)
	})
}

// OpenChannel initializes the UART of a channel and attaches it to tty.
func (drv *Driver) OpenChannel(line int, tty Line) error {
	if tty == nil {
		return fmt.Errorf("m77: nil line discipline for line %d: %w", line, ErrInvalidArgument)
	}
	return drv.with(line, func(c *Channel) error {
		return c.startup(tty)
	})
}

// CloseChannel quiesces the UART of a channel and detaches it.
// Closing a channel that is not open is a no-op.
func (drv *Driver) CloseChannel(line int) error {
	return drv.with(line, func(c *Channel) error {
		return c.shutdown()
	})
}

// StartTx starts transmitting the pending bytes of an open channel.
func (drv *Driver) StartTx(line int) error {
	return drv.with(line, func(c *Channel) error {
		return c.do(func() error {
			if err := c.mustBeOpen(); err != nil {
				return err
			}
			c.startTx()
			return nil
		})
	})
}

// StopTx stops transmitting on an open channel.
func (drv *Driver) StopTx(line int) error {
	return drv.with(line, func(c *Channel) error {
		return c.do(func() error {
			if err := c.mustBeOpen(); err != nil {
				return err
			}
			c.stopTx()
			return nil
		})
	})
}

// StopRx stops reporting received characters on an open channel.
func (drv *Driver) StopRx(line int) error {
	return drv.with(line, func(c *Channel) error {
		return c.do(func() error {
			if err := c.mustBeOpen(); err != nil {
				return err
			}
			c.stopRx()
			return nil
		})
	})
}

// SetModemControl sets the modem control lines (LineDTR, LineRTS, LineOUT1,
// LineOUT2, LineLoop) of a channel.
func (drv *Driver) SetModemControl(line int, mctrl uint) error {
	return drv.with(line, func(c *Channel) error {
		return c.do(func() error {
			c.mctrl = mctrl
			c.setMctrl(mctrl)
			return nil
		})
	})
}

// ModemStatus returns the state of the modem status lines (LineCAR,
// LineRNG, LineDSR, LineCTS) of a channel.
func (drv *Driver) ModemStatus(line int) (uint, error) {
	var v uint
	err := drv.with(line, func(c *Channel) error {
		return c.do(func() error {
			v = c.getMctrl()
			return nil
		})
	})
	return v, err
}

// Break starts or stops sending a break condition.
func (drv *Driver) Break(line int, on bool) error {
	return drv.with(line, func(c *Channel) error {
		return c.do(func() error {
			c.breakCtl(on)
			return nil
		})
	})
}

// TxEmpty reports whether the transmitter of a channel is idle.
func (drv *Driver) TxEmpty(line int) (bool, error) {
	var v bool
	err := drv.with(line, func(c *Channel) error {
		return c.do(func() error {
			v = c.txEmpty()
			return nil
		})
	})
	return v, err
}

// Stats returns the counters of a channel.
func (drv *Driver) Stats(line int) (Stats, error) {
	var v Stats
	err := drv.with(line, func(c *Channel) error {
		v = c.Stats()
		return nil
	})
	return v, err
}

// ChannelInfo describes a bound channel.
type ChannelInfo struct {
	Line    int    `json:"line"`
	Board   string `json:"board"`
	Kind    string `json:"kind"`
	Channel int    `json:"channel"`
	Mode    string `json:"mode"`
	Echo    bool   `json:"echo"`
	Open    bool   `json:"open"`
}

// Channels lists the bound channels, ordered by flat index.
func (drv *Driver) Channels() []ChannelInfo {
	drv.mu.RLock()
	defer drv.mu.RUnlock()

	var out []ChannelInfo
	for i := 0; i < drv.pool.size(); i++ {
		c := drv.pool.lookup(i)
		if c == nil {
			continue
		}
		c.mu.Lock()
		out = append(out, ChannelInfo{
			Line:    c.line,
			Board:   c.brd.name,
			Kind:    c.brd.kind.String(),
			Channel: c.index,
			Mode:    c.mode.String(),
			Echo:    c.echo,
			Open:    c.open,
		})
		c.mu.Unlock()
	}
	return out
}

func lines(brd *Board) []int {
	out := make([]int, 0, brd.n)
	for _, c := range brd.channels() {
		out = append(out, c.line)
	}
	return out
}
