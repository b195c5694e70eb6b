// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m77

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/go-lpc/mmod/m77/internal/regs"
	"gopkg.in/yaml.v3"
)

// Config is the board descriptor file of a driver instance.
//
// Modes and echo policies are given as flat arrays indexed by
// board-ordinal*4 + channel-ordinal, where the board ordinal is the
// position of the board in Boards. Missing entries leave their channel
// unset; a non-zero echo entry enables echo.
type Config struct {
	IRQ    string       `yaml:"irq"` // UIO device delivering the shared interrupt
	Boards []BoardDescr `yaml:"boards"`
	Mode   []int        `yaml:"mode"`
	Echo   []int        `yaml:"echo"`
}

// BoardDescr locates one M-module.
type BoardDescr struct {
	Name   string `yaml:"name"`
	Kind   string `yaml:"kind"`   // m45n, m69n or m77
	Device string `yaml:"device"` // file to map, e.g. /dev/mem or /dev/uio0
	Offset int64  `yaml:"offset"` // physical address of the module window
	Size   int    `yaml:"size"`   // size of the module window
	Slot   int    `yaml:"slot"`   // M-module slot on the carrier
}

// LoadConfig reads a board descriptor file.
func LoadConfig(fname string) (Config, error) {
	raw, err := os.ReadFile(fname)
	if err != nil {
		return Config{}, fmt.Errorf("m77: could not read config file %q: %w", fname, err)
	}
	cfg, err := ReadConfig(bytes.NewReader(raw))
	if err != nil {
		return cfg, fmt.Errorf("m77: could not load config file %q: %w", fname, err)
	}
	return cfg, nil
}

// ReadConfig decodes and validates a board descriptor.
func ReadConfig(r io.Reader) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	err := dec.Decode(&cfg)
	if err != nil && err != io.EOF {
		return cfg, fmt.Errorf("m77: could not decode config: %w", err)
	}

	for i := range cfg.Boards {
		brd := &cfg.Boards[i]
		if _, err := ParseKind(brd.Kind); err != nil {
			return cfg, fmt.Errorf("m77: board #%d: %w", i, err)
		}
		if brd.Device == "" {
			return cfg, fmt.Errorf("m77: board #%d: missing device: %w", i, ErrInvalidArgument)
		}
		if brd.Offset < 0 || brd.Size < 0 {
			return cfg, fmt.Errorf("m77: board #%d: invalid window: %w", i, ErrInvalidArgument)
		}
		if brd.Size == 0 {
			brd.Size = regs.WINDOW_SIZE
		}
		if brd.Name == "" {
			brd.Name = fmt.Sprintf("%s_%d", brd.Kind, i)
		}
	}

	max := len(cfg.Boards) * regs.M77_CHAN_NUM
	if len(cfg.Mode) > max || len(cfg.Echo) > max {
		return cfg, fmt.Errorf(
			"m77: %d mode and %d echo entries for %d boards: %w",
			len(cfg.Mode), len(cfg.Echo), len(cfg.Boards), ErrInvalidArgument,
		)
	}
	return cfg, nil
}

// Board returns the per-channel settings of the i-th board.
// Values are not validated here: RegisterBoard rejects invalid modes
// channel by channel.
func (cfg Config) Board(i int) BoardConfig {
	var out BoardConfig
	for j := 0; j < regs.M77_CHAN_NUM; j++ {
		k := i*regs.M77_CHAN_NUM + j
		if k < len(cfg.Mode) {
			v := cfg.Mode[k]
			if v < 0 || v > 0xff {
				v = 0xff
			}
			out.Mode[j] = Mode(v)
		}
		if k < len(cfg.Echo) {
			out.Echo[j] = cfg.Echo[k] != 0
		}
	}
	return out
}
