// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m77

import (
	"log"
	"os"
)

// maxRx bounds the number of characters drained from a receive FIFO in one
// interrupt.
const maxRx = 256

type config struct {
	msg   *log.Logger
	pool  int
	rxMax int
}

func newConfig() config {
	return config{
		msg:   log.New(os.Stdout, "m77: ", 0),
		pool:  DefaultPoolSize,
		rxMax: maxRx,
	}
}

// Option configures a Driver.
type Option func(*config)

// WithLogger sets the logger of the driver.
func WithLogger(msg *log.Logger) Option {
	return func(cfg *config) {
		if msg != nil {
			cfg.msg = msg
		}
	}
}

// WithPoolSize sets the number of flat channel indices.
func WithPoolSize(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.pool = n
		}
	}
}

// WithRxLimit sets the maximum number of characters drained from one
// receive FIFO per interrupt.
func WithRxLimit(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.rxMax = n
		}
	}
}
