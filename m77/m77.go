// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package m77 drives the Ox16C954 UARTs of the M45N, M69N and M77
// M-modules.
//
// A Driver owns the boards registered with it and hands out flat channel
// indices ("lines") to their UARTs, in registration order. Each board is
// accessed through a Window: a 256-byte register window with 16-bit data
// cycles, usually backed by a memory-mapped device.
//
// The M77 channels can be switched between RS232, RS422 and RS485 in half
// or full duplex with SetMode, and their receiver can be kept enabled
// while transmitting with SetEcho. The M45N channels can be switched to
// tristate with SetTristate.
//
// All the boards of a Driver share one interrupt line: Interrupt scans
// them in registration order and services every channel of the boards
// that raised it.
package m77 // import "github.com/go-lpc/mmod/m77"
