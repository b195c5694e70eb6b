// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m77

import "errors"

var (
	// ErrInvalidArgument reports an out-of-range mode, an unknown flat
	// channel index or a malformed board descriptor.
	ErrInvalidArgument = errors.New("m77: invalid argument")

	// ErrUnsupported reports an operation the board kind does not implement,
	// e.g. setting the physical mode of a M45N channel.
	ErrUnsupported = errors.New("m77: unsupported operation")

	// ErrPoolExhausted reports that no channel slot is free.
	ErrPoolExhausted = errors.New("m77: channel pool exhausted")

	// ErrDeviceNotFound reports a board or UART identification mismatch.
	ErrDeviceNotFound = errors.New("m77: device not found")

	// ErrIO reports a failed bus transaction.
	ErrIO = errors.New("m77: i/o failure")
)
