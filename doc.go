// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mmod drives the serial M-modules of an M-module carrier from
// user space.
//
// The m77 package holds the driver for the M45N (8 channels, tristate
// control), M69N (4 channels) and M77 (4 channels, RS232/RS422/RS485 line
// drivers) modules. Boards are reached through a memory-mapped window and
// their interrupts through a UIO device.
//
// Two commands are built on top of it:
//
//   - m77-srv maps the boards listed in a YAML file, services their
//     interrupts and serves control requests over TCP.
//   - m77-ioctl sends control requests to m77-srv: physical mode, echo,
//     tristate, statistics and modem lines of a channel.
package mmod // import "github.com/go-lpc/mmod"

import (
	"fmt"
	"runtime/debug"
)

const modPath = "github.com/go-lpc/mmod"

// Version returns the version of mmod and its checksum, as recorded in
// the build information of the running binary.
func Version() (version, sum string) {
	b, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	return versionOf(b)
}

func versionOf(b *debug.BuildInfo) (version, sum string) {
	if b == nil {
		return "", ""
	}

	// commands of this module record mmod as the main module.
	if b.Main.Path == modPath {
		return b.Main.Version, b.Main.Sum
	}

	for _, m := range b.Deps {
		if m.Path != modPath {
			continue
		}
		if r := m.Replace; r != nil {
			switch {
			case r.Version != "" && r.Path != "":
				return fmt.Sprintf("%s %s", r.Path, r.Version), r.Sum
			case r.Version != "":
				return r.Version, r.Sum
			case r.Path != "":
				return r.Path, r.Sum
			}
			return m.Version + "*", ""
		}
		return m.Version, m.Sum
	}
	return "", ""
}
