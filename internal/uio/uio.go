// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package uio delivers the interrupts of a Linux userspace I/O device.
package uio // import "github.com/go-lpc/mmod/internal/uio"

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// pollPeriod bounds the time needed to notice a cancelled context.
const pollPeriod = 100 * time.Millisecond

// Handler services an interrupt. It reports whether the interrupt was
// raised by one of its sources.
type Handler interface {
	Interrupt() bool
}

// Source is the interrupt line of a UIO device.
type Source struct {
	f   *os.File
	fd  int
	msg *log.Logger

	count uint32 // interrupt count reported by the kernel
	stats struct {
		handled  uint64
		spurious uint64
	}

	rearm func(on bool) error
}

// Open opens the UIO device file fname, e.g. /dev/uio0.
func Open(fname string) (*Source, error) {
	f, err := os.OpenFile(fname, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("uio: could not open %q: %w", fname, err)
	}
	return newSource(f, log.New(os.Stdout, "uio: ", 0)), nil
}

func newSource(f *os.File, msg *log.Logger) *Source {
	src := &Source{
		f:   f,
		fd:  int(f.Fd()),
		msg: msg,
	}
	src.rearm = src.write
	return src
}

// Close closes the device file.
func (src *Source) Close() error {
	return src.f.Close()
}

// Enable unmasks the interrupt of the device.
func (src *Source) Enable() error {
	return src.rearm(true)
}

// Disable masks the interrupt of the device.
func (src *Source) Disable() error {
	return src.rearm(false)
}

func (src *Source) write(on bool) error {
	var buf [4]byte
	if on {
		binary.LittleEndian.PutUint32(buf[:], 1)
	}
	_, err := unix.Write(src.fd, buf[:])
	if err != nil {
		return fmt.Errorf("uio: could not write interrupt control: %w", err)
	}
	return nil
}

// Wait blocks until an interrupt is delivered or ctx is done.
// It returns the number of interrupts since the previous Wait.
func (src *Source) Wait(ctx context.Context) (uint32, error) {
	fds := []unix.PollFd{{Fd: int32(src.fd), Events: unix.POLLIN}}
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n, err := unix.Poll(fds, int(pollPeriod/time.Millisecond))
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return 0, fmt.Errorf("uio: could not poll: %w", err)
		}
		if n == 0 {
			continue
		}
		if fds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 &&
			fds[0].Revents&unix.POLLIN == 0 {
			return 0, fmt.Errorf("uio: device hung up (revents=0x%x)", fds[0].Revents)
		}

		var buf [4]byte
		_, err = unix.Read(src.fd, buf[:])
		if err != nil {
			if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
				continue
			}
			return 0, fmt.Errorf("uio: could not read interrupt count: %w", err)
		}
		count := binary.LittleEndian.Uint32(buf[:])
		delta := count - src.count
		src.count = count
		return delta, nil
	}
}

// Serve runs the interrupt loop until ctx is done: it unmasks the
// interrupt, waits for it and hands it to h.
// A cancelled context is not reported as an error.
func (src *Source) Serve(ctx context.Context, h Handler) error {
	defer func() {
		_ = src.Disable()
	}()

	for {
		err := src.Enable()
		if err != nil {
			return err
		}

		_, err = src.Wait(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if h.Interrupt() {
			src.stats.handled++
			continue
		}
		src.stats.spurious++
		if src.stats.spurious&(src.stats.spurious-1) == 0 {
			src.msg.Printf("%d spurious interrupts", src.stats.spurious)
		}
	}
}
