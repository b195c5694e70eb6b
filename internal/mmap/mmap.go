// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mmap provides register windows backed by memory-mapped device
// files such as /dev/mem or a UIO map.
package mmap // import "github.com/go-lpc/mmod/internal/mmap"

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

var (
	errClosed = errors.New("mmap: closed")
)

// Handle is a memory-mapped register window.
//
// Two-byte accesses at even offsets are performed as a single 16-bit bus
// cycle, as required by the D16 M-module interface.
// The module ID PROM is not read through a Handle.
type Handle struct {
	mem  []byte // whole mapping, page aligned
	data []byte // register window
}

// Open maps size bytes of fname, starting at offset.
// The offset does not need to be page aligned.
func Open(fname string, offset int64, size int) (*Handle, error) {
	if offset < 0 || size <= 0 {
		return nil, fmt.Errorf("mmap: invalid window [0x%x, +0x%x)", offset, size)
	}

	f, err := os.OpenFile(fname, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap: could not open %q: %w", fname, err)
	}
	// the mapping stays valid once the file is closed.
	defer f.Close()

	var (
		page  = int64(os.Getpagesize())
		base  = offset &^ (page - 1)
		delta = int(offset - base)
	)
	mem, err := unix.Mmap(
		int(f.Fd()), base, delta+size,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED,
	)
	if err != nil {
		return nil, fmt.Errorf("mmap: could not map %q at 0x%x: %w", fname, offset, err)
	}

	h := &Handle{mem: mem, data: mem[delta : delta+size]}
	runtime.SetFinalizer(h, (*Handle).Close)
	return h, nil
}

// HandleFrom returns a handle over a plain memory buffer.
func HandleFrom(data []byte) *Handle {
	return &Handle{data: data}
}

// Close closes the mmap handle.
func (h *Handle) Close() error {
	if h == nil {
		return os.ErrInvalid
	}

	if h.data == nil {
		return nil
	}
	mem := h.mem
	h.mem = nil
	h.data = nil
	runtime.SetFinalizer(h, nil)

	if mem == nil {
		return nil
	}
	return unix.Munmap(mem)
}

// Len returns the length of the register window.
func (h *Handle) Len() int {
	return len(h.data)
}

// At returns the byte at index i.
func (h *Handle) At(i int) byte {
	return h.data[i]
}

// ReadAt implements the io.ReaderAt interface.
func (h *Handle) ReadAt(p []byte, off int64) (int, error) {
	if h == nil {
		return 0, os.ErrInvalid
	}

	if h.data == nil {
		return 0, errClosed
	}
	if off < 0 || int64(len(h.data)) < off {
		return 0, fmt.Errorf("mmap: invalid ReadAt offset %d", off)
	}
	if len(p) == 2 && off&1 == 0 && off+2 <= int64(len(h.data)) {
		v := *(*uint16)(unsafe.Pointer(&h.data[off]))
		*(*uint16)(unsafe.Pointer(&p[0])) = v
		return 2, nil
	}
	n := copy(p, h.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements the io.WriterAt interface.
func (h *Handle) WriteAt(p []byte, off int64) (int, error) {
	if h == nil {
		return 0, os.ErrInvalid
	}

	if h.data == nil {
		return 0, errClosed
	}
	if off < 0 || int64(len(h.data)) < off {
		return 0, fmt.Errorf("mmap: invalid WriteAt offset %d", off)
	}
	if len(p) == 2 && off&1 == 0 && off+2 <= int64(len(h.data)) {
		v := *(*uint16)(unsafe.Pointer(&p[0]))
		*(*uint16)(unsafe.Pointer(&h.data[off])) = v
		return 2, nil
	}
	n := copy(h.data[off:], p)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

var (
	_ io.ReaderAt = (*Handle)(nil)
	_ io.WriterAt = (*Handle)(nil)
	_ io.Closer   = (*Handle)(nil)
)
