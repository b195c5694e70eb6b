// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m77

import (
	"testing"

	"github.com/go-lpc/mmod/m77/internal/regs"
	"github.com/google/go-cmp/cmp"
)

func TestQueue(t *testing.T) {
	q := NewQueue(4)

	for _, b := range []byte("hello") {
		q.Receive(b, FlagNormal)
	}
	q.Receive(0, FlagOverrun)
	q.Receive('x', FlagParity)
	q.Receive('x', FlagFrame)
	q.Receive(0, FlagBreak)
	q.Flush()

	buf := make([]byte, 8)
	n, err := q.Read(buf)
	if err != nil {
		t.Fatalf("could not read: %+v", err)
	}
	if got, want := string(buf[:n]), "hell"; got != want {
		t.Fatalf("invalid rx: got=%q, want=%q", got, want)
	}
	n, _ = q.Read(buf)
	if n != 0 {
		t.Fatalf("read %d bytes from an empty queue", n)
	}

	want := Stats{Break: 1, Parity: 1, Frame: 1, Overrun: 1}
	if diff := cmp.Diff(want, q.Errors()); diff != "" {
		t.Fatalf("invalid errors (-want +got):\n%s", diff)
	}

	n, err = q.Write([]byte("abcdef"))
	if err != nil {
		t.Fatalf("could not write: %+v", err)
	}
	if n != 4 {
		t.Fatalf("invalid number of queued bytes: got=%d, want=4", n)
	}
	if got := q.Pending(); got != 4 {
		t.Fatalf("invalid pending: got=%d, want=4", got)
	}

	n = q.Fill(buf[:3])
	if got, want := string(buf[:n]), "abc"; got != want {
		t.Fatalf("invalid fill: got=%q, want=%q", got, want)
	}

	// wrap around the ring.
	n, _ = q.Write([]byte("ghi"))
	if n != 3 {
		t.Fatalf("invalid number of queued bytes: got=%d, want=3", n)
	}
	n = q.Fill(buf)
	if got, want := string(buf[:n]), "dghi"; got != want {
		t.Fatalf("invalid fill: got=%q, want=%q", got, want)
	}
	if got := q.Pending(); got != 0 {
		t.Fatalf("invalid pending: got=%d, want=0", got)
	}
}

func TestQueueDriver(t *testing.T) {
	drv := newTestDriver(t)
	dev := newFakeModule(M69)
	mustRegister(t, drv, M69, dev, BoardConfig{})

	q := NewQueue(0)
	err := drv.OpenChannel(1, q)
	if err != nil {
		t.Fatalf("could not open channel: %+v", err)
	}

	_, _ = q.Write([]byte("ping"))
	err = drv.StartTx(1)
	if err != nil {
		t.Fatalf("could not start tx: %+v", err)
	}
	dev.inject(1, 0, []byte("pong")...)

	dev.setReg(regs.REG_IR, regs.IR_IMASK|regs.IR_IRQ)
	if !drv.Interrupt() {
		t.Fatalf("interrupt not handled")
	}

	if got, want := string(dev.sent(1)), "ping"; got != want {
		t.Fatalf("invalid tx: got=%q, want=%q", got, want)
	}
	buf := make([]byte, 16)
	n, _ := q.Read(buf)
	if got, want := string(buf[:n]), "pong"; got != want {
		t.Fatalf("invalid rx: got=%q, want=%q", got, want)
	}
}
