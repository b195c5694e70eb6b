// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m77

import "sync"

// Queue is a simple line discipline: received characters are buffered
// until read, written bytes are buffered until the transmitter picks them
// up. Both buffers are bounded; received characters are dropped when full.
type Queue struct {
	mu   sync.Mutex
	rx   ring
	tx   ring
	errs Stats
}

var _ Line = (*Queue)(nil)

// NewQueue creates a queue holding up to n received and n pending bytes.
func NewQueue(n int) *Queue {
	if n <= 0 {
		n = 4096
	}
	return &Queue{
		rx: newRing(n),
		tx: newRing(n),
	}
}

// Receive implements Line.
func (q *Queue) Receive(ch byte, flag Flag) {
	q.mu.Lock()
	defer q.mu.Unlock()

	switch flag {
	case FlagNormal:
		q.rx.push(ch)
	case FlagBreak:
		inc(&q.errs.Break)
	case FlagParity:
		inc(&q.errs.Parity)
	case FlagFrame:
		inc(&q.errs.Frame)
	case FlagOverrun:
		inc(&q.errs.Overrun)
	}
}

// Flush implements Line.
func (q *Queue) Flush() {}

// Pending implements Line.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tx.len()
}

// Fill implements Line.
func (q *Queue) Fill(p []byte) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tx.read(p)
}

// ModemStatus implements Line. Modem line changes are counted by the
// channel statistics.
func (q *Queue) ModemStatus(msr byte) {}

// Write queues p for transmission. It returns the number of bytes queued.
func (q *Queue) Write(p []byte) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, b := range p {
		if !q.tx.push(b) {
			break
		}
		n++
	}
	return n, nil
}

// Read moves up to len(p) received bytes into p.
// It does not block: it returns 0 when nothing was received.
func (q *Queue) Read(p []byte) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.rx.read(p), nil
}

// Errors returns the count of flagged characters delivered to the queue.
func (q *Queue) Errors() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.errs
}

// ring is a fixed-size byte FIFO.
type ring struct {
	buf  []byte
	r, n int
}

func newRing(n int) ring { return ring{buf: make([]byte, n)} }

func (r *ring) len() int { return r.n }

func (r *ring) push(b byte) bool {
	if r.n == len(r.buf) {
		return false
	}
	r.buf[(r.r+r.n)%len(r.buf)] = b
	r.n++
	return true
}

func (r *ring) read(p []byte) int {
	n := 0
	for n < len(p) && r.n > 0 {
		p[n] = r.buf[r.r]
		r.r = (r.r + 1) % len(r.buf)
		r.n--
		n++
	}
	return n
}
