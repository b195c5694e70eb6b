// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m77

import (
	"fmt"
	"math/bits"
)

// DefaultPoolSize is the default number of flat channel indices.
const DefaultPoolSize = 64

// pool hands out flat channel indices. A slot is free until claimed and
// bound to a channel.
type pool struct {
	used  []uint64
	slots []*Channel
}

func newPool(n int) *pool {
	return &pool{
		used:  make([]uint64, (n+63)/64),
		slots: make([]*Channel, n),
	}
}

func (p *pool) size() int { return len(p.slots) }

// claim binds c to the lowest free slot.
func (p *pool) claim(c *Channel) (int, error) {
	for w, word := range p.used {
		free := ^word
		if free == 0 {
			continue
		}
		i := w*64 + bits.TrailingZeros64(free)
		if i >= len(p.slots) {
			break
		}
		p.used[w] |= 1 << (i % 64)
		p.slots[i] = c
		return i, nil
	}
	return -1, fmt.Errorf("m77: no free channel slot (capacity %d): %w", len(p.slots), ErrPoolExhausted)
}

// release returns slot i to the pool. Releasing a free slot is a no-op.
func (p *pool) release(i int) {
	if i < 0 || i >= len(p.slots) {
		return
	}
	p.used[i/64] &^= 1 << (i % 64)
	p.slots[i] = nil
}

// lookup returns the channel bound to slot i, or nil.
func (p *pool) lookup(i int) *Channel {
	if i < 0 || i >= len(p.slots) {
		return nil
	}
	return p.slots[i]
}

// free returns the number of unbound slots.
func (p *pool) free() int {
	n := 0
	for _, c := range p.slots {
		if c == nil {
			n++
		}
	}
	return n
}
