// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m77

import "fmt"

// BoardHandle is a stable reference to a registered board.
// A handle outlives its board: once the board is unregistered the handle
// goes stale and no longer resolves, even if its slot is reused.
type BoardHandle struct {
	idx int
	gen uint32
}

func (h BoardHandle) String() string {
	return fmt.Sprintf("board-%d.%d", h.idx, h.gen)
}

type entry struct {
	gen uint32
	brd *Board
}

// registry is an arena of boards. Iteration follows registration order.
type registry struct {
	arena []entry
	free  []int
	order []int
}

func (r *registry) insert(brd *Board) BoardHandle {
	var idx int
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		idx = len(r.arena)
		r.arena = append(r.arena, entry{})
	}
	e := &r.arena[idx]
	e.gen++
	e.brd = brd
	r.order = append(r.order, idx)

	h := BoardHandle{idx: idx, gen: e.gen}
	brd.handle = h
	return h
}

// get resolves h. It returns nil for stale handles.
func (r *registry) get(h BoardHandle) *Board {
	if h.idx < 0 || h.idx >= len(r.arena) {
		return nil
	}
	e := r.arena[h.idx]
	if e.gen != h.gen || e.brd == nil {
		return nil
	}
	return e.brd
}

func (r *registry) valid(h BoardHandle) bool {
	return h.idx >= 0 && h.idx < len(r.arena) && h.gen != 0
}

func (r *registry) remove(h BoardHandle) *Board {
	brd := r.get(h)
	if brd == nil {
		return nil
	}
	r.arena[h.idx].brd = nil
	r.free = append(r.free, h.idx)
	for i, idx := range r.order {
		if idx == h.idx {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return brd
}

// scan returns the registered boards in registration order.
func (r *registry) scan() []*Board {
	out := make([]*Board, 0, len(r.order))
	for _, idx := range r.order {
		out = append(out, r.arena[idx].brd)
	}
	return out
}

func (r *registry) len() int { return len(r.order) }
