// Copyright (C) 2024 The LAIK-Go Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package transition

import (
	"sort"

	"github.com/laik-go/laik/group"
	"github.com/laik-go/laik/partition"
	"github.com/laik-go/laik/space"
)

// LocalCopy is an intra-process copy from one slice to another, both owned
// by the calling process.
type LocalCopy struct {
	From, To space.Slice
}

// PeerOp is a send or receive of slice with peer (a rank in Group).
type PeerOp struct {
	Peer  int
	Slice space.Slice
}

// Reduction is one entry of a transition's reduce list: the slice's value
// is produced by combining the contributions of every task in InputGroup
// (writers) with Op, and the result becomes visible to every task in
// OutputGroup (readers).
type Reduction struct {
	InputGroup  []int
	OutputGroup []int
	Slice       space.Slice
	Op          ReduceOp
}

// Transition is the communication plan between two Partitionings of the
// same Data: local copies, and this process's sends, receives and
// reductions.
type Transition struct {
	Group *group.Group
	Dims  int

	Local []LocalCopy
	Send  []PeerOp
	Recv  []PeerOp
	Red   []Reduction
}

// Compute builds the Transition moving a Data from "from" to "to" under
// the given flow and reduction attributes. from and to must share a
// Group. Compute is a pure function: it never touches a backend.
//
// Determinism: slices are iterated in to.tslice order, then from.tslice
// order; peer ordering is ascending by rank. This is the only source of
// ordering non-determinism in the whole engine, so it is fixed here once
// and for all.
func Compute(from, to *partition.Partitioning, flow Flow, redOp ReduceOp) *Transition {
	g := to.Group
	dims := to.Space.Dims()
	t := &Transition{Group: g, Dims: dims}

	myID := g.MyID

	if redOp.IsReduction() {
		computeReduction(t, from, to, redOp)
		return t
	}

	if flow != Preserve {
		return t
	}

	toSlices := to.Slices()
	fromSlices := from.Slices()

	for _, te := range toSlices {
		for _, fe := range fromSlices {
			isect, ok := space.Intersect(dims, te.Slice, fe.Slice)
			if !ok {
				continue
			}
			switch {
			case te.Task == myID && fe.Task == myID:
				t.Local = append(t.Local, LocalCopy{From: isect, To: isect})
			case te.Task == myID:
				t.Recv = append(t.Recv, PeerOp{Peer: fe.Task, Slice: isect})
			case fe.Task == myID:
				t.Send = append(t.Send, PeerOp{Peer: te.Task, Slice: isect})
			}
		}
	}

	sortPeerOps(t.Send)
	sortPeerOps(t.Recv)
	coalesce(t)
	return t
}

func computeReduction(t *Transition, from, to *partition.Partitioning, op ReduceOp) {
	dims := t.Dims
	toSlices := to.Slices()
	fromSlices := from.Slices()

	for _, te := range toSlices {
		var writers []int
		var slice space.Slice
		haveSlice := false
		for _, fe := range fromSlices {
			isect, ok := space.Intersect(dims, te.Slice, fe.Slice)
			if !ok {
				continue
			}
			writers = append(writers, fe.Task)
			if !haveSlice {
				slice = isect
				haveSlice = true
			}
		}
		if !haveSlice {
			continue
		}
		sort.Ints(writers)
		t.Red = append(t.Red, Reduction{
			InputGroup:  writers,
			OutputGroup: []int{te.Task},
			Slice:       slice,
			Op:          op,
		})
	}
}

func sortPeerOps(ops []PeerOp) {
	sort.SliceStable(ops, func(i, j int) bool { return ops[i].Peer < ops[j].Peer })
}

// coalesce merges adjacent same-peer entries that cover contiguous memory
// regions. Two slices are considered contiguous here if they are equal
// in every dimension but the last variable one and abut there; this is
// intentionally conservative, real
// coalescing of arbitrary rectangles is left to the ActionSeq optimizer's
// combineActions pass, which operates with more context (mapping
// geometry) than Transition has.
func coalesce(t *Transition) {
	t.Send = coalescePeerOps(t.Send, t.Dims)
	t.Recv = coalescePeerOps(t.Recv, t.Dims)
}

func coalescePeerOps(ops []PeerOp, dims int) []PeerOp {
	if len(ops) < 2 {
		return ops
	}
	out := ops[:1]
	for _, op := range ops[1:] {
		last := &out[len(out)-1]
		if last.Peer == op.Peer && abuts(dims, last.Slice, op.Slice) {
			last.Slice = union(dims, last.Slice, op.Slice)
			continue
		}
		out = append(out, op)
	}
	return out
}

func abuts(dims int, a, b space.Slice) bool {
	diffDim := -1
	for d := 0; d < dims; d++ {
		if a.From.I[d] != b.From.I[d] || a.To.I[d] != b.To.I[d] {
			if diffDim >= 0 {
				return false
			}
			diffDim = d
		}
	}
	if diffDim < 0 {
		return true
	}
	return a.To.I[diffDim] == b.From.I[diffDim] || b.To.I[diffDim] == a.From.I[diffDim]
}

func union(dims int, a, b space.Slice) space.Slice {
	out := a
	for d := 0; d < dims; d++ {
		if b.From.I[d] < out.From.I[d] {
			out.From.I[d] = b.From.I[d]
		}
		if b.To.I[d] > out.To.I[d] {
			out.To.I[d] = b.To.I[d]
		}
	}
	return out
}
