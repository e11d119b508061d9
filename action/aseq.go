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

package action

import "github.com/laik-go/laik/transition"

// Reducer is the minimal element-type surface an ActionSeq needs in order
// to execute Reduce/GroupReduce/RBufLocalReduce actions. data.ElementType
// satisfies this interface structurally; action never imports data (data
// imports action), so the interface is declared independently here.
type Reducer interface {
	Reduce(out, a, b []byte, count int, op transition.ReduceOp) error
	Init(out []byte, count int, op transition.ReduceOp) error
}

// Context is the per-transition state an ActionSeq's actions refer to by
// index. FromMapper/ToMapper are opaque handles the owning Data attaches
// (concretely *data.Mapping slices); the action package never interprets
// them, only a backend's Exec implementation does.
type Context struct {
	Transition *transition.Transition
	ElemSize   int
	Reducer    Reducer

	FromMapper any
	ToMapper   any
}

// Stats summarizes a prepared ActionSeq, computed by the final optimizer
// pass.
type Stats struct {
	Messages   int
	Bytes      int64
	ReduceOps  int
	Async      bool
	RoundCount int

	// Rounds lists the distinct round numbers appearing in Actions, in
	// ascending order, for a caller logging or graphing the schedule.
	Rounds []int
}

// ActionSeq is the lowered, optimizable IR of one or more Transitions: a
// packed action list plus the contexts and buffer arena its actions
// reference.
type ActionSeq struct {
	Contexts []*Context
	Actions  []Action

	// Bufs are anonymous byte arenas referenced by small integer ids
	// (bufID, the Action.Buf field); allocBuffer materializes
	// BufReserve requests into entries here.
	Bufs [][]byte

	Stats    Stats
	Prepared bool

	reserved []int // pending BufReserve sizes, consumed by allocBuffer
}

// NewBuf reserves a fresh, not-yet-materialized buffer of size bytes and
// returns its bufID. Used while lowering a Transition into BufReserve
// actions.
func (a *ActionSeq) NewBuf(size int) int {
	id := len(a.reserved)
	a.reserved = append(a.reserved, size)
	return id
}

// AddContext appends ctx and returns its index.
func (a *ActionSeq) AddContext(ctx *Context) int {
	a.Contexts = append(a.Contexts, ctx)
	return len(a.Contexts) - 1
}
