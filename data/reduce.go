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

// Package data implements the typed element container bound to a space: its
// active partitioning, its per-slice mapping buffers, and the reduction
// operations dispatched per element type.
package data

import (
	"fmt"

	"github.com/laik-go/laik/transition"
)

// Flow and ReduceOp are re-exported from transition so callers of this
// package never need to import it just to name a switch's attributes.
type Flow = transition.Flow
type ReduceOp = transition.ReduceOp

const (
	None     = transition.None
	Preserve = transition.Preserve

	ReduceNone = transition.ReduceNone
	ReduceSum  = transition.ReduceSum
	ReduceProd = transition.ReduceProd
	ReduceMin  = transition.ReduceMin
	ReduceMax  = transition.ReduceMax
	ReduceAnd  = transition.ReduceAnd
	ReduceOr   = transition.ReduceOr
)

// Reducer is supplied by an ElementType. Reduce(out, a, b, count, op)
// combines count elements of a and b into out; a or b may be nil, meaning
// "identity element of op". Init(out, count, op) fills out with op's
// identity element.
type Reducer interface {
	Reduce(out, a, b []byte, count int, op ReduceOp) error
	Init(out []byte, count int, op ReduceOp) error
}

// ErrTypeMismatch is a contract violation: a reduction was requested
// between incompatible element types. Heterogeneous element reductions
// across mismatched types are not supported; callers hitting this should
// not have constructed the request.
var ErrTypeMismatch = fmt.Errorf("data: heterogeneous element reduction not supported")
