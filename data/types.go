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

package data

import (
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
)

// Kind identifies one of the element types recognized by the core.
type Kind int

const (
	KindInt8 Kind = iota
	KindInt32
	KindInt64
	KindUint8
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
)

func (k Kind) String() string {
	switch k {
	case KindInt8:
		return "int8"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindUint8:
		return "uint8"
	case KindUint32:
		return "uint32"
	case KindUint64:
		return "uint64"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	default:
		return "unknown"
	}
}

// ElementType describes one of the recognized scalar element types: its
// wire size and its reducer (sum/prod/min/max/and/or, plus init).
type ElementType struct {
	Kind Kind
	Size int
}

var (
	Int8    = ElementType{Kind: KindInt8, Size: 1}
	Int32   = ElementType{Kind: KindInt32, Size: 4}
	Int64   = ElementType{Kind: KindInt64, Size: 8}
	Uint8   = ElementType{Kind: KindUint8, Size: 1}
	Uint32  = ElementType{Kind: KindUint32, Size: 4}
	Uint64  = ElementType{Kind: KindUint64, Size: 8}
	Float32 = ElementType{Kind: KindFloat32, Size: 4}
	Float64 = ElementType{Kind: KindFloat64, Size: 8}
)

// number is the constraint over every recognized element Go type; generic
// arithmetic (+, *, <, >) works uniformly across it.
type number interface {
	constraints.Integer | constraints.Float
}

func arith[T number](a, b T, op ReduceOp) T {
	switch op {
	case ReduceSum:
		return a + b
	case ReduceProd:
		return a * b
	case ReduceMin:
		if a < b {
			return a
		}
		return b
	case ReduceMax:
		if a > b {
			return a
		}
		return b
	default:
		panic(fmt.Sprintf("data: op %v has no arithmetic reduction", op))
	}
}

// identity returns op's identity element for T, given T's own minimum and
// maximum representable values (0 and the type's max for unsigned types,
// so Max's identity is correctly 0 rather than a wrapped negative value).
func identity[T number](op ReduceOp, min, max T) T {
	switch op {
	case ReduceSum:
		return 0
	case ReduceProd:
		return 1
	case ReduceMin:
		return max
	case ReduceMax:
		return min
	default:
		return 0
	}
}

// Reduce implements Reducer.Reduce for e: combines count elements of a and
// b (either may be nil, meaning the identity element of op) into out.
func (e ElementType) Reduce(out, a, b []byte, count int, op ReduceOp) error {
	if op == ReduceAnd || op == ReduceOr {
		return e.reduceBits(out, a, b, count, op)
	}
	switch e.Kind {
	case KindInt8:
		return reduceArith(out, a, b, count, op, decodeInt8, encodeInt8, math.MinInt8, math.MaxInt8)
	case KindInt32:
		return reduceArith(out, a, b, count, op, decodeInt32, encodeInt32, math.MinInt32, math.MaxInt32)
	case KindInt64:
		return reduceArith(out, a, b, count, op, decodeInt64, encodeInt64, math.MinInt64, math.MaxInt64)
	case KindUint8:
		return reduceArith(out, a, b, count, op, decodeUint8, encodeUint8, 0, math.MaxUint8)
	case KindUint32:
		return reduceArith(out, a, b, count, op, decodeUint32, encodeUint32, 0, math.MaxUint32)
	case KindUint64:
		return reduceArith(out, a, b, count, op, decodeUint64, encodeUint64, 0, math.MaxUint64)
	case KindFloat32:
		return reduceArith(out, a, b, count, op, decodeFloat32, encodeFloat32, -math.MaxFloat32, math.MaxFloat32)
	case KindFloat64:
		return reduceArith(out, a, b, count, op, decodeFloat64, encodeFloat64, -math.MaxFloat64, math.MaxFloat64)
	default:
		return fmt.Errorf("data: unknown element kind %v", e.Kind)
	}
}

// Init implements Reducer.Init for e: fills out with op's identity
// element.
func (e ElementType) Init(out []byte, count int, op ReduceOp) error {
	return e.Reduce(out, nil, nil, count, op)
}

func reduceArith[T number](out, a, b []byte, count int, op ReduceOp, decode func([]byte) T, encode func([]byte, T), min, max T) error {
	sz := 0
	switch any(T(0)).(type) {
	case int8, uint8:
		sz = 1
	case int32, uint32, float32:
		sz = 4
	default:
		sz = 8
	}
	need := sz * count
	if len(out) < need {
		return fmt.Errorf("data: output buffer too small: have %d, need %d", len(out), need)
	}
	ident := identity[T](op, min, max)
	for i := 0; i < count; i++ {
		av, bv := ident, ident
		if a != nil {
			av = decode(a[i*sz:])
		}
		if b != nil {
			bv = decode(b[i*sz:])
		}
		if a == nil && b == nil {
			encode(out[i*sz:], ident)
			continue
		}
		encode(out[i*sz:], arith(av, bv, op))
	}
	return nil
}

func (e ElementType) reduceBits(out, a, b []byte, count int, op ReduceOp) error {
	if e.Kind != KindInt8 && e.Kind != KindInt32 && e.Kind != KindInt64 &&
		e.Kind != KindUint8 && e.Kind != KindUint32 && e.Kind != KindUint64 {
		return fmt.Errorf("data: %s: And/Or reductions require an integer type", e.Kind)
	}
	need := e.Size * count
	if len(out) < need {
		return fmt.Errorf("data: output buffer too small: have %d, need %d", len(out), need)
	}
	var identityByte byte
	if op == ReduceAnd {
		identityByte = 0xFF
	}
	for i := 0; i < need; i++ {
		av, bv := identityByte, identityByte
		if a != nil {
			av = a[i]
		}
		if b != nil {
			bv = b[i]
		}
		if op == ReduceAnd {
			out[i] = av & bv
		} else {
			out[i] = av | bv
		}
	}
	return nil
}

func decodeInt8(b []byte) int8     { return int8(b[0]) }
func encodeInt8(b []byte, v int8)  { b[0] = byte(v) }
func decodeUint8(b []byte) uint8   { return b[0] }
func encodeUint8(b []byte, v uint8) { b[0] = v }

func decodeInt32(b []byte) int32    { return int32(binary.LittleEndian.Uint32(b)) }
func encodeInt32(b []byte, v int32) { binary.LittleEndian.PutUint32(b, uint32(v)) }
func decodeUint32(b []byte) uint32  { return binary.LittleEndian.Uint32(b) }
func encodeUint32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }

func decodeInt64(b []byte) int64    { return int64(binary.LittleEndian.Uint64(b)) }
func encodeInt64(b []byte, v int64) { binary.LittleEndian.PutUint64(b, uint64(v)) }
func decodeUint64(b []byte) uint64  { return binary.LittleEndian.Uint64(b) }
func encodeUint64(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) }

func decodeFloat32(b []byte) float32    { return math.Float32frombits(binary.LittleEndian.Uint32(b)) }
func encodeFloat32(b []byte, v float32) { binary.LittleEndian.PutUint32(b, math.Float32bits(v)) }
func decodeFloat64(b []byte) float64    { return math.Float64frombits(binary.LittleEndian.Uint64(b)) }
func encodeFloat64(b []byte, v float64) { binary.LittleEndian.PutUint64(b, math.Float64bits(v)) }
