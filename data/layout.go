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

import "github.com/laik-go/laik/space"

// Layout walks a (possibly non-contiguous, up to 3D) sub-slice of a
// Mapping's backing store through a scratch byte buffer, without the
// engine ever needing to know how the Mapping lays out its elements in
// memory. cursor is advanced by both Pack and Unpack; iteration over a
// sub-slice is complete once cursor equals sub.To.
type Layout interface {
	// Pack serializes elements of sub (which must lie within m's own
	// slice; it is not clipped) into outBuf, starting at *cursor, until
	// outBuf is full or sub is exhausted. It returns the number of bytes
	// written.
	Pack(m *Mapping, sub space.Slice, cursor *space.Index, outBuf []byte) int
	// Unpack deserializes from inBuf into sub (which must lie within m's
	// own slice; it is not clipped), starting at *cursor.
	Unpack(m *Mapping, sub space.Slice, cursor *space.Index, inBuf []byte) int
}

// Mapping is the per-slice memory backing a Data on one process.
type Mapping struct {
	Base   []byte
	Slice  space.Slice
	Layout Layout
	Dims   int
	ElemSize int
}

// rowMajorLayout is the default Layout: elements are stored in row-major
// (dim 0 fastest) order across m.Slice, contiguous per row in dim 0.
type rowMajorLayout struct{}

// DefaultLayout is the row-major Layout every Data uses unless overridden.
var DefaultLayout Layout = rowMajorLayout{}

func (rowMajorLayout) offset(m *Mapping, idx space.Index) int {
	// row-major: dim 0 fastest, then dim 1, then dim 2.
	off := 0
	stride := 1
	for d := 0; d < m.Dims; d++ {
		off += int(idx.I[d]-m.Slice.From.I[d]) * stride
		stride *= int(m.Slice.Extent(d))
	}
	return off * m.ElemSize
}

// nextIndex advances idx by one element in row-major order within bound,
// returning true while idx is still inside bound and false once it has
// wrapped past bound.To (iteration complete).
func nextIndex(dims int, idx *space.Index, bound space.Slice) bool {
	for d := 0; d < dims; d++ {
		idx.I[d]++
		if idx.I[d] < bound.To.I[d] {
			return true
		}
		idx.I[d] = bound.From.I[d]
	}
	return false
}

func (l rowMajorLayout) Pack(m *Mapping, sub space.Slice, cursor *space.Index, outBuf []byte) int {
	written := 0
	for written+m.ElemSize <= len(outBuf) {
		if !sub.Contains(m.Dims, *cursor) {
			break
		}
		off := l.offset(m, *cursor)
		copy(outBuf[written:written+m.ElemSize], m.Base[off:off+m.ElemSize])
		written += m.ElemSize
		if !nextIndex(m.Dims, cursor, sub) {
			*cursor = sub.To
			break
		}
	}
	return written
}

func (l rowMajorLayout) Unpack(m *Mapping, sub space.Slice, cursor *space.Index, inBuf []byte) int {
	read := 0
	for read+m.ElemSize <= len(inBuf) {
		if !sub.Contains(m.Dims, *cursor) {
			break
		}
		off := l.offset(m, *cursor)
		copy(m.Base[off:off+m.ElemSize], inBuf[read:read+m.ElemSize])
		read += m.ElemSize
		if !nextIndex(m.Dims, cursor, sub) {
			*cursor = sub.To
			break
		}
	}
	return read
}

// NewMapping allocates a zeroed Mapping covering slice with the given
// element size, using the default row-major layout.
func NewMapping(dims, elemSize int, slice space.Slice) *Mapping {
	n := slice.Size(dims)
	return &Mapping{
		Base:     make([]byte, n*uint64(elemSize)),
		Slice:    slice,
		Layout:   DefaultLayout,
		Dims:     dims,
		ElemSize: elemSize,
	}
}

// At returns the elemSize-byte element at idx as a slice view into m's
// backing store (not a copy).
func (m *Mapping) At(idx space.Index) []byte {
	l := m.Layout.(rowMajorLayout)
	off := l.offset(m, idx)
	return m.Base[off : off+m.ElemSize]
}
