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

// Package space implements the index algebra (points, rectangular slices,
// intersection) and the Space type: a named, resizable regular index space
// owned by an instance.
package space

// Index is a point in up to three dimensions. All three coordinates are
// always stored; dimensions beyond a Space's declared rank are ignored by
// callers and left at zero.
type Index struct {
	I [3]uint64
}

// Slice is a half-open rectangle [From, To) in a Space's coordinate system.
type Slice struct {
	From, To Index
}

// IndexEqual reports whether a and b agree on their first dims coordinates.
func IndexEqual(dims int, a, b Index) bool {
	for d := 0; d < dims; d++ {
		if a.I[d] != b.I[d] {
			return false
		}
	}
	return true
}

// IsEmpty reports whether s is empty in any of its first dims dimensions.
func (s Slice) IsEmpty(dims int) bool {
	for d := 0; d < dims; d++ {
		if s.From.I[d] >= s.To.I[d] {
			return true
		}
	}
	return false
}

// Intersect returns the componentwise intersection of a and b. The second
// return value is false if the intersection is empty.
//
// This and the other functions in this file are the basis for every later
// optimization pass; keep them branch-light and free of allocation.
func Intersect(dims int, a, b Slice) (Slice, bool) {
	var out Slice
	for d := 0; d < dims; d++ {
		out.From.I[d] = max64(a.From.I[d], b.From.I[d])
		out.To.I[d] = min64(a.To.I[d], b.To.I[d])
	}
	if out.IsEmpty(dims) {
		return Slice{}, false
	}
	return out, true
}

// Extent returns the width of s along dim.
func (s Slice) Extent(dim int) uint64 {
	if s.To.I[dim] <= s.From.I[dim] {
		return 0
	}
	return s.To.I[dim] - s.From.I[dim]
}

// Size returns the number of indices covered by s across its first dims
// dimensions (0 if s is empty).
func (s Slice) Size(dims int) uint64 {
	if s.IsEmpty(dims) {
		return 0
	}
	n := uint64(1)
	for d := 0; d < dims; d++ {
		n *= s.Extent(d)
	}
	return n
}

// Contains reports whether idx lies within s across its first dims
// dimensions.
func (s Slice) Contains(dims int, idx Index) bool {
	for d := 0; d < dims; d++ {
		if idx.I[d] < s.From.I[d] || idx.I[d] >= s.To.I[d] {
			return false
		}
	}
	return true
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
