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

package partition

import (
	"fmt"

	"github.com/laik-go/laik/group"
	"github.com/laik-go/laik/space"
)

// Halo derives, from a base partitioning, each base slice plus up to
// 2*dims extension slices (one per face, no corners) clipped to the
// space. Every slice derived from the same base entry shares a tag so they
// form one mapping group.
func Halo(depth uint64) *Partitioner {
	return &Partitioner{
		Name: "halo",
		Run: func(sp *space.Space, g *group.Group, base *Partitioning) ([]TaskSlice, error) {
			if base == nil {
				return nil, fmt.Errorf("halo: requires a base partitioning")
			}
			dims := sp.Dims()
			full := sp.RawSlice()
			baseSlices := base.Slices()
			out := make([]TaskSlice, 0, len(baseSlices)*(1+2*dims))
			for i, e := range baseSlices {
				tag := e.Tag
				if tag == 0 {
					tag = i + 1
				}
				out = append(out, TaskSlice{Task: e.Task, Slice: e.Slice, Tag: tag})
				for d := 0; d < dims; d++ {
					if lo := e.Slice.From.I[d]; lo > full.From.I[d] {
						ext := e.Slice
						newFrom := lo - depth
						if newFrom < full.From.I[d] {
							newFrom = full.From.I[d]
						}
						ext.From.I[d] = newFrom
						ext.To.I[d] = lo
						out = append(out, TaskSlice{Task: e.Task, Slice: ext, Tag: tag})
					}
					if hi := e.Slice.To.I[d]; hi < full.To.I[d] {
						ext := e.Slice
						newTo := hi + depth
						if newTo > full.To.I[d] {
							newTo = full.To.I[d]
						}
						ext.From.I[d] = hi
						ext.To.I[d] = newTo
						out = append(out, TaskSlice{Task: e.Task, Slice: ext, Tag: tag})
					}
				}
			}
			return out, nil
		},
	}
}

// CornerHalo derives one extended slice per base entry, expanded by depth
// in every dimension and clipped to the space; unlike Halo this includes
// the corner regions in a single merged rectangle.
func CornerHalo(depth uint64) *Partitioner {
	return &Partitioner{
		Name: "cornerhalo",
		Run: func(sp *space.Space, g *group.Group, base *Partitioning) ([]TaskSlice, error) {
			if base == nil {
				return nil, fmt.Errorf("cornerhalo: requires a base partitioning")
			}
			dims := sp.Dims()
			full := sp.RawSlice()
			baseSlices := base.Slices()
			out := make([]TaskSlice, 0, len(baseSlices))
			for i, e := range baseSlices {
				tag := e.Tag
				if tag == 0 {
					tag = i + 1
				}
				s := e.Slice
				for d := 0; d < dims; d++ {
					from := s.From.I[d]
					if from < depth || from-depth < full.From.I[d] {
						from = full.From.I[d]
					} else {
						from -= depth
					}
					to := s.To.I[d] + depth
					if to > full.To.I[d] {
						to = full.To.I[d]
					}
					s.From.I[d] = from
					s.To.I[d] = to
				}
				out = append(out, TaskSlice{Task: e.Task, Slice: s, Tag: tag})
			}
			return out, nil
		},
	}
}

// Copy derives, from a base partitioning, one full-extent slice per base
// entry whose extent in toDim is taken from the base entry's extent in
// fromDim; every other dimension spans the whole space.
func Copy(fromDim, toDim int) *Partitioner {
	return &Partitioner{
		Name: "copy",
		Run: func(sp *space.Space, g *group.Group, base *Partitioning) ([]TaskSlice, error) {
			if base == nil {
				return nil, fmt.Errorf("copy: requires a base partitioning")
			}
			full := sp.RawSlice()
			baseSlices := base.Slices()
			out := make([]TaskSlice, 0, len(baseSlices))
			for _, e := range baseSlices {
				s := full
				s.From.I[toDim] = e.Slice.From.I[fromDim]
				s.To.I[toDim] = e.Slice.To.I[fromDim]
				out = append(out, TaskSlice{Task: e.Task, Slice: s, Tag: e.Tag})
			}
			return out, nil
		},
	}
}
