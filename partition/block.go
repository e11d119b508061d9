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

// IndexWeight assigns a weight to index idx along the split dimension. A
// nil IndexWeight means every index has weight 1 (uniform).
type IndexWeight func(idx uint64) float64

// TaskWeight assigns a relative share of each cycle's budget to task t. A
// nil TaskWeight means every task has weight 1 (uniform).
type TaskWeight func(task int) float64

// Block splits dim into contiguous ranges so that each task's weighted
// mass approximates total/size/cycles. With cycles > 1 the space is
// divided into size*cycles contiguous blocks, generated left to right and
// handed out round-robin (block b goes to task b%size), so each task ends
// up with `cycles` separate slices scattered through the space.
//
// Tie-break: task k is filled completely before task k+1 within a cycle;
// floating-point remainder is absorbed by the very last block.
func Block(dim, cycles int, idxW IndexWeight, taskW TaskWeight) *Partitioner {
	return &Partitioner{
		Name:  "block",
		Flags: Flags{Disjunctive: true},
		Run: func(sp *space.Space, g *group.Group, base *Partitioning) ([]TaskSlice, error) {
			if cycles < 1 {
				return nil, fmt.Errorf("block: cycles must be >= 1, got %d", cycles)
			}
			if dim < 0 || dim >= sp.Dims() {
				return nil, fmt.Errorf("block: dim %d out of range for a %d-d space", dim, sp.Dims())
			}
			full := sp.RawSlice()
			base0 := full.From.I[dim]
			ext := full.Extent(dim)

			prefix := make([]float64, ext+1)
			for i := uint64(0); i < ext; i++ {
				w := 1.0
				if idxW != nil {
					w = idxW(base0 + i)
				}
				prefix[i+1] = prefix[i] + w
			}
			total := prefix[ext]

			tw := make([]float64, g.Size)
			twSum := 0.0
			for t := 0; t < g.Size; t++ {
				w := 1.0
				if taskW != nil {
					w = taskW(t)
				}
				tw[t] = w
				twSum += w
			}
			twPrefix := make([]float64, g.Size+1)
			for t := 0; t < g.Size; t++ {
				twPrefix[t+1] = twPrefix[t] + tw[t]
			}

			cycleBudget := total / float64(cycles)
			totalBlocks := g.Size * cycles
			out := make([]TaskSlice, 0, totalBlocks)
			pos := uint64(0)
			for b := 0; b < totalBlocks; b++ {
				cyc := b / g.Size
				t := b % g.Size
				var to uint64
				if b == totalBlocks-1 {
					to = ext
				} else {
					var target float64
					if twSum > 0 {
						target = float64(cyc)*cycleBudget + cycleBudget*twPrefix[t+1]/twSum
					} else {
						target = float64(b+1) / float64(totalBlocks) * total
					}
					to = pos
					for to < ext && prefix[to] < target {
						to++
					}
				}
				if to < pos {
					to = pos
				}
				s := full
				s.From.I[dim] = base0 + pos
				s.To.I[dim] = base0 + to
				out = append(out, TaskSlice{Task: t, Slice: s, Tag: 0})
				pos = to
			}
			if pos != ext {
				return nil, fmt.Errorf("block: internal inconsistency, consumed %d of %d along dim %d", pos, ext, dim)
			}
			return out, nil
		},
	}
}
