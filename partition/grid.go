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

// Grid partitions a space regularly into xb*yb*zb cells (zb is ignored for
// spaces with fewer than 3 dimensions), assigned to tasks 0..xb*yb*zb-1 in
// x-fastest order. It requires group.Size >= xb*yb*zb.
func Grid(xb, yb, zb int) *Partitioner {
	return &Partitioner{
		Name:  "grid",
		Flags: Flags{Disjunctive: true},
		Run: func(sp *space.Space, g *group.Group, base *Partitioning) ([]TaskSlice, error) {
			bounds := [3]int{xb, yb, zb}
			dims := sp.Dims()
			for d := dims; d < 3; d++ {
				bounds[d] = 1
			}
			cells := bounds[0] * bounds[1] * bounds[2]
			if cells <= 0 {
				return nil, fmt.Errorf("grid: invalid bounds %v", bounds)
			}
			if g.Size < cells {
				return nil, fmt.Errorf("grid: group size %d smaller than xb*yb*zb=%d", g.Size, cells)
			}
			full := sp.RawSlice()

			bounds64 := [3]uint64{uint64(bounds[0]), uint64(bounds[1]), uint64(bounds[2])}
			cellFrom := func(d int, c uint64) uint64 {
				ext := full.Extent(d)
				if d >= dims {
					return full.From.I[d]
				}
				return full.From.I[d] + (ext*c)/bounds64[d]
			}

			out := make([]TaskSlice, 0, cells)
			task := 0
			for k := 0; k < bounds[2]; k++ {
				for j := 0; j < bounds[1]; j++ {
					for i := 0; i < bounds[0]; i++ {
						s := full
						coords := [3]int{i, j, k}
						for d := 0; d < dims; d++ {
							s.From.I[d] = cellFrom(d, uint64(coords[d]))
							s.To.I[d] = cellFrom(d, uint64(coords[d]+1))
						}
						out = append(out, TaskSlice{Task: task, Slice: s})
						task++
					}
				}
			}
			return out, nil
		},
	}
}
