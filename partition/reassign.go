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
	"sort"

	"github.com/laik-go/laik/group"
	"github.com/laik-go/laik/space"
)

// Reassign derives a partitioning from base over newGroup: slices owned by
// tasks still present in newGroup keep their (translated) owner; slices
// owned by tasks that newGroup no longer contains are redistributed over
// newGroup's tasks.
//
// The redistribution is "weighted block assignment" for the single-axis
// case; a base partitioning's orphaned region is in general a set of
// disjoint hyperrectangles rather than one contiguous axis, so this
// redistributes by a greedy weighted bin-balance: orphaned slices are
// assigned, largest first, to whichever surviving task has received the
// least orphaned weight so far (the weight of its kept slices is not
// counted). This generalizes the single-axis tie-break
// (fill the least-loaded task next) to the multi-dimensional case; see
// DESIGN.md.
func Reassign(newGroup *group.Group, idxW IndexWeight) *Partitioner {
	return &Partitioner{
		Name: "reassign",
		Run: func(sp *space.Space, g *group.Group, base *Partitioning) ([]TaskSlice, error) {
			if base == nil {
				return nil, fmt.Errorf("reassign: requires a base partitioning")
			}
			if g != newGroup {
				return nil, fmt.Errorf("reassign: must be built over its own newGroup")
			}
			if newGroup != base.Group && newGroup.Parent != base.Group {
				return nil, fmt.Errorf("reassign: newGroup must be derived from the base's group")
			}
			dims := sp.Dims()
			baseSlices := base.Slices()

			var kept, orphaned []TaskSlice
			for _, e := range baseSlices {
				newTask := newGroupRank(newGroup, base.Group, e.Task)
				if newTask >= 0 {
					kept = append(kept, TaskSlice{Task: newTask, Slice: e.Slice, Tag: e.Tag})
				} else {
					orphaned = append(orphaned, e)
				}
			}

			weight := func(s space.Slice) float64 {
				if idxW == nil {
					return float64(s.Size(dims))
				}
				// approximate weighted volume as size scaled by the
				// average index weight along dimension 0.
				ext := s.Extent(0)
				if ext == 0 {
					return 0
				}
				sum := 0.0
				for i := uint64(0); i < ext; i++ {
					sum += idxW(s.From.I[0] + i)
				}
				avg := sum / float64(ext)
				return avg * float64(s.Size(dims)) / float64(ext) * float64(ext)
			}

			sort.SliceStable(orphaned, func(i, j int) bool {
				return weight(orphaned[i].Slice) > weight(orphaned[j].Slice)
			})

			load := make([]float64, newGroup.Size)
			for _, e := range orphaned {
				best := 0
				for t := 1; t < newGroup.Size; t++ {
					if load[t] < load[best] {
						best = t
					}
				}
				load[best] += weight(e.Slice)
				kept = append(kept, TaskSlice{Task: best, Slice: e.Slice, Tag: e.Tag})
			}
			return kept, nil
		},
	}
}

// newGroupRank translates rank, a task id in oldGroup (the base
// partitioning's group), into the corresponding rank in newGroup, where
// newGroup was built by a single Shrink of oldGroup. Returns -1 if rank
// is not present in newGroup, i.e. it names a task that was removed.
func newGroupRank(newGroup, oldGroup *group.Group, rank int) int {
	if newGroup == oldGroup {
		return rank
	}
	if newGroup.Parent == oldGroup {
		if !newGroup.Contains(rank) {
			return -1
		}
		return newGroup.FromParent[rank]
	}
	return -1
}
