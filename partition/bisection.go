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
	"math"

	"github.com/laik-go/laik/group"
	"github.com/laik-go/laik/space"
)

// Bisection recursively splits the space along its widest dimension at the
// median, handing each half to roughly half of the remaining tasks, until
// one task remains per region. It produces exactly one slice per task.
func Bisection() *Partitioner {
	return &Partitioner{
		Name:  "bisection",
		Flags: Flags{Disjunctive: true},
		Run: func(sp *space.Space, g *group.Group, base *Partitioning) ([]TaskSlice, error) {
			tasks := make([]int, g.Size)
			for i := range tasks {
				tasks[i] = i
			}
			out := make([]TaskSlice, 0, g.Size)
			bisect(sp.Dims(), sp.RawSlice(), tasks, &out)
			return out, nil
		},
	}
}

func bisect(dims int, s space.Slice, tasks []int, out *[]TaskSlice) {
	if len(tasks) == 1 {
		*out = append(*out, TaskSlice{Task: tasks[0], Slice: s})
		return
	}

	widest := 0
	best := uint64(0)
	for d := 0; d < dims; d++ {
		if e := s.Extent(d); e > best {
			best = e
			widest = d
		}
	}

	left := len(tasks) / 2
	right := len(tasks) - left
	frac := float64(left) / float64(left+right)

	leftS, rightS := s, s
	split := s.From.I[widest] + uint64(math.Round(float64(s.Extent(widest))*frac))
	if split <= s.From.I[widest] {
		split = s.From.I[widest] + 1
	}
	if split >= s.To.I[widest] {
		split = s.To.I[widest] - 1
	}
	leftS.To.I[widest] = split
	rightS.From.I[widest] = split

	bisect(dims, leftS, tasks[:left], out)
	bisect(dims, rightS, tasks[left:], out)
}
