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
	"github.com/laik-go/laik/group"
	"github.com/laik-go/laik/space"
)

// All returns a partitioner that gives every task access to the whole
// space.
func All() *Partitioner {
	return &Partitioner{
		Name:  "all",
		Flags: Flags{Disjunctive: false},
		Run: func(sp *space.Space, g *group.Group, base *Partitioning) ([]TaskSlice, error) {
			full := sp.RawSlice()
			out := make([]TaskSlice, g.Size)
			for t := 0; t < g.Size; t++ {
				out[t] = TaskSlice{Task: t, Slice: full}
			}
			return out, nil
		},
	}
}

// Master returns a partitioner that gives only task 0 access to the whole
// space.
func Master() *Partitioner {
	return &Partitioner{
		Name:  "master",
		Flags: Flags{Disjunctive: true},
		Run: func(sp *space.Space, g *group.Group, base *Partitioning) ([]TaskSlice, error) {
			return []TaskSlice{{Task: 0, Slice: sp.RawSlice()}}, nil
		},
	}
}
