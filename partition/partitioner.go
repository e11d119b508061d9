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

import "github.com/laik-go/laik/group"
import "github.com/laik-go/laik/space"

// RunFunc produces the task-slices for a Partitioning. base is nil unless
// the partitioner is a "coupled" one (halo, corner-halo, copy, reassign)
// that derives its output from an existing Partitioning.
type RunFunc func(sp *space.Space, g *group.Group, base *Partitioning) ([]TaskSlice, error)

// Flags describes properties a partitioner guarantees about its output.
type Flags struct {
	// Disjunctive means no two entries with different tasks may
	// intersect; Partitioning.validate checks this when set.
	Disjunctive bool
}

// Partitioner is a named, pure producer of task-slices.
type Partitioner struct {
	Name  string
	Run   RunFunc
	Flags Flags

	// UserData is opaque state closed over by Run (e.g. block weights);
	// exposed for debugging/logging only.
	UserData any
}
