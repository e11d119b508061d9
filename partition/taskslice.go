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

// Package partition implements Partitioners (named strategies that emit
// task-slices over a space/group pair) and Partitioning (the sealed,
// queryable result of running one).
package partition

import "github.com/laik-go/laik/space"

// TaskSlice is one entry of a Partitioning: a slice owned by a task, with
// an optional mapping tag. Tag 0 means the slice forms its own mapping
// group; tag > 0 groups it with every other entry sharing the same tag.
type TaskSlice struct {
	Task  int
	Slice space.Slice
	Tag   int
	MapNo int
}
