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
	"sync"

	"github.com/laik-go/laik/group"
	"github.com/laik-go/laik/space"
)

// Partitioning is the materialized result of running a Partitioner over a
// (space, group) pair: an ordered set of task-slices, sealed once built so
// it can be sorted, indexed by task, and queried, but never mutated.
type Partitioning struct {
	Space       *space.Space
	Group       *group.Group
	Partitioner *Partitioner
	Base        *Partitioning

	mu      sync.Mutex
	dirty   bool
	tslice  []TaskSlice
	byTask  map[int][]int // task -> indices into tslice, built at seal time
}

// Build runs partitioner once against sp/g (and base, for coupled
// partitioners), validates and seals the result.
func Build(sp *space.Space, g *group.Group, partitioner *Partitioner, base *Partitioning) (*Partitioning, error) {
	p := &Partitioning{
		Space:       sp,
		Group:       g,
		Partitioner: partitioner,
		Base:        base,
	}
	if err := p.run(); err != nil {
		return nil, err
	}
	sp.Register(p)
	return p, nil
}

func (p *Partitioning) run() error {
	out, err := p.Partitioner.Run(p.Space, p.Group, p.Base)
	if err != nil {
		return fmt.Errorf("partition %s: %w", p.Partitioner.Name, err)
	}
	if err := p.validate(out); err != nil {
		return err
	}
	p.seal(out)
	return nil
}

func (p *Partitioning) validate(out []TaskSlice) error {
	for _, ts := range out {
		if ts.Task < 0 || ts.Task >= p.Group.Size {
			return fmt.Errorf("partition %s: task %d out of range [0,%d)", p.Partitioner.Name, ts.Task, p.Group.Size)
		}
	}
	if p.Partitioner.Flags.Disjunctive {
		dims := p.Space.Dims()
		for i := range out {
			for j := i + 1; j < len(out); j++ {
				if out[i].Task == out[j].Task {
					continue
				}
				if _, ok := space.Intersect(dims, out[i].Slice, out[j].Slice); ok {
					return fmt.Errorf("partition %s: disjunctive partitioner produced overlapping slices for tasks %d and %d",
						p.Partitioner.Name, out[i].Task, out[j].Task)
				}
			}
		}
	}
	return nil
}

func (p *Partitioning) seal(out []TaskSlice) {
	sort.SliceStable(out, func(i, j int) bool { return out[i].Task < out[j].Task })
	byTask := make(map[int][]int, p.Group.Size)
	for i := range out {
		byTask[out[i].Task] = append(byTask[out[i].Task], i)
	}
	p.mu.Lock()
	p.tslice = out
	p.byTask = byTask
	p.dirty = false
	p.mu.Unlock()
}

// Invalidate implements space.Dependent: it marks the partitioning dirty so
// it is recomputed lazily the next time it is accessed, following a
// resize of the space it was built over.
func (p *Partitioning) Invalidate() {
	p.mu.Lock()
	p.dirty = true
	p.mu.Unlock()
}

func (p *Partitioning) ensureFresh() {
	p.mu.Lock()
	dirty := p.dirty
	p.mu.Unlock()
	if !dirty {
		return
	}
	// best effort: contract violations here are programming errors and
	// panic.
	if err := p.run(); err != nil {
		panic(err)
	}
}

// Slices returns every task-slice entry, in (task, emission order).
func (p *Partitioning) Slices() []TaskSlice {
	p.ensureFresh()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tslice
}

// TaskSlices returns the entries owned by task.
func (p *Partitioning) TaskSlices(task int) []TaskSlice {
	p.ensureFresh()
	p.mu.Lock()
	defer p.mu.Unlock()
	idxs := p.byTask[task]
	out := make([]TaskSlice, len(idxs))
	for i, idx := range idxs {
		out[i] = p.tslice[idx]
	}
	return out
}

// MySlice returns the i-th slice owned by the partitioning's group's
// calling process (laik_my_slice_Nd).
func (p *Partitioning) MySlice(i int) (space.Slice, bool) {
	mine := p.TaskSlices(p.Group.MyID)
	if i < 0 || i >= len(mine) {
		return space.Slice{}, false
	}
	return mine[i].Slice, true
}

// NumSlices returns the number of slices owned by task.
func (p *Partitioning) NumSlices(task int) int {
	p.ensureFresh()
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byTask[task])
}

// Tasks returns the distinct set of tasks with at least one slice, sorted
// ascending.
func (p *Partitioning) Tasks() []int {
	p.ensureFresh()
	p.mu.Lock()
	defer p.mu.Unlock()
	tasks := make([]int, 0, len(p.byTask))
	for t := range p.byTask {
		tasks = append(tasks, t)
	}
	sort.Ints(tasks)
	return tasks
}
