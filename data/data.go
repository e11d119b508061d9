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

package data

import (
	"fmt"
	"sync"

	"github.com/laik-go/laik/action"
	"github.com/laik-go/laik/partition"
	"github.com/laik-go/laik/space"
	"github.com/laik-go/laik/transition"
)

// InitFunc fills a newly allocated, not-yet-written element range with an
// application-chosen default (e.g. zero, or a per-index computed value).
// count is the number of elements at stride Data.Elem.Size starting at buf.
type InitFunc func(buf []byte, count int)

// Backend is the narrow surface Switch needs from a backend.Backend,
// declared independently (structurally satisfied by backend.Backend) so
// this package never imports backend — keeping the dependency arrow
// data -> action -> (nothing backend-specific), per the module layout.
type Backend interface {
	Prepare(aseq *action.ActionSeq) error
	Exec(aseq *action.ActionSeq) error
	Cleanup(aseq *action.ActionSeq) error
}

// Data is a typed element container bound to a Space: an active
// Partitioning, the per-slice Mappings backing it on this process, and
// the element type's reducer/init.
type Data struct {
	mu sync.Mutex

	Space *space.Space
	Elem  ElementType
	Name  string
	Init  InitFunc

	// ActionConfig gates the optimizer passes switchCore lowers every
	// Transition through (all-reduce collapsing, async send/recv,
	// pack buffer sizing). It is the zero value (every pass disabled,
	// default scratch size) until a caller sets it, typically from an
	// Instance's own Config via Instance.ActionConfig.
	ActionConfig action.Config

	active   *partition.Partitioning
	mappings []*Mapping
}

// New allocates an unbound Data: no active partitioning, no mappings,
// until the first Switch.
func New(sp *space.Space, elem ElementType, name string) *Data {
	return &Data{Space: sp, Elem: elem, Name: name}
}

// Mappings returns the Mappings backing d's current partitioning on this
// process, one per owned TaskSlice entry, in TaskSlices order.
func (d *Data) Mappings() []*Mapping {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Mapping(nil), d.mappings...)
}

// Active returns d's current Partitioning, or nil before the first
// Switch.
func (d *Data) Active() *partition.Partitioning {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Switch moves d from its current partitioning to "to" under the given
// flow/reduction attributes: it computes the Transition, lowers and
// optimizes it into an ActionSeq, and drives be through
// Prepare/Exec/Cleanup. A first Switch (d.active == nil) has nothing to
// move data from, so it just allocates fresh, Init-filled Mappings and
// skips the Transition/ActionSeq machinery entirely.
func (d *Data) Switch(to *partition.Partitioning, flow Flow, redOp ReduceOp, be Backend) error {
	d.mu.Lock()
	from := d.active
	oldMappings := d.mappings
	d.mu.Unlock()

	newMappings, err := d.switchCore(from, oldMappings, to, flow, redOp, be)
	if err != nil {
		return err
	}
	d.commit(to, newMappings)
	return nil
}

// SwitchFrom moves d to "to" the way Switch does, but takes the source
// partitioning/mappings from src instead of d's own prior state. This is
// how ft.Restore copies a checkpoint's shadow Data into the caller's live
// Data: the two are distinct Data values sharing only a Space and element
// type.
func (d *Data) SwitchFrom(src *Data, to *partition.Partitioning, flow Flow, redOp ReduceOp, be Backend) error {
	return d.SwitchFromPartitioning(src.Active(), src.Mappings(), to, flow, redOp, be)
}

// SwitchFromPartitioning is SwitchFrom generalized to an explicit source
// partitioning and mapping set, for a caller that needs to restrict or
// rewrite the source side before the transition is computed: ft's fault
// recovery path must drop a failed task's entries from a checkpoint's
// backup partitioning before using it as a switch source, which it
// cannot express in terms of a live Data's own Active()/Mappings().
func (d *Data) SwitchFromPartitioning(from *partition.Partitioning, fromMappings []*Mapping, to *partition.Partitioning, flow Flow, redOp ReduceOp, be Backend) error {
	newMappings, err := d.switchCore(from, fromMappings, to, flow, redOp, be)
	if err != nil {
		return err
	}
	d.commit(to, newMappings)
	return nil
}

func (d *Data) switchCore(from *partition.Partitioning, oldMappings []*Mapping, to *partition.Partitioning, flow Flow, redOp ReduceOp, be Backend) ([]*Mapping, error) {
	if to.Group == nil {
		return nil, fmt.Errorf("data: Switch: target partitioning has no group")
	}
	dims := d.Space.Dims()
	myID := to.Group.MyID

	newMappings := d.allocMappings(to, myID, dims)

	if from == nil {
		return newMappings, nil
	}

	tr := transition.Compute(from, to, flow, redOp)
	aseq := action.Lower(tr, d.Elem.Size, d.Elem)
	action.Prepare(aseq, d.ActionConfig)

	if len(aseq.Contexts) > 0 {
		aseq.Contexts[0].FromMapper = oldMappings
		aseq.Contexts[0].ToMapper = newMappings
	}

	if be == nil {
		if len(tr.Send) > 0 || len(tr.Recv) > 0 || len(tr.Red) > 0 {
			return nil, fmt.Errorf("data: Switch: transition requires a backend but none was supplied")
		}
		if err := execLocalOnly(tr, oldMappings, newMappings, dims, d.Elem); err != nil {
			return nil, err
		}
		return newMappings, nil
	}

	if err := be.Prepare(aseq); err != nil {
		return nil, fmt.Errorf("data: Switch: backend Prepare: %w", err)
	}
	if err := be.Exec(aseq); err != nil {
		return nil, fmt.Errorf("data: Switch: backend Exec: %w", err)
	}
	if err := be.Cleanup(aseq); err != nil {
		return nil, fmt.Errorf("data: Switch: backend Cleanup: %w", err)
	}

	return newMappings, nil
}

func (d *Data) commit(to *partition.Partitioning, mappings []*Mapping) {
	d.mu.Lock()
	d.active = to
	d.mappings = mappings
	d.mu.Unlock()
}

func (d *Data) allocMappings(to *partition.Partitioning, myID, dims int) []*Mapping {
	own := to.TaskSlices(myID)
	out := make([]*Mapping, len(own))
	for i, ts := range own {
		m := NewMapping(dims, d.Elem.Size, ts.Slice)
		if d.Init != nil {
			d.Init(m.Base, len(m.Base)/d.Elem.Size)
		} else if len(m.Base) > 0 {
			_ = d.Elem.Init(m.Base, len(m.Base)/d.Elem.Size, ReduceSum)
		}
		out[i] = m
	}
	return out
}

// execLocalOnly performs a Transition's LocalCopy entries directly
// against the given Mappings, for the no-backend single-process case
// (every testable-property exercise that builds a Data without wiring a
// real Backend falls into this path).
func execLocalOnly(tr *transition.Transition, from, to []*Mapping, dims int, elem ElementType) error {
	for _, lc := range tr.Local {
		if err := copySlice(from, to, lc.From, lc.To, dims, elem); err != nil {
			return err
		}
	}
	return nil
}

func copySlice(from, to []*Mapping, fromSlice, toSlice space.Slice, dims int, elem ElementType) error {
	srcM := findMapping(from, fromSlice, dims)
	dstM := findMapping(to, toSlice, dims)
	if srcM == nil || dstM == nil {
		return fmt.Errorf("data: local copy: no mapping covers slice %+v", fromSlice)
	}
	cursor := fromSlice.From
	buf := make([]byte, elem.Size)
	dstCursor := toSlice.From
	for {
		n := srcM.Layout.Pack(srcM, fromSlice, &cursor, buf)
		if n == 0 {
			break
		}
		dstM.Layout.Unpack(dstM, toSlice, &dstCursor, buf[:n])
		if space.IndexEqual(dims, cursor, fromSlice.To) {
			break
		}
	}
	return nil
}

func findMapping(mappings []*Mapping, slice space.Slice, dims int) *Mapping {
	for _, m := range mappings {
		if _, ok := space.Intersect(dims, m.Slice, slice); ok {
			return m
		}
	}
	return nil
}
