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

package ft

import (
	"testing"

	"github.com/laik-go/laik/backend"
	"github.com/laik-go/laik/data"
	"github.com/laik-go/laik/group"
	"github.com/laik-go/laik/partition"
	"github.com/laik-go/laik/space"
)

// TestCheckpointCreateSingleTask exercises checkpoint_create on a
// single-task group, where the redundant backup partitioner degenerates
// to the identity (redundancy 1 has nothing extra to add) and the
// Preserve switch into the backup is pure local copies, needing no
// backend.
func TestCheckpointCreateSingleTask(t *testing.T) {
	reg := space.NewRegistry()
	sp, err := reg.New1D(10)
	if err != nil {
		t.Fatal(err)
	}
	g := group.NewWorld(1, 0)

	d := data.New(sp, data.Int32, "u")
	all, err := partition.Build(sp, g, partition.All(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Switch(all, data.None, data.ReduceNone, nil); err != nil {
		t.Fatal(err)
	}

	ckpt, err := Create(d, partition.All(), 1, 1, g, data.ReduceNone, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ckpt.Data.Active() == nil {
		t.Fatal("expected checkpoint's shadow Data to have an active partitioning")
	}
}

// TestRemoveFailedSlicesDetectsDataLoss is property #9's negative case:
// once every task holding a region is marked faulted, coverage is lost
// and RemoveFailedSlices must report false.
func TestRemoveFailedSlicesDetectsDataLoss(t *testing.T) {
	reg := space.NewRegistry()
	sp, err := reg.New1D(16)
	if err != nil {
		t.Fatal(err)
	}
	g := group.NewWorld(4, 0)

	d := data.New(sp, data.Int32, "v")
	block, err := partition.Build(sp, g, partition.Block(0, 1, nil, nil), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Switch(block, data.None, data.ReduceNone, nil); err != nil {
		t.Fatal(err)
	}

	ckpt := &Checkpoint{Space: sp, Data: d}

	allSurvive := []Status{OK, OK, OK, OK}
	covered, err := RemoveFailedSlices(ckpt, allSurvive)
	if err != nil {
		t.Fatal(err)
	}
	if !covered {
		t.Fatal("expected full coverage when every task survives")
	}

	oneDown := []Status{OK, Fault, OK, OK}
	covered, err = RemoveFailedSlices(ckpt, oneDown)
	if err != nil {
		t.Fatal(err)
	}
	if covered {
		t.Fatal("expected coverage loss once a task with sole ownership of a range is marked faulted")
	}
}

// TestRemoveFailedSlicesSurvivesWithRedundancy is property #9's positive
// case: under All() every task holds the whole space, so every index is
// held redundantly and losing one task still leaves full coverage.
func TestRemoveFailedSlicesSurvivesWithRedundancy(t *testing.T) {
	reg := space.NewRegistry()
	sp, err := reg.New1D(16)
	if err != nil {
		t.Fatal(err)
	}
	g := group.NewWorld(4, 0)

	d := data.New(sp, data.Int32, "w")
	all, err := partition.Build(sp, g, partition.All(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Switch(all, data.None, data.ReduceNone, nil); err != nil {
		t.Fatal(err)
	}

	ckpt := &Checkpoint{Space: sp, Data: d}

	oneDown := []Status{OK, Fault, OK, OK}
	covered, err := RemoveFailedSlices(ckpt, oneDown)
	if err != nil {
		t.Fatal(err)
	}
	if !covered {
		t.Fatal("expected coverage to survive: every task already holds the full space under all()")
	}
}

// TestCreateThenRestoreRoundtripsAndVerifies exercises Create followed by
// Restore on a single-task group, where everything is a local copy: the
// restored Data must end up holding the same values the source had, and
// Restore's post-copy digest check must not flag a false mismatch.
func TestCreateThenRestoreRoundtripsAndVerifies(t *testing.T) {
	reg := space.NewRegistry()
	sp, err := reg.New1D(8)
	if err != nil {
		t.Fatal(err)
	}
	g := group.NewWorld(1, 0)

	src := data.New(sp, data.Int32, "src")
	src.Init = func(buf []byte, count int) {
		for i := 0; i < count; i++ {
			buf[4*i] = byte(i + 1)
		}
	}
	all, err := partition.Build(sp, g, partition.All(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := src.Switch(all, data.None, data.ReduceNone, nil); err != nil {
		t.Fatal(err)
	}

	ckpt, err := Create(src, partition.All(), 1, 1, g, data.ReduceNone, nil)
	if err != nil {
		t.Fatal(err)
	}

	dst := data.New(sp, data.Int32, "dst")
	if err := Restore(ckpt, dst, all, nil); err != nil {
		t.Fatal(err)
	}
	if dst.Active() == nil {
		t.Fatal("expected dst to have an active partitioning after Restore")
	}
	mappings := dst.Mappings()
	if len(mappings) != 1 {
		t.Fatalf("expected 1 mapping in dst, got %d", len(mappings))
	}
	for i := 0; i < 8; i++ {
		if got := mappings[0].Base[4*i]; got != byte(i+1) {
			t.Fatalf("dst index %d = %d, want %d (the source's value)", i, got, i+1)
		}
	}
}

func TestEliminateNodesShrinksGroup(t *testing.T) {
	g := group.NewWorld(4, 2)
	be := &fakeBackend{}
	statuses := []Status{OK, Fault, OK, OK}

	newGroup, err := EliminateNodes(g, statuses, be)
	if err != nil {
		t.Fatal(err)
	}
	if newGroup.Size != 3 {
		t.Fatalf("expected size 3, got %d", newGroup.Size)
	}
	if newGroup.MyID != 1 {
		t.Fatalf("expected rank 2 to be renumbered to 1, got %d", newGroup.MyID)
	}
	if !be.called {
		t.Fatal("expected backend.EliminateNodes to be invoked")
	}
}

type fakeBackend struct {
	backend.Backend
	called bool
}

func (f *fakeBackend) EliminateNodes(oldGroup, newGroup *group.Group, statuses []Status) error {
	f.called = true
	return nil
}
