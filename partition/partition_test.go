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
	"testing"

	"github.com/laik-go/laik/group"
	"github.com/laik-go/laik/space"
)

func mustSpace(t *testing.T, sizes ...uint64) *space.Space {
	t.Helper()
	reg := space.NewRegistry()
	sp, err := reg.New(len(sizes), sizes...)
	if err != nil {
		t.Fatal(err)
	}
	return sp
}

func coveredSize(dims int, slices []TaskSlice, full space.Slice) uint64 {
	// crude coverage check: sum of sizes assuming disjointness (checked
	// separately for disjunctive partitioners).
	var sum uint64
	for _, s := range slices {
		sum += s.Slice.Size(dims)
	}
	_ = full
	return sum
}

func TestAllMasterBisectionBlockCoverage(t *testing.T) {
	sp := mustSpace(t, 1000)
	g := group.NewWorld(4, 0)
	full := sp.RawSlice()
	fullSize := full.Size(1)

	for _, p := range []*Partitioner{All(), Master(), Bisection(), Block(0, 1, nil, nil)} {
		pt, err := Build(sp, g, p, nil)
		if err != nil {
			t.Fatalf("%s: %v", p.Name, err)
		}
		slices := pt.Slices()
		switch p.Name {
		case "all":
			if got := coveredSize(1, slices, full); got != fullSize*uint64(g.Size) {
				t.Fatalf("all: coverage %d, want %d", got, fullSize*uint64(g.Size))
			}
		case "master":
			if got := coveredSize(1, slices, full); got != fullSize {
				t.Fatalf("master: coverage %d, want %d", got, fullSize)
			}
		default:
			if got := coveredSize(1, slices, full); got != fullSize {
				t.Fatalf("%s: coverage %d, want %d", p.Name, got, fullSize)
			}
			// pairwise disjoint
			for i := range slices {
				for j := i + 1; j < len(slices); j++ {
					if _, ok := space.Intersect(1, slices[i].Slice, slices[j].Slice); ok {
						t.Fatalf("%s: slices %d and %d overlap", p.Name, i, j)
					}
				}
			}
		}
	}
}

func TestBlockExactBoundaries(t *testing.T) {
	sp := mustSpace(t, 1000)
	g := group.NewWorld(4, 0)
	pt, err := Build(sp, g, Block(0, 1, nil, nil), nil)
	if err != nil {
		t.Fatal(err)
	}
	want := map[int][2]uint64{
		0: {0, 250},
		1: {250, 500},
		2: {500, 750},
		3: {750, 1000},
	}
	for _, ts := range pt.Slices() {
		w := want[ts.Task]
		if ts.Slice.From.I[0] != w[0] || ts.Slice.To.I[0] != w[1] {
			t.Fatalf("task %d: got [%d,%d), want [%d,%d)", ts.Task, ts.Slice.From.I[0], ts.Slice.To.I[0], w[0], w[1])
		}
	}
}

func TestBlockWeightBalance(t *testing.T) {
	sp := mustSpace(t, 997)
	g := group.NewWorld(5, 0)
	pt, err := Build(sp, g, Block(0, 1, nil, nil), nil)
	if err != nil {
		t.Fatal(err)
	}
	total := float64(997)
	n := float64(5)
	maxIdxW := 1.0
	for _, ts := range pt.Slices() {
		w := float64(ts.Slice.Size(1))
		lo := total/n - maxIdxW
		hi := total/n + maxIdxW
		if w < lo || w > hi {
			t.Fatalf("task %d weight %v outside [%v,%v]", ts.Task, w, lo, hi)
		}
	}
}

func TestBisection2D(t *testing.T) {
	sp := mustSpace(t, 8, 8)
	g := group.NewWorld(4, 0)
	pt, err := Build(sp, g, Bisection(), nil)
	if err != nil {
		t.Fatal(err)
	}
	slices := pt.Slices()
	if len(slices) != 4 {
		t.Fatalf("expected 4 slices, got %d", len(slices))
	}
	for _, ts := range slices {
		if ts.Slice.Size(2) != 16 {
			t.Fatalf("task %d: expected a 4x4 quadrant (size 16), got size %d", ts.Task, ts.Slice.Size(2))
		}
	}
}

func TestHaloTagsMatchBase(t *testing.T) {
	sp := mustSpace(t, 8, 8)
	g := group.NewWorld(4, 0)
	base, err := Build(sp, g, Bisection(), nil)
	if err != nil {
		t.Fatal(err)
	}
	halo, err := Build(sp, g, Halo(1), base)
	if err != nil {
		t.Fatal(err)
	}
	seen := map[int]int{}
	for _, ts := range halo.Slices() {
		seen[ts.Task]++
		if ts.Tag == 0 {
			t.Fatalf("halo entry for task %d has tag 0", ts.Task)
		}
	}
	for t2, n := range seen {
		if n < 1 {
			t.Fatalf("task %d got no halo entries", t2)
		}
	}
}

func TestGridRequiresEnoughTasks(t *testing.T) {
	sp := mustSpace(t, 4, 4, 4)
	g := group.NewWorld(2, 0)
	_, err := Build(sp, g, Grid(2, 2, 2), nil)
	if err == nil {
		t.Fatal("expected error when group size < xb*yb*zb")
	}
}

func TestReassignAfterShrinkRedistributesOrphans(t *testing.T) {
	sp := mustSpace(t, 1000)
	g := group.NewWorld(4, 0)
	base, err := Build(sp, g, Block(0, 1, nil, nil), nil)
	if err != nil {
		t.Fatal(err)
	}

	// Task 1 (base owns [250,500)) fails; the remaining three tasks are
	// renumbered densely: old 0->0, old 2->1, old 3->2.
	newGroup := g.Shrink([]int{1})

	pt, err := Build(sp, newGroup, Reassign(newGroup, nil), base)
	if err != nil {
		t.Fatal(err)
	}
	slices := pt.Slices()

	// every entry must land on a task that is actually present in
	// newGroup, and task 1's orphaned region must not simply vanish.
	full := sp.RawSlice()
	if got := coveredSize(1, slices, full); got != full.Size(1) {
		t.Fatalf("reassign: coverage %d, want %d (orphaned region lost)", got, full.Size(1))
	}
	for _, ts := range slices {
		if ts.Task < 0 || ts.Task >= newGroup.Size {
			t.Fatalf("reassign: task %d out of range [0,%d)", ts.Task, newGroup.Size)
		}
	}

	// the surviving tasks' original regions (old 0, 2, 3) must still be
	// present verbatim under their translated task ids: the fix must not
	// disturb kept entries, only redistribute orphaned ones.
	want := map[int][2]uint64{
		0: {0, 250},    // old task 0 -> new task 0
		1: {500, 750},  // old task 2 -> new task 1
		2: {750, 1000}, // old task 3 -> new task 2
	}
	seen := map[int][2]uint64{}
	for _, ts := range slices {
		if ts.Slice.From.I[0] == want[ts.Task][0] && ts.Slice.To.I[0] == want[ts.Task][1] {
			seen[ts.Task] = [2]uint64{ts.Slice.From.I[0], ts.Slice.To.I[0]}
		}
	}
	for task, w := range want {
		if seen[task] != w {
			t.Fatalf("reassign: kept entry for new task %d not found verbatim (want [%d,%d))", task, w[0], w[1])
		}
	}

	// old task 1's orphaned [250,500) region must have been redistributed
	// onto one of the surviving new tasks rather than dropped, duplicated,
	// or left addressed to the removed old task id.
	var orphanCoverage uint64
	for _, ts := range slices {
		isKept := ts.Slice.From.I[0] == want[ts.Task][0] && ts.Slice.To.I[0] == want[ts.Task][1]
		if !isKept {
			orphanCoverage += ts.Slice.Size(1)
		}
	}
	if orphanCoverage != 250 {
		t.Fatalf("reassign: orphaned region coverage = %d, want 250", orphanCoverage)
	}
}
