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

package group

import "testing"

func TestShrinkRoundtrip(t *testing.T) {
	cases := []struct {
		size   int
		remove []int
	}{
		{size: 4, remove: []int{1}},
		{size: 4, remove: []int{0, 3}},
		{size: 8, remove: []int{2, 5, 6}},
		{size: 5, remove: nil},
		{size: 1, remove: nil},
	}
	for _, c := range cases {
		g := NewWorld(c.size, 0)
		g2 := g.Shrink(c.remove)

		wantSize := c.size - len(c.remove)
		if g2.Size != wantSize {
			t.Fatalf("size=%d remove=%v: got size %d, want %d", c.size, c.remove, g2.Size, wantSize)
		}
		for k := 0; k < g2.Size; k++ {
			parentRank := g2.ToParent[k]
			if g2.FromParent[parentRank] != k {
				t.Fatalf("size=%d remove=%v: roundtrip failed at k=%d: toParent=%v fromParent=%v",
					c.size, c.remove, k, g2.ToParent, g2.FromParent)
			}
		}
	}
}

func TestShrinkMyIDRemoved(t *testing.T) {
	g := NewWorld(4, 2)
	g2 := g.Shrink([]int{2})
	if g2.MyID != -1 {
		t.Fatalf("expected MyID -1 after self removed, got %d", g2.MyID)
	}
}

func TestLocationThroughChain(t *testing.T) {
	g0 := NewWorld(6, 3)
	g1 := g0.Shrink([]int{0, 1})  // world ranks 2,3,4,5 survive as 0,1,2,3
	g2 := g1.Shrink([]int{0})     // g1 rank 0 (world rank 2) removed

	// g2 rank 0 is g1 rank 1 is world rank 3.
	if loc := g2.Location(0); loc != 3 {
		t.Fatalf("Location(0) = %d, want 3", loc)
	}
}

func TestClone(t *testing.T) {
	g := NewWorld(3, 1)
	c := g.Clone()
	if c.Size != g.Size || c.MyID != g.MyID {
		t.Fatalf("clone mismatch: %+v vs %+v", c, g)
	}
	for i := 0; i < g.Size; i++ {
		if c.ToParent[i] != i || c.FromParent[i] != i {
			t.Fatalf("clone is not identity-mapped at %d", i)
		}
	}
}
