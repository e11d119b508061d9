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

package space

import "testing"

func sl(f0, t0, f1, t1 uint64) Slice {
	return Slice{From: Index{I: [3]uint64{f0, f1, 0}}, To: Index{I: [3]uint64{t0, t1, 0}}}
}

func TestIntersectCommutative(t *testing.T) {
	cases := [][2]Slice{
		{sl(0, 10, 0, 10), sl(5, 15, 5, 15)},
		{sl(0, 10, 0, 10), sl(10, 20, 10, 20)},
		{sl(2, 4, 2, 4), sl(0, 10, 0, 10)},
	}
	for _, c := range cases {
		ab, okAB := Intersect(2, c[0], c[1])
		ba, okBA := Intersect(2, c[1], c[0])
		if okAB != okBA || ab != ba {
			t.Fatalf("Intersect not commutative for %+v: (%v,%v) vs (%v,%v)", c, ab, okAB, ba, okBA)
		}
	}
}

func TestIntersectSelf(t *testing.T) {
	a := sl(1, 9, 1, 9)
	got, ok := Intersect(2, a, a)
	if !ok || got != a {
		t.Fatalf("Intersect(a,a) = %+v, %v, want %+v, true", got, ok, a)
	}
}

func TestIntersectEmptyIffDisjoint(t *testing.T) {
	a := sl(0, 5, 0, 5)
	b := sl(5, 10, 0, 5)
	isect, ok := Intersect(2, a, b)
	if ok {
		t.Fatalf("expected disjoint slices to not intersect, got %+v", isect)
	}
	c := sl(4, 10, 0, 5)
	isect2, ok2 := Intersect(2, a, c)
	if !ok2 || isect2.IsEmpty(2) {
		t.Fatalf("expected overlapping slices to intersect non-emptily")
	}
}

func TestIntersectAssociative(t *testing.T) {
	a := sl(0, 20, 0, 20)
	b := sl(5, 15, 5, 15)
	c := sl(8, 12, 8, 12)
	ab, _ := Intersect(2, a, b)
	abc1, ok1 := Intersect(2, ab, c)
	bc, _ := Intersect(2, b, c)
	abc2, ok2 := Intersect(2, a, bc)
	if ok1 != ok2 || abc1 != abc2 {
		t.Fatalf("Intersect not associative: (a^b)^c=%+v(%v) a^(b^c)=%+v(%v)", abc1, ok1, abc2, ok2)
	}
}

func TestIndexEqual(t *testing.T) {
	a := Index{I: [3]uint64{1, 2, 3}}
	b := Index{I: [3]uint64{1, 2, 99}}
	if !IndexEqual(2, a, b) {
		t.Fatalf("expected a,b equal in first 2 dims")
	}
	if IndexEqual(3, a, b) {
		t.Fatalf("expected a,b not equal in all 3 dims")
	}
}
