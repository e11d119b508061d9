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

// Package group implements the process-group model: an ordered set of
// processes with a parent link and bidirectional parent<->child rank
// mappings, supporting shrinking after node failure. Groups form a tree
// rooted at the initial world group.
package group

import "github.com/google/uuid"

// Group is an ordered set of processes. MyID is -1 when the calling
// process is not a member of this group (e.g. it was removed by a shrink).
type Group struct {
	// GID is a unique identity minted for every new group (world, clone
	// or shrink); no other package of this module reads it.
	GID uuid.UUID

	Size  int
	MyID  int
	Parent *Group

	// ToParent[child rank] = parent rank.
	ToParent []int
	// FromParent[parent rank] = child rank, or -1 if that parent rank
	// was removed by shrinking.
	FromParent []int
}

// NewWorld creates the root group of the process tree: size processes,
// the identity mapping, and no parent.
func NewWorld(size, myID int) *Group {
	ids := make([]int, size)
	for i := range ids {
		ids[i] = i
	}
	return &Group{
		GID:        uuid.New(),
		Size:       size,
		MyID:       myID,
		ToParent:   ids,
		FromParent: append([]int(nil), ids...),
	}
}

// Clone returns an identity-mapped child of g: same size, same membership,
// ToParent/FromParent are both the identity permutation.
func (g *Group) Clone() *Group {
	ids := make([]int, g.Size)
	for i := range ids {
		ids[i] = i
	}
	return &Group{
		GID:        uuid.New(),
		Size:       g.Size,
		MyID:       g.MyID,
		Parent:     g,
		ToParent:   ids,
		FromParent: append([]int(nil), ids...),
	}
}

// Shrink builds a child group with the ranks in remove excluded. Remaining
// ranks are renumbered densely and in order; FromParent[r] is -1 for every
// removed parent rank r.
func (g *Group) Shrink(remove []int) *Group {
	removed := make([]bool, g.Size)
	for _, r := range remove {
		if r >= 0 && r < g.Size {
			removed[r] = true
		}
	}

	fromParent := make([]int, g.Size)
	toParent := make([]int, 0, g.Size-len(remove))
	for i := 0; i < g.Size; i++ {
		if removed[i] {
			fromParent[i] = -1
			continue
		}
		fromParent[i] = len(toParent)
		toParent = append(toParent, i)
	}

	myID := -1
	if g.MyID >= 0 && !removed[g.MyID] {
		myID = fromParent[g.MyID]
	}

	return &Group{
		GID:        uuid.New(),
		Size:       len(toParent),
		MyID:       myID,
		Parent:     g,
		ToParent:   toParent,
		FromParent: fromParent,
	}
}

// Location walks the parent chain, translating rank id in g into the
// corresponding rank in the root (world) group. It is used to map any
// intermediate rank back to a world rank, e.g. so a backend can address a
// process regardless of which shrunk group named it.
func (g *Group) Location(id int) int {
	cur := g
	rank := id
	for cur.Parent != nil {
		if rank < 0 || rank >= len(cur.ToParent) {
			return -1
		}
		rank = cur.ToParent[rank]
		cur = cur.Parent
	}
	return rank
}

// Contains reports whether rank r of g's immediate parent is still present
// in g. Ranks of earlier ancestors are not translated.
func (g *Group) Contains(parentRank int) bool {
	if parentRank < 0 || parentRank >= len(g.FromParent) {
		return false
	}
	return g.FromParent[parentRank] != -1
}
