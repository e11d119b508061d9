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

package transition

import (
	"testing"

	"github.com/laik-go/laik/group"
	"github.com/laik-go/laik/partition"
	"github.com/laik-go/laik/space"
)

func TestComputeMasterToBlockPreserve(t *testing.T) {
	reg := space.NewRegistry()
	sp, err := reg.New1D(16)
	if err != nil {
		t.Fatal(err)
	}
	g := group.NewWorld(4, 1) // rank 1's point of view

	master, err := partition.Build(sp, g, partition.Master(), nil)
	if err != nil {
		t.Fatal(err)
	}
	block, err := partition.Build(sp, g, partition.Block(0, 1, nil, nil), nil)
	if err != nil {
		t.Fatal(err)
	}

	tr := Compute(master, block, Preserve, ReduceNone)
	// rank 1 is not the master (task 0) and owns block [4,8); it should
	// receive that range from task 0 and have no local copies or sends.
	if len(tr.Local) != 0 {
		t.Fatalf("expected no local copies, got %v", tr.Local)
	}
	if len(tr.Send) != 0 {
		t.Fatalf("expected no sends, got %v", tr.Send)
	}
	if len(tr.Recv) != 1 {
		t.Fatalf("expected exactly 1 recv, got %v", tr.Recv)
	}
	if tr.Recv[0].Peer != 0 {
		t.Fatalf("expected recv from peer 0, got %d", tr.Recv[0].Peer)
	}
	want := space.Slice{From: space.Index{I: [3]uint64{4, 0, 0}}, To: space.Index{I: [3]uint64{8, 0, 0}}}
	if tr.Recv[0].Slice != want {
		t.Fatalf("recv slice = %+v, want %+v", tr.Recv[0].Slice, want)
	}
}

func TestComputeLocalOnMaster(t *testing.T) {
	reg := space.NewRegistry()
	sp, err := reg.New1D(16)
	if err != nil {
		t.Fatal(err)
	}
	g := group.NewWorld(4, 0)

	master, err := partition.Build(sp, g, partition.Master(), nil)
	if err != nil {
		t.Fatal(err)
	}
	block, err := partition.Build(sp, g, partition.Block(0, 1, nil, nil), nil)
	if err != nil {
		t.Fatal(err)
	}

	tr := Compute(master, block, Preserve, ReduceNone)
	if len(tr.Local) != 1 {
		t.Fatalf("expected 1 local copy on master, got %v", tr.Local)
	}
	if len(tr.Send) != 3 {
		t.Fatalf("expected 3 sends from master, got %v", tr.Send)
	}
}

func TestComputeReduction(t *testing.T) {
	reg := space.NewRegistry()
	sp, err := reg.New1D(16)
	if err != nil {
		t.Fatal(err)
	}
	g := group.NewWorld(4, 0)

	all, err := partition.Build(sp, g, partition.All(), nil)
	if err != nil {
		t.Fatal(err)
	}
	master, err := partition.Build(sp, g, partition.Master(), nil)
	if err != nil {
		t.Fatal(err)
	}

	tr := Compute(all, master, None, ReduceSum)
	if len(tr.Red) != 1 {
		t.Fatalf("expected 1 reduction entry, got %d", len(tr.Red))
	}
	if len(tr.Red[0].InputGroup) != 4 {
		t.Fatalf("expected 4 writers, got %v", tr.Red[0].InputGroup)
	}
	if tr.Red[0].OutputGroup[0] != 0 {
		t.Fatalf("expected output group to be task 0, got %v", tr.Red[0].OutputGroup)
	}
}
