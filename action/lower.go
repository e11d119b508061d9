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

package action

import "github.com/laik-go/laik/transition"

// Lower converts a Transition into a straightforward, unoptimized
// ActionSeq: one BufCopy per local copy, one PackAndSend per send, one
// RecvAndUnpack per recv, and one GroupReduce per reduction entry, all in
// round 0 and all hung off a single Context. Prepare (optimize.go) is
// responsible for everything past this point: splitting, flattening,
// combining, buffer allocation, round sorting and the async transform.
func Lower(tr *transition.Transition, elemSize int, reducer Reducer) *ActionSeq {
	aseq := &ActionSeq{}
	ctxIdx := aseq.AddContext(&Context{
		Transition: tr,
		ElemSize:   elemSize,
		Reducer:    reducer,
	})

	for _, lc := range tr.Local {
		aseq.Actions = append(aseq.Actions, Action{
			Kind:  BufCopy,
			Ctx:   ctxIdx,
			Slice: lc.To,
		})
	}
	for _, s := range tr.Send {
		aseq.Actions = append(aseq.Actions, Action{
			Kind:  PackAndSend,
			Ctx:   ctxIdx,
			Peer:  s.Peer,
			Slice: s.Slice,
			Buf:   pendingBuf,
		})
	}
	for _, r := range tr.Recv {
		aseq.Actions = append(aseq.Actions, Action{
			Kind:  RecvAndUnpack,
			Ctx:   ctxIdx,
			Peer:  r.Peer,
			Slice: r.Slice,
			Buf:   pendingBuf,
		})
	}
	for _, red := range tr.Red {
		aseq.Actions = append(aseq.Actions, Action{
			Kind:        GroupReduce,
			Ctx:         ctxIdx,
			Slice:       red.Slice,
			Op:          red.Op,
			InputGroup:  red.InputGroup,
			OutputGroup: red.OutputGroup,
			Root:        singleRoot(red.OutputGroup),
		})
	}
	return aseq
}

// singleRoot returns the sole member of a one-element output group, or -1
// if the group has more than one reader (already an all-reduce).
func singleRoot(outputGroup []int) int {
	if len(outputGroup) == 1 {
		return outputGroup[0]
	}
	return -1
}
