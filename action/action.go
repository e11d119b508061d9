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

// Package action implements the ActionSeq intermediate representation
// lowered from a Transition, and its optimizer passes (message coalescing,
// buffer allocation, deadlock-avoidance sort, optional async conversion).
package action

import (
	"strconv"

	"github.com/laik-go/laik/space"
	"github.com/laik-go/laik/transition"
)

// Kind tags the primitive a given Action performs. Backends may extend
// this open set with private kinds numbered >= Backend; see
// RegisterBackendKind.
type Kind int

const (
	Nop Kind = iota
	BufReserve
	BufSend
	BufRecv
	RBufSend
	RBufRecv
	MapSend
	MapRecv
	CopyToBuf
	CopyFromBuf
	PackToBuf
	UnpackFromBuf
	MapPackToBuf
	MapUnpackFromBuf
	MapPackAndSend
	PackAndSend
	MapRecvAndUnpack
	RecvAndUnpack
	Reduce
	GroupReduce
	RBufLocalReduce
	RBufCopy
	BufCopy
	BufInit

	// AsyncSend/AsyncRecv/AsyncWait/AsyncReqAlloc are the core,
	// transport-agnostic shape of the async-conversion pass (§4.8 item
	// 12): AsyncSend/AsyncRecv are the non-blocking issue of a
	// BufSend/BufRecv, AsyncWait is the paired wait indexing into the
	// request array by Reqs, and AsyncReqAlloc is the single action that
	// sizes that array (its Count). A concrete backend still owns the
	// actual non-blocking primitive (MPI_Isend et al.) behind whatever
	// Kind >= Backend pair it registers via RegisterBackendKind; these
	// four exist so asyncTransform's round/phase restructuring is itself
	// observable and testable independent of a transport.
	AsyncSend
	AsyncRecv
	AsyncWait
	AsyncReqAlloc

	// Backend is the first kind value available to backend-private
	// extensions (async send/recv/wait/request-buffer handles, etc).
	Backend Kind = 1000
)

var kindNames = map[Kind]string{
	Nop:              "Nop",
	BufReserve:       "BufReserve",
	BufSend:          "BufSend",
	BufRecv:          "BufRecv",
	RBufSend:         "RBufSend",
	RBufRecv:         "RBufRecv",
	MapSend:          "MapSend",
	MapRecv:          "MapRecv",
	CopyToBuf:        "CopyToBuf",
	CopyFromBuf:      "CopyFromBuf",
	PackToBuf:        "PackToBuf",
	UnpackFromBuf:    "UnpackFromBuf",
	MapPackToBuf:     "MapPackToBuf",
	MapUnpackFromBuf: "MapUnpackFromBuf",
	MapPackAndSend:   "MapPackAndSend",
	PackAndSend:      "PackAndSend",
	MapRecvAndUnpack: "MapRecvAndUnpack",
	RecvAndUnpack:    "RecvAndUnpack",
	Reduce:           "Reduce",
	GroupReduce:      "GroupReduce",
	RBufLocalReduce:  "RBufLocalReduce",
	RBufCopy:         "RBufCopy",
	BufCopy:          "BufCopy",
	BufInit:          "BufInit",
	AsyncSend:        "AsyncSend",
	AsyncRecv:        "AsyncRecv",
	AsyncWait:        "AsyncWait",
	AsyncReqAlloc:    "AsyncReqAlloc",
}

// String stringifies a Kind: core kinds and kinds registered through
// RegisterBackendKind print their name, any other kind prints as
// "Kind(N)".
func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Action is one primitive backend operation, tagged by Kind, carrying a
// Round (the deadlock-avoidance sort key) and an index into the owning
// ActionSeq's Contexts. Not every field is meaningful for every Kind.
type Action struct {
	Kind  Kind
	Round int
	Ctx   int

	Peer        int
	Buf         int
	Offset      int
	Count       int
	Slice       space.Slice
	MapNo       int
	Op          transition.ReduceOp
	InputGroup  []int
	OutputGroup []int

	// Root is meaningful for Reduce: -1 means a collective all-reduce
	// (replaceWithAllReduce's output), >= 0 names a single root rank.
	Root int

	// Async-transform fields: Reqs names the request-array slot a
	// Wait/MpiReq-style backend action waits on.
	Reqs int

	// BackendData carries a backend-private action's payload when
	// Kind >= Backend.
	BackendData any
}

// RegisterBackendKind reserves name for a backend-private Kind value; it
// exists purely so LogAction implementations and diagnostics have a
// human-readable name for Kind >= Backend, the open set a backend uses
// for its own private action kinds.
func RegisterBackendKind(k Kind, name string) {
	kindNames[k] = name
}
