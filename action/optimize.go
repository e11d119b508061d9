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

import (
	"log"
	"sort"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/laik-go/laik/space"
)

// defaultPackBufSize mirrors the fixed scratch pack buffer the engine
// reserves for staging (nominally 10 MiB); splitReduce and the
// non-flattened pack path chunk messages to at most this many bytes.
const defaultPackBufSize = 10 << 20

// Config gates the optional optimizer passes and supplies the logger
// Prepare writes one before/after line to, at the end of a run whose
// passes changed the total action count. A nil Logger disables logging
// entirely.
type Config struct {
	EnableAllReduce bool
	EnableAsync     bool
	PackBufSize     int
	Logger          *log.Logger
}

func (c Config) packBufSize() int {
	if c.PackBufSize > 0 {
		return c.PackBufSize
	}
	return defaultPackBufSize
}

// Prepare runs the full optimizer pipeline over aseq in place, in a
// fixed order. It is idempotent: calling
// Prepare twice on an already-prepared ActionSeq leaves it unchanged,
// which is exactly the property the optimizer's correctness rests on
// (a backend may legally call Prepare defensively before Exec).
func Prepare(aseq *ActionSeq, cfg Config) {
	before := len(aseq.Actions)

	splitTransitionExecs(aseq)
	flattenPacking(aseq)
	if cfg.EnableAllReduce {
		replaceWithAllReduce(aseq)
	}
	combineActions(aseq)
	allocBuffer(aseq)
	splitReduce(aseq, cfg.packBufSize())
	allocBuffer(aseq)
	sortRounds(aseq)
	combineActions(aseq)
	allocBuffer(aseq)
	sort2Phases(aseq)
	if cfg.EnableAsync {
		asyncTransform(aseq)
	}
	sortRounds(aseq)
	computeStats(aseq)

	aseq.Prepared = true
	if cfg.Logger != nil && len(aseq.Actions) != before {
		cfg.Logger.Printf("action: Prepare %d -> %d actions (%d bufs, %d msgs, %d bytes)",
			before, len(aseq.Actions), len(aseq.Bufs), aseq.Stats.Messages, aseq.Stats.Bytes)
	}
}

// splitTransitionExecs expands a composite "execute this whole
// Transition" placeholder action into the per-copy/send/recv/reduce
// actions it stands for. Lower already performs this expansion directly
// rather than emitting the placeholder and unwinding it here, so this
// pass is a documented no-op kept for symmetry with the rest of the
// pipeline and as the seam a future Lower that *does* emit a placeholder
// would hook into.
func splitTransitionExecs(aseq *ActionSeq) {}

// flattenPacking turns a PackAndSend/RecvAndUnpack whose slice is
// 1-dimensional into a BufSend/BufRecv that reads or writes the
// mapping's backing store directly (Buf == mappingBuf), skipping the
// separate pack/unpack step a non-contiguous, multi-dimensional slice
// still needs.
func flattenPacking(aseq *ActionSeq) {
	for i := range aseq.Actions {
		a := &aseq.Actions[i]
		ctx := aseq.Contexts[a.Ctx]
		if ctx.Transition.Dims != 1 {
			continue
		}
		switch a.Kind {
		case PackAndSend:
			a.Kind = BufSend
			a.Buf = mappingBuf
		case RecvAndUnpack:
			a.Kind = BufRecv
			a.Buf = mappingBuf
		}
	}
}

// mappingBuf is the Buf sentinel meaning "the context's own mapping
// backing store", as opposed to a non-negative index into ActionSeq.Bufs.
const mappingBuf = -1

// replaceWithAllReduce merges a GroupReduce whose input and output
// groups both equal the full transition Group into a single Reduce
// action with Root == -1 (collective all-reduce), which a backend can
// hand straight to MPI_Allreduce or equivalent instead of a manual
// reduce-then-broadcast.
func replaceWithAllReduce(aseq *ActionSeq) {
	for i := range aseq.Actions {
		a := &aseq.Actions[i]
		if a.Kind != GroupReduce {
			continue
		}
		ctx := aseq.Contexts[a.Ctx]
		size := ctx.Transition.Group.Size
		if len(a.InputGroup) == size && len(a.OutputGroup) == size {
			a.Kind = Reduce
			a.Root = -1
		}
	}
}

// combineActions merges adjacent actions of the same kind, context and
// peer whose slices abut in exactly one dimension into a single action
// covering their union, shrinking the message count. It is safe to run
// more than once: a fully combined list has no further adjacent,
// abutting pairs left to merge.
func combineActions(aseq *ActionSeq) {
	if len(aseq.Actions) < 2 {
		return
	}
	out := aseq.Actions[:1]
	for _, a := range aseq.Actions[1:] {
		last := &out[len(out)-1]
		dims := aseq.Contexts[a.Ctx].Transition.Dims
		if combinable(*last, a) && abuts(dims, last.Slice, a.Slice) {
			last.Slice = sliceUnion(dims, last.Slice, a.Slice)
			continue
		}
		out = append(out, a)
	}
	aseq.Actions = out
}

// abuts reports whether a and b differ in at most one dimension and meet
// edge-to-edge there, the same contiguity test transition.coalesce uses;
// duplicated here since that helper is unexported.
func abuts(dims int, a, b space.Slice) bool {
	diffDim := -1
	for d := 0; d < dims; d++ {
		if a.From.I[d] != b.From.I[d] || a.To.I[d] != b.To.I[d] {
			if diffDim >= 0 {
				return false
			}
			diffDim = d
		}
	}
	if diffDim < 0 {
		return true
	}
	return a.To.I[diffDim] == b.From.I[diffDim] || b.To.I[diffDim] == a.From.I[diffDim]
}

func sliceUnion(dims int, a, b space.Slice) space.Slice {
	out := a
	for d := 0; d < dims; d++ {
		if b.From.I[d] < out.From.I[d] {
			out.From.I[d] = b.From.I[d]
		}
		if b.To.I[d] > out.To.I[d] {
			out.To.I[d] = b.To.I[d]
		}
	}
	return out
}

func combinable(a, b Action) bool {
	if a.Kind != b.Kind || a.Ctx != b.Ctx || a.Round != b.Round {
		return false
	}
	if a.Peer != b.Peer {
		return false
	}
	switch a.Kind {
	case BufSend, BufRecv, RBufSend, RBufRecv, PackAndSend, RecvAndUnpack, MapSend, MapRecv:
	default:
		return false
	}
	return true
}

// allocBuffer materializes every pending BufReserve request (accumulated
// via ActionSeq.NewBuf while lowering a non-contiguous pack/unpack or
// splitReduce's chunking) into an actual byte slice in aseq.Bufs, and
// clears the pending list. A second call with nothing pending is a
// no-op, which is what keeps Prepare idempotent.
func allocBuffer(aseq *ActionSeq) {
	for _, size := range aseq.reserved {
		aseq.Bufs = append(aseq.Bufs, make([]byte, size))
	}
	aseq.reserved = nil

	for i := range aseq.Actions {
		a := &aseq.Actions[i]
		if a.Buf != pendingBuf {
			continue
		}
		ctx := aseq.Contexts[a.Ctx]
		size := int(a.Slice.Size(ctx.Transition.Dims)) * ctx.ElemSize
		a.Buf = len(aseq.Bufs)
		aseq.Bufs = append(aseq.Bufs, make([]byte, size))
		switch a.Kind {
		case PackAndSend:
			a.Kind = RBufSend
		case RecvAndUnpack:
			a.Kind = RBufRecv
		}
	}
}

// pendingBuf marks an action as needing a scratch buffer that
// allocBuffer has not yet sized; splitReduce uses it when it creates new
// PackAndSend/RecvAndUnpack chunks smaller than the original.
const pendingBuf = -2

// splitReduce breaks any reduction or pack/send action whose byte size
// exceeds limit into multiple chunk actions no larger than limit, so a
// single oversized message never forces the whole scratch arena to grow
// to match it. Chunking is along dimension 0 of the slice.
func splitReduce(aseq *ActionSeq, limit int) {
	var out []Action
	for _, a := range aseq.Actions {
		ctx := aseq.Contexts[a.Ctx]
		n := int(a.Slice.Size(ctx.Transition.Dims)) * ctx.ElemSize
		if n <= limit || !chunkable(a.Kind) {
			out = append(out, a)
			continue
		}
		for _, s := range chunkSlice(a.Slice, ctx.Transition.Dims, limit/ctx.ElemSize) {
			c := a
			c.Slice = s
			if c.Buf != mappingBuf {
				c.Buf = pendingBuf
			}
			out = append(out, c)
		}
	}
	aseq.Actions = out
}

func chunkable(k Kind) bool {
	switch k {
	case PackAndSend, RecvAndUnpack, GroupReduce, Reduce:
		return true
	default:
		return false
	}
}

// chunkSlice splits slice along dimension 0 into pieces of at most
// maxElems total elements each. A piece always spans at least one index
// of dimension 0, so when one such index already covers more than
// maxElems elements, every piece is one index wide and exceeds maxElems.
func chunkSlice(slice space.Slice, dims int, maxElems int) []space.Slice {
	total := int(slice.Size(dims))
	if maxElems <= 0 || total <= maxElems {
		return []space.Slice{slice}
	}
	innerElems := total / int(slice.Extent(0))
	if innerElems == 0 {
		return []space.Slice{slice}
	}
	rows := maxElems / innerElems
	if rows < 1 {
		rows = 1
	}
	var out []space.Slice
	from := slice.From.I[0]
	for from < slice.To.I[0] {
		to := from + uint64(rows)
		if to > slice.To.I[0] {
			to = slice.To.I[0]
		}
		chunk := slice
		chunk.From.I[0] = from
		chunk.To.I[0] = to
		out = append(out, chunk)
		from = to
	}
	return out
}

// sortRounds stably sorts Actions by Round, the grouping the backend
// treats as a synchronization barrier: every action in round N completes
// before any action in round N+1 begins.
func sortRounds(aseq *ActionSeq) {
	sort.SliceStable(aseq.Actions, func(i, j int) bool {
		return aseq.Actions[i].Round < aseq.Actions[j].Round
	})
}

// sort2Phases orders send/recv actions within each round so no two
// mutually communicating ranks can both block waiting to send first: if
// my rank is less than the peer, my sends for that peer precede my
// receives from it; otherwise receives precede sends. This is the same
// odd/even two-phase rule classic SPMD halo-exchange codes use to avoid
// deadlock on backends with blocking send/recv.
func sort2Phases(aseq *ActionSeq) {
	sort.SliceStable(aseq.Actions, func(i, j int) bool {
		a, b := aseq.Actions[i], aseq.Actions[j]
		if a.Round != b.Round {
			return a.Round < b.Round
		}
		pa, pb := phaseOf(aseq, a), phaseOf(aseq, b)
		return pa < pb
	})
}

func phaseOf(aseq *ActionSeq, a Action) int {
	if !hasPeer(a.Kind) {
		return 0
	}
	myID := aseq.Contexts[a.Ctx].Transition.Group.MyID
	isSend := isSendKind(a.Kind)
	if myID < a.Peer {
		if isSend {
			return 0
		}
		return 1
	}
	if isSend {
		return 1
	}
	return 0
}

func hasPeer(k Kind) bool {
	switch k {
	case BufSend, BufRecv, RBufSend, RBufRecv, PackAndSend, RecvAndUnpack, MapSend, MapRecv, MapPackAndSend, MapRecvAndUnpack:
		return true
	default:
		return false
	}
}

func isSendKind(k Kind) bool {
	switch k {
	case BufSend, RBufSend, PackAndSend, MapSend, MapPackAndSend:
		return true
	default:
		return false
	}
}

// asyncTransform rewrites every BufSend/RBufSend and BufRecv/RBufRecv
// into the non-blocking shape spec.md §4.8 item 12 describes: each
// becomes an {issue, wait} pair. Every receive's issue (AsyncRecv) is
// pre-posted into a new round 0 ahead of everything else in the
// sequence, while its wait stays at the receive's original round, so the
// data is ready by the point the (now non-blocking) sequence already
// needed it. Every send's issue (AsyncSend) stays at its original round,
// so it can overlap with whatever else runs after it, while its wait is
// pushed to a new final round, after every other round, so a send is
// only waited on once nothing later in the sequence could still be
// overlapping with it. A single AsyncReqAlloc action sizes the request
// array every AsyncWait indexes into by Reqs.
//
// The actual non-blocking primitive (MPI_Isend/Irecv/Wait or
// equivalent) is still a concrete backend's responsibility, behind
// whatever Kind >= Backend pair it registers via RegisterBackendKind;
// this pass produces the core, transport-agnostic round/phase
// restructuring so EnableAsync has an effect observable independent of
// which backend ultimately executes the sequence.
func asyncTransform(aseq *ActionSeq) {
	if len(aseq.Actions) == 0 {
		return
	}
	aseq.Stats.Async = true
	blocking := false
	maxRound := aseq.Actions[0].Round
	for _, a := range aseq.Actions {
		switch a.Kind {
		case BufSend, BufRecv, RBufSend, RBufRecv:
			blocking = true
		}
		if a.Round > maxRound {
			maxRound = a.Round
		}
	}
	if !blocking {
		return
	}
	// every existing round moves up by one to free round 0 for the
	// pre-posted receives; send waits follow the last shifted round.
	waitRound := maxRound + 2

	out := make([]Action, 0, len(aseq.Actions))
	reqCount := 0
	reqCtx := 0
	for _, a := range aseq.Actions {
		a.Round++
		switch a.Kind {
		case BufRecv, RBufRecv:
			req := reqCount
			reqCount++
			reqCtx = a.Ctx
			issue := a
			issue.Kind = AsyncRecv
			issue.Round = 0
			issue.Reqs = req
			wait := Action{Kind: AsyncWait, Round: a.Round, Ctx: a.Ctx, Peer: a.Peer, Reqs: req}
			out = append(out, issue, wait)
		case BufSend, RBufSend:
			req := reqCount
			reqCount++
			reqCtx = a.Ctx
			issue := a
			issue.Kind = AsyncSend
			issue.Reqs = req
			wait := Action{Kind: AsyncWait, Round: waitRound, Ctx: a.Ctx, Peer: a.Peer, Reqs: req}
			out = append(out, issue, wait)
		default:
			out = append(out, a)
		}
	}
	if reqCount > 0 {
		out = append(out, Action{Kind: AsyncReqAlloc, Round: 0, Ctx: reqCtx, Count: reqCount})
	}

	aseq.Actions = out
}

// computeStats fills in Stats from the final action list: message and
// reduction counts, total bytes moved, and the number of distinct
// rounds.
func computeStats(aseq *ActionSeq) {
	var msgs int
	var bytes int64
	var reduceOps int
	rounds := map[int]struct{}{}
	for _, a := range aseq.Actions {
		ctx := aseq.Contexts[a.Ctx]
		n := int64(a.Slice.Size(ctx.Transition.Dims)) * int64(ctx.ElemSize)
		rounds[a.Round] = struct{}{}
		switch a.Kind {
		case BufSend, BufRecv, RBufSend, RBufRecv, PackAndSend, RecvAndUnpack, MapSend, MapRecv, MapPackAndSend, MapRecvAndUnpack,
			AsyncSend, AsyncRecv:
			msgs++
			bytes += n
		case Reduce, GroupReduce, RBufLocalReduce:
			reduceOps++
			bytes += n
		}
	}
	aseq.Stats.Messages = msgs
	aseq.Stats.Bytes = bytes
	aseq.Stats.ReduceOps = reduceOps
	aseq.Stats.RoundCount = len(rounds)
	// the same maps.Keys-then-slices.Sort idiom db/gc.go uses to turn a
	// seen-set into a deterministic, ordered report.
	roundNums := maps.Keys(rounds)
	slices.Sort(roundNums)
	aseq.Stats.Rounds = roundNums
}
