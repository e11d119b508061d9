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

// Package simbackend is a test-only in-process backend.Backend: every
// simulated rank runs Exec in its own goroutine, and point-to-point
// traffic rendezvous through per-(round,from,to) channels owned by a
// shared World. It is sufficient to drive the transition/action/ft
// wiring end to end across several simulated processes without claiming
// to be a real transport; it never ships, and nothing outside _test.go
// files may import it.
package simbackend

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/laik-go/laik/action"
	"github.com/laik-go/laik/backend"
	"github.com/laik-go/laik/data"
	"github.com/laik-go/laik/group"
	"github.com/laik-go/laik/space"
)

// World is the shared network every rank's Backend talks through, plus
// the agreed liveness vector StatusCheck/EliminateNodes drive from.
type World struct {
	size int

	mu       sync.Mutex
	channels map[chanKey]chan []byte

	statusMu sync.Mutex
	statuses []backend.Status

	syncSeq int64
}

type chanKey struct {
	round    int64
	from, to int
	tag      string
}

// NewWorld builds a World for size simulated ranks, every one initially
// OK.
func NewWorld(size int) *World {
	statuses := make([]backend.Status, size)
	for i := range statuses {
		statuses[i] = backend.OK
	}
	return &World{
		size:     size,
		channels: make(map[chanKey]chan []byte),
		statuses: statuses,
	}
}

// NewBackend returns the Backend a simulated rank drives its own calls
// through; every rank sharing w can see every other rank's traffic.
func (w *World) NewBackend(rank int) *Backend {
	return &Backend{world: w, rank: rank}
}

// MarkFault records rank as faulted for the next StatusCheck/
// EliminateNodes round, simulating a crashed process for node-failure
// tests.
func (w *World) MarkFault(rank int) {
	w.statusMu.Lock()
	defer w.statusMu.Unlock()
	if rank >= 0 && rank < len(w.statuses) {
		w.statuses[rank] = backend.Fault
	}
}

func (w *World) channel(k chanKey) chan []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch, ok := w.channels[k]
	if !ok {
		ch = make(chan []byte, 1)
		w.channels[k] = ch
	}
	return ch
}

func (w *World) send(k chanKey, payload []byte) {
	w.channel(k) <- payload
}

func (w *World) recv(k chanKey) []byte {
	return <-w.channel(k)
}

// Backend is one simulated rank's handle onto its World.
type Backend struct {
	world *World
	rank  int
	group *group.Group
}

var _ backend.Backend = (*Backend)(nil)

func (b *Backend) Prepare(*action.ActionSeq) error { return nil }
func (b *Backend) Cleanup(*action.ActionSeq) error { return nil }
func (b *Backend) Finalize() error                 { return nil }

func (b *Backend) UpdateGroup(g *group.Group) error {
	b.group = g
	return nil
}

func (b *Backend) LogAction(a action.Action) string {
	return fmt.Sprintf("sim(%d):%s", b.rank, a.Kind)
}

// Exec walks aseq.Actions in round order, performing local copies
// directly and point-to-point traffic through the World's channels;
// two ranks executing the same round's matching send/recv rendezvous
// regardless of which one calls Exec first.
func (b *Backend) Exec(aseq *action.ActionSeq) error {
	for _, a := range aseq.Actions {
		ctx := aseq.Contexts[a.Ctx]
		dims := ctx.Transition.Dims
		from, _ := ctx.FromMapper.([]*data.Mapping)
		to, _ := ctx.ToMapper.([]*data.Mapping)

		switch a.Kind {
		case action.BufCopy:
			if err := localCopy(from, to, a.Slice, dims); err != nil {
				return err
			}
		case action.PackAndSend, action.BufSend, action.RBufSend:
			// BufSend is PackAndSend flattened onto the mapping's own
			// backing store (a.Buf == mappingBuf) and RBufSend is
			// PackAndSend given a scratch buffer; doSend packs straight
			// out of the mapping either way, so the three kinds (and
			// their receive counterparts) take the same path here.
			if err := b.doSend(from, a, dims); err != nil {
				return err
			}
		case action.RecvAndUnpack, action.BufRecv, action.RBufRecv:
			if err := b.doRecv(to, a, dims); err != nil {
				return err
			}
		case action.GroupReduce:
			if err := b.doReduce(from, to, a, ctx, dims); err != nil {
				return err
			}
		default:
			return fmt.Errorf("simbackend: unsupported action kind %s", a.Kind)
		}
	}
	return nil
}

func (b *Backend) doSend(from []*data.Mapping, a action.Action, dims int) error {
	m := findMapping(from, a.Slice, dims)
	if m == nil {
		return fmt.Errorf("simbackend: send: no mapping covers %+v", a.Slice)
	}
	buf := packAll(m, a.Slice, dims)
	b.world.send(chanKey{round: int64(a.Round), from: b.rank, to: a.Peer, tag: "p2p"}, buf)
	return nil
}

func (b *Backend) doRecv(to []*data.Mapping, a action.Action, dims int) error {
	m := findMapping(to, a.Slice, dims)
	if m == nil {
		return fmt.Errorf("simbackend: recv: no mapping covers %+v", a.Slice)
	}
	buf := b.world.recv(chanKey{round: int64(a.Round), from: a.Peer, to: b.rank, tag: "p2p"})
	unpackAll(m, a.Slice, dims, buf)
	return nil
}

// doReduce combines every writer's contribution at the lowest-ranked
// writer (or a.Root, for a single-root reduce), then fans the combined
// result back out to every reader in a.OutputGroup.
func (b *Backend) doReduce(from, to []*data.Mapping, a action.Action, ctx *action.Context, dims int) error {
	coordinator := a.Root
	if coordinator < 0 {
		coordinator = minInt(a.InputGroup)
	}
	isWriter := containsInt(a.InputGroup, b.rank)
	isReader := containsInt(a.OutputGroup, b.rank)

	if isWriter {
		m := findMapping(from, a.Slice, dims)
		if m == nil {
			return fmt.Errorf("simbackend: reduce: no source mapping covers %+v", a.Slice)
		}
		buf := packAll(m, a.Slice, dims)
		if b.rank != coordinator {
			b.world.send(chanKey{round: int64(a.Round), from: b.rank, to: coordinator, tag: "reduce-in"}, buf)
		}
	}

	var result []byte
	if b.rank == coordinator {
		count := int(a.Slice.Size(dims))
		result = make([]byte, count*ctx.ElemSize)
		if err := ctx.Reducer.Init(result, count, a.Op); err != nil {
			return fmt.Errorf("simbackend: reduce: init: %w", err)
		}
		for _, w := range a.InputGroup {
			var contribution []byte
			if w == coordinator {
				m := findMapping(from, a.Slice, dims)
				if m == nil {
					return fmt.Errorf("simbackend: reduce: coordinator missing own contribution for %+v", a.Slice)
				}
				contribution = packAll(m, a.Slice, dims)
			} else {
				contribution = b.world.recv(chanKey{round: int64(a.Round), from: w, to: coordinator, tag: "reduce-in"})
			}
			if err := ctx.Reducer.Reduce(result, result, contribution, count, a.Op); err != nil {
				return fmt.Errorf("simbackend: reduce: combine: %w", err)
			}
		}
		for _, r := range a.OutputGroup {
			if r == coordinator {
				continue
			}
			b.world.send(chanKey{round: int64(a.Round), from: coordinator, to: r, tag: "reduce-out"}, result)
		}
	}

	if isReader {
		var final []byte
		if b.rank == coordinator {
			final = result
		} else {
			final = b.world.recv(chanKey{round: int64(a.Round), from: coordinator, to: b.rank, tag: "reduce-out"})
		}
		m := findMapping(to, a.Slice, dims)
		if m == nil {
			return fmt.Errorf("simbackend: reduce: no destination mapping covers %+v", a.Slice)
		}
		unpackAll(m, a.Slice, dims, final)
	}
	return nil
}

// Sync implements the KV exchange as a star: every
// rank ships its local Payload to rank 0, which merges every
// contribution into one kv.Store-equivalent byte blob (last writer
// within the gather order wins, same as kv.Store.apply) and broadcasts
// it back out. kv's own Flatten/Apply do the actual decode/merge/encode
// so this package never duplicates the wire format.
func (b *Backend) Sync(g *group.Group, kvs backend.KVPayload) (backend.KVPayload, error) {
	seq := atomic.AddInt64(&b.world.syncSeq, 1)
	const coordinator = 0

	local := []byte(nil)
	local = append(local, encodeKVPayload(kvs)...)
	if b.rank != coordinator {
		b.world.send(chanKey{round: seq, from: b.rank, to: coordinator, tag: "kv-in"}, local)
	}

	var merged backend.KVPayload
	if b.rank == coordinator {
		all := []backend.KVPayload{kvs}
		for r := 0; r < b.world.size; r++ {
			if r == coordinator {
				continue
			}
			raw := b.world.recv(chanKey{round: seq, from: r, to: coordinator, tag: "kv-in"})
			all = append(all, decodeKVPayload(raw))
		}
		var err error
		merged, err = mergeKVPayloads(all)
		if err != nil {
			return backend.KVPayload{}, fmt.Errorf("simbackend: Sync: %w", err)
		}
		mergedBytes := encodeKVPayload(merged)
		for r := 0; r < b.world.size; r++ {
			if r == coordinator {
				continue
			}
			b.world.send(chanKey{round: seq, from: coordinator, to: r, tag: "kv-out"}, mergedBytes)
		}
	} else {
		raw := b.world.recv(chanKey{round: seq, from: coordinator, to: b.rank, tag: "kv-out"})
		merged = decodeKVPayload(raw)
	}
	return merged, nil
}

// EliminateNodes simulates shrinking onto newGroup: it is a no-op in a
// single-process simulation beyond recording the new Group, since every
// "rank" is really just a goroutine within the same address space with
// no transport-level sub-communicator to rebuild.
func (b *Backend) EliminateNodes(oldGroup, newGroup *group.Group, statuses []backend.Status) error {
	b.group = newGroup
	return nil
}

// StatusCheck returns the World's agreed liveness vector; every
// simulated rank observes the identical slice since it is the same
// backing array guarded by one mutex, trivially satisfying the
// agreement requirement a real StatusCheck needs a vote for.
func (b *Backend) StatusCheck(g *group.Group) ([]backend.Status, int, error) {
	b.world.statusMu.Lock()
	defer b.world.statusMu.Unlock()
	out := make([]backend.Status, len(b.world.statuses))
	copy(out, b.world.statuses)
	faults := 0
	for _, s := range out {
		if s == backend.Fault {
			faults++
		}
	}
	return out, faults, nil
}

func localCopy(from, to []*data.Mapping, slice space.Slice, dims int) error {
	src := findMapping(from, slice, dims)
	dst := findMapping(to, slice, dims)
	if src == nil || dst == nil {
		return fmt.Errorf("simbackend: local copy: no mapping covers %+v", slice)
	}
	buf := make([]byte, src.ElemSize)
	cursor := slice.From
	dstCursor := slice.From
	for {
		n := src.Layout.Pack(src, slice, &cursor, buf)
		if n == 0 {
			break
		}
		dst.Layout.Unpack(dst, slice, &dstCursor, buf[:n])
		if space.IndexEqual(dims, cursor, slice.To) {
			break
		}
	}
	return nil
}

func packAll(m *data.Mapping, slice space.Slice, dims int) []byte {
	out := make([]byte, 0, slice.Size(dims)*uint64(m.ElemSize))
	buf := make([]byte, m.ElemSize)
	cursor := slice.From
	for {
		n := m.Layout.Pack(m, slice, &cursor, buf)
		if n == 0 {
			break
		}
		out = append(out, buf[:n]...)
		if space.IndexEqual(dims, cursor, slice.To) {
			break
		}
	}
	return out
}

func unpackAll(m *data.Mapping, slice space.Slice, dims int, buf []byte) {
	cursor := slice.From
	for len(buf) > 0 {
		n := m.Layout.Unpack(m, slice, &cursor, buf)
		if n == 0 {
			break
		}
		buf = buf[n:]
		if space.IndexEqual(dims, cursor, slice.To) {
			break
		}
	}
}

func findMapping(mappings []*data.Mapping, slice space.Slice, dims int) *data.Mapping {
	for _, m := range mappings {
		if _, ok := space.Intersect(dims, m.Slice, slice); ok {
			return m
		}
	}
	return nil
}

func minInt(vs []int) int {
	m := vs[0]
	for _, v := range vs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func containsInt(vs []int, v int) bool {
	for _, x := range vs {
		if x == v {
			return true
		}
	}
	return false
}
