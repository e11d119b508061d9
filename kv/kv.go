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

// Package kv implements a hierarchical, path-addressed metadata tree that
// can be synchronized across processes: each rank accumulates local
// writes, then Sync flattens the unsynchronized entries, exchanges them
// collectively through a caller-supplied Transport, and merges the
// result back in, last-writer-wins per path.
package kv

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/laik-go/laik/group"
)

// compressThreshold is the flattened payload size above which flatten
// zstd-compresses it before handing it to a Transport: small syncs
// aren't worth a frame header, large ones are.
const compressThreshold = 4096

// rawFlag/zstdFlag tag Payload.Data's leading byte so apply can tell a
// compressed blob from a raw one without out-of-band information.
const (
	rawFlag byte = iota
	zstdFlag
)

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil)
	if err != nil {
		panic(fmt.Sprintf("kv: building zstd encoder: %v", err))
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("kv: building zstd decoder: %v", err))
	}
}

// Node is one entry of the tree: a name relative to its parent, an
// optional value, and child/sibling links forming the tree the way
// group.Group's parent pointers form the group tree.
type Node struct {
	Name   string
	Parent *Node

	Value []byte
	Size  int
	Count int

	FirstChild  *Node
	NextSibling *Node

	synced bool
}

// Store owns the root of one rank's KV tree plus the index used to find
// a node by its full path in O(depth) rather than walking the tree.
type Store struct {
	mu   sync.Mutex
	root *Node
	byPath map[string]*Node
}

// NewStore returns an empty store with a nameless root node.
func NewStore() *Store {
	root := &Node{Name: "", synced: true}
	return &Store{root: root, byPath: map[string]*Node{"": root}}
}

// SetValue creates any intermediate nodes path needs (kv_setValue's
// "creates intermediate nodes on the way") and sets the leaf's value,
// marking it unsynchronized so the next Sync call propagates it.
func (s *Store) SetValue(path string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.ensurePath(path)
	n.Value = append([]byte(nil), value...)
	n.Size = len(value)
	n.Count = 1
	n.synced = false
}

// Get returns the value stored at path and whether it exists.
func (s *Store) Get(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byPath[path]
	if !ok || n.Value == nil {
		return nil, false
	}
	return append([]byte(nil), n.Value...), true
}

func (s *Store) ensurePath(path string) *Node {
	if n, ok := s.byPath[path]; ok {
		return n
	}
	parentPath, name := splitPath(path)
	parent := s.ensurePath(parentPath)
	n := &Node{Name: name, Parent: parent}
	n.NextSibling = parent.FirstChild
	parent.FirstChild = n
	s.byPath[path] = n
	return n
}

func splitPath(path string) (parent, name string) {
	i := lastSlash(path)
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}

func lastSlash(path string) int {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return i
		}
	}
	return -1
}

// Payload is the wire format Sync hands its Transport: two parallel byte
// arrays, following the odd-offset invariant — the offsets array
// carries a trailing sentinel so every record decodes as the triplet
// (nameStart, dataStart, nextNameStart) without a separate length field.
type Payload struct {
	Offsets []byte
	Data    []byte
}

// Transport is the narrow collective surface Sync needs: an all-gather
// of payload sizes is implicit in a single round-trip call that returns
// every rank's merged contribution. backend.Backend's Sync exchanges
// backend.KVPayload values rather than Payload, so a Backend does not
// satisfy this interface without a conversion; kv never imports backend,
// so tests can supply a trivial Transport without pulling in a whole
// Backend.
type Transport interface {
	Sync(g *group.Group, local Payload) (merged Payload, err error)
}

// Sync flattens every unsynchronized local entry into a Payload,
// exchanges it through t, and applies the merged result back into the
// tree (last-writer-wins per path). After Sync returns, every entry
// synced through it is marked synced.
func (s *Store) Sync(g *group.Group, t Transport) error {
	local := s.flatten()
	merged, err := t.Sync(g, local)
	if err != nil {
		return fmt.Errorf("kv: sync: %w", err)
	}
	return s.apply(merged)
}

// Flatten is the exported form of flatten, for a Transport implementation
// that needs to merge several ranks' contributions itself (e.g. gathering
// into one coordinator Store) rather than handing opaque bytes straight
// to a collective primitive.
func (s *Store) Flatten() Payload { return s.flatten() }

// Apply is the exported form of apply, the counterpart to Flatten.
func (s *Store) Apply(p Payload) error { return s.apply(p) }

// flatten packs every unsynchronized node into the Payload wire format
// and marks them synced; a node whose path is empty's root itself is
// never flattened (it carries no value).
func (s *Store) flatten() Payload {
	s.mu.Lock()
	defer s.mu.Unlock()

	type entry struct {
		path string
		node *Node
	}
	var entries []entry
	for path, n := range s.byPath {
		if path == "" || n.synced || n.Value == nil {
			continue
		}
		entries = append(entries, entry{path, n})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].path < entries[j].path })

	var names bytes.Buffer
	var data bytes.Buffer
	offsets := make([]uint32, 0, 2*len(entries)+1)
	for _, e := range entries {
		offsets = append(offsets, uint32(names.Len()))
		names.WriteString(e.path)
		offsets = append(offsets, uint32(data.Len()))
		data.Write(e.node.Value)
		e.node.synced = true
	}
	// trailing sentinel: nameStart of a record that doesn't exist, so
	// the last real record's name length is computable the same way
	// every other record's is.
	offsets = append(offsets, uint32(names.Len()))

	offBuf := make([]byte, 4*len(offsets))
	for i, o := range offsets {
		binary.LittleEndian.PutUint32(offBuf[4*i:], o)
	}
	// names and data are concatenated behind a 4-byte little-endian
	// names length so a single Payload.Data carries both; apply reads
	// that prefix to split them again.
	out := data.Bytes()
	namesLen := uint32(names.Len())
	full := make([]byte, 4+namesLen+uint32(len(out)))
	binary.LittleEndian.PutUint32(full, namesLen)
	copy(full[4:], names.Bytes())
	copy(full[4+namesLen:], out)

	return Payload{Offsets: offBuf, Data: compressBlob(full)}
}

// compressBlob tags blob with rawFlag, or with zstdFlag and a zstd frame
// in place of blob, whichever is smaller to send; blobs below
// compressThreshold are never compressed since the frame header would
// eat the savings.
func compressBlob(blob []byte) []byte {
	if len(blob) < compressThreshold {
		return append([]byte{rawFlag}, blob...)
	}
	compressed := zstdEncoder.EncodeAll(blob, make([]byte, 0, len(blob)/2))
	if len(compressed)+1 >= len(blob) {
		return append([]byte{rawFlag}, blob...)
	}
	return append([]byte{zstdFlag}, compressed...)
}

// decompressBlob reverses compressBlob.
func decompressBlob(blob []byte) ([]byte, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("kv: decompressBlob: empty payload")
	}
	flag, body := blob[0], blob[1:]
	switch flag {
	case rawFlag:
		return body, nil
	case zstdFlag:
		raw, err := zstdDecoder.DecodeAll(body, nil)
		if err != nil {
			return nil, fmt.Errorf("kv: decompressBlob: %w", err)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("kv: decompressBlob: unknown flag %d", flag)
	}
}

// apply decodes a Payload produced by flatten (possibly merged from
// every rank by the Transport) and writes each record into the tree,
// creating intermediate nodes as needed. Conflicting writes to the same
// path are resolved last-writer-wins by record order within the
// payload, mirroring sync's documented merge policy.
func (s *Store) apply(p Payload) error {
	if len(p.Offsets) < 4 {
		return nil
	}
	numOffsets := len(p.Offsets)/4 - 1
	if numOffsets <= 0 || numOffsets%2 != 0 {
		return nil
	}
	n := numOffsets / 2
	full, err := decompressBlob(p.Data)
	if err != nil {
		return fmt.Errorf("kv: apply: %w", err)
	}
	if len(full) < 4 {
		return fmt.Errorf("kv: apply: payload data too short")
	}
	namesLen := binary.LittleEndian.Uint32(full)
	names := full[4 : 4+namesLen]
	data := full[4+namesLen:]

	offsets := make([]uint32, numOffsets+1)
	for i := range offsets {
		offsets[i] = binary.LittleEndian.Uint32(p.Offsets[4*i:])
	}

	for i := 0; i < n; i++ {
		nameStart := offsets[2*i]
		nameEnd := offsets[2*(i+1)]
		dataStart := offsets[2*i+1]
		var dataEnd uint32
		if 2*i+3 <= numOffsets {
			dataEnd = offsets[2*i+3]
		} else {
			dataEnd = uint32(len(data))
		}
		if nameEnd > uint32(len(names)) || dataEnd > uint32(len(data)) {
			return fmt.Errorf("kv: apply: offset out of range for record %d", i)
		}
		path := string(names[nameStart:nameEnd])
		value := data[dataStart:dataEnd]
		s.SetValue(path, value)
		s.mu.Lock()
		s.byPath[path].synced = true
		s.mu.Unlock()
	}
	return nil
}
