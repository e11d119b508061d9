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

package simbackend

import (
	"encoding/binary"

	"github.com/laik-go/laik/backend"
	"github.com/laik-go/laik/kv"
)

// encodeKVPayload/decodeKVPayload move a backend.KVPayload across a
// single chan []byte rendezvous, since World's channels carry one byte
// slice rather than a pair.
func encodeKVPayload(p backend.KVPayload) []byte {
	out := make([]byte, 4+len(p.Offsets)+len(p.Data))
	binary.LittleEndian.PutUint32(out, uint32(len(p.Offsets)))
	copy(out[4:], p.Offsets)
	copy(out[4+len(p.Offsets):], p.Data)
	return out
}

func decodeKVPayload(b []byte) backend.KVPayload {
	if len(b) < 4 {
		return backend.KVPayload{}
	}
	offLen := binary.LittleEndian.Uint32(b)
	return backend.KVPayload{
		Offsets: b[4 : 4+offLen],
		Data:    b[4+offLen:],
	}
}

// mergeKVPayloads decodes every rank's contribution into one kv.Store,
// last-writer-wins per path in gather order, and re-flattens it —
// delegating the wire format entirely to kv.Store.Apply/Flatten so this
// package never reimplements it.
func mergeKVPayloads(all []backend.KVPayload) (backend.KVPayload, error) {
	store := kv.NewStore()
	for _, p := range all {
		if err := store.Apply(kv.Payload{Offsets: p.Offsets, Data: p.Data}); err != nil {
			return backend.KVPayload{}, err
		}
	}
	merged := store.Flatten()
	return backend.KVPayload{Offsets: merged.Offsets, Data: merged.Data}, nil
}
