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

// Package backend declares the narrow vtable the engine drives a
// transport through: prepare/exec an ActionSeq, notify a group change,
// synchronize a KV store, and detect/eliminate failed ranks. It never
// implements a concrete transport; see internal/simbackend for the
// in-process one the test suite drives, and SPEC_FULL.md's DOMAIN STACK
// section for where a real MPI/TCP backend would plug in.
package backend

import (
	"github.com/laik-go/laik/action"
	"github.com/laik-go/laik/group"
)

// Status is one rank's liveness as agreed by StatusCheck.
type Status int

const (
	OK Status = 1
	Fault Status = -1
)

// Backend is the vtable the engine calls; the engine is always the
// caller, a Backend implementation must never call back into the engine.
// Every method but Exec, Prepare, Finalize and UpdateGroup may be a no-op
// for a backend that doesn't support the corresponding feature (e.g. a
// single-process backend's Sync is a no-op, its StatusCheck always
// reports every rank OK).
type Backend interface {
	// Prepare gives the backend a chance to allocate transport-private
	// resources (request handles, registered memory) for aseq before
	// Exec is ever called on it. Called once per ActionSeq.
	Prepare(aseq *action.ActionSeq) error

	// Exec walks aseq.Actions in order, executing each against the
	// backend's transport. Actions within one round may be reordered or
	// overlapped by the backend; rounds themselves execute in order.
	Exec(aseq *action.ActionSeq) error

	// Cleanup releases whatever Prepare allocated for aseq.
	Cleanup(aseq *action.ActionSeq) error

	// Finalize shuts the backend down; no further calls are made to it
	// afterwards.
	Finalize() error

	// UpdateGroup is called whenever the engine constructs a new Group
	// (clone or shrink) so the backend can build its own notion of a
	// sub-communicator for it.
	UpdateGroup(g *group.Group) error

	// LogAction stringifies a backend-private action kind (Kind >=
	// action.Backend) for diagnostics; core kinds are already handled by
	// action.Kind.String and never reach this method.
	LogAction(a action.Action) string

	// Sync exchanges kvs's unsynchronized entries with every other rank
	// in g. kvs is an opaque payload already flattened by the kv
	// package; Sync only moves bytes.
	Sync(g *group.Group, kvs KVPayload) (KVPayload, error)

	// EliminateNodes builds the new sub-communicator for newGroup from
	// oldGroup, given the agreed statuses (indexed by oldGroup rank).
	// Only ranks not marked Fault in statuses participate.
	EliminateNodes(oldGroup, newGroup *group.Group, statuses []Status) error

	// StatusCheck returns an agreed-upon per-rank status vector (indexed
	// by g rank) and the number of faulted ranks. Agreement must be
	// collective: no two surviving ranks may observe a different
	// statuses slice.
	StatusCheck(g *group.Group) (statuses []Status, faultCount int, err error)
}

// KVPayload is the wire format kv.Store.Sync hands a Backend: two
// parallel byte arrays (offsets and data) produced by the kv package's
// flattening. A Backend only needs to move these bytes collectively; it
// never interprets them.
type KVPayload struct {
	Offsets []byte
	Data    []byte
}
