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

// Package ft implements checkpoint creation and restore, and the
// node-failure detection/elimination cycle a program drives when a
// backend reports a fault.
package ft

import (
	"fmt"

	"github.com/dchest/siphash"
	"golang.org/x/crypto/blake2b"

	"github.com/laik-go/laik/data"
	"github.com/laik-go/laik/group"
	"github.com/laik-go/laik/partition"
	"github.com/laik-go/laik/space"
)

// checkpointKey0/1 seed the siphash rotation assignment: two fixed
// constants, not a per-run random value, so every process derives the
// identical redundant-owner assignment without a round of agreement.
const (
	checkpointKey0 = uint64(0xc7ec1701)
	checkpointKey1 = uint64(0x5a1fb00d)
)

// rotationSpread deterministically hashes sliceIdx to an offset in
// [1,size) so that distinct slices rotate their redundant owners by
// different, but reproducible, amounts instead of every slice using the
// identical fixed rotation — a deterministic, seedable hash keyed on a
// slice's emission index, avoiding the correlated "every index's
// replica N is on the same task" pattern a single constant rotation
// would otherwise produce.
func rotationSpread(sliceIdx, rotation, size int) int {
	if size <= 1 {
		return 0
	}
	var buf [8]byte
	putUint64(buf[:], uint64(sliceIdx))
	h := siphash.Hash(checkpointKey0, checkpointKey1, buf[:])
	spread := int(h%uint64(size-1)) + 1
	if rotation > 0 {
		spread = (spread + rotation) % size
		if spread == 0 {
			spread = 1
		}
	}
	return spread
}

// rotatedOwner returns the task holding step further replica (step in
// [1,redundancy)) of the slice at sliceIdx originally owned by baseTask.
// Steps 1..size-1 land on distinct tasks, none of them baseTask.
func rotatedOwner(sliceIdx, step, baseTask, rotation, size int) int {
	if size <= 1 {
		return baseTask
	}
	spread := rotationSpread(sliceIdx, rotation, size)
	offset := (spread-1+step-1)%(size-1) + 1
	t := (baseTask + offset) % size
	if t < 0 {
		t += size
	}
	return t
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// Checkpoint is a shadow Data holding a redundant copy of a source Data's
// contents, laid out under a backup partitioning over a (possibly
// different) backup Group.
type Checkpoint struct {
	Space *space.Space
	Data  *data.Data

	backupPartitioner *partition.Partitioner
	redundancy        int
	group             *group.Group

	// digests records, per locally-held mapping slice at creation time,
	// its blake2b-256 content digest, so Restore and RestoreSurviving
	// (through verifyUnchangedDigests) can detect a restored region that
	// no longer matches what this process itself checkpointed (e.g. a
	// repair that silently read the wrong replica).
	digests map[space.Slice][32]byte
}

// Create allocates a shadow Data bound to a backup partitioning derived
// from backupPartitioner, wrapped so each of the source partitioning's
// slices is additionally assigned to redundancy-1 further rotated tasks,
// then switches current contents into it under redOp (usually
// data.ReduceNone). be may be nil when the source partitioning's own
// Switch would require no cross-process communication (mirroring
// data.Data.Switch's own no-backend allowance).
func Create(src *data.Data, backupPartitioner *partition.Partitioner, redundancy, rotation int, g *group.Group, redOp data.ReduceOp, be data.Backend) (*Checkpoint, error) {
	if redundancy < 1 {
		return nil, fmt.Errorf("ft: Create: redundancy must be >= 1, got %d", redundancy)
	}
	active := src.Active()
	if active == nil {
		return nil, fmt.Errorf("ft: Create: source Data has no active partitioning")
	}

	redundant := redundantPartitioner(backupPartitioner, redundancy, rotation, g.Size)
	backup, err := partition.Build(src.Space, g, redundant, active)
	if err != nil {
		return nil, fmt.Errorf("ft: Create: building backup partitioning: %w", err)
	}

	shadow := data.New(src.Space, src.Elem, src.Name+".checkpoint")
	if err := shadow.SwitchFrom(src, backup, data.Preserve, redOp, be); err != nil {
		return nil, fmt.Errorf("ft: Create: switching shadow into backup partitioning: %w", err)
	}

	return &Checkpoint{
		Space:             src.Space,
		Data:              shadow,
		backupPartitioner: backupPartitioner,
		redundancy:        redundancy,
		group:             g,
		digests:           digestMappings(shadow),
	}, nil
}

// digestMappings returns the blake2b-256 digest of every mapping d
// currently holds locally, keyed by the mapping's slice.
func digestMappings(d *data.Data) map[space.Slice][32]byte {
	mappings := d.Mappings()
	out := make(map[space.Slice][32]byte, len(mappings))
	for _, m := range mappings {
		out[m.Slice] = replicaDigest(m.Base)
	}
	return out
}

// redundantPartitioner wraps base so that every TaskSlice it would
// normally emit for task t is additionally emitted for redundancy-1
// further tasks chosen by rotatedOwner's deterministic, siphash-derived
// rotation, so each index is held by at least redundancy distinct tasks
// without two different slices' replicas correlating on the same
// rotation amount.
func redundantPartitioner(base *partition.Partitioner, redundancy, rotation, size int) *partition.Partitioner {
	return &partition.Partitioner{
		Name: base.Name + ".redundant",
		Run: func(sp *space.Space, g *group.Group, pBase *partition.Partitioning) ([]partition.TaskSlice, error) {
			out, err := base.Run(sp, g, pBase)
			if err != nil {
				return nil, err
			}
			extra := make([]partition.TaskSlice, 0, len(out)*(redundancy-1))
			for i, ts := range out {
				for r := 1; r < redundancy; r++ {
					t := rotatedOwner(i, r, ts.Task, rotation, size)
					extra = append(extra, partition.TaskSlice{Task: t, Slice: ts.Slice, Tag: ts.Tag})
				}
			}
			return append(out, extra...), nil
		},
	}
}

// replicaDigest hashes a replica's raw bytes with blake2b-256, used by
// digestMappings at checkpoint creation and again by
// verifyUnchangedDigests after a restore, which compares a slice this
// process still holds against its own creation-time digest.
func replicaDigest(data []byte) [32]byte {
	return blake2b.Sum256(data)
}

// RemoveFailedSlices scans c's partitioning and drops every task-slice
// whose owning task is faulted. It returns false if, after removal, the
// surviving slices no longer cover the full space — data has been
// irrecoverably lost.
func RemoveFailedSlices(c *Checkpoint, statuses []Status) (covered bool, err error) {
	active := c.Data.Active()
	if active == nil {
		return false, fmt.Errorf("ft: RemoveFailedSlices: checkpoint has no active partitioning")
	}
	dims := c.Space.Dims()
	full := c.Space.RawSlice()

	var surviving []space.Slice
	for _, ts := range active.Slices() {
		if ts.Task < 0 || ts.Task >= len(statuses) || statuses[ts.Task] == Fault {
			continue
		}
		surviving = append(surviving, ts.Slice)
	}
	return coversSpace(dims, full, surviving), nil
}

// coversSpace reports whether slices's union equals full exactly, via a
// coverage-count sweep over every distinct boundary in dimension 0 (the
// checkpoint partitioner's split axis); callers needing multi-axis
// coverage should restrict slices to ones already known disjoint outside
// dim 0, which every built-in backup partitioner guarantees.
func coversSpace(dims int, full space.Slice, slices []space.Slice) bool {
	total := full.Size(dims)
	if total == 0 {
		return true
	}
	var coveredVolume uint64
	// merge overlapping/adjacent slices' dim-0 ranges to avoid
	// double-counting volume held redundantly by more than one
	// surviving task.
	var spans []span
	for _, s := range slices {
		if s.IsEmpty(dims) {
			continue
		}
		spans = append(spans, span{s.From.I[0], s.To.I[0]})
	}
	if len(spans) == 0 {
		return false
	}
	sortSpans(spans)
	merged := spans[:1]
	for _, sp := range spans[1:] {
		last := &merged[len(merged)-1]
		if sp.from <= last.to {
			if sp.to > last.to {
				last.to = sp.to
			}
			continue
		}
		merged = append(merged, sp)
	}
	for _, sp := range merged {
		coveredVolume += sp.to - sp.from
	}
	return coveredVolume == full.Extent(0)
}

type span struct{ from, to uint64 }

func sortSpans(s []span) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1].from > s[j].from; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// Restore switches dst to a Partitioning over the (possibly new) group
// that equals c's surviving coverage, with Preserve flow, copying from
// c.Data.
func Restore(c *Checkpoint, dst *data.Data, to *partition.Partitioning, be data.Backend) error {
	if err := dst.SwitchFrom(c.Data, to, data.Preserve, data.ReduceNone, be); err != nil {
		return fmt.Errorf("ft: Restore: %w", err)
	}
	return verifyUnchangedDigests(c, dst)
}

// SurvivingBackup rebuilds c's backup partitioning with every task-slice
// owned by a faulted task dropped, keeping at most one replica per
// region (the lowest-ranked surviving owner). Using c.Data.Active()
// directly as a switch source after a fault is unsafe: a region
// redundancy replicated onto both a dead task and a live one would make
// the transition expect input from the dead task too, since
// transition.Compute matches slices purely by task id and has no notion
// of liveness. SurvivingBackup is that liveness filter, applied once so
// the result is safe to pass as RestoreSurviving's source.
func SurvivingBackup(c *Checkpoint, statuses []Status) (*partition.Partitioning, error) {
	active := c.Data.Active()
	if active == nil {
		return nil, fmt.Errorf("ft: SurvivingBackup: checkpoint has no active partitioning")
	}
	best := make(map[space.Slice]int)
	for _, ts := range active.Slices() {
		if ts.Task < 0 || ts.Task >= len(statuses) || statuses[ts.Task] == Fault {
			continue
		}
		if owner, ok := best[ts.Slice]; !ok || ts.Task < owner {
			best[ts.Slice] = ts.Task
		}
	}
	kept := make([]partition.TaskSlice, 0, len(best))
	for slice, task := range best {
		kept = append(kept, partition.TaskSlice{Task: task, Slice: slice})
	}
	fixed := &partition.Partitioner{
		Name: "ft.survivingBackup",
		Run: func(sp *space.Space, g *group.Group, base *partition.Partitioning) ([]partition.TaskSlice, error) {
			return kept, nil
		},
	}
	return partition.Build(c.Space, active.Group, fixed, nil)
}

// RestoreSurviving is Restore for the path where a task named in
// statuses as Fault may still own entries in c's backup partitioning: it
// filters those out via SurvivingBackup before switching, so the
// transition never depends on a task that is no longer running.
func RestoreSurviving(c *Checkpoint, statuses []Status, dst *data.Data, to *partition.Partitioning, be data.Backend) error {
	from, err := SurvivingBackup(c, statuses)
	if err != nil {
		return fmt.Errorf("ft: RestoreSurviving: %w", err)
	}
	if err := dst.SwitchFromPartitioning(from, c.Data.Mappings(), to, data.Preserve, data.ReduceNone, be); err != nil {
		return fmt.Errorf("ft: RestoreSurviving: %w", err)
	}
	return verifyUnchangedDigests(c, dst)
}

// verifyUnchangedDigests is the defensive check Restore runs after
// copying: for every slice this process already held identically at
// checkpoint-creation time and still holds after restore (no ownership
// change, so the bytes should be byte-for-byte the same), it recomputes
// the blake2b-256 digest and errors if it no longer matches. A slice
// whose ownership moved during repair is expected to differ (it now
// holds another task's replica) and is skipped. A mismatch is not a
// contract violation; it is only a sanity check against accidental
// corruption in the local copy path.
func verifyUnchangedDigests(c *Checkpoint, dst *data.Data) error {
	after := digestMappings(dst)
	for slice, want := range c.digests {
		got, ok := after[slice]
		if !ok {
			continue
		}
		if got != want {
			return fmt.Errorf("ft: Restore: content digest mismatch for slice %+v after restore", slice)
		}
	}
	return nil
}
