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

// Package laik ties together the index-space/partitioning/transition
// engine (packages space, group, partition, data, transition, action,
// backend, kv, ft) into one Instance per process: the environment-driven
// configuration, logging, and error-handling surface, plus the world
// Group and Space registry every program built on the library starts
// from.
package laik

import (
	"fmt"
	"os"

	"github.com/laik-go/laik/action"
	"github.com/laik-go/laik/group"
	"github.com/laik-go/laik/space"
)

// Instance is the per-process handle a program holds for its lifetime:
// it owns the world Group, the Space registry spaces are created
// against, the process-wide Logger, and the installed error handler (if
// any). It is the Go analogue of the original's Laik_Instance.
type Instance struct {
	Config Config
	Log    *Logger
	Spaces *space.Registry
	World  *group.Group

	errHandler ErrorHandler
}

// New builds an Instance for a process at the given rank within a world
// of size procs, parsing Config from the environment. If LAIK_DEBUG_RANK
// names this rank, New busy-loops until a debugger attaches before
// returning.
func New(size, rank int) (*Instance, error) {
	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	l := NewLogger(rank)
	if cfg.DebugRank >= 0 && cfg.DebugRank == rank {
		waitForDebugger(l)
	}
	inst := &Instance{
		Config: cfg,
		Log:    l,
		Spaces: space.NewRegistry(),
		World:  group.NewWorld(size, rank),
	}
	return inst, nil
}

// SetErrorHandler installs h as the handler invoked when a transport
// error surfaces from a backend call: if an error handler is installed,
// it is invoked and the engine returns control to the caller for FT
// handling; otherwise the error is logged and the process exits.
func (inst *Instance) SetErrorHandler(h ErrorHandler) { inst.errHandler = h }

// HandleTransportError implements the propagation policy for a transport
// error surfaced by a backend call: if a handler is installed, invoke it
// and return nil so the caller proceeds to the FT path; otherwise log the
// error and terminate the process with exit code 1.
func (inst *Instance) HandleTransportError(err error) error {
	if err == nil {
		return nil
	}
	if inst.errHandler != nil {
		inst.errHandler(err)
		return nil
	}
	inst.Log.Printf(Warn, "unhandled transport error: %v", err)
	fmt.Fprintf(os.Stderr, "laik: fatal: %v\n", err)
	os.Exit(1)
	return nil
}

// ActionConfig projects inst.Config onto the action package's optimizer
// configuration, so a caller driving Data.Switch by hand (rather than
// through a higher-level helper) doesn't need to know action.Config's
// field names track Config's.
func (inst *Instance) ActionConfig() action.Config {
	return action.Config{
		EnableAllReduce: inst.Config.EnableCollectiveReduce,
		EnableAsync:     inst.Config.EnableAsync,
		PackBufSize:     inst.Config.ScratchBufSize,
	}
}

// Recover is deferred by a program's main to implement the library's
// exit codes: 0 on success, 1 on any panic, logged with a PANIC banner.
// It re-panics nothing; it is the terminal recovery point.
func (inst *Instance) Recover() {
	if r := recover(); r != nil {
		inst.Log.Printf(Warn, "PANIC: %v", r)
		fmt.Fprintf(os.Stderr, "laik: PANIC: %v\n", r)
		os.Exit(1)
	}
}
