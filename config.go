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

package laik

import (
	"fmt"
	"os"
	"strconv"

	"sigs.k8s.io/yaml"
)

// BackendName names one of the transports recognized via LAIK_BACKEND.
// LAIK-Go never implements any of these (concrete transports stay
// external to the core); Config only validates and carries the selection
// through to whatever wiring code constructs the actual backend.Backend.
type BackendName string

const (
	BackendMPI    BackendName = "mpi"
	BackendTCP    BackendName = "tcp"
	BackendSingle BackendName = "single"
)

// Config is the set of two-valued backend knobs and engine options,
// parsed once at New from the environment and optionally layered under
// a YAML file named by LAIK_CONFIG_FILE (sigs.k8s.io/yaml), rather than
// inventing a bespoke flag parser.
type Config struct {
	Backend BackendName

	// EnableCollectiveReduce gates action.replaceWithAllReduce.
	EnableCollectiveReduce bool
	// EnableAsync gates the optional async send/recv conversion pass.
	EnableAsync bool
	// ScratchBufSize overrides the nominal 10 MiB pack/unpack scratch
	// buffer; 0 means use the default.
	ScratchBufSize int

	// DebugRank is the rank waitForDebugger busy-loops on at startup, or
	// -1 (FromEnv's default) when LAIK_DEBUG_RANK is unset, so that rank
	// 0 does not hang waiting for a tracer on every normal run.
	DebugRank int
}

// fileConfig is the YAML shape accepted via LAIK_CONFIG_FILE: only the
// two-valued backend knobs are file-configurable — LAIK_BACKEND/LAIK_LOG*
// remain env-only.
type fileConfig struct {
	EnableCollectiveReduce *bool `json:"enableCollectiveReduce,omitempty"`
	EnableAsync            *bool `json:"enableAsync,omitempty"`
	ScratchBufSize         *int  `json:"scratchBufSize,omitempty"`
}

// FromEnv parses LAIK_BACKEND, LAIK_DEBUG_RANK and the backend knobs from
// the process environment, optionally layering LAIK_CONFIG_FILE's YAML
// contents underneath (env vars always win, since they are the more
// specific, more recently set override).
func FromEnv() (Config, error) {
	cfg := Config{Backend: BackendSingle, DebugRank: -1}

	if path := os.Getenv("LAIK_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	if b := os.Getenv("LAIK_BACKEND"); b != "" {
		switch BackendName(b) {
		case BackendMPI, BackendTCP, BackendSingle:
			cfg.Backend = BackendName(b)
		default:
			return Config{}, fmt.Errorf("%w: unknown LAIK_BACKEND %q", ErrConfiguration, b)
		}
	}

	if v := os.Getenv("LAIK_DEBUG_RANK"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: LAIK_DEBUG_RANK %q: %v", ErrConfiguration, v, err)
		}
		cfg.DebugRank = n
	}

	if v, ok := boolEnv("LAIK_ENABLE_COLLECTIVE_REDUCE"); ok {
		cfg.EnableCollectiveReduce = v
	}
	if v, ok := boolEnv("LAIK_ENABLE_ASYNC"); ok {
		cfg.EnableAsync = v
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: reading LAIK_CONFIG_FILE %s: %v", ErrConfiguration, path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("%w: parsing LAIK_CONFIG_FILE %s: %v", ErrConfiguration, path, err)
	}
	if fc.EnableCollectiveReduce != nil {
		c.EnableCollectiveReduce = *fc.EnableCollectiveReduce
	}
	if fc.EnableAsync != nil {
		c.EnableAsync = *fc.EnableAsync
	}
	if fc.ScratchBufSize != nil {
		c.ScratchBufSize = *fc.ScratchBufSize
	}
	return nil
}

// boolEnv reads a two-valued integer knob ("0" or "1").
func boolEnv(name string) (bool, bool) {
	v := os.Getenv(name)
	if v == "" {
		return false, false
	}
	return v != "0", true
}
