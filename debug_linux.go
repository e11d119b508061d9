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

//go:build linux

package laik

import (
	"bytes"
	"os"
	"strconv"
	"time"

	"golang.org/x/sys/unix"
)

// waitForDebugger busy-loops until a tracer (debugger) attaches to this
// process, for LAIK_DEBUG_RANK. It polls /proc/self/status's TracerPid,
// reaching into golang.org/x/sys for the OS primitive rather than
// shelling out.
func waitForDebugger(l *Logger) {
	l.Printf(Warn, "waiting for debugger to attach (pid %d)", unix.Getpid())
	for {
		traced, err := tracerAttached()
		if err != nil || traced {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func tracerAttached() (bool, error) {
	var st unix.Stat_t
	// Stat on /proc/self succeeding confirms procfs is mounted; the
	// actual tracer check reads the textual status file, which unix
	// doesn't parse for us, so a failed Stat here just means we can't
	// detect attachment and should stop waiting rather than spin
	// forever on a kernel without procfs.
	if err := unix.Stat("/proc/self", &st); err != nil {
		return true, err
	}
	data, err := os.ReadFile("/proc/self/status")
	if err != nil {
		return true, err
	}
	return hasNonZeroTracerPid(data), nil
}

func hasNonZeroTracerPid(status []byte) bool {
	const key = "TracerPid:"
	i := bytes.Index(status, []byte(key))
	if i < 0 {
		return false
	}
	line := status[i+len(key):]
	if j := bytes.IndexByte(line, '\n'); j >= 0 {
		line = line[:j]
	}
	pid, err := strconv.Atoi(string(bytes.TrimSpace(line)))
	return err == nil && pid != 0
}
