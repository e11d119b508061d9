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

//go:build !linux

package laik

// waitForDebugger is a no-op off Linux: the /proc/self/status tracer
// check in debug_linux.go has no portable equivalent, and LAIK_DEBUG_RANK
// is a debug convenience, not a correctness requirement.
func waitForDebugger(l *Logger) {
	l.Printf(Warn, "LAIK_DEBUG_RANK is only supported on linux; ignoring")
}
