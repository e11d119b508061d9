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
	"os"
	"testing"
)

func TestNewBuildsWorldOfRequestedSize(t *testing.T) {
	t.Setenv("LAIK_BACKEND", "single")
	inst, err := New(4, 2)
	if err != nil {
		t.Fatal(err)
	}
	if inst.World.Size != 4 || inst.World.MyID != 2 {
		t.Fatalf("got size=%d myid=%d, want 4,2", inst.World.Size, inst.World.MyID)
	}
	if inst.Config.Backend != BackendSingle {
		t.Fatalf("got backend %q, want single", inst.Config.Backend)
	}
}

func TestFromEnvRejectsUnknownBackend(t *testing.T) {
	t.Setenv("LAIK_BACKEND", "quantum")
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected an error for an unknown LAIK_BACKEND")
	}
}

func TestParseLogSpec(t *testing.T) {
	cases := []struct {
		in   string
		want logSpec
	}{
		{"", logSpec{to: -1}},
		{"2", logSpec{level: Debug, to: -1}},
		{"s1", logSpec{short: true, level: Info, to: -1}},
		{"n0", logSpec{none: true, level: Warn, to: -1}},
		{"1:3", logSpec{level: Info, from: 3, to: 3, ranged: true}},
		{"1:0-2", logSpec{level: Info, from: 0, to: 2, ranged: true}},
	}
	for _, c := range cases {
		got, err := parseLogSpec(c.in)
		if err != nil {
			t.Fatalf("parseLogSpec(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("parseLogSpec(%q) = %+v, want %+v", c.in, got, c.want)
		}
	}
}

func TestParseLogSpecRejectsGarbage(t *testing.T) {
	if _, err := parseLogSpec("garbage"); err == nil {
		t.Fatal("expected an error parsing a non-numeric level")
	}
}

func TestHandleTransportErrorInvokesInstalledHandler(t *testing.T) {
	inst, err := New(1, 0)
	if err != nil {
		t.Fatal(err)
	}
	var got error
	inst.SetErrorHandler(func(err error) { got = err })
	want := os.ErrClosed
	if err := inst.HandleTransportError(want); err != nil {
		t.Fatalf("expected nil (handled), got %v", err)
	}
	if got != want {
		t.Fatalf("handler saw %v, want %v", got, want)
	}
}
