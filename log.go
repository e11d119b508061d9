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
	"log"
	"os"
	"strconv"
	"strings"
)

// Level is a plain integer logging level, not a third-party leveled
// logging package: a single *log.Logger is threaded through everywhere.
type Level int

const (
	Warn Level = iota
	Info
	Debug
)

// logSpec is the parsed form of LAIK_LOG: "[n|s]level[:from[-to]]".
// n means no rank prefix, s means a short prefix; level is an integer;
// from/to optionally restrict logging to a rank range, inclusive.
type logSpec struct {
	short  bool
	none   bool
	level  Level
	from   int
	to     int
	ranged bool
}

func parseLogSpec(s string) (logSpec, error) {
	var spec logSpec
	spec.from, spec.to = 0, -1
	if s == "" {
		return spec, nil
	}
	rest := s
	if strings.HasPrefix(rest, "n") {
		spec.none = true
		rest = rest[1:]
	} else if strings.HasPrefix(rest, "s") {
		spec.short = true
		rest = rest[1:]
	}
	levelPart := rest
	if i := strings.IndexByte(rest, ':'); i >= 0 {
		levelPart = rest[:i]
		rangePart := rest[i+1:]
		spec.ranged = true
		if j := strings.IndexByte(rangePart, '-'); j >= 0 {
			from, err := strconv.Atoi(rangePart[:j])
			if err != nil {
				return spec, fmt.Errorf("%w: LAIK_LOG range %q: %v", ErrConfiguration, rangePart, err)
			}
			to, err := strconv.Atoi(rangePart[j+1:])
			if err != nil {
				return spec, fmt.Errorf("%w: LAIK_LOG range %q: %v", ErrConfiguration, rangePart, err)
			}
			spec.from, spec.to = from, to
		} else {
			from, err := strconv.Atoi(rangePart)
			if err != nil {
				return spec, fmt.Errorf("%w: LAIK_LOG rank %q: %v", ErrConfiguration, rangePart, err)
			}
			spec.from, spec.to = from, from
		}
	}
	n, err := strconv.Atoi(levelPart)
	if err != nil {
		return spec, fmt.Errorf("%w: LAIK_LOG level %q: %v", ErrConfiguration, levelPart, err)
	}
	spec.level = Level(n)
	return spec, nil
}

// Logger is the process-wide logging state: a single *log.Logger, a
// minimum level, and an optional rank filter. A nil *Logger method
// receiver is valid and logs nothing, so packages that hold a
// possibly-unconfigured *Logger never need a nil check before calling
// Printf.
type Logger struct {
	out   *log.Logger
	level Level
	rank  int
	spec  logSpec
}

// NewLogger builds a Logger for the given rank, parsing LAIK_LOG and
// LAIK_LOG_FILE from the environment the way Config.FromEnv does for the
// rest of an Instance's settings. A parse error in LAIK_LOG is a
// configuration error: logged to stderr and the default (Warn, every
// rank) is used instead of aborting construction, since logging setup
// itself must never panic.
func NewLogger(rank int) *Logger {
	out := log.Default()
	if path := os.Getenv("LAIK_LOG_FILE"); path != "" {
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
			out = log.New(f, "", log.LstdFlags)
		} else {
			fmt.Fprintf(os.Stderr, "laik: LAIK_LOG_FILE=%s: %v\n", path, err)
		}
	}

	spec, err := parseLogSpec(os.Getenv("LAIK_LOG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		spec = logSpec{to: -1}
	}
	return &Logger{out: out, level: spec.level, rank: rank, spec: spec}
}

func (l *Logger) enabled(level Level) bool {
	if l == nil {
		return false
	}
	if level > l.level {
		return false
	}
	if l.spec.ranged && (l.rank < l.spec.from || l.rank > l.spec.to) {
		return false
	}
	return true
}

// Printf logs a message at level if the logger's configured level and
// rank filter admit it, prefixed per the n/s flag in LAIK_LOG ("n" = no
// prefix, "s" = a short "[rank]" prefix, default a full prefix with the
// level name too).
func (l *Logger) Printf(level Level, format string, args ...any) {
	if !l.enabled(level) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	switch {
	case l.spec.none:
		l.out.Print(msg)
	case l.spec.short:
		l.out.Printf("[%d] %s", l.rank, msg)
	default:
		l.out.Printf("[%d] %s: %s", l.rank, levelName(level), msg)
	}
}

func levelName(l Level) string {
	switch l {
	case Warn:
		return "WARN"
	case Info:
		return "INFO"
	case Debug:
		return "DEBUG"
	default:
		return "LOG"
	}
}

// Panic logs msg as a PANIC banner, then re-panics with the same value
// so the caller's deferred recover (if any, at the top of main) can
// still format and exit.
func (l *Logger) Panic(v any) {
	if l != nil {
		l.out.Printf("PANIC: %v", v)
	}
	panic(v)
}
