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
	"errors"
	"fmt"
)

// ContractError is panicked (never returned) for a contract violation: a
// bad rank, a slice outside its space, a size mismatch in a receive, a
// missing reducer for a requested reduction type, or an unknown action
// kind during Exec. These are programming errors the caller could not
// have triggered validly, so the engine never tries to recover from one.
type ContractError struct {
	Op  string
	Err error
}

func (e *ContractError) Error() string { return fmt.Sprintf("laik: contract violation in %s: %v", e.Op, e.Err) }
func (e *ContractError) Unwrap() error { return e.Err }

// PanicContract panics with a ContractError tagged op. Call sites that hit
// a condition only a bug could produce use this instead of returning an
// error.
func PanicContract(op string, err error) {
	panic(&ContractError{Op: op, Err: err})
}

// ErrConfiguration marks a configuration error (unknown backend name,
// malformed LAIK_LOG format): logged and the process exits. It is
// returned, not panicked, so New's caller can decide how to terminate.
var ErrConfiguration = errors.New("laik: configuration error")

// ErrorHandler is invoked, at most once per failed operation, when a
// transport error surfaces and a handler has been installed via
// SetErrorHandler. If no handler is installed the error is logged and the
// process exits.
type ErrorHandler func(err error)
