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

package ft

import (
	"fmt"

	"github.com/laik-go/laik/backend"
	"github.com/laik-go/laik/group"
)

// Status and its two values are re-exported from backend so a program
// driving the FT cycle never needs to import backend just to name a
// rank's liveness.
type Status = backend.Status

const (
	OK    = backend.OK
	Fault = backend.Fault
)

// CheckNodes delegates to be's StatusCheck: agreement must be
// collective, a guarantee the Backend implementation itself is
// responsible for.
func CheckNodes(g *group.Group, be backend.Backend) ([]Status, int, error) {
	statuses, n, err := be.StatusCheck(g)
	if err != nil {
		return nil, 0, fmt.Errorf("ft: CheckNodes: %w", err)
	}
	return statuses, n, nil
}

// EliminateNodes installs a new world group that is the shrinking of g
// omitting every rank statuses marks Fault, and notifies be so it can
// build the corresponding sub-communicator from the still-live old one.
func EliminateNodes(g *group.Group, statuses []Status, be backend.Backend) (*group.Group, error) {
	var remove []int
	for i, s := range statuses {
		if s == Fault {
			remove = append(remove, i)
		}
	}
	newGroup := g.Shrink(remove)
	if err := be.EliminateNodes(g, newGroup, statuses); err != nil {
		return nil, fmt.Errorf("ft: EliminateNodes: %w", err)
	}
	return newGroup, nil
}
