// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wire

import (
	"fmt"
	"strings"
)

// Direction is a compass direction for chassis motion, relative to the robot.
type Direction int

// Direction values
const (
	Stop Direction = iota
	North
	NorthEast
	East
	SouthEast
	South
	SouthWest
	West
	NorthWest
)

var directionNames = []string{"STOP", "NORTH", "NORTHEAST", "EAST", "SOUTHEAST", "SOUTH", "SOUTHWEST", "WEST", "NORTHWEST"}

// Directions lists every direction, Stop first.
var Directions = []Direction{Stop, North, NorthEast, East, SouthEast, South, SouthWest, West, NorthWest}

func (d Direction) String() string {
	if d < 0 || int(d) >= len(directionNames) {
		return fmt.Sprintf("Direction(%d)", int(d))
	}
	return directionNames[d]
}

// ParseDirection accepts full names ("north", "NorthEast") and short forms ("n", "ne").
func ParseDirection(s string) (Direction, error) {
	key := strings.ToUpper(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "_", "")
	key = strings.ReplaceAll(key, "-", "")

	switch key {
	case "N":
		return North, nil
	case "NE":
		return NorthEast, nil
	case "E":
		return East, nil
	case "SE":
		return SouthEast, nil
	case "S":
		return South, nil
	case "SW":
		return SouthWest, nil
	case "W":
		return West, nil
	case "NW":
		return NorthWest, nil
	case "X", "HALT":
		return Stop, nil
	}

	for i, name := range directionNames {
		if key == name {
			return Direction(i), nil
		}
	}
	return Stop, fmt.Errorf("unknown direction %q", s)
}
