// Package modes holds the minigame variants plugged into the shared room
// skeleton. Each variant supplies tuning, an attack table, a per-tick rule
// hook, and a terminal predicate; physics and scheduling live elsewhere.
package modes

import (
	"fmt"
	"sort"

	"partyhall/server/internal/sim"
)

// UnknownModeError rejects a create-room request naming a mode this build
// does not ship.
type UnknownModeError struct {
	Mode string
}

func (e *UnknownModeError) Error() string {
	return fmt.Sprintf("unknown mode %q", e.Mode)
}

var factories = map[string]func() sim.Variant{
	"arena": func() sim.Variant { return NewArena() },
	"race":  func() sim.Variant { return NewRace() },
	"tag":   func() sim.Variant { return NewTag() },
}

// New constructs a fresh variant instance for a room. Variants hold per-room
// scratch state, so instances are never shared.
func New(mode string) (sim.Variant, error) {
	factory, ok := factories[mode]
	if !ok {
		return nil, &UnknownModeError{Mode: mode}
	}
	return factory(), nil
}

// Available lists the shipped mode tags in stable order.
func Available() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
