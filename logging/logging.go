// Package logging is the structured event pipeline for the room server.
// Components publish typed gameplay and lifecycle events; an async router
// fans them out to configured sinks with severity filtering and drop
// accounting so a slow sink can never stall a tick.
package logging

import (
	"context"
	"time"
)

// EventType names a structured event.
type EventType string

// Event types published by the room core.
const (
	EventRoomCreated     EventType = "room.created"
	EventRoomClosed      EventType = "room.closed"
	EventRoomSwept       EventType = "room.swept"
	EventPlayerJoined    EventType = "player.joined"
	EventPlayerLeft      EventType = "player.left"
	EventRoundStarting   EventType = "round.starting"
	EventRoundEnded      EventType = "round.ended"
	EventTournamentEnded EventType = "tournament.ended"
	EventAttackStarted   EventType = "combat.attack_started"
	EventAttackHit       EventType = "combat.attack_hit"
	EventElimination     EventType = "combat.elimination"
	EventTickPanic       EventType = "sim.tick_panic"
)

// Severity orders events for sink filtering.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one structured record. Room and tick identify the simulation
// context; Payload carries event-specific detail.
type Event struct {
	Type     EventType      `json:"type"`
	Time     time.Time      `json:"time"`
	Severity Severity       `json:"severity"`
	Room     string         `json:"room,omitempty"`
	Tick     uint64         `json:"tick,omitempty"`
	Actor    string         `json:"actor,omitempty"`
	Target   string         `json:"target,omitempty"`
	Payload  map[string]any `json:"payload,omitempty"`
}

// Publisher accepts events for routing.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}

// NopPublisher discards everything, the default for tests.
func NopPublisher() Publisher {
	return nopPublisher{}
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function into a Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}
