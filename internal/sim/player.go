package sim

import "time"

// PlayerState is the authoritative per-player record owned by a room's
// simulation while a round is running. Transient fields are wiped by Reset
// between rounds; identity fields (ID, Name, Seat, Color) survive for the
// life of the room.
type PlayerState struct {
	ID    string
	Name  string
	Seat  int
	Color string

	Pos    Vec2
	Vel    Vec2
	Facing float64

	Health     float64
	MaxHealth  float64
	Stamina    float64
	MaxStamina float64

	Blocking     bool
	StunnedUntil time.Time
	ActingUntil  time.Time

	// Grab link. Grabbing/GrabbedBy hold the counterpart's player ID; the
	// release timestamp lives on the grabber.
	Grabbing      string
	GrabbedBy     string
	GrabReleaseAt time.Time

	Eliminated bool
	ElimOrder  int
	Finished   bool
	Rank       int
}

// Alive reports whether the player still participates in the round.
func (p *PlayerState) Alive() bool {
	return p != nil && !p.Eliminated && !p.Finished
}

// Stunned reports whether a stun is active at the given instant.
func (p *PlayerState) Stunned(now time.Time) bool {
	return p != nil && now.Before(p.StunnedUntil)
}

// Acting reports whether an attack wind-up is blocking movement input.
func (p *PlayerState) Acting(now time.Time) bool {
	return p != nil && now.Before(p.ActingUntil)
}

// Controllable reports whether movement input may steer the player this tick.
// Stun, grab links, and attack wind-ups all suppress steering; the physics
// step damps residual velocity instead of freezing it.
func (p *PlayerState) Controllable(now time.Time) bool {
	if p == nil || !p.Alive() {
		return false
	}
	return !p.Stunned(now) && !p.Acting(now) && p.GrabbedBy == ""
}

// ApplyHealthDelta adjusts health, clamped to [0, MaxHealth].
func (p *PlayerState) ApplyHealthDelta(delta float64) {
	if p == nil {
		return
	}
	p.Health = clamp(p.Health+delta, 0, p.MaxHealth)
}

// SpendStamina deducts cost if the full amount is available. A rejected
// spend deducts nothing, so resource accounting never goes partial.
func (p *PlayerState) SpendStamina(cost float64) bool {
	if p == nil || cost < 0 {
		return false
	}
	if p.Stamina < cost {
		return false
	}
	p.Stamina -= cost
	return true
}

// RegenStamina restores stamina at rate-per-second over delta, capped at max.
func (p *PlayerState) RegenStamina(rate, delta float64) {
	if p == nil || rate <= 0 || delta <= 0 {
		return
	}
	p.Stamina = clamp(p.Stamina+rate*delta, 0, p.MaxStamina)
}

// DrainStamina removes stamina at rate-per-second over delta, floored at
// zero, and reports whether any charge remains.
func (p *PlayerState) DrainStamina(rate, delta float64) bool {
	if p == nil {
		return false
	}
	p.Stamina = clamp(p.Stamina-rate*delta, 0, p.MaxStamina)
	return p.Stamina > 0
}

// ReleaseGrab clears the link between grabber and grabbed. It is written so
// either side of the link can be passed; the counterpart is resolved by the
// caller since the world owns the roster.
func (p *PlayerState) ReleaseGrab() {
	if p == nil {
		return
	}
	p.Grabbing = ""
	p.GrabbedBy = ""
	p.GrabReleaseAt = time.Time{}
}
