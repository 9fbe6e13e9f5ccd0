package sim

import "time"

// ActionKind names an entry in a variant's attack table.
type ActionKind string

const (
	ActionPunch  ActionKind = "punch"
	ActionHeavy  ActionKind = "heavy"
	ActionGrab   ActionKind = "grab"
	ActionThrow  ActionKind = "throw"
	ActionEscape ActionKind = "escape"
)

// ActionSpec is one row of a variant's attack table. Range and arc classify
// hits purely from geometry captured at declaration time, so resolution is
// deterministic no matter when inside the wind-up window it runs.
type ActionSpec struct {
	Kind   ActionKind
	Damage float64
	Range  float64
	// HalfArc is the half-angle of the forward hit cone in radians. The
	// typical table uses pi/3, a 120 degree cone.
	HalfArc   float64
	Knockback float64
	Stun      time.Duration

	// WindUp is the active-frame delay between declaration and resolution.
	WindUp   time.Duration
	Cooldown time.Duration
	// ActingLock suppresses movement steering while the animation plays.
	ActingLock  time.Duration
	StaminaCost float64

	// Grab kinds search for the nearest target inside GrabRange instead of
	// sweeping the cone.
	Grab      bool
	GrabRange float64
	GrabHold  time.Duration

	// Throw consumes an existing grab link; Escape breaks one from the
	// grabbed side.
	Throw  bool
	Escape bool
}

// HitResult is the ephemeral record of one resolved hit, forwarded to the
// network boundary for the attack broadcast.
type HitResult struct {
	AttackerID string
	TargetID   string
	Kind       ActionKind
	Damage     float64
	Blocked    bool
	Knockback  Vec2
	Health     float64
	Eliminated bool
}
