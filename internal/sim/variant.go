package sim

import "time"

// BoundaryMode selects how the arena edge treats a moving player.
type BoundaryMode int

const (
	// BoundaryClamp pins the position to the edge and zeroes the offending
	// velocity component. Open-field variants use this.
	BoundaryClamp BoundaryMode = iota
	// BoundaryBounce reflects the offending velocity component with the
	// configured restitution, the "ropes" feel of ring variants.
	BoundaryBounce
)

// Config carries the tuning every physically simulated variant shares. A
// variant returns one from Config(); the world and the room scheduler read
// it, never the variant internals.
type Config struct {
	TickRate   int
	MaxPlayers int

	Width  float64
	Height float64

	BaseSpeed float64
	RunSpeed  float64
	// Friction is the per-tick exponential decay applied to velocity so
	// motion eases out instead of hard-stopping.
	Friction float64
	// StunDamping replaces Friction while the player is in a
	// non-interruptible state, pulling velocity toward zero faster without
	// snapping.
	StunDamping float64

	Boundary    BoundaryMode
	Restitution float64
	// RopeBreakSpeed lets a sufficiently hard knockback carry a player past
	// a bouncing boundary. Zero disables the bypass.
	RopeBreakSpeed float64
	// OutMargin is how far past the edge counts as a boundary exit. Zero
	// means the variant has no ring-out.
	OutMargin float64

	// LaneAxis variants keep a fixed facing; the step never recomputes it
	// from the movement direction.
	LaneAxis bool

	MaxHealth        float64
	MaxStamina       float64
	StaminaRegenPerS float64
	BlockDrainPerS   float64
	RoundTimeLimit   time.Duration
}

// StepContext is handed to a variant's per-tick hook after shared physics.
type StepContext struct {
	Tick   uint64
	Now    time.Time
	Delta  float64
	Inputs map[string]InputState
}

// Outcome is the terminal result of a round. Ranking is winner-first and
// always total over the roster; ties are broken by the variant's documented
// rule before the outcome is surfaced, never left ambiguous.
type Outcome struct {
	WinnerID string
	Ranking  []string
	Reason   string
}

// Variant is the contract every minigame plugs into the shared skeleton. The
// skeleton owns physics, deferred actions, and scheduling; a variant supplies
// its tuning, its action table, its per-tick rule hook, and its terminal
// predicate.
type Variant interface {
	Name() string
	Config() Config
	// Actions returns the attack-kind table, or nil for variants without
	// combat.
	Actions() map[ActionKind]ActionSpec
	// Reset places players for a fresh round and clears variant scratch
	// state. Called before the first tick of every round.
	Reset(w *World, now time.Time)
	// Step runs mode-specific rules after shared physics for the tick.
	Step(w *World, ctx StepContext)
	// CheckTerminal evaluates the variant's end-of-round predicate against
	// the post-tick state.
	CheckTerminal(w *World, now time.Time) (Outcome, bool)
	// SnapshotFields contributes the modeSpecificFields block of the
	// per-tick broadcast.
	SnapshotFields(w *World) map[string]any
}
