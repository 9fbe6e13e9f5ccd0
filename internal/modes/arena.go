package modes

import (
	"math"
	"time"

	"partyhall/server/internal/match"
	"partyhall/server/internal/sim"
)

// Arena tuning. The ring is a roped square: movement bounces off the ropes
// at low restitution, but a hard knockback carries a player over them and
// out of the match.
const (
	arenaTickRate    = 60
	arenaSize        = 12.0
	arenaMaxPlayers  = 4
	arenaBaseSpeed   = 3.5
	arenaRunSpeed    = 5.5
	arenaFriction    = 0.85
	arenaStunDamping = 0.6
	arenaRestitution = 0.3
	arenaRopeBreak   = 7.0
	arenaOutMargin   = 1.5
	arenaMaxHealth   = 100.0
	arenaMaxStamina  = 100.0
	arenaStaminaPerS = 20.0
	arenaBlockPerS   = 15.0
	arenaTimeLimit   = 90 * time.Second
)

// Arena is the ring-combat variant: last survivor wins, by damage or by
// ring-out.
type Arena struct{}

// NewArena constructs the combat variant.
func NewArena() *Arena {
	return &Arena{}
}

func (a *Arena) Name() string { return "arena" }

func (a *Arena) Config() sim.Config {
	return sim.Config{
		TickRate:         arenaTickRate,
		MaxPlayers:       arenaMaxPlayers,
		Width:            arenaSize,
		Height:           arenaSize,
		BaseSpeed:        arenaBaseSpeed,
		RunSpeed:         arenaRunSpeed,
		Friction:         arenaFriction,
		StunDamping:      arenaStunDamping,
		Boundary:         sim.BoundaryBounce,
		Restitution:      arenaRestitution,
		RopeBreakSpeed:   arenaRopeBreak,
		OutMargin:        arenaOutMargin,
		MaxHealth:        arenaMaxHealth,
		MaxStamina:       arenaMaxStamina,
		StaminaRegenPerS: arenaStaminaPerS,
		BlockDrainPerS:   arenaBlockPerS,
		RoundTimeLimit:   arenaTimeLimit,
	}
}

// Actions is the arena attack table. All kinds share one per-actor cooldown
// window; costs are lump sums deducted at declaration.
func (a *Arena) Actions() map[sim.ActionKind]sim.ActionSpec {
	return map[sim.ActionKind]sim.ActionSpec{
		sim.ActionPunch: {
			Kind:        sim.ActionPunch,
			Damage:      10,
			Range:       1.2,
			HalfArc:     math.Pi / 3,
			Knockback:   4,
			Stun:        300 * time.Millisecond,
			WindUp:      250 * time.Millisecond,
			Cooldown:    600 * time.Millisecond,
			ActingLock:  300 * time.Millisecond,
			StaminaCost: 10,
		},
		sim.ActionHeavy: {
			Kind:        sim.ActionHeavy,
			Damage:      22,
			Range:       1.4,
			HalfArc:     math.Pi / 3,
			Knockback:   7,
			Stun:        500 * time.Millisecond,
			WindUp:      550 * time.Millisecond,
			Cooldown:    1200 * time.Millisecond,
			ActingLock:  600 * time.Millisecond,
			StaminaCost: 25,
		},
		sim.ActionGrab: {
			Kind:        sim.ActionGrab,
			Grab:        true,
			GrabRange:   1.0,
			GrabHold:    2 * time.Second,
			WindUp:      300 * time.Millisecond,
			Cooldown:    1000 * time.Millisecond,
			ActingLock:  300 * time.Millisecond,
			StaminaCost: 20,
		},
		sim.ActionThrow: {
			Kind:        sim.ActionThrow,
			Throw:       true,
			Damage:      28,
			Knockback:   9,
			Stun:        600 * time.Millisecond,
			WindUp:      200 * time.Millisecond,
			Cooldown:    800 * time.Millisecond,
			ActingLock:  400 * time.Millisecond,
			StaminaCost: 15,
		},
		sim.ActionEscape: {
			Kind:      sim.ActionEscape,
			Escape:    true,
			Damage:    5,
			Knockback: 5,
			Stun:      700 * time.Millisecond,
			Cooldown:  500 * time.Millisecond,
		},
	}
}

// Reset spawns the roster evenly around the ring center, facing inward.
func (a *Arena) Reset(w *sim.World, now time.Time) {
	players := w.Players()
	center := sim.Vec2{X: arenaSize / 2, Y: arenaSize / 2}
	radius := arenaSize / 4
	for i, p := range players {
		angle := 2 * math.Pi * float64(i) / float64(len(players))
		p.Pos = center.Add(sim.Vec2{X: math.Sin(angle), Y: math.Cos(angle)}.Scale(radius))
		p.Facing = sim.FacingAngle(center.Sub(p.Pos))
	}
}

func (a *Arena) Step(w *sim.World, ctx sim.StepContext) {}

// CheckTerminal marks eliminations from the post-tick state (health drained
// or carried past the ropes) and ends the round when at most one fighter
// stands. The wall-clock budget force-ends a stalled round ranked by
// remaining health.
func (a *Arena) CheckTerminal(w *sim.World, now time.Time) (sim.Outcome, bool) {
	for _, p := range w.Players() {
		if !p.Alive() {
			continue
		}
		if p.Health <= 0 {
			w.MarkEliminated(p)
			continue
		}
		if w.OutOfBounds(p) {
			w.MarkEliminated(p)
		}
	}

	alive := w.AlivePlayers()
	if len(alive) <= 1 {
		ranking := match.RankBySurvival(w)
		outcome := sim.Outcome{Ranking: ranking, Reason: "last-survivor"}
		if len(alive) == 1 {
			outcome.WinnerID = alive[0].ID
		} else if len(ranking) > 0 {
			outcome.WinnerID = ranking[0]
		}
		return outcome, true
	}

	if arenaTimeLimit > 0 && w.RoundElapsed(now) >= arenaTimeLimit {
		ranking := match.RankByScore(w, func(p *sim.PlayerState) float64 {
			if p.Eliminated {
				// Keep the fallen below every survivor regardless of the
				// health they had when they went out.
				return -float64(100 - p.ElimOrder)
			}
			return p.Health
		}, true)
		outcome := sim.Outcome{Ranking: ranking, Reason: "time-expired"}
		if len(ranking) > 0 {
			outcome.WinnerID = ranking[0]
		}
		return outcome, true
	}
	return sim.Outcome{}, false
}

func (a *Arena) SnapshotFields(w *sim.World) map[string]any {
	return map[string]any{
		"ringSize":  arenaSize,
		"outMargin": arenaOutMargin,
	}
}
