package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		TickRate:         60,
		MaxPlayers:       4,
		Width:            12,
		Height:           12,
		BaseSpeed:        3.5,
		RunSpeed:         5.5,
		Friction:         0.85,
		StunDamping:      0.6,
		MaxHealth:        100,
		MaxStamina:       100,
		StaminaRegenPerS: 20,
		BlockDrainPerS:   15,
	}
}

func addPlayer(w *World, id string, seat int, pos Vec2) *PlayerState {
	p := &PlayerState{
		ID:         id,
		Name:       id,
		Seat:       seat,
		Pos:        pos,
		Health:     100,
		MaxHealth:  100,
		Stamina:    100,
		MaxStamina: 100,
	}
	w.AddPlayer(p)
	return p
}

func TestStepSteeringSetsVelocityAndFacing(t *testing.T) {
	w := NewWorld(testConfig())
	now := time.Now()
	w.Reset(now)
	p := addPlayer(w, "a", 1, Vec2{X: 6, Y: 6})

	right := true
	inputs := NewInputBuffer()
	inputs.Apply("a", InputPatch{Right: &right})

	w.Step(StepContext{Tick: 1, Now: now, Delta: 1.0 / 60, Inputs: inputs.Snapshot()})

	require.InDelta(t, 3.5*0.85, p.Vel.X, 1e-9, "velocity is steering speed after one friction decay")
	require.InDelta(t, FacingAngle(Vec2{X: 1}), p.Facing, 1e-9)
	require.Greater(t, p.Pos.X, 6.0)
}

func TestStepFrictionDecaysVelocity(t *testing.T) {
	w := NewWorld(testConfig())
	now := time.Now()
	w.Reset(now)
	p := addPlayer(w, "a", 1, Vec2{X: 6, Y: 6})
	p.Vel = Vec2{X: 4}

	w.Step(StepContext{Tick: 1, Now: now, Delta: 1.0 / 60, Inputs: nil})
	require.InDelta(t, 4*0.85, p.Vel.X, 1e-9)

	w.Step(StepContext{Tick: 2, Now: now, Delta: 1.0 / 60, Inputs: nil})
	require.InDelta(t, 4*0.85*0.85, p.Vel.X, 1e-9)
}

func TestStunnedPlayerIgnoresSteering(t *testing.T) {
	w := NewWorld(testConfig())
	now := time.Now()
	w.Reset(now)
	p := addPlayer(w, "a", 1, Vec2{X: 6, Y: 6})
	p.Vel = Vec2{X: 2}
	p.StunnedUntil = now.Add(time.Second)

	right := true
	inputs := NewInputBuffer()
	inputs.Apply("a", InputPatch{Right: &right, Block: &right})

	w.Step(StepContext{Tick: 1, Now: now, Delta: 1.0 / 60, Inputs: inputs.Snapshot()})

	// Stun damping then friction; steering and blocking are both suppressed.
	require.InDelta(t, 2*0.6*0.85, p.Vel.X, 1e-9)
	require.False(t, p.Blocking)
}

func TestBoundaryClampStopsAtEdge(t *testing.T) {
	cfg := testConfig()
	cfg.Boundary = BoundaryClamp
	w := NewWorld(cfg)
	now := time.Now()
	w.Reset(now)
	p := addPlayer(w, "a", 1, Vec2{X: 11.9, Y: 6})
	p.Vel = Vec2{X: 30}

	w.Step(StepContext{Tick: 1, Now: now, Delta: 1.0 / 60, Inputs: nil})

	require.Equal(t, cfg.Width-PlayerRadius, p.Pos.X)
	require.Zero(t, p.Vel.X)
}

func TestBoundaryBounceReflectsWithRestitution(t *testing.T) {
	cfg := testConfig()
	cfg.Boundary = BoundaryBounce
	cfg.Restitution = 0.3
	cfg.RopeBreakSpeed = 7
	w := NewWorld(cfg)
	now := time.Now()
	w.Reset(now)
	p := addPlayer(w, "a", 1, Vec2{X: 11.9, Y: 6})
	p.Vel = Vec2{X: 6} // below the rope-break threshold after friction

	w.Step(StepContext{Tick: 1, Now: now, Delta: 1.0 / 60, Inputs: nil})

	require.Equal(t, cfg.Width-PlayerRadius, p.Pos.X)
	require.Less(t, p.Vel.X, 0.0, "velocity reflected off the rope")
	require.InDelta(t, -6*0.85*0.3, p.Vel.X, 1e-9)
}

func TestRopeBreakSpeedCarriesPlayerOut(t *testing.T) {
	cfg := testConfig()
	cfg.Boundary = BoundaryBounce
	cfg.Restitution = 0.3
	cfg.RopeBreakSpeed = 7
	cfg.OutMargin = 1.5
	w := NewWorld(cfg)
	now := time.Now()
	w.Reset(now)
	p := addPlayer(w, "a", 1, Vec2{X: 11.9, Y: 6})
	p.Vel = Vec2{X: 40}

	// A handful of ticks is all a real round gets before the elimination
	// check catches the exit.
	for i := 0; i < 5; i++ {
		w.Step(StepContext{Tick: uint64(i + 1), Now: now, Delta: 1.0 / 60, Inputs: nil})
	}

	require.Greater(t, p.Pos.X, cfg.Width, "knockback past the rope-break speed leaves the ring")
	require.True(t, w.OutOfBounds(p))
}

func TestBlockingDrainsStaminaAndDropsWhenEmpty(t *testing.T) {
	w := NewWorld(testConfig())
	now := time.Now()
	w.Reset(now)
	p := addPlayer(w, "a", 1, Vec2{X: 6, Y: 6})
	p.Stamina = 0.1

	block := true
	inputs := NewInputBuffer()
	inputs.Apply("a", InputPatch{Block: &block})
	snapshot := inputs.Snapshot()

	w.Step(StepContext{Tick: 1, Now: now, Delta: 1.0 / 60, Inputs: snapshot})
	require.False(t, p.Blocking, "stance breaks the moment stamina empties")
	require.Zero(t, p.Stamina)
}

func TestFrozenWorldDoesNotAdvance(t *testing.T) {
	w := NewWorld(testConfig())
	now := time.Now()
	w.Reset(now)
	p := addPlayer(w, "a", 1, Vec2{X: 6, Y: 6})
	p.Vel = Vec2{X: 2}
	w.Freeze()

	w.Step(StepContext{Tick: 1, Now: now, Delta: 1.0 / 60, Inputs: nil})

	require.Equal(t, uint64(0), w.Tick())
	require.Equal(t, 6.0, p.Pos.X)
}

func TestResetKeepsIdentityWipesTransient(t *testing.T) {
	w := NewWorld(testConfig())
	now := time.Now()
	p := addPlayer(w, "a", 1, Vec2{X: 2, Y: 2})
	p.Color = "#e6533c"
	p.Health = 10
	p.Eliminated = true
	p.ElimOrder = 1
	p.Grabbing = "b"

	w.Reset(now)

	require.Equal(t, "a", p.ID)
	require.Equal(t, "#e6533c", p.Color)
	require.Equal(t, 100.0, p.Health)
	require.False(t, p.Eliminated)
	require.Zero(t, p.ElimOrder)
	require.Empty(t, p.Grabbing)
}

func TestRemovePlayerBreaksGrabLink(t *testing.T) {
	w := NewWorld(testConfig())
	a := addPlayer(w, "a", 1, Vec2{})
	b := addPlayer(w, "b", 2, Vec2{})
	a.Grabbing = "b"
	b.GrabbedBy = "a"

	w.RemovePlayer("a")

	require.Empty(t, b.GrabbedBy, "removing the grabber frees the grabbed")
	require.Nil(t, w.Player("a"))
}

func TestPlayersOrderedBySeat(t *testing.T) {
	w := NewWorld(testConfig())
	addPlayer(w, "c", 3, Vec2{})
	addPlayer(w, "a", 1, Vec2{})
	addPlayer(w, "b", 2, Vec2{})

	players := w.Players()
	require.Len(t, players, 3)
	require.Equal(t, "a", players[0].ID)
	require.Equal(t, "b", players[1].ID)
	require.Equal(t, "c", players[2].ID)
}
