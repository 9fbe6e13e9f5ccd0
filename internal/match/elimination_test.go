package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"partyhall/server/internal/sim"
)

// stubVariant lets a test flip the terminal condition on demand.
type stubVariant struct {
	done    bool
	outcome sim.Outcome
}

func (v *stubVariant) Name() string { return "stub" }
func (v *stubVariant) Config() sim.Config {
	return sim.Config{TickRate: 60, MaxPlayers: 4, Width: 10, Height: 10, MaxHealth: 100, MaxStamina: 100}
}
func (v *stubVariant) Actions() map[sim.ActionKind]sim.ActionSpec { return nil }
func (v *stubVariant) Reset(*sim.World, time.Time)                {}
func (v *stubVariant) Step(*sim.World, sim.StepContext)           {}
func (v *stubVariant) SnapshotFields(*sim.World) map[string]any   { return nil }
func (v *stubVariant) CheckTerminal(*sim.World, time.Time) (sim.Outcome, bool) {
	return v.outcome, v.done
}

func newTestWorld(names ...string) *sim.World {
	w := sim.NewWorld(sim.Config{MaxHealth: 100, MaxStamina: 100, Width: 10, Height: 10})
	for i, name := range names {
		w.AddPlayer(&sim.PlayerState{
			ID: name, Name: name, Seat: i + 1,
			Health: 100, MaxHealth: 100, Stamina: 100, MaxStamina: 100,
		})
	}
	return w
}

func TestTrackerFreezesWorldOnFirstFire(t *testing.T) {
	variant := &stubVariant{}
	tracker := NewTracker(variant)
	w := newTestWorld("a", "b")
	now := time.Now()

	_, done := tracker.Evaluate(w, now)
	require.False(t, done)
	require.False(t, w.Frozen())

	variant.done = true
	variant.outcome = sim.Outcome{WinnerID: "a", Ranking: []string{"a", "b"}, Reason: "last-survivor"}
	outcome, done := tracker.Evaluate(w, now)
	require.True(t, done)
	require.Equal(t, "a", outcome.WinnerID)
	require.True(t, w.Frozen())
}

func TestTrackerMemoizesOutcome(t *testing.T) {
	variant := &stubVariant{done: true, outcome: sim.Outcome{WinnerID: "a"}}
	tracker := NewTracker(variant)
	w := newTestWorld("a")
	now := time.Now()

	first, _ := tracker.Evaluate(w, now)

	// The predicate flips after the first firing; the memo must hold.
	variant.outcome = sim.Outcome{WinnerID: "b"}
	second, done := tracker.Evaluate(w, now)
	require.True(t, done)
	require.Equal(t, first, second)
}

func TestTrackerForceEnd(t *testing.T) {
	variant := &stubVariant{}
	tracker := NewTracker(variant)
	w := newTestWorld("a", "b")

	outcome := tracker.ForceEnd(w, sim.Outcome{Reason: "fault"})
	require.Equal(t, "fault", outcome.Reason)
	require.True(t, tracker.Fired())
	require.True(t, w.Frozen())

	// A later natural evaluation cannot override the forced result.
	variant.done = true
	variant.outcome = sim.Outcome{WinnerID: "a"}
	result, done := tracker.Evaluate(w, time.Now())
	require.True(t, done)
	require.Empty(t, result.WinnerID)
}

func TestTrackerReset(t *testing.T) {
	variant := &stubVariant{done: true, outcome: sim.Outcome{WinnerID: "a"}}
	tracker := NewTracker(variant)
	w := newTestWorld("a")

	_, done := tracker.Evaluate(w, time.Now())
	require.True(t, done)

	tracker.Reset()
	require.False(t, tracker.Fired())
	variant.done = false
	_, done = tracker.Evaluate(w, time.Now())
	require.False(t, done)
}

func TestRankBySurvival(t *testing.T) {
	w := newTestWorld("ann", "bea", "cid")
	// bea falls first, then cid; ann survives.
	w.MarkEliminated(w.Player("bea"))
	w.MarkEliminated(w.Player("cid"))

	require.Equal(t, []string{"ann", "cid", "bea"}, RankBySurvival(w),
		"latest elimination ranks above earlier ones")
}

func TestRankBySurvivalTieAlphabetical(t *testing.T) {
	w := newTestWorld("zoe", "amy")
	require.Equal(t, []string{"amy", "zoe"}, RankBySurvival(w))
}

func TestRankByFinishOrder(t *testing.T) {
	w := newTestWorld("ann", "bea", "cid")
	w.Player("ann").Pos = sim.Vec2{Y: 5}
	w.Player("cid").Pos = sim.Vec2{Y: 8}
	w.MarkFinished(w.Player("bea"))

	ranking := RankByFinishOrder(w, func(p *sim.PlayerState) float64 { return p.Pos.Y })
	require.Equal(t, []string{"bea", "cid", "ann"}, ranking,
		"finishers first, then the unfinished by progress")
}

func TestRankByScoreDirections(t *testing.T) {
	w := newTestWorld("ann", "bea")
	scores := map[string]float64{"ann": 3, "bea": 7}
	score := func(p *sim.PlayerState) float64 { return scores[p.ID] }

	require.Equal(t, []string{"bea", "ann"}, RankByScore(w, score, true))
	require.Equal(t, []string{"ann", "bea"}, RankByScore(w, score, false))
}
