package combat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"partyhall/server/internal/modes"
	"partyhall/server/internal/sim"
)

// arenaPair builds a world with the arena tuning and two fighters a step
// apart, the canonical dueling setup.
func arenaPair(t *testing.T) (*sim.World, *Queue, *sim.PlayerState, *sim.PlayerState) {
	t.Helper()
	arena := modes.NewArena()
	w := sim.NewWorld(arena.Config())
	a := &sim.PlayerState{ID: "a", Name: "a", Seat: 1, Pos: sim.Vec2{X: 5, Y: 5},
		Health: 100, MaxHealth: 100, Stamina: 100, MaxStamina: 100}
	b := &sim.PlayerState{ID: "b", Name: "b", Seat: 2, Pos: sim.Vec2{X: 6, Y: 5},
		Health: 100, MaxHealth: 100, Stamina: 100, MaxStamina: 100}
	a.Facing = sim.FacingAngle(b.Pos.Sub(a.Pos))
	b.Facing = sim.FacingAngle(a.Pos.Sub(b.Pos))
	w.AddPlayer(a)
	w.AddPlayer(b)
	return w, NewQueue(arena.Actions()), a, b
}

func TestEnqueueDeductsStaminaAtDeclaration(t *testing.T) {
	w, q, a, _ := arenaPair(t)
	now := time.Now()

	enq, reject := q.Enqueue(w, "a", sim.ActionPunch, now)
	require.Empty(t, reject)
	require.Equal(t, 90.0, a.Stamina, "cost is paid up front, not at resolution")
	require.Equal(t, now.Add(250*time.Millisecond), enq.ResolveAt)
	require.Equal(t, 1, q.Pending())
}

func TestStrikeResolvesFromCapturedPose(t *testing.T) {
	w, q, a, b := arenaPair(t)
	now := time.Now()

	_, reject := q.Enqueue(w, "a", sim.ActionPunch, now)
	require.Empty(t, reject)

	// The attacker is shoved across the ring during the wind-up; the hit
	// still resolves from where the punch was thrown.
	a.Pos = sim.Vec2{X: 1, Y: 1}

	hits := q.Resolve(w, now.Add(250*time.Millisecond))
	require.Len(t, hits, 1)
	require.Equal(t, "b", hits[0].TargetID)
	require.Equal(t, 10.0, hits[0].Damage)
	require.False(t, hits[0].Blocked)
	require.Equal(t, 90.0, b.Health)
	require.Positive(t, b.Vel.X, "knockback pushes away from the captured position")
	require.Equal(t, 0, q.Pending())
}

func TestStrikeMissesOutsideRangeOrArc(t *testing.T) {
	w, q, _, b := arenaPair(t)
	now := time.Now()

	// Move the defender just past punch range before declaration.
	b.Pos = sim.Vec2{X: 6.3, Y: 5}
	_, reject := q.Enqueue(w, "a", sim.ActionPunch, now)
	require.Empty(t, reject)
	require.Empty(t, q.Resolve(w, now.Add(time.Second)))
	require.Equal(t, 100.0, b.Health)

	// In range but behind the attacker.
	b.Pos = sim.Vec2{X: 4.2, Y: 5}
	_, reject = q.Enqueue(w, "a", sim.ActionPunch, now.Add(2*time.Second))
	require.Empty(t, reject)
	require.Empty(t, q.Resolve(w, now.Add(3*time.Second)))
}

func TestBlockedHitMitigation(t *testing.T) {
	w, q, _, b := arenaPair(t)
	now := time.Now()
	b.Blocking = true

	_, reject := q.Enqueue(w, "a", sim.ActionPunch, now)
	require.Empty(t, reject)
	hits := q.Resolve(w, now.Add(250*time.Millisecond))

	require.Len(t, hits, 1)
	require.True(t, hits[0].Blocked)
	require.Equal(t, 2.0, hits[0].Damage, "blocked damage is 20%")
	require.Equal(t, 98.0, b.Health)
	require.InDelta(t, 4*0.3, b.Vel.Length(), 1e-9, "blocked knockback is 30%")
	require.False(t, b.Stunned(now.Add(251*time.Millisecond)), "a blocked hit never stuns")
}

func TestUnblockedHitStuns(t *testing.T) {
	w, q, _, b := arenaPair(t)
	now := time.Now()

	q.Enqueue(w, "a", sim.ActionPunch, now)
	q.Resolve(w, now.Add(250*time.Millisecond))

	require.True(t, b.Stunned(now.Add(400*time.Millisecond)))
	require.False(t, b.Stunned(now.Add(600*time.Millisecond)))
}

func TestSharedCooldownRejectsSecondDeclaration(t *testing.T) {
	w, q, _, _ := arenaPair(t)
	now := time.Now()

	_, reject := q.Enqueue(w, "a", sim.ActionPunch, now)
	require.Empty(t, reject)

	// Cooldown is shared across kinds.
	_, reject = q.Enqueue(w, "a", sim.ActionHeavy, now.Add(100*time.Millisecond))
	require.Equal(t, RejectCooldown, reject)

	_, reject = q.Enqueue(w, "a", sim.ActionPunch, now.Add(700*time.Millisecond))
	require.Empty(t, reject)
}

func TestInsufficientStaminaRejectsWithoutDeduction(t *testing.T) {
	w, q, a, _ := arenaPair(t)
	now := time.Now()
	a.Stamina = 5

	_, reject := q.Enqueue(w, "a", sim.ActionPunch, now)
	require.Equal(t, RejectStamina, reject)
	require.Equal(t, 5.0, a.Stamina)
	require.Zero(t, q.Pending())
}

func TestUnknownKindRejected(t *testing.T) {
	w, q, _, _ := arenaPair(t)
	_, reject := q.Enqueue(w, "a", sim.ActionKind("uppercut"), time.Now())
	require.Equal(t, RejectUnknownKind, reject)
}

func TestDropActorDiscardsPendingSilently(t *testing.T) {
	w, q, _, b := arenaPair(t)
	now := time.Now()

	_, reject := q.Enqueue(w, "a", sim.ActionPunch, now)
	require.Empty(t, reject)

	// Controller disconnects mid wind-up.
	q.DropActor("a")
	w.RemovePlayer("a")

	require.Empty(t, q.Resolve(w, now.Add(time.Second)))
	require.Equal(t, 100.0, b.Health)
}

func TestGrabLinksNearestFreeTarget(t *testing.T) {
	w, q, a, b := arenaPair(t)
	now := time.Now()

	_, reject := q.Enqueue(w, "a", sim.ActionGrab, now)
	require.Empty(t, reject)
	hits := q.Resolve(w, now.Add(300*time.Millisecond))

	require.Len(t, hits, 1)
	require.Equal(t, "b", a.Grabbing)
	require.Equal(t, "a", b.GrabbedBy)
	require.False(t, b.Controllable(now.Add(time.Second)), "a grabbed player cannot steer")
}

func TestGrabReleasesAfterHoldExpires(t *testing.T) {
	w, q, a, b := arenaPair(t)
	now := time.Now()

	q.Enqueue(w, "a", sim.ActionGrab, now)
	q.Resolve(w, now.Add(300*time.Millisecond))
	require.Equal(t, "b", a.Grabbing)

	// The hold window lapses with no throw; the link must break on its own.
	q.Resolve(w, now.Add(3*time.Second))
	require.Empty(t, a.Grabbing)
	require.Empty(t, b.GrabbedBy)
}

func TestThrowDamagesAndReleases(t *testing.T) {
	w, q, a, b := arenaPair(t)
	now := time.Now()

	q.Enqueue(w, "a", sim.ActionGrab, now)
	q.Resolve(w, now.Add(300*time.Millisecond))

	b.Blocking = true // grabbed targets cannot mitigate a throw
	_, reject := q.Enqueue(w, "a", sim.ActionThrow, now.Add(1100*time.Millisecond))
	require.Empty(t, reject)
	hits := q.Resolve(w, now.Add(1300*time.Millisecond))

	require.Len(t, hits, 1)
	require.Equal(t, 28.0, hits[0].Damage)
	require.False(t, hits[0].Blocked)
	require.Empty(t, a.Grabbing)
	require.Empty(t, b.GrabbedBy)
}

func TestThrowWithoutStaminaStillReleases(t *testing.T) {
	w, q, a, b := arenaPair(t)
	now := time.Now()

	q.Enqueue(w, "a", sim.ActionGrab, now)
	q.Resolve(w, now.Add(300*time.Millisecond))
	require.Equal(t, "b", a.Grabbing)

	a.Stamina = 0
	_, reject := q.Enqueue(w, "a", sim.ActionThrow, now.Add(1100*time.Millisecond))
	require.Equal(t, RejectStamina, reject)
	// Liveness guarantee: no path leaves the pair linked forever.
	require.Empty(t, a.Grabbing)
	require.Empty(t, b.GrabbedBy)
	require.Equal(t, 100.0, b.Health)
}

func TestEscapeCountersGrabber(t *testing.T) {
	w, q, a, b := arenaPair(t)
	now := time.Now()

	q.Enqueue(w, "a", sim.ActionGrab, now)
	q.Resolve(w, now.Add(300*time.Millisecond))

	_, reject := q.Enqueue(w, "b", sim.ActionEscape, now.Add(400*time.Millisecond))
	require.Empty(t, reject)
	hits := q.Resolve(w, now.Add(400*time.Millisecond))

	require.Len(t, hits, 1)
	require.Equal(t, "a", hits[0].TargetID, "the counter lands on the grabber")
	require.Equal(t, 95.0, a.Health)
	require.True(t, a.Stunned(now.Add(time.Second)))
	require.Empty(t, a.Grabbing)
	require.Empty(t, b.GrabbedBy)
}

func TestGrabbedPlayerCanOnlyEscape(t *testing.T) {
	w, q, _, _ := arenaPair(t)
	now := time.Now()

	q.Enqueue(w, "a", sim.ActionGrab, now)
	q.Resolve(w, now.Add(300*time.Millisecond))

	_, reject := q.Enqueue(w, "b", sim.ActionPunch, now.Add(400*time.Millisecond))
	require.Equal(t, RejectGrabbed, reject)
}

func TestEscapeWithoutGrabRejected(t *testing.T) {
	w, q, _, _ := arenaPair(t)
	_, reject := q.Enqueue(w, "b", sim.ActionEscape, time.Now())
	require.Equal(t, RejectNoGrab, reject)
}

func TestEliminatedActorPendingDropped(t *testing.T) {
	w, q, a, b := arenaPair(t)
	now := time.Now()

	q.Enqueue(w, "a", sim.ActionPunch, now)
	w.MarkEliminated(a)

	require.Empty(t, q.Resolve(w, now.Add(time.Second)))
	require.Equal(t, 100.0, b.Health)
}

func TestEliminatedActorCannotDeclare(t *testing.T) {
	w, q, a, _ := arenaPair(t)
	w.MarkEliminated(a)
	_, reject := q.Enqueue(w, "a", sim.ActionPunch, time.Now())
	require.Equal(t, RejectEliminated, reject)
}

func TestResetClearsPendingAndCooldowns(t *testing.T) {
	w, q, _, _ := arenaPair(t)
	now := time.Now()

	q.Enqueue(w, "a", sim.ActionPunch, now)
	q.Reset()

	require.Zero(t, q.Pending())
	_, reject := q.Enqueue(w, "a", sim.ActionPunch, now.Add(time.Millisecond))
	require.Empty(t, reject, "cooldowns do not survive a round reset")
}
