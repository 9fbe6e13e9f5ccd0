package room

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"partyhall/server/internal/combat"
	"partyhall/server/internal/sim"
)

type fakeSender struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (s *fakeSender) Send(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	frame := make([]byte, len(data))
	copy(frame, data)
	s.frames = append(s.frames, frame)
	return true
}

func (s *fakeSender) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *fakeSender) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// types decodes the type tag of every received frame.
func (s *fakeSender) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, frame := range s.frames {
		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(frame, &envelope); err == nil {
			out = append(out, envelope.Type)
		}
	}
	return out
}

func (s *fakeSender) sawType(want string) bool {
	for _, typ := range s.types() {
		if typ == want {
			return true
		}
	}
	return false
}

// fakeVariant ticks fast and ends the round on demand.
type fakeVariant struct {
	terminal  atomic.Bool
	panicStep atomic.Bool
}

func (v *fakeVariant) Name() string { return "fake" }

func (v *fakeVariant) Config() sim.Config {
	return sim.Config{
		TickRate:         100,
		MaxPlayers:       4,
		Width:            10,
		Height:           10,
		BaseSpeed:        3,
		Friction:         0.85,
		MaxHealth:        100,
		MaxStamina:       100,
		StaminaRegenPerS: 20,
	}
}

func (v *fakeVariant) Actions() map[sim.ActionKind]sim.ActionSpec {
	return map[sim.ActionKind]sim.ActionSpec{
		sim.ActionPunch: {
			Kind:        sim.ActionPunch,
			Damage:      10,
			Range:       1.2,
			HalfArc:     1,
			WindUp:      10 * time.Millisecond,
			Cooldown:    50 * time.Millisecond,
			StaminaCost: 10,
		},
	}
}

func (v *fakeVariant) Reset(*sim.World, time.Time) {}

func (v *fakeVariant) Step(*sim.World, sim.StepContext) {
	if v.panicStep.Load() {
		panic("fake variant fault")
	}
}

func (v *fakeVariant) CheckTerminal(w *sim.World, _ time.Time) (sim.Outcome, bool) {
	if !v.terminal.Load() {
		return sim.Outcome{}, false
	}
	var ranking []string
	for _, p := range w.Players() {
		ranking = append(ranking, p.ID)
	}
	outcome := sim.Outcome{Ranking: ranking, Reason: "test-over"}
	if len(ranking) > 0 {
		outcome.WinnerID = ranking[0]
	}
	return outcome, true
}

func (v *fakeVariant) SnapshotFields(*sim.World) map[string]any { return nil }

func newTestRoom(t *testing.T) (*Room, *fakeVariant, *fakeSender) {
	t.Helper()
	variant := &fakeVariant{}
	host := &fakeSender{}
	r := NewRoom("TEST1", variant, "host", host, Deps{}, nil)
	t.Cleanup(func() {
		r.Stop()
		select {
		case <-r.Done():
		case <-time.After(2 * time.Second):
			t.Fatal("room did not shut down")
		}
	})
	return r, variant, host
}

func joinReady(t *testing.T, r *Room, id string) *fakeSender {
	t.Helper()
	sender := &fakeSender{}
	_, _, err := r.Join(id, id, sender)
	require.NoError(t, err)
	require.NoError(t, r.SetReady(id, true))
	return sender
}

func TestJoinAssignsSeatsAndBroadcastsRoster(t *testing.T) {
	r, _, host := newTestRoom(t)

	info, snap, err := r.Join("p1", "Ann", &fakeSender{})
	require.NoError(t, err)
	require.Equal(t, 1, info.Seat)
	require.Equal(t, "Ann", info.Name)
	require.NotEmpty(t, info.Color)
	require.Len(t, snap.Players, 1)

	info2, _, err := r.Join("p2", "Ann", &fakeSender{})
	require.NoError(t, err)
	require.Equal(t, 2, info2.Seat)
	require.NotEqual(t, "Ann", info2.Name, "duplicate display names are disambiguated")

	require.True(t, host.sawType("room-update"))
}

func TestJoinRejectedWhenFull(t *testing.T) {
	r, _, _ := newTestRoom(t)
	for _, id := range []string{"p1", "p2", "p3", "p4"} {
		_, _, err := r.Join(id, id, &fakeSender{})
		require.NoError(t, err)
	}
	_, _, err := r.Join("p5", "p5", &fakeSender{})
	require.ErrorIs(t, err, ErrRoomFull)
}

func TestStartValidation(t *testing.T) {
	r, _, _ := newTestRoom(t)

	require.ErrorIs(t, r.Start("host"), ErrEmptyRoster)
	require.ErrorIs(t, r.Start("p1"), ErrUnauthorized)

	_, _, err := r.Join("p1", "Ann", &fakeSender{})
	require.NoError(t, err)
	require.ErrorIs(t, r.Start("host"), ErrNotReady)

	require.NoError(t, r.SetReady("p1", true))
	require.NoError(t, r.Start("host"))
	require.Equal(t, string(PhasePlaying), r.Snapshot().Phase)

	require.ErrorIs(t, r.Start("host"), ErrGameInProgress)
}

func TestJoinRejectedWhileInProgress(t *testing.T) {
	r, _, _ := newTestRoom(t)
	joinReady(t, r, "p1")
	require.NoError(t, r.Start("host"))

	_, _, err := r.Join("late", "Late", &fakeSender{})
	require.ErrorIs(t, err, ErrGameInProgress)
}

func TestSetRoundsHostOnlyAndValidated(t *testing.T) {
	r, _, _ := newTestRoom(t)
	joinReady(t, r, "p1")

	require.ErrorIs(t, r.SetRounds("p1", 3), ErrUnauthorized)
	require.ErrorIs(t, r.SetRounds("host", 4), ErrInvalidConfiguration)
	require.NoError(t, r.SetRounds("host", 3))
	require.Equal(t, 3, r.Snapshot().TotalRounds)
}

func TestCosmeticsLobbyOnly(t *testing.T) {
	r, _, _ := newTestRoom(t)
	joinReady(t, r, "p1")

	require.NoError(t, r.SelectCosmetic("p1", "#123456"))
	require.NoError(t, r.Start("host"))
	require.ErrorIs(t, r.SelectCosmetic("p1", "#654321"), ErrGameInProgress)
}

func TestRoundEndsAndTournamentConcludes(t *testing.T) {
	r, variant, host := newTestRoom(t)
	joinReady(t, r, "p1")
	joinReady(t, r, "p2")

	require.NoError(t, r.Start("host"))
	require.True(t, host.sawType("round-starting"))

	variant.terminal.Store(true)

	// Best-of-1: the round result decides the tournament and the room
	// returns to the lobby for a rematch.
	require.Eventually(t, func() bool {
		return r.Snapshot().Phase == string(PhaseLobby)
	}, 2*time.Second, 10*time.Millisecond)

	require.True(t, host.sawType("state"))
	require.True(t, host.sawType("round-ended"))
	require.True(t, host.sawType("tournament-ended"))

	snap := r.Snapshot()
	require.Zero(t, snap.CurrentRound, "rematch reset rewinds the tournament")
	for _, p := range snap.Players {
		require.False(t, p.Ready, "ready flags clear between tournaments")
	}
}

func TestIntermissionSchedulesNextRound(t *testing.T) {
	variant := &fakeVariant{}
	host := &fakeSender{}
	r := NewRoom("TEST4", variant, "host", host, Deps{Intermission: 20 * time.Millisecond}, nil)
	t.Cleanup(func() {
		r.Stop()
		<-r.Done()
	})
	joinReady(t, r, "p1")
	joinReady(t, r, "p2")

	require.NoError(t, r.SetRounds("host", 3))
	require.NoError(t, r.Start("host"))
	variant.terminal.Store(true)

	// Round 1 ends, the scheduled intermission starts round 2, and p1's
	// second win closes out the best-of-3 without a third round.
	require.Eventually(t, func() bool {
		return host.sawType("tournament-ended")
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return r.Snapshot().Phase == string(PhaseLobby)
	}, 2*time.Second, 10*time.Millisecond)

	starts, ends := 0, 0
	for _, typ := range host.types() {
		switch typ {
		case "round-starting":
			starts++
		case "round-ended":
			ends++
		}
	}
	require.Equal(t, 2, starts, "round 2 starts after the intermission, round 3 never does")
	require.Equal(t, 2, ends)
}

func TestTickPanicEndsRoundWithoutWinner(t *testing.T) {
	r, variant, host := newTestRoom(t)
	joinReady(t, r, "p1")
	joinReady(t, r, "p2")

	variant.panicStep.Store(true)
	require.NoError(t, r.Start("host"))

	require.Eventually(t, func() bool {
		return r.Snapshot().Phase == string(PhaseLobby)
	}, 2*time.Second, 10*time.Millisecond)

	require.True(t, host.sawType("round-ended"))
	require.Empty(t, r.Snapshot().Wins, "a faulted round records no winner")

	// The room survives the fault: lobby operations still work.
	require.NoError(t, r.SetReady("p1", true))
}

func TestTickPanicIsolatedBetweenRooms(t *testing.T) {
	faulty, faultyVariant, _ := newTestRoom(t)
	healthyVariant := &fakeVariant{}
	healthy := NewRoom("TEST2", healthyVariant, "host2", &fakeSender{}, Deps{}, nil)
	t.Cleanup(func() {
		healthy.Stop()
		<-healthy.Done()
	})

	joinReady(t, faulty, "p1")
	hs := joinReady(t, healthy, "q1")

	faultyVariant.panicStep.Store(true)
	require.NoError(t, faulty.Start("host"))
	require.NoError(t, healthy.Start("host2"))

	require.Eventually(t, func() bool {
		return faulty.Snapshot().Phase == string(PhaseLobby)
	}, 2*time.Second, 10*time.Millisecond)

	// The healthy room keeps ticking and broadcasting.
	require.Equal(t, string(PhasePlaying), healthy.Snapshot().Phase)
	before := len(hs.types())
	require.Eventually(t, func() bool {
		return len(hs.types()) > before
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAttackAcceptedAndRejected(t *testing.T) {
	r, _, host := newTestRoom(t)
	joinReady(t, r, "p1")
	joinReady(t, r, "p2")

	_, err := r.Attack("p1", sim.ActionPunch)
	require.ErrorIs(t, err, ErrBadRequest, "no attacks in the lobby")

	require.NoError(t, r.Start("host"))

	_, err = r.Attack("p1", sim.ActionPunch)
	require.NoError(t, err)
	require.True(t, host.sawType("attack-started"))

	_, err = r.Attack("p1", sim.ActionPunch)
	var rejected *ActionRejectedError
	require.ErrorAs(t, err, &rejected, "second declaration inside the cooldown window")

	_, err = r.Attack("ghost", sim.ActionPunch)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestActionRejectionFoldsIntoErrorTaxonomy(t *testing.T) {
	require.ErrorIs(t, &ActionRejectedError{Reason: combat.RejectStamina}, ErrInsufficientResource)
	require.ErrorIs(t, &ActionRejectedError{Reason: combat.RejectCooldown}, ErrBadRequest)
}

func TestLeaveDropsPlayerState(t *testing.T) {
	r, _, _ := newTestRoom(t)
	sender := &fakeSender{}
	_, _, err := r.Join("p1", "Ann", sender)
	require.NoError(t, err)

	r.Leave("p1")
	require.True(t, sender.Closed())
	require.Empty(t, r.Snapshot().Players)
}

func TestStopIsIdempotentAndClosesSessions(t *testing.T) {
	variant := &fakeVariant{}
	host := &fakeSender{}
	var closedWith []string
	done := make(chan struct{})
	r := NewRoom("TEST3", variant, "host", host, Deps{}, func(_ *Room, remaining []string) {
		closedWith = remaining
		close(done)
	})
	member := &fakeSender{}
	_, _, err := r.Join("p1", "Ann", member)
	require.NoError(t, err)

	r.Stop()
	r.Stop()
	r.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("onClose never fired")
	}
	<-r.Done()

	require.Equal(t, []string{"p1"}, closedWith)
	require.True(t, host.sawType("room-closed"))
	require.True(t, member.sawType("room-closed"))
	require.True(t, member.Closed())

	_, _, err = r.Join("p2", "Late", &fakeSender{})
	require.ErrorIs(t, err, ErrRoomNotFound)
}

func TestInputIgnoredForNonMembers(t *testing.T) {
	r, _, _ := newTestRoom(t)
	up := true
	// Must not panic or register anything.
	r.Input("ghost", sim.InputPatch{Up: &up})
}
