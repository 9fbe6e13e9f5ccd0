// Package match tracks round outcomes: elimination evaluation at the tick
// boundary and best-of-N tournament progression above it.
package match

import (
	"errors"
	"fmt"
)

// Phase is the tournament state machine position for a room.
type Phase string

const (
	PhaseConfiguring Phase = "configuring"
	PhaseRoundActive Phase = "round-active"
	PhaseRoundEnded  Phase = "round-ended"
	PhaseEnded       Phase = "tournament-ended"
)

// ErrInvalidRounds rejects a round count outside the supported set. The
// check runs at configuration time, never at resolution time.
var ErrInvalidRounds = errors.New("tournament rounds must be 1, 3, or 5")

// ErrPhase reports an operation invoked in the wrong state.
var ErrPhase = errors.New("invalid tournament phase")

// RoundResult is one entry of the ordered round history.
type RoundResult struct {
	Round      int    `json:"round"`
	WinnerID   string `json:"winnerId,omitempty"`
	WinnerName string `json:"winnerName,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Decision is what the controller asks the room to do after a round result
// is recorded.
type Decision struct {
	Ended        bool
	ChampionID   string
	ChampionName string
}

// Tournament is the room-level meta state machine. Win tallies are keyed by
// display name and only ever increase within one tournament.
type Tournament struct {
	totalRounds  int
	currentRound int
	wins         map[string]int
	winnerIDs    map[string]string
	history      []RoundResult
	phase        Phase
}

// NewTournament starts in the configuring phase with a single round, the
// lobby default until the host picks a best-of.
func NewTournament() *Tournament {
	return &Tournament{
		totalRounds: 1,
		wins:        make(map[string]int),
		winnerIDs:   make(map[string]string),
		phase:       PhaseConfiguring,
	}
}

// SetTotalRounds configures the best-of length. Only 1, 3, and 5 are legal,
// and only while the room is still in the lobby.
func (t *Tournament) SetTotalRounds(n int) error {
	if t == nil {
		return ErrPhase
	}
	if t.phase != PhaseConfiguring {
		return fmt.Errorf("%w: rounds can only change while configuring", ErrPhase)
	}
	switch n {
	case 1, 3, 5:
		t.totalRounds = n
		return nil
	default:
		return fmt.Errorf("%w: got %d", ErrInvalidRounds, n)
	}
}

// TotalRounds reports the configured best-of length.
func (t *Tournament) TotalRounds() int {
	if t == nil {
		return 0
	}
	return t.totalRounds
}

// CurrentRound reports the 1-based round in progress or just finished.
func (t *Tournament) CurrentRound() int {
	if t == nil {
		return 0
	}
	return t.currentRound
}

// Phase reports the state machine position.
func (t *Tournament) Phase() Phase {
	if t == nil {
		return PhaseEnded
	}
	return t.phase
}

// WinTarget is the tally that ends the tournament early: ceil(totalRounds/2).
func (t *Tournament) WinTarget() int {
	if t == nil {
		return 0
	}
	return t.totalRounds/2 + 1
}

// Wins returns a copy of the per-name tally.
func (t *Tournament) Wins() map[string]int {
	if t == nil {
		return nil
	}
	out := make(map[string]int, len(t.wins))
	for name, count := range t.wins {
		out[name] = count
	}
	return out
}

// History returns a copy of the ordered round results.
func (t *Tournament) History() []RoundResult {
	if t == nil {
		return nil
	}
	out := make([]RoundResult, len(t.history))
	copy(out, t.history)
	return out
}

// BeginRound advances into round-active. Legal from configuring (first
// round) or round-ended (subsequent rounds) while rounds remain.
func (t *Tournament) BeginRound() error {
	if t == nil {
		return ErrPhase
	}
	switch t.phase {
	case PhaseConfiguring, PhaseRoundEnded:
	default:
		return fmt.Errorf("%w: cannot begin round from %s", ErrPhase, t.phase)
	}
	if t.currentRound >= t.totalRounds {
		return fmt.Errorf("%w: all %d rounds played", ErrPhase, t.totalRounds)
	}
	t.currentRound++
	t.phase = PhaseRoundActive
	return nil
}

// RecordResult stores a round winner, bumps their tally, and decides
// whether another round is needed. An empty winner records a draw with no
// tally change. The tournament ends when a tally reaches the win target or
// the configured rounds are exhausted.
func (t *Tournament) RecordResult(winnerID, winnerName, reason string) (Decision, error) {
	if t == nil {
		return Decision{}, ErrPhase
	}
	if t.phase != PhaseRoundActive {
		return Decision{}, fmt.Errorf("%w: no round active", ErrPhase)
	}
	t.history = append(t.history, RoundResult{
		Round:      t.currentRound,
		WinnerID:   winnerID,
		WinnerName: winnerName,
		Reason:     reason,
	})
	if winnerName != "" {
		t.wins[winnerName]++
		t.winnerIDs[winnerName] = winnerID
	}
	t.phase = PhaseRoundEnded

	if winnerName != "" && t.wins[winnerName] >= t.WinTarget() {
		t.phase = PhaseEnded
		return Decision{Ended: true, ChampionID: winnerID, ChampionName: winnerName}, nil
	}
	if t.currentRound >= t.totalRounds {
		t.phase = PhaseEnded
		name, id := t.leader()
		return Decision{Ended: true, ChampionID: id, ChampionName: name}, nil
	}
	return Decision{}, nil
}

// leader picks the highest tally; a tie breaks alphabetically on name so
// exhausted tournaments still produce exactly one champion.
func (t *Tournament) leader() (name, id string) {
	best := -1
	for candidate, count := range t.wins {
		if count > best || (count == best && (name == "" || candidate < name)) {
			best = count
			name = candidate
		}
	}
	return name, t.winnerIDs[name]
}

// ResetForRematch rewinds to configuring with the same best-of length,
// clearing tallies and history.
func (t *Tournament) ResetForRematch() {
	if t == nil {
		return
	}
	t.currentRound = 0
	t.wins = make(map[string]int)
	t.winnerIDs = make(map[string]string)
	t.history = nil
	t.phase = PhaseConfiguring
}
