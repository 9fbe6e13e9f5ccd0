package match

import (
	"sort"
	"time"

	"partyhall/server/internal/sim"
)

// Tracker evaluates a variant's terminal predicate after each tick and
// freezes the world once it fires. Evaluation after the first firing keeps
// returning the memoized outcome, so concurrent end paths (elimination,
// disconnect, explicit stop) see one consistent result.
type Tracker struct {
	variant sim.Variant
	fired   bool
	outcome sim.Outcome
}

// NewTracker wraps a variant's terminal predicate.
func NewTracker(variant sim.Variant) *Tracker {
	return &Tracker{variant: variant}
}

// Evaluate runs the predicate against the post-tick state.
func (t *Tracker) Evaluate(w *sim.World, now time.Time) (sim.Outcome, bool) {
	if t == nil || t.variant == nil {
		return sim.Outcome{}, false
	}
	if t.fired {
		return t.outcome, true
	}
	outcome, done := t.variant.CheckTerminal(w, now)
	if !done {
		return sim.Outcome{}, false
	}
	t.fired = true
	t.outcome = outcome
	w.Freeze()
	return outcome, true
}

// Fired reports whether the terminal condition has already been raised.
func (t *Tracker) Fired() bool {
	return t != nil && t.fired
}

// Reset rearms the tracker for the next round.
func (t *Tracker) Reset() {
	if t == nil {
		return
	}
	t.fired = false
	t.outcome = sim.Outcome{}
}

// ForceEnd records an externally imposed outcome, used when a tick panics or
// the roster collapses and the round must end with no winner.
func (t *Tracker) ForceEnd(w *sim.World, outcome sim.Outcome) sim.Outcome {
	if t == nil {
		return outcome
	}
	if t.fired {
		return t.outcome
	}
	t.fired = true
	t.outcome = outcome
	if w != nil {
		w.Freeze()
	}
	return outcome
}

// RankBySurvival orders survivors first, then the fallen in reverse
// elimination order (latest out ranks highest); remaining ties break
// alphabetically on name. This is the documented combat-mode rule.
func RankBySurvival(w *sim.World) []string {
	players := w.Players()
	sorted := make([]*sim.PlayerState, len(players))
	copy(sorted, players)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Eliminated != b.Eliminated {
			return !a.Eliminated
		}
		if a.Eliminated && a.ElimOrder != b.ElimOrder {
			return a.ElimOrder > b.ElimOrder
		}
		return a.Name < b.Name
	})
	return ids(sorted)
}

// RankByFinishOrder orders finishers by assigned rank, then the unfinished
// by a caller-provided progress score (higher is better), ties alphabetical.
func RankByFinishOrder(w *sim.World, progress func(*sim.PlayerState) float64) []string {
	players := w.Players()
	sorted := make([]*sim.PlayerState, len(players))
	copy(sorted, players)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Finished != b.Finished {
			return a.Finished
		}
		if a.Finished {
			return a.Rank < b.Rank
		}
		pa, pb := progress(a), progress(b)
		if pa != pb {
			return pa > pb
		}
		return a.Name < b.Name
	})
	return ids(sorted)
}

// RankByScore orders the full roster by a scoring function. higherBetter
// selects the direction; ties break alphabetically on name.
func RankByScore(w *sim.World, score func(*sim.PlayerState) float64, higherBetter bool) []string {
	players := w.Players()
	sorted := make([]*sim.PlayerState, len(players))
	copy(sorted, players)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		sa, sb := score(a), score(b)
		if sa != sb {
			if higherBetter {
				return sa > sb
			}
			return sa < sb
		}
		return a.Name < b.Name
	})
	return ids(sorted)
}

func ids(players []*sim.PlayerState) []string {
	out := make([]string, 0, len(players))
	for _, p := range players {
		out = append(out, p.ID)
	}
	return out
}
