package modes

import (
	"time"

	"partyhall/server/internal/match"
	"partyhall/server/internal/sim"
)

const (
	raceTickRate   = 30
	raceMaxPlayers = 8
	raceWidth      = 8.0
	raceLength     = 40.0
	raceFinishY    = raceLength - 2.0
	raceBaseSpeed  = 3.0
	raceRunSpeed   = 5.0
	raceFriction   = 0.85
	raceTimeLimit  = 120 * time.Second
)

// Race is the lane-sprint variant: fixed lane axis, first across the line
// wins, stragglers ranked by distance covered when the clock runs out.
type Race struct{}

// NewRace constructs the race variant.
func NewRace() *Race {
	return &Race{}
}

func (r *Race) Name() string { return "race" }

func (r *Race) Config() sim.Config {
	return sim.Config{
		TickRate:   raceTickRate,
		MaxPlayers: raceMaxPlayers,
		Width:      raceWidth,
		Height:     raceLength,
		BaseSpeed:  raceBaseSpeed,
		RunSpeed:   raceRunSpeed,
		Friction:   raceFriction,
		Boundary:   sim.BoundaryClamp,
		// Fixed lane axis: facing is never recomputed from input.
		LaneAxis:   true,
		MaxHealth:  1,
		MaxStamina: 100,
		// Sprinting is free in this variant; stamina exists only so the
		// shared snapshot shape stays uniform.
		StaminaRegenPerS: 100,
		RoundTimeLimit:   raceTimeLimit,
	}
}

func (r *Race) Actions() map[sim.ActionKind]sim.ActionSpec { return nil }

// Reset lines the roster up at the start line, one lane per seat.
func (r *Race) Reset(w *sim.World, now time.Time) {
	players := w.Players()
	laneWidth := raceWidth / float64(len(players)+1)
	for i, p := range players {
		p.Pos = sim.Vec2{X: laneWidth * float64(i+1), Y: 1}
		p.Facing = 0 // down the track
	}
}

// Step marks finish-line crossings; rank is assigned by crossing order.
func (r *Race) Step(w *sim.World, ctx sim.StepContext) {
	for _, p := range w.Players() {
		if p.Alive() && p.Pos.Y >= raceFinishY {
			w.MarkFinished(p)
		}
	}
}

// CheckTerminal ends the round when everyone has crossed, or force-finishes
// on the time budget ranked by finish order then furthest distance.
func (r *Race) CheckTerminal(w *sim.World, now time.Time) (sim.Outcome, bool) {
	allDone := true
	anyFinished := false
	for _, p := range w.Players() {
		if p.Finished {
			anyFinished = true
		} else {
			allDone = false
		}
	}
	expired := w.RoundElapsed(now) >= raceTimeLimit
	if !allDone && !expired {
		return sim.Outcome{}, false
	}

	ranking := match.RankByFinishOrder(w, func(p *sim.PlayerState) float64 {
		return p.Pos.Y
	})
	reason := "all-finished"
	if expired && !allDone {
		reason = "time-expired"
	}
	outcome := sim.Outcome{Ranking: ranking, Reason: reason}
	if len(ranking) > 0 && (anyFinished || expired) {
		outcome.WinnerID = ranking[0]
	}
	return outcome, true
}

func (r *Race) SnapshotFields(w *sim.World) map[string]any {
	progress := make(map[string]float64)
	for _, p := range w.Players() {
		pct := p.Pos.Y / raceFinishY * 100
		if pct > 100 {
			pct = 100
		}
		progress[p.ID] = pct
	}
	return map[string]any{
		"finishY":  raceFinishY,
		"progress": progress,
	}
}
