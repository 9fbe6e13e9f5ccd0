package modes

import (
	"time"

	"partyhall/server/internal/match"
	"partyhall/server/internal/sim"
)

const (
	tagTickRate      = 30
	tagMaxPlayers    = 6
	tagFieldSize     = 16.0
	tagBaseSpeed     = 3.2
	tagItSpeedBonus  = 0.6
	tagRange         = 1.0
	tagTransferPause = 1500 * time.Millisecond
	tagTimeLimit     = 60 * time.Second
)

// Tag is the timed chase variant: whoever accumulates the least time as "it"
// wins when the clock runs out.
type Tag struct {
	itID       string
	itSince    time.Time
	transferAt time.Time
	itTime     map[string]time.Duration
}

// NewTag constructs the tag variant.
func NewTag() *Tag {
	return &Tag{itTime: make(map[string]time.Duration)}
}

func (t *Tag) Name() string { return "tag" }

func (t *Tag) Config() sim.Config {
	return sim.Config{
		TickRate:         tagTickRate,
		MaxPlayers:       tagMaxPlayers,
		Width:            tagFieldSize,
		Height:           tagFieldSize,
		BaseSpeed:        tagBaseSpeed,
		RunSpeed:         tagBaseSpeed + tagItSpeedBonus,
		Friction:         0.85,
		Boundary:         sim.BoundaryClamp,
		MaxHealth:        1,
		MaxStamina:       100,
		StaminaRegenPerS: 100,
		RoundTimeLimit:   tagTimeLimit,
	}
}

func (t *Tag) Actions() map[sim.ActionKind]sim.ActionSpec { return nil }

// Reset scatters the roster across the field and hands "it" to the lowest
// seat, a deterministic opener.
func (t *Tag) Reset(w *sim.World, now time.Time) {
	players := w.Players()
	spacing := tagFieldSize / float64(len(players)+1)
	for i, p := range players {
		p.Pos = sim.Vec2{X: spacing * float64(i+1), Y: tagFieldSize / 2}
	}
	t.itTime = make(map[string]time.Duration)
	t.itID = ""
	if len(players) > 0 {
		t.itID = players[0].ID
	}
	t.itSince = now
	t.transferAt = now.Add(tagTransferPause)
}

// Step accrues "it" time and transfers the role on a proximity tag once the
// transfer pause has elapsed, so the tag cannot ping-pong within a frame.
func (t *Tag) Step(w *sim.World, ctx sim.StepContext) {
	it := w.Player(t.itID)
	if it == nil || !it.Alive() {
		t.reassignIt(w, ctx.Now)
		it = w.Player(t.itID)
		if it == nil {
			return
		}
	}
	t.itTime[t.itID] += time.Duration(ctx.Delta * float64(time.Second))

	if ctx.Now.Before(t.transferAt) {
		return
	}
	var nearest *sim.PlayerState
	best := tagRange
	for _, p := range w.Players() {
		if p.ID == t.itID || !p.Alive() {
			continue
		}
		dist := p.Pos.Sub(it.Pos).Length()
		if dist <= best {
			best = dist
			nearest = p
		}
	}
	if nearest == nil {
		return
	}
	t.itID = nearest.ID
	t.itSince = ctx.Now
	t.transferAt = ctx.Now.Add(tagTransferPause)
}

// CheckTerminal fires on the wall-clock budget; the ranking scores least
// accumulated "it" time, alphabetical on ties.
func (t *Tag) CheckTerminal(w *sim.World, now time.Time) (sim.Outcome, bool) {
	if w.RoundElapsed(now) < tagTimeLimit {
		return sim.Outcome{}, false
	}
	ranking := match.RankByScore(w, func(p *sim.PlayerState) float64 {
		return t.itTime[p.ID].Seconds()
	}, false)
	outcome := sim.Outcome{Ranking: ranking, Reason: "time-expired"}
	if len(ranking) > 0 {
		outcome.WinnerID = ranking[0]
	}
	return outcome, true
}

func (t *Tag) SnapshotFields(w *sim.World) map[string]any {
	times := make(map[string]float64, len(t.itTime))
	for id, d := range t.itTime {
		times[id] = d.Seconds()
	}
	return map[string]any{
		"it":      t.itID,
		"itSince": t.itSince.UnixMilli(),
		"itTimes": times,
	}
}

func (t *Tag) reassignIt(w *sim.World, now time.Time) {
	t.itID = ""
	for _, p := range w.Players() {
		if p.Alive() {
			t.itID = p.ID
			break
		}
	}
	t.itSince = now
	t.transferAt = now.Add(tagTransferPause)
}
