package sim

import (
	"sort"
	"time"
)

// PlayerRadius is the collision half-extent shared by every variant.
const PlayerRadius = 0.4

// World owns the authoritative roster state for one room's round. It is not
// safe for concurrent use; the room scheduler is its only caller while a
// round runs.
type World struct {
	cfg     Config
	players map[string]*PlayerState
	order   []string

	tick       uint64
	roundStart time.Time
	frozen     bool
	elimSeq    int
	finishSeq  int
}

// NewWorld constructs an empty world with the variant's tuning.
func NewWorld(cfg Config) *World {
	return &World{
		cfg:     cfg,
		players: make(map[string]*PlayerState),
	}
}

// Config returns the variant tuning the world was built with.
func (w *World) Config() Config {
	if w == nil {
		return Config{}
	}
	return w.cfg
}

// AddPlayer registers a player. Seat order determines iteration order.
func (w *World) AddPlayer(p *PlayerState) {
	if w == nil || p == nil {
		return
	}
	if _, ok := w.players[p.ID]; !ok {
		w.order = append(w.order, p.ID)
	}
	w.players[p.ID] = p
	w.sortOrder()
}

// RemovePlayer drops a player and breaks any grab link pointing at them.
func (w *World) RemovePlayer(id string) {
	if w == nil {
		return
	}
	if p, ok := w.players[id]; ok {
		if p.Grabbing != "" {
			if other := w.players[p.Grabbing]; other != nil {
				other.ReleaseGrab()
			}
		}
		if p.GrabbedBy != "" {
			if other := w.players[p.GrabbedBy]; other != nil {
				other.ReleaseGrab()
			}
		}
	}
	delete(w.players, id)
	for i, pid := range w.order {
		if pid == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
}

// Player looks up a roster entry by ID.
func (w *World) Player(id string) *PlayerState {
	if w == nil {
		return nil
	}
	return w.players[id]
}

// Players returns the roster in stable seat order.
func (w *World) Players() []*PlayerState {
	if w == nil {
		return nil
	}
	out := make([]*PlayerState, 0, len(w.order))
	for _, id := range w.order {
		if p := w.players[id]; p != nil {
			out = append(out, p)
		}
	}
	return out
}

// AlivePlayers returns the players still participating in the round.
func (w *World) AlivePlayers() []*PlayerState {
	var out []*PlayerState
	for _, p := range w.Players() {
		if p.Alive() {
			out = append(out, p)
		}
	}
	return out
}

// Tick reports the number of completed steps this round.
func (w *World) Tick() uint64 {
	if w == nil {
		return 0
	}
	return w.tick
}

// RoundElapsed reports wall-clock time since the round reset.
func (w *World) RoundElapsed(now time.Time) time.Duration {
	if w == nil || w.roundStart.IsZero() {
		return 0
	}
	return now.Sub(w.roundStart)
}

// Frozen reports whether a terminal condition stopped state mutation.
func (w *World) Frozen() bool {
	return w != nil && w.frozen
}

// Freeze halts further state mutation. Snapshots stay deliverable so the
// final frame remains visible on every client.
func (w *World) Freeze() {
	if w != nil {
		w.frozen = true
	}
}

// Reset wipes transient round state on every player while keeping identity
// and cosmetics, then rewinds the tick counter for the next round.
func (w *World) Reset(now time.Time) {
	if w == nil {
		return
	}
	for _, p := range w.players {
		p.Pos = Vec2{}
		p.Vel = Vec2{}
		p.Facing = 0
		p.Health = w.cfg.MaxHealth
		p.MaxHealth = w.cfg.MaxHealth
		p.Stamina = w.cfg.MaxStamina
		p.MaxStamina = w.cfg.MaxStamina
		p.Blocking = false
		p.StunnedUntil = time.Time{}
		p.ActingUntil = time.Time{}
		p.ReleaseGrab()
		p.Eliminated = false
		p.ElimOrder = 0
		p.Finished = false
		p.Rank = 0
	}
	w.tick = 0
	w.elimSeq = 0
	w.finishSeq = 0
	w.frozen = false
	w.roundStart = now
}

// Step advances every player by one fixed delta: steering from buffered
// input, exponential friction, integration, and boundary handling. Variant
// rule hooks run after this from the scheduler.
func (w *World) Step(ctx StepContext) {
	if w == nil || w.frozen {
		return
	}
	w.tick++
	for _, p := range w.Players() {
		if !p.Alive() {
			continue
		}
		w.stepPlayer(p, ctx.Inputs[p.ID], ctx.Now, ctx.Delta)
	}
}

func (w *World) stepPlayer(p *PlayerState, in InputState, now time.Time, delta float64) {
	dir := in.Direction()

	if p.Controllable(now) {
		// Blocking is a held stance: it survives only while stamina lasts.
		p.Blocking = in.Block && p.Stamina > 0
		if dir.X != 0 || dir.Y != 0 {
			speed := w.cfg.BaseSpeed
			if in.Run && w.cfg.RunSpeed > 0 {
				speed = w.cfg.RunSpeed
			}
			p.Vel = dir.Scale(speed)
			if !w.cfg.LaneAxis {
				p.Facing = FacingAngle(dir)
			}
		}
	} else {
		p.Blocking = false
		damping := w.cfg.StunDamping
		if damping <= 0 {
			damping = 0.6
		}
		p.Vel = p.Vel.Scale(damping)
	}

	if w.cfg.Friction > 0 {
		p.Vel = p.Vel.Scale(w.cfg.Friction)
	}
	p.Pos = p.Pos.Add(p.Vel.Scale(delta))
	w.applyBoundary(p)

	if p.Blocking {
		if !p.DrainStamina(w.cfg.BlockDrainPerS, delta) {
			p.Blocking = false
		}
	} else if !p.Acting(now) {
		p.RegenStamina(w.cfg.StaminaRegenPerS, delta)
	}
}

// applyBoundary clamps or reflects at arena edges. A bouncing boundary lets
// knockback past it when the offending velocity component exceeds
// RopeBreakSpeed, which is how ring-outs happen in roped variants.
func (w *World) applyBoundary(p *PlayerState) {
	minX, maxX := PlayerRadius, w.cfg.Width-PlayerRadius
	minY, maxY := PlayerRadius, w.cfg.Height-PlayerRadius

	switch w.cfg.Boundary {
	case BoundaryBounce:
		if p.Pos.X < minX && !w.breaksRope(p.Vel.X) {
			p.Pos.X = minX
			p.Vel.X = -p.Vel.X * w.cfg.Restitution
		} else if p.Pos.X > maxX && !w.breaksRope(p.Vel.X) {
			p.Pos.X = maxX
			p.Vel.X = -p.Vel.X * w.cfg.Restitution
		}
		if p.Pos.Y < minY && !w.breaksRope(p.Vel.Y) {
			p.Pos.Y = minY
			p.Vel.Y = -p.Vel.Y * w.cfg.Restitution
		} else if p.Pos.Y > maxY && !w.breaksRope(p.Vel.Y) {
			p.Pos.Y = maxY
			p.Vel.Y = -p.Vel.Y * w.cfg.Restitution
		}
	default:
		if p.Pos.X < minX {
			p.Pos.X = minX
			p.Vel.X = 0
		} else if p.Pos.X > maxX {
			p.Pos.X = maxX
			p.Vel.X = 0
		}
		if p.Pos.Y < minY {
			p.Pos.Y = minY
			p.Vel.Y = 0
		} else if p.Pos.Y > maxY {
			p.Pos.Y = maxY
			p.Vel.Y = 0
		}
	}
}

func (w *World) breaksRope(component float64) bool {
	if w.cfg.RopeBreakSpeed <= 0 {
		return false
	}
	if component < 0 {
		component = -component
	}
	return component > w.cfg.RopeBreakSpeed
}

// OutOfBounds reports whether the player has left the playable area beyond
// the variant's ring-out margin.
func (w *World) OutOfBounds(p *PlayerState) bool {
	if w == nil || p == nil || w.cfg.OutMargin <= 0 {
		return false
	}
	return p.Pos.X < -w.cfg.OutMargin ||
		p.Pos.X > w.cfg.Width+w.cfg.OutMargin ||
		p.Pos.Y < -w.cfg.OutMargin ||
		p.Pos.Y > w.cfg.Height+w.cfg.OutMargin
}

// MarkEliminated flags the player and records elimination order for ranking.
func (w *World) MarkEliminated(p *PlayerState) {
	if w == nil || p == nil || p.Eliminated {
		return
	}
	w.elimSeq++
	p.Eliminated = true
	p.ElimOrder = w.elimSeq
	p.Blocking = false
	if p.Grabbing != "" {
		if other := w.players[p.Grabbing]; other != nil {
			other.ReleaseGrab()
		}
	}
	if p.GrabbedBy != "" {
		if other := w.players[p.GrabbedBy]; other != nil {
			other.ReleaseGrab()
		}
	}
	p.ReleaseGrab()
}

// MarkFinished flags an objective completion and assigns rank by finish
// order.
func (w *World) MarkFinished(p *PlayerState) {
	if w == nil || p == nil || p.Finished {
		return
	}
	w.finishSeq++
	p.Finished = true
	p.Rank = w.finishSeq
}

func (w *World) sortOrder() {
	sort.Slice(w.order, func(i, j int) bool {
		a, b := w.players[w.order[i]], w.players[w.order[j]]
		if a == nil || b == nil {
			return a != nil
		}
		return a.Seat < b.Seat
	})
}
