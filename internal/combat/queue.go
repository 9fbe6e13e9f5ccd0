// Package combat resolves deferred attack actions against a room's world
// state. Declaring an action and landing its effect are decoupled by a
// per-kind wind-up so hits line up with the impact frame and defenders get a
// reaction window.
package combat

import (
	"time"

	"partyhall/server/internal/sim"
)

// RejectReason explains why an enqueue was refused. Rejections are reported
// to the declaring connection only; they never raise an error on the tick
// path.
type RejectReason string

const (
	RejectUnknownKind RejectReason = "unknown_kind"
	RejectEliminated  RejectReason = "eliminated"
	RejectCooldown    RejectReason = "cooldown"
	RejectStamina     RejectReason = "insufficient_stamina"
	RejectGrabbed     RejectReason = "grabbed"
	RejectNoGrab      RejectReason = "no_grab"
)

// Enqueued describes an accepted declaration, echoed back to the actor and
// broadcast as attack-started.
type Enqueued struct {
	Kind      sim.ActionKind
	Pos       sim.Vec2
	Facing    float64
	ResolveAt time.Time
}

// pendingAction captures the actor's pose at declaration time. Resolution
// always measures from this pose, not the current one, which closes the
// attack-teleport exploit and makes hit classification independent of when
// inside the delay window it runs.
type pendingAction struct {
	actorID string
	spec    sim.ActionSpec
	pos     sim.Vec2
	facing  float64
	dueAt   time.Time
}

// Queue is the per-room FIFO of pending actions plus per-actor cooldown
// bookkeeping. It is driven by the room scheduler and is not safe for
// concurrent use.
type Queue struct {
	specs     map[sim.ActionKind]sim.ActionSpec
	pending   []pendingAction
	cooldowns map[string]time.Time
}

// NewQueue builds a queue over a variant's attack table. A nil table yields
// a queue that rejects everything, which is what non-combat variants get.
func NewQueue(specs map[sim.ActionKind]sim.ActionSpec) *Queue {
	return &Queue{
		specs:     specs,
		cooldowns: make(map[string]time.Time),
	}
}

// Pending reports the number of unresolved actions.
func (q *Queue) Pending() int {
	if q == nil {
		return 0
	}
	return len(q.pending)
}

// Enqueue validates and stages an action. The stamina cost is deducted here,
// at declaration time, so accounting cannot be dodged by disconnecting
// before resolution. Attack kinds share one cooldown window per actor.
func (q *Queue) Enqueue(w *sim.World, actorID string, kind sim.ActionKind, now time.Time) (Enqueued, RejectReason) {
	if q == nil {
		return Enqueued{}, RejectUnknownKind
	}
	spec, ok := q.specs[kind]
	if !ok {
		return Enqueued{}, RejectUnknownKind
	}
	actor := w.Player(actorID)
	if actor == nil || !actor.Alive() {
		return Enqueued{}, RejectEliminated
	}
	if actor.GrabbedBy != "" && !spec.Escape {
		return Enqueued{}, RejectGrabbed
	}
	if spec.Escape && actor.GrabbedBy == "" {
		return Enqueued{}, RejectNoGrab
	}
	if spec.Throw && actor.Grabbing == "" {
		return Enqueued{}, RejectNoGrab
	}
	if until, ok := q.cooldowns[actorID]; ok && now.Before(until) {
		return Enqueued{}, RejectCooldown
	}
	if !actor.SpendStamina(spec.StaminaCost) {
		if spec.Throw {
			// The release must never be skippable even when the throw
			// cannot be paid for, or the pair would stay linked forever.
			q.releaseLink(w, actor)
		}
		return Enqueued{}, RejectStamina
	}

	q.cooldowns[actorID] = now.Add(spec.Cooldown)
	if spec.ActingLock > 0 {
		actor.ActingUntil = now.Add(spec.ActingLock)
	}
	actor.Blocking = false

	entry := pendingAction{
		actorID: actorID,
		spec:    spec,
		pos:     actor.Pos,
		facing:  actor.Facing,
		dueAt:   now.Add(spec.WindUp),
	}
	q.pending = append(q.pending, entry)
	return Enqueued{Kind: kind, Pos: entry.pos, Facing: entry.facing, ResolveAt: entry.dueAt}, ""
}

// Resolve releases expired grab links, then applies every action whose
// wind-up has elapsed. Actions referencing actors who have since left or
// been eliminated are dropped, never resolved against an absent body.
func (q *Queue) Resolve(w *sim.World, now time.Time) []sim.HitResult {
	if q == nil {
		return nil
	}
	q.releaseExpiredGrabs(w, now)

	var results []sim.HitResult
	kept := q.pending[:0]
	for _, entry := range q.pending {
		if now.Before(entry.dueAt) {
			kept = append(kept, entry)
			continue
		}
		actor := w.Player(entry.actorID)
		if actor == nil || actor.Eliminated {
			continue
		}
		switch {
		case entry.spec.Escape:
			results = append(results, q.resolveEscape(w, actor, entry, now)...)
		case entry.spec.Throw:
			results = append(results, q.resolveThrow(w, actor, entry, now)...)
		case entry.spec.Grab:
			results = append(results, q.resolveGrab(w, actor, entry, now)...)
		default:
			results = append(results, q.resolveStrike(w, actor, entry, now)...)
		}
	}
	q.pending = kept
	return results
}

// DropActor discards the actor's staged actions, used when a controller
// disconnects mid wind-up.
func (q *Queue) DropActor(actorID string) {
	if q == nil {
		return
	}
	kept := q.pending[:0]
	for _, entry := range q.pending {
		if entry.actorID != actorID {
			kept = append(kept, entry)
		}
	}
	q.pending = kept
	delete(q.cooldowns, actorID)
}

// Reset clears staged actions and cooldowns between rounds.
func (q *Queue) Reset() {
	if q == nil {
		return
	}
	q.pending = nil
	q.cooldowns = make(map[string]time.Time)
}

func (q *Queue) resolveStrike(w *sim.World, actor *sim.PlayerState, entry pendingAction, now time.Time) []sim.HitResult {
	var results []sim.HitResult
	for _, target := range w.Players() {
		if target.ID == actor.ID || !target.Alive() {
			continue
		}
		if target.Pos.Sub(entry.pos).Length() > entry.spec.Range {
			continue
		}
		if !sim.WithinArc(entry.pos, entry.facing, entry.spec.HalfArc, target.Pos) {
			continue
		}
		results = append(results, applyHit(w, entry, actor, target, now, true))
	}
	return results
}

func (q *Queue) resolveGrab(w *sim.World, actor *sim.PlayerState, entry pendingAction, now time.Time) []sim.HitResult {
	if actor.Grabbing != "" || actor.GrabbedBy != "" {
		return nil
	}
	var nearest *sim.PlayerState
	best := entry.spec.GrabRange
	for _, target := range w.Players() {
		if target.ID == actor.ID || !target.Alive() {
			continue
		}
		if target.Grabbing != "" || target.GrabbedBy != "" {
			continue
		}
		dist := target.Pos.Sub(entry.pos).Length()
		if dist <= best {
			best = dist
			nearest = target
		}
	}
	if nearest == nil {
		return nil
	}
	actor.Grabbing = nearest.ID
	nearest.GrabbedBy = actor.ID
	actor.GrabReleaseAt = now.Add(entry.spec.GrabHold)
	return []sim.HitResult{{
		AttackerID: actor.ID,
		TargetID:   nearest.ID,
		Kind:       entry.spec.Kind,
		Health:     nearest.Health,
	}}
}

func (q *Queue) resolveThrow(w *sim.World, actor *sim.PlayerState, entry pendingAction, now time.Time) []sim.HitResult {
	targetID := actor.Grabbing
	q.releaseLink(w, actor)
	if targetID == "" {
		return nil
	}
	target := w.Player(targetID)
	if target == nil || !target.Alive() {
		return nil
	}
	// A grabbed target cannot block; throws always land at full strength.
	return []sim.HitResult{applyHit(w, entry, actor, target, now, false)}
}

func (q *Queue) resolveEscape(w *sim.World, actor *sim.PlayerState, entry pendingAction, now time.Time) []sim.HitResult {
	grabberID := actor.GrabbedBy
	if grabberID == "" {
		return nil
	}
	grabber := w.Player(grabberID)
	actor.ReleaseGrab()
	if grabber == nil {
		return nil
	}
	grabber.ReleaseGrab()
	if !grabber.Alive() {
		return nil
	}
	// The counter punishes the grabber: short stun plus a shove away from
	// the escaping player.
	entryFromActor := entry
	entryFromActor.pos = actor.Pos
	return []sim.HitResult{applyHit(w, entryFromActor, actor, grabber, now, false)}
}

func (q *Queue) releaseExpiredGrabs(w *sim.World, now time.Time) {
	for _, p := range w.Players() {
		if p.Grabbing == "" || now.Before(p.GrabReleaseAt) {
			continue
		}
		q.releaseLink(w, p)
	}
}

func (q *Queue) releaseLink(w *sim.World, grabber *sim.PlayerState) {
	if grabber == nil {
		return
	}
	if other := w.Player(grabber.Grabbing); other != nil {
		other.ReleaseGrab()
	}
	grabber.ReleaseGrab()
}

// applyHit applies damage, knockback, and stun to the target and returns the
// ephemeral record forwarded to the network boundary. Block mitigation only
// applies when blockable is true; throws and counters bypass it.
func applyHit(w *sim.World, entry pendingAction, actor, target *sim.PlayerState, now time.Time, blockable bool) sim.HitResult {
	spec := entry.spec
	damage := spec.Damage
	knockback := spec.Knockback
	blocked := blockable && target.Blocking
	if blocked {
		damage *= blockedDamageFactor
		knockback *= blockedKnockbackFactor
	}

	target.ApplyHealthDelta(-damage)

	dir := target.Pos.Sub(entry.pos).Normalized()
	if dir.X == 0 && dir.Y == 0 {
		dir = sim.FacingVector(entry.facing)
	}
	impulse := dir.Scale(knockback)
	target.Vel = target.Vel.Add(impulse)
	if !blocked && spec.Stun > 0 {
		target.StunnedUntil = now.Add(spec.Stun)
	}

	return sim.HitResult{
		AttackerID: actor.ID,
		TargetID:   target.ID,
		Kind:       spec.Kind,
		Damage:     damage,
		Blocked:    blocked,
		Knockback:  impulse,
		Health:     target.Health,
		Eliminated: target.Health <= 0,
	}
}

const (
	blockedDamageFactor    = 0.2
	blockedKnockbackFactor = 0.3
)
