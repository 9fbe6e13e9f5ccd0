// Package room hosts the per-room actor: one goroutine that owns the world,
// the deferred action queue, and the tournament state machine, driven by a
// fixed-rate ticker while a round runs. All public operations funnel through
// the room mutex, so rooms are isolated from each other by construction.
package room

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"partyhall/server/internal/combat"
	"partyhall/server/internal/match"
	"partyhall/server/internal/net/proto"
	"partyhall/server/internal/sim"
	"partyhall/server/internal/telemetry"
	"partyhall/server/logging"
)

// Phase is the room lifecycle position, distinct from the tournament phase:
// intermission covers both the between-rounds pause and the post-tournament
// recap before the room returns to the lobby.
type Phase string

const (
	PhaseLobby        Phase = "lobby"
	PhasePlaying      Phase = "playing"
	PhaseIntermission Phase = "intermission"
	PhaseClosed       Phase = "closed"
)

const (
	// intermissionDelay separates round end from the next round's first tick.
	intermissionDelay = 4 * time.Second
	// maxCatchUpTicks clamps the delta after a scheduler stall so one late
	// wakeup cannot fast-forward the simulation.
	maxCatchUpTicks = 4
)

// seatColors is the default cosmetic palette, assigned round-robin by seat.
var seatColors = []string{
	"#e6533c", "#3c7fe6", "#3ce65a", "#e6d33c",
	"#a23ce6", "#3ce6d3", "#e63c9e", "#e6883c",
}

// Sender delivers encoded frames to one session. Send reports false when the
// session's queue is full and the frame was dropped; the room never blocks on
// a slow consumer.
type Sender interface {
	Send(data []byte) bool
	Close()
}

// Deps carries the ambient capabilities a room uses. Zero values are safe:
// missing fields fall back to no-op implementations.
type Deps struct {
	Logs    logging.Publisher
	Metrics *telemetry.Metrics
	Clock   logging.Clock
	// Intermission overrides the pause between rounds; zero keeps the
	// default.
	Intermission time.Duration
}

func (d Deps) normalized() Deps {
	if d.Logs == nil {
		d.Logs = logging.NopPublisher()
	}
	if d.Clock == nil {
		d.Clock = logging.SystemClock{}
	}
	if d.Intermission <= 0 {
		d.Intermission = intermissionDelay
	}
	return d
}

// ActionRejectedError carries the queue's rejection reason to the declaring
// connection.
type ActionRejectedError struct {
	Reason combat.RejectReason
}

func (e *ActionRejectedError) Error() string {
	return fmt.Sprintf("action rejected: %s", e.Reason)
}

// Unwrap folds the rejection into the package error taxonomy so errors.Is
// works across the transport boundary.
func (e *ActionRejectedError) Unwrap() error {
	if e.Reason == combat.RejectStamina {
		return ErrInsufficientResource
	}
	return ErrBadRequest
}

type member struct {
	id     string
	name   string
	ready  bool
	sender Sender
}

// Room is one live game room. The run goroutine is the only place ticks and
// scheduled events execute; public operations mutate state under the mutex
// and queue broadcast frames that are flushed outside it.
type Room struct {
	code    string
	variant sim.Variant
	cfg     sim.Config
	deps    Deps

	mu         sync.Mutex
	world      *sim.World
	inputs     *sim.InputBuffer
	queue      *combat.Queue
	tournament *match.Tournament
	tracker    *match.Tracker
	phase      Phase
	closed     bool

	hostConn   string
	hostSender Sender
	members    map[string]*member
	seatSeq    int
	lastActive time.Time
	lastTick   time.Time
	announced  map[string]bool
	outbox     [][]byte

	ticker     *time.Ticker
	events     schedule
	eventTimer *time.Timer

	wake     chan struct{}
	stopc    chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	onClose  func(r *Room, remaining []string)
}

// NewRoom builds a room around a variant and starts its goroutine. onClose
// fires exactly once after teardown with the member IDs still present.
func NewRoom(code string, variant sim.Variant, hostConn string, hostSender Sender, deps Deps, onClose func(r *Room, remaining []string)) *Room {
	cfg := variant.Config()
	r := &Room{
		code:       code,
		variant:    variant,
		cfg:        cfg,
		deps:       deps.normalized(),
		world:      sim.NewWorld(cfg),
		inputs:     sim.NewInputBuffer(),
		queue:      combat.NewQueue(variant.Actions()),
		tournament: match.NewTournament(),
		phase:      PhaseLobby,
		hostConn:   hostConn,
		hostSender: hostSender,
		members:    make(map[string]*member),
		announced:  make(map[string]bool),
		wake:       make(chan struct{}, 1),
		stopc:      make(chan struct{}),
		done:       make(chan struct{}),
		onClose:    onClose,
	}
	r.tracker = match.NewTracker(variant)
	r.lastActive = r.now()
	go r.run()
	return r
}

// Code returns the join code.
func (r *Room) Code() string { return r.code }

// Mode returns the variant name.
func (r *Room) Mode() string { return r.variant.Name() }

// Done closes when the room goroutine has finished teardown.
func (r *Room) Done() <-chan struct{} { return r.done }

// Stop requests teardown. Safe to call any number of times from any
// goroutine; the first call wins and the rest are no-ops.
func (r *Room) Stop() {
	r.stopOnce.Do(func() { close(r.stopc) })
}

// Join adds a controller to the lobby. Rejected once a game is in progress
// or the roster is full.
func (r *Room) Join(playerID, name string, sender Sender) (proto.PlayerInfo, proto.RoomSnapshot, error) {
	defer r.publishOutbox()
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return proto.PlayerInfo{}, proto.RoomSnapshot{}, ErrRoomNotFound
	}
	if r.phase != PhaseLobby {
		return proto.PlayerInfo{}, proto.RoomSnapshot{}, ErrGameInProgress
	}
	if len(r.members) >= r.cfg.MaxPlayers {
		return proto.PlayerInfo{}, proto.RoomSnapshot{}, ErrRoomFull
	}

	r.seatSeq++
	seat := r.seatSeq
	if name == "" {
		name = fmt.Sprintf("Player %d", seat)
	}
	name = r.dedupeNameLocked(name, seat)

	player := &sim.PlayerState{
		ID:         playerID,
		Name:       name,
		Seat:       seat,
		Color:      seatColors[(seat-1)%len(seatColors)],
		Pos:        sim.Vec2{X: r.cfg.Width / 2, Y: r.cfg.Height / 2},
		Health:     r.cfg.MaxHealth,
		MaxHealth:  r.cfg.MaxHealth,
		Stamina:    r.cfg.MaxStamina,
		MaxStamina: r.cfg.MaxStamina,
	}
	r.world.AddPlayer(player)
	r.members[playerID] = &member{id: playerID, name: name, sender: sender}
	r.lastActive = r.now()

	r.deps.Metrics.PlayerJoined()
	r.publishLocked(logging.Event{
		Type:     logging.EventPlayerJoined,
		Severity: logging.SeverityInfo,
		Actor:    playerID,
		Payload:  map[string]any{"name": name, "seat": seat},
	})
	r.broadcastLocked(proto.RoomUpdateMessage{
		Ver:  proto.ProtocolVersion,
		Type: proto.TypeRoomUpdate,
		Room: r.snapshotLocked(),
	})
	return r.playerInfoLocked(player), r.snapshotLocked(), nil
}

// Leave removes a controller. Mid-round departures drop the player's staged
// actions and buffered input; the round continues and the terminal predicate
// decides the rest on the next tick.
func (r *Room) Leave(playerID string) {
	defer r.publishOutbox()
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[playerID]
	if !ok {
		return
	}
	delete(r.members, playerID)
	r.world.RemovePlayer(playerID)
	r.inputs.Remove(playerID)
	r.queue.DropActor(playerID)
	if m.sender != nil {
		m.sender.Close()
	}
	r.lastActive = r.now()

	r.deps.Metrics.PlayerLeft()
	r.publishLocked(logging.Event{
		Type:     logging.EventPlayerLeft,
		Severity: logging.SeverityInfo,
		Actor:    playerID,
		Payload:  map[string]any{"name": m.name},
	})
	if r.phase == PhaseLobby {
		r.broadcastLocked(proto.RoomUpdateMessage{
			Ver:  proto.ProtocolVersion,
			Type: proto.TypeRoomUpdate,
			Room: r.snapshotLocked(),
		})
	}
}

// SetReady toggles a lobby ready flag.
func (r *Room) SetReady(playerID string, ready bool) error {
	defer r.publishOutbox()
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhaseLobby {
		return ErrGameInProgress
	}
	m, ok := r.members[playerID]
	if !ok {
		return ErrUnauthorized
	}
	m.ready = ready
	r.lastActive = r.now()
	r.broadcastLocked(proto.RoomUpdateMessage{
		Ver:  proto.ProtocolVersion,
		Type: proto.TypeRoomUpdate,
		Room: r.snapshotLocked(),
	})
	return nil
}

// SelectCosmetic sets a player color. Cosmetics are lobby-only; once a game
// starts the roster is visually frozen.
func (r *Room) SelectCosmetic(playerID, color string) error {
	defer r.publishOutbox()
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhaseLobby {
		return ErrGameInProgress
	}
	if _, ok := r.members[playerID]; !ok {
		return ErrUnauthorized
	}
	if color == "" {
		return ErrBadRequest
	}
	if p := r.world.Player(playerID); p != nil {
		p.Color = color
	}
	r.lastActive = r.now()
	r.broadcastLocked(proto.RoomUpdateMessage{
		Ver:  proto.ProtocolVersion,
		Type: proto.TypeRoomUpdate,
		Room: r.snapshotLocked(),
	})
	return nil
}

// SetRounds configures the best-of length. Host only, lobby only.
func (r *Room) SetRounds(requester string, rounds int) error {
	defer r.publishOutbox()
	r.mu.Lock()
	defer r.mu.Unlock()

	if requester != r.hostConn {
		return ErrUnauthorized
	}
	if r.phase != PhaseLobby {
		return ErrGameInProgress
	}
	if err := r.tournament.SetTotalRounds(rounds); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	r.lastActive = r.now()
	r.broadcastLocked(proto.RoomUpdateMessage{
		Ver:  proto.ProtocolVersion,
		Type: proto.TypeRoomUpdate,
		Room: r.snapshotLocked(),
	})
	return nil
}

// Start begins the first round. Host only, and every joined controller must
// have readied up.
func (r *Room) Start(requester string) error {
	defer r.publishOutbox()
	r.mu.Lock()
	defer r.mu.Unlock()

	if requester != r.hostConn {
		return ErrUnauthorized
	}
	if r.phase != PhaseLobby {
		return ErrGameInProgress
	}
	if len(r.members) == 0 {
		return ErrEmptyRoster
	}
	for _, m := range r.members {
		if !m.ready {
			return ErrNotReady
		}
	}
	r.startRoundLocked(r.now())
	return nil
}

// Input merges a partial input frame into the player's buffered state. The
// buffer is last-value-wins, so frame rate never backs up the tick loop.
func (r *Room) Input(playerID string, patch sim.InputPatch) {
	r.mu.Lock()
	_, ok := r.members[playerID]
	r.mu.Unlock()
	if !ok {
		return
	}
	r.inputs.Apply(playerID, patch)
}

// Attack stages a deferred action. Accepted declarations are broadcast as
// attack-started; rejections surface only to the declaring connection.
func (r *Room) Attack(playerID string, kind sim.ActionKind) (combat.Enqueued, error) {
	defer r.publishOutbox()
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhasePlaying {
		return combat.Enqueued{}, ErrBadRequest
	}
	if _, ok := r.members[playerID]; !ok {
		return combat.Enqueued{}, ErrUnauthorized
	}
	enq, reject := r.queue.Enqueue(r.world, playerID, kind, r.now())
	if reject != "" {
		r.deps.Metrics.ActionRejected(string(reject))
		return combat.Enqueued{}, &ActionRejectedError{Reason: reject}
	}

	r.publishLocked(logging.Event{
		Type:     logging.EventAttackStarted,
		Severity: logging.SeverityDebug,
		Tick:     r.world.Tick(),
		Actor:    playerID,
		Payload:  map[string]any{"kind": string(kind)},
	})
	r.broadcastLocked(proto.AttackStartedMessage{
		Ver:       proto.ProtocolVersion,
		Type:      proto.TypeAttackStarted,
		ActorID:   playerID,
		Kind:      enq.Kind,
		X:         enq.Pos.X,
		Y:         enq.Pos.Y,
		Facing:    enq.Facing,
		ResolveAt: enq.ResolveAt.UnixMilli(),
	})
	return enq, nil
}

// Snapshot returns the lobby-level room view.
func (r *Room) Snapshot() proto.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// IdleInLobby reports whether the room has sat in the lobby untouched for
// longer than timeout, making it a sweep candidate.
func (r *Room) IdleInLobby(now time.Time, timeout time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.closed && r.phase == PhaseLobby && now.Sub(r.lastActive) > timeout
}

// run is the room goroutine: ticks while playing, scheduled events during
// intermissions, teardown on stop.
func (r *Room) run() {
	defer r.finalize()
	for {
		r.mu.Lock()
		var tickC, eventC <-chan time.Time
		if r.ticker != nil {
			tickC = r.ticker.C
		}
		if r.eventTimer != nil {
			eventC = r.eventTimer.C
		}
		r.mu.Unlock()

		select {
		case <-r.stopc:
			return
		case <-r.wake:
		case now := <-tickC:
			r.tick(now)
		case <-eventC:
			r.fireDue()
		}
	}
}

// tick advances the simulation one step. A panic inside the step is
// contained to this room: the round is force-ended with no winner and every
// other room keeps running.
func (r *Room) tick(now time.Time) {
	start := r.now()
	if panicked := r.runTick(now); panicked {
		r.abortRound(now)
	}
	r.publishOutbox()
	r.deps.Metrics.ObserveTick(r.Mode(), r.now().Sub(start))
}

func (r *Room) runTick(now time.Time) (panicked bool) {
	defer func() {
		if rec := recover(); rec != nil {
			panicked = true
			r.deps.Logs.Publish(context.Background(), logging.Event{
				Type:     logging.EventTickPanic,
				Time:     r.now(),
				Severity: logging.SeverityError,
				Room:     r.code,
				Payload:  map[string]any{"panic": fmt.Sprint(rec)},
			})
		}
	}()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != PhasePlaying || r.ticker == nil {
		return false
	}

	interval := time.Second / time.Duration(r.cfg.TickRate)
	dt := now.Sub(r.lastTick)
	if dt <= 0 {
		dt = interval
	} else if dt > maxCatchUpTicks*interval {
		dt = maxCatchUpTicks * interval
	}
	r.lastTick = now

	ctx := sim.StepContext{
		Tick:   r.world.Tick() + 1,
		Now:    now,
		Delta:  dt.Seconds(),
		Inputs: r.inputs.Snapshot(),
	}
	r.world.Step(ctx)
	r.variant.Step(r.world, ctx)

	for _, hit := range r.queue.Resolve(r.world, now) {
		r.publishLocked(logging.Event{
			Type:     logging.EventAttackHit,
			Severity: logging.SeverityDebug,
			Tick:     r.world.Tick(),
			Actor:    hit.AttackerID,
			Target:   hit.TargetID,
			Payload:  map[string]any{"kind": string(hit.Kind), "damage": hit.Damage, "blocked": hit.Blocked},
		})
		r.broadcastLocked(proto.HitMessage{
			Ver:        proto.ProtocolVersion,
			Type:       proto.TypeHit,
			ActorID:    hit.AttackerID,
			TargetID:   hit.TargetID,
			Kind:       hit.Kind,
			Damage:     hit.Damage,
			Blocked:    hit.Blocked,
			KnockbackX: hit.Knockback.X,
			KnockbackY: hit.Knockback.Y,
			Health:     hit.Health,
		})
	}

	outcome, done := r.tracker.Evaluate(r.world, now)
	r.announceEliminationsLocked()
	r.broadcastLocked(r.stateMessageLocked(now))
	if done {
		r.endRoundLocked(now, outcome)
	}
	return false
}

// abortRound is the panic path: end the round with no winner and move on.
func (r *Room) abortRound(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != PhasePlaying {
		return
	}
	outcome := r.tracker.ForceEnd(r.world, sim.Outcome{Reason: "fault"})
	r.endRoundLocked(now, outcome)
}

func (r *Room) fireDue() {
	now := r.now()
	r.mu.Lock()
	for _, ev := range r.events.popDue(now) {
		ev.run(now)
	}
	r.rearmEventsLocked()
	r.mu.Unlock()
	r.publishOutbox()
}

// startRoundLocked resets all per-round state and arms the ticker.
func (r *Room) startRoundLocked(now time.Time) {
	if r.closed || len(r.members) == 0 {
		r.phase = PhaseLobby
		return
	}
	if err := r.tournament.BeginRound(); err != nil {
		r.publishLocked(logging.Event{
			Type:     logging.EventRoundStarting,
			Severity: logging.SeverityWarn,
			Payload:  map[string]any{"error": err.Error()},
		})
		r.phase = PhaseLobby
		return
	}

	r.world.Reset(now)
	r.variant.Reset(r.world, now)
	r.queue.Reset()
	r.tracker.Reset()
	r.inputs.Reset()
	r.announced = make(map[string]bool)

	r.phase = PhasePlaying
	r.lastTick = now
	r.stopTickerLocked()
	r.ticker = time.NewTicker(time.Second / time.Duration(r.cfg.TickRate))
	r.notify()

	r.publishLocked(logging.Event{
		Type:     logging.EventRoundStarting,
		Severity: logging.SeverityInfo,
		Payload:  map[string]any{"round": r.tournament.CurrentRound(), "total": r.tournament.TotalRounds()},
	})
	r.broadcastLocked(proto.RoundStartingMessage{
		Ver:         proto.ProtocolVersion,
		Type:        proto.TypeRoundStarting,
		Round:       r.tournament.CurrentRound(),
		TotalRounds: r.tournament.TotalRounds(),
	})
}

// endRoundLocked records the result and either schedules the next round or
// closes out the tournament and returns the room to the lobby.
func (r *Room) endRoundLocked(now time.Time, outcome sim.Outcome) {
	r.stopTickerLocked()
	r.phase = PhaseIntermission

	winnerName := ""
	if outcome.WinnerID != "" {
		if p := r.world.Player(outcome.WinnerID); p != nil {
			winnerName = p.Name
		}
	}
	decision, err := r.tournament.RecordResult(outcome.WinnerID, winnerName, outcome.Reason)
	if err != nil {
		r.publishLocked(logging.Event{
			Type:     logging.EventRoundEnded,
			Severity: logging.SeverityWarn,
			Payload:  map[string]any{"error": err.Error()},
		})
		r.returnToLobbyLocked(now)
		return
	}

	r.publishLocked(logging.Event{
		Type:     logging.EventRoundEnded,
		Severity: logging.SeverityInfo,
		Tick:     r.world.Tick(),
		Payload: map[string]any{
			"round":  r.tournament.CurrentRound(),
			"winner": outcome.WinnerID,
			"reason": outcome.Reason,
		},
	})
	r.broadcastLocked(proto.RoundEndedMessage{
		Ver:      proto.ProtocolVersion,
		Type:     proto.TypeRoundEnded,
		Round:    r.tournament.CurrentRound(),
		WinnerID: outcome.WinnerID,
		Ranking:  outcome.Ranking,
		Reason:   outcome.Reason,
		Wins:     r.tournament.Wins(),
	})

	if decision.Ended {
		r.publishLocked(logging.Event{
			Type:     logging.EventTournamentEnded,
			Severity: logging.SeverityInfo,
			Payload:  map[string]any{"champion": decision.ChampionID},
		})
		r.broadcastLocked(proto.TournamentEndedMessage{
			Ver:          proto.ProtocolVersion,
			Type:         proto.TypeTournamentEnded,
			ChampionID:   decision.ChampionID,
			ChampionName: decision.ChampionName,
			Wins:         r.tournament.Wins(),
		})
		r.tournament.ResetForRematch()
		r.returnToLobbyLocked(now)
		return
	}

	r.events.push(now.Add(r.deps.Intermission), func(at time.Time) {
		if r.phase == PhaseIntermission {
			r.startRoundLocked(at)
		}
	})
	r.rearmEventsLocked()
}

// returnToLobbyLocked rewinds the room to the configurable state, clearing
// ready flags so the next start needs fresh confirmation.
func (r *Room) returnToLobbyLocked(now time.Time) {
	r.phase = PhaseLobby
	for _, m := range r.members {
		m.ready = false
	}
	r.lastActive = now
	r.broadcastLocked(proto.RoomUpdateMessage{
		Ver:  proto.ProtocolVersion,
		Type: proto.TypeRoomUpdate,
		Room: r.snapshotLocked(),
	})
}

func (r *Room) announceEliminationsLocked() {
	for _, p := range r.world.Players() {
		if !p.Eliminated || r.announced[p.ID] {
			continue
		}
		r.announced[p.ID] = true
		r.publishLocked(logging.Event{
			Type:     logging.EventElimination,
			Severity: logging.SeverityInfo,
			Tick:     r.world.Tick(),
			Actor:    p.ID,
			Payload:  map[string]any{"order": p.ElimOrder},
		})
		r.broadcastLocked(proto.EliminationMessage{
			Ver:      proto.ProtocolVersion,
			Type:     proto.TypeElimination,
			PlayerID: p.ID,
			Order:    p.ElimOrder,
		})
	}
}

// finalize is the single teardown path, run when the goroutine exits.
func (r *Room) finalize() {
	r.mu.Lock()
	r.closed = true
	r.phase = PhaseClosed
	r.stopTickerLocked()
	if r.eventTimer != nil {
		r.eventTimer.Stop()
	}
	r.events.clear()
	frame := encode(proto.RoomClosedMessage{
		Ver:  proto.ProtocolVersion,
		Type: proto.TypeRoomClosed,
	})
	targets := r.sendersLocked()
	remaining := make([]string, 0, len(r.members))
	for id := range r.members {
		remaining = append(remaining, id)
	}
	r.members = make(map[string]*member)
	r.mu.Unlock()

	for _, s := range targets {
		s.Send(frame)
		s.Close()
	}
	r.deps.Logs.Publish(context.Background(), logging.Event{
		Type:     logging.EventRoomClosed,
		Time:     r.now(),
		Severity: logging.SeverityInfo,
		Room:     r.code,
	})
	close(r.done)
	if r.onClose != nil {
		r.onClose(r, remaining)
	}
}

func (r *Room) stopTickerLocked() {
	if r.ticker != nil {
		r.ticker.Stop()
		r.ticker = nil
	}
}

func (r *Room) rearmEventsLocked() {
	at, ok := r.events.nextAt()
	if !ok {
		if r.eventTimer != nil {
			r.eventTimer.Stop()
		}
		return
	}
	d := at.Sub(r.now())
	if d < 0 {
		d = 0
	}
	if r.eventTimer == nil {
		r.eventTimer = time.NewTimer(d)
	} else {
		r.eventTimer.Stop()
		r.eventTimer.Reset(d)
	}
	r.notify()
}

// notify nudges the run loop to re-fetch its channels after the ticker or
// event timer changed.
func (r *Room) notify() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Room) now() time.Time {
	return r.deps.Clock.Now()
}

func (r *Room) publishLocked(ev logging.Event) {
	ev.Room = r.code
	if ev.Time.IsZero() {
		ev.Time = r.now()
	}
	r.deps.Logs.Publish(context.Background(), ev)
}

// broadcastLocked stages a frame; delivery happens outside the mutex.
func (r *Room) broadcastLocked(v any) {
	if frame := encode(v); frame != nil {
		r.outbox = append(r.outbox, frame)
	}
}

// publishOutbox flushes staged frames to every session. Taken outside the
// room mutex so a slow websocket cannot hold up operations.
func (r *Room) publishOutbox() {
	r.mu.Lock()
	frames := r.outbox
	r.outbox = nil
	targets := r.sendersLocked()
	r.mu.Unlock()
	if len(frames) == 0 {
		return
	}
	for _, frame := range frames {
		for _, s := range targets {
			s.Send(frame)
		}
		r.deps.Metrics.AddBroadcastBytes(len(frame) * len(targets))
	}
}

func (r *Room) sendersLocked() []Sender {
	out := make([]Sender, 0, len(r.members)+1)
	if r.hostSender != nil {
		out = append(out, r.hostSender)
	}
	for _, m := range r.members {
		if m.sender != nil {
			out = append(out, m.sender)
		}
	}
	return out
}

func (r *Room) snapshotLocked() proto.RoomSnapshot {
	players := make([]proto.PlayerInfo, 0, len(r.members))
	for _, p := range r.world.Players() {
		players = append(players, r.playerInfoLocked(p))
	}
	return proto.RoomSnapshot{
		Code:         r.code,
		Mode:         r.variant.Name(),
		Phase:        string(r.phase),
		Players:      players,
		MaxPlayers:   r.cfg.MaxPlayers,
		TotalRounds:  r.tournament.TotalRounds(),
		CurrentRound: r.tournament.CurrentRound(),
		Wins:         r.tournament.Wins(),
	}
}

func (r *Room) playerInfoLocked(p *sim.PlayerState) proto.PlayerInfo {
	info := proto.PlayerInfo{
		ID:    p.ID,
		Name:  p.Name,
		Seat:  p.Seat,
		Color: p.Color,
	}
	if m := r.members[p.ID]; m != nil {
		info.Ready = m.ready
	}
	return info
}

// stateMessageLocked builds the per-tick broadcast: every live player every
// tick, plus the variant's mode-specific block.
func (r *Room) stateMessageLocked(now time.Time) proto.StateMessage {
	players := make([]proto.PlayerSnapshot, 0, len(r.members))
	for _, p := range r.world.Players() {
		players = append(players, proto.PlayerSnapshot{
			ID:         p.ID,
			Name:       p.Name,
			Seat:       p.Seat,
			Color:      p.Color,
			X:          p.Pos.X,
			Y:          p.Pos.Y,
			Facing:     p.Facing,
			Health:     p.Health,
			Stamina:    p.Stamina,
			Blocking:   p.Blocking,
			Stunned:    p.Stunned(now),
			Grabbed:    p.GrabbedBy != "",
			Eliminated: p.Eliminated,
			Finished:   p.Finished,
			Rank:       p.Rank,
		})
	}
	return proto.StateMessage{
		Ver:        proto.ProtocolVersion,
		Type:       proto.TypeState,
		RoomCode:   r.code,
		Tick:       r.world.Tick(),
		ServerTime: now.UnixMilli(),
		Round:      r.tournament.CurrentRound(),
		Players:    players,
		Mode:       r.variant.SnapshotFields(r.world),
	}
}

// dedupeNameLocked suffixes the seat number when a display name is already
// taken, keeping the name-keyed win tally unambiguous.
func (r *Room) dedupeNameLocked(name string, seat int) string {
	for _, m := range r.members {
		if m.name == name {
			return fmt.Sprintf("%s-%d", name, seat)
		}
	}
	return name
}

func encode(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
