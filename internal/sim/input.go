package sim

import "sync"

// InputState is the latest buffered controller state for one player. It is a
// plain value: the buffer overwrites it wholesale, it is never queued.
type InputState struct {
	Up    bool
	Down  bool
	Left  bool
	Right bool
	Run   bool
	Block bool

	// Analog stick, if the controller reports one. Overrides the boolean
	// flags when non-zero.
	AxisX float64
	AxisY float64
}

// InputPatch carries a partial controller update. Nil fields leave the
// buffered value untouched, so a controller can send only the flags that
// changed.
type InputPatch struct {
	Up    *bool
	Down  *bool
	Left  *bool
	Right *bool
	Run   *bool
	Block *bool
	AxisX *float64
	AxisY *float64
}

// Direction derives the movement unit vector from the buffered state.
func (s InputState) Direction() Vec2 {
	if s.AxisX != 0 || s.AxisY != 0 {
		v := Vec2{X: s.AxisX, Y: s.AxisY}
		if v.Length() > 1 {
			return v.Normalized()
		}
		return v
	}
	var dir Vec2
	if s.Up {
		dir.Y -= 1
	}
	if s.Down {
		dir.Y += 1
	}
	if s.Left {
		dir.X -= 1
	}
	if s.Right {
		dir.X += 1
	}
	return dir.Normalized()
}

// InputBuffer holds the most recent input state per player. Writers arrive
// from session goroutines at arbitrary times; the tick loop consumes a
// snapshot once per tick. A burst of updates between ticks collapses to the
// last value, which keeps the simulation independent of network jitter.
type InputBuffer struct {
	mu     sync.Mutex
	states map[string]InputState
}

// NewInputBuffer constructs an empty buffer.
func NewInputBuffer() *InputBuffer {
	return &InputBuffer{states: make(map[string]InputState)}
}

// Apply merges a partial update into a player's buffered state.
func (b *InputBuffer) Apply(playerID string, patch InputPatch) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	state := b.states[playerID]
	if patch.Up != nil {
		state.Up = *patch.Up
	}
	if patch.Down != nil {
		state.Down = *patch.Down
	}
	if patch.Left != nil {
		state.Left = *patch.Left
	}
	if patch.Right != nil {
		state.Right = *patch.Right
	}
	if patch.Run != nil {
		state.Run = *patch.Run
	}
	if patch.Block != nil {
		state.Block = *patch.Block
	}
	if patch.AxisX != nil {
		state.AxisX = *patch.AxisX
	}
	if patch.AxisY != nil {
		state.AxisY = *patch.AxisY
	}
	b.states[playerID] = state
}

// Snapshot copies the buffered states for consumption by a tick. The buffer
// itself is not cleared; absent further updates a held key keeps moving the
// player, matching controller semantics.
func (b *InputBuffer) Snapshot() map[string]InputState {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]InputState, len(b.states))
	for id, state := range b.states {
		out[id] = state
	}
	return out
}

// Remove forgets a departed player's state.
func (b *InputBuffer) Remove(playerID string) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.states, playerID)
}

// Reset clears every buffered state, used between rounds so stale held keys
// from the previous round do not leak into the next.
func (b *InputBuffer) Reset() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states = make(map[string]InputState)
}
