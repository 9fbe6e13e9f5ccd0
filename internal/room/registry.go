package room

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"partyhall/server/internal/modes"
	"partyhall/server/internal/net/proto"
	"partyhall/server/logging"
)

// Room codes skip 0/O/1/I so they survive being read off a screen.
const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 5
)

// RegistryConfig tunes the sweeper.
type RegistryConfig struct {
	// IdleTimeout is how long a lobby may sit untouched before it is
	// reclaimed. Rooms with a game in progress are never swept.
	IdleTimeout time.Duration
	// SweepInterval is how often the sweeper scans.
	SweepInterval time.Duration
}

// DefaultRegistryConfig matches the documented lobby lifetime.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		IdleTimeout:   30 * time.Minute,
		SweepInterval: time.Minute,
	}
}

type connRef struct {
	code   string
	player string
	host   bool
}

// Registry owns the room table and the connection-to-room index. It is the
// single place codes are generated and resolved; everything past a lookup is
// the room's own business.
type Registry struct {
	cfg  RegistryConfig
	deps Deps

	mu    sync.Mutex
	rooms map[string]*Room
	conns map[string]connRef
}

// NewRegistry builds an empty registry.
func NewRegistry(cfg RegistryConfig, deps Deps) *Registry {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultRegistryConfig().IdleTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultRegistryConfig().SweepInterval
	}
	return &Registry{
		cfg:   cfg,
		deps:  deps.normalized(),
		rooms: make(map[string]*Room),
		conns: make(map[string]connRef),
	}
}

// CreateRoom opens a new room for the given mode with the caller as host and
// returns it with its freshly generated join code.
func (g *Registry) CreateRoom(hostConn, mode string, sender Sender) (*Room, error) {
	variant, err := modes.New(mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}

	g.mu.Lock()
	code, err := g.uniqueCodeLocked()
	if err != nil {
		g.mu.Unlock()
		return nil, err
	}
	r := NewRoom(code, variant, hostConn, sender, g.deps, g.roomClosed)
	g.rooms[code] = r
	g.conns[hostConn] = connRef{code: code, host: true}
	g.mu.Unlock()

	g.deps.Metrics.RoomOpened()
	g.deps.Logs.Publish(context.Background(), logging.Event{
		Type:     logging.EventRoomCreated,
		Time:     g.deps.Clock.Now(),
		Severity: logging.SeverityInfo,
		Room:     code,
		Payload:  map[string]any{"mode": mode},
	})
	return r, nil
}

// JoinRoom resolves a code and adds the connection as a player.
func (g *Registry) JoinRoom(connID, code, name string, sender Sender) (*Room, proto.PlayerInfo, proto.RoomSnapshot, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	g.mu.Lock()
	r, ok := g.rooms[code]
	g.mu.Unlock()
	if !ok {
		return nil, proto.PlayerInfo{}, proto.RoomSnapshot{}, ErrRoomNotFound
	}

	info, snap, err := r.Join(connID, name, sender)
	if err != nil {
		return nil, proto.PlayerInfo{}, proto.RoomSnapshot{}, err
	}

	g.mu.Lock()
	g.conns[connID] = connRef{code: code, player: connID}
	g.mu.Unlock()
	return r, info, snap, nil
}

// Lookup resolves a join code.
func (g *Registry) Lookup(code string) (*Room, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[code]
	return r, ok
}

// RoomFor resolves the room a connection belongs to, if any.
func (g *Registry) RoomFor(connID string) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ref, ok := g.conns[connID]
	if !ok {
		return nil, false
	}
	r, ok := g.rooms[ref.code]
	return r, ok
}

// Disconnect handles a dropped connection. A host disconnect tears the room
// down; a controller disconnect just removes the player.
func (g *Registry) Disconnect(connID string) {
	g.mu.Lock()
	ref, ok := g.conns[connID]
	if ok {
		delete(g.conns, connID)
	}
	r := g.rooms[ref.code]
	g.mu.Unlock()
	if !ok || r == nil {
		return
	}
	if ref.host {
		r.Stop()
	} else {
		r.Leave(connID)
	}
}

// Counts reports live rooms and joined players, for health reporting.
func (g *Registry) Counts() (rooms, players int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rooms = len(g.rooms)
	for _, ref := range g.conns {
		if !ref.host {
			players++
		}
	}
	return rooms, players
}

// Sweep reclaims lobbies idle past the configured timeout.
func (g *Registry) Sweep(now time.Time) int {
	g.mu.Lock()
	var idle []*Room
	for _, r := range g.rooms {
		idle = append(idle, r)
	}
	g.mu.Unlock()

	swept := 0
	for _, r := range idle {
		if !r.IdleInLobby(now, g.cfg.IdleTimeout) {
			continue
		}
		g.deps.Logs.Publish(context.Background(), logging.Event{
			Type:     logging.EventRoomSwept,
			Time:     now,
			Severity: logging.SeverityInfo,
			Room:     r.Code(),
		})
		g.deps.Metrics.RoomSwept()
		r.Stop()
		swept++
	}
	return swept
}

// RunSweeper scans on the configured interval until the context ends.
func (g *Registry) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(g.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			g.Sweep(now)
		}
	}
}

// CloseAll stops every room and waits for teardown or context expiry.
func (g *Registry) CloseAll(ctx context.Context) {
	g.mu.Lock()
	open := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		open = append(open, r)
	}
	g.mu.Unlock()

	for _, r := range open {
		r.Stop()
	}
	for _, r := range open {
		select {
		case <-r.Done():
		case <-ctx.Done():
			return
		}
	}
}

// roomClosed is the room teardown callback: drop the table entry, forget
// every connection that pointed at the room, and settle the gauges.
func (g *Registry) roomClosed(r *Room, remaining []string) {
	g.mu.Lock()
	if g.rooms[r.Code()] == r {
		delete(g.rooms, r.Code())
	}
	for id, ref := range g.conns {
		if ref.code == r.Code() {
			delete(g.conns, id)
		}
	}
	g.mu.Unlock()

	g.deps.Metrics.RoomClosed()
	for range remaining {
		g.deps.Metrics.PlayerLeft()
	}
}

// uniqueCodeLocked draws codes until one misses the table. Collisions are
// vanishingly rare at realistic room counts, so the loop is effectively one
// iteration.
func (g *Registry) uniqueCodeLocked() (string, error) {
	for attempt := 0; attempt < 16; attempt++ {
		code, err := generateCode()
		if err != nil {
			return "", err
		}
		if _, taken := g.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("room code space exhausted")
}

func generateCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate room code: %w", err)
	}
	out := make([]byte, codeLength)
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(out), nil
}
