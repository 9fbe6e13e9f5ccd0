// Package proto defines the payload shapes exchanged with hosts and
// controllers. The shapes are transport-agnostic: the websocket adapter maps
// them onto frames, and the HTTP lookup endpoint reuses the room snapshot.
package proto

import "partyhall/server/internal/sim"

// ProtocolVersion is bumped on any incompatible payload change.
const ProtocolVersion = 1

// Message type tags for server-to-client frames.
const (
	TypeRoomCreated     = "room-created"
	TypeJoined          = "joined"
	TypeRoomUpdate      = "room-update"
	TypeState           = "state"
	TypeAttackStarted   = "attack-started"
	TypeHit             = "hit"
	TypeElimination     = "elimination"
	TypeRoundStarting   = "round-starting"
	TypeRoundEnded      = "round-ended"
	TypeTournamentEnded = "tournament-ended"
	TypeRoomClosed      = "room-closed"
	TypeError           = "error"
	TypeAck             = "ack"
	TypeHeartbeat       = "heartbeat"
)

// Error codes surfaced to the initiating connection. These are local,
// recoverable conditions; none of them terminates the session.
const (
	ErrCodeRoomNotFound         = "room_not_found"
	ErrCodeRoomFull             = "room_full"
	ErrCodeGameInProgress       = "game_in_progress"
	ErrCodeUnauthorized         = "unauthorized"
	ErrCodeInsufficientResource = "insufficient_resource"
	ErrCodeInvalidConfiguration = "invalid_configuration"
	ErrCodeNotReady             = "not_ready"
	ErrCodeBadRequest           = "bad_request"
)

// PlayerInfo is the roster entry shared by lobby and tick payloads.
type PlayerInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Seat  int    `json:"seat"`
	Color string `json:"color"`
	Ready bool   `json:"ready"`
}

// RoomSnapshot is the lobby-level view of a room, returned by join-room and
// by the out-of-band HTTP lookup.
type RoomSnapshot struct {
	Code         string         `json:"code"`
	Mode         string         `json:"mode"`
	Phase        string         `json:"phase"`
	Players      []PlayerInfo   `json:"players"`
	MaxPlayers   int            `json:"maxPlayers"`
	TotalRounds  int            `json:"totalRounds"`
	CurrentRound int            `json:"currentRound"`
	Wins         map[string]int `json:"wins,omitempty"`
}

// RoomCreatedMessage answers create-room on the host connection.
type RoomCreatedMessage struct {
	Ver  int          `json:"ver"`
	Type string       `json:"type"`
	Room RoomSnapshot `json:"room"`
}

// JoinedMessage answers join-room on the controller connection.
type JoinedMessage struct {
	Ver    int          `json:"ver"`
	Type   string       `json:"type"`
	Player PlayerInfo   `json:"player"`
	Room   RoomSnapshot `json:"room"`
}

// RoomUpdateMessage is broadcast on roster or configuration changes while
// the room sits in the lobby.
type RoomUpdateMessage struct {
	Ver  int          `json:"ver"`
	Type string       `json:"type"`
	Room RoomSnapshot `json:"room"`
}

// PlayerSnapshot is one player's per-tick state. Every live player appears
// in every tick even when unchanged.
type PlayerSnapshot struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Seat       int     `json:"seat"`
	Color      string  `json:"color"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Facing     float64 `json:"facing"`
	Health     float64 `json:"health"`
	Stamina    float64 `json:"stamina"`
	Blocking   bool    `json:"blocking"`
	Stunned    bool    `json:"stunned"`
	Grabbed    bool    `json:"grabbed"`
	Eliminated bool    `json:"eliminated"`
	Finished   bool    `json:"finished"`
	Rank       int     `json:"rank,omitempty"`
}

// StateMessage is the per-tick broadcast.
type StateMessage struct {
	Ver        int              `json:"ver"`
	Type       string           `json:"type"`
	RoomCode   string           `json:"roomCode"`
	Tick       uint64           `json:"tick"`
	ServerTime int64            `json:"serverTime"`
	Round      int              `json:"round"`
	Players    []PlayerSnapshot `json:"players"`
	Mode       map[string]any   `json:"mode,omitempty"`
}

// AttackStartedMessage is broadcast when a declaration is accepted, so the
// attacker's wind-up animation starts immediately.
type AttackStartedMessage struct {
	Ver       int            `json:"ver"`
	Type      string         `json:"type"`
	ActorID   string         `json:"actorId"`
	Kind      sim.ActionKind `json:"kind"`
	X         float64        `json:"x"`
	Y         float64        `json:"y"`
	Facing    float64        `json:"facing"`
	ResolveAt int64          `json:"resolveAt"`
}

// HitMessage is broadcast per resolved hit.
type HitMessage struct {
	Ver        int            `json:"ver"`
	Type       string         `json:"type"`
	ActorID    string         `json:"actorId"`
	TargetID   string         `json:"targetId"`
	Kind       sim.ActionKind `json:"kind"`
	Damage     float64        `json:"damage"`
	Blocked    bool           `json:"blocked"`
	KnockbackX float64        `json:"knockbackX"`
	KnockbackY float64        `json:"knockbackY"`
	Health     float64        `json:"health"`
}

// EliminationMessage is broadcast when a player leaves the round.
type EliminationMessage struct {
	Ver      int    `json:"ver"`
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
	Reason   string `json:"reason,omitempty"`
	Order    int    `json:"order"`
}

// RoundStartingMessage is broadcast before the first tick of a round.
type RoundStartingMessage struct {
	Ver         int    `json:"ver"`
	Type        string `json:"type"`
	Round       int    `json:"round"`
	TotalRounds int    `json:"totalRounds"`
}

// RoundEndedMessage is broadcast when the terminal condition fires.
type RoundEndedMessage struct {
	Ver      int            `json:"ver"`
	Type     string         `json:"type"`
	Round    int            `json:"round"`
	WinnerID string         `json:"winnerId,omitempty"`
	Ranking  []string       `json:"ranking"`
	Reason   string         `json:"reason,omitempty"`
	Wins     map[string]int `json:"wins"`
}

// TournamentEndedMessage is broadcast after the deciding round.
type TournamentEndedMessage struct {
	Ver          int            `json:"ver"`
	Type         string         `json:"type"`
	ChampionID   string         `json:"championId,omitempty"`
	ChampionName string         `json:"championName,omitempty"`
	Wins         map[string]int `json:"wins"`
}

// RoomClosedMessage tells remaining sessions the room is gone.
type RoomClosedMessage struct {
	Ver    int    `json:"ver"`
	Type   string `json:"type"`
	Reason string `json:"reason,omitempty"`
}

// ErrorMessage answers a rejected request on the initiating connection only.
type ErrorMessage struct {
	Ver    int    `json:"ver"`
	Type   string `json:"type"`
	Code   string `json:"code"`
	Detail string `json:"detail,omitempty"`
	// Req echoes the client's request type so controllers can correlate.
	Req string `json:"req,omitempty"`
}

// AckMessage answers an accepted request that has no richer payload.
type AckMessage struct {
	Ver  int    `json:"ver"`
	Type string `json:"type"`
	Req  string `json:"req,omitempty"`
}

// HeartbeatMessage echoes liveness probes with server time for RTT
// estimation.
type HeartbeatMessage struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
}
