// Package ws adapts websocket sessions onto room operations. One connection
// is either a host (created a room) or a controller (joined one); the
// registry tracks which, the handler just relays.
package ws

import (
	"encoding/json"
	"errors"
	nethttp "net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"partyhall/server/internal/combat"
	"partyhall/server/internal/net/proto"
	"partyhall/server/internal/room"
	"partyhall/server/internal/sim"
	"partyhall/server/internal/telemetry"
)

type clientMessage struct {
	Ver    int    `json:"ver,omitempty"`
	Type   string `json:"type"`
	Room   string `json:"room,omitempty"`
	Name   string `json:"name,omitempty"`
	Mode   string `json:"mode,omitempty"`
	Rounds int    `json:"rounds,omitempty"`
	Ready  *bool  `json:"ready,omitempty"`
	Color  string `json:"color,omitempty"`
	Action string `json:"action,omitempty"`
	SentAt int64  `json:"sentAt,omitempty"`

	Up    *bool    `json:"up,omitempty"`
	Down  *bool    `json:"down,omitempty"`
	Left  *bool    `json:"left,omitempty"`
	Right *bool    `json:"right,omitempty"`
	Run   *bool    `json:"run,omitempty"`
	Block *bool    `json:"block,omitempty"`
	AxisX *float64 `json:"axisX,omitempty"`
	AxisY *float64 `json:"axisY,omitempty"`
}

type HandlerConfig struct {
	Logger  telemetry.Logger
	Metrics *telemetry.Metrics
}

// Handler upgrades connections and runs their read loops.
type Handler struct {
	registry *room.Registry
	logger   telemetry.Logger
	metrics  *telemetry.Metrics
	upgrader websocket.Upgrader
}

func NewHandler(registry *room.Registry, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}
	return &Handler{
		registry: registry,
		logger:   logger,
		metrics:  cfg.Metrics,
		upgrader: upgrader,
	}
}

// Handle upgrades the request and serves the session until the peer goes
// away. Every connection gets a server-assigned identity; there is no
// client-supplied ID to spoof.
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed: %v", err)
		return
	}
	connID := uuid.NewString()
	session := newSession(connID, conn)
	defer func() {
		h.registry.Disconnect(connID)
		session.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.logger.Printf("discarding malformed message from %s: %v", connID, err)
			h.sendError(session, msg.Type, room.ErrBadRequest)
			continue
		}
		h.dispatch(session, connID, msg)
	}
}

func (h *Handler) dispatch(session *Session, connID string, msg clientMessage) {
	switch msg.Type {
	case "create-room":
		r, err := h.registry.CreateRoom(connID, msg.Mode, session)
		if err != nil {
			h.sendError(session, msg.Type, err)
			return
		}
		h.reply(session, proto.RoomCreatedMessage{
			Ver:  proto.ProtocolVersion,
			Type: proto.TypeRoomCreated,
			Room: r.Snapshot(),
		})

	case "join-room":
		_, info, snap, err := h.registry.JoinRoom(connID, msg.Room, msg.Name, session)
		if err != nil {
			h.sendError(session, msg.Type, err)
			return
		}
		h.reply(session, proto.JoinedMessage{
			Ver:    proto.ProtocolVersion,
			Type:   proto.TypeJoined,
			Player: info,
			Room:   snap,
		})

	case "leave-room":
		h.registry.Disconnect(connID)

	case "set-ready":
		r, ok := h.registry.RoomFor(connID)
		if !ok {
			h.sendError(session, msg.Type, room.ErrRoomNotFound)
			return
		}
		ready := true
		if msg.Ready != nil {
			ready = *msg.Ready
		}
		if err := r.SetReady(connID, ready); err != nil {
			h.sendError(session, msg.Type, err)
			return
		}
		h.ack(session, msg.Type)

	case "select-cosmetic":
		r, ok := h.registry.RoomFor(connID)
		if !ok {
			h.sendError(session, msg.Type, room.ErrRoomNotFound)
			return
		}
		if err := r.SelectCosmetic(connID, msg.Color); err != nil {
			h.sendError(session, msg.Type, err)
			return
		}
		h.ack(session, msg.Type)

	case "set-tournament-rounds":
		r, ok := h.registry.RoomFor(connID)
		if !ok {
			h.sendError(session, msg.Type, room.ErrRoomNotFound)
			return
		}
		if err := r.SetRounds(connID, msg.Rounds); err != nil {
			h.sendError(session, msg.Type, err)
			return
		}
		h.ack(session, msg.Type)

	case "start-game":
		r, ok := h.registry.RoomFor(connID)
		if !ok {
			h.sendError(session, msg.Type, room.ErrRoomNotFound)
			return
		}
		if err := r.Start(connID); err != nil {
			h.sendError(session, msg.Type, err)
			return
		}

	case "input":
		r, ok := h.registry.RoomFor(connID)
		if !ok {
			return
		}
		r.Input(connID, sim.InputPatch{
			Up:    msg.Up,
			Down:  msg.Down,
			Left:  msg.Left,
			Right: msg.Right,
			Run:   msg.Run,
			Block: msg.Block,
			AxisX: msg.AxisX,
			AxisY: msg.AxisY,
		})

	case "attack":
		r, ok := h.registry.RoomFor(connID)
		if !ok {
			h.sendError(session, msg.Type, room.ErrRoomNotFound)
			return
		}
		if _, err := r.Attack(connID, sim.ActionKind(msg.Action)); err != nil {
			h.sendError(session, msg.Type, err)
			return
		}

	case "heartbeat":
		now := time.Now()
		h.reply(session, proto.HeartbeatMessage{
			Ver:        proto.ProtocolVersion,
			Type:       proto.TypeHeartbeat,
			ServerTime: now.UnixMilli(),
			ClientTime: msg.SentAt,
		})

	default:
		h.logger.Printf("unknown message type %q from %s", msg.Type, connID)
		h.sendError(session, msg.Type, room.ErrBadRequest)
	}
}

func (h *Handler) reply(session *Session, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Printf("failed to marshal reply for %s: %v", session.ID(), err)
		return
	}
	if !session.Send(data) {
		h.metrics.InputDropped()
	}
}

func (h *Handler) ack(session *Session, req string) {
	h.reply(session, proto.AckMessage{
		Ver:  proto.ProtocolVersion,
		Type: proto.TypeAck,
		Req:  req,
	})
}

func (h *Handler) sendError(session *Session, req string, err error) {
	code, detail := errorCode(err)
	h.reply(session, proto.ErrorMessage{
		Ver:    proto.ProtocolVersion,
		Type:   proto.TypeError,
		Code:   code,
		Detail: detail,
		Req:    req,
	})
}

// errorCode maps room errors onto wire codes. Rejected actions carry the
// queue's reason as the detail so controllers can show why.
func errorCode(err error) (code, detail string) {
	var rejected *room.ActionRejectedError
	switch {
	case errors.As(err, &rejected):
		if rejected.Reason == combat.RejectStamina {
			return proto.ErrCodeInsufficientResource, string(rejected.Reason)
		}
		return proto.ErrCodeBadRequest, string(rejected.Reason)
	case errors.Is(err, room.ErrRoomNotFound):
		return proto.ErrCodeRoomNotFound, err.Error()
	case errors.Is(err, room.ErrRoomFull):
		return proto.ErrCodeRoomFull, err.Error()
	case errors.Is(err, room.ErrGameInProgress):
		return proto.ErrCodeGameInProgress, err.Error()
	case errors.Is(err, room.ErrUnauthorized):
		return proto.ErrCodeUnauthorized, err.Error()
	case errors.Is(err, room.ErrNotReady), errors.Is(err, room.ErrEmptyRoster):
		return proto.ErrCodeNotReady, err.Error()
	case errors.Is(err, room.ErrInsufficientResource):
		return proto.ErrCodeInsufficientResource, err.Error()
	case errors.Is(err, room.ErrInvalidConfiguration):
		return proto.ErrCodeInvalidConfiguration, err.Error()
	default:
		return proto.ErrCodeBadRequest, err.Error()
	}
}
