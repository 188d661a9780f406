package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/dice-poker-backend/internal/engine"
	"github.com/DoyleJ11/dice-poker-backend/internal/hub"
	"github.com/DoyleJ11/dice-poker-backend/internal/lobby"
	"github.com/DoyleJ11/dice-poker-backend/internal/types"
)

const (
	writeTimeout = 3 * time.Second
	outboxSize   = 32
)

type Config struct {
	DefaultMaxRerolls int
	MaxRerollsLimit   int
	// OriginPatterns is passed to websocket.Accept. Empty means same origin only.
	OriginPatterns []string
	Logger         *zap.Logger
}

// ClampRerolls maps a requested reroll budget onto [1, MaxRerollsLimit].
// Zero or negative means DefaultMaxRerolls.
func (c Config) ClampRerolls(requested int) int {
	n := requested
	if n <= 0 {
		n = c.DefaultMaxRerolls
	}
	if c.MaxRerollsLimit > 0 && n > c.MaxRerollsLimit {
		n = c.MaxRerollsLimit
	}
	if n < 1 {
		n = 1
	}
	return n
}

func Handler(h *hub.Hub, cfg Config) http.HandlerFunc {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: cfg.OriginPatterns,
		})
		if err != nil {
			cfg.Logger.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		id := engine.PlayerID(uuid.NewString())
		s := &session{
			id:   id,
			conn: conn,
			hub:  h,
			cfg:  cfg,
			log:  cfg.Logger.With(zap.String("player_id", string(id))),
		}
		s.log.Debug("connected", zap.String("remote", r.RemoteAddr))

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		defer s.leave()

		s.readLoop(ctx)
	}
}

type session struct {
	id   engine.PlayerID
	conn *websocket.Conn
	hub  *hub.Hub
	cfg  Config
	log  *zap.Logger

	mu sync.Mutex
	lb *lobby.Lobby // current room, nil when not seated
}

func (s *session) readLoop(ctx context.Context) {
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				s.log.Debug("closed by client")
			default:
				s.log.Debug("read failed", zap.Error(err))
			}
			return
		}

		var cm types.ClientMessage
		if err := json.Unmarshal(data, &cm); err != nil {
			s.sendError(ctx, "Invalid message")
			continue
		}
		s.dispatch(ctx, cm)
	}
}

func (s *session) dispatch(ctx context.Context, cm types.ClientMessage) {
	switch cm.Event {
	case types.EvCreateRoom:
		var p types.CreateRoom
		if err := cm.DecodeData(&p); err != nil {
			s.sendError(ctx, "Invalid message")
			return
		}
		s.createRoom(ctx, p)

	case types.EvJoinRoom:
		var p types.JoinRoom
		if err := cm.DecodeData(&p); err != nil {
			s.sendError(ctx, "Invalid message")
			return
		}
		s.joinRoom(ctx, p)

	case types.EvPlayerReady, types.EvStartGame, types.EvRollDice, types.EvPassTurn:
		var p types.RoomAction
		if err := cm.DecodeData(&p); err != nil {
			s.sendError(ctx, "Invalid message")
			return
		}
		s.roomAction(cm.Event, p)

	default:
		s.sendError(ctx, "Unknown event")
	}
}

func (s *session) createRoom(ctx context.Context, p types.CreateRoom) {
	code := types.NormalizeRoomID(p.RoomID)
	name, err := types.NormalizeName(p.Username)
	if err != nil || code == "" {
		s.sendError(ctx, errorMessage(engine.ErrInvalidName))
		return
	}
	if s.current() != nil {
		s.sendError(ctx, errorMessage(errAlreadySeated))
		return
	}

	out := make(chan engine.Event, outboxSize)
	lb, err := s.hub.Create(ctx, code, s.id, name, s.cfg.ClampRerolls(p.MaxRerolls), out)
	if err != nil {
		s.log.Debug("create_room rejected", zap.String("room_id", code), zap.Error(err))
		s.sendError(ctx, errorMessage(err))
		return
	}
	s.seat(ctx, lb, out)
}

func (s *session) joinRoom(ctx context.Context, p types.JoinRoom) {
	code := types.NormalizeRoomID(p.RoomID)
	name, err := types.NormalizeName(p.Username)
	if err != nil {
		s.sendError(ctx, errorMessage(err))
		return
	}
	if s.current() != nil {
		s.sendError(ctx, errorMessage(errAlreadySeated))
		return
	}

	lb, err := s.hub.Get(ctx, code)
	if err == nil {
		out := make(chan engine.Event, outboxSize)
		if err = lb.Join(ctx, s.id, name, out); err == nil {
			s.seat(ctx, lb, out)
			return
		}
	}
	s.log.Debug("join_room rejected", zap.String("room_id", code), zap.Error(err))
	s.sendError(ctx, errorMessage(err))
}

func (s *session) roomAction(event string, p types.RoomAction) {
	lb := s.current()
	if lb == nil || lb.Code() != types.NormalizeRoomID(p.RoomID) {
		s.log.Debug("action for another room dropped", zap.String("event", event), zap.String("room_id", p.RoomID))
		return
	}

	var cmd engine.Command
	switch event {
	case types.EvPlayerReady:
		cmd = engine.CmdReady{Player: s.id}
	case types.EvStartGame:
		cmd = engine.CmdStart{Player: s.id}
	case types.EvRollDice:
		cmd = engine.CmdRoll{Player: s.id, Held: p.HeldPositions}
	case types.EvPassTurn:
		cmd = engine.CmdPass{Player: s.id}
	}
	lb.Submit(lobby.FromClient{Cmd: cmd})
}

// seat records the membership and starts the writer for out. The writer
// clears the membership once the room closes out.
func (s *session) seat(ctx context.Context, lb *lobby.Lobby, out <-chan engine.Event) {
	s.mu.Lock()
	s.lb = lb
	s.mu.Unlock()
	s.log.Info("seated", zap.String("room_id", lb.Code()))

	go func() {
		for ev := range out {
			s.write(ctx, types.NewServerMessage(ev))
		}
		s.mu.Lock()
		if s.lb == lb {
			s.lb = nil
		}
		s.mu.Unlock()
	}()
}

func (s *session) current() *lobby.Lobby {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lb == nil {
		return nil
	}
	select {
	case <-s.lb.Done():
		s.lb = nil
	default:
	}
	return s.lb
}

func (s *session) leave() {
	s.mu.Lock()
	lb := s.lb
	s.lb = nil
	s.mu.Unlock()
	if lb != nil {
		lb.Submit(lobby.Leave{PlayerID: s.id})
	}
}

func (s *session) write(ctx context.Context, msg types.ServerMessage) {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(wctx, s.conn, msg); err != nil {
		s.log.Debug("write failed", zap.String("event", msg.Event), zap.Error(err))
	}
}

func (s *session) sendError(ctx context.Context, message string) {
	s.write(ctx, types.ErrorMessage(message))
}

// A connection holds at most one seat.
var errAlreadySeated = fmt.Errorf("already in a room: %w", engine.ErrAlreadyExists)

func errorMessage(err error) string {
	switch {
	case errors.Is(err, errAlreadySeated):
		return "Already in a room"
	case errors.Is(err, engine.ErrNotFound):
		return "Room not found"
	case errors.Is(err, engine.ErrAlreadyExists):
		return "Room already exists"
	case errors.Is(err, engine.ErrGameInProgress):
		return "Game already in progress"
	case errors.Is(err, engine.ErrInvalidName):
		return "Invalid username"
	default:
		return "Server unavailable"
	}
}
