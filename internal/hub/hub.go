package hub

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/DoyleJ11/dice-poker-backend/internal/engine"
	"github.com/DoyleJ11/dice-poker-backend/internal/lobby"
)

// ErrClosed is returned by helpers once the hub has shut down.
var ErrClosed = errors.New("hub closed")

type HubMsg interface{ isHubMsg() }

type CreateLobby struct {
	Code       string
	Host       engine.PlayerID
	HostName   string
	MaxRerolls int
	Outbox     chan engine.Event // host's event stream
	Reply      chan CreateResult
}

type CreateResult struct {
	Lobby *lobby.Lobby
	Err   error
}

type GetLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

// RemoveLobby forgets Code only while it still maps to Lobby, so a room
// recreated under the same code is left alone.
type RemoveLobby struct {
	Code  string
	Lobby *lobby.Lobby
}

type ListLobbies struct {
	Reply chan []string
}

type ShutdownHub struct{}

func (CreateLobby) isHubMsg() {}
func (GetLobby) isHubMsg()    {}
func (RemoveLobby) isHubMsg() {}
func (ListLobbies) isHubMsg() {}
func (ShutdownHub) isHubMsg() {}

// Options are handed to every lobby the hub starts.
type Options struct {
	Lobby lobby.Options
	// NewRoller builds a roller per room. Nil means each lobby seeds its own.
	NewRoller func() engine.Roller
	Logger    *zap.Logger
}

type Hub struct {
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby
	opts    Options
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(parent context.Context, opts Options) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		opts:    opts,
		log:     opts.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateLobby:
				if lb := h.live(msg.Code); lb != nil {
					msg.Reply <- CreateResult{Err: engine.ErrAlreadyExists}
					break
				}
				lb := h.start(msg)
				h.lobbies[msg.Code] = lb
				h.log.Info("room created",
					zap.String("room_id", msg.Code),
					zap.String("host", string(msg.Host)),
					zap.Int("rooms", len(h.lobbies)))
				msg.Reply <- CreateResult{Lobby: lb}

			case GetLobby:
				msg.Reply <- h.live(msg.Code) // May be nil

			case RemoveLobby:
				if h.lobbies[msg.Code] == msg.Lobby {
					delete(h.lobbies, msg.Code)
					h.log.Info("room removed", zap.String("room_id", msg.Code), zap.Int("rooms", len(h.lobbies)))
				}

			case ListLobbies:
				codes := make([]string, 0, len(h.lobbies))
				for code := range h.lobbies {
					if h.live(code) != nil {
						codes = append(codes, code)
					}
				}
				sort.Strings(codes)
				msg.Reply <- codes

			case ShutdownHub:
				h.shutdown()
				h.cancel()
				return
			}
		}
	}
}

func (h *Hub) start(msg CreateLobby) *lobby.Lobby {
	state, greet := engine.NewRoom(msg.Code, msg.Host, msg.HostName, msg.MaxRerolls)

	opts := h.opts.Lobby
	opts.Logger = h.log
	if h.opts.NewRoller != nil {
		opts.Roller = h.opts.NewRoller()
	}
	code := msg.Code
	opts.OnEmpty = func(lb *lobby.Lobby) {
		select {
		case h.inbox <- RemoveLobby{Code: code, Lobby: lb}:
		case <-h.ctx.Done():
		}
	}
	return lobby.NewLobby(h.ctx, state, greet, msg.Outbox, opts)
}

// live returns the lobby for code unless it has already torn itself down
// and its RemoveLobby is still queued.
func (h *Hub) live(code string) *lobby.Lobby {
	lb := h.lobbies[code]
	if lb == nil {
		return nil
	}
	select {
	case <-lb.Done():
		return nil
	default:
		return lb
	}
}

func (h *Hub) shutdown() {
	for code, lb := range h.lobbies {
		lb.Submit(lobby.Shutdown{})
		delete(h.lobbies, code)
	}
	h.log.Info("hub stopped")
}

func (h *Hub) submit(ctx context.Context, m HubMsg) error {
	select {
	case <-h.ctx.Done():
		return ErrClosed
	default:
	}
	select {
	case h.inbox <- m:
		return nil
	case <-h.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Create starts a room with its host seated.
func (h *Hub) Create(ctx context.Context, code string, host engine.PlayerID, hostName string, maxRerolls int, outbox chan engine.Event) (*lobby.Lobby, error) {
	reply := make(chan CreateResult, 1)
	msg := CreateLobby{Code: code, Host: host, HostName: hostName, MaxRerolls: maxRerolls, Outbox: outbox, Reply: reply}
	if err := h.submit(ctx, msg); err != nil {
		return nil, err
	}
	select {
	case res := <-reply:
		return res.Lobby, res.Err
	case <-h.ctx.Done():
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Get looks up a live room. Missing rooms report engine.ErrNotFound.
func (h *Hub) Get(ctx context.Context, code string) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	if err := h.submit(ctx, GetLobby{Code: code, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case lb := <-reply:
		if lb == nil {
			return nil, engine.ErrNotFound
		}
		return lb, nil
	case <-h.ctx.Done():
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// List returns the codes of all live rooms, sorted.
func (h *Hub) List(ctx context.Context) ([]string, error) {
	reply := make(chan []string, 1)
	if err := h.submit(ctx, ListLobbies{Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case codes := <-reply:
		return codes, nil
	case <-h.ctx.Done():
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown stops every room. It does not wait for them to drain.
func (h *Hub) Shutdown() {
	select {
	case h.inbox <- ShutdownHub{}:
	case <-h.ctx.Done():
	}
}
