package lobby

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/DoyleJ11/dice-poker-backend/internal/engine"
	"github.com/DoyleJ11/dice-poker-backend/internal/turntimer"
)

type Msg interface{ isLobbyMsg() }

// Join seats a player. Reply receives nil or the engine error.
type Join struct {
	PlayerID engine.PlayerID
	Name     string
	Outbox   chan engine.Event // where this player wants to receive events
	Reply    chan error
}

func (Join) isLobbyMsg() {}

type FromClient struct {
	Cmd engine.Command
}

func (FromClient) isLobbyMsg() {}

// Leave is an abrupt disconnect.
type Leave struct{ PlayerID engine.PlayerID }

func (Leave) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type timerFired struct{ generation uint64 }

func (timerFired) isLobbyMsg() {}

type View struct {
	Version    int
	NumClients int
	Phase      engine.Phase
	State      engine.State
	Deadline   time.Time
}

// ResultRecorder receives finished rounds. Record must not block.
type ResultRecorder interface {
	Record(over engine.GameOver)
}

type Options struct {
	Clock       clockwork.Clock
	TurnTimeout time.Duration
	Roller      engine.Roller
	Logger      *zap.Logger
	Results     ResultRecorder
	// OnEmpty runs on the lobby goroutine after the last player left and
	// the lobby context was cancelled.
	OnEmpty func(*Lobby)
}

type Lobby struct {
	code     string
	inbox    chan Msg
	state    engine.State
	version  int
	clients  map[engine.PlayerID]chan engine.Event
	timer    *turntimer.Timer
	deadline time.Time
	roller   engine.Roller
	results  ResultRecorder
	onEmpty  func(*Lobby)
	log      *zap.Logger
	closed   bool
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewLobby starts the room goroutine. greet is delivered to the host before
// any other message is processed.
func NewLobby(parent context.Context, initial engine.State, greet []engine.Envelope, hostOutbox chan engine.Event, opts Options) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Roller == nil {
		opts.Roller = engine.NewRandRoller(newSeed())
	}

	l := &Lobby{
		code:    initial.RoomID,
		inbox:   make(chan Msg, 64), // Small buffer
		state:   initial,
		clients: make(map[engine.PlayerID]chan engine.Event),
		roller:  opts.Roller,
		results: opts.Results,
		onEmpty: opts.OnEmpty,
		log:     opts.Logger.With(zap.String("room_id", initial.RoomID)),
		ctx:     ctx,
		cancel:  cancel,
	}
	l.timer = turntimer.New(opts.Clock, opts.TurnTimeout, func(gen uint64) {
		l.Submit(timerFired{generation: gen})
	})

	if len(initial.Players) > 0 {
		l.clients[initial.Players[0].ID] = hostOutbox
	}
	l.deliver(greet)

	go l.loop()
	return l
}

func (l *Lobby) loop() {
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				out, next, err := engine.Apply(l.state, engine.CmdJoin{Player: msg.PlayerID, Name: msg.Name}, l.roller)
				if err != nil {
					msg.Reply <- err
					break
				}
				// Register before delivering so the joiner sees its own greeting
				l.clients[msg.PlayerID] = msg.Outbox
				l.commit(next, out)
				msg.Reply <- nil

			case FromClient:
				l.handle(msg.Cmd)

			case Leave:
				l.handle(engine.CmdDisconnect{Player: msg.PlayerID})

			case timerFired:
				l.handle(engine.CmdTimeout{Generation: msg.generation})

			case GetState:
				// test-only: reflect internal state without data races
				msg.Reply <- View{
					Version:    l.version,
					NumClients: len(l.clients),
					Phase:      engine.DerivePhase(l.state),
					State:      l.state,
					Deadline:   l.deadline,
				}

			case Shutdown:
				l.shutdown()
				return
			}

			if l.closed {
				return
			}
		}
	}
}

func (l *Lobby) handle(cmd engine.Command) {
	out, next, err := engine.Apply(l.state, cmd, l.roller)
	if err != nil {
		// out-of-turn and duplicate client messages are expected; drop them
		l.log.Debug("command rejected", zap.Any("cmd", cmd), zap.Error(err))
		return
	}
	l.commit(next, out)
}

// commit swaps in the new state, then fans out its events in order.
func (l *Lobby) commit(next engine.State, out []engine.Envelope) {
	prevGen := l.state.Generation
	l.state = next
	l.version++

	l.deliver(out)
	l.dropDeparted()

	switch {
	case !next.GameActive:
		l.deadline = time.Time{}
	case next.Generation != prevGen:
		l.deadline = l.timer.Arm(next.Generation)
	}

	for _, env := range out {
		if over, ok := env.Event.(engine.GameOver); ok {
			l.log.Info("round finished", zap.String("winner", over.WinnerName), zap.Int("players", len(over.Results)))
			if l.results != nil {
				l.results.Record(over)
			}
		}
	}

	if len(next.Players) == 0 {
		l.teardown()
	}
}

func (l *Lobby) deliver(out []engine.Envelope) {
	for _, env := range out {
		if env.To != "" {
			l.send(env.To, env.Event)
			continue
		}
		for _, id := range l.state.Members() {
			l.send(id, env.Event)
		}
	}
}

func (l *Lobby) send(id engine.PlayerID, ev engine.Event) {
	ch, ok := l.clients[id]
	if !ok {
		return
	}
	select {
	case ch <- ev:
		//ok
	default:
		// Client is slow/full - drop the event, the seat stays
		l.log.Warn("client outbox full, dropping event",
			zap.String("player_id", string(id)),
			zap.String("event", ev.EventName()))
	}
}

// dropDeparted closes outboxes of clients no longer on the roster.
func (l *Lobby) dropDeparted() {
	for id, ch := range l.clients {
		if !l.state.Has(id) {
			close(ch) // Tell client no more events
			delete(l.clients, id)
		}
	}
}

func (l *Lobby) teardown() {
	l.closed = true
	l.cancel()
	l.log.Info("room empty, closing")
	if l.onEmpty != nil {
		l.onEmpty(l)
	}
}

func (l *Lobby) shutdown() {
	for id, ch := range l.clients {
		close(ch)
		delete(l.clients, id)
	}
	l.cancel()
}

// Expose the inbox so tests or WS layer can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

func (l *Lobby) Code() string { return l.code }

// Done is closed once the lobby stops accepting messages.
func (l *Lobby) Done() <-chan struct{} { return l.ctx.Done() }

// Submit enqueues m unless the lobby has stopped.
func (l *Lobby) Submit(m Msg) bool {
	select {
	case <-l.ctx.Done():
		return false
	default:
	}
	select {
	case l.inbox <- m:
		return true
	case <-l.ctx.Done():
		return false
	}
}

// Join seats a player and waits for the outcome. A lobby that has already
// closed reports engine.ErrNotFound.
func (l *Lobby) Join(ctx context.Context, id engine.PlayerID, name string, outbox chan engine.Event) error {
	reply := make(chan error, 1)
	if !l.Submit(Join{PlayerID: id, Name: name, Outbox: outbox, Reply: reply}) {
		return engine.ErrNotFound
	}
	select {
	case err := <-reply:
		return err
	case <-l.ctx.Done():
		select {
		case err := <-reply:
			return err
		default:
			return engine.ErrNotFound
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Lobby) Snapshot(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if !l.Submit(GetState{Reply: reply}) {
		return View{}, engine.ErrNotFound
	}
	select {
	case v := <-reply:
		return v, nil
	case <-l.ctx.Done():
		select {
		case v := <-reply:
			return v, nil
		default:
			return View{}, engine.ErrNotFound
		}
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}
