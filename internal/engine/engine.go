package engine

import (
	"errors"
	"slices"
	"sort"
)

var ErrNotFound = errors.New("not found")
var ErrAlreadyExists = errors.New("already exists")
var ErrGameInProgress = errors.New("game already in progress")
var ErrNotAuthorized = errors.New("not authorized")
var ErrStaleAction = errors.New("stale action")
var ErrIncompleteHand = errors.New("hand needs five concrete dice")
var ErrInvalidName = errors.New("invalid username")
var ErrUnsupportedCommand = errors.New("unsupported command")

type PlayerID string

type Player struct {
	ID    PlayerID
	Name  string
	Ready bool
	Hand  Dice
}

type Config struct {
	MaxRerolls int `json:"max_rerolls"`
}

type Phase string

const (
	PhaseLobby         Phase = "lobby"
	PhaseAwaitingRoll  Phase = "awaiting_roll"
	PhaseAwaitingPass  Phase = "awaiting_pass"
	PhaseRoundComplete Phase = "round_complete"
)

// State is one room. It is treated as a value: Apply works on a copy and
// hands the copy back only when the command succeeds.
type State struct {
	RoomID      string
	Players     []Player
	Config      Config
	GameActive  bool
	CurrentTurn int
	Dice        Dice
	RerollsLeft int
	Held        HoldMask
	Generation  uint64
}

/*
	CmdJoin       -> RoomJoined (joiner) -> UpdateRoom
	CmdReady      -> PlayerStatusUpdate
	CmdStart      -> KickedInactive (each kicked) -> UpdateRoom -> GameStarted
	CmdRoll       -> DiceRolled
	CmdPass       -> TurnChange, or GameOver after the last player
	CmdTimeout    -> same as CmdRoll with nothing held while rerolls remain, else CmdPass
	CmdDisconnect -> UpdateRoom -> HostPromoted (new host) -> TurnChange or GameOver if it was their turn
*/

type Command interface{ isCommand() }

type CmdJoin struct {
	Player PlayerID
	Name   string
}

type CmdReady struct{ Player PlayerID }

type CmdStart struct{ Player PlayerID }

type CmdRoll struct {
	Player PlayerID
	Held   []int
}

type CmdPass struct{ Player PlayerID }

// CmdTimeout is issued by the turn timer with the generation it was armed at.
type CmdTimeout struct{ Generation uint64 }

type CmdDisconnect struct{ Player PlayerID }

func (CmdJoin) isCommand()       {}
func (CmdReady) isCommand()      {}
func (CmdStart) isCommand()      {}
func (CmdRoll) isCommand()       {}
func (CmdPass) isCommand()       {}
func (CmdTimeout) isCommand()    {}
func (CmdDisconnect) isCommand() {}

// Removal describes the effect of taking a player out of the roster.
type Removal struct {
	Index        int
	Destroyed    bool
	HostMigrated bool
}

// Apply runs cmd against s. On error the original state is returned
// untouched and no envelopes are produced. ErrStaleAction, ErrNotAuthorized
// and ErrNotFound from in-room commands are expected under network jitter
// and are meant to be dropped by the caller.
func Apply(s State, cmd Command, roller Roller) ([]Envelope, State, error) {
	ns := s.clone()

	var out []Envelope
	var err error
	switch c := cmd.(type) {
	case CmdJoin:
		out, err = ns.join(c)
	case CmdReady:
		out, err = ns.ready(c)
	case CmdStart:
		out, err = ns.start(c)
	case CmdRoll:
		out, err = ns.roll(c, roller)
	case CmdPass:
		out, err = ns.pass(c, roller)
	case CmdTimeout:
		out, err = ns.timeout(c, roller)
	case CmdDisconnect:
		out, err = ns.disconnect(c, roller)
	default:
		err = ErrUnsupportedCommand
	}
	if err != nil {
		return nil, s, err
	}
	return out, ns, nil
}

// RemovePlayer takes id out of the roster, rebasing the turn pointer so it
// keeps pointing at the same logical player.
func RemovePlayer(s State, id PlayerID) (State, Removal, error) {
	ns := s.clone()
	i := ns.indexOf(id)
	if i < 0 {
		return s, Removal{}, ErrNotFound
	}
	return ns, ns.removeAt(i), nil
}

func (s *State) join(c CmdJoin) ([]Envelope, error) {
	if s.GameActive {
		return nil, ErrGameInProgress
	}
	if s.indexOf(c.Player) >= 0 {
		return nil, ErrAlreadyExists
	}

	s.Players = append(s.Players, Player{ID: c.Player, Name: c.Name})
	return []Envelope{
		unicast(c.Player, RoomJoined{RoomID: s.RoomID, IsHost: false, Config: s.Config}),
		broadcast(s.roster()),
	}, nil
}

func (s *State) ready(c CmdReady) ([]Envelope, error) {
	if s.GameActive {
		return nil, ErrStaleAction
	}
	i := s.indexOf(c.Player)
	if i < 0 {
		return nil, ErrNotFound
	}

	s.Players[i].Ready = true
	return []Envelope{broadcast(PlayerStatusUpdate{PlayerID: c.Player, IsReady: true})}, nil
}

func (s *State) start(c CmdStart) ([]Envelope, error) {
	i := s.indexOf(c.Player)
	if i < 0 {
		return nil, ErrNotFound
	}
	if i != 0 {
		return nil, ErrNotAuthorized
	}
	if s.GameActive {
		return nil, ErrStaleAction
	}

	var out []Envelope
	kept := make([]Player, 0, len(s.Players))
	for idx, p := range s.Players {
		if idx == 0 || p.Ready {
			kept = append(kept, Player{ID: p.ID, Name: p.Name})
			continue
		}
		out = append(out, unicast(p.ID, KickedInactive{RoomID: s.RoomID}))
	}
	s.Players = kept

	s.GameActive = true
	s.CurrentTurn = 0
	s.resetTurn()
	s.Generation++

	first := s.Players[0]
	out = append(out,
		broadcast(s.roster()),
		broadcast(GameStarted{
			CurrentTurn:       first.ID,
			CurrentPlayerName: first.Name,
			Dice:              s.Dice,
			RerollsLeft:       s.RerollsLeft,
		}),
	)
	return out, nil
}

func (s *State) roll(c CmdRoll, roller Roller) ([]Envelope, error) {
	if !s.GameActive || !s.isCurrent(c.Player) || s.RerollsLeft <= 0 {
		return nil, ErrStaleAction
	}

	held := NewHoldMask(c.Held)
	s.Dice = rollDice(s.Dice, held, roller)
	s.RerollsLeft--
	s.Held = held
	s.Generation++

	return []Envelope{broadcast(DiceRolled{Dice: s.Dice, RerollsLeft: s.RerollsLeft, PlayerID: c.Player})}, nil
}

func (s *State) pass(c CmdPass, roller Roller) ([]Envelope, error) {
	if !s.GameActive || !s.isCurrent(c.Player) {
		return nil, ErrStaleAction
	}

	hand := s.Dice
	if !hand.Complete() {
		hand = randomHand(roller)
	}
	cur := s.CurrentTurn
	s.Players[cur].Hand = hand

	s.CurrentTurn++
	if s.CurrentTurn == len(s.Players) {
		return s.resolveRound(roller), nil
	}
	return s.advance(s.Players[cur].Name, hand), nil
}

func (s *State) timeout(c CmdTimeout, roller Roller) ([]Envelope, error) {
	if !s.GameActive || c.Generation != s.Generation || s.CurrentTurn >= len(s.Players) {
		return nil, ErrStaleAction
	}

	cur := s.Players[s.CurrentTurn].ID
	if s.RerollsLeft > 0 {
		return s.roll(CmdRoll{Player: cur}, roller)
	}
	return s.pass(CmdPass{Player: cur}, roller)
}

func (s *State) disconnect(c CmdDisconnect, roller Roller) ([]Envelope, error) {
	i := s.indexOf(c.Player)
	if i < 0 {
		return nil, ErrNotFound
	}

	wasCurrent := s.GameActive && i == s.CurrentTurn
	name := s.Players[i].Name
	var hand Dice
	if wasCurrent {
		// keep what is showing, draw only the undetermined slots
		hand = rollDice(s.Dice, NewHoldMask([]int{0, 1, 2, 3, 4}), roller)
	}

	rm := s.removeAt(i)
	if rm.Destroyed {
		return nil, nil
	}

	out := []Envelope{broadcast(s.roster())}
	if rm.HostMigrated {
		out = append(out, unicast(s.Players[0].ID, HostPromoted{IsHost: true}))
	}
	if !wasCurrent {
		return out, nil
	}
	if s.CurrentTurn == len(s.Players) {
		return append(out, s.resolveRound(roller)...), nil
	}
	return append(out, s.advance(name, hand)...), nil
}

// advance hands the turn to the player now at CurrentTurn.
func (s *State) advance(lastName string, lastHand Dice) []Envelope {
	s.resetTurn()
	s.Generation++

	// lastHand is always complete here
	_, desc, _ := Evaluate(lastHand)
	next := s.Players[s.CurrentTurn]
	return []Envelope{broadcast(TurnChange{
		CurrentTurn:       next.ID,
		CurrentPlayerName: next.Name,
		LastPlayerName:    lastName,
		LastPlayerHand:    &lastHand,
		LastPlayerDesc:    desc,
		RerollsLeft:       s.RerollsLeft,
	})}
}

func (s *State) resolveRound(roller Roller) []Envelope {
	type scored struct {
		player Player
		score  Score
		desc   string
	}

	rows := make([]scored, 0, len(s.Players))
	for i := range s.Players {
		if !s.Players[i].Hand.Complete() {
			s.Players[i].Hand = randomHand(roller)
		}
		score, desc, _ := Evaluate(s.Players[i].Hand)
		rows = append(rows, scored{player: s.Players[i], score: score, desc: desc})
	}
	// stable: equal scores keep roster order, so the earlier seat wins ties
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].score.Beats(rows[j].score) })

	results := make([]Ranking, len(rows))
	for i, r := range rows {
		results[i] = Ranking{
			Place:       i + 1,
			PlayerID:    r.player.ID,
			Name:        r.player.Name,
			Hand:        r.player.Hand,
			Description: r.desc,
			Category:    r.score.Category.String(),
		}
	}

	s.GameActive = false
	s.CurrentTurn = 0
	s.resetTurn()
	s.Generation++

	return []Envelope{broadcast(GameOver{RoomID: s.RoomID, Results: results, WinnerName: results[0].Name})}
}

func (s *State) removeAt(i int) Removal {
	s.Players = slices.Delete(s.Players, i, i+1)
	if s.GameActive && i < s.CurrentTurn {
		s.CurrentTurn--
	}
	return Removal{
		Index:        i,
		Destroyed:    len(s.Players) == 0,
		HostMigrated: i == 0 && len(s.Players) > 0,
	}
}

func (s *State) resetTurn() {
	s.Dice = Dice{}
	s.RerollsLeft = s.Config.MaxRerolls
	s.Held = 0
}

func (s *State) isCurrent(id PlayerID) bool {
	return s.CurrentTurn >= 0 && s.CurrentTurn < len(s.Players) && s.Players[s.CurrentTurn].ID == id
}

func (s *State) indexOf(id PlayerID) int {
	return slices.IndexFunc(s.Players, func(p Player) bool { return p.ID == id })
}

func (s *State) roster() UpdateRoom {
	players := make([]PlayerView, len(s.Players))
	for i, p := range s.Players {
		players[i] = PlayerView{ID: p.ID, Name: p.Name, IsReady: p.Ready, IsHost: i == 0}
	}
	return UpdateRoom{Players: players}
}

func (s State) clone() State {
	s.Players = slices.Clone(s.Players)
	return s
}
