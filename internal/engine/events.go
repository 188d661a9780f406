package engine

// Event is an outbound message. EventName is the wire name.
type Event interface {
	EventName() string
}

// Envelope addresses an event. An empty To means every room member.
type Envelope struct {
	To    PlayerID
	Event Event
}

func broadcast(e Event) Envelope           { return Envelope{Event: e} }
func unicast(to PlayerID, e Event) Envelope { return Envelope{To: to, Event: e} }

type PlayerView struct {
	ID      PlayerID `json:"id"`
	Name    string   `json:"name"`
	IsReady bool     `json:"is_ready"`
	IsHost  bool     `json:"is_host"`
}

type RoomJoined struct {
	RoomID string `json:"room_id"`
	IsHost bool   `json:"is_host"`
	Config Config `json:"config"`
}

type UpdateRoom struct {
	Players []PlayerView `json:"players"`
}

type GameStarted struct {
	CurrentTurn       PlayerID `json:"current_turn"`
	CurrentPlayerName string   `json:"current_player_name"`
	Dice              Dice     `json:"dice"`
	RerollsLeft       int      `json:"rerolls_left"`
}

type DiceRolled struct {
	Dice        Dice     `json:"dice"`
	RerollsLeft int      `json:"rerolls_left"`
	PlayerID    PlayerID `json:"player_id"`
}

type TurnChange struct {
	CurrentTurn       PlayerID `json:"current_turn"`
	CurrentPlayerName string   `json:"current_player_name"`
	LastPlayerName    string   `json:"last_player_name"`
	LastPlayerHand    *Dice    `json:"last_player_hand,omitempty"`
	LastPlayerDesc    string   `json:"last_player_desc,omitempty"`
	RerollsLeft       int      `json:"rerolls_left"`
}

// Ranking is one row of the final standings.
type Ranking struct {
	Place       int      `json:"place"`
	PlayerID    PlayerID `json:"player_id"`
	Name        string   `json:"name"`
	Hand        Dice     `json:"hand"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
}

type GameOver struct {
	RoomID     string    `json:"room_id"`
	Results    []Ranking `json:"results"`
	WinnerName string    `json:"winner_name"`
}

type HostPromoted struct {
	IsHost bool `json:"is_host"`
}

type KickedInactive struct {
	RoomID string `json:"room_id"`
}

type PlayerStatusUpdate struct {
	PlayerID PlayerID `json:"player_id"`
	IsReady  bool     `json:"is_ready"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}

func (RoomJoined) EventName() string         { return "room_joined" }
func (UpdateRoom) EventName() string         { return "update_room" }
func (GameStarted) EventName() string        { return "game_started" }
func (DiceRolled) EventName() string         { return "dice_rolled" }
func (TurnChange) EventName() string         { return "turn_change" }
func (GameOver) EventName() string           { return "game_over" }
func (HostPromoted) EventName() string       { return "host_promoted" }
func (KickedInactive) EventName() string     { return "kicked_inactive" }
func (PlayerStatusUpdate) EventName() string { return "player_status_update" }
func (ErrorEvent) EventName() string         { return "error" }
