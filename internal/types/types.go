package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/DoyleJ11/dice-poker-backend/internal/engine"
)

const MaxNameRunes = 24

// Inbound event names.
const (
	EvCreateRoom  = "create_room"
	EvJoinRoom    = "join_room"
	EvPlayerReady = "player_ready"
	EvStartGame   = "start_game"
	EvRollDice    = "roll_dice"
	EvPassTurn    = "pass_turn"
)

// ClientMessage is one inbound frame. Data is decoded once Event is known.
type ClientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type CreateRoom struct {
	RoomID     string `json:"room_id"`
	Username   string `json:"username"`
	MaxRerolls int    `json:"max_rerolls,omitempty"`
}

type JoinRoom struct {
	RoomID   string `json:"room_id"`
	Username string `json:"username"`
}

// RoomAction carries the payload of player_ready, start_game, roll_dice and pass_turn.
type RoomAction struct {
	RoomID        string `json:"room_id"`
	HeldPositions []int  `json:"held_positions,omitempty"`
}

type ServerMessage struct {
	Event string       `json:"event"`
	Data  engine.Event `json:"data"`
}

func NewServerMessage(ev engine.Event) ServerMessage {
	return ServerMessage{Event: ev.EventName(), Data: ev}
}

func ErrorMessage(msg string) ServerMessage {
	return NewServerMessage(engine.ErrorEvent{Message: msg})
}

// DecodeData unmarshals m.Data into v. Missing data decodes as an empty object.
func (m ClientMessage) DecodeData(v any) error {
	if len(m.Data) == 0 || string(m.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", m.Event, err)
	}
	return nil
}

// NormalizeName trims and NFC-normalises a display name and caps it at
// MaxNameRunes runes.
func NormalizeName(raw string) (string, error) {
	name := strings.TrimSpace(norm.NFC.String(raw))
	if name == "" || !utf8.ValidString(name) {
		return "", engine.ErrInvalidName
	}
	if utf8.RuneCountInString(name) > MaxNameRunes {
		name = strings.TrimSpace(string([]rune(name)[:MaxNameRunes]))
	}
	return name, nil
}

// NormalizeRoomID trims surrounding whitespace; room ids are otherwise
// taken verbatim.
func NormalizeRoomID(raw string) string {
	return strings.TrimSpace(raw)
}
