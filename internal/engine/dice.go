package engine

import (
	"encoding/json"
	"fmt"
	"math/rand"
)

// DiceCount is the number of dice in a hand.
const DiceCount = 5

// Face is one side of a poker die. The zero value is an undetermined die.
type Face int8

const (
	FaceUndetermined Face = 0
	FaceNine         Face = 9
	FaceTen          Face = 10
	FaceJack         Face = 11
	FaceQueen        Face = 12
	FaceKing         Face = 13
	FaceAce          Face = 14
)

// Faces lists the six die faces, highest rank first.
var Faces = [6]Face{FaceAce, FaceKing, FaceQueen, FaceJack, FaceTen, FaceNine}

var faceSymbols = map[Face]string{
	FaceUndetermined: "?",
	FaceNine:         "9♠",
	FaceTen:          "10♥",
	FaceJack:         "J",
	FaceQueen:        "Q",
	FaceKing:         "K",
	FaceAce:          "A",
}

func (f Face) String() string {
	if s, ok := faceSymbols[f]; ok {
		return s
	}
	return fmt.Sprintf("Face(%d)", int8(f))
}

// Rank is the face's value in hand comparisons.
func (f Face) Rank() int { return int(f) }

func (f Face) Concrete() bool {
	return f >= FaceNine && f <= FaceAce
}

func (f Face) MarshalText() ([]byte, error) {
	if _, ok := faceSymbols[f]; !ok {
		return nil, fmt.Errorf("invalid face %d", int8(f))
	}
	return []byte(f.String()), nil
}

func (f *Face) UnmarshalText(b []byte) error {
	for face, sym := range faceSymbols {
		if sym == string(b) {
			*f = face
			return nil
		}
	}
	return fmt.Errorf("unknown face %q", string(b))
}

// Dice is the five-slot dice tray.
type Dice [DiceCount]Face

// Complete reports whether every slot holds a concrete face.
func (d Dice) Complete() bool {
	for _, f := range d {
		if !f.Concrete() {
			return false
		}
	}
	return true
}

// Empty reports whether no slot has been rolled.
func (d Dice) Empty() bool { return d == Dice{} }

func (d Dice) MarshalJSON() ([]byte, error) {
	out := make([]string, DiceCount)
	for i, f := range d {
		out[i] = f.String()
	}
	return json.Marshal(out)
}

// HoldMask is a bit set of die positions kept on the next roll.
type HoldMask uint8

// NewHoldMask builds a mask from client supplied positions, ignoring
// anything outside 0..4.
func NewHoldMask(positions []int) HoldMask {
	var m HoldMask
	for _, p := range positions {
		if p >= 0 && p < DiceCount {
			m |= 1 << p
		}
	}
	return m
}

func (m HoldMask) Has(pos int) bool {
	return pos >= 0 && pos < DiceCount && m&(1<<pos) != 0
}

// Positions returns the held positions in ascending order.
func (m HoldMask) Positions() []int {
	out := []int{}
	for i := 0; i < DiceCount; i++ {
		if m.Has(i) {
			out = append(out, i)
		}
	}
	return out
}

// Roller draws die faces. Implementations are used from a single room
// goroutine and need not be safe for concurrent use.
type Roller interface {
	Roll() Face
}

// RandRoller draws faces uniformly from a math/rand source.
type RandRoller struct {
	rng *rand.Rand
}

func NewRandRoller(seed int64) *RandRoller {
	return &RandRoller{rng: rand.New(rand.NewSource(seed))}
}

func (r *RandRoller) Roll() Face {
	return Faces[r.rng.Intn(len(Faces))]
}

// rollDice keeps held concrete dice and redraws the rest.
func rollDice(cur Dice, held HoldMask, roller Roller) Dice {
	var next Dice
	for i := range cur {
		if held.Has(i) && cur[i].Concrete() {
			next[i] = cur[i]
			continue
		}
		next[i] = roller.Roll()
	}
	return next
}

// randomHand draws a complete fresh hand.
func randomHand(roller Roller) Dice {
	return rollDice(Dice{}, 0, roller)
}
