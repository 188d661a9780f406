package engine

import (
	"fmt"
	"sort"
)

// Category is a hand class; higher values beat lower ones.
type Category int

const (
	HighCard Category = iota
	OnePair
	TwoPair
	ThreeOfAKind
	FullHouse
	FourOfAKind
	FiveOfAKind
)

var categoryNames = map[Category]string{
	HighCard:     "High Card",
	OnePair:      "One Pair",
	TwoPair:      "Two Pair",
	ThreeOfAKind: "Three of a Kind",
	FullHouse:    "Full House",
	FourOfAKind:  "Four of a Kind",
	FiveOfAKind:  "Five of a Kind",
}

func (c Category) String() string {
	if n, ok := categoryNames[c]; ok {
		return n
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// Score orders hands. Ranks holds the group ranks ordered by group size
// then rank, padded with zeros.
type Score struct {
	Category Category
	Ranks    [DiceCount]int
}

// Compare returns -1, 0 or 1 as s is lower than, equal to or higher than o.
func (s Score) Compare(o Score) int {
	if s.Category != o.Category {
		if s.Category < o.Category {
			return -1
		}
		return 1
	}
	for i := range s.Ranks {
		switch {
		case s.Ranks[i] < o.Ranks[i]:
			return -1
		case s.Ranks[i] > o.Ranks[i]:
			return 1
		}
	}
	return 0
}

// Beats reports whether s strictly outranks o.
func (s Score) Beats(o Score) bool { return s.Compare(o) > 0 }

type group struct {
	face Face
	size int
}

// Evaluate scores a complete hand and describes it.
func Evaluate(hand Dice) (Score, string, error) {
	if !hand.Complete() {
		return Score{}, "", ErrIncompleteHand
	}

	counts := map[Face]int{}
	for _, f := range hand {
		counts[f]++
	}
	groups := make([]group, 0, len(counts))
	for f, n := range counts {
		groups = append(groups, group{face: f, size: n})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].size != groups[j].size {
			return groups[i].size > groups[j].size
		}
		return groups[i].face > groups[j].face
	})

	score := Score{Category: classify(groups)}
	for i, g := range groups {
		score.Ranks[i] = g.face.Rank()
	}
	return score, describe(score.Category, groups), nil
}

func classify(groups []group) Category {
	switch groups[0].size {
	case 5:
		return FiveOfAKind
	case 4:
		return FourOfAKind
	case 3:
		if groups[1].size == 2 {
			return FullHouse
		}
		return ThreeOfAKind
	case 2:
		if groups[1].size == 2 {
			return TwoPair
		}
		return OnePair
	default:
		return HighCard
	}
}

func describe(c Category, groups []group) string {
	if c == FullHouse || c == TwoPair {
		return fmt.Sprintf("%s (%s over %s)", c, groups[0].face, groups[1].face)
	}
	return fmt.Sprintf("%s (%s)", c, groups[0].face)
}
