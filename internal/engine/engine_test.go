package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptRoller replays faces in a loop so rolls are predictable.
type scriptRoller struct {
	faces []Face
	n     int
}

func (r *scriptRoller) Roll() Face {
	f := r.faces[r.n%len(r.faces)]
	r.n++
	return f
}

func cycle(faces ...Face) *scriptRoller { return &scriptRoller{faces: faces} }

func mustApply(t *testing.T, s State, cmd Command, r Roller) ([]Envelope, State) {
	t.Helper()
	out, ns, err := Apply(s, cmd, r)
	require.NoError(t, err)
	return out, ns
}

// startedRoom seats "host" plus the given ready players and starts the game.
func startedRoom(t *testing.T, others ...PlayerID) State {
	t.Helper()
	r := cycle(A)
	s, _ := NewRoom("R1", "host", "Host", 3)
	for _, id := range others {
		_, s = mustApply(t, s, CmdJoin{Player: id, Name: string(id)}, r)
		_, s = mustApply(t, s, CmdReady{Player: id}, r)
	}
	_, s = mustApply(t, s, CmdStart{Player: "host"}, r)
	return s
}

func eventsNamed(envs []Envelope, name string) []Envelope {
	var out []Envelope
	for _, env := range envs {
		if env.Event.EventName() == name {
			out = append(out, env)
		}
	}
	return out
}

func TestNewRoom_GreetsHost(t *testing.T) {
	s, greet := NewRoom("R1", "host", "Host", 3)

	require.Len(t, greet, 2)
	assert.Equal(t, Envelope{To: "host", Event: RoomJoined{RoomID: "R1", IsHost: true, Config: Config{MaxRerolls: 3}}}, greet[0])
	assert.Equal(t, PhaseLobby, DerivePhase(s))
	assert.Equal(t, Dice{}, s.Dice)
	assert.Equal(t, 3, s.RerollsLeft)
	assert.Equal(t, []PlayerID{"host"}, s.Members())
}

func TestFullRound_TwoPlayers(t *testing.T) {
	r := cycle(A, K, Q, J, T, N)

	s, _ := NewRoom("R1", "host", "Host", 3)
	_, s = mustApply(t, s, CmdJoin{Player: "p2", Name: "Two"}, r)
	_, s = mustApply(t, s, CmdReady{Player: "p2"}, r)
	out, s := mustApply(t, s, CmdStart{Player: "host"}, r)

	assert.True(t, ContainsEvent(out, "game_started"))
	assert.Equal(t, []PlayerID{"host", "p2"}, s.Members())
	assert.Equal(t, Dice{}, s.Dice)
	assert.Equal(t, 3, s.RerollsLeft)
	assert.Equal(t, 0, s.CurrentTurn)
	assert.True(t, s.GameActive)

	for want := 2; want >= 0; want-- {
		out, s = mustApply(t, s, CmdRoll{Player: "host"}, r)
		require.Len(t, out, 1)
		rolled := out[0].Event.(DiceRolled)
		assert.Equal(t, want, rolled.RerollsLeft)
		assert.Equal(t, want, s.RerollsLeft)
		assert.True(t, s.Dice.Complete())
	}
	assert.Equal(t, PhaseAwaitingPass, DerivePhase(s))

	_, same, err := Apply(s, CmdRoll{Player: "host"}, r)
	assert.ErrorIs(t, err, ErrStaleAction)
	assert.Equal(t, 0, same.RerollsLeft)

	shown := s.Dice
	out, s = mustApply(t, s, CmdPass{Player: "host"}, r)
	assert.Equal(t, 1, s.CurrentTurn)
	assert.Equal(t, shown, s.Players[0].Hand)
	require.Len(t, out, 1)
	change := out[0].Event.(TurnChange)
	assert.Equal(t, PlayerID("p2"), change.CurrentTurn)
	assert.Equal(t, "Two", change.CurrentPlayerName)
	assert.Equal(t, "Host", change.LastPlayerName)
	require.NotNil(t, change.LastPlayerHand)
	assert.Equal(t, shown, *change.LastPlayerHand)
	assert.NotEmpty(t, change.LastPlayerDesc)
	assert.Equal(t, 3, change.RerollsLeft)
	assert.Equal(t, Dice{}, s.Dice)

	out, s = mustApply(t, s, CmdPass{Player: "p2"}, r)
	assert.True(t, s.Players[1].Hand.Complete())
	assert.False(t, s.GameActive)
	assert.Equal(t, PhaseLobby, DerivePhase(s))

	require.Len(t, out, 1)
	over := out[0].Event.(GameOver)
	require.Len(t, over.Results, 2)
	assert.Equal(t, over.Results[0].Name, over.WinnerName)
	first, _, err := Evaluate(over.Results[0].Hand)
	require.NoError(t, err)
	second, _, err := Evaluate(over.Results[1].Hand)
	require.NoError(t, err)
	assert.False(t, second.Beats(first))
	assert.Equal(t, 1, over.Results[0].Place)
	assert.Equal(t, 2, over.Results[1].Place)
}

func TestRoll_HeldPositions(t *testing.T) {
	cases := []struct {
		name   string
		first  *scriptRoller // nil: no roll before the held one
		held   []int
		second *scriptRoller
		want   Dice
	}{
		{name: "keeps held concrete dice", first: cycle(A), held: []int{0, 2}, second: cycle(K), want: Dice{A, K, A, K, K}},
		{name: "held undetermined dice are drawn", held: []int{0, 2}, second: cycle(Q), want: Dice{Q, Q, Q, Q, Q}},
		{name: "out of range positions ignored", first: cycle(J), held: []int{-1, 4, 9}, second: cycle(N), want: Dice{N, N, N, N, J}},
		{name: "nothing held redraws all", first: cycle(A), second: cycle(T), want: Dice{T, T, T, T, T}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := startedRoom(t, "p2")
			if tc.first != nil {
				_, s = mustApply(t, s, CmdRoll{Player: "host"}, tc.first)
			}
			_, s = mustApply(t, s, CmdRoll{Player: "host", Held: tc.held}, tc.second)
			assert.Equal(t, tc.want, s.Dice)
			assert.Equal(t, NewHoldMask(tc.held), s.Held)
			for _, pos := range s.Held.Positions() {
				assert.True(t, s.Dice[pos].Concrete())
			}
		})
	}
}

func TestRoll_RejectsStaleActions(t *testing.T) {
	s := startedRoom(t, "p2")

	cases := []struct {
		name  string
		setup func(State) State
		cmd   Command
	}{
		{name: "not your turn", cmd: CmdRoll{Player: "p2"}},
		{name: "unknown player", cmd: CmdRoll{Player: "ghost"}},
		{name: "no rerolls left", setup: func(s State) State { s.RerollsLeft = 0; return s }, cmd: CmdRoll{Player: "host"}},
		{name: "game not active", setup: func(s State) State { s.GameActive = false; return s }, cmd: CmdRoll{Player: "host"}},
		{name: "pass out of turn", cmd: CmdPass{Player: "p2"}},
		{name: "ready during game", cmd: CmdReady{Player: "p2"}},
		{name: "second start", cmd: CmdStart{Player: "host"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := s
			if tc.setup != nil {
				in = tc.setup(in.clone())
			}
			out, ns, err := Apply(in, tc.cmd, cycle(A))
			assert.ErrorIs(t, err, ErrStaleAction)
			assert.Nil(t, out)
			assert.Equal(t, in, ns)
		})
	}
}

func TestRerollsNeverNegative(t *testing.T) {
	s := startedRoom(t)
	for i := 0; i < 10; i++ {
		_, ns, err := Apply(s, CmdRoll{Player: "host"}, cycle(K))
		if err != nil {
			assert.ErrorIs(t, err, ErrStaleAction)
		}
		s = ns
		assert.GreaterOrEqual(t, s.RerollsLeft, 0)
	}
	assert.Equal(t, 0, s.RerollsLeft)
}

func TestPass_TurnIndexClimbsThenResolvesOnce(t *testing.T) {
	s := startedRoom(t, "p2", "p3", "p4")
	r := cycle(A, K, Q)

	gameOvers := 0
	prev := s.CurrentTurn
	for _, id := range []PlayerID{"host", "p2", "p3", "p4"} {
		var out []Envelope
		out, s = mustApply(t, s, CmdPass{Player: id}, r)
		gameOvers += len(eventsNamed(out, "game_over"))
		if s.GameActive {
			assert.Greater(t, s.CurrentTurn, prev)
			prev = s.CurrentTurn
		}
	}
	assert.Equal(t, 1, gameOvers)
	assert.False(t, s.GameActive)

	_, _, err := Apply(s, CmdPass{Player: "host"}, r)
	assert.ErrorIs(t, err, ErrStaleAction)
}

func TestPass_WithoutRollDrawsFreshHand(t *testing.T) {
	s := startedRoom(t, "p2")
	out, s := mustApply(t, s, CmdPass{Player: "host"}, cycle(J))

	assert.Equal(t, Dice{J, J, J, J, J}, s.Players[0].Hand)
	change := out[0].Event.(TurnChange)
	assert.Equal(t, "Five of a Kind (J)", change.LastPlayerDesc)
}

func TestTimeout(t *testing.T) {
	t.Run("stale generation is a no-op", func(t *testing.T) {
		s := startedRoom(t, "p2")
		armed := s.Generation
		_, s = mustApply(t, s, CmdRoll{Player: "host"}, cycle(A))

		out, ns, err := Apply(s, CmdTimeout{Generation: armed}, cycle(K))
		assert.ErrorIs(t, err, ErrStaleAction)
		assert.Empty(t, out)
		assert.Equal(t, s, ns)
	})

	t.Run("rolls everything while rerolls remain then passes", func(t *testing.T) {
		s := startedRoom(t, "p2")
		_, s = mustApply(t, s, CmdRoll{Player: "host", Held: []int{0}}, cycle(A))

		for want := 1; want >= 0; want-- {
			out, ns := mustApply(t, s, CmdTimeout{Generation: s.Generation}, cycle(K))
			require.Len(t, out, 1)
			assert.Equal(t, "dice_rolled", out[0].Event.EventName())
			assert.Equal(t, Dice{K, K, K, K, K}, ns.Dice)
			assert.Equal(t, want, ns.RerollsLeft)
			s = ns
		}

		out, s := mustApply(t, s, CmdTimeout{Generation: s.Generation}, cycle(Q))
		require.Len(t, out, 1)
		change := out[0].Event.(TurnChange)
		assert.Equal(t, PlayerID("p2"), change.CurrentTurn)
		assert.Equal(t, Dice{K, K, K, K, K}, s.Players[0].Hand)
	})

	t.Run("ignored outside a game", func(t *testing.T) {
		s, _ := NewRoom("R1", "host", "Host", 3)
		_, _, err := Apply(s, CmdTimeout{Generation: s.Generation}, cycle(A))
		assert.ErrorIs(t, err, ErrStaleAction)
	})
}

func TestStart(t *testing.T) {
	t.Run("only the host may start", func(t *testing.T) {
		s, _ := NewRoom("R1", "host", "Host", 3)
		_, s = mustApply(t, s, CmdJoin{Player: "p2", Name: "Two"}, cycle(A))
		_, s = mustApply(t, s, CmdReady{Player: "p2"}, cycle(A))

		out, ns, err := Apply(s, CmdStart{Player: "p2"}, cycle(A))
		assert.ErrorIs(t, err, ErrNotAuthorized)
		assert.Nil(t, out)
		assert.False(t, ns.GameActive)
	})

	t.Run("kicks players who are not ready", func(t *testing.T) {
		r := cycle(A)
		s, _ := NewRoom("R1", "host", "Host", 3)
		_, s = mustApply(t, s, CmdJoin{Player: "p2", Name: "Two"}, r)
		_, s = mustApply(t, s, CmdJoin{Player: "p3", Name: "Three"}, r)
		_, s = mustApply(t, s, CmdReady{Player: "p2"}, r)

		out, s := mustApply(t, s, CmdStart{Player: "host"}, r)

		assert.Equal(t, []PlayerID{"host", "p2"}, s.Members())
		kicked := eventsNamed(out, "kicked_inactive")
		require.Len(t, kicked, 1)
		assert.Equal(t, PlayerID("p3"), kicked[0].To)
		for _, p := range s.Players {
			assert.False(t, p.Ready)
			assert.True(t, p.Hand.Empty())
		}

		started := eventsNamed(out, "game_started")
		require.Len(t, started, 1)
		assert.Equal(t, GameStarted{CurrentTurn: "host", CurrentPlayerName: "Host", Dice: Dice{}, RerollsLeft: 3}, started[0].Event)
	})

	t.Run("bumps the generation", func(t *testing.T) {
		s, _ := NewRoom("R1", "host", "Host", 3)
		_, ns := mustApply(t, s, CmdStart{Player: "host"}, cycle(A))
		assert.Greater(t, ns.Generation, s.Generation)
	})

	t.Run("clears hands from the last round", func(t *testing.T) {
		s := startedRoom(t, "p2")
		_, s = mustApply(t, s, CmdPass{Player: "host"}, cycle(A))
		_, s = mustApply(t, s, CmdPass{Player: "p2"}, cycle(K))
		require.False(t, s.GameActive)
		require.False(t, s.Players[0].Hand.Empty())

		_, s = mustApply(t, s, CmdReady{Player: "p2"}, cycle(A))
		_, s = mustApply(t, s, CmdStart{Player: "host"}, cycle(A))
		assert.True(t, s.Players[0].Hand.Empty())
		assert.True(t, s.Players[1].Hand.Empty())
	})
}

func TestJoin(t *testing.T) {
	s, _ := NewRoom("R1", "host", "Host", 2)

	out, s := mustApply(t, s, CmdJoin{Player: "p2", Name: "Two"}, cycle(A))
	require.Len(t, out, 2)
	assert.Equal(t, Envelope{To: "p2", Event: RoomJoined{RoomID: "R1", Config: Config{MaxRerolls: 2}}}, out[0])
	roster := out[1].Event.(UpdateRoom)
	assert.Equal(t, []PlayerView{
		{ID: "host", Name: "Host", IsHost: true},
		{ID: "p2", Name: "Two"},
	}, roster.Players)

	_, _, err := Apply(s, CmdJoin{Player: "p2", Name: "Again"}, cycle(A))
	assert.ErrorIs(t, err, ErrAlreadyExists)

	_, s = mustApply(t, s, CmdReady{Player: "p2"}, cycle(A))
	_, s = mustApply(t, s, CmdStart{Player: "host"}, cycle(A))
	_, _, err = Apply(s, CmdJoin{Player: "late", Name: "Late"}, cycle(A))
	assert.ErrorIs(t, err, ErrGameInProgress)
}

func TestReady_UnknownPlayerIsNoop(t *testing.T) {
	s, _ := NewRoom("R1", "host", "Host", 3)
	out, ns, err := Apply(s, CmdReady{Player: "ghost"}, cycle(A))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, out)
	assert.Equal(t, s, ns)
}

func TestDisconnect(t *testing.T) {
	t.Run("host leaves the lobby", func(t *testing.T) {
		r := cycle(A)
		s, _ := NewRoom("R1", "host", "Host", 3)
		_, s = mustApply(t, s, CmdJoin{Player: "p2", Name: "Two"}, r)
		_, s = mustApply(t, s, CmdJoin{Player: "p3", Name: "Three"}, r)

		out, s := mustApply(t, s, CmdDisconnect{Player: "host"}, r)

		assert.Equal(t, []PlayerID{"p2", "p3"}, s.Members())
		require.Len(t, out, 2)
		roster := out[0].Event.(UpdateRoom)
		assert.Equal(t, PlayerView{ID: "p2", Name: "Two", IsHost: true}, roster.Players[0])
		assert.Equal(t, Envelope{To: "p2", Event: HostPromoted{IsHost: true}}, out[1])
	})

	t.Run("current player leaves mid-round", func(t *testing.T) {
		s := startedRoom(t, "p2", "p3")
		_, s = mustApply(t, s, CmdPass{Player: "host"}, cycle(A))
		_, s = mustApply(t, s, CmdRoll{Player: "p2"}, cycle(K))
		before := s.Generation

		out, s := mustApply(t, s, CmdDisconnect{Player: "p2"}, cycle(Q))

		assert.Equal(t, []PlayerID{"host", "p3"}, s.Members())
		assert.Equal(t, 1, s.CurrentTurn)
		assert.Greater(t, s.Generation, before)
		assert.Empty(t, eventsNamed(out, "host_promoted"))
		changes := eventsNamed(out, "turn_change")
		require.Len(t, changes, 1)
		change := changes[0].Event.(TurnChange)
		assert.Equal(t, PlayerID("p3"), change.CurrentTurn)
		assert.Equal(t, "p2", change.LastPlayerName)
		assert.Equal(t, Dice{K, K, K, K, K}, *change.LastPlayerHand)
		assert.Equal(t, Dice{}, s.Dice)
		assert.Equal(t, 3, s.RerollsLeft)

		out, s = mustApply(t, s, CmdPass{Player: "p3"}, cycle(J))
		over := eventsNamed(out, "game_over")
		require.Len(t, over, 1)
		assert.Len(t, over[0].Event.(GameOver).Results, 2)
		assert.False(t, s.GameActive)
	})

	t.Run("last seat leaving on its turn resolves the round", func(t *testing.T) {
		s := startedRoom(t, "p2")
		_, s = mustApply(t, s, CmdPass{Player: "host"}, cycle(A))

		out, s := mustApply(t, s, CmdDisconnect{Player: "p2"}, cycle(K))

		assert.Equal(t, []PlayerID{"host"}, s.Members())
		over := eventsNamed(out, "game_over")
		require.Len(t, over, 1)
		assert.Equal(t, "Host", over[0].Event.(GameOver).WinnerName)
		assert.False(t, s.GameActive)
	})

	t.Run("earlier seat leaving rebases the turn", func(t *testing.T) {
		s := startedRoom(t, "p2", "p3")
		_, s = mustApply(t, s, CmdPass{Player: "host"}, cycle(A))
		_, s = mustApply(t, s, CmdPass{Player: "p2"}, cycle(A))
		require.Equal(t, 2, s.CurrentTurn)
		gen := s.Generation

		out, s := mustApply(t, s, CmdDisconnect{Player: "host"}, cycle(A))

		assert.Equal(t, 1, s.CurrentTurn)
		assert.Equal(t, PlayerID("p3"), s.Players[s.CurrentTurn].ID)
		assert.Equal(t, gen, s.Generation)
		assert.Empty(t, eventsNamed(out, "turn_change"))
		promoted := eventsNamed(out, "host_promoted")
		require.Len(t, promoted, 1)
		assert.Equal(t, PlayerID("p2"), promoted[0].To)
	})

	t.Run("later seat leaving keeps the turn", func(t *testing.T) {
		s := startedRoom(t, "p2", "p3")
		out, s := mustApply(t, s, CmdDisconnect{Player: "p3"}, cycle(A))
		assert.Equal(t, 0, s.CurrentTurn)
		assert.Len(t, out, 1)
		assert.Equal(t, "update_room", out[0].Event.EventName())
	})

	t.Run("last player destroys the room", func(t *testing.T) {
		s, _ := NewRoom("R1", "host", "Host", 3)
		out, s := mustApply(t, s, CmdDisconnect{Player: "host"}, cycle(A))
		assert.Empty(t, out)
		assert.Empty(t, s.Players)
	})

	t.Run("unknown player", func(t *testing.T) {
		s, _ := NewRoom("R1", "host", "Host", 3)
		_, _, err := Apply(s, CmdDisconnect{Player: "ghost"}, cycle(A))
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestRemovePlayer(t *testing.T) {
	s := startedRoom(t, "p2", "p3")
	s.CurrentTurn = 2

	ns, rm, err := RemovePlayer(s, "host")
	require.NoError(t, err)
	assert.Equal(t, Removal{Index: 0, HostMigrated: true}, rm)
	assert.Equal(t, 1, ns.CurrentTurn)
	assert.Len(t, s.Players, 3, "input state must not change")

	ns, rm, err = RemovePlayer(ns, "p3")
	require.NoError(t, err)
	assert.Equal(t, Removal{Index: 1}, rm)
	assert.Equal(t, 1, ns.CurrentTurn, "index now equals roster length")

	ns, rm, err = RemovePlayer(ns, "p2")
	require.NoError(t, err)
	assert.True(t, rm.Destroyed)
	assert.False(t, rm.HostMigrated)

	_, _, err = RemovePlayer(ns, "p2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGameOver_TiesKeepRosterOrder(t *testing.T) {
	s := startedRoom(t, "p2", "p3")
	var out []Envelope
	for _, id := range []PlayerID{"host", "p2", "p3"} {
		out, s = mustApply(t, s, CmdPass{Player: id}, cycle(A))
	}

	over := out[0].Event.(GameOver)
	assert.Equal(t, "Host", over.WinnerName)
	assert.Equal(t, []PlayerID{"host", "p2", "p3"}, []PlayerID{
		over.Results[0].PlayerID, over.Results[1].PlayerID, over.Results[2].PlayerID,
	})
}
