package engine

// NewRoom builds a room with its host seated and returns the events that
// greet the host.
func NewRoom(id string, host PlayerID, hostName string, maxRerolls int) (State, []Envelope) {
	s := State{
		RoomID:  id,
		Players: []Player{{ID: host, Name: hostName}},
		Config:  Config{MaxRerolls: maxRerolls},
	}
	s.resetTurn()

	return s, []Envelope{
		unicast(host, RoomJoined{RoomID: id, IsHost: true, Config: s.Config}),
		broadcast(s.roster()),
	}
}

func ContainsEvent(envs []Envelope, name string) bool {
	for _, env := range envs {
		if env.Event.EventName() == name {
			return true
		}
	}
	return false
}

func DerivePhase(s State) Phase {
	switch {
	case !s.GameActive:
		return PhaseLobby
	case s.CurrentTurn >= len(s.Players):
		return PhaseRoundComplete
	case s.RerollsLeft > 0:
		return PhaseAwaitingRoll
	default:
		return PhaseAwaitingPass
	}
}

// Members returns the roster ids in turn order.
func (s State) Members() []PlayerID {
	ids := make([]PlayerID, len(s.Players))
	for i, p := range s.Players {
		ids[i] = p.ID
	}
	return ids
}

func (s State) Has(id PlayerID) bool { return s.indexOf(id) >= 0 }
