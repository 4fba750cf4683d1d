package poker

import (
	"fmt"
	"time"

	"github.com/foldline/pokercore/pkg/statemachine"
)

// PlayerStateFn follows Rob Pike's state-function pattern: each state is a
// function returning the next state.
type PlayerStateFn = statemachine.StateFn[Player]

// PlayerAction is the per-round action a seated player has last taken.
type PlayerAction int

const (
	ActionActive PlayerAction = iota
	ActionChecked
	ActionCalled
	ActionRaised
	ActionFolded
	ActionAllIn
	ActionSittingOut
	ActionJoining
)

func (a PlayerAction) String() string {
	switch a {
	case ActionActive:
		return "active"
	case ActionChecked:
		return "checked"
	case ActionCalled:
		return "called"
	case ActionRaised:
		return "raised"
	case ActionFolded:
		return "folded"
	case ActionAllIn:
		return "all_in"
	case ActionSittingOut:
		return "sitting_out"
	case ActionJoining:
		return "joining"
	default:
		return "unknown"
	}
}

// Player carries both table-level fields (Seat, IsReady, IsDisconnected,
// LastAction) and round-level fields (Hand, Balance, CurrentTotalBet,
// Action, JoinedAtRound) in one struct; the Table and the hand in progress
// share the same pointer.
type Player struct {
	ID   string
	Name string

	// Table-level state, stable across hands.
	Seat           int
	IsReady        bool
	IsDisconnected bool
	LastAction     time.Time

	// Round-level state, reset by ResetForNewHand.
	Balance         int64
	StartingBalance int64
	Hand            []Card
	CurrentTotalBet int64
	Action          PlayerAction
	JoinedAtRound   int

	IsDealer bool
	IsTurn   bool

	// Populated during showdown.
	HandRank        *Rank
	HandDescription string

	stateMachine *statemachine.StateMachine[Player]
}

// NewPlayer creates a player seated at the table but not yet in a hand.
// balance is the starting chip stack, not a real-currency wallet balance —
// see internal/wallet for money movement.
func NewPlayer(id, name string, balance int64) *Player {
	p := &Player{
		ID:              id,
		Name:            name,
		Balance:         balance,
		StartingBalance: balance,
		Seat:            -1,
		Hand:            make([]Card, 0, 5),
		Action:          ActionJoining,
		LastAction:      time.Now(),
	}
	p.stateMachine = statemachine.NewStateMachine(p, playerStateAtTable)
	return p
}

// playerStateAtTable: seated, not currently in a hand.
func playerStateAtTable(entity *Player, callback func(stateName string, event statemachine.StateEvent)) PlayerStateFn {
	if callback != nil {
		callback("AT_TABLE", statemachine.StateEntered)
	}
	return playerStateAtTable
}

// playerStateInGame: actively dealt into the current hand. Action tracks the
// finer-grained per-round activity (checked/called/raised/...).
func playerStateInGame(entity *Player, callback func(stateName string, event statemachine.StateEvent)) PlayerStateFn {
	if callback != nil {
		callback("IN_GAME", statemachine.StateEntered)
	}
	return playerStateInGame
}

// playerStateLeft is terminal: the player has left the table.
func playerStateLeft(entity *Player, callback func(stateName string, event statemachine.StateEvent)) PlayerStateFn {
	if callback != nil {
		callback("LEFT", statemachine.StateEntered)
	}
	return nil
}

func (p *Player) ensureStateMachine() {
	if p.stateMachine == nil {
		panic(fmt.Sprintf("poker: player %s state machine not initialized", p.ID))
	}
}

// ResetForNewHand clears round-level state while preserving table-level
// state (seat, ready flag, connection status).
func (p *Player) ResetForNewHand(startingChips int64) {
	p.Hand = make([]Card, 0, 5)
	p.Balance = startingChips
	p.StartingBalance = startingChips
	p.CurrentTotalBet = 0
	p.IsDealer = false
	p.IsTurn = false
	p.HandRank = nil
	p.HandDescription = ""
	p.LastAction = time.Now()
	p.Action = ActionActive

	p.ensureStateMachine()
	p.stateMachine.SetState(playerStateInGame)
}

// SetAction updates the player's per-round action.
func (p *Player) SetAction(action PlayerAction) {
	p.Action = action
	p.LastAction = time.Now()
}

// Leave transitions the player out of the table's seat occupancy entirely.
func (p *Player) Leave() {
	p.ensureStateMachine()
	p.stateMachine.SetState(playerStateLeft)
	p.Seat = -1
}

// HasFolded reports whether the player folded this hand.
func (p *Player) HasFolded() bool { return p.Action == ActionFolded }

// IsAllIn reports whether the player is all-in this hand.
func (p *Player) IsAllIn() bool { return p.Action == ActionAllIn }

// IsSittingOut reports whether the player is sitting out this hand.
func (p *Player) IsSittingOut() bool { return p.Action == ActionSittingOut }

// IsJoining reports whether the player joined mid-hand and is waiting for
// the next round to be dealt in.
func (p *Player) IsJoining() bool { return p.Action == ActionJoining }

// IsActiveInHand reports whether the player can still act or be dealt a
// showdown share this hand (not folded, not sitting out).
func (p *Player) IsActiveInHand() bool {
	return !p.HasFolded() && !p.IsSittingOut()
}

// IsAtTable reports whether the player is still seated (hasn't left).
func (p *Player) IsAtTable() bool {
	if p.stateMachine == nil {
		return false
	}
	return p.stateMachine.GetCurrentState() != nil
}

// HandString renders the player's hole cards for logging/CLI display.
func (p *Player) HandString() string {
	if len(p.Hand) == 0 {
		return "no cards"
	}
	s := ""
	for i, c := range p.Hand {
		if i > 0 {
			s += " "
		}
		s += c.String()
	}
	return s
}
