package poker

import (
	"fmt"

	"github.com/foldline/pokercore/pkg/poker/tableerr"
)

// GameTypeKind distinguishes the six supported betting structures. GameType
// is a closed sum type over this kind, in the same tagged-variant style as
// BetType and PlayerAction rather than interface-based polymorphism.
type GameTypeKind int

const (
	GameNoLimit GameTypeKind = iota
	GameFixedLimit
	GameSpreadLimit
	GamePotLimit
	GamePotLimitOmaha4
	GamePotLimitOmaha5
)

// GameType carries only the fields relevant to its Kind; constructors below
// are the only supported way to build one, keeping the variant set closed.
type GameType struct {
	Kind     GameTypeKind
	BigBlind int64 // NoLimit, PotLimit, PotLimitOmaha4/5
	SmallBet int64 // FixedLimit
	BigBet   int64 // FixedLimit
	Min      int64 // SpreadLimit
	Max      int64 // SpreadLimit
}

func NoLimit(bigBlind int64) GameType { return GameType{Kind: GameNoLimit, BigBlind: bigBlind} }
func FixedLimit(small, big int64) GameType {
	return GameType{Kind: GameFixedLimit, SmallBet: small, BigBet: big}
}
func SpreadLimit(min, max int64) GameType {
	return GameType{Kind: GameSpreadLimit, Min: min, Max: max}
}
func PotLimit(bigBlind int64) GameType { return GameType{Kind: GamePotLimit, BigBlind: bigBlind} }
func PotLimitOmaha4(bigBlind int64) GameType {
	return GameType{Kind: GamePotLimitOmaha4, BigBlind: bigBlind}
}
func PotLimitOmaha5(bigBlind int64) GameType {
	return GameType{Kind: GamePotLimitOmaha5, BigBlind: bigBlind}
}

// HoleCardCount returns how many hole cards each dealt-in player receives.
func (gt GameType) HoleCardCount() int {
	switch gt.Kind {
	case GamePotLimitOmaha4:
		return 4
	case GamePotLimitOmaha5:
		return 5
	default:
		return 2
	}
}

func (gt GameType) IsOmaha() bool {
	return gt.Kind == GamePotLimitOmaha4 || gt.Kind == GamePotLimitOmaha5
}

// BetActionKind is the kind of a player bet: Called, Raised(amount), AllIn.
type BetActionKind int

const (
	BetCalled BetActionKind = iota
	BetRaised
	BetAllIn
)

// BetType is the player-facing action passed to Table.Bet. Amount is only
// meaningful for BetRaised, where it is the raise-to total (not a delta).
type BetType struct {
	Kind   BetActionKind
	Amount int64
}

func Called() BetType            { return BetType{Kind: BetCalled} }
func Raised(amount int64) BetType { return BetType{Kind: BetRaised, Amount: amount} }
func AllIn() BetType             { return BetType{Kind: BetAllIn} }

// BetContext is the state LegalActions needs to compute legal raise bounds.
type BetContext struct {
	ConfirmedPot         int64
	UncommittedRoundBets int64
	CurrentBetToMatch    int64
	CallerStack          int64
	CallerCurrentBet     int64
	LastRaiseAmount      int64
	BettingRound         int // 0 pre-flop, 1 flop, 2 turn, 3 river
}

// ActionSet is the set of legal actions available to the caller in ctx.
type ActionSet struct {
	CanCheck    bool
	CanCall     bool
	CallAmount  int64
	CanRaise    bool
	MinRaiseTo  int64
	MaxRaiseTo  int64
	CanAllIn    bool
	AllInAmount int64
}

func minRaiseIncrement(gt GameType, ctx BetContext) (int64, error) {
	switch gt.Kind {
	case GameNoLimit, GamePotLimit, GamePotLimitOmaha4, GamePotLimitOmaha5:
		inc := ctx.LastRaiseAmount
		if inc < gt.BigBlind {
			inc = gt.BigBlind
		}
		return inc, nil
	case GameFixedLimit:
		if ctx.BettingRound >= 2 {
			return gt.BigBet, nil
		}
		return gt.SmallBet, nil
	case GameSpreadLimit:
		return gt.Min, nil
	default:
		return 0, fmt.Errorf("poker: unknown game type kind %d", gt.Kind)
	}
}

// LegalActions computes the min/max legal raise-to amount for every game
// type, including the Pot-Limit Rule of Three:
// max_raise_to = current_bet_to_match + (confirmed_pot + uncommitted_round_bets + amount_to_call).
func LegalActions(gt GameType, ctx BetContext) (ActionSet, error) {
	amountToCall := ctx.CurrentBetToMatch - ctx.CallerCurrentBet
	if amountToCall < 0 {
		amountToCall = 0
	}
	stackCeiling := ctx.CallerCurrentBet + ctx.CallerStack

	set := ActionSet{
		CallAmount:  amountToCall,
		CanAllIn:    ctx.CallerStack > 0,
		AllInAmount: stackCeiling,
	}
	if amountToCall == 0 {
		set.CanCheck = true
	} else {
		set.CanCall = amountToCall < ctx.CallerStack
	}

	increment, err := minRaiseIncrement(gt, ctx)
	if err != nil {
		return ActionSet{}, err
	}
	minRaiseTo := ctx.CurrentBetToMatch + increment

	var maxRaiseTo int64
	switch gt.Kind {
	case GameNoLimit:
		maxRaiseTo = stackCeiling
	case GameFixedLimit:
		maxRaiseTo = minRaiseTo
	case GameSpreadLimit:
		maxRaiseTo = ctx.CurrentBetToMatch + gt.Max
	case GamePotLimit, GamePotLimitOmaha4, GamePotLimitOmaha5:
		maxRaiseTo = ctx.CurrentBetToMatch + (ctx.ConfirmedPot + ctx.UncommittedRoundBets + amountToCall)
	}

	if maxRaiseTo > stackCeiling {
		maxRaiseTo = stackCeiling
	}
	if minRaiseTo > stackCeiling {
		minRaiseTo = stackCeiling
	}

	set.MinRaiseTo = minRaiseTo
	set.MaxRaiseTo = maxRaiseTo
	set.CanRaise = maxRaiseTo > ctx.CurrentBetToMatch && ctx.CallerStack > amountToCall

	return set, nil
}

// ResolveBet normalizes a requested raise-to total against the legal range
// for gt/ctx. The stack is always an upper bound: a request meeting or
// exceeding the caller's stack ceiling is silently reinterpreted as All-In
// for the full stack, never rejected as InsufficientFunds (that error is
// reserved for calls/raises that can't even meet the minimum).
func ResolveBet(gt GameType, ctx BetContext, requestedTotal int64) (resolvedTotal int64, isAllIn bool, err error) {
	stackCeiling := ctx.CallerCurrentBet + ctx.CallerStack
	if requestedTotal >= stackCeiling {
		return stackCeiling, true, nil
	}
	if requestedTotal < ctx.CallerCurrentBet {
		return 0, false, tableerr.Wrap(tableerr.Validation, "bet cannot decrease a player's current-round contribution", nil)
	}
	if requestedTotal == ctx.CurrentBetToMatch {
		return requestedTotal, false, nil
	}

	actions, err := LegalActions(gt, ctx)
	if err != nil {
		return 0, false, tableerr.Wrap(tableerr.Validation, "could not compute legal actions", err)
	}
	if requestedTotal < actions.MinRaiseTo || requestedTotal > actions.MaxRaiseTo {
		return 0, false, tableerr.Wrap(
			tableerr.Validation,
			fmt.Sprintf("raise to %d is outside the legal range [%d, %d]", requestedTotal, actions.MinRaiseTo, actions.MaxRaiseTo),
			tableerr.ErrInvalidBetAmount,
		)
	}
	return requestedTotal, false, nil
}
