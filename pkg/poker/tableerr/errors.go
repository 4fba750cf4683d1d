// Package tableerr is the engine's typed, closed error taxonomy: every
// error carries one of five kinds plus a cause chain, so callers branch on
// a Kind instead of string-matching fmt.Errorf chains.
package tableerr

import "fmt"

// Kind is the closed set of error categories. It is a kind, not a type
// name: many distinct sentinel errors share a Kind.
type Kind int

const (
	// Validation errors are rejected locally; state is left unchanged.
	Validation Kind = iota
	// Resource errors mark conditions that should never occur in correct
	// play (e.g. NoCardsLeft) and abort the round.
	Resource
	// Lookup errors are missing-entity errors (PlayerNotFound, SeatEmpty).
	Lookup
	// External errors originate outside the engine (wallet, oracle, timer).
	External
	// Invariant violations indicate a bug in the engine itself. They panic
	// in debug builds and are logged+aborted in release builds.
	Invariant
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Resource:
		return "resource"
	case Lookup:
		return "lookup"
	case External:
		return "external"
	case Invariant:
		return "invariant"
	default:
		return "unknown"
	}
}

// TracedError wraps a cause chain with a Kind so operators can reconstruct
// context without reproducing the session.
type TracedError struct {
	Kind    Kind
	Message string
	Cause   error
}

func New(kind Kind, message string) *TracedError {
	return &TracedError{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *TracedError {
	return &TracedError{Kind: kind, Message: message, Cause: cause}
}

func (e *TracedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
}

func (e *TracedError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a *TracedError with the same Kind and
// Message, so sentinel-style comparisons (errors.Is(err, ErrNotPlayersTurn))
// still work through wrapping.
func (e *TracedError) Is(target error) bool {
	other, ok := target.(*TracedError)
	if !ok {
		return false
	}
	return e.Kind == other.Kind && e.Message == other.Message
}

// Sentinels used throughout pkg/poker, grouped by Kind.
var (
	ErrInvalidBetAmount      = New(Validation, "invalid bet amount")
	ErrNotPlayersTurn        = New(Validation, "not player's turn")
	ErrActionNotAllowedStage = New(Validation, "action not allowed in current stage")
	ErrSeatTaken             = New(Validation, "seat already taken")
	ErrPlayerNotSeated       = New(Validation, "player not seated at table")

	ErrInsufficientFunds = New(Resource, "insufficient funds")
	ErrNoCardsLeft       = New(Resource, "no cards left in deck")

	ErrPlayerNotFound = New(Lookup, "player not found")
	ErrSeatEmpty      = New(Lookup, "seat is empty")

	ErrOracleUnavailable = New(External, "randomness oracle unavailable")
	ErrWalletFailure     = New(External, "wallet transfer failed")
	ErrTimerMissed       = New(External, "timer capability missed a deadline")

	ErrPotNotConserved    = New(Invariant, "pot is not conserved")
	ErrMissingProvenance  = New(Invariant, "missing provenance record")
)

// Debug gates whether Invariant-kind errors panic (integrity trumps
// availability in debug builds) or are left for the caller to log and abort
// the round (release builds). It defaults to true and nothing in this module
// changes it, so invariant bugs surface immediately in tests and in
// cmd/pokerengine alike.
var Debug = true

// Raise reports an invariant violation: it panics when Debug is true,
// otherwise returns the TracedError for the caller to log at Critical and
// abort the round.
func Raise(kind Kind, message string, cause error) error {
	err := Wrap(kind, message, cause)
	if kind == Invariant && Debug {
		panic(err)
	}
	return err
}
