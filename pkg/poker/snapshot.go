package poker

import (
	"encoding/json"
	"fmt"

	"github.com/decred/slog"

	"github.com/foldline/pokercore/pkg/poker/tableerr"
)

// SnapshotVersionV1 is the only snapshot wire version so far. Future
// incompatible layouts get a new constant and a branch in DecodeSnapshot,
// never a silent field reinterpretation.
const SnapshotVersionV1 byte = 1

// PlayerSnapshot is the persistent form of Player.
type PlayerSnapshot struct {
	ID             string
	Name           string
	Seat           int
	IsReady        bool
	IsDisconnected bool

	Balance         int64
	StartingBalance int64
	Hand            []Card
	CurrentTotalBet int64
	Action          PlayerAction
	JoinedAtRound   int
	IsDealer        bool
	IsTurn          bool

	HandRank        *Rank
	HandDescription string
}

// SeatSnapshot is the persistent form of Seat.
type SeatSnapshot struct {
	Status SeatStatus
	Player *PlayerSnapshot
}

// LedgerSnapshot is the persistent form of Ledger, exposing its otherwise
// unexported contribution maps for the codec.
type LedgerSnapshot struct {
	Confirmed   []*SidePot
	CurrentBets map[int]int64
	TotalBets   map[int]int64
	RakeTotal   int64
}

// TableSnapshot is the bidirectional persistent form of Table. It drops the
// runtime-only collaborators (every TableDeps field, the Rob-Pike stage
// function itself); every piece of hand state, including the provenance
// ledger and RNG history for auditor access, round-trips through it. The
// pending seat-transition queue is not included: a restored table starts
// with an empty queue.
type TableSnapshot struct {
	Version byte
	TableID string
	Config  TableConfig

	Seats     []SeatSnapshot
	Deck      *DeckState
	Community []Card

	Stage             DealStage
	DealerSeat        int
	CurrentSeat       int
	LastAggressorSeat int
	HighestBet        int64
	LastRaise         int64
	RoundTicker       int64

	Ledger          LedgerSnapshot
	ActedThisStreet map[int]bool
	ActionLog       []string
	RankedHands     map[int]Rank
	LastWinners     map[int]int64
	HandInProgress  bool

	ProvenanceHistory []RngMetadata
	ProvenanceRecords map[int64][]CardProvenance
}

// Snapshot captures the table's entire persistent state.
// Rank's underlying chehsunliu comparison value is unexported and does not
// round-trip (encoding/json silently drops unexported fields); this only
// affects HandRank on already-settled hands, which Compare is never called
// on again after a showdown has distributed its pots.
func (t *Table) Snapshot() *TableSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	seats := make([]SeatSnapshot, len(t.seats))
	for i, s := range t.seats {
		seats[i] = SeatSnapshot{Status: s.Status}
		if s.Status == SeatOccupied && s.Player != nil {
			p := s.Player
			seats[i].Player = &PlayerSnapshot{
				ID:              p.ID,
				Name:            p.Name,
				Seat:            p.Seat,
				IsReady:         p.IsReady,
				IsDisconnected:  p.IsDisconnected,
				Balance:         p.Balance,
				StartingBalance: p.StartingBalance,
				Hand:            append([]Card(nil), p.Hand...),
				CurrentTotalBet: p.CurrentTotalBet,
				Action:          p.Action,
				JoinedAtRound:   p.JoinedAtRound,
				IsDealer:        p.IsDealer,
				IsTurn:          p.IsTurn,
				HandRank:        p.HandRank,
				HandDescription: p.HandDescription,
			}
		}
	}

	var deckState *DeckState
	if t.deck != nil {
		deckState = t.deck.State()
	}

	confirmed := make([]*SidePot, len(t.ledger.confirmed))
	copy(confirmed, t.ledger.confirmed)
	currentBets := make(map[int]int64, len(t.ledger.currentBets))
	for k, v := range t.ledger.currentBets {
		currentBets[k] = v
	}
	totalBets := make(map[int]int64, len(t.ledger.totalBets))
	for k, v := range t.ledger.totalBets {
		totalBets[k] = v
	}

	acted := make(map[int]bool, len(t.actedThisStreet))
	for k, v := range t.actedThisStreet {
		acted[k] = v
	}
	ranked := make(map[int]Rank, len(t.rankedHands))
	for k, v := range t.rankedHands {
		ranked[k] = v
	}
	var lastWinners map[int]int64
	if t.lastWinners != nil {
		lastWinners = make(map[int]int64, len(t.lastWinners))
		for k, v := range t.lastWinners {
			lastWinners[k] = v
		}
	}

	provenanceRecords := make(map[int64][]CardProvenance, len(t.provenance.records))
	for roundID := range t.provenance.records {
		provenanceRecords[roundID] = t.provenance.History(roundID)
	}

	return &TableSnapshot{
		Version:           SnapshotVersionV1,
		TableID:           t.id,
		Config:            t.config,
		Seats:             seats,
		Deck:              deckState,
		Community:         append([]Card(nil), t.community...),
		Stage:             t.stage,
		DealerSeat:        t.dealerSeat,
		CurrentSeat:       t.currentSeat,
		LastAggressorSeat: t.lastAggressorSeat,
		HighestBet:        t.highestBet,
		LastRaise:         t.lastRaise,
		RoundTicker:       t.roundTicker,
		Ledger: LedgerSnapshot{
			Confirmed:   confirmed,
			CurrentBets: currentBets,
			TotalBets:   totalBets,
			RakeTotal:   t.ledger.rakeTotal,
		},
		ActedThisStreet:   acted,
		ActionLog:         append([]string(nil), t.actionLog...),
		RankedHands:       ranked,
		LastWinners:       lastWinners,
		HandInProgress:    t.handInProgress,
		ProvenanceHistory: append([]RngMetadata(nil), t.provenance.history...),
		ProvenanceRecords: provenanceRecords,
	}
}

// EncodeSnapshot JSON-marshals s. The version byte travels alongside the
// blob (not inside it) so internal/store can branch on it without parsing
// JSON first.
func EncodeSnapshot(s *TableSnapshot) (version byte, data []byte, err error) {
	data, err = json.Marshal(s)
	if err != nil {
		return 0, nil, fmt.Errorf("poker: marshal snapshot: %w", err)
	}
	return s.Version, data, nil
}

// DecodeSnapshot is EncodeSnapshot's inverse.
func DecodeSnapshot(version byte, data []byte) (*TableSnapshot, error) {
	if version != SnapshotVersionV1 {
		return nil, fmt.Errorf("poker: unsupported snapshot version %d", version)
	}
	var s TableSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("poker: unmarshal snapshot: %w", err)
	}
	return &s, nil
}

// RestoreTable is Table.Snapshot's inverse: it rebuilds a live Table from a
// persisted TableSnapshot, re-wiring the supplied deps. The snapshot never
// carries live collaborators; a restored table always needs a fresh
// Timer/Oracle/Wallet.
func RestoreTable(s *TableSnapshot, deps TableDeps) (*Table, error) {
	if s == nil {
		return nil, tableerr.New(tableerr.Validation, "snapshot is nil")
	}
	if s.Version != SnapshotVersionV1 {
		return nil, tableerr.New(tableerr.Validation, fmt.Sprintf("unsupported snapshot version %d", s.Version))
	}

	logger := deps.Log
	if logger == nil {
		logger = slog.Disabled
	}

	t := &Table{
		id:                s.TableID,
		config:            s.Config,
		log:               logger,
		deps:              deps,
		seats:             make([]Seat, len(s.Seats)),
		community:         append([]Card(nil), s.Community...),
		stage:             s.Stage,
		dealerSeat:        s.DealerSeat,
		currentSeat:       s.CurrentSeat,
		lastAggressorSeat: s.LastAggressorSeat,
		highestBet:        s.HighestBet,
		lastRaise:         s.LastRaise,
		roundTicker:       s.RoundTicker,
		actedThisStreet:   make(map[int]bool, len(s.ActedThisStreet)),
		actionLog:         append([]string(nil), s.ActionLog...),
		rankedHands:       make(map[int]Rank, len(s.RankedHands)),
		handInProgress:    s.HandInProgress,
		queue:             NewSeatTransitionQueue(),
	}
	for k, v := range s.ActedThisStreet {
		t.actedThisStreet[k] = v
	}
	for k, v := range s.RankedHands {
		t.rankedHands[k] = v
	}
	if s.LastWinners != nil {
		t.lastWinners = make(map[int]int64, len(s.LastWinners))
		for k, v := range s.LastWinners {
			t.lastWinners[k] = v
		}
	}

	for i, seatSnap := range s.Seats {
		t.seats[i] = Seat{Status: seatSnap.Status}
		if seatSnap.Status == SeatOccupied && seatSnap.Player != nil {
			t.seats[i].Player = restorePlayer(seatSnap.Player)
		}
	}

	if s.Deck != nil {
		deck, err := NewDeckFromState(s.Deck)
		if err != nil {
			return nil, tableerr.Wrap(tableerr.Invariant, "restore deck", err)
		}
		t.deck = deck
	}

	t.ledger = NewLedger()
	t.ledger.confirmed = append(t.ledger.confirmed, s.Ledger.Confirmed...)
	for k, v := range s.Ledger.CurrentBets {
		t.ledger.currentBets[k] = v
	}
	for k, v := range s.Ledger.TotalBets {
		t.ledger.totalBets[k] = v
	}
	t.ledger.rakeTotal = s.Ledger.RakeTotal

	t.provenance = NewProvenanceLedger()
	t.provenance.history = append([]RngMetadata(nil), s.ProvenanceHistory...)
	for roundID, records := range s.ProvenanceRecords {
		recs := make([]*CardProvenance, len(records))
		for i := range records {
			rCopy := records[i]
			recs[i] = &rCopy
		}
		t.provenance.records[roundID] = recs
	}

	return t, nil
}

// restorePlayer rebuilds a Player (including its Rob-Pike state machine)
// from a PlayerSnapshot.
func restorePlayer(ps *PlayerSnapshot) *Player {
	p := NewPlayer(ps.ID, ps.Name, ps.Balance)
	p.Seat = ps.Seat
	p.IsReady = ps.IsReady
	p.IsDisconnected = ps.IsDisconnected
	p.StartingBalance = ps.StartingBalance
	p.Hand = append([]Card(nil), ps.Hand...)
	p.CurrentTotalBet = ps.CurrentTotalBet
	p.Action = ps.Action
	p.JoinedAtRound = ps.JoinedAtRound
	p.IsDealer = ps.IsDealer
	p.IsTurn = ps.IsTurn
	p.HandRank = ps.HandRank
	p.HandDescription = ps.HandDescription

	if ps.Action == ActionSittingOut || ps.Action == ActionJoining {
		return p
	}
	p.stateMachine.SetState(playerStateInGame)
	return p
}
