package poker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/decred/slog"

	"github.com/foldline/pokercore/internal/oracle"
	"github.com/foldline/pokercore/internal/tabletimer"
	"github.com/foldline/pokercore/internal/wallet"
	"github.com/foldline/pokercore/pkg/poker/tableerr"
)

// SeatStatus marks a seat Empty or Occupied.
type SeatStatus int

const (
	SeatEmpty SeatStatus = iota
	SeatOccupied
)

func (s SeatStatus) String() string {
	if s == SeatOccupied {
		return "occupied"
	}
	return "empty"
}

// Seat is one slot in the table's fixed-length seat array.
type Seat struct {
	Status SeatStatus
	Player *Player
}

// TableConfig enumerates every recognized table option.
type TableConfig struct {
	GameType       GameType
	Seats          int
	Currency       CurrencyType
	EnableRake     bool
	Rake           RakeConfig
	AutoStartTimer time.Duration
	TurnTimer      time.Duration
	SmallBlind     int64
	BigBlind       int64
	Ante           int64
}

func (c TableConfig) validate() error {
	if c.Seats < 2 || c.Seats > 10 {
		return tableerr.New(tableerr.Validation, fmt.Sprintf("seats must be in [2,10], got %d", c.Seats))
	}
	if c.SmallBlind <= 0 || c.BigBlind <= 0 || c.SmallBlind >= c.BigBlind {
		return tableerr.New(tableerr.Validation, "small blind must be positive and less than big blind")
	}
	return nil
}

// TableDeps are the table's external collaborators. All three are optional: a nil Oracle requires StartBettingRound to be called with
// externally supplied bytes, a nil Timer disables auto-fold-on-timeout and
// auto-start scheduling, a nil Wallet disables real-currency settlement
// hooks (fake-currency tables never need one).
type TableDeps struct {
	Oracle oracle.Source
	Timer  tabletimer.Scheduler
	Wallet wallet.Ledger
	Log    slog.Logger
}

// Table is the aggregate root and a single-threaded cooperative actor:
// every exported method takes mu for its duration and never blocks on I/O
// while holding it. Seats, the deck, the pot ledger, and the provenance
// ledger all live here so there is exactly one source of truth for the
// current player and dealer.
type Table struct {
	mu sync.Mutex

	id     string
	config TableConfig
	log    slog.Logger
	deps   TableDeps

	seats []Seat

	deck      *Deck
	community []Card
	stage     DealStage
	stageErr  error

	dealerSeat        int
	currentSeat       int
	lastAggressorSeat int
	highestBet        int64
	lastRaise         int64
	roundTicker       int64

	ledger     *Ledger
	provenance *ProvenanceLedger
	queue      *SeatTransitionQueue

	actedThisStreet map[int]bool

	actionLog   []string
	rankedHands map[int]Rank
	lastWinners map[int]int64

	handInProgress bool
}

// NewTable allocates a table with config.Seats empty seats.
func NewTable(id string, config TableConfig, deps TableDeps) (*Table, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	logger := deps.Log
	if logger == nil {
		logger = slog.Disabled
	}

	t := &Table{
		id:              id,
		config:          config,
		log:             logger,
		deps:            deps,
		seats:           make([]Seat, config.Seats),
		stage:           StageFresh,
		dealerSeat:      -1,
		currentSeat:     -1,
		ledger:          NewLedger(),
		provenance:      NewProvenanceLedger(),
		queue:           NewSeatTransitionQueue(),
		rankedHands:     make(map[int]Rank),
		actedThisStreet: make(map[int]bool),
	}
	return t, nil
}

func (t *Table) logAction(format string, args ...interface{}) {
	entry := fmt.Sprintf(format, args...)
	t.actionLog = append(t.actionLog, entry)
	t.log.Debugf("table %s: %s", t.id, entry)
}

// AddUser seats player at seat index. A reserved seat starts sitting out;
// otherwise the player is dealt in at the next hand.
func (t *Table) AddUser(player *Player, seat int, isReserved bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if seat < 0 || seat >= len(t.seats) {
		return tableerr.New(tableerr.Validation, fmt.Sprintf("seat %d out of range", seat))
	}
	if t.seats[seat].Status == SeatOccupied {
		return tableerr.Wrap(tableerr.Validation, fmt.Sprintf("seat %d already taken", seat), tableerr.ErrSeatTaken)
	}

	player.Seat = seat
	if isReserved {
		player.SetAction(ActionSittingOut)
	} else {
		player.SetAction(ActionJoining)
	}
	t.seats[seat] = Seat{Status: SeatOccupied, Player: player}
	t.logAction("seat %d: %s joined", seat, player.ID)
	return nil
}

// occupiedSeatOrder returns occupied seat indices starting at (and
// including) "from", wrapping around the table once.
func (t *Table) occupiedSeatOrder(from int) []int {
	n := len(t.seats)
	if n == 0 {
		return nil
	}
	from = ((from % n) + n) % n
	var out []int
	for i := 0; i < n; i++ {
		idx := (from + i) % n
		if t.seats[idx].Status == SeatOccupied {
			out = append(out, idx)
		}
	}
	return out
}

// eligibleSeatOrder returns occupied seats that take part in the next (or
// current) hand: everyone seated except sitting-out players. Blind posting,
// dealer rotation, and antes all work over this order so a sitting-out seat
// is never charged.
func (t *Table) eligibleSeatOrder(from int) []int {
	var out []int
	for _, seat := range t.occupiedSeatOrder(from) {
		if !t.seats[seat].Player.IsSittingOut() {
			out = append(out, seat)
		}
	}
	return out
}

// activeSeatOrder returns occupied seats that can still act this round:
// not folded, not sitting out, not already all-in.
func (t *Table) activeSeatOrder(from int) []int {
	var out []int
	for _, seat := range t.occupiedSeatOrder(from) {
		p := t.seats[seat].Player
		if p.IsActiveInHand() && !p.IsAllIn() && !p.IsJoining() {
			out = append(out, seat)
		}
	}
	return out
}

// inHandSeatOrder returns seats still live for showdown: dealt in, not
// folded (all-in players remain eligible, unlike activeSeatOrder). Players
// who joined mid-hand hold ActionJoining until the next round starts and are
// never part of the current hand.
func (t *Table) inHandSeatOrder(from int) []int {
	var out []int
	for _, seat := range t.occupiedSeatOrder(from) {
		p := t.seats[seat].Player
		if !p.HasFolded() && !p.IsSittingOut() && !p.IsJoining() {
			out = append(out, seat)
		}
	}
	return out
}

func (t *Table) seatedPlayersLocked() map[int]*Player {
	out := make(map[int]*Player)
	for i, s := range t.seats {
		if s.Status == SeatOccupied {
			out[i] = s.Player
		}
	}
	return out
}

// StartBettingRound begins a new hand: fetches (or accepts) randomBytes,
// shuffles a fresh deck, pre-allocates provenance records, posts blinds and
// antes, and deals hole cards.
func (t *Table) StartBettingRound(ctx context.Context, randomBytes []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.handInProgress {
		return tableerr.New(tableerr.Validation, "a hand is already in progress")
	}

	if len(randomBytes) == 0 {
		if t.deps.Oracle == nil {
			return tableerr.Wrap(tableerr.External, "no random bytes supplied and no oracle configured", tableerr.ErrOracleUnavailable)
		}
		raw, err := t.deps.Oracle.FetchRandomBytes(ctx)
		if err != nil {
			return tableerr.Wrap(tableerr.External, "oracle fetch failed", err)
		}
		randomBytes = raw
	}

	t.drainQueueLocked()

	eligible := t.eligibleSeatOrder(0)
	if len(eligible) < 2 {
		return tableerr.New(tableerr.Validation, "at least two dealt-in players are required to start a round")
	}
	t.rotateDealerLocked()

	t.roundTicker++
	// The deck is seeded from the oracle bytes alone: an auditor replaying
	// RngMetadata.RawRandomBytes must reproduce this shuffle bit for bit, so
	// nothing the server controls (clock included) may feed the shuffle.
	timeSeed := time.Now().UnixNano()
	t.deck = NewDeck(randomBytes)
	t.community = nil
	t.rankedHands = make(map[int]Rank)
	t.lastWinners = nil
	// The ledger is per-hand, the rake total is per-table lifetime.
	prevRake := t.ledger.RakeTotal()
	t.ledger = NewLedger()
	t.ledger.rakeTotal = prevRake
	t.handInProgress = true

	meta := t.provenance.BeginRound(t.roundTicker, t.deck.Remaining(), randomBytes, timeSeed, "")
	t.log.Infof("table %s: round %d shuffled, deck_hash=%s", t.id, t.roundTicker, meta.DeckHash)

	// Seats not dealt in (sitting out) carry no bet into the new hand.
	for _, seat := range t.occupiedSeatOrder(0) {
		t.seats[seat].Player.CurrentTotalBet = 0
	}
	for _, seat := range eligible {
		p := t.seats[seat].Player
		p.ResetForNewHand(p.Balance)
	}

	t.stage = StageFresh
	return t.runStage(stageOpening)
}

// runStage executes stage functions, Rob-Pike style, until one returns nil
// (either because it's waiting on player input, or because it hit a fatal
// error and set t.stageErr).
func (t *Table) runStage(fn TableStateFn) error {
	t.stageErr = nil
	for fn != nil {
		fn = fn(t, nil)
	}
	return t.stageErr
}

func (t *Table) rotateDealerLocked() {
	eligible := t.eligibleSeatOrder(0)
	if len(eligible) == 0 {
		t.dealerSeat = -1
		return
	}
	if t.dealerSeat == -1 {
		t.dealerSeat = eligible[0]
		return
	}
	next := t.eligibleSeatOrder(t.dealerSeat + 1)
	if len(next) > 0 {
		t.dealerSeat = next[0]
	}
}

// drainQueueLocked applies every queued seat transition in FIFO order.
func (t *Table) drainQueueLocked() {
	for _, item := range t.queue.Drain() {
		t.applyQueueItemLocked(item)
	}
}

func (t *Table) findPlayerSeatLocked(playerID string) (int, *Player, bool) {
	for i, s := range t.seats {
		if s.Status == SeatOccupied && s.Player.ID == playerID {
			return i, s.Player, true
		}
	}
	return -1, nil, false
}

func (t *Table) applyQueueItemLocked(item QueueItem) {
	switch item.Kind {
	case QueueSittingIn:
		if _, p, ok := t.findPlayerSeatLocked(item.PlayerID); ok {
			p.SetAction(ActionActive)
		}
	case QueueSittingOut:
		if _, p, ok := t.findPlayerSeatLocked(item.PlayerID); ok {
			p.SetAction(ActionSittingOut)
		}
	case QueueDeposit:
		if _, p, ok := t.findPlayerSeatLocked(item.PlayerID); ok {
			p.Balance += item.Amount
		}
	case QueueRemoveUser, QueueLeaveTableToMove:
		if seat, p, ok := t.findPlayerSeatLocked(item.PlayerID); ok {
			p.Leave()
			t.seats[seat] = Seat{}
		}
	case QueueUpdateBlinds:
		t.config.SmallBlind = item.SmallBlind
		t.config.BigBlind = item.BigBlind
	case QueuePauseTable, QueuePauseTableForAddon:
		// Pausing is a host-level scheduling concern; the table records the
		// request in the action log so an operator can observe it, but the
		// engine itself does not own threads or timers.
		t.logAction("pause requested (addon=%v duration=%s)", item.Kind == QueuePauseTableForAddon, item.Duration)
	}
}

// EnqueueSeatChange queues item for application at the next round boundary.
func (t *Table) EnqueueSeatChange(item QueueItem) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queue.Enqueue(item)
	return nil
}

// postBlindsLocked posts small/big blind (and ante, if configured).
// Heads-up the dealer posts the small blind: with two players the dealer
// acts first pre-flop.
func (t *Table) postBlindsLocked() error {
	eligible := t.eligibleSeatOrder(t.dealerSeat)
	if len(eligible) < 2 {
		return tableerr.New(tableerr.Validation, "not enough players to post blinds")
	}

	var sbSeat, bbSeat int
	if len(eligible) == 2 {
		sbSeat, bbSeat = eligible[0], eligible[1]
	} else {
		sbSeat, bbSeat = eligible[1], eligible[2]
	}

	if t.config.Ante > 0 {
		for _, seat := range eligible {
			t.postAnteLocked(seat, t.config.Ante)
		}
	}
	t.postBlindLocked(sbSeat, t.config.SmallBlind)
	t.postBlindLocked(bbSeat, t.config.BigBlind)

	t.highestBet = t.config.BigBlind
	t.lastRaise = t.config.BigBlind
	t.lastAggressorSeat = bbSeat
	return nil
}

// postBlindLocked charges seat a blind, capped at the player's stack. A
// blind counts toward the player's current-round bet, so the poster only
// owes the difference to call.
func (t *Table) postBlindLocked(seat int, amount int64) {
	p := t.seats[seat].Player
	if amount > p.Balance {
		amount = p.Balance
	}
	p.Balance -= amount
	p.CurrentTotalBet += amount
	t.ledger.Contribute(seat, amount)
	if p.Balance == 0 {
		p.SetAction(ActionAllIn)
	}
}

// postAnteLocked charges seat an ante, capped at the player's stack. Antes
// are dead money: they go into the pot but never count toward the player's
// current-round bet, so an ante poster still owes the full amount to call.
func (t *Table) postAnteLocked(seat int, amount int64) {
	p := t.seats[seat].Player
	if amount > p.Balance {
		amount = p.Balance
	}
	p.Balance -= amount
	t.ledger.Contribute(seat, amount)
	if p.Balance == 0 {
		p.SetAction(ActionAllIn)
	}
}

// PublicState is the read-only projection GetPublicState returns: no hole
// cards, no deck, nothing a spectator shouldn't see.
type PublicState struct {
	TableID     string
	Stage       DealStage
	Community   []Card
	DealerSeat  int
	CurrentSeat int
	HighestBet  int64
	RoundTicker int64
	Pot         int64
	Seats       []PublicSeat
	ActionLog   []string
	RakeTotal   int64
}

type PublicSeat struct {
	Index    int
	Occupied bool
	PlayerID string
	Balance  int64
	Bet      int64
	Action   PlayerAction
	IsDealer bool
	IsTurn   bool
}

// GetPublicState returns a spectator-safe snapshot of table state.
func (t *Table) GetPublicState() PublicState {
	t.mu.Lock()
	defer t.mu.Unlock()

	ps := PublicState{
		TableID:     t.id,
		Stage:       t.stage,
		Community:   append([]Card(nil), t.community...),
		DealerSeat:  t.dealerSeat,
		CurrentSeat: t.currentSeat,
		HighestBet:  t.highestBet,
		RoundTicker: t.roundTicker,
		Pot:         t.ledger.ConfirmedPot() + t.ledger.UncommittedRoundTotal(),
		ActionLog:   append([]string(nil), t.actionLog...),
		RakeTotal:   t.ledger.RakeTotal(),
	}
	for i, s := range t.seats {
		ps.Seats = append(ps.Seats, t.publicSeat(i, s))
	}
	return ps
}

func (t *Table) publicSeat(i int, s Seat) PublicSeat {
	out := PublicSeat{Index: i}
	if s.Status != SeatOccupied {
		return out
	}
	out.Occupied = true
	out.PlayerID = s.Player.ID
	out.Balance = s.Player.Balance
	out.Bet = s.Player.CurrentTotalBet
	out.Action = s.Player.Action
	out.IsDealer = i == t.dealerSeat
	out.IsTurn = i == t.currentSeat
	return out
}

// GetRngHistory returns the randomness metadata for every round in
// [from, to], for auditors.
func (t *Table) GetRngHistory(from, to int64) []RngMetadata {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.provenance.RngHistory(from, to)
}

// GetCardProvenance returns every per-card audit record for a round.
func (t *Table) GetCardProvenance(roundID int64) []CardProvenance {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.provenance.History(roundID)
}
