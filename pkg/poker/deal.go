package poker

import (
	"context"
	"fmt"

	"github.com/foldline/pokercore/pkg/poker/tableerr"
	"github.com/foldline/pokercore/pkg/statemachine"
)

// DealStage is the hand's dealing state: Fresh, Opening, Flop, Turn, River,
// Showdown, then back to Fresh.
type DealStage int

const (
	StageFresh DealStage = iota
	StageOpening
	StageFlop
	StageTurn
	StageRiver
	StageShowdown
)

func (s DealStage) String() string {
	switch s {
	case StageFresh:
		return "fresh"
	case StageOpening:
		return "opening"
	case StageFlop:
		return "flop"
	case StageTurn:
		return "turn"
	case StageRiver:
		return "river"
	case StageShowdown:
		return "showdown"
	default:
		return "unknown"
	}
}

// TableStateFn follows Rob Pike's state-function pattern via
// pkg/statemachine's generic StateFn, the same shape the Player states use.
// Each deal-stage function either dispatches the next automatic stage or
// returns nil to yield control back to waiting player input (Opening/Flop/
// Turn/River all end a betting round this way).
type TableStateFn = statemachine.StateFn[Table]

func (t *Table) dealCardToSeatLocked(seat int, stage DealStage) error {
	card, ok := t.deck.Deal()
	if !ok {
		return tableerr.Wrap(tableerr.Resource, "deck exhausted dealing to seat", tableerr.ErrNoCardsLeft)
	}
	p := t.seats[seat].Player
	p.Hand = append(p.Hand, card)
	id := p.ID
	return t.provenance.Attribute(t.roundTicker, card, &id, stage)
}

// dealHoleCardsLocked deals one card at a time, around the table starting
// left of the dealer, for k passes (k from GameType.HoleCardCount).
func (t *Table) dealHoleCardsLocked() error {
	k := t.config.GameType.HoleCardCount()

	var order []int
	for _, seat := range t.occupiedSeatOrder(t.dealerSeat + 1) {
		if !t.seats[seat].Player.IsSittingOut() {
			order = append(order, seat)
		}
	}

	for pass := 0; pass < k; pass++ {
		for _, seat := range order {
			if err := t.dealCardToSeatLocked(seat, StageOpening); err != nil {
				return err
			}
		}
	}
	return nil
}

// burnAndDealCommunityLocked implements the Flop/Turn/River "burn 1, deal
// n" pattern. A burn's provenance record shares the stage of the community
// cards it precedes.
func (t *Table) burnAndDealCommunityLocked(n int, stage DealStage) error {
	burn, ok := t.deck.Deal()
	if !ok {
		return tableerr.Wrap(tableerr.Resource, "deck exhausted on burn", tableerr.ErrNoCardsLeft)
	}
	if err := t.provenance.Attribute(t.roundTicker, burn, nil, stage); err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		card, ok := t.deck.Deal()
		if !ok {
			return tableerr.Wrap(tableerr.Resource, "deck exhausted dealing community cards", tableerr.ErrNoCardsLeft)
		}
		t.community = append(t.community, card)
		if err := t.provenance.Attribute(t.roundTicker, card, nil, stage); err != nil {
			return err
		}
	}
	return nil
}

// firstActiveFromLocked returns the first seat at or after from that can
// still act, or -1 if none remain.
func (t *Table) firstActiveFromLocked(from int) int {
	active := t.activeSeatOrder(from)
	if len(active) == 0 {
		return -1
	}
	return active[0]
}

// beginBettingRoundLocked resets per-street transient state and points
// currentSeat at the first player to act.
func (t *Table) beginBettingRoundLocked(preFlop bool) {
	if !preFlop {
		t.highestBet = 0
		t.lastRaise = t.config.BigBlind
		t.lastAggressorSeat = -1
	}
	t.actedThisStreet = make(map[int]bool)
	if !preFlop {
		// Player.CurrentTotalBet tracks only the current betting round's
		// contribution (Ledger.TotalBet tracks the whole hand); the
		// pre-flop blind/ante amounts posted by postBlindsLocked stay
		// visible through the first betting round and reset here.
		for _, s := range t.seats {
			if s.Status == SeatOccupied {
				s.Player.CurrentTotalBet = 0
			}
		}
	}

	var firstActor int
	if preFlop {
		eligible := t.eligibleSeatOrder(t.dealerSeat)
		switch {
		case len(eligible) == 2:
			// Heads-up the dealer posts the small blind and acts first.
			firstActor = t.dealerSeat
		case len(eligible) > 3:
			firstActor = eligible[3] // first seat past the big blind
		default:
			firstActor = eligible[0]
		}
	} else {
		firstActor = t.dealerSeat + 1
	}

	t.currentSeat = t.firstActiveFromLocked(firstActor)
	t.scheduleTurnTimerLocked()
}

// bettingPossibleLocked reports whether the current street can see any
// betting at all. Once everyone still in the hand is all-in (or only one
// player can act and faces no bet), the board runs out to showdown without
// player input.
func (t *Table) bettingPossibleLocked() bool {
	active := t.activeSeatOrder(0)
	if len(active) == 0 {
		return false
	}
	if len(active) == 1 {
		p := t.seats[active[0]].Player
		return p.CurrentTotalBet < t.highestBet
	}
	return true
}

// runOutLocked confirms the street's bets and hands control to the next
// stage when no betting is possible, or yields for player input.
func (t *Table) runOutLocked(next TableStateFn) TableStateFn {
	if t.bettingPossibleLocked() {
		return nil
	}
	t.ledger.CloseRound(t.seatedPlayersLocked())
	t.currentSeat = -1
	return next
}

func (t *Table) scheduleTurnTimerLocked() {
	if t.deps.Timer == nil || t.config.TurnTimer <= 0 || t.currentSeat < 0 {
		return
	}
	t.deps.Timer.Schedule(t.id, t.config.TurnTimer, "turn_timeout")
}

// stageOpening posts blinds/antes, deals hole cards, and opens the first
// betting round.
func stageOpening(t *Table, callback func(string, statemachine.StateEvent)) TableStateFn {
	if callback != nil {
		callback("OPENING", statemachine.StateEntered)
	}
	t.stage = StageOpening
	if err := t.postBlindsLocked(); err != nil {
		t.stageErr = err
		return nil
	}
	if err := t.dealHoleCardsLocked(); err != nil {
		t.stageErr = err
		return nil
	}
	t.beginBettingRoundLocked(true)
	return t.runOutLocked(stageFlop)
}

func stageFlop(t *Table, callback func(string, statemachine.StateEvent)) TableStateFn {
	if callback != nil {
		callback("FLOP", statemachine.StateEntered)
	}
	t.stage = StageFlop
	if err := t.burnAndDealCommunityLocked(3, StageFlop); err != nil {
		t.stageErr = err
		return nil
	}
	t.beginBettingRoundLocked(false)
	return t.runOutLocked(stageTurn)
}

func stageTurn(t *Table, callback func(string, statemachine.StateEvent)) TableStateFn {
	if callback != nil {
		callback("TURN", statemachine.StateEntered)
	}
	t.stage = StageTurn
	if err := t.burnAndDealCommunityLocked(1, StageTurn); err != nil {
		t.stageErr = err
		return nil
	}
	t.beginBettingRoundLocked(false)
	return t.runOutLocked(stageRiver)
}

func stageRiver(t *Table, callback func(string, statemachine.StateEvent)) TableStateFn {
	if callback != nil {
		callback("RIVER", statemachine.StateEntered)
	}
	t.stage = StageRiver
	if err := t.burnAndDealCommunityLocked(1, StageRiver); err != nil {
		t.stageErr = err
		return nil
	}
	t.beginBettingRoundLocked(false)
	return t.runOutLocked(stageShowdown)
}

func stageShowdown(t *Table, callback func(string, statemachine.StateEvent)) TableStateFn {
	if callback != nil {
		callback("SHOWDOWN", statemachine.StateEntered)
	}
	t.runShowdownLocked()
	return nil
}

// runShowdownLocked handles both the contested showdown and the
// early-termination "all but one folds" path. Ranking is skipped entirely
// when only one player remains: no hand comparison is needed, and hole
// cards stay out of the action log so the client can muck them. Winnings
// are distributed pot by pot, then the next hand's auto-start timer is
// scheduled if configured.
func (t *Table) runShowdownLocked() {
	t.stage = StageShowdown
	// Confirms whatever the current street left uncommitted (the
	// early-termination fold path never reaches closeBettingRoundLocked).
	// A natural river close already confirmed everything, so this is a
	// harmless no-op there: ConfirmedPots, not this call's return value, is
	// always the source of truth for what there is to distribute.
	t.ledger.CloseRound(t.seatedPlayersLocked())
	pots := t.ledger.ConfirmedPots()
	inHand := t.inHandSeatOrder(t.dealerSeat + 1)

	if len(inHand) <= 1 {
		var total int64
		for _, pot := range pots {
			total += pot.Amount
		}
		if len(inHand) == 1 {
			winner := inHand[0]
			if t.config.EnableRake {
				total -= t.ledger.ApplyRake(t.config.Rake, total, 1)
			}
			t.seats[winner].Player.Balance += total
			t.lastWinners = map[int]int64{winner: total}
			t.logAction("round %d: seat %d wins uncontested pot of %d", t.roundTicker, winner, total)
			t.settleWinningsLocked(t.lastWinners)
		}
		t.finishHandLocked()
		return
	}

	ranked := make(map[int]Rank)
	for _, seat := range inHand {
		p := t.seats[seat].Player
		r, err := t.evaluateShowdownHandLocked(p)
		if err != nil {
			t.stageErr = tableerr.Raise(tableerr.Invariant, fmt.Sprintf("showdown evaluation failed for seat %d", seat), err)
			return
		}
		rCopy := r
		p.HandRank = &rCopy
		p.HandDescription = r.Description
		ranked[seat] = r
	}
	t.rankedHands = ranked

	if t.config.EnableRake {
		for _, pot := range pots {
			pot.Amount -= t.ledger.ApplyRake(t.config.Rake, pot.Amount, len(pot.Eligible))
		}
	}

	seatOrder := t.occupiedSeatOrder(0)
	winnings := t.ledger.Distribute(pots, ranked, t.dealerSeat, seatOrder)
	for seat, amount := range winnings {
		t.seats[seat].Player.Balance += amount
	}
	t.lastWinners = winnings
	t.logAction("round %d showdown: winnings=%v", t.roundTicker, winnings)
	t.settleWinningsLocked(winnings)
	t.finishHandLocked()
}

// settleWinningsLocked mirrors showdown payouts into the external wallet on
// real-currency tables. Wallets are idempotent on the transaction id, so a
// replayed showdown (e.g. after a snapshot restore) cannot double-pay.
func (t *Table) settleWinningsLocked(winnings map[int]int64) {
	if t.deps.Wallet == nil || t.config.Currency != CurrencyReal {
		return
	}
	for seat, amount := range winnings {
		p := t.seats[seat].Player
		txID := fmt.Sprintf("%s:r%d:s%d", t.id, t.roundTicker, seat)
		if err := t.deps.Wallet.Deposit(context.Background(), p.ID, amount, txID); err != nil {
			t.log.Errorf("table %s: wallet deposit for %s failed: %v", t.id, p.ID, err)
		}
	}
}

func (t *Table) evaluateShowdownHandLocked(p *Player) (Rank, error) {
	if t.config.GameType.IsOmaha() {
		variant := Omaha4
		if t.config.GameType.Kind == GamePotLimitOmaha5 {
			variant = Omaha5
		}
		return EvaluateOmaha(p.Hand, t.community, variant)
	}
	return EvaluateHoldem(p.Hand, t.community)
}

func (t *Table) finishHandLocked() {
	t.handInProgress = false
	t.currentSeat = -1
	if t.deps.Timer != nil {
		t.deps.Timer.Cancel(t.id, "turn_timeout")
		if t.config.AutoStartTimer > 0 {
			t.deps.Timer.Schedule(t.id, t.config.AutoStartTimer, "next_hand")
		}
	}
}

// betContextLocked builds the BetContext LegalActions/ResolveBet need for
// seat's pending action.
func (t *Table) betContextLocked(seat int) BetContext {
	p := t.seats[seat].Player
	round := 0
	switch t.stage {
	case StageOpening:
		round = 0
	case StageFlop:
		round = 1
	case StageTurn:
		round = 2
	case StageRiver:
		round = 3
	}
	return BetContext{
		ConfirmedPot:         t.ledger.ConfirmedPot(),
		UncommittedRoundBets: t.ledger.UncommittedRoundTotal(),
		CurrentBetToMatch:    t.highestBet,
		CallerStack:          p.Balance,
		CallerCurrentBet:     p.CurrentTotalBet,
		LastRaiseAmount:      t.lastRaise,
		BettingRound:         round,
	}
}

func (t *Table) validateTurnLocked(seat int) error {
	if !t.handInProgress {
		return tableerr.Wrap(tableerr.Validation, "no hand in progress", tableerr.ErrActionNotAllowedStage)
	}
	if t.stage == StageShowdown || t.stage == StageFresh {
		return tableerr.Wrap(tableerr.Validation, "betting is not open in this stage", tableerr.ErrActionNotAllowedStage)
	}
	if seat != t.currentSeat {
		return tableerr.Wrap(tableerr.Validation, fmt.Sprintf("seat %d acted out of turn", seat), tableerr.ErrNotPlayersTurn)
	}
	return nil
}

// Bet applies a player's call, raise, or all-in, resolving the amount
// through ResolveBet (which enforces the Pot-Limit Rule of Three and every
// other game type's bounds).
func (t *Table) Bet(playerID string, bt BetType) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	seat, p, ok := t.findPlayerSeatLocked(playerID)
	if !ok {
		return tableerr.Wrap(tableerr.Lookup, "bet: player not found", tableerr.ErrPlayerNotFound)
	}
	if err := t.validateTurnLocked(seat); err != nil {
		return err
	}

	ctx := t.betContextLocked(seat)
	var requestedTotal int64
	switch bt.Kind {
	case BetCalled:
		requestedTotal = t.highestBet
	case BetRaised:
		requestedTotal = bt.Amount
	case BetAllIn:
		requestedTotal = p.CurrentTotalBet + p.Balance
	default:
		return tableerr.New(tableerr.Validation, "unknown bet action kind")
	}

	resolved, isAllIn, err := ResolveBet(t.config.GameType, ctx, requestedTotal)
	if err != nil {
		return err
	}

	delta := resolved - p.CurrentTotalBet
	if delta < 0 {
		return tableerr.Wrap(tableerr.Validation, "bet cannot decrease contribution", tableerr.ErrInvalidBetAmount)
	}
	if delta > p.Balance {
		return tableerr.Wrap(tableerr.Resource, "insufficient funds", tableerr.ErrInsufficientFunds)
	}

	p.Balance -= delta
	p.CurrentTotalBet += delta
	t.ledger.Contribute(seat, delta)

	switch {
	case isAllIn || p.Balance == 0:
		p.SetAction(ActionAllIn)
	case resolved > t.highestBet:
		p.SetAction(ActionRaised)
	default:
		p.SetAction(ActionCalled)
	}

	if resolved > t.highestBet {
		t.lastRaise = resolved - t.highestBet
		t.highestBet = resolved
		t.lastAggressorSeat = seat
		t.actedThisStreet = map[int]bool{seat: true}
	} else {
		t.actedThisStreet[seat] = true
	}

	t.logAction("seat %d %s to %d", seat, p.Action, resolved)
	t.advanceTurnLocked()
	return nil
}

// Check passes the action when the player faces no bet.
func (t *Table) Check(playerID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	seat, p, ok := t.findPlayerSeatLocked(playerID)
	if !ok {
		return tableerr.Wrap(tableerr.Lookup, "check: player not found", tableerr.ErrPlayerNotFound)
	}
	if err := t.validateTurnLocked(seat); err != nil {
		return err
	}
	if p.CurrentTotalBet < t.highestBet {
		return tableerr.Wrap(tableerr.Validation, "cannot check facing a bet", tableerr.ErrActionNotAllowedStage)
	}

	p.SetAction(ActionChecked)
	t.actedThisStreet[seat] = true
	t.logAction("seat %d checked", seat)
	t.advanceTurnLocked()
	return nil
}

// Fold folds the player's hand; if only one live player remains, the hand
// ends immediately and uncontested.
func (t *Table) Fold(playerID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	seat, p, ok := t.findPlayerSeatLocked(playerID)
	if !ok {
		return tableerr.Wrap(tableerr.Lookup, "fold: player not found", tableerr.ErrPlayerNotFound)
	}
	if err := t.validateTurnLocked(seat); err != nil {
		return err
	}

	p.SetAction(ActionFolded)
	t.logAction("seat %d folded", seat)

	if len(t.inHandSeatOrder(0)) <= 1 {
		t.currentSeat = -1
		return t.runStage(stageShowdown)
	}
	t.advanceTurnLocked()
	return nil
}

// Showdown forces the showdown explicitly; it is normally reached
// implicitly at the end of River.
func (t *Table) Showdown() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.handInProgress {
		return tableerr.New(tableerr.Validation, "no hand in progress")
	}
	return t.runStage(stageShowdown)
}

func (t *Table) bettingRoundClosedLocked() bool {
	for _, seat := range t.occupiedSeatOrder(0) {
		p := t.seats[seat].Player
		if p.HasFolded() || p.IsSittingOut() || p.IsAllIn() {
			continue
		}
		if !t.actedThisStreet[seat] || p.CurrentTotalBet != t.highestBet {
			return false
		}
	}
	return true
}

// advanceTurnLocked moves the turn pointer to the next active seat, or
// closes the betting round (and advances the deal stage) once every
// non-folded, non-all-in, non-sitting-out seat has matched the highest bet
// and acted.
func (t *Table) advanceTurnLocked() {
	if t.bettingRoundClosedLocked() {
		t.closeBettingRoundLocked()
		return
	}
	next := t.activeSeatOrder(t.currentSeat + 1)
	if len(next) == 0 {
		t.closeBettingRoundLocked()
		return
	}
	t.currentSeat = next[0]
	t.scheduleTurnTimerLocked()
}

func (t *Table) closeBettingRoundLocked() {
	t.ledger.CloseRound(t.seatedPlayersLocked())
	t.currentSeat = -1

	var next TableStateFn
	switch t.stage {
	case StageOpening:
		next = stageFlop
	case StageFlop:
		next = stageTurn
	case StageTurn:
		next = stageRiver
	default:
		next = stageShowdown
	}
	if err := t.runStage(next); err != nil {
		t.log.Errorf("table %s: stage transition error: %v", t.id, err)
	}
}

// TimerFired delivers an expired timer callback back into the engine as an
// ordinary command; the engine never owns threads or timers itself.
func (t *Table) TimerFired(callbackID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch callbackID {
	case "turn_timeout":
		return t.autoActLocked()
	case "next_hand":
		return nil
	}
	return nil
}

// autoActLocked synthesizes an auto-fold, or auto-check when checking is
// legal, for the player whose turn timer expired.
func (t *Table) autoActLocked() error {
	if t.currentSeat < 0 || !t.handInProgress {
		return nil
	}
	seat := t.currentSeat
	p := t.seats[seat].Player

	if p.CurrentTotalBet >= t.highestBet {
		p.SetAction(ActionChecked)
		t.actedThisStreet[seat] = true
		t.logAction("seat %d auto-checked (turn timer expired)", seat)
	} else {
		p.SetAction(ActionFolded)
		t.logAction("seat %d auto-folded (turn timer expired)", seat)
		if len(t.inHandSeatOrder(0)) <= 1 {
			t.currentSeat = -1
			return t.runStage(stageShowdown)
		}
	}
	t.advanceTurnLocked()
	return nil
}
