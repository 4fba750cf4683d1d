package poker

import "sort"

// CurrencyType distinguishes play-money tables from real-asset tables.
type CurrencyType int

const (
	CurrencyFake CurrencyType = iota
	CurrencyReal
)

// SidePot is a confirmed amount plus the set of seats eligible to win it.
// Side pots are produced by Ledger.CloseRound whenever a player went all-in
// for less than the current effective bet.
type SidePot struct {
	Amount   int64
	Eligible map[int]bool // seat index -> eligible
}

func newSidePot() *SidePot {
	return &SidePot{Eligible: make(map[int]bool)}
}

// Ledger tracks per-seat contributions for the current round and the
// confirmed pots from prior rounds of the same hand. Seats, not
// player-slice indices, are the keys throughout so empty/sitting-out seats
// never collide with an occupant's history.
type Ledger struct {
	confirmed   []*SidePot
	currentBets map[int]int64
	totalBets   map[int]int64
	rakeTotal   int64
}

// NewLedger returns an empty ledger with no confirmed pots.
func NewLedger() *Ledger {
	return &Ledger{
		currentBets: make(map[int]int64),
		totalBets:   make(map[int]int64),
	}
}

// Contribute adds amount to seat's accumulating bet for the round.
func (l *Ledger) Contribute(seat int, amount int64) {
	l.currentBets[seat] += amount
	l.totalBets[seat] += amount
}

// CurrentBet returns seat's contribution so far in the current betting round.
func (l *Ledger) CurrentBet(seat int) int64 {
	return l.currentBets[seat]
}

// TotalBet returns seat's contribution across the whole hand.
func (l *Ledger) TotalBet(seat int) int64 {
	return l.totalBets[seat]
}

// UncommittedRoundTotal sums every seat's current-round contribution, one
// of the three terms of the Pot-Limit raise ceiling.
func (l *Ledger) UncommittedRoundTotal() int64 {
	var total int64
	for _, bet := range l.currentBets {
		total += bet
	}
	return total
}

// ConfirmedPots returns every pot confirmed so far this hand, across every
// street's CloseRound call. Showdown distributes over this, never over a
// single CloseRound call's return value, since a hand's money can have been
// confirmed across several streets.
func (l *Ledger) ConfirmedPots() []*SidePot {
	return l.confirmed
}

// ConfirmedPot sums every pot confirmed by a prior CloseRound in this hand,
// the pot-before-bet term of the Pot-Limit raise ceiling.
func (l *Ledger) ConfirmedPot() int64 {
	var total int64
	for _, pot := range l.confirmed {
		total += pot.Amount
	}
	return total
}

// resetCurrentBets clears per-round contributions once they have been
// confirmed into pots.
func (l *Ledger) resetCurrentBets() {
	l.currentBets = make(map[int]int64)
}

// CloseRound confirms the round's contributions into (possibly several)
// side pots: one pot per distinct this-round-contribution threshold among
// non-folded seats, over a sparse seats-by-index map so sitting-out seats
// don't need to be removed from play.
//
// Levels are computed from currentBets, not the whole-hand totalBets: this
// is what makes CloseRound safe to call once per street. A seat that went
// all-in on an earlier street contributes 0 to every later street's
// currentBets, so it is automatically excluded from later levels/pots
// without needing to be tracked separately — new side pots from later
// streets simply append to l.confirmed alongside earlier ones. Returns the
// pots confirmed by this call; iterating the returned slice ascending by
// threshold yields side pots before the main pot, the order distribution
// wants.
func (l *Ledger) CloseRound(players map[int]*Player) []*SidePot {
	levels := make(map[int64]bool)
	for seat, bet := range l.currentBets {
		if bet <= 0 {
			continue
		}
		if p, ok := players[seat]; ok && p.HasFolded() {
			continue
		}
		levels[bet] = true
	}

	uniqueLevels := make([]int64, 0, len(levels))
	for level := range levels {
		uniqueLevels = append(uniqueLevels, level)
	}
	sort.Slice(uniqueLevels, func(i, j int) bool { return uniqueLevels[i] < uniqueLevels[j] })

	var pots []*SidePot
	var prev int64
	for _, level := range uniqueLevels {
		pot := newSidePot()
		for seat, bet := range l.currentBets {
			if bet <= 0 {
				continue
			}
			p, ok := players[seat]
			folded := ok && p.HasFolded()
			if bet >= level && !folded {
				pot.Eligible[seat] = true
			}
			if bet > prev {
				contribution := bet
				if bet > level {
					contribution = level
				}
				pot.Amount += contribution - prev
			}
		}
		pots = append(pots, pot)
		prev = level
	}

	l.confirmed = append(l.confirmed, pots...)
	l.resetCurrentBets()
	return pots
}

// ApplyRake computes the house cut of a confirmed pot at showdown: the
// standard percentage-capped-in-big-blinds house rule, gated by cfg.Enabled.
// rakeTotal accumulates across the table's lifetime.
func (l *Ledger) ApplyRake(cfg RakeConfig, pot int64, headCount int) int64 {
	if !cfg.Enabled || headCount < 2 || pot <= 0 {
		return 0
	}
	rake := pot * int64(cfg.PercentBps) / 10000
	if cfg.CapBigBlinds > 0 && cfg.BigBlind > 0 {
		cap := cfg.CapBigBlinds * cfg.BigBlind
		if rake > cap {
			rake = cap
		}
	}
	if rake > pot {
		rake = pot
	}
	l.rakeTotal += rake
	return rake
}

// RakeTotal returns the cumulative rake collected by this ledger.
func (l *Ledger) RakeTotal() int64 {
	return l.rakeTotal
}

// RakeConfig parameterizes ApplyRake: the cut is a function of pot size and
// the table's big blind, and head count only decides whether any rake is
// taken (none below two). Currency is carried here but ApplyRake does not
// read it.
type RakeConfig struct {
	Enabled      bool
	PercentBps   int64 // basis points, e.g. 500 = 5%
	CapBigBlinds int64
	BigBlind     int64
	Currency     CurrencyType
}

// Distribute splits each pot among the top-ranked eligible seats. Ties are
// split by integer division; any remainder goes to the winner seated
// closest to the left of the dealer, a deterministic tie-break (never map
// iteration order, which is unspecified in Go).
func (l *Ledger) Distribute(pots []*SidePot, ranked map[int]Rank, dealerSeat int, seatOrder []int) map[int]int64 {
	winnings := make(map[int]int64)

	for _, pot := range pots {
		var winners []int
		var best *Rank
		for seat := range pot.Eligible {
			r, ok := ranked[seat]
			if !ok {
				continue
			}
			switch {
			case best == nil:
				rc := r
				best = &rc
				winners = []int{seat}
			case r.Compare(*best) > 0:
				rc := r
				best = &rc
				winners = []int{seat}
			case r.Compare(*best) == 0:
				winners = append(winners, seat)
			}
		}
		if len(winners) == 0 {
			continue
		}

		share := pot.Amount / int64(len(winners))
		remainder := pot.Amount % int64(len(winners))
		for _, seat := range winners {
			winnings[seat] += share
		}
		if remainder > 0 {
			winnings[closestLeftOfDealer(winners, dealerSeat, seatOrder)] += remainder
		}
	}

	return winnings
}

// closestLeftOfDealer returns the seat among candidates with the smallest
// clockwise distance from dealerSeat along seatOrder.
func closestLeftOfDealer(candidates []int, dealerSeat int, seatOrder []int) int {
	if len(seatOrder) == 0 {
		return candidates[0]
	}
	dealerPos := -1
	for i, s := range seatOrder {
		if s == dealerSeat {
			dealerPos = i
			break
		}
	}
	if dealerPos == -1 {
		return candidates[0]
	}
	isCandidate := make(map[int]bool, len(candidates))
	for _, c := range candidates {
		isCandidate[c] = true
	}
	n := len(seatOrder)
	for i := 1; i <= n; i++ {
		seat := seatOrder[(dealerPos+i)%n]
		if isCandidate[seat] {
			return seat
		}
	}
	return candidates[0]
}

// ReturnUncalledBet refunds the uncalled portion of the current round's
// largest bet when no other seat called it in full. Returns the refunded
// seat and amount; ok is false when every active bet was matched.
func (l *Ledger) ReturnUncalledBet(balances map[int]*int64) (seat int, amount int64, ok bool) {
	var highestSeat int
	var highest, secondHighest int64
	found := false
	for s, bet := range l.currentBets {
		if bet > highest {
			secondHighest = highest
			highest = bet
			highestSeat = s
			found = true
		} else if bet > secondHighest {
			secondHighest = bet
		}
	}
	if !found || highest <= secondHighest {
		return 0, 0, false
	}

	uncalled := highest - secondHighest
	if bal, ok := balances[highestSeat]; ok && bal != nil {
		*bal += uncalled
	}
	l.currentBets[highestSeat] -= uncalled
	l.totalBets[highestSeat] -= uncalled
	return highestSeat, uncalled, true
}
