package poker

import (
	"fmt"
	"sort"

	chehsunliu "github.com/chehsunliu/poker"
)

// RankCategory is the hand class of an evaluated 5-card hand, totally
// ordered HighCard < Pair < ... < StraightFlush.
type RankCategory int

const (
	HighCard RankCategory = iota
	Pair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
)

func (c RankCategory) String() string {
	switch c {
	case HighCard:
		return "High Card"
	case Pair:
		return "Pair"
	case TwoPair:
		return "Two Pair"
	case ThreeOfAKind:
		return "Three of a Kind"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case FourOfAKind:
		return "Four of a Kind"
	case StraightFlush:
		return "Straight Flush"
	default:
		return "Unknown"
	}
}

// Rank is the evaluated strength of a best-5 hand. chehsunliuValue is the
// underlying chehsunliu/poker rank (lower is better); Category and Kickers
// are derived from it for display and tie-break inspection (category first,
// then descending kickers).
type Rank struct {
	Category        RankCategory
	Kickers         []int
	BestFive        []Card
	Description     string
	chehsunliuValue int32
}

// Compare returns 1 if r beats other, -1 if other beats r, 0 on a tie (the
// hands split the pot). chehsunliu's convention is lower-is-better; this
// flips it to the "higher is better" convention the rest of the engine
// expects.
func (r Rank) Compare(other Rank) int {
	switch {
	case r.chehsunliuValue < other.chehsunliuValue:
		return 1
	case r.chehsunliuValue > other.chehsunliuValue:
		return -1
	default:
		return 0
	}
}

func valueToInt(value Value) int {
	switch value {
	case Ace:
		return 14
	case King:
		return 13
	case Queen:
		return 12
	case Jack:
		return 11
	case Ten:
		return 10
	case Nine:
		return 9
	case Eight:
		return 8
	case Seven:
		return 7
	case Six:
		return 6
	case Five:
		return 5
	case Four:
		return 4
	case Three:
		return 3
	case Two:
		return 2
	default:
		return 0
	}
}

// convertCardToChehsunliu converts our Card type to the chehsunliu/poker
// Card type, erroring rather than silently defaulting on an invalid card.
func convertCardToChehsunliu(card Card) (chehsunliu.Card, error) {
	var rankChar byte
	switch card.value {
	case Two:
		rankChar = '2'
	case Three:
		rankChar = '3'
	case Four:
		rankChar = '4'
	case Five:
		rankChar = '5'
	case Six:
		rankChar = '6'
	case Seven:
		rankChar = '7'
	case Eight:
		rankChar = '8'
	case Nine:
		rankChar = '9'
	case Ten:
		rankChar = 'T'
	case Jack:
		rankChar = 'J'
	case Queen:
		rankChar = 'Q'
	case King:
		rankChar = 'K'
	case Ace:
		rankChar = 'A'
	default:
		return chehsunliu.Card(0), fmt.Errorf("poker: invalid card value %q", card.value)
	}

	var suitChar byte
	switch card.suit {
	case Spades:
		suitChar = 's'
	case Hearts:
		suitChar = 'h'
	case Diamonds:
		suitChar = 'd'
	case Clubs:
		suitChar = 'c'
	default:
		return chehsunliu.Card(0), fmt.Errorf("poker: invalid card suit %q", card.suit)
	}

	return chehsunliu.NewCard(string([]byte{rankChar, suitChar})), nil
}

func convertCardsToChehsunliu(cards []Card) ([]chehsunliu.Card, error) {
	out := make([]chehsunliu.Card, len(cards))
	for i, c := range cards {
		cc, err := convertCardToChehsunliu(c)
		if err != nil {
			return nil, err
		}
		out[i] = cc
	}
	return out, nil
}

func categoryFromRankClass(rankClass int32) RankCategory {
	switch rankClass {
	case 1:
		return StraightFlush
	case 2:
		return FourOfAKind
	case 3:
		return FullHouse
	case 4:
		return Flush
	case 5:
		return Straight
	case 6:
		return ThreeOfAKind
	case 7:
		return TwoPair
	case 8:
		return Pair
	default:
		return HighCard
	}
}

func descendingKickers(cards []Card) []int {
	values := make([]int, len(cards))
	for i, c := range cards {
		values[i] = valueToInt(c.value)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(values)))
	return values
}

// RankExactlyFive evaluates exactly five cards with no combination search,
// the fast path used inside Omaha enumeration.
func RankExactlyFive(cards [5]Card) (Rank, error) {
	hand := cards[:]
	cc, err := convertCardsToChehsunliu(hand)
	if err != nil {
		return Rank{}, err
	}
	value := chehsunliu.Evaluate(cc)
	rankClass := chehsunliu.RankClass(value)

	best := make([]Card, 5)
	copy(best, hand)

	return Rank{
		Category:        categoryFromRankClass(rankClass),
		Kickers:         descendingKickers(best),
		BestFive:        best,
		Description:     chehsunliu.RankString(value),
		chehsunliuValue: value,
	}, nil
}

// RankHand evaluates the best 5-card hand contained in 5 to 10 cards. For
// exactly 5 cards it is equivalent to RankExactlyFive by construction: both
// bottom out in the same chehsunliu.Evaluate call.
func RankHand(cards []Card) (Rank, error) {
	if len(cards) < 5 || len(cards) > 10 {
		return Rank{}, fmt.Errorf("poker: RankHand requires 5 to 10 cards, got %d", len(cards))
	}
	if len(cards) == 5 {
		var five [5]Card
		copy(five[:], cards)
		return RankExactlyFive(five)
	}

	cc, err := convertCardsToChehsunliu(cards)
	if err != nil {
		return Rank{}, err
	}
	var bestValue int32
	if len(cc) <= 7 {
		bestValue = chehsunliu.Evaluate(cc)
	} else {
		// chehsunliu.Evaluate takes at most 7 cards; larger sets are
		// searched five cards at a time (lower value is better).
		for i, combo := range combinations(cards, 5) {
			five, err := convertCardsToChehsunliu(combo)
			if err != nil {
				return Rank{}, err
			}
			if v := chehsunliu.Evaluate(five); i == 0 || v < bestValue {
				bestValue = v
			}
		}
	}
	rankClass := chehsunliu.RankClass(bestValue)

	best, err := bestFiveFromValue(cards, bestValue)
	if err != nil {
		return Rank{}, err
	}

	return Rank{
		Category:        categoryFromRankClass(rankClass),
		Kickers:         descendingKickers(best),
		BestFive:        best,
		Description:     chehsunliu.RankString(bestValue),
		chehsunliuValue: bestValue,
	}, nil
}

// bestFiveFromValue finds which 5-card combination out of cards produces
// bestValue, the overall best chehsunliu rank for the full set.
func bestFiveFromValue(cards []Card, bestValue int32) ([]Card, error) {
	for _, combo := range combinations(cards, 5) {
		cc, err := convertCardsToChehsunliu(combo)
		if err != nil {
			return nil, err
		}
		if chehsunliu.Evaluate(cc) == bestValue {
			return combo, nil
		}
	}
	return nil, fmt.Errorf("poker: no 5-card combination matched the best rank")
}

// combinations generates all k-card combinations of cards, in input order.
func combinations(cards []Card, k int) [][]Card {
	var out [][]Card
	if k <= 0 || k > len(cards) {
		return out
	}
	var generate func(start int, current []Card)
	generate = func(start int, current []Card) {
		if len(current) == k {
			combo := make([]Card, k)
			copy(combo, current)
			out = append(out, combo)
			return
		}
		for i := start; i <= len(cards)-(k-len(current)); i++ {
			generate(i+1, append(current, cards[i]))
		}
	}
	generate(0, nil)
	return out
}

// EvaluateHoldem ranks a Hold'em player's best hand from 2 hole cards and up
// to 5 community cards.
func EvaluateHoldem(hole, community []Card) (Rank, error) {
	all := make([]Card, 0, len(hole)+len(community))
	all = append(all, hole...)
	all = append(all, community...)
	return RankHand(all)
}

// OmahaVariant distinguishes Pot-Limit Omaha's 4- and 5-hole-card variants.
type OmahaVariant int

const (
	Omaha4 OmahaVariant = iota
	Omaha5
)

func (v OmahaVariant) holeCards() int {
	if v == Omaha5 {
		return 5
	}
	return 4
}

// EvaluateOmaha enforces the "exactly two hole cards plus exactly three
// community cards" Omaha constraint by brute-force enumeration of every
// C(hole,2) x C(community,3) pairing. Throughput is not a goal here; PLO5
// tops out at 100 combinations per hand.
func EvaluateOmaha(hole, community []Card, variant OmahaVariant) (Rank, error) {
	want := variant.holeCards()
	if len(hole) != want {
		return Rank{}, fmt.Errorf("poker: omaha variant requires %d hole cards, got %d", want, len(hole))
	}
	if len(community) > 5 {
		return Rank{}, fmt.Errorf("poker: omaha community cards must be at most 5, got %d", len(community))
	}

	var best *Rank
	for _, holePair := range combinations(hole, 2) {
		for _, commTriple := range combinations(community, 3) {
			var five [5]Card
			copy(five[:2], holePair)
			copy(five[2:], commTriple)

			r, err := RankExactlyFive(five)
			if err != nil {
				return Rank{}, err
			}
			if best == nil || r.Compare(*best) > 0 {
				rCopy := r
				best = &rCopy
			}
		}
	}
	if best == nil {
		return Rank{}, fmt.Errorf("poker: no omaha hole/community pairing available")
	}
	return *best, nil
}
