package poker

import "fmt"

// Deck is an ordered sequence of cards dealt by popping from the tail. At
// any time dealt-cards plus deck-remaining is a permutation of the canonical
// 52; once shuffled from a seed, the permutation is a pure function of that
// seed.
type Deck struct {
	cards []Card
}

// NewDeck builds the canonical 52-card deck and shuffles it in place from
// seedBytes. The same seedBytes always produce the same ordering.
func NewDeck(seedBytes []byte) *Deck {
	canonical := canonicalDeck()
	cards := make([]Card, len(canonical))
	copy(cards, canonical[:])

	shuffle(cards, NewShuffleSource(seedBytes))

	return &Deck{cards: cards}
}

// Deal pops one card from the tail of the deck. Returns false when the deck
// is empty; callers escalate that as a fatal NoCardsLeft condition, which
// should never occur in a correctly configured game.
func (d *Deck) Deal() (Card, bool) {
	n := len(d.cards)
	if n == 0 {
		return Card{}, false
	}
	card := d.cards[n-1]
	d.cards = d.cards[:n-1]
	return card, true
}

// Remaining returns the cards still in the deck, in dealing order (the next
// Deal() call returns the last element of this slice).
func (d *Deck) Remaining() []Card {
	out := make([]Card, len(d.cards))
	copy(out, d.cards)
	return out
}

// At gives indexed read access to the remaining ordered sequence.
func (d *Deck) At(i int) Card {
	return d.cards[i]
}

// Size returns the number of cards remaining.
func (d *Deck) Size() int {
	return len(d.cards)
}

// DeckState is the serializable form of a deck, used by the snapshot codec.
type DeckState struct {
	RemainingCards []Card `json:"remaining_cards"`
}

// State returns the deck's current state for persistence.
func (d *Deck) State() *DeckState {
	cards := make([]Card, len(d.cards))
	copy(cards, d.cards)
	return &DeckState{RemainingCards: cards}
}

// NewDeckFromState restores a deck from a previously captured state, e.g.
// after a process restart mid-round.
func NewDeckFromState(state *DeckState) (*Deck, error) {
	if state == nil {
		return nil, fmt.Errorf("poker: deck state is nil")
	}
	cards := make([]Card, len(state.RemainingCards))
	copy(cards, state.RemainingCards)
	return &Deck{cards: cards}, nil
}
