package poker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/foldline/pokercore/pkg/poker/tableerr"
)

// RngMetadata is the per-round randomness record: enough to let an external
// auditor replay seed, shuffle, and deal, and confirm the table behaved
// honestly.
type RngMetadata struct {
	RoundID        int64
	RawRandomBytes []byte
	// TimeSeed is recorded for operational forensics only. It is never an
	// input to the shuffle: the deck is a pure function of RawRandomBytes.
	TimeSeed     int64
	Timestamp    time.Time
	ExternalTxID string
	DeckHash     string
	ShuffledDeck []Card
}

// CardProvenance is the per-card audit record tying a dealt card back to
// the round's seed and its recipient.
type CardProvenance struct {
	RoundID          int64
	Card             Card
	OriginalPosition int
	ShuffledPosition int
	CardHash         string
	DealtTo          *string
	DealtAtStage     *DealStage
}

func cardHash(roundID int64, card Card, shuffledPos int) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%d", roundID, card.String(), shuffledPos)
	return hex.EncodeToString(h.Sum(nil))
}

func deckHash(cards []Card) string {
	h := sha256.New()
	for _, c := range cards {
		fmt.Fprint(h, c.String(), "|")
	}
	return hex.EncodeToString(h.Sum(nil))
}

func canonicalIndex(card Card) int {
	canonical := canonicalDeck()
	for i, c := range canonical {
		if c == card {
			return i
		}
	}
	return -1
}

// ProvenanceLedger holds per-round card attribution. Records are
// pre-allocated once per round and only ever mutated by Attribute, never
// replaced, so a partially-dealt round is always auditable.
type ProvenanceLedger struct {
	records map[int64][]*CardProvenance
	history []RngMetadata
}

func NewProvenanceLedger() *ProvenanceLedger {
	return &ProvenanceLedger{records: make(map[int64][]*CardProvenance)}
}

// BeginRound pre-allocates 52 provenance records for roundID keyed by the
// card hash, and appends the round's RngMetadata to the history.
func (l *ProvenanceLedger) BeginRound(roundID int64, shuffled []Card, rawBytes []byte, timeSeed int64, externalTxID string) RngMetadata {
	records := make([]*CardProvenance, len(shuffled))
	for i, card := range shuffled {
		records[i] = &CardProvenance{
			RoundID:          roundID,
			Card:             card,
			OriginalPosition: canonicalIndex(card),
			ShuffledPosition: i,
			CardHash:         cardHash(roundID, card, i),
		}
	}
	l.records[roundID] = records

	meta := RngMetadata{
		RoundID:        roundID,
		RawRandomBytes: rawBytes,
		TimeSeed:       timeSeed,
		Timestamp:      time.Now(),
		ExternalTxID:   externalTxID,
		DeckHash:       deckHash(shuffled),
		ShuffledDeck:   shuffled,
	}
	l.history = append(l.history, meta)
	return meta
}

// Attribute finds the provenance record matching card for roundID and
// stamps dealtTo/stage on it. to is nil for community cards and burns;
// stage is always set, including for burns (which share the stage of the
// community card they precede). The search is scoped to roundID to avoid
// collisions across rounds.
func (l *ProvenanceLedger) Attribute(roundID int64, card Card, to *string, stage DealStage) error {
	records, ok := l.records[roundID]
	if !ok {
		return tableerr.Raise(tableerr.Invariant, fmt.Sprintf("no provenance records for round %d", roundID), tableerr.ErrMissingProvenance)
	}
	for _, r := range records {
		if r.Card == card && r.DealtAtStage == nil {
			r.DealtTo = to
			s := stage
			r.DealtAtStage = &s
			return nil
		}
	}
	return tableerr.Raise(tableerr.Invariant, fmt.Sprintf("round %d: no unattributed provenance record for card %s", roundID, card), tableerr.ErrMissingProvenance)
}

// History returns every provenance record for roundID, in pre-allocation
// (i.e. shuffled-position) order.
func (l *ProvenanceLedger) History(roundID int64) []CardProvenance {
	records := l.records[roundID]
	out := make([]CardProvenance, len(records))
	for i, r := range records {
		out[i] = *r
	}
	return out
}

// RngHistory returns every RngMetadata whose RoundID falls in [from, to].
func (l *ProvenanceLedger) RngHistory(from, to int64) []RngMetadata {
	var out []RngMetadata
	for _, m := range l.history {
		if m.RoundID >= from && m.RoundID <= to {
			out = append(out, m)
		}
	}
	return out
}
