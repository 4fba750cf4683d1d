package poker

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func testPlayers(n int, balance int64) map[int]*Player {
	players := make(map[int]*Player, n)
	for i := 0; i < n; i++ {
		players[i] = NewPlayer(fmt.Sprintf("player_%d", i), fmt.Sprintf("Player %d", i), balance)
		players[i].Action = ActionActive
	}
	return players
}

// A all-in for 10, B and C in for 30 each: the first pot is 30 with
// everyone eligible; the second is 40 for B and C only.
func TestSidePotConstruction(t *testing.T) {
	players := testPlayers(3, 100)
	players[0].Action = ActionAllIn

	ledger := NewLedger()
	ledger.Contribute(0, 10)
	ledger.Contribute(1, 30)
	ledger.Contribute(2, 30)

	pots := ledger.CloseRound(players)
	require.Len(t, pots, 2)

	require.Equal(t, int64(30), pots[0].Amount)
	require.Equal(t, map[int]bool{0: true, 1: true, 2: true}, pots[0].Eligible)

	require.Equal(t, int64(40), pots[1].Amount)
	require.Equal(t, map[int]bool{1: true, 2: true}, pots[1].Eligible)
}

// If the all-in short stack holds the best hand, it wins only the pot it is
// eligible for; the overage goes to the best of the remaining players.
func TestSidePotDistribution(t *testing.T) {
	players := testPlayers(3, 100)
	players[0].Action = ActionAllIn

	ledger := NewLedger()
	ledger.Contribute(0, 10)
	ledger.Contribute(1, 30)
	ledger.Contribute(2, 30)
	pots := ledger.CloseRound(players)

	quads, err := RankHand(cards(t, "Ah", "Ad", "Ac", "As", "Kh"))
	require.NoError(t, err)
	flush, err := RankHand(cards(t, "2s", "5s", "9s", "Js", "Ks"))
	require.NoError(t, err)
	pair, err := RankHand(cards(t, "Qh", "Qd", "2c", "7s", "9d"))
	require.NoError(t, err)

	ranked := map[int]Rank{0: quads, 1: flush, 2: pair}
	winnings := ledger.Distribute(pots, ranked, 0, []int{0, 1, 2})

	require.Equal(t, int64(30), winnings[0], "the all-in winner takes only its own pot")
	require.Equal(t, int64(40), winnings[1], "the side pot goes to the best eligible hand")
	require.Zero(t, winnings[2])
}

// A folded player's chips stay in the pot but the player is never eligible
// to win any of it.
func TestFoldedPlayerIneligible(t *testing.T) {
	players := testPlayers(3, 100)
	players[2].Action = ActionFolded

	ledger := NewLedger()
	ledger.Contribute(0, 20)
	ledger.Contribute(1, 20)
	ledger.Contribute(2, 20)

	pots := ledger.CloseRound(players)
	require.Len(t, pots, 1)
	require.Equal(t, int64(60), pots[0].Amount, "folded chips remain in the pot")
	require.False(t, pots[0].Eligible[2])
	require.True(t, pots[0].Eligible[0])
	require.True(t, pots[0].Eligible[1])
}

// Tie splits use integer division; the odd chip goes to the winner closest
// to the left of the dealer.
func TestDistributeSplitRemainder(t *testing.T) {
	pot := &SidePot{Amount: 25, Eligible: map[int]bool{1: true, 2: true}}

	hand, err := RankHand(cards(t, "Ah", "Kd", "9c", "5s", "2h"))
	require.NoError(t, err)
	sameHand, err := RankHand(cards(t, "As", "Kh", "9d", "5c", "2d"))
	require.NoError(t, err)
	ranked := map[int]Rank{1: hand, 2: sameHand}

	ledger := NewLedger()
	winnings := ledger.Distribute([]*SidePot{pot}, ranked, 0, []int{0, 1, 2})

	require.Equal(t, int64(13), winnings[1], "seat 1 is left of the dealer and takes the odd chip")
	require.Equal(t, int64(12), winnings[2])

	// With the dealer at seat 1, seat 2 is now closest left.
	winnings = ledger.Distribute([]*SidePot{pot}, ranked, 1, []int{0, 1, 2})
	require.Equal(t, int64(12), winnings[1])
	require.Equal(t, int64(13), winnings[2])
}

func TestApplyRake(t *testing.T) {
	cfg := RakeConfig{Enabled: true, PercentBps: 500, CapBigBlinds: 3, BigBlind: 100}

	ledger := NewLedger()
	require.Equal(t, int64(50), ledger.ApplyRake(cfg, 1000, 2), "5 percent of 1000")
	require.Equal(t, int64(300), ledger.ApplyRake(cfg, 100000, 3), "capped at 3 big blinds")
	require.Equal(t, int64(350), ledger.RakeTotal())

	require.Zero(t, ledger.ApplyRake(cfg, 1000, 1), "no rake heads-down")
	require.Zero(t, ledger.ApplyRake(RakeConfig{}, 1000, 2), "no rake when disabled")
}

func TestReturnUncalledBet(t *testing.T) {
	ledger := NewLedger()
	ledger.Contribute(0, 100)
	ledger.Contribute(1, 40)

	balance := int64(500)
	seat, amount, ok := ledger.ReturnUncalledBet(map[int]*int64{0: &balance})
	require.True(t, ok)
	require.Equal(t, 0, seat)
	require.Equal(t, int64(60), amount)
	require.Equal(t, int64(560), balance)
	require.Equal(t, int64(40), ledger.CurrentBet(0))

	// Once matched, nothing more to return.
	_, _, ok = ledger.ReturnUncalledBet(nil)
	require.False(t, ok)
}

func TestCloseRoundAcrossStreets(t *testing.T) {
	players := testPlayers(2, 1000)
	ledger := NewLedger()

	ledger.Contribute(0, 50)
	ledger.Contribute(1, 50)
	ledger.CloseRound(players)
	require.Equal(t, int64(100), ledger.ConfirmedPot())

	ledger.Contribute(0, 200)
	ledger.Contribute(1, 200)
	ledger.CloseRound(players)
	require.Equal(t, int64(500), ledger.ConfirmedPot())
	require.Zero(t, ledger.UncommittedRoundTotal())
}

// Money conservation over a complete hand: chips only move between player
// balances and the pot, and every chip bet comes back out at showdown (rake
// disabled here; TestRakeConservation covers the raked variant).
func TestMoneyConservation(t *testing.T) {
	table := newTestTable(t, TableConfig{
		GameType:   NoLimit(2 * coin),
		Seats:      3,
		SmallBlind: coin,
		BigBlind:   2 * coin,
	})
	addPlayers(t, table, 3, 100*coin)

	require.NoError(t, table.StartBettingRound(context.Background(), []byte{8, 6, 7, 5, 3}))

	require.NoError(t, table.Bet("p0", Called()))
	require.NoError(t, table.Bet("p1", Called()))
	require.NoError(t, table.Check("p2"))
	for stage := 0; stage < 3; stage++ {
		require.NoError(t, table.Check("p1"))
		require.NoError(t, table.Check("p2"))
		require.NoError(t, table.Check("p0"))
	}

	ps := table.GetPublicState()
	require.Equal(t, StageShowdown, ps.Stage)

	var total int64
	for _, s := range ps.Seats {
		total += s.Balance
	}
	require.Equal(t, 300*coin, total, "no chips created or destroyed")
}

func TestRakeConservation(t *testing.T) {
	table := newTestTable(t, TableConfig{
		GameType:   NoLimit(2 * coin),
		Seats:      2,
		EnableRake: true,
		Rake:       RakeConfig{Enabled: true, PercentBps: 500, CapBigBlinds: 3, BigBlind: 2 * coin},
		SmallBlind: coin,
		BigBlind:   2 * coin,
	})
	addPlayers(t, table, 2, 100*coin)

	require.NoError(t, table.StartBettingRound(context.Background(), []byte{4, 4, 4}))
	require.NoError(t, table.Bet("p0", Called()))
	require.NoError(t, table.Check("p1"))
	for stage := 0; stage < 3; stage++ {
		require.NoError(t, table.Check("p1"))
		require.NoError(t, table.Check("p0"))
	}

	ps := table.GetPublicState()
	var total int64
	for _, s := range ps.Seats {
		total += s.Balance
	}
	require.Positive(t, ps.RakeTotal)
	require.Equal(t, 200*coin, total+ps.RakeTotal, "deposits minus withdrawals equals the rake delta")
}
