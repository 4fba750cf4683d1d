package poker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/decred/slog"
	"github.com/stretchr/testify/require"

	"github.com/foldline/pokercore/internal/tabletimer"
	"github.com/foldline/pokercore/internal/wallet"
	"github.com/foldline/pokercore/pkg/poker/tableerr"
)

// createTestLogger creates a simple logger for testing.
func createTestLogger() slog.Logger {
	backend := slog.NewBackend(os.Stderr)
	log := backend.Logger("test")
	log.SetLevel(slog.LevelError) // Reduce noise in tests
	return log
}

func newTestTable(t *testing.T, cfg TableConfig) *Table {
	t.Helper()
	table, err := NewTable("test-table", cfg, TableDeps{Log: createTestLogger()})
	require.NoError(t, err)
	return table
}

// addPlayers seats n players named p0..p(n-1) at seats 0..n-1.
func addPlayers(t *testing.T, table *Table, n int, balance int64) {
	t.Helper()
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("p%d", i)
		require.NoError(t, table.AddUser(NewPlayer(id, id, balance), i, false))
	}
}

func TestNewTableValidatesConfig(t *testing.T) {
	_, err := NewTable("t", TableConfig{Seats: 1, SmallBlind: 1, BigBlind: 2}, TableDeps{})
	require.Error(t, err)

	_, err = NewTable("t", TableConfig{Seats: 11, SmallBlind: 1, BigBlind: 2}, TableDeps{})
	require.Error(t, err)

	_, err = NewTable("t", TableConfig{Seats: 6, SmallBlind: 2, BigBlind: 2}, TableDeps{})
	require.Error(t, err)

	_, err = NewTable("t", TableConfig{Seats: 6, SmallBlind: 1, BigBlind: 2}, TableDeps{})
	require.NoError(t, err)
}

func TestAddUserSeatTaken(t *testing.T) {
	table := newTestTable(t, TableConfig{GameType: NoLimit(2), Seats: 2, SmallBlind: 1, BigBlind: 2})

	require.NoError(t, table.AddUser(NewPlayer("a", "a", 100), 0, false))
	err := table.AddUser(NewPlayer("b", "b", 100), 0, false)
	require.Error(t, err)
	require.True(t, errors.Is(err, tableerr.ErrSeatTaken))

	err = table.AddUser(NewPlayer("c", "c", 100), 5, false)
	require.Error(t, err, "seat index out of range")
}

func TestStartRequiresTwoPlayers(t *testing.T) {
	table := newTestTable(t, TableConfig{GameType: NoLimit(2), Seats: 6, SmallBlind: 1, BigBlind: 2})
	addPlayers(t, table, 1, 100)

	err := table.StartBettingRound(context.Background(), []byte{1})
	require.Error(t, err)
}

func TestStartWithoutRandomnessOrOracle(t *testing.T) {
	table := newTestTable(t, TableConfig{GameType: NoLimit(2), Seats: 2, SmallBlind: 1, BigBlind: 2})
	addPlayers(t, table, 2, 100)

	err := table.StartBettingRound(context.Background(), nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, tableerr.ErrOracleUnavailable))
}

// A full heads-up hand checked down to showdown: stages advance in order,
// hole cards are dealt per game type, and the winner takes the 4-blind pot.
func TestFullHandToShowdown(t *testing.T) {
	table := newTestTable(t, TableConfig{
		GameType:   NoLimit(2 * coin),
		Seats:      2,
		SmallBlind: coin,
		BigBlind:   2 * coin,
	})
	addPlayers(t, table, 2, 100*coin)

	require.NoError(t, table.StartBettingRound(context.Background(), []byte{3, 1, 4, 1, 5}))

	ps := table.GetPublicState()
	require.Equal(t, StageOpening, ps.Stage)
	require.Equal(t, int64(1), ps.RoundTicker)
	require.Equal(t, 3*coin, ps.Pot, "blinds are in the pot")
	require.Equal(t, 0, ps.DealerSeat)
	require.Equal(t, 0, ps.CurrentSeat, "heads-up, the dealer acts first pre-flop")

	// Pre-flop: dealer completes the small blind, big blind checks.
	require.NoError(t, table.Bet("p0", Called()))
	require.NoError(t, table.Check("p1"))
	require.Equal(t, StageFlop, table.GetPublicState().Stage)
	require.Len(t, table.GetPublicState().Community, 3)

	require.NoError(t, table.Check("p1"))
	require.NoError(t, table.Check("p0"))
	require.Equal(t, StageTurn, table.GetPublicState().Stage)
	require.Len(t, table.GetPublicState().Community, 4)

	require.NoError(t, table.Check("p1"))
	require.NoError(t, table.Check("p0"))
	require.Equal(t, StageRiver, table.GetPublicState().Stage)
	require.Len(t, table.GetPublicState().Community, 5)

	require.NoError(t, table.Check("p1"))
	require.NoError(t, table.Check("p0"))

	ps = table.GetPublicState()
	require.Equal(t, StageShowdown, ps.Stage)
	require.Equal(t, -1, ps.CurrentSeat)

	var total, winners int64
	for _, s := range ps.Seats {
		total += s.Balance
		if s.Balance > 100*coin {
			winners++
		}
	}
	require.Equal(t, 200*coin, total)
	require.LessOrEqual(t, winners, int64(1))
}

func TestEarlyFoldEndsHandUncontested(t *testing.T) {
	table := newTestTable(t, TableConfig{
		GameType:   NoLimit(2 * coin),
		Seats:      2,
		SmallBlind: coin,
		BigBlind:   2 * coin,
	})
	addPlayers(t, table, 2, 100*coin)

	require.NoError(t, table.StartBettingRound(context.Background(), []byte{11, 12}))
	require.NoError(t, table.Fold("p0"))

	ps := table.GetPublicState()
	require.Equal(t, StageShowdown, ps.Stage)
	require.Empty(t, ps.Community, "an uncontested hand never deals community cards")

	var p0, p1 int64
	for _, s := range ps.Seats {
		if s.PlayerID == "p0" {
			p0 = s.Balance
		} else {
			p1 = s.Balance
		}
	}
	require.Equal(t, 99*coin, p0, "p0 loses the small blind")
	require.Equal(t, 101*coin, p1, "p1 collects the whole pot")
}

func TestOutOfTurnAndWrongStageRejected(t *testing.T) {
	table := newTestTable(t, TableConfig{
		GameType:   NoLimit(2 * coin),
		Seats:      3,
		SmallBlind: coin,
		BigBlind:   2 * coin,
	})
	addPlayers(t, table, 3, 100*coin)

	err := table.Check("p0")
	require.True(t, errors.Is(err, tableerr.ErrActionNotAllowedStage), "no hand in progress")

	require.NoError(t, table.StartBettingRound(context.Background(), []byte{2, 7}))

	err = table.Fold("p1")
	require.True(t, errors.Is(err, tableerr.ErrNotPlayersTurn))

	err = table.Bet("nobody", Called())
	require.True(t, errors.Is(err, tableerr.ErrPlayerNotFound))

	err = table.Check("p0")
	require.True(t, errors.Is(err, tableerr.ErrActionNotAllowedStage), "cannot check facing the big blind")
}

func TestRoundTickerStrictlyIncreases(t *testing.T) {
	table := newTestTable(t, TableConfig{
		GameType:   NoLimit(2 * coin),
		Seats:      2,
		SmallBlind: coin,
		BigBlind:   2 * coin,
	})
	addPlayers(t, table, 2, 100*coin)

	for round := int64(1); round <= 3; round++ {
		require.NoError(t, table.StartBettingRound(context.Background(), []byte{byte(round)}))
		require.Equal(t, round, table.GetPublicState().RoundTicker)

		ps := table.GetPublicState()
		require.NoError(t, table.Fold(ps.Seats[ps.CurrentSeat].PlayerID))
	}

	history := table.GetRngHistory(1, 3)
	require.Len(t, history, 3)
}

func TestStartRejectedMidHand(t *testing.T) {
	table := newTestTable(t, TableConfig{
		GameType:   NoLimit(2 * coin),
		Seats:      2,
		SmallBlind: coin,
		BigBlind:   2 * coin,
	})
	addPlayers(t, table, 2, 100*coin)

	require.NoError(t, table.StartBettingRound(context.Background(), []byte{1}))
	err := table.StartBettingRound(context.Background(), []byte{2})
	require.Error(t, err)
}

func TestDealerRotatesBetweenRounds(t *testing.T) {
	table := newTestTable(t, TableConfig{
		GameType:   NoLimit(2 * coin),
		Seats:      3,
		SmallBlind: coin,
		BigBlind:   2 * coin,
	})
	addPlayers(t, table, 3, 100*coin)

	var dealers []int
	for round := 0; round < 3; round++ {
		require.NoError(t, table.StartBettingRound(context.Background(), []byte{byte(round + 1)}))
		ps := table.GetPublicState()
		dealers = append(dealers, ps.DealerSeat)

		// Fold everyone but one to end the hand quickly.
		for len(table.inHandSeatOrder(0)) > 1 {
			ps = table.GetPublicState()
			require.NoError(t, table.Fold(ps.Seats[ps.CurrentSeat].PlayerID))
		}
	}
	require.Equal(t, []int{0, 1, 2}, dealers)
}

func TestQueueAppliedBetweenRounds(t *testing.T) {
	table := newTestTable(t, TableConfig{
		GameType:   NoLimit(2 * coin),
		Seats:      3,
		SmallBlind: coin,
		BigBlind:   2 * coin,
	})
	addPlayers(t, table, 3, 100*coin)

	require.NoError(t, table.StartBettingRound(context.Background(), []byte{1}))

	// Mid-hand requests queue up; nothing changes until the round ends.
	require.NoError(t, table.EnqueueSeatChange(SittingOut("p2")))
	require.NoError(t, table.EnqueueSeatChange(Deposit("p1", 50*coin)))
	require.NoError(t, table.EnqueueSeatChange(UpdateBlinds(2*coin, 4*coin)))

	ps := table.GetPublicState()
	for _, s := range ps.Seats {
		if s.PlayerID == "p2" {
			require.NotEqual(t, ActionSittingOut, s.Action)
		}
	}

	for len(table.inHandSeatOrder(0)) > 1 {
		ps = table.GetPublicState()
		require.NoError(t, table.Fold(ps.Seats[ps.CurrentSeat].PlayerID))
	}

	require.NoError(t, table.StartBettingRound(context.Background(), []byte{2}))
	ps = table.GetPublicState()
	require.Equal(t, 6*coin, ps.Pot, "new blinds 2.0/4.0 are in effect")
	for _, s := range ps.Seats {
		if s.PlayerID == "p2" {
			require.Equal(t, ActionSittingOut, s.Action)
			require.Zero(t, s.Bet, "a sitting-out player posts nothing")
		}
	}
}

func TestQueueRemoveUserFreesSeat(t *testing.T) {
	table := newTestTable(t, TableConfig{
		GameType:   NoLimit(2 * coin),
		Seats:      3,
		SmallBlind: coin,
		BigBlind:   2 * coin,
	})
	addPlayers(t, table, 3, 100*coin)

	require.NoError(t, table.EnqueueSeatChange(RemoveUser("p2")))
	require.NoError(t, table.StartBettingRound(context.Background(), []byte{1}))

	ps := table.GetPublicState()
	require.False(t, ps.Seats[2].Occupied)

	// The freed seat can be reused immediately.
	require.NoError(t, table.AddUser(NewPlayer("p3", "p3", 100*coin), 2, false))
}

func TestPLO4DealsFourHoleCards(t *testing.T) {
	table := newTestTable(t, TableConfig{
		GameType:   PotLimitOmaha4(2 * coin),
		Seats:      2,
		SmallBlind: coin,
		BigBlind:   2 * coin,
	})
	addPlayers(t, table, 2, 100*coin)

	require.NoError(t, table.StartBettingRound(context.Background(), []byte{1, 2, 3}))

	for _, s := range table.seats {
		require.Len(t, s.Player.Hand, 4)
	}

	// Drive to showdown; Omaha evaluation must produce a ranked hand for
	// every live player.
	require.NoError(t, table.Bet("p0", Called()))
	require.NoError(t, table.Check("p1"))
	for stage := 0; stage < 3; stage++ {
		require.NoError(t, table.Check("p1"))
		require.NoError(t, table.Check("p0"))
	}
	require.Len(t, table.rankedHands, 2)
}

func TestTurnTimerAutoActs(t *testing.T) {
	mock := quartz.NewMock(t)

	var table *Table
	scheduler := tabletimer.NewQuartzScheduler(mock, func(tableID, callbackID string) {
		_ = table.TimerFired(callbackID)
	})

	cfg := TableConfig{
		GameType:   NoLimit(2 * coin),
		Seats:      2,
		SmallBlind: coin,
		BigBlind:   2 * coin,
		TurnTimer:  10 * time.Second,
	}
	var err error
	table, err = NewTable("timer-table", cfg, TableDeps{Timer: scheduler, Log: createTestLogger()})
	require.NoError(t, err)
	addPlayers(t, table, 2, 100*coin)

	require.NoError(t, table.StartBettingRound(context.Background(), []byte{1}))
	require.Equal(t, 0, table.GetPublicState().CurrentSeat)

	// The dealer faces the big blind and lets the clock run out: auto-fold.
	mock.Advance(10 * time.Second).MustWait(context.Background())

	ps := table.GetPublicState()
	require.Equal(t, StageShowdown, ps.Stage)
	for _, s := range ps.Seats {
		if s.PlayerID == "p0" {
			require.Equal(t, ActionFolded, s.Action)
		}
	}
}

func TestTurnTimerAutoChecksWhenLegal(t *testing.T) {
	mock := quartz.NewMock(t)

	var table *Table
	scheduler := tabletimer.NewQuartzScheduler(mock, func(tableID, callbackID string) {
		_ = table.TimerFired(callbackID)
	})

	cfg := TableConfig{
		GameType:   NoLimit(2 * coin),
		Seats:      2,
		SmallBlind: coin,
		BigBlind:   2 * coin,
		TurnTimer:  10 * time.Second,
	}
	var err error
	table, err = NewTable("timer-table", cfg, TableDeps{Timer: scheduler, Log: createTestLogger()})
	require.NoError(t, err)
	addPlayers(t, table, 2, 100*coin)

	require.NoError(t, table.StartBettingRound(context.Background(), []byte{1}))
	require.NoError(t, table.Bet("p0", Called()))

	// The big blind may check, so a timeout checks rather than folds.
	mock.Advance(10 * time.Second).MustWait(context.Background())

	ps := table.GetPublicState()
	require.Equal(t, StageFlop, ps.Stage)
	require.Equal(t, int64(1), ps.RoundTicker)
}

// Real-currency tables mirror showdown payouts into the wallet, idempotent
// on the round-scoped transaction id.
func TestShowdownSettlesThroughWallet(t *testing.T) {
	ledger := wallet.NewMemLedger()
	cfg := TableConfig{
		GameType:   NoLimit(2 * coin),
		Seats:      2,
		Currency:   CurrencyReal,
		SmallBlind: coin,
		BigBlind:   2 * coin,
	}
	table, err := NewTable("real-table", cfg, TableDeps{Wallet: ledger, Log: createTestLogger()})
	require.NoError(t, err)
	addPlayers(t, table, 2, 100*coin)

	require.NoError(t, table.StartBettingRound(context.Background(), []byte{5}))
	require.NoError(t, table.Fold("p0"))

	require.Equal(t, 3*coin, ledger.Balance("p1"), "the uncontested pot is mirrored to the wallet")
	require.Zero(t, ledger.Balance("p0"))
}

// Once every live player is all-in, the board runs out to showdown without
// further input, and the short stack can win only the pot it covered.
func TestAllInHandRunsOutToShowdown(t *testing.T) {
	table := newTestTable(t, TableConfig{
		GameType:   NoLimit(2 * coin),
		Seats:      3,
		SmallBlind: coin,
		BigBlind:   2 * coin,
	})
	require.NoError(t, table.AddUser(NewPlayer("p0", "p0", 10*coin), 0, false))
	require.NoError(t, table.AddUser(NewPlayer("p1", "p1", 30*coin), 1, false))
	require.NoError(t, table.AddUser(NewPlayer("p2", "p2", 30*coin), 2, false))

	require.NoError(t, table.StartBettingRound(context.Background(), []byte{13, 13}))

	require.NoError(t, table.Bet("p0", AllIn()))
	require.NoError(t, table.Bet("p1", AllIn()))
	require.NoError(t, table.Bet("p2", AllIn()))

	ps := table.GetPublicState()
	require.Equal(t, StageShowdown, ps.Stage, "an all-in hand runs out the board automatically")
	require.Len(t, ps.Community, 5)

	var total int64
	for _, s := range ps.Seats {
		total += s.Balance
	}
	require.Equal(t, 70*coin, total)

	// The short stack covered only 10 from each player; if it won anything,
	// its payout is capped by that main pot.
	for _, s := range ps.Seats {
		if s.PlayerID == "p0" {
			require.LessOrEqual(t, s.Balance, 30*coin)
		}
	}
}

// Antes are dead money: they swell the pot but never reduce what a player
// owes to call the big blind.
func TestAntesAreDeadMoney(t *testing.T) {
	table := newTestTable(t, TableConfig{
		GameType:   NoLimit(2 * coin),
		Seats:      3,
		SmallBlind: coin,
		BigBlind:   2 * coin,
		Ante:       coin,
	})
	addPlayers(t, table, 3, 100*coin)

	require.NoError(t, table.StartBettingRound(context.Background(), []byte{21, 22}))

	ps := table.GetPublicState()
	require.Equal(t, 6*coin, ps.Pot, "three antes plus both blinds")
	for _, s := range ps.Seats {
		switch s.PlayerID {
		case "p0":
			require.Zero(t, s.Bet, "an ante does not count toward the bet to match")
		case "p1":
			require.Equal(t, coin, s.Bet)
		case "p2":
			require.Equal(t, 2*coin, s.Bet)
		}
	}

	// UTG must put in the full big blind to call, on top of the ante.
	require.NoError(t, table.Bet("p0", Called()))
	ps = table.GetPublicState()
	require.Equal(t, 8*coin, ps.Pot)
	for _, s := range ps.Seats {
		if s.PlayerID == "p0" {
			require.Equal(t, 97*coin, s.Balance, "ante plus a full big-blind call")
			require.Equal(t, 2*coin, s.Bet)
		}
	}

	// The big blind still has the option: the round is not closed by the
	// ante bookkeeping.
	require.NoError(t, table.Bet("p1", Called()))
	require.NoError(t, table.Check("p2"))
	require.Equal(t, StageFlop, table.GetPublicState().Stage)
}

func TestActionLogRecordsCommands(t *testing.T) {
	table := newTestTable(t, TableConfig{
		GameType:   NoLimit(2 * coin),
		Seats:      2,
		SmallBlind: coin,
		BigBlind:   2 * coin,
	})
	addPlayers(t, table, 2, 100*coin)

	require.NoError(t, table.StartBettingRound(context.Background(), []byte{1}))
	require.NoError(t, table.Fold("p0"))

	ps := table.GetPublicState()
	require.NotEmpty(t, ps.ActionLog)
}
