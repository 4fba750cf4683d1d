package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/coder/quartz"
	"github.com/decred/slog"

	"github.com/foldline/pokercore/internal/oracle"
	"github.com/foldline/pokercore/internal/store"
	"github.com/foldline/pokercore/internal/tabletimer"
	"github.com/foldline/pokercore/internal/wallet"
	"github.com/foldline/pokercore/pkg/poker"
)

func main() {
	var (
		dbPath     string
		seats      int
		game       string
		smallBlind int64
		bigBlind   int64
		enableRake bool
		turnTimerS int
		debugLevel string
	)
	flag.StringVar(&dbPath, "db", "", "Path to SQLite database file (created if missing; empty disables persistence)")
	flag.IntVar(&seats, "seats", 6, "Number of seats at the table (2-10)")
	flag.StringVar(&game, "game", "nolimit", "Game type: nolimit, fixedlimit, spreadlimit, potlimit, plo4, plo5")
	flag.Int64Var(&smallBlind, "sb", 50, "Small blind in chip units")
	flag.Int64Var(&bigBlind, "bb", 100, "Big blind in chip units")
	flag.BoolVar(&enableRake, "rake", false, "Enable rake deduction at showdown")
	flag.IntVar(&turnTimerS, "turntimer", 0, "Per-turn timer in seconds (0 disables)")
	flag.StringVar(&debugLevel, "debuglevel", "info", "Logging level: trace, debug, info, warn, error")
	flag.Parse()

	backend := slog.NewBackend(os.Stderr)
	log := backend.Logger("PKER")
	if level, ok := slog.LevelFromString(debugLevel); ok {
		log.SetLevel(level)
	}

	gt, err := parseGameType(game, bigBlind)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad -game: %v\n", err)
		os.Exit(1)
	}

	var db *store.SQLiteStore
	if dbPath != "" {
		db, err = store.Open(dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to init db: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	cfg := poker.TableConfig{
		GameType:   gt,
		Seats:      seats,
		Currency:   poker.CurrencyFake,
		EnableRake: enableRake,
		Rake: poker.RakeConfig{
			Enabled:      enableRake,
			PercentBps:   500,
			CapBigBlinds: 3,
			BigBlind:     bigBlind,
		},
		TurnTimer:  time.Duration(turnTimerS) * time.Second,
		SmallBlind: smallBlind,
		BigBlind:   bigBlind,
	}

	var table *poker.Table
	scheduler := tabletimer.NewQuartzScheduler(quartz.NewReal(), func(tableID, callbackID string) {
		if table == nil {
			return
		}
		if err := table.TimerFired(callbackID); err != nil {
			log.Warnf("timer callback %s: %v", callbackID, err)
		}
	})

	deps := poker.TableDeps{
		Oracle: oracle.NewCryptoSource(32),
		Timer:  scheduler,
		Wallet: wallet.NewMemLedger(),
		Log:    log,
	}
	table, err = poker.NewTable("table-1", cfg, deps)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create table: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("pokerengine ready. Commands: add, start, bet, call, allin, check, fold, showdown, sitout, sitin, state, rng, prov, save, quit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			break
		}
		if err := runCommand(table, db, fields); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

func parseGameType(name string, bb int64) (poker.GameType, error) {
	switch name {
	case "nolimit":
		return poker.NoLimit(bb), nil
	case "fixedlimit":
		return poker.FixedLimit(bb, 2*bb), nil
	case "spreadlimit":
		return poker.SpreadLimit(bb, 10*bb), nil
	case "potlimit":
		return poker.PotLimit(bb), nil
	case "plo4":
		return poker.PotLimitOmaha4(bb), nil
	case "plo5":
		return poker.PotLimitOmaha5(bb), nil
	}
	return poker.GameType{}, fmt.Errorf("unknown game type %q", name)
}

func runCommand(table *poker.Table, db *store.SQLiteStore, fields []string) error {
	switch fields[0] {
	case "add": // add <player> <seat> <chips>
		if len(fields) != 4 {
			return fmt.Errorf("usage: add <player> <seat> <chips>")
		}
		seat, err := strconv.Atoi(fields[2])
		if err != nil {
			return err
		}
		chips, err := strconv.ParseInt(fields[3], 10, 64)
		if err != nil {
			return err
		}
		return table.AddUser(poker.NewPlayer(fields[1], fields[1], chips), seat, false)

	case "start":
		return table.StartBettingRound(context.Background(), nil)

	case "bet": // bet <player> <raise-to total>
		if len(fields) != 3 {
			return fmt.Errorf("usage: bet <player> <raise-to total>")
		}
		amount, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return err
		}
		return table.Bet(fields[1], poker.Raised(amount))

	case "call":
		if len(fields) != 2 {
			return fmt.Errorf("usage: call <player>")
		}
		return table.Bet(fields[1], poker.Called())

	case "allin":
		if len(fields) != 2 {
			return fmt.Errorf("usage: allin <player>")
		}
		return table.Bet(fields[1], poker.AllIn())

	case "check":
		if len(fields) != 2 {
			return fmt.Errorf("usage: check <player>")
		}
		return table.Check(fields[1])

	case "fold":
		if len(fields) != 2 {
			return fmt.Errorf("usage: fold <player>")
		}
		return table.Fold(fields[1])

	case "showdown":
		return table.Showdown()

	case "sitout":
		if len(fields) != 2 {
			return fmt.Errorf("usage: sitout <player>")
		}
		return table.EnqueueSeatChange(poker.SittingOut(fields[1]))

	case "sitin":
		if len(fields) != 2 {
			return fmt.Errorf("usage: sitin <player>")
		}
		return table.EnqueueSeatChange(poker.SittingIn(fields[1]))

	case "state":
		printState(table.GetPublicState())
		return nil

	case "rng": // rng <from round> <to round>
		if len(fields) != 3 {
			return fmt.Errorf("usage: rng <from> <to>")
		}
		from, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return err
		}
		to, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return err
		}
		for _, m := range table.GetRngHistory(from, to) {
			fmt.Printf("round %d: deck_hash=%s raw=%x time_seed=%d\n", m.RoundID, m.DeckHash, m.RawRandomBytes, m.TimeSeed)
		}
		return nil

	case "prov": // prov <round>
		if len(fields) != 2 {
			return fmt.Errorf("usage: prov <round>")
		}
		round, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return err
		}
		for _, r := range table.GetCardProvenance(round) {
			dealtTo := "-"
			if r.DealtTo != nil {
				dealtTo = *r.DealtTo
			}
			stage := "-"
			if r.DealtAtStage != nil {
				stage = r.DealtAtStage.String()
			}
			fmt.Printf("%3d %-4s orig=%2d dealt_to=%-12s stage=%-8s hash=%s\n",
				r.ShuffledPosition, r.Card, r.OriginalPosition, dealtTo, stage, r.CardHash[:16])
		}
		return nil

	case "save":
		if db == nil {
			return fmt.Errorf("no -db configured")
		}
		snap := table.Snapshot()
		version, data, err := poker.EncodeSnapshot(snap)
		if err != nil {
			return err
		}
		if err := db.SaveSnapshot(snap.TableID, version, data); err != nil {
			return err
		}
		fmt.Printf("saved snapshot (%d bytes)\n", len(data))
		return nil
	}
	return fmt.Errorf("unknown command %q", fields[0])
}

func printState(ps poker.PublicState) {
	fmt.Printf("table %s round %d stage=%s pot=%s rake_total=%s\n",
		ps.TableID, ps.RoundTicker, ps.Stage, wallet.FormatAmount(ps.Pot), wallet.FormatAmount(ps.RakeTotal))
	community := make([]string, len(ps.Community))
	for i, c := range ps.Community {
		community[i] = c.String()
	}
	fmt.Printf("community: [%s]\n", strings.Join(community, " "))
	for _, s := range ps.Seats {
		if !s.Occupied {
			fmt.Printf("seat %d: empty\n", s.Index)
			continue
		}
		marks := ""
		if s.IsDealer {
			marks += " (D)"
		}
		if s.IsTurn {
			marks += " *"
		}
		fmt.Printf("seat %d: %s balance=%d bet=%d action=%s%s\n",
			s.Index, s.PlayerID, s.Balance, s.Bet, s.Action, marks)
	}
}
