// Package wallet defines the engine's money-movement capability:
// deposit/withdraw, idempotent on a caller-supplied transaction id. The
// engine never touches a wallet directly; it calls out through this
// interface at showdown, buy-in, and cash-out boundaries only.
package wallet

import (
	"context"
	"fmt"
	"sync"

	"github.com/decred/dcrd/dcrutil/v4"
)

// Ledger is the engine-facing wallet capability.
type Ledger interface {
	Deposit(ctx context.Context, playerID string, amount int64, txID string) error
	Withdraw(ctx context.Context, playerID string, amount int64, txID string) error
	Balance(playerID string) int64
}

// MemLedger is an in-memory reference implementation for tests and the
// CLI. Seen transaction ids are remembered so a replayed deposit or
// withdrawal is a no-op, matching the idempotency contract production
// wallets must honor.
type MemLedger struct {
	mu       sync.Mutex
	balances map[string]int64
	seenTx   map[string]bool
}

func NewMemLedger() *MemLedger {
	return &MemLedger{
		balances: make(map[string]int64),
		seenTx:   make(map[string]bool),
	}
}

func (m *MemLedger) Deposit(ctx context.Context, playerID string, amount int64, txID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seenTx[txID] {
		return nil
	}
	m.balances[playerID] += amount
	m.seenTx[txID] = true
	return nil
}

func (m *MemLedger) Withdraw(ctx context.Context, playerID string, amount int64, txID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seenTx[txID] {
		return nil
	}
	if m.balances[playerID] < amount {
		return fmt.Errorf("wallet: insufficient funds for player %s", playerID)
	}
	m.balances[playerID] -= amount
	m.seenTx[txID] = true
	return nil
}

func (m *MemLedger) Balance(playerID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[playerID]
}

// FormatAmount renders a chip amount (10^-8 units) for human display. Chip
// units line up exactly with DCR atoms-per-coin, so the conversion is
// exact, not approximate. This is presentation only; no engine math ever
// goes through a float.
func FormatAmount(chips int64) string {
	return dcrutil.Amount(chips).String()
}
