// Package oracle defines the randomness-oracle capability: a source of
// cryptographically-strong bytes the table engine seeds its shuffle from,
// kept external so the engine itself never touches a CSPRNG directly and
// can be driven by a replayable fixture in tests.
package oracle

import (
	"context"
	"crypto/rand"
	"fmt"
)

// Source is the engine-facing randomness capability. A production
// deployment backs this with a VRF or similar publicly-verifiable source;
// CryptoSource below stands in for it.
type Source interface {
	FetchRandomBytes(ctx context.Context) ([]byte, error)
}

// CryptoSource draws from crypto/rand: equivalent unpredictability without
// requiring a blockchain.
type CryptoSource struct {
	size int
}

// NewCryptoSource returns a Source producing size bytes per call; size must
// be at least 32 to seed the full ChaCha20 key.
func NewCryptoSource(size int) *CryptoSource {
	if size < 32 {
		size = 32
	}
	return &CryptoSource{size: size}
}

func (c *CryptoSource) FetchRandomBytes(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf := make([]byte, c.size)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("oracle: %w", err)
	}
	return buf, nil
}
