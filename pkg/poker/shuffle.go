package poker

import "golang.org/x/crypto/chacha20"

// ShuffleSource is a deterministic byte-stream PRNG used only to drive the
// Fisher-Yates shuffle in deck.go. It is never used to encrypt anything;
// ChaCha20 is keyed here purely for its property of being a fast,
// cryptographically-strong, reproducible stream — the same seed bytes must
// produce the same stream on any implementation so an auditor can replay a
// shuffle from the logged RngMetadata.RawRandomBytes.
type ShuffleSource struct {
	cipher *chacha20.Cipher
}

// NewShuffleSource keys a ChaCha20 stream from up to 32 bytes of seedBytes,
// zero-padding any remainder, with a zero nonce.
func NewShuffleSource(seedBytes []byte) *ShuffleSource {
	var key [chacha20.KeySize]byte
	copy(key[:], seedBytes)

	cipher, err := chacha20.NewUnauthenticatedCipher(key[:], make([]byte, chacha20.NonceSize))
	if err != nil {
		// chacha20.NewUnauthenticatedCipher only fails on a wrong-sized
		// key/nonce, which cannot happen given the fixed-size arrays above.
		panic("poker: chacha20 cipher construction failed: " + err.Error())
	}
	return &ShuffleSource{cipher: cipher}
}

// nextByte draws one byte from the keystream.
func (s *ShuffleSource) nextByte() byte {
	var in, out [1]byte
	s.cipher.XORKeyStream(out[:], in[:])
	return out[0]
}

// unbiasedIndex draws a uniform index in [0, upper) using rejection sampling
// over a single PRNG byte: reject any byte b >= 256 - (256 mod upper),
// otherwise return b mod upper. This eliminates modulo bias, a mandatory
// property for verifiable fairness.
func (s *ShuffleSource) unbiasedIndex(upper int) int {
	if upper <= 0 {
		panic("poker: unbiasedIndex requires upper > 0")
	}
	if upper > 256 {
		panic("poker: unbiasedIndex only supports upper <= 256")
	}
	limit := 256 - (256 % upper)
	for {
		b := int(s.nextByte())
		if b < limit {
			return b % upper
		}
	}
}

// shuffle performs an in-place Fisher-Yates shuffle of cards using s as the
// entropy source.
func shuffle(cards []Card, s *ShuffleSource) {
	n := len(cards)
	for i := 0; i < n-1; i++ {
		j := s.unbiasedIndex(n - i)
		cards[i], cards[i+j] = cards[i+j], cards[i]
	}
}
