package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/pkg/errors"
)

const (
	ServerSeedBytes = 32
	ClientSeedBytes = 16

	// HashIterations is part of the published fairness algorithm: the
	// commitment is SHA-256 applied this many times to the hex string.
	HashIterations = 1000
)

// SeedGenerator draws seed material from a cryptographically secure source.
type SeedGenerator struct {
	source io.Reader
}

// NewSeedGenerator returns a generator reading from source, or from
// crypto/rand when source is nil.
func NewSeedGenerator(source io.Reader) *SeedGenerator {
	if source == nil {
		source = rand.Reader
	}
	return &SeedGenerator{source: source}
}

func (g *SeedGenerator) NewServerSeed() (string, error) {
	return g.randomHex(ServerSeedBytes)
}

func (g *SeedGenerator) NewClientSeed() (string, error) {
	return g.randomHex(ClientSeedBytes)
}

func (g *SeedGenerator) randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(g.source, buf); err != nil {
		return "", errors.Wrapf(ErrEntropyUnavailable, "read %d random bytes: %v", n, err)
	}
	return hex.EncodeToString(buf), nil
}

// HashSeed computes the published commitment for seed.
func HashSeed(seed string) string {
	hash := seed
	for i := 0; i < HashIterations; i++ {
		sum := sha256.Sum256([]byte(hash))
		hash = hex.EncodeToString(sum[:])
	}
	return hash
}
