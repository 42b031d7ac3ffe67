package service

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"strings"
)

const (
	// DefaultAlphabet leaves out characters that are easy to misread (0, 1, l, o).
	DefaultAlphabet   = "23456789abcdefghijkmnpqrstuvwxyz"
	DefaultCodeLength = 8
)

// CodeGenerator produces candidate short codes. Uniqueness is not its
// concern; collisions are resolved against the store.
type CodeGenerator interface {
	Generate() string
}

// RandomGenerator draws every position independently and uniformly from its alphabet.
type RandomGenerator struct {
	alphabet string
	length   int
	rng      *rand.Rand
}

// GeneratorOption customises a RandomGenerator.
type GeneratorOption func(*RandomGenerator)

// WithSecureRandom switches to a crypto/rand backed source. Use it when codes
// guard anything that must not be guessable.
func WithSecureRandom() GeneratorOption {
	return func(g *RandomGenerator) { g.rng = rand.New(cryptoSource{}) }
}

// WithSource pins the random source, mostly for deterministic tests.
func WithSource(src rand.Source) GeneratorOption {
	return func(g *RandomGenerator) { g.rng = rand.New(src) }
}

// NewRandomGenerator validates the alphabet and length. By default it uses the
// runtime's shared, non-cryptographic source.
func NewRandomGenerator(alphabet string, length int, opts ...GeneratorOption) (*RandomGenerator, error) {
	if alphabet == "" {
		return nil, fmt.Errorf("code generator: empty alphabet")
	}
	if length <= 0 {
		return nil, fmt.Errorf("code generator: length must be positive, got %d", length)
	}
	for i, r := range alphabet {
		if r > 0x7f {
			return nil, fmt.Errorf("code generator: alphabet must be ASCII, got %q", r)
		}
		if strings.IndexRune(alphabet[i+1:], r) >= 0 {
			return nil, fmt.Errorf("code generator: duplicate symbol %q in alphabet", r)
		}
	}

	g := &RandomGenerator{alphabet: alphabet, length: length}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// MustDefaultGenerator returns the 8-symbol generator over DefaultAlphabet.
func MustDefaultGenerator() *RandomGenerator {
	g, err := NewRandomGenerator(DefaultAlphabet, DefaultCodeLength)
	if err != nil {
		panic(err)
	}
	return g
}

// Generate returns a new code of the configured length.
func (g *RandomGenerator) Generate() string {
	buf := make([]byte, g.length)
	n := len(g.alphabet)
	for i := range buf {
		buf[i] = g.alphabet[g.intN(n)]
	}
	return string(buf)
}

func (g *RandomGenerator) intN(n int) int {
	if g.rng == nil {
		return rand.IntN(n)
	}
	return g.rng.IntN(n)
}

// cryptoSource adapts crypto/rand to math/rand/v2. It is safe for concurrent use.
type cryptoSource struct{}

func (cryptoSource) Uint64() uint64 {
	var b [8]byte
	// crypto/rand.Read never returns an error on supported platforms.
	_, _ = cryptorand.Read(b[:])
	return binary.LittleEndian.Uint64(b[:])
}
