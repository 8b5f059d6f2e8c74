// Package namegen generates candidate usernames for a configured pattern.
package namegen

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"strings"

	"github.com/tdh8316/rbxsniper/internal/config"
)

const (
	alnum      = "abcdefghijklmnopqrstuvwxyz0123456789"
	letters    = "abcdefghijklmnopqrstuvwxyz"
	digits     = "0123456789"
	consonants = "bcdfghjklmnpqrstvwxyz"
	vowels     = "aeiou"
)

// Generator owns its randomness stream. It is not safe for concurrent use;
// give every worker its own Generator.
type Generator struct {
	rng *rand.Rand
}

// New returns a Generator drawing from src. A nil src is seeded from crypto/rand.
func New(src rand.Source) *Generator {
	if src == nil {
		src = rand.NewPCG(seed(), seed())
	}
	return &Generator{rng: rand.New(src)}
}

// Generate returns one candidate of length cfg.Length using cfg.Method.
func (g *Generator) Generate(cfg config.RunConfig) string {
	n := cfg.Length
	if n <= 0 {
		return ""
	}

	switch cfg.Method {
	case config.MethodPronounceable:
		var b strings.Builder
		b.Grow(n)
		for i := range n {
			if i%2 == 0 {
				b.WriteByte(g.pick(consonants))
			} else {
				b.WriteByte(g.pick(vowels))
			}
		}
		return b.String()

	case config.MethodLettersOnly:
		return g.draw(letters, n)

	case config.MethodLettersUnderline:
		return g.underscored(letters, n)
	case config.MethodNumbersUnderline:
		return g.underscored(digits, n)
	case config.MethodLettersNumbersUnderline:
		return g.underscored(alnum, n)

	default:
		// random, numbers_letters and anything unrecognised.
		return g.draw(alnum, n)
	}
}

// underscored splices exactly one '_' into a draw of n-1 characters,
// never at the first or last position.
func (g *Generator) underscored(chars string, n int) string {
	if n < 3 {
		return g.draw(chars, n)
	}
	base := g.draw(chars, n-1)
	pos := g.rng.IntN(n-2) + 1
	return base[:pos] + "_" + base[pos:]
}

func (g *Generator) draw(chars string, n int) string {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = g.pick(chars)
	}
	return string(buf)
}

func (g *Generator) pick(chars string) byte {
	return chars[g.rng.IntN(len(chars))]
}

func seed() uint64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return rand.Uint64()
	}
	return binary.LittleEndian.Uint64(b[:])
}
