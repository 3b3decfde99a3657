// Package homoglyph hides bits in text by swapping letters for look-alike Unicode characters.
//
// The visiting order is a seeded permutation of rune positions, so the same seed and text
// walk the same characters on both sides. A homoglyph carries a 1 and the plain letter a 0.
package homoglyph

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sort"
	"unicode/utf8"

	"golang.org/x/text/unicode/runenames"

	"github.com/thvl3/stegolab/pkg/bits"
	"github.com/thvl3/stegolab/pkg/codec"
	"github.com/thvl3/stegolab/pkg/sites"
	"github.com/thvl3/stegolab/pkg/stegerr"
)

// seedLimit bounds seeds drawn by NewSeed
const seedLimit = 20_000_000

// toGlyph maps ASCII letters to their confusable counterparts
var toGlyph = map[rune]rune{
	'A': 'Α', // Greek Alpha
	'B': 'Β', // Greek Beta
	'C': 'С', // Cyrillic Es
	'E': 'Ε', // Greek Epsilon
	'H': 'Η', // Greek Eta
	'K': 'Κ', // Greek Kappa
	'M': 'Μ', // Greek Mu
	'P': 'Ρ', // Greek Rho
	'S': 'Ѕ', // Cyrillic Dze
	'T': 'Τ', // Greek Tau
	'W': 'Ԝ', // Cyrillic We
	'X': 'Χ', // Greek Chi
	'Y': 'ϒ', // Greek Upsilon with hook
	'Z': 'Ζ', // Greek Zeta
	'a': 'а', // Cyrillic a
	'c': 'ϲ', // Greek lunate sigma
	'd': 'ԁ', // Cyrillic Komi de
	'e': 'е', // Cyrillic ie
	'h': 'һ', // Cyrillic shha
	'j': 'ϳ', // Greek yot
	'q': 'ԛ', // Cyrillic qa
	'z': 'ᴢ', // small capital z
}

var toPlain = func() map[rune]rune {
	m := make(map[rune]rune, len(toGlyph))
	for plain, glyph := range toGlyph {
		m[glyph] = plain
	}
	return m
}()

// Pair is one table entry
type Pair struct {
	Plain rune
	Glyph rune
}

// GlyphName returns the Unicode name of the homoglyph
func (p Pair) GlyphName() string {
	return runenames.Name(p.Glyph)
}

// Table returns the substitution pairs ordered by plain letter
func Table() []Pair {
	out := make([]Pair, 0, len(toGlyph))
	for plain, glyph := range toGlyph {
		out = append(out, Pair{Plain: plain, Glyph: glyph})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Plain < out[j].Plain })
	return out
}

func isCarrier(r rune) bool {
	if _, ok := toGlyph[r]; ok {
		return true
	}
	_, ok := toPlain[r]
	return ok
}

// Capacity counts runes that are in the table in either direction
func Capacity(text string) int {
	n := 0
	for _, r := range text {
		if isCarrier(r) {
			n++
		}
	}
	return n
}

// order returns the seeded visiting order over the runes of a text
func order(runes []rune, seed int64) ([]int, error) {
	if len(runes) == 0 {
		return nil, nil
	}
	perm, err := sites.Permutation(uint64(seed), len(runes))
	if err != nil {
		return nil, fmt.Errorf("failed to generate visiting order: %w", err)
	}
	return perm, nil
}

// Embed returns text with payload bits written into carrier runes along the seeded walk
func Embed(text string, payload []byte, seed int64) (string, codec.HomoglyphParams, error) {
	if !utf8.ValidString(text) {
		return "", codec.HomoglyphParams{}, fmt.Errorf("cover text is not valid UTF-8: %w", stegerr.ErrInvalidParams)
	}
	bitSeq := bits.FromBytes(payload)
	if capacity := Capacity(text); capacity < len(bitSeq) {
		return "", codec.HomoglyphParams{}, fmt.Errorf("%d bits into %d carriers: %w", len(bitSeq), capacity, stegerr.ErrCapacityExceeded)
	}

	runes := []rune(text)
	perm, err := order(runes, seed)
	if err != nil {
		return "", codec.HomoglyphParams{}, err
	}

	next := 0
	for _, idx := range perm {
		if next == len(bitSeq) {
			break
		}
		r := runes[idx]
		if !isCarrier(r) {
			continue
		}
		plain := r
		if p, ok := toPlain[r]; ok {
			plain = p
		}
		if bitSeq[next] == 1 {
			runes[idx] = toGlyph[plain]
		} else {
			runes[idx] = plain
		}
		next++
	}

	return string(runes), codec.HomoglyphParams{Seed: seed, ByteLength: len(payload)}, nil
}

// Extract reads byteLength bytes back along the seeded walk. A text with too few carriers
// yields the collected bytes and ErrUnderrun.
func Extract(text string, seed int64, byteLength int) ([]byte, error) {
	if byteLength < 0 {
		return nil, fmt.Errorf("byte length %d: %w", byteLength, stegerr.ErrInvalidParams)
	}

	runes := []rune(text)
	perm, err := order(runes, seed)
	if err != nil {
		return nil, err
	}

	target := byteLength * 8
	w := bits.NewWriter(target)
	for _, idx := range perm {
		if w.Len() == target {
			break
		}
		r := runes[idx]
		if _, ok := toPlain[r]; ok {
			w.WriteBit(1)
		} else if _, ok := toGlyph[r]; ok {
			w.WriteBit(0)
		}
	}

	payload, _ := bits.ToBytes(w.Bits())
	if w.Len() < target {
		return payload, fmt.Errorf("%d of %d bits recovered: %w", w.Len(), target, stegerr.ErrUnderrun)
	}
	return payload, nil
}

// NewSeed draws a fresh seed in [0, 20000000)
func NewSeed() (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(seedLimit))
	if err != nil {
		return 0, fmt.Errorf("failed to draw seed: %w", err)
	}
	return n.Int64(), nil
}
