package homoglyph

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thvl3/stegolab/pkg/codec"
	"github.com/thvl3/stegolab/pkg/stegerr"
)

const cover = "The quick brown fox jumps over the lazy dog. ACME Corp ships XYZ widgets to Tacoma, Kansas, and Hawaii each week."

func TestTable_IsBijective(t *testing.T) {
	table := Table()
	require.Len(t, table, 22)

	seen := make(map[rune]bool)
	for i, p := range table {
		assert.False(t, seen[p.Glyph], "glyph %U repeated", p.Glyph)
		seen[p.Glyph] = true
		assert.NotEqual(t, p.Plain, p.Glyph)
		if i > 0 {
			assert.Less(t, table[i-1].Plain, p.Plain)
		}
	}
	assert.Equal(t, Pair{Plain: 'A', Glyph: 'Α'}, table[0])
	assert.Equal(t, "GREEK CAPITAL LETTER ALPHA", table[0].GlyphName())
}

func TestCapacity(t *testing.T) {
	assert.Equal(t, 0, Capacity(""))
	assert.Equal(t, 0, Capacity("fig 1"))
	assert.Equal(t, 3, Capacity("ace"))
	assert.Equal(t, 2, Capacity("аbᴢ"))
}

func TestRoundTrip(t *testing.T) {
	payload := []byte("ok!")
	require.GreaterOrEqual(t, Capacity(cover), 8*len(payload))

	for _, seed := range []int64{0, 42, 19_999_999} {
		t.Run(fmt.Sprint(seed), func(t *testing.T) {
			stego, params, err := Embed(cover, payload, seed)
			require.NoError(t, err)
			assert.Equal(t, codec.HomoglyphParams{Seed: seed, ByteLength: len(payload)}, params)
			assert.Equal(t, utf8.RuneCountInString(cover), utf8.RuneCountInString(stego))
			assert.Equal(t, Capacity(cover), Capacity(stego))

			got, err := Extract(stego, params.Seed, params.ByteLength)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}
}

func TestEmbed_Reembed(t *testing.T) {
	first, _, err := Embed(cover, []byte{0xFF, 0xFF}, 7)
	require.NoError(t, err)

	second, params, err := Embed(first, []byte{0x00, 0x01}, 7)
	require.NoError(t, err)

	got, err := Extract(second, params.Seed, params.ByteLength)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x01}, got)
}

func TestEmbed_CapacityExceeded(t *testing.T) {
	_, _, err := Embed("a cat", []byte{1}, 1)
	assert.ErrorIs(t, err, stegerr.ErrCapacityExceeded)
}

func TestEmbed_RejectsInvalidUTF8(t *testing.T) {
	_, _, err := Embed("Hello \xff world", []byte{0}, 1)
	assert.ErrorIs(t, err, stegerr.ErrInvalidParams)
}

func TestExtract_PlainTextReadsZeros(t *testing.T) {
	got, err := Extract(cover, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0}, got)
}

func TestExtract_Underrun(t *testing.T) {
	got, err := Extract(strings.Repeat("a", 4), 3, 1)
	assert.ErrorIs(t, err, stegerr.ErrUnderrun)
	assert.Equal(t, []byte{0}, got)

	_, err = Extract("", 3, 1)
	assert.ErrorIs(t, err, stegerr.ErrUnderrun)
}

func TestNewSeed(t *testing.T) {
	for i := 0; i < 20; i++ {
		s, err := NewSeed()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, s, int64(0))
		assert.Less(t, s, int64(seedLimit))
	}
}
