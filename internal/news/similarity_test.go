package news

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"  Gold Rallies!  ", "gold rallies"},
		{"Fed's   rate\t\ndecision, today", "feds rate decision today"},
		{"U.S. CPI: 3.2% (y/y)", "us cpi 32 yy"},
		{"snake_case stays", "snake_case stays"},
		{"Gold\u00a0hits record", "gold hits record"},
		{"Gold\vhits\u2009record\u3000high", "gold hits record high"},
		{"\uFEFFFed\u202fminutes", "fed minutes"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Normalize(c.in), "Normalize(%q)", c.in)
	}
}

func TestSimilarity_NonBreakingSpace(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Gold\u00a0hits record high", "Gold hits record high"))
}

func TestSimilarity_Reflexive(t *testing.T) {
	for _, s := range []string{"", "   ", "Gold hits record high", "!!!", "a a a"} {
		assert.Equal(t, 1.0, Similarity(s, s), "Similarity(%q, %q)", s, s)
	}
}

func TestSimilarity_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"Gold hits record high", "Gold prices hit a record"},
		{"Fed holds rates steady", "Treasury yields climb"},
		{"", "inflation cools"},
		{"Dollar slides as CPI cools", "CPI cools, dollar slides"},
	}
	for _, p := range pairs {
		assert.Equal(t, Similarity(p[0], p[1]), Similarity(p[1], p[0]), "pair %q", p)
	}
}

func TestSimilarity_Values(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Gold Hits Record!", "gold hits record"))
	assert.Equal(t, 0.0, Similarity("", "gold"))
	assert.Equal(t, 0.0, Similarity("gold rallies", "bonds slump"))
	// 2 shared of 3+3 words
	assert.InDelta(t, 4.0/6.0, Similarity("gold hits high", "gold hits low"), 1e-9)
}

func TestSimilarity_RepeatedWordsUseRawCounts(t *testing.T) {
	// Every occurrence in the first argument counts, so repeats are not
	// symmetric: 2 matches / 5 words versus 1 match / 5 words.
	assert.InDelta(t, 4.0/5.0, Similarity("gold gold up", "gold down"), 1e-9)
	assert.InDelta(t, 2.0/5.0, Similarity("gold down", "gold gold up"), 1e-9)
}
