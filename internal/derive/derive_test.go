package derive_test

import (
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gramgen/internal/derive"
	"gramgen/internal/grammar"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

const exprGrammar = `E -> E + T
E -> E - T
E -> T
T -> T * F
T -> T / F
T -> T % F
T -> F
F -> ( E )
F -> numero
F -> id
`

func mustLoad(t *testing.T, src string) *grammar.Grammar {
	t.Helper()
	g, err := grammar.Load(strings.NewReader(src), nil)
	require.NoError(t, err)
	return g
}

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// scriptedRand replays vals (modulo n) in order.
type scriptedRand struct {
	vals  []int
	calls int
}

func (r *scriptedRand) IntN(n int) int {
	v := r.vals[r.calls%len(r.vals)] % n
	r.calls++
	return v
}

// forbiddenRand fails the test if any random choice is made.
type forbiddenRand struct{ t *testing.T }

func (r forbiddenRand) IntN(n int) int {
	r.t.Helper()
	r.t.Fatalf("unexpected random draw IntN(%d)", n)
	return 0
}

func isNumberIn(tok string, v derive.Vocabulary) bool {
	n, err := strconv.Atoi(tok)
	return err == nil && n >= v.Min && n <= v.Max
}

// ---------------------------------------------------------------------------
// Valid derivation
// ---------------------------------------------------------------------------

func TestDeriveValid_TerminatesNonEmpty(t *testing.T) {
	g := mustLoad(t, exprGrammar)
	for depth := 0; depth <= 8; depth++ {
		for seed := uint64(0); seed < 25; seed++ {
			e := derive.NewEngine(g, seeded(seed))
			s, err := e.DeriveValid(depth)
			require.NoError(t, err, "depth=%d seed=%d", depth, seed)
			assert.NotEmpty(t, strings.Fields(s), "depth=%d seed=%d", depth, seed)
		}
	}
}

func TestDeriveValid_TokenUniverse(t *testing.T) {
	g := mustLoad(t, exprGrammar)
	literal := make(map[string]bool)
	for _, term := range g.Terminals() {
		if term != derive.NumberTerminal && term != derive.IDTerminal {
			literal[term] = true
		}
	}
	ids := make(map[string]bool)
	for _, id := range derive.NormalVocabulary().IDs {
		ids[id] = true
	}

	for seed := uint64(0); seed < 50; seed++ {
		e := derive.NewEngine(g, seeded(seed))
		s, err := e.DeriveValid(5)
		require.NoError(t, err)
		for _, tok := range strings.Fields(s) {
			ok := literal[tok] || ids[tok] || isNumberIn(tok, derive.NormalVocabulary())
			assert.True(t, ok, "unexpected token %q in %q", tok, s)
			assert.False(t, g.IsNonterminal(tok), "nonterminal %q leaked into %q", tok, s)
		}
	}
}

func TestDeriveValid_CutoffChoosesShortest(t *testing.T) {
	// Alternatives have distinct lengths; the shortest is neither first nor last.
	g := mustLoad(t, "S -> a b c\nS -> d\nS -> e f\nS -> g\n")
	e := derive.NewEngine(g, forbiddenRand{t})

	for _, depth := range []int{0, -1} {
		s, err := e.DeriveFrom("S", depth, derive.Converge)
		require.NoError(t, err)
		// "d" and "g" tie at length 1; the first minimum wins.
		assert.Equal(t, "d", s)
	}
}

func TestDeriveValid_ExprExampleAtDepth2(t *testing.T) {
	g := mustLoad(t, "E -> E + T\nE -> T\nT -> numero\n")

	// Always pick the recursive alternative below the cutoff: E at depth 0
	// and 1 expand to E + T, E at depth 2 must close with T.
	rnd := &scriptedRand{vals: []int{0}}
	e := derive.NewEngine(g, rnd)
	s, err := e.DeriveValid(2)
	require.NoError(t, err)

	toks := strings.Fields(s)
	require.Len(t, toks, 5, "got %q", s)
	assert.Equal(t, "+", toks[1])
	assert.Equal(t, "+", toks[3])
	for _, i := range []int{0, 2, 4} {
		assert.True(t, isNumberIn(toks[i], derive.NormalVocabulary()), "token %q", toks[i])
	}

	for seed := uint64(0); seed < 50; seed++ {
		s, err := derive.NewEngine(g, seeded(seed)).DeriveValid(2)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(strings.Fields(s)), 5, "depth 2 derivation %q grew past the cutoff", s)
	}
}

func TestDeriveValid_SeededIsReproducible(t *testing.T) {
	g := mustLoad(t, exprGrammar)
	a, err := derive.NewEngine(g, seeded(42)).DeriveValid(6)
	require.NoError(t, err)
	b, err := derive.NewEngine(g, seeded(42)).DeriveValid(6)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDerive_EmptyAlternativeLeavesNoGaps(t *testing.T) {
	g := mustLoad(t, "S -> a X b\nX ->\n")
	s, err := derive.NewEngine(g, forbiddenRand{t}).DeriveValid(3)
	require.NoError(t, err)
	assert.Equal(t, "a b", s)
}

// ---------------------------------------------------------------------------
// Extreme derivation
// ---------------------------------------------------------------------------

func TestDeriveExtreme_GrowsThenCloses(t *testing.T) {
	g := mustLoad(t, "E -> T\nE -> E + T\nT -> numero\n")
	e := derive.NewEngine(g, seeded(7))

	// E expands to E + T at depths 0 and 1, then closes with T at depth 2.
	s, err := e.DeriveExtreme(2)
	require.NoError(t, err)
	toks := strings.Fields(s)
	require.Len(t, toks, 5, "got %q", s)
	for _, i := range []int{0, 2, 4} {
		assert.True(t, isNumberIn(toks[i], derive.ExtremeVocabulary()), "token %q", toks[i])
	}
}

func TestDeriveExtreme_LongestExpansiveFirstMaximum(t *testing.T) {
	// Two expansive alternatives of equal length: the first one wins.
	// The terminal-only alternative is longer but never eligible below target.
	g := mustLoad(t, "S -> x x x x x\nS -> a S\nS -> b S\nS -> c\n")
	e := derive.NewEngine(g, forbiddenRand{t})

	s, err := e.DeriveExtreme(3)
	require.NoError(t, err)
	assert.Equal(t, "a a a c", s)
}

func TestDeriveExtreme_FallsBackToRandom(t *testing.T) {
	g := mustLoad(t, "S -> a\nS -> b c\nS -> d e f\n")
	e := derive.NewEngine(g, &scriptedRand{vals: []int{1}})

	s, err := e.DeriveExtreme(5)
	require.NoError(t, err)
	assert.Equal(t, "b c", s)
}

func TestDeriveExtreme_DeeperThanValid(t *testing.T) {
	g := mustLoad(t, exprGrammar)
	for seed := uint64(0); seed < 10; seed++ {
		valid, err := derive.NewEngine(g, seeded(seed)).DeriveValid(3)
		require.NoError(t, err)
		extreme, err := derive.NewEngine(g, seeded(seed)).DeriveExtreme(6)
		require.NoError(t, err)
		assert.Greater(t, len(strings.Fields(extreme)), len(strings.Fields(valid)))
	}
}

// ---------------------------------------------------------------------------
// Substitution and limits
// ---------------------------------------------------------------------------

func TestDerive_CustomVocabularies(t *testing.T) {
	g := mustLoad(t, "S -> numero id\n")
	normal := derive.Vocabulary{Min: 5, Max: 5, IDs: []string{"only"}}
	extreme := derive.Vocabulary{Min: 70000, Max: 70000, IDs: []string{"huge_name"}}
	e := derive.NewEngine(g, seeded(1), derive.WithVocabularies(normal, extreme))

	s, err := e.DeriveValid(2)
	require.NoError(t, err)
	assert.Equal(t, "5 only", s)

	s, err = e.DeriveExtreme(2)
	require.NoError(t, err)
	assert.Equal(t, "70000 huge_name", s)
}

func TestDerive_RecursionCeiling(t *testing.T) {
	// Every alternative of S recurses, so the depth cutoff cannot close it.
	g := mustLoad(t, "S -> S a\n")
	e := derive.NewEngine(g, seeded(1), derive.WithCeiling(20))

	_, err := e.DeriveValid(3)
	assert.ErrorIs(t, err, derive.ErrRecursionLimit)

	_, err = e.DeriveExtreme(3)
	assert.ErrorIs(t, err, derive.ErrRecursionLimit)
}

func TestVocabulary_Validate(t *testing.T) {
	assert.NoError(t, derive.NormalVocabulary().Validate())
	assert.NoError(t, derive.ExtremeVocabulary().Validate())
	assert.Error(t, derive.Vocabulary{Min: 10, Max: 1, IDs: []string{"a"}}.Validate())
	assert.Error(t, derive.Vocabulary{Min: 1, Max: 10}.Validate())

	ids := []string{"a"}
	assert.Error(t, derive.Vocabulary{Min: 0, Max: math.MaxInt, IDs: ids}.Validate())
	assert.Error(t, derive.Vocabulary{Min: -5e18, Max: 5e18, IDs: ids}.Validate())
	assert.Error(t, derive.Vocabulary{Min: math.MinInt, Max: 0, IDs: ids}.Validate())
	assert.NoError(t, derive.Vocabulary{Min: 0, Max: math.MaxInt - 1, IDs: ids}.Validate())
	assert.NoError(t, derive.Vocabulary{Min: -4e18, Max: 4e18, IDs: ids}.Validate())
}

func TestDeriveValid_WidestAcceptedRange(t *testing.T) {
	g, err := grammar.Load(strings.NewReader("S -> numero\n"), nil)
	require.NoError(t, err)
	v := derive.Vocabulary{Min: 1, Max: math.MaxInt, IDs: []string{"a"}}
	require.NoError(t, v.Validate())

	e := derive.NewEngine(g, rand.New(rand.NewPCG(1, 2)), derive.WithVocabularies(v, v))
	s, err := e.DeriveValid(1)
	require.NoError(t, err)
	n, err := strconv.Atoi(s)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)
}

func TestShortest(t *testing.T) {
	assert.Nil(t, derive.Shortest(nil))
	alts := []grammar.Alternative{{"a", "b"}, {"c"}, {"d"}}
	assert.Equal(t, grammar.Alternative{"c"}, derive.Shortest(alts))
}

func TestPolicy_String(t *testing.T) {
	assert.Equal(t, "converge", derive.Converge.String())
	assert.Equal(t, "diverge", derive.Diverge.String())
	assert.Equal(t, "policy(9)", derive.Policy(9).String())
}
