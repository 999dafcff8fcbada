// Package derive expands grammar symbols into terminal strings.
//
// Two policies share one recursive walk:
//
//   - Converge (valid cases): pick uniformly among alternatives until the
//     depth budget is spent, then only the shortest alternative.
//   - Diverge (extreme cases): take the longest alternative that still has a
//     nonterminal until the target depth, then the shortest.
//
// The reserved terminals "numero" and "id" are replaced with a random number
// or identifier drawn from the policy's Vocabulary.
package derive

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gramgen/internal/grammar"
)

// Reserved terminal classes that receive substitution.
const (
	NumberTerminal = "numero"
	IDTerminal     = "id"
)

// DefaultCeiling bounds recursive call depth regardless of the configured
// derivation depth.
const DefaultCeiling = 512

// ErrRecursionLimit is returned when a derivation nests deeper than the
// engine's ceiling, which happens for grammars whose shortest alternative is
// still recursive.
var ErrRecursionLimit = errors.New("derive: recursion ceiling exceeded")

// Rand is the randomness source. *math/rand/v2.Rand satisfies it.
type Rand interface {
	// IntN returns a uniform int in [0, n). n > 0.
	IntN(n int) int
}

// Policy selects how alternatives are chosen.
type Policy int

const (
	Converge Policy = iota
	Diverge
)

func (p Policy) String() string {
	switch p {
	case Converge:
		return "converge"
	case Diverge:
		return "diverge"
	}
	return "policy(" + strconv.Itoa(int(p)) + ")"
}

// Vocabulary is the substitution source for reserved terminals.
type Vocabulary struct {
	Min int      `yaml:"min"` // inclusive lower bound for numero
	Max int      `yaml:"max"` // inclusive upper bound for numero
	IDs []string `yaml:"ids"` // candidates for id
}

// NormalVocabulary is used for valid and invalid cases.
func NormalVocabulary() Vocabulary {
	return Vocabulary{Min: 1, Max: 99, IDs: []string{"a", "b", "x", "y", "count", "val"}}
}

// ExtremeVocabulary is used for extreme cases.
func ExtremeVocabulary() Vocabulary {
	return Vocabulary{Min: 1000, Max: 9999, IDs: []string{"var_long", "count_max", "total_sum"}}
}

// Validate reports whether v can produce substitutions.
func (v Vocabulary) Validate() error {
	if v.Min > v.Max {
		return fmt.Errorf("vocabulary: min %d greater than max %d", v.Min, v.Max)
	}
	// The draw needs Max-Min+1 to fit in an int.
	if uint(v.Max)-uint(v.Min) >= uint(math.MaxInt) {
		return fmt.Errorf("vocabulary: range %d..%d is too wide", v.Min, v.Max)
	}
	if len(v.IDs) == 0 {
		return fmt.Errorf("vocabulary: no identifiers")
	}
	return nil
}

// Engine derives strings from one grammar. It is not safe for concurrent use
// because it shares its Rand between calls.
type Engine struct {
	g       *grammar.Grammar
	rnd     Rand
	normal  Vocabulary
	extreme Vocabulary
	ceiling int
}

// Option configures an Engine.
type Option func(*Engine)

// WithVocabularies replaces the default normal and extreme vocabularies.
func WithVocabularies(normal, extreme Vocabulary) Option {
	return func(e *Engine) {
		e.normal = normal
		e.extreme = extreme
	}
}

// WithCeiling sets the hard recursion ceiling. Values < 1 keep the default.
func WithCeiling(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.ceiling = n
		}
	}
}

// NewEngine returns an Engine for g drawing randomness from rnd.
func NewEngine(g *grammar.Grammar, rnd Rand, opts ...Option) *Engine {
	e := &Engine{
		g:       g,
		rnd:     rnd,
		normal:  NormalVocabulary(),
		extreme: ExtremeVocabulary(),
		ceiling: DefaultCeiling,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Grammar returns the grammar the engine derives from.
func (e *Engine) Grammar() *grammar.Grammar { return e.g }

// DeriveValid expands the start symbol with the converge policy. At or beyond
// maxDepth only the shortest alternative of a nonterminal is eligible.
func (e *Engine) DeriveValid(maxDepth int) (string, error) {
	return e.DeriveFrom(e.g.Start(), maxDepth, Converge)
}

// DeriveExtreme expands the start symbol with the diverge policy, growing
// until targetDepth and closing with shortest alternatives afterwards.
func (e *Engine) DeriveExtreme(targetDepth int) (string, error) {
	return e.DeriveFrom(e.g.Start(), targetDepth, Diverge)
}

// DeriveFrom expands an arbitrary symbol from depth 0 under policy.
func (e *Engine) DeriveFrom(symbol string, depth int, policy Policy) (string, error) {
	var frags []string
	if err := e.expand(symbol, 0, depth, policy, &frags); err != nil {
		return "", err
	}
	return strings.Join(frags, " "), nil
}

// expand appends the terminal fragments of symbol to out. Empty alternatives
// contribute nothing, so fragments never carry doubled spaces.
func (e *Engine) expand(symbol string, depth, limit int, policy Policy, out *[]string) error {
	if depth > e.ceiling {
		return fmt.Errorf("%w: depth %d expanding %q", ErrRecursionLimit, depth, symbol)
	}
	if !e.g.IsNonterminal(symbol) {
		*out = append(*out, e.terminal(symbol, policy))
		return nil
	}

	var alt grammar.Alternative
	if policy == Diverge {
		alt = e.chooseDiverge(symbol, depth, limit)
	} else {
		alt = e.chooseConverge(symbol, depth, limit)
	}
	for _, sym := range alt {
		if err := e.expand(sym, depth+1, limit, policy, out); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) chooseConverge(symbol string, depth, limit int) grammar.Alternative {
	alts := e.g.Alternatives(symbol)
	if depth >= limit {
		return Shortest(alts)
	}
	return e.pick(alts)
}

func (e *Engine) chooseDiverge(symbol string, depth, limit int) grammar.Alternative {
	alts := e.g.Alternatives(symbol)
	if depth >= limit {
		return Shortest(alts)
	}
	var longest grammar.Alternative
	found := false
	for _, alt := range alts {
		if !e.expansive(alt) {
			continue
		}
		if !found || len(alt) > len(longest) {
			longest, found = alt, true
		}
	}
	if found {
		return longest
	}
	return e.pick(alts)
}

// expansive reports whether alt contains at least one nonterminal.
func (e *Engine) expansive(alt grammar.Alternative) bool {
	for _, sym := range alt {
		if e.g.IsNonterminal(sym) {
			return true
		}
	}
	return false
}

func (e *Engine) pick(alts []grammar.Alternative) grammar.Alternative {
	if len(alts) == 1 {
		return alts[0]
	}
	return alts[e.rnd.IntN(len(alts))]
}

func (e *Engine) terminal(symbol string, policy Policy) string {
	v := e.normal
	if policy == Diverge {
		v = e.extreme
	}
	switch symbol {
	case NumberTerminal:
		return strconv.Itoa(v.Min + e.rnd.IntN(v.Max-v.Min+1))
	case IDTerminal:
		return v.IDs[e.rnd.IntN(len(v.IDs))]
	}
	return symbol
}

// Shortest returns the first alternative with the fewest symbols.
func Shortest(alts []grammar.Alternative) grammar.Alternative {
	if len(alts) == 0 {
		return nil
	}
	best := alts[0]
	for _, alt := range alts[1:] {
		if len(alt) < len(best) {
			best = alt
		}
	}
	return best
}
