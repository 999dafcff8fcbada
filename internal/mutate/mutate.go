// Package mutate corrupts valid token strings into labeled invalid cases.
//
// Exactly one mutation is applied per call. The result is not checked against
// the grammar: it is invalid by construction, not certified as rejected.
package mutate

import (
	"fmt"
	"strings"
)

// Kind is the category of mutation applied.
type Kind string

const (
	// KindDelete removes one token.
	KindDelete Kind = "delete"
	// KindDuplicate repeats one token in place.
	KindDuplicate Kind = "duplicate"
	// KindSwap exchanges two adjacent tokens.
	KindSwap Kind = "swap"
	// KindIllegal inserts a token that never appears in a valid string.
	KindIllegal Kind = "illegal"
	// KindTrailingOperator appends a dangling operator to strings too short
	// for the other kinds.
	KindTrailingOperator Kind = "trailing-operator"
)

// Kinds lists the kinds chosen uniformly for inputs of two or more tokens.
var Kinds = []Kind{KindDelete, KindDuplicate, KindSwap, KindIllegal}

// TrailingOperatorDescription describes the short-input fallback.
const TrailingOperatorDescription = "operand-less trailing operator"

// Rand is the randomness source. *math/rand/v2.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

// Mutation describes the corruption applied to a string.
type Mutation struct {
	Kind        Kind
	Description string
	// Position is the token index affected in the original string; for
	// insertions it is the insertion point in the result.
	Position int
}

// DefaultIllegalTokens are symbols that never occur in the supported grammars.
func DefaultIllegalTokens() []string {
	return []string{"@", "#", "$", "?", "INVALID"}
}

// DefaultTrailingOperator is appended to inputs shorter than two tokens.
const DefaultTrailingOperator = "+"

// Mutator applies single structural corruptions.
type Mutator struct {
	rnd      Rand
	illegal  []string
	trailing string
}

// Option configures a Mutator.
type Option func(*Mutator)

// WithIllegalTokens replaces the illegal-token vocabulary. An empty list keeps
// the default.
func WithIllegalTokens(tokens []string) Option {
	return func(m *Mutator) {
		if len(tokens) > 0 {
			m.illegal = append([]string(nil), tokens...)
		}
	}
}

// WithTrailingOperator sets the operator appended to short inputs.
func WithTrailingOperator(op string) Option {
	return func(m *Mutator) {
		if op != "" {
			m.trailing = op
		}
	}
}

// New returns a Mutator drawing randomness from rnd.
func New(rnd Rand, opts ...Option) *Mutator {
	m := &Mutator{
		rnd:      rnd,
		illegal:  DefaultIllegalTokens(),
		trailing: DefaultTrailingOperator,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Mutate tokenizes valid on whitespace and applies one mutation.
func (m *Mutator) Mutate(valid string) (string, Mutation) {
	toks := strings.Fields(valid)
	if len(toks) < 2 {
		out := append(toks, m.trailing)
		return strings.Join(out, " "), Mutation{
			Kind:        KindTrailingOperator,
			Description: TrailingOperatorDescription,
			Position:    len(toks),
		}
	}

	var (
		out []string
		mut Mutation
	)
	switch kind := Kinds[m.rnd.IntN(len(Kinds))]; kind {
	case KindDelete:
		out, mut = m.delete(toks)
	case KindDuplicate:
		out, mut = m.duplicate(toks)
	case KindSwap:
		out, mut = m.swap(toks)
	default:
		out, mut = m.insertIllegal(toks)
	}
	return strings.Join(out, " "), mut
}

func (m *Mutator) delete(toks []string) ([]string, Mutation) {
	i := m.rnd.IntN(len(toks))
	out := make([]string, 0, len(toks)-1)
	out = append(out, toks[:i]...)
	out = append(out, toks[i+1:]...)
	return out, Mutation{
		Kind:        KindDelete,
		Description: fmt.Sprintf("deleted token '%s' at position %d", toks[i], i),
		Position:    i,
	}
}

func (m *Mutator) duplicate(toks []string) ([]string, Mutation) {
	i := m.rnd.IntN(len(toks))
	out := make([]string, 0, len(toks)+1)
	out = append(out, toks[:i+1]...)
	out = append(out, toks[i:]...)
	return out, Mutation{
		Kind:        KindDuplicate,
		Description: fmt.Sprintf("duplicated token '%s' at position %d", toks[i], i),
		Position:    i,
	}
}

// swap exchanges toks[i] and toks[i+1]. Indices whose neighbours differ are
// preferred so the order actually changes when the input allows it.
func (m *Mutator) swap(toks []string) ([]string, Mutation) {
	var distinct []int
	for i := 0; i < len(toks)-1; i++ {
		if toks[i] != toks[i+1] {
			distinct = append(distinct, i)
		}
	}
	var i int
	if len(distinct) > 0 {
		i = distinct[m.rnd.IntN(len(distinct))]
	} else {
		i = m.rnd.IntN(len(toks) - 1)
	}
	out := append([]string(nil), toks...)
	out[i], out[i+1] = out[i+1], out[i]
	return out, Mutation{
		Kind:        KindSwap,
		Description: fmt.Sprintf("swapped adjacent tokens '%s' and '%s' at positions %d-%d", toks[i], toks[i+1], i, i+1),
		Position:    i,
	}
}

func (m *Mutator) insertIllegal(toks []string) ([]string, Mutation) {
	i := m.rnd.IntN(len(toks) + 1)
	sym := m.illegal[m.rnd.IntN(len(m.illegal))]
	out := make([]string, 0, len(toks)+1)
	out = append(out, toks[:i]...)
	out = append(out, sym)
	out = append(out, toks[i:]...)
	return out, Mutation{
		Kind:        KindIllegal,
		Description: fmt.Sprintf("inserted illegal token '%s' at position %d", sym, i),
		Position:    i,
	}
}
