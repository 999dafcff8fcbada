// Package grammar holds context-free grammar productions and loads them from
// the plain-text rule format:
//
//	E -> E + T
//	E -> T
//	T -> numero
//
// One production per line, head and body separated by the first "->".
// Alternatives of the same head may appear anywhere in the file.
package grammar

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Separator splits a rule line into head and body.
const Separator = "->"

var (
	// ErrNoRules is returned when a grammar would contain no productions.
	ErrNoRules = errors.New("grammar: no rules loaded")
	// ErrUndefinedStart is returned when the start symbol has no productions.
	ErrUndefinedStart = errors.New("grammar: start symbol is not a nonterminal")
)

// Alternative is one right-hand side: an ordered sequence of symbol names.
// An empty Alternative derives the empty string.
type Alternative []string

// Rule is a single production HEAD -> Body.
type Rule struct {
	Head string
	Body Alternative
}

// SkippedLine records a source line that was not a valid rule.
type SkippedLine struct {
	Line int
	Text string
}

// Grammar maps nonterminals to their alternatives. It is immutable once built.
type Grammar struct {
	start   string
	order   []string
	rules   map[string][]Alternative
	skipped []SkippedLine
}

// New builds a grammar from rules with an explicit start symbol.
// Rules sharing a head are appended as alternatives in the given order.
func New(rules []Rule, start string) (*Grammar, error) {
	if len(rules) == 0 {
		return nil, ErrNoRules
	}
	g := &Grammar{
		start: start,
		rules: make(map[string][]Alternative),
	}
	for _, r := range rules {
		if r.Head == "" {
			return nil, fmt.Errorf("grammar: rule with empty head")
		}
		g.add(r.Head, r.Body)
	}
	if !g.IsNonterminal(start) {
		return nil, fmt.Errorf("%w: %q", ErrUndefinedStart, start)
	}
	return g, nil
}

func (g *Grammar) add(head string, body Alternative) {
	if _, ok := g.rules[head]; !ok {
		g.order = append(g.order, head)
	}
	alt := make(Alternative, len(body))
	copy(alt, body)
	g.rules[head] = append(g.rules[head], alt)
}

// Start returns the start symbol.
func (g *Grammar) Start() string { return g.start }

// IsNonterminal reports whether symbol has at least one production.
func (g *Grammar) IsNonterminal(symbol string) bool {
	_, ok := g.rules[symbol]
	return ok
}

// Alternatives returns the productions of symbol in source order, or nil for
// terminals. The returned slice must not be modified.
func (g *Grammar) Alternatives(symbol string) []Alternative {
	return g.rules[symbol]
}

// Nonterminals returns every head in first-seen order.
func (g *Grammar) Nonterminals() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Terminals returns the sorted set of body symbols that are not heads.
func (g *Grammar) Terminals() []string {
	seen := make(map[string]bool)
	for _, head := range g.order {
		for _, alt := range g.rules[head] {
			for _, sym := range alt {
				if !g.IsNonterminal(sym) {
					seen[sym] = true
				}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for sym := range seen {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Rules returns every production grouped by head in first-seen order.
func (g *Grammar) Rules() []Rule {
	var out []Rule
	for _, head := range g.order {
		for _, alt := range g.rules[head] {
			out = append(out, Rule{Head: head, Body: alt})
		}
	}
	return out
}

// Skipped returns the lines ignored during Load because they were not rules.
func (g *Grammar) Skipped() []SkippedLine {
	return g.skipped
}

// String renders the grammar in the text rule format. The output loads back
// into an equivalent grammar.
func (g *Grammar) String() string {
	var b strings.Builder
	for _, r := range g.Rules() {
		b.WriteString(r.Head)
		b.WriteString(" " + Separator)
		for _, sym := range r.Body {
			b.WriteString(" " + sym)
		}
		b.WriteString("\n")
	}
	return b.String()
}
