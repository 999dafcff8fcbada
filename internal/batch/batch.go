// Package batch runs generation sessions: many valid, invalid and extreme
// derivations recorded as numbered test cases with running statistics.
//
// An Orchestrator is single-threaded. Parallel batches use one Orchestrator
// each and combine their results with Merge.
package batch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"gramgen/internal/mutate"
)

// ExtremeDepthFactor scales the base depth for extreme cases.
const ExtremeDepthFactor = 2

// Operators is the fixed set of symbols counted in Statistics.Operators.
var Operators = []string{"+", "-", "*", "/", "%"}

// ErrInvalidParams is returned by Run for negative counts or depth.
var ErrInvalidParams = errors.New("batch: invalid parameters")

// Category classifies a test case. Values match the report wire format.
type Category string

const (
	Valid   Category = "valida"
	Invalid Category = "invalida"
	Extreme Category = "extrema"
)

// TestCase is one generated string.
type TestCase struct {
	ID       int      `json:"id" yaml:"id" msgpack:"id"`
	Category Category `json:"categoria" yaml:"categoria" msgpack:"categoria"`
	Text     string   `json:"cadena" yaml:"cadena" msgpack:"cadena"`
	Length   int      `json:"longitud" yaml:"longitud" msgpack:"longitud"`
	Detail   string   `json:"detalle" yaml:"detalle" msgpack:"detalle"`
}

// CategoryCounts holds one counter per category.
type CategoryCounts struct {
	Valid   int `json:"valida" yaml:"valida" msgpack:"valida"`
	Invalid int `json:"invalida" yaml:"invalida" msgpack:"invalida"`
	Extreme int `json:"extrema" yaml:"extrema" msgpack:"extrema"`
}

// Statistics summarizes the cases of a session.
type Statistics struct {
	Total         int            `json:"total_generado" yaml:"total_generado" msgpack:"total_generado"`
	ByCategory    CategoryCounts `json:"por_categoria" yaml:"por_categoria" msgpack:"por_categoria"`
	AverageLength float64        `json:"longitud_promedio" yaml:"longitud_promedio" msgpack:"longitud_promedio"`
	Operators     OperatorCounts `json:"operadores_total" yaml:"operadores_total" msgpack:"operadores_total"`
	ElapsedMS     float64        `json:"tiempo_total_ms" yaml:"tiempo_total_ms" msgpack:"tiempo_total_ms"`

	tokens int
}

// NewStatistics returns zeroed statistics with every operator present.
func NewStatistics() Statistics {
	ops := make(OperatorCounts, len(Operators))
	for _, op := range Operators {
		ops[op] = 0
	}
	return Statistics{Operators: ops}
}

// TokenCount is the total number of tokens over all recorded cases.
func (s Statistics) TokenCount() int { return s.tokens }

func (s *Statistics) record(c TestCase) {
	s.Total++
	switch c.Category {
	case Valid:
		s.ByCategory.Valid++
	case Invalid:
		s.ByCategory.Invalid++
	case Extreme:
		s.ByCategory.Extreme++
	}
	for _, tok := range strings.Fields(c.Text) {
		if _, ok := s.Operators[tok]; ok {
			s.Operators[tok]++
		}
	}
	s.tokens += c.Length
}

func (s *Statistics) finalize() {
	if s.Total > 0 {
		s.AverageLength = round2(float64(s.tokens) / float64(s.Total))
	}
}

func (s Statistics) clone() Statistics {
	ops := make(OperatorCounts, len(s.Operators))
	for k, v := range s.Operators {
		ops[k] = v
	}
	s.Operators = ops
	return s
}

// Params are the inputs of one batch run.
type Params struct {
	Valid   int `json:"valid" yaml:"valid" toml:"valid"`
	Invalid int `json:"invalid" yaml:"invalid" toml:"invalid"`
	Extreme int `json:"extreme" yaml:"extreme" toml:"extreme"`
	Depth   int `json:"depth" yaml:"depth" toml:"depth"`
}

// Total is the number of cases the run produces.
func (p Params) Total() int { return p.Valid + p.Invalid + p.Extreme }

// Validate rejects negative counts and depth.
func (p Params) Validate() error {
	if p.Valid < 0 || p.Invalid < 0 || p.Extreme < 0 || p.Depth < 0 {
		return fmt.Errorf("%w: %+v", ErrInvalidParams, p)
	}
	return nil
}

// Result is a snapshot of a session.
type Result struct {
	Statistics Statistics
	Cases      []TestCase
}

// Progress is passed to the observer after each recorded case.
type Progress struct {
	Case  TestCase
	Done  int // cases finished in the current run
	Total int // cases planned for the current run
}

// Generator derives valid and extreme strings.
type Generator interface {
	DeriveValid(maxDepth int) (string, error)
	DeriveExtreme(targetDepth int) (string, error)
}

// Corrupter turns a valid string into an invalid one.
type Corrupter interface {
	Mutate(valid string) (string, mutate.Mutation)
}

// Orchestrator owns one generation session. Case ids increase across runs.
type Orchestrator struct {
	gen      Generator
	mut      Corrupter
	logger   *zap.Logger
	observer func(Progress)
	now      func() time.Time

	cases []TestCase
	stats Statistics
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver registers fn to be called after every recorded case.
func WithObserver(fn func(Progress)) Option {
	return func(o *Orchestrator) { o.observer = fn }
}

// WithClock replaces time.Now for elapsed-time measurement.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New returns an Orchestrator with an empty session.
func New(gen Generator, mut Corrupter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gen:    gen,
		mut:    mut,
		logger: zap.NewNop(),
		now:    time.Now,
		stats:  NewStatistics(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run generates p.Valid valid cases at p.Depth, p.Invalid mutated cases at
// p.Depth, then p.Extreme extreme cases at ExtremeDepthFactor*p.Depth, in that
// order. The context is checked between cases. On error the cases recorded so
// far stay in the session.
func (o *Orchestrator) Run(ctx context.Context, p Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	start := o.now()
	total := p.Total()
	done := 0
	o.logger.Debug("batch started",
		zap.Int("valid", p.Valid),
		zap.Int("invalid", p.Invalid),
		zap.Int("extreme", p.Extreme),
		zap.Int("depth", p.Depth))

	// fail keeps the statistics of the cases recorded before err consistent.
	fail := func(err error) (*Result, error) {
		o.stats.ElapsedMS = ElapsedMS(o.now().Sub(start))
		o.stats.finalize()
		return nil, err
	}

	emit := func(cat Category, text, detail string) {
		c := o.record(cat, text, detail)
		done++
		o.logger.Debug("case",
			zap.Int("id", c.ID),
			zap.String("category", string(c.Category)),
			zap.String("text", c.Text))
		if o.observer != nil {
			o.observer(Progress{Case: c, Done: done, Total: total})
		}
	}

	for i := 0; i < p.Valid; i++ {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		s, err := o.gen.DeriveValid(p.Depth)
		if err != nil {
			return fail(fmt.Errorf("valid case %d: %w", i+1, err))
		}
		emit(Valid, s, "")
	}

	for i := 0; i < p.Invalid; i++ {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		s, err := o.gen.DeriveValid(p.Depth)
		if err != nil {
			return fail(fmt.Errorf("invalid case %d: %w", i+1, err))
		}
		bad, m := o.mut.Mutate(s)
		emit(Invalid, bad, m.Description)
	}

	for i := 0; i < p.Extreme; i++ {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		s, err := o.gen.DeriveExtreme(p.Depth * ExtremeDepthFactor)
		if err != nil {
			return fail(fmt.Errorf("extreme case %d: %w", i+1, err))
		}
		emit(Extreme, s, "")
	}

	o.stats.ElapsedMS = ElapsedMS(o.now().Sub(start))
	o.stats.finalize()
	o.logger.Debug("batch finished",
		zap.Int("cases", total),
		zap.Float64("elapsed_ms", o.stats.ElapsedMS),
		zap.Float64("avg_length", o.stats.AverageLength))
	return o.Result(), nil
}

func (o *Orchestrator) record(cat Category, text, detail string) TestCase {
	c := TestCase{
		ID:       o.stats.Total + 1,
		Category: cat,
		Text:     text,
		Length:   len(strings.Fields(text)),
		Detail:   detail,
	}
	o.cases = append(o.cases, c)
	o.stats.record(c)
	return c
}

// Result returns a copy of the session's cases and statistics.
func (o *Orchestrator) Result() *Result {
	cases := make([]TestCase, len(o.cases))
	copy(cases, o.cases)
	return &Result{Statistics: o.stats.clone(), Cases: cases}
}

// Reset clears the session; the next case id is 1 again.
func (o *Orchestrator) Reset() {
	o.cases = nil
	o.stats = NewStatistics()
}

// Merge combines statistics of independent sessions. Counts add up and the
// average is recomputed over all tokens. ElapsedMS is the sum of the sessions'
// own times; for sessions that ran concurrently the caller replaces it with
// the wall time of the whole run.
func Merge(results ...*Result) Statistics {
	out := NewStatistics()
	for _, r := range results {
		if r == nil {
			continue
		}
		s := r.Statistics
		out.Total += s.Total
		out.ByCategory.Valid += s.ByCategory.Valid
		out.ByCategory.Invalid += s.ByCategory.Invalid
		out.ByCategory.Extreme += s.ByCategory.Extreme
		for op, n := range s.Operators {
			out.Operators[op] += n
		}
		out.ElapsedMS = round2(out.ElapsedMS + s.ElapsedMS)
		tokens := s.tokens
		if tokens == 0 {
			for _, c := range r.Cases {
				tokens += c.Length
			}
		}
		out.tokens += tokens
	}
	out.finalize()
	return out
}

// ElapsedMS converts d to milliseconds rounded to two decimals.
func ElapsedMS(d time.Duration) float64 {
	return round2(float64(d) / float64(time.Millisecond))
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
