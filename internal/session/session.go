// Package session wires a grammar and settings into a ready batch orchestrator:
// one random source shared by the derivation engine and the mutator.
package session

import (
	"math/rand/v2"

	"gramgen/internal/batch"
	"gramgen/internal/derive"
	"gramgen/internal/grammar"
	"gramgen/internal/mutate"
	"gramgen/internal/settings"
)

// NewRand returns a PCG source for seed. Seed 0 draws a fresh seed.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
}

// New builds an orchestrator for g. A zero seed falls back to the settings
// seed, and a zero settings seed to a random one.
func New(g *grammar.Grammar, s *settings.Settings, seed uint64, opts ...batch.Option) *batch.Orchestrator {
	if seed == 0 {
		seed = s.SeedValue()
	}
	rnd := NewRand(seed)
	eng := derive.NewEngine(g, rnd, s.EngineOptions()...)
	mut := mutate.New(rnd, s.MutatorOptions()...)
	return batch.New(eng, mut, opts...)
}
