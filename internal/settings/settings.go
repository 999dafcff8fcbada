// Package settings loads gramgen configuration from .gramgen/settings.yaml.
//
// Every field is optional. Fields present in the file override the built-in
// defaults; a missing file means "all defaults". Accessors are safe to call on
// a nil *Settings.
//
//	defaults: {valid: 50, invalid: 20, extreme: 5, depth: 6}
//	vocabulary:
//	  normal:  {min: 1, max: 99, ids: [a, b, x, y, count, val]}
//	  extreme: {min: 1000, max: 9999, ids: [var_long, count_max, total_sum]}
//	mutation: {illegal: ["@", "#", "$", "?", INVALID], trailing: "+"}
//	recursion_ceiling: 512
//	seed: 0
//	format: json
package settings

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"gramgen/internal/batch"
	"gramgen/internal/derive"
	"gramgen/internal/mutate"
)

// Dir and File locate the settings file relative to a root directory.
const (
	Dir  = ".gramgen"
	File = "settings.yaml"
)

// Settings holds gramgen configuration.
type Settings struct {
	Defaults         batch.Params `yaml:"defaults"`
	Vocabulary       Vocabularies `yaml:"vocabulary"`
	Mutation         Mutation     `yaml:"mutation"`
	RecursionCeiling int          `yaml:"recursion_ceiling"`
	// Seed fixes the random source; 0 seeds from the clock.
	Seed   uint64 `yaml:"seed"`
	Format string `yaml:"format"`
}

// Vocabularies are the reserved-terminal substitutions per case kind.
type Vocabularies struct {
	Normal  derive.Vocabulary `yaml:"normal"`
	Extreme derive.Vocabulary `yaml:"extreme"`
}

// Mutation configures invalid-case generation.
type Mutation struct {
	Illegal  []string `yaml:"illegal"`
	Trailing string   `yaml:"trailing"`
}

// Default returns the built-in configuration.
func Default() *Settings {
	return &Settings{
		Defaults: batch.Params{Valid: 50, Invalid: 20, Extreme: 5, Depth: 6},
		Vocabulary: Vocabularies{
			Normal:  derive.NormalVocabulary(),
			Extreme: derive.ExtremeVocabulary(),
		},
		Mutation: Mutation{
			Illegal:  mutate.DefaultIllegalTokens(),
			Trailing: mutate.DefaultTrailingOperator,
		},
		RecursionCeiling: derive.DefaultCeiling,
		Format:           "json",
	}
}

// Load reads .gramgen/settings.yaml relative to root.
// Returns nil (not an error) if the file does not exist.
func Load(root string) (*Settings, error) {
	path := filepath.Join(root, Dir, File)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	s := Default()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Validate checks ranges and vocabularies.
func (s *Settings) Validate() error {
	s = s.orDefault()
	if err := s.Defaults.Validate(); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	if err := s.Vocabulary.Normal.Validate(); err != nil {
		return fmt.Errorf("normal %w", err)
	}
	if err := s.Vocabulary.Extreme.Validate(); err != nil {
		return fmt.Errorf("extreme %w", err)
	}
	if s.RecursionCeiling < 0 {
		return fmt.Errorf("recursion_ceiling must not be negative, got %d", s.RecursionCeiling)
	}
	return nil
}

func (s *Settings) orDefault() *Settings {
	if s == nil {
		return Default()
	}
	return s
}

// Params returns the default batch parameters.
func (s *Settings) Params() batch.Params { return s.orDefault().Defaults }

// SeedValue returns the configured seed, 0 meaning unseeded.
func (s *Settings) SeedValue() uint64 { return s.orDefault().Seed }

// ReportFormat returns the configured report format name.
func (s *Settings) ReportFormat() string {
	if f := s.orDefault().Format; f != "" {
		return f
	}
	return "json"
}

// EngineOptions returns derivation options reflecting the settings.
func (s *Settings) EngineOptions() []derive.Option {
	s = s.orDefault()
	return []derive.Option{
		derive.WithVocabularies(s.Vocabulary.Normal, s.Vocabulary.Extreme),
		derive.WithCeiling(s.RecursionCeiling),
	}
}

// MutatorOptions returns mutation options reflecting the settings.
func (s *Settings) MutatorOptions() []mutate.Option {
	s = s.orDefault()
	return []mutate.Option{
		mutate.WithIllegalTokens(s.Mutation.Illegal),
		mutate.WithTrailingOperator(s.Mutation.Trailing),
	}
}

// YAML renders the effective settings.
func (s *Settings) YAML() ([]byte, error) {
	return yaml.Marshal(s.orDefault())
}
