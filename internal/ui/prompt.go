// Package ui holds the interactive terminal views: a parameter prompt that
// asks one question at a time and a live progress view for a running batch.
package ui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"gramgen/internal/batch"
)

// Question describes a single prompt.
type Question struct {
	Key     string
	Prompt  string
	Default string
	// Validate rejects an answer; nil accepts anything.
	Validate func(string) error
}

var errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

// promptModel is a bubbletea model that asks one question at a time.
type promptModel struct {
	questions []Question
	idx       int
	inputs    []textinput.Model
	err       error
	done      bool
}

func newPromptModel(questions []Question) promptModel {
	inputs := make([]textinput.Model, len(questions))
	for i, q := range questions {
		ti := textinput.New()
		ti.Placeholder = q.Default
		ti.SetValue(q.Default)
		ti.CharLimit = 32
		inputs[i] = ti
	}
	m := promptModel{
		questions: questions,
		inputs:    inputs,
	}
	if len(inputs) > 0 {
		m.inputs[0].Focus()
	}
	return m
}

func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if v := m.questions[m.idx].Validate; v != nil {
				if err := v(m.inputs[m.idx].Value()); err != nil {
					m.err = err
					return m, nil
				}
			}
			m.err = nil
			if m.idx < len(m.inputs)-1 {
				m.inputs[m.idx].Blur()
				m.idx++
				m.inputs[m.idx].Focus()
				return m, textinput.Blink
			}
			m.done = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.inputs[m.idx], cmd = m.inputs[m.idx].Update(msg)
	return m, cmd
}

func (m promptModel) View() string {
	if m.done || len(m.questions) == 0 {
		return ""
	}
	q := m.questions[m.idx]
	out := fmt.Sprintf("%s: %s\n", q.Prompt, m.inputs[m.idx].View())
	if m.err != nil {
		out += errorStyle.Render(m.err.Error()) + "\n"
	}
	return out
}

func (m promptModel) answers() map[string]string {
	out := make(map[string]string, len(m.questions))
	for i, q := range m.questions {
		out[q.Key] = m.inputs[i].Value()
	}
	return out
}

// Ask runs the prompt and returns answers keyed by Question.Key.
func Ask(questions []Question, opts ...tea.ProgramOption) (map[string]string, error) {
	if len(questions) == 0 {
		return map[string]string{}, nil
	}
	p := tea.NewProgram(newPromptModel(questions), opts...)
	result, err := p.Run()
	if err != nil {
		return nil, err
	}
	final, ok := result.(promptModel)
	if !ok || !final.done {
		return nil, fmt.Errorf("prompt cancelled")
	}
	return final.answers(), nil
}

// ---------------------------------------------------------------------------
// Batch parameters
// ---------------------------------------------------------------------------

func nonNegativeInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("%q is not a whole number", s)
	}
	if n < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

// ParamsQuestions asks for the four batch parameters, prefilled with def.
func ParamsQuestions(def batch.Params) []Question {
	return []Question{
		{Key: "valid", Prompt: "Valid cases", Default: strconv.Itoa(def.Valid), Validate: nonNegativeInt},
		{Key: "invalid", Prompt: "Invalid cases", Default: strconv.Itoa(def.Invalid), Validate: nonNegativeInt},
		{Key: "extreme", Prompt: "Extreme cases", Default: strconv.Itoa(def.Extreme), Validate: nonNegativeInt},
		{Key: "depth", Prompt: "Base depth", Default: strconv.Itoa(def.Depth), Validate: nonNegativeInt},
	}
}

// ParseParams converts answers from ParamsQuestions.
func ParseParams(answers map[string]string) (batch.Params, error) {
	var p batch.Params
	fields := []struct {
		key string
		dst *int
	}{
		{"valid", &p.Valid},
		{"invalid", &p.Invalid},
		{"extreme", &p.Extreme},
		{"depth", &p.Depth},
	}
	for _, f := range fields {
		n, err := strconv.Atoi(answers[f.key])
		if err != nil {
			return batch.Params{}, fmt.Errorf("%s: %q is not a whole number", f.key, answers[f.key])
		}
		*f.dst = n
	}
	return p, p.Validate()
}

// AskParams prompts for batch parameters.
func AskParams(def batch.Params, opts ...tea.ProgramOption) (batch.Params, error) {
	answers, err := Ask(ParamsQuestions(def), opts...)
	if err != nil {
		return batch.Params{}, err
	}
	return ParseParams(answers)
}
