package grammar

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
)

// LoadError reports a grammar source that could not be opened or read.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("load grammar: %v", e.Err)
	}
	return fmt.Sprintf("load grammar %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// LoadFile opens path and parses it with Load.
func LoadFile(path string, logger *zap.Logger) (*Grammar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer f.Close()

	g, err := Load(f, logger)
	var le *LoadError
	if errors.As(err, &le) {
		le.Path = path
	}
	return g, err
}

// Load parses rule lines from r. The head of the first valid rule becomes the
// start symbol. Lines without a separator, or with an empty head, are skipped
// with a warning. A nil logger discards warnings.
func Load(r io.Reader, logger *zap.Logger) (*Grammar, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Grammar{rules: make(map[string][]Alternative)}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		head, body, ok := strings.Cut(line, Separator)
		head = strings.TrimSpace(head)
		if !ok || head == "" {
			logger.Warn("skipping malformed rule line",
				zap.Int("line", lineNo),
				zap.String("text", line))
			g.skipped = append(g.skipped, SkippedLine{Line: lineNo, Text: line})
			continue
		}
		if g.start == "" {
			g.start = head
		}
		g.add(head, strings.Fields(body))
	}
	if err := sc.Err(); err != nil {
		return nil, &LoadError{Err: err}
	}
	if g.start == "" {
		return nil, ErrNoRules
	}
	logger.Debug("grammar loaded",
		zap.String("start", g.start),
		zap.Int("nonterminals", len(g.order)),
		zap.Int("skipped", len(g.skipped)))
	return g, nil
}
