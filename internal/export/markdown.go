package export

// markdown.go: human-readable report. Statistics go into YAML frontmatter
// between --- delimiters, cases into a table in the body. Read recovers only
// the statistics.

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"gramgen/internal/batch"
)

// MarkdownSink writes a markdown document with YAML frontmatter.
type MarkdownSink struct{}

func (MarkdownSink) Name() string { return "markdown" }
func (MarkdownSink) Ext() string  { return ".md" }

// markdownMeta is the frontmatter of a markdown report.
type markdownMeta struct {
	Tags       []string         `yaml:"tags"`
	Statistics batch.Statistics `yaml:"resumen_metricas"`
}

func (MarkdownSink) Write(w io.Writer, r *Report) error {
	doc, err := writeFrontmatter(markdownMeta{
		Tags:       []string{"gramgen/report"},
		Statistics: r.Statistics,
	}, renderCaseTable(r))
	if err != nil {
		return err
	}
	_, err = w.Write(doc)
	return err
}

func (MarkdownSink) Read(rd io.Reader) (*Report, error) {
	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}
	fm, _, err := parseFrontmatter(data)
	if err != nil {
		return nil, err
	}
	var meta markdownMeta
	if err := yaml.Unmarshal(fm, &meta); err != nil {
		return nil, fmt.Errorf("frontmatter: unmarshal: %w", err)
	}
	return &Report{Statistics: meta.Statistics}, nil
}

func renderCaseTable(r *Report) string {
	s := r.Statistics
	var b strings.Builder
	b.WriteString("# Test cases\n\n")
	b.WriteString(fmt.Sprintf("- **Total**: %d (valida %d, invalida %d, extrema %d)\n",
		s.Total, s.ByCategory.Valid, s.ByCategory.Invalid, s.ByCategory.Extreme))
	b.WriteString(fmt.Sprintf("- **Average length**: %.2f tokens\n", s.AverageLength))
	b.WriteString(fmt.Sprintf("- **Elapsed**: %.2f ms\n\n", s.ElapsedMS))

	if len(r.Cases) == 0 {
		b.WriteString("_No cases._\n")
		return b.String()
	}
	b.WriteString("| id | categoria | longitud | cadena | detalle |\n")
	b.WriteString("|---:|---|---:|---|---|\n")
	for _, c := range r.Cases {
		b.WriteString(fmt.Sprintf("| %d | %s | %d | `%s` | %s |\n",
			c.ID, c.Category, c.Length, escapeCell(c.Text), escapeCell(c.Detail)))
	}
	return b.String()
}

// escapeCell keeps pipes and backticks from breaking the table.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "`", "'")
}

// ---------------------------------------------------------------------------
// Frontmatter
// ---------------------------------------------------------------------------

const fmDelim = "---\n"

// writeFrontmatter marshals v as YAML between --- delimiters followed by body.
func writeFrontmatter(v any, body string) ([]byte, error) {
	fm, err := yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("frontmatter: marshal: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(fmDelim)
	buf.Write(fm)
	buf.WriteString(fmDelim)
	buf.WriteString(body)
	return buf.Bytes(), nil
}

// parseFrontmatter splits a document into raw YAML frontmatter and body.
func parseFrontmatter(data []byte) (fm, body []byte, err error) {
	if !bytes.HasPrefix(data, []byte(fmDelim)) {
		return nil, nil, fmt.Errorf("frontmatter: missing opening --- delimiter")
	}
	rest := data[len(fmDelim):]
	idx := bytes.Index(rest, []byte("\n---"))
	if idx < 0 {
		return nil, nil, fmt.Errorf("frontmatter: missing closing --- delimiter")
	}
	body = rest[idx+len("\n---"):]
	body = bytes.TrimPrefix(body, []byte("\n"))
	return rest[:idx], body, nil
}
