package export

// export.go: batch results rendered as reports.
//
// A Report has exactly two top-level fields, the statistics summary and the
// ordered case list, under the report format's Spanish wire names:
//
//	resumen_metricas  statistics (batch.Statistics)
//	casos_prueba      cases (batch.TestCase)
//
// Sinks render a Report in one format. Renderers are pure; WriteFile is the
// only function touching the filesystem.

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gramgen/internal/batch"
)

// Report is the document written at the end of a batch run.
type Report struct {
	Statistics batch.Statistics `json:"resumen_metricas" yaml:"resumen_metricas" msgpack:"resumen_metricas"`
	Cases      []batch.TestCase `json:"casos_prueba" yaml:"casos_prueba" msgpack:"casos_prueba"`
}

// FromResult builds a Report from a session snapshot.
func FromResult(r *batch.Result) *Report {
	if r == nil {
		return &Report{Statistics: batch.NewStatistics(), Cases: []batch.TestCase{}}
	}
	cases := r.Cases
	if cases == nil {
		cases = []batch.TestCase{}
	}
	return &Report{Statistics: r.Statistics, Cases: cases}
}

// Sink renders and parses reports in one format.
type Sink interface {
	// Name returns the format's identifier (e.g. "json").
	Name() string

	// Ext returns the file extension including the dot.
	Ext() string

	// Write renders r to w.
	Write(w io.Writer, r *Report) error

	// Read parses a report previously produced by Write. Formats that do
	// not carry cases return a Report with only Statistics set.
	Read(rd io.Reader) (*Report, error)
}

// Sinks is the registry of available report formats.
var Sinks = map[string]Sink{
	"json":     JSONSink{},
	"yaml":     YAMLSink{},
	"msgpack":  MsgpackSink{},
	"markdown": MarkdownSink{},
}

// Names returns the registered format names, sorted.
func Names() []string {
	names := make([]string, 0, len(Sinks))
	for name := range Sinks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the sink registered under name.
func Lookup(name string) (Sink, error) {
	s, ok := Sinks[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown report format %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return s, nil
}

// ForPath returns the sink whose extension matches path.
func ForPath(path string) (Sink, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yml" {
		ext = ".yaml"
	}
	for _, name := range Names() {
		if Sinks[name].Ext() == ext {
			return Sinks[name], nil
		}
	}
	return nil, fmt.Errorf("no report format for extension %q", ext)
}

// WriteFile renders r with sink into path. The report is written to a
// temporary file in the same directory and renamed into place, so a failed
// write leaves any existing file at path untouched.
func WriteFile(path string, sink Sink, r *Report) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".report-*")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := sink.Write(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s report: %w", sink.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp report: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod report: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename report: %w", err)
	}
	return nil
}

// ReadFile parses a report, choosing the format from the file extension.
func ReadFile(path string) (*Report, error) {
	sink, err := ForPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()
	r, err := sink.Read(f)
	if err != nil {
		return nil, fmt.Errorf("read %s report %s: %w", sink.Name(), path, err)
	}
	return r, nil
}
