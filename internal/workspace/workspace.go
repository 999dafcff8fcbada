// Package workspace manages the ~/.gramgen/ directory hierarchy.
//
// Directory layout:
//
//	~/.gramgen/<workspace>/
//	    <grammar>.toml       # manifest: source path, batch parameters, seed, format
//	    <grammar>.grammar    # copy of the grammar rules
//	    <grammar>/           # reports produced for that grammar
package workspace

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"gramgen/internal/batch"
	"gramgen/internal/grammar"
)

const (
	manifestExt = ".toml"
	grammarExt  = ".grammar"
)

// Workspace is a named directory (~/.gramgen/<name>/).
type Workspace struct {
	Name string
	Dir  string
}

// Manifest stores how a grammar is run inside a workspace.
type Manifest struct {
	Source  string       `toml:"source"`
	Params  batch.Params `toml:"params"`
	Seed    uint64       `toml:"seed"`
	Format  string       `toml:"format"`
	AddedAt time.Time    `toml:"added_at"`
}

// baseDir returns the ~/.gramgen directory.
func baseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	return filepath.Join(home, ".gramgen"), nil
}

func validName(kind, name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid %s name %q", kind, name)
	}
	return nil
}

// Init creates ~/.gramgen/<name>/ and errors if it already exists.
func Init(name string) (*Workspace, error) {
	if err := validName("workspace", name); err != nil {
		return nil, err
	}
	base, err := baseDir()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(base, name)
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("workspace %q already exists at %s", name, dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{Name: name, Dir: dir}, nil
}

// Open opens an existing workspace. Returns an error if not found.
func Open(name string) (*Workspace, error) {
	if err := validName("workspace", name); err != nil {
		return nil, err
	}
	base, err := baseDir()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(base, name)
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("workspace %q not found (run 'gramgen init %s' first)", name, name)
	}
	return &Workspace{Name: name, Dir: dir}, nil
}

// List returns the names of all workspaces under ~/.gramgen/.
func List() ([]string, error) {
	base, err := baseDir()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read gramgen dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Remove deletes a workspace and all its contents.
func Remove(name string) error {
	w, err := Open(name)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(w.Dir); err != nil {
		return fmt.Errorf("remove workspace: %w", err)
	}
	return nil
}

func (w *Workspace) manifestPath(name string) string {
	return filepath.Join(w.Dir, name+manifestExt)
}

// GrammarPath returns the path of the stored grammar copy.
func (w *Workspace) GrammarPath(name string) string {
	return filepath.Join(w.Dir, name+grammarExt)
}

// ReportDir returns the directory holding reports for a grammar.
func (w *Workspace) ReportDir(name string) string {
	return filepath.Join(w.Dir, name)
}

// AddGrammar copies the grammar at src into the workspace and writes its
// manifest. The grammar must load; a duplicate name is an error.
func (w *Workspace) AddGrammar(name, src string, m Manifest) error {
	if err := validName("grammar", name); err != nil {
		return err
	}
	if _, err := os.Stat(w.manifestPath(name)); err == nil {
		return fmt.Errorf("grammar %q already exists in workspace", name)
	}
	if err := m.Params.Validate(); err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return &grammar.LoadError{Path: src, Err: err}
	}
	if _, err := grammar.Load(bytes.NewReader(data), nil); err != nil {
		return fmt.Errorf("grammar %s: %w", src, err)
	}

	if m.Source == "" {
		if abs, err := filepath.Abs(src); err == nil {
			m.Source = abs
		} else {
			m.Source = src
		}
	}
	if m.AddedAt.IsZero() {
		m.AddedAt = time.Now().UTC().Truncate(time.Second)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(w.GrammarPath(name), data, 0o644); err != nil {
		return fmt.Errorf("write grammar copy: %w", err)
	}
	if err := os.WriteFile(w.manifestPath(name), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// LoadManifest reads and parses a grammar manifest.
func (w *Workspace) LoadManifest(name string) (*Manifest, error) {
	var m Manifest
	if _, err := toml.DecodeFile(w.manifestPath(name), &m); err != nil {
		return nil, fmt.Errorf("read manifest %q: %w", name, err)
	}
	return &m, nil
}

// ListGrammars returns grammar names derived from manifest files, sorted.
func (w *Workspace) ListGrammars() ([]string, error) {
	entries, err := os.ReadDir(w.Dir)
	if err != nil {
		return nil, fmt.Errorf("read workspace dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), manifestExt) {
			names = append(names, strings.TrimSuffix(e.Name(), manifestExt))
		}
	}
	sort.Strings(names)
	return names, nil
}

// RemoveGrammar removes a grammar's manifest, its copy and its reports.
func (w *Workspace) RemoveGrammar(name string) error {
	path := w.manifestPath(name)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("grammar %q not found in workspace", name)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove manifest: %w", err)
	}
	if err := os.Remove(w.GrammarPath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove grammar copy: %w", err)
	}
	if err := os.RemoveAll(w.ReportDir(name)); err != nil {
		return fmt.Errorf("remove reports: %w", err)
	}
	return nil
}

// ListReports returns the report files produced for a grammar, sorted by name
// (and therefore by creation time).
func (w *Workspace) ListReports(name string) ([]string, error) {
	entries, err := os.ReadDir(w.ReportDir(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read report dir %q: %w", name, err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "report-") {
			out = append(out, filepath.Join(w.ReportDir(name), e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}
