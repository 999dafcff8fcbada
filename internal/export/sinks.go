package export

import (
	"encoding/json"
	"io"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// JSONSink writes indented JSON without HTML escaping. This is the canonical
// report format.
type JSONSink struct{}

func (JSONSink) Name() string { return "json" }
func (JSONSink) Ext() string  { return ".json" }

func (JSONSink) Write(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	return enc.Encode(r)
}

func (JSONSink) Read(rd io.Reader) (*Report, error) {
	var r Report
	if err := json.NewDecoder(rd).Decode(&r); err != nil {
		return nil, err
	}
	return &r, nil
}

// YAMLSink writes the report as a YAML document.
type YAMLSink struct{}

func (YAMLSink) Name() string { return "yaml" }
func (YAMLSink) Ext() string  { return ".yaml" }

func (YAMLSink) Write(w io.Writer, r *Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

func (YAMLSink) Read(rd io.Reader) (*Report, error) {
	var r Report
	if err := yaml.NewDecoder(rd).Decode(&r); err != nil {
		return nil, err
	}
	return &r, nil
}

// MsgpackSink writes a compact binary report.
type MsgpackSink struct{}

func (MsgpackSink) Name() string { return "msgpack" }
func (MsgpackSink) Ext() string  { return ".msgpack" }

func (MsgpackSink) Write(w io.Writer, r *Report) error {
	return msgpack.NewEncoder(w).Encode(r)
}

func (MsgpackSink) Read(rd io.Reader) (*Report, error) {
	var r Report
	if err := msgpack.NewDecoder(rd).Decode(&r); err != nil {
		return nil, err
	}
	return &r, nil
}
