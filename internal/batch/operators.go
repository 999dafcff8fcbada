package batch

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// OperatorCounts maps an operator symbol to its occurrences. Encoded reports
// list the symbols in Operators order, then any other key sorted.
type OperatorCounts map[string]int

func (o OperatorCounts) keys() []string {
	out := make([]string, 0, len(o))
	known := make(map[string]bool, len(Operators))
	for _, op := range Operators {
		known[op] = true
		if _, ok := o[op]; ok {
			out = append(out, op)
		}
	}
	var rest []string
	for k := range o {
		if !known[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func (o OperatorCounts) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(o[k]))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (o OperatorCounts) MarshalYAML() (any, error) {
	if o == nil {
		return nil, nil
	}
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range o.keys() {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(o[k])},
		)
	}
	return node, nil
}
