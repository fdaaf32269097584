package spec

import (
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// KeyOrder maps a JSON pointer (e.g. "/paths", "/components/schemas/Pet/properties")
// to the keys of the mapping found there, in document order.
type KeyOrder map[string][]string

// ExtractKeyOrder parses raw YAML or JSON and records the key order of every
// mapping. Unparseable input yields an empty KeyOrder; callers then fall back
// to sorted keys.
func ExtractKeyOrder(raw []byte) KeyOrder {
	order := KeyOrder{}
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return order
	}
	var walk func(n *yaml.Node, pointer string)
	walk = func(n *yaml.Node, pointer string) {
		switch n.Kind {
		case yaml.DocumentNode:
			for _, c := range n.Content {
				walk(c, pointer)
			}
		case yaml.MappingNode:
			keys := make([]string, 0, len(n.Content)/2)
			for i := 0; i+1 < len(n.Content); i += 2 {
				key := n.Content[i].Value
				keys = append(keys, key)
				walk(n.Content[i+1], pointer+"/"+escapePointer(key))
			}
			order[pointer] = keys
		case yaml.SequenceNode:
			for i, c := range n.Content {
				walk(c, pointer+"/"+strconv.Itoa(i))
			}
		}
	}
	walk(&root, "")
	return order
}

// Keys returns all ordered as the keys appear at pointer in the source
// document. Keys unknown to the source (for example entries added by ref
// internalization) follow in sorted order.
func (o KeyOrder) Keys(pointer string, all []string) []string {
	present := make(map[string]bool, len(all))
	for _, k := range all {
		present[k] = true
	}
	seen := make(map[string]bool, len(all))
	out := make([]string, 0, len(all))
	for _, k := range o[pointer] {
		if !seen[k] && present[k] {
			out = append(out, k)
			seen[k] = true
		}
	}
	var rest []string
	for _, k := range all {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// orderedKeys is Keys for a plain map.
func orderedKeys[V any](o KeyOrder, pointer string, m map[string]V) []string {
	all := make([]string, 0, len(m))
	for k := range m {
		all = append(all, k)
	}
	return o.Keys(pointer, all)
}

func escapePointer(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "~", "~0"), "/", "~1")
}
