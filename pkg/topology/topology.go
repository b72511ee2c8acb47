// Package topology parses node declarations for a test topology and binds
// each node to the management endpoint used to reach it.
//
// The declaration format is line oriented:
//
//	# Nodes
//	[type=openswitch name="Switch 1"] sw1
//	[type=host name="Host 1"] hs1 hs2
//
//	# Links
//	sw1:1 -- hs1:1
//
// Attributes in brackets apply to every node (or the link) named on the same
// line. Links may reference nodes that were never declared; such nodes are
// created without attributes.
package topology

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// Node attribute keys with special meaning.
const (
	AttrType = "type"
	AttrName = "name"
)

// Node is a single device in the topology.
type Node struct {
	ID      string
	Attrs   map[string]string
	Binding *Binding
}

// Type returns the declared node type (e.g. "openswitch").
func (n *Node) Type() string {
	return n.Attrs[AttrType]
}

// Label returns the human-readable node name, or the ID when none was declared.
func (n *Node) Label() string {
	if name := n.Attrs[AttrName]; name != "" {
		return name
	}
	return n.ID
}

// Platform returns the binding's platform when set, otherwise the node type.
func (n *Node) Platform() string {
	if n.Binding != nil && n.Binding.Platform != "" {
		return n.Binding.Platform
	}
	return n.Type()
}

// Endpoint is one side of a link: a node and an optional port label.
type Endpoint struct {
	Node string
	Port string
}

func (e Endpoint) String() string {
	if e.Port == "" {
		return e.Node
	}
	return e.Node + ":" + e.Port
}

// Link connects two endpoints.
type Link struct {
	A, B  Endpoint
	Attrs map[string]string
}

// Topology is the parsed set of nodes and links.
type Topology struct {
	nodes map[string]*Node
	order []string
	Links []Link
}

// Get returns the node with the given ID, or nil if the topology has none.
func (t *Topology) Get(id string) *Node {
	if t == nil {
		return nil
	}
	return t.nodes[id]
}

// NodeNames returns all node IDs sorted.
func (t *Topology) NodeNames() []string {
	names := make([]string, len(t.order))
	copy(names, t.order)
	sort.Strings(names)
	return names
}

// Nodes returns the nodes in declaration order.
func (t *Topology) Nodes() []*Node {
	nodes := make([]*Node, 0, len(t.order))
	for _, id := range t.order {
		nodes = append(nodes, t.nodes[id])
	}
	return nodes
}

// Load reads and parses a topology declaration file.
func Load(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading topology %s: %w", path, err)
	}
	t, err := ParseDeclaration(string(data))
	if err != nil {
		return nil, fmt.Errorf("parsing topology %s: %w", path, err)
	}
	return t, nil
}

// ParseDeclaration parses a topology declaration.
func ParseDeclaration(text string) (*Topology, error) {
	t := &Topology{nodes: make(map[string]*Node)}

	for i, raw := range strings.Split(text, "\n") {
		lineNo := i + 1
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		attrs := map[string]string{}
		if strings.HasPrefix(line, "[") {
			end, err := closingBracket(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			attrs, err = parseAttrs(line[1:end])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			line = strings.TrimSpace(line[end+1:])
		}

		if line == "" {
			return nil, fmt.Errorf("line %d: attributes without a node or link", lineNo)
		}

		if strings.Contains(line, "--") {
			link, err := parseLink(line, attrs)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			t.ensureNode(link.A.Node)
			t.ensureNode(link.B.Node)
			t.Links = append(t.Links, link)
			continue
		}

		for _, id := range strings.Fields(line) {
			if err := validID(id); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			if _, exists := t.nodes[id]; exists {
				return nil, fmt.Errorf("line %d: duplicate node %q", lineNo, id)
			}
			nodeAttrs := make(map[string]string, len(attrs))
			for k, v := range attrs {
				nodeAttrs[k] = v
			}
			t.nodes[id] = &Node{ID: id, Attrs: nodeAttrs}
			t.order = append(t.order, id)
		}
	}

	return t, nil
}

func (t *Topology) ensureNode(id string) {
	if _, ok := t.nodes[id]; ok {
		return
	}
	t.nodes[id] = &Node{ID: id, Attrs: map[string]string{}}
	t.order = append(t.order, id)
}

func parseLink(line string, attrs map[string]string) (Link, error) {
	parts := strings.Split(line, "--")
	if len(parts) != 2 {
		return Link{}, fmt.Errorf("malformed link %q", line)
	}
	a, err := parseEndpoint(parts[0])
	if err != nil {
		return Link{}, err
	}
	b, err := parseEndpoint(parts[1])
	if err != nil {
		return Link{}, err
	}
	return Link{A: a, B: b, Attrs: attrs}, nil
}

func parseEndpoint(s string) (Endpoint, error) {
	s = strings.TrimSpace(s)
	node, port, _ := strings.Cut(s, ":")
	if err := validID(node); err != nil {
		return Endpoint{}, fmt.Errorf("link endpoint %q: %w", s, err)
	}
	return Endpoint{Node: node, Port: port}, nil
}

func validID(id string) error {
	if id == "" {
		return fmt.Errorf("empty node id")
	}
	for _, r := range id {
		if r == '[' || r == ']' || r == '"' || r == '=' || r == ':' {
			return fmt.Errorf("invalid character %q in node id %q", r, id)
		}
	}
	return nil
}

// closingBracket returns the index of the ']' that closes the attribute block
// opened at line[0], skipping brackets inside quoted values.
func closingBracket(line string) (int, error) {
	inQuote := false
	for i := 1; i < len(line); i++ {
		switch line[i] {
		case '"':
			inQuote = !inQuote
		case ']':
			if !inQuote {
				return i, nil
			}
		}
	}
	if inQuote {
		return 0, fmt.Errorf("unterminated quote in attributes")
	}
	return 0, fmt.Errorf("unterminated attribute block")
}

// parseAttrs parses `k=v k2="quoted value" flag` into a map. A bare key is
// stored with the value "true".
func parseAttrs(s string) (map[string]string, error) {
	attrs := map[string]string{}
	i := 0
	for {
		for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
			i++
		}
		if i >= len(s) {
			return attrs, nil
		}

		start := i
		for i < len(s) && s[i] != '=' && s[i] != ' ' && s[i] != '\t' {
			i++
		}
		key := s[start:i]
		if key == "" {
			return nil, fmt.Errorf("empty attribute name")
		}

		if i >= len(s) || s[i] != '=' {
			attrs[key] = "true"
			continue
		}
		i++ // '='

		var value string
		if i < len(s) && s[i] == '"' {
			end := strings.IndexByte(s[i+1:], '"')
			if end < 0 {
				return nil, fmt.Errorf("unterminated quote in attribute %q", key)
			}
			value = s[i+1 : i+1+end]
			i += end + 2
		} else {
			start = i
			for i < len(s) && s[i] != ' ' && s[i] != '\t' {
				i++
			}
			value = s[start:i]
		}
		attrs[key] = value
	}
}
