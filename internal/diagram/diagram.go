// Package diagram models the mind-map documents exchanged with the diagram
// storage service.
package diagram

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Node types
const (
	TypeRoot     = "root"
	TypeCategory = "category"
	TypeLeaf     = "leaf"
)

// Payload is a mind-map document
type Payload struct {
	Metadata  Metadata            `json:"metadata"`
	Nodes     []Node              `json:"nodes"`
	Edges     []Edge              `json:"edges"`
	Hierarchy map[string][]string `json:"hierarchy"`
}

// Metadata describes a Payload as a whole
type Metadata struct {
	Topic       string `json:"topic"`
	ContentType string `json:"contentType"`
	NodeCount   int    `json:"nodeCount"`
}

// Node is one labelled concept
type Node struct {
	ID   string   `json:"id"`
	Data NodeData `json:"data"`
}

// NodeData is the display content of a Node
type NodeData struct {
	Label        string `json:"label"`
	Type         string `json:"type"`
	Summary      string `json:"summary,omitempty"`
	HoverSummary string `json:"hoverSummary,omitempty"`
}

// Edge links a parent node to a child node
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type,omitempty"`
}

// FromMap decodes a generic JSON object into a Payload. Unknown fields are
// ignored.
func FromMap(m map[string]any) (*Payload, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding diagram: %w", err)
	}
	return &p, nil
}

// Problems lists the ways p breaks the storage service's structural rules:
// ids are unique, edges and hierarchy only reference existing nodes, every
// edge is mirrored in the hierarchy, there is exactly one root, and
// nodeCount matches the node list.
func (p *Payload) Problems() []string {
	var problems []string

	ids := make(map[string]bool, len(p.Nodes))
	roots := 0
	for _, n := range p.Nodes {
		if n.ID == "" {
			problems = append(problems, "node with empty id")
			continue
		}
		if ids[n.ID] {
			problems = append(problems, fmt.Sprintf("duplicate node id %q", n.ID))
		}
		ids[n.ID] = true
		if n.Data.Type == TypeRoot {
			roots++
		}
	}
	if len(p.Nodes) > 0 && roots != 1 {
		problems = append(problems, fmt.Sprintf("expected exactly one root node, found %d", roots))
	}

	if p.Metadata.NodeCount != len(p.Nodes) {
		problems = append(problems, fmt.Sprintf("metadata.nodeCount is %d but there are %d nodes", p.Metadata.NodeCount, len(p.Nodes)))
	}

	edgeIDs := make(map[string]bool, len(p.Edges))
	for _, e := range p.Edges {
		if e.ID != "" {
			if edgeIDs[e.ID] {
				problems = append(problems, fmt.Sprintf("duplicate edge id %q", e.ID))
			}
			edgeIDs[e.ID] = true
		}
		if !ids[e.Source] {
			problems = append(problems, fmt.Sprintf("edge %q references unknown source %q", e.ID, e.Source))
		}
		if !ids[e.Target] {
			problems = append(problems, fmt.Sprintf("edge %q references unknown target %q", e.ID, e.Target))
		}
		if !contains(p.Hierarchy[e.Source], e.Target) {
			problems = append(problems, fmt.Sprintf("edge %s -> %s is missing from hierarchy", e.Source, e.Target))
		}
	}

	parents := make([]string, 0, len(p.Hierarchy))
	for parent := range p.Hierarchy {
		parents = append(parents, parent)
	}
	sort.Strings(parents)
	for _, parent := range parents {
		if !ids[parent] {
			problems = append(problems, fmt.Sprintf("hierarchy references unknown node %q", parent))
		}
		for _, child := range p.Hierarchy[parent] {
			if !ids[child] {
				problems = append(problems, fmt.Sprintf("hierarchy references unknown node %q", child))
			}
		}
	}

	return problems
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
