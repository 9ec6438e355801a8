// Package snapshot persists an enriched node list to disk and reloads it,
// so a debug run can reconstruct a topology without contacting a server.
package snapshot

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/amaizfinance/redis-rebalance/internal/topology"
)

// record is the on-disk shape of one topology.Node. It is a distinct type
// from topology.Node (rather than yaml tags on Node itself) so the wire
// schema can evolve independently of the in-memory representation.
type record struct {
	ID         string   `yaml:"id"`
	Host       string   `yaml:"host"`
	Port       int      `yaml:"port"`
	Flags      []string `yaml:"flags"`
	MasterID   string   `yaml:"master_id,omitempty"`
	SlotsEmpty bool     `yaml:"slots_empty"`
	Connected  bool     `yaml:"connected"`
	Datacenter string   `yaml:"datacenter,omitempty"`
	Hostname   string   `yaml:"hostname,omitempty"`
}

// document is the top-level snapshot schema: one list of node records.
type document struct {
	Nodes []record `yaml:"nodes"`
}

// Save writes nodes to path as YAML, preserving every topology.Node field.
func Save(path string, nodes []topology.Node) error {
	doc := document{Nodes: make([]record, len(nodes))}
	for i, n := range nodes {
		doc.Nodes[i] = toRecord(n)
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("snapshot: encoding: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("snapshot: writing %s: %w", path, err)
	}
	return nil
}

// Load reads and decodes a snapshot written by Save, reconstructing the
// node list without contacting any server.
func Load(path string) ([]topology.Node, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: reading %s: %w", path, err)
	}
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("snapshot: decoding %s: %w", path, err)
	}
	nodes := make([]topology.Node, len(doc.Nodes))
	for i, r := range doc.Nodes {
		nodes[i] = fromRecord(r)
	}
	return nodes, nil
}

func toRecord(n topology.Node) record {
	flags := make([]string, len(n.Flags))
	for i, f := range n.Flags {
		flags[i] = string(f)
	}
	return record{
		ID:         n.ID,
		Host:       n.Host,
		Port:       n.Port,
		Flags:      flags,
		MasterID:   n.MasterID,
		SlotsEmpty: n.SlotsEmpty,
		Connected:  n.Connected,
		Datacenter: n.Datacenter,
		Hostname:   n.Hostname,
	}
}

func fromRecord(r record) topology.Node {
	flags := make([]topology.Flag, len(r.Flags))
	for i, f := range r.Flags {
		flags[i] = topology.Flag(f)
	}
	return topology.Node{
		ID:         r.ID,
		Host:       r.Host,
		Port:       r.Port,
		Flags:      flags,
		MasterID:   r.MasterID,
		SlotsEmpty: r.SlotsEmpty,
		Connected:  r.Connected,
		Datacenter: r.Datacenter,
		Hostname:   r.Hostname,
	}
}
