// Package artifact implements the stable, versioned wire format of persisted
// clustering artifacts.
package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/NikolaosSamperis/PlaqueMS-project/domain/network"
)

// CurrentVersion is the schema version written by Encode.
const CurrentVersion = 2

type nodeRecord struct {
	ID         string             `json:"id"`
	Label      string             `json:"label"`
	Source     string             `json:"source"`
	Attributes network.Attributes `json:"attributes,omitempty"`
	Cluster    int                `json:"cluster"`
}

type edgeRecord struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"weight"`
	Type   string  `json:"type,omitempty"`
}

type envelope struct {
	SchemaVersion int                  `json:"schema_version"`
	SelectionKey  string               `json:"selection_key"`
	Nodes         []nodeRecord         `json:"nodes"`
	Edges         []edgeRecord         `json:"edges"`
	Stats         network.ClusterStats `json:"stats"`
}

type versionProbe struct {
	SchemaVersion int `json:"schema_version"`
}

// Codec encodes artifacts as JSON envelopes and upgrades older envelopes on
// decode.
type Codec struct {
	migrations *Migrations
}

// NewCodec creates a codec with the built-in migrations registered.
func NewCodec() *Codec {
	return &Codec{migrations: defaultMigrations()}
}

// Encode writes the artifact deterministically: nodes sorted by id, edges by
// (source, target), attribute keys sorted, no timestamps.
func (c *Codec) Encode(a *network.Artifact) ([]byte, error) {
	env := envelope{
		SchemaVersion: CurrentVersion,
		SelectionKey:  a.SelectionKey,
		Nodes:         make([]nodeRecord, 0, a.Graph.NodeCount()),
		Edges:         make([]edgeRecord, 0, a.Graph.EdgeCount()),
		Stats:         a.Stats(),
	}
	for _, n := range a.Graph.Nodes() {
		env.Nodes = append(env.Nodes, nodeRecord{
			ID:         n.ID,
			Label:      n.Label,
			Source:     n.Source,
			Attributes: n.Attributes,
			Cluster:    a.Assignment.Cluster(n.ID),
		})
	}
	for _, e := range a.Graph.Edges() {
		env.Edges = append(env.Edges, edgeRecord(e))
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(env); err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reads an envelope of any known version.
func (c *Codec) Decode(payload []byte) (*network.Artifact, error) {
	var probe versionProbe
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil, fmt.Errorf("decode artifact header: %w", err)
	}

	switch {
	case probe.SchemaVersion <= 0:
		return nil, fmt.Errorf("artifact has no schema_version")
	case probe.SchemaVersion > CurrentVersion:
		return nil, fmt.Errorf("artifact schema version %d is newer than supported version %d",
			probe.SchemaVersion, CurrentVersion)
	case probe.SchemaVersion < CurrentVersion:
		upgraded, err := c.migrations.Upgrade(payload, probe.SchemaVersion, CurrentVersion)
		if err != nil {
			return nil, err
		}
		payload = upgraded
	}

	var env envelope
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}

	nodes := make([]network.Node, 0, len(env.Nodes))
	clusters := make(map[string]int, len(env.Nodes))
	for _, n := range env.Nodes {
		nodes = append(nodes, network.Node{
			ID:         n.ID,
			Label:      n.Label,
			Source:     n.Source,
			Attributes: n.Attributes,
		})
		clusters[n.ID] = n.Cluster
	}
	edges := make([]network.Edge, 0, len(env.Edges))
	for _, e := range env.Edges {
		edges = append(edges, network.Edge(e))
	}

	g, err := network.NewGraph(nodes, edges)
	if err != nil {
		return nil, fmt.Errorf("artifact graph: %w", err)
	}
	return network.NewArtifact(env.SelectionKey, g, network.NewClusterAssignment(g, clusters))
}
