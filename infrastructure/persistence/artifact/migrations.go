package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/NikolaosSamperis/PlaqueMS-project/domain/network"
)

// Document is a generic JSON envelope that migrations rewrite in place.
type Document map[string]interface{}

// Migration upgrades an envelope by exactly one schema version.
type Migration struct {
	FromVersion int
	ToVersion   int
	Description string
	Up          func(doc Document) error
}

// Migrations is an ordered registry of single-step upgrades.
type Migrations struct {
	steps map[int]Migration
}

// NewMigrations creates an empty registry.
func NewMigrations() *Migrations {
	return &Migrations{steps: make(map[int]Migration)}
}

// Register adds a migration.
func (m *Migrations) Register(migration Migration) error {
	if migration.ToVersion != migration.FromVersion+1 {
		return fmt.Errorf("invalid migration: %d->%d must advance exactly one version",
			migration.FromVersion, migration.ToVersion)
	}
	if _, exists := m.steps[migration.FromVersion]; exists {
		return fmt.Errorf("migration from %d to %d already exists",
			migration.FromVersion, migration.ToVersion)
	}
	m.steps[migration.FromVersion] = migration
	return nil
}

// Upgrade applies migrations from -> to and returns the re-encoded envelope.
func (m *Migrations) Upgrade(payload []byte, from, to int) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode v%d artifact: %w", from, err)
	}

	for v := from; v < to; v++ {
		step, ok := m.steps[v]
		if !ok {
			return nil, fmt.Errorf("no migration found from version %d to %d", v, v+1)
		}
		if err := step.Up(doc); err != nil {
			return nil, fmt.Errorf("migration %d->%d failed: %w", step.FromVersion, step.ToVersion, err)
		}
		doc["schema_version"] = step.ToVersion
	}

	return json.Marshal(doc)
}

func defaultMigrations() *Migrations {
	m := NewMigrations()
	// Registration of built-in steps cannot fail.
	_ = m.Register(Migration{
		FromVersion: 1,
		ToVersion:   2,
		Description: "cluster labels become integers with -1 for unassigned; add stats",
		Up:          upgradeV1ToV2,
	})
	return m
}

// upgradeV1ToV2 converts v1 envelopes, which stored the cluster as a string
// with "NA" for nodes outside every cluster and carried no stats block.
func upgradeV1ToV2(doc Document) error {
	rawNodes, _ := doc["nodes"].([]interface{})
	sizes := make(map[int]int)
	unassigned := 0

	for i, raw := range rawNodes {
		node, ok := raw.(map[string]interface{})
		if !ok {
			return fmt.Errorf("node %d is not an object", i)
		}
		cluster, err := v1Cluster(node["cluster"])
		if err != nil {
			return fmt.Errorf("node %d: %w", i, err)
		}
		node["cluster"] = cluster
		if cluster == network.Unassigned {
			unassigned++
		} else {
			sizes[cluster]++
		}
	}
	if _, ok := doc["edges"]; !ok {
		doc["edges"] = []interface{}{}
	}

	largest := 0
	for _, n := range sizes {
		if n > largest {
			largest = n
		}
	}
	doc["stats"] = map[string]interface{}{
		"cluster_count":        len(sizes),
		"largest_cluster_size": largest,
		"unassigned_count":     unassigned,
	}
	return nil
}

func v1Cluster(v interface{}) (int, error) {
	switch c := v.(type) {
	case nil:
		return network.Unassigned, nil
	case string:
		c = strings.TrimSpace(c)
		if c == "" || strings.EqualFold(c, "NA") {
			return network.Unassigned, nil
		}
		n, err := strconv.Atoi(c)
		if err != nil {
			return 0, fmt.Errorf("cluster %q is not an integer", c)
		}
		return n, nil
	case json.Number:
		n, err := c.Int64()
		if err != nil {
			return 0, err
		}
		return int(n), nil
	}
	return 0, fmt.Errorf("unexpected cluster value %v", v)
}
