// Package neo4j reads protein interactions and sample context from the
// PlaqueMS graph database.
package neo4j

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/NikolaosSamperis/PlaqueMS-project/application/ports"
	"github.com/NikolaosSamperis/PlaqueMS-project/domain/network"
	pkgerrors "github.com/NikolaosSamperis/PlaqueMS-project/pkg/errors"
)

// Config holds driver settings.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// Runner executes a read query and returns all records.
type Runner interface {
	Read(ctx context.Context, cypher string, params map[string]interface{}) ([]*neo4j.Record, error)
}

// DriverRunner runs queries in managed read transactions.
type DriverRunner struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewDriver connects to Neo4j and verifies connectivity.
func NewDriver(ctx context.Context, cfg Config) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, pkgerrors.NewDataSourceUnavailableError(pkgerrors.SourceGraph, err)
	}
	return driver, nil
}

// NewDriverRunner creates a runner against database; empty means the
// server default.
func NewDriverRunner(driver neo4j.DriverWithContext, database string) *DriverRunner {
	return &DriverRunner{driver: driver, database: database}
}

// Read implements Runner.
func (r *DriverRunner) Read(ctx context.Context, cypher string, params map[string]interface{}) ([]*neo4j.Record, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: r.database,
	})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*neo4j.Record), nil
}

// Proteins measured in the selected samples, with abundance context.
// Protein.name is a list of aliases; the first one is the display name.
const proteinContextQuery = `
MATCH (s:Sample)-[r:ABUNDANCE]->(p:Protein)
WHERE toLower(s.cohort) = $cohort
  AND toLower(s.area) = $region
  AND toLower(s.experiment) = $extract
WITH p, [nm IN p.name | toUpper(trim(nm))] AS names,
     avg(r.abundance) AS meanAbundance,
     count(DISTINCT s) AS sampleCount,
     count(DISTINCT s.patientID) AS patientCount,
     head(collect(DISTINCT s.area)) AS area
WHERE size($proteins) = 0 OR any(nm IN names WHERE nm IN $proteins)
RETURN head(names) AS id, head(p.name) AS label,
       meanAbundance, sampleCount, patientCount, area
ORDER BY id`

// Interactions touching at least one protein measured in the selection. The
// partner may lie outside the selection; such edges are dropped during
// assembly.
const interactionQuery = `
MATCH (s:Sample)-[:ABUNDANCE]->(a:Protein)
WHERE toLower(s.cohort) = $cohort
  AND toLower(s.area) = $region
  AND toLower(s.experiment) = $extract
WITH DISTINCT a
WHERE size($proteins) = 0 OR any(nm IN a.name WHERE toUpper(trim(nm)) IN $proteins)
MATCH (a)-[i:INTERACTS_WITH]-(b:Protein)
RETURN head(a.name) AS source, head(b.name) AS target,
       coalesce(i.weight, i.score, 1.0) AS weight,
       coalesce(i.type, 'ppi') AS type`

// InteractionSource implements ports.InteractionSource.
type InteractionSource struct {
	runner Runner
	logger *zap.Logger
}

// NewInteractionSource creates a new interaction source
func NewInteractionSource(runner Runner, logger *zap.Logger) *InteractionSource {
	return &InteractionSource{runner: runner, logger: logger}
}

// FetchInteractions returns sample context nodes and interaction edges.
func (s *InteractionSource) FetchInteractions(ctx context.Context, sel network.Selection) (*ports.InteractionSet, error) {
	params := queryParams(sel)

	nodeRecords, err := s.runner.Read(ctx, proteinContextQuery, params)
	if err != nil {
		return nil, fmt.Errorf("query protein context: %w", err)
	}
	edgeRecords, err := s.runner.Read(ctx, interactionQuery, params)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}

	set := &ports.InteractionSet{
		Nodes: make([]network.Node, 0, len(nodeRecords)),
		Edges: make([]network.Edge, 0, len(edgeRecords)),
	}
	for _, rec := range nodeRecords {
		if node, ok := nodeFromRecord(rec); ok {
			set.Nodes = append(set.Nodes, node)
		}
	}
	skipped := 0
	for _, rec := range edgeRecords {
		edge, ok := edgeFromRecord(rec)
		if !ok {
			skipped++
			continue
		}
		set.Edges = append(set.Edges, edge)
	}

	s.logger.Debug("Fetched interactions",
		zap.String("selection_key", sel.Key()),
		zap.Int("nodes", len(set.Nodes)),
		zap.Int("edges", len(set.Edges)),
		zap.Int("unreadable_edges", skipped),
	)
	return set, nil
}

func queryParams(sel network.Selection) map[string]interface{} {
	proteins := make([]string, len(sel.ProteinIDs))
	copy(proteins, sel.ProteinIDs)
	return map[string]interface{}{
		"cohort":   strings.ToLower(sel.Cohort),
		"region":   strings.ToLower(sel.TissueRegion),
		"extract":  strings.ToLower(sel.ProteomeExtract),
		"proteins": proteins,
	}
}

func nodeFromRecord(rec *neo4j.Record) (network.Node, bool) {
	id := recordString(rec, "id")
	if strings.TrimSpace(id) == "" {
		return network.Node{}, false
	}
	attrs := network.Attributes{}
	if v, ok := recordFloat(rec, "meanAbundance"); ok {
		attrs[network.AttrMeanAbundance] = network.Number(v)
	}
	if v, ok := recordFloat(rec, "sampleCount"); ok {
		attrs[network.AttrSampleCount] = network.Number(v)
	}
	if v, ok := recordFloat(rec, "patientCount"); ok {
		attrs[network.AttrPatientCount] = network.Number(v)
	}
	if area := recordString(rec, "area"); area != "" {
		attrs[network.AttrTissueArea] = network.Text(area)
	}
	return network.NewNode(id, recordString(rec, "label"), network.SourceGraph, attrs), true
}

func edgeFromRecord(rec *neo4j.Record) (network.Edge, bool) {
	source := recordString(rec, "source")
	target := recordString(rec, "target")
	if source == "" || target == "" {
		return network.Edge{}, false
	}
	weight, ok := recordFloat(rec, "weight")
	if !ok {
		return network.Edge{}, false
	}
	return network.NewEdge(source, target, weight, recordString(rec, "type")), true
}

func recordString(rec *neo4j.Record, key string) string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func recordFloat(rec *neo4j.Record, key string) (float64, bool) {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	}
	return 0, false
}

var _ ports.InteractionSource = (*InteractionSource)(nil)
