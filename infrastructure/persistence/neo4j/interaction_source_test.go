package neo4j

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NikolaosSamperis/PlaqueMS-project/domain/network"
)

// fakeRunner answers by query shape.
type fakeRunner struct {
	nodes   []*neo4j.Record
	edges   []*neo4j.Record
	edgeErr error
	params  []map[string]interface{}
}

func (f *fakeRunner) Read(_ context.Context, cypher string, params map[string]interface{}) ([]*neo4j.Record, error) {
	f.params = append(f.params, params)
	if strings.Contains(cypher, "INTERACTS_WITH") {
		return f.edges, f.edgeErr
	}
	return f.nodes, nil
}

func record(keys []string, values ...interface{}) *neo4j.Record {
	return &neo4j.Record{Keys: keys, Values: values}
}

var (
	nodeKeys = []string{"id", "label", "meanAbundance", "sampleCount", "patientCount", "area"}
	edgeKeys = []string{"source", "target", "weight", "type"}
)

func TestInteractionSource_FetchInteractions(t *testing.T) {
	// Arrange
	runner := &fakeRunner{
		nodes: []*neo4j.Record{
			record(nodeKeys, "HRG", "HRG", 0.92, int64(14), int64(7), "core"),
			record(nodeKeys, "F13A1", "F13A1", nil, int64(3), int64(3), nil),
			record(nodeKeys, "", "orphan", 1.0, int64(1), int64(1), "core"),
		},
		edges: []*neo4j.Record{
			record(edgeKeys, "HRG", "CP", 0.9, "ppi"),
			record(edgeKeys, "C4B", "F13A1", int64(1), "coexpression"),
			record(edgeKeys, "HRG", nil, 0.4, "ppi"),
			record(edgeKeys, "HRG", "VCAN", "high", "ppi"),
		},
	}
	source := NewInteractionSource(runner, zap.NewNop())
	sel, err := network.NewSelection("Vienna", "Core", "Cellular", []string{"hrg"})
	require.NoError(t, err)

	// Act
	set, err := source.FetchInteractions(context.Background(), sel)

	// Assert
	require.NoError(t, err)
	require.Len(t, set.Nodes, 2)
	hrg := set.Nodes[0]
	assert.Equal(t, "HRG", hrg.ID)
	assert.Equal(t, network.SourceGraph, hrg.Source)
	abundance, ok := hrg.Attributes[network.AttrMeanAbundance].Float()
	require.True(t, ok)
	assert.InDelta(t, 0.92, abundance, 1e-9)
	assert.Equal(t, "core", hrg.Attributes[network.AttrTissueArea].String())
	assert.NotContains(t, set.Nodes[1].Attributes, network.AttrMeanAbundance)

	require.Len(t, set.Edges, 2)
	assert.Equal(t, network.EdgeKey{A: "CP", B: "HRG"}, set.Edges[0].Key())
	assert.Equal(t, 1.0, set.Edges[1].Weight)
	assert.Equal(t, "coexpression", set.Edges[1].Type)

	require.Len(t, runner.params, 2)
	assert.Equal(t, map[string]interface{}{
		"cohort": "vienna", "region": "core", "extract": "cellular", "proteins": []string{"HRG"},
	}, runner.params[0])
}

func TestInteractionSource_NoProteinFilterBindsEmptyList(t *testing.T) {
	runner := &fakeRunner{}
	source := NewInteractionSource(runner, zap.NewNop())
	sel, err := network.NewSelection("Vienna", "periphery", "soluble", nil)
	require.NoError(t, err)

	set, err := source.FetchInteractions(context.Background(), sel)

	require.NoError(t, err)
	assert.Empty(t, set.Nodes)
	assert.Equal(t, []string{}, runner.params[0]["proteins"])
}

func TestInteractionSource_EdgeQueryFailure(t *testing.T) {
	runner := &fakeRunner{edgeErr: errors.New("Neo.ClientError.Security.Unauthorized")}
	source := NewInteractionSource(runner, zap.NewNop())
	sel, err := network.NewSelection("Vienna", "core", "cellular", nil)
	require.NoError(t, err)

	_, err = source.FetchInteractions(context.Background(), sel)

	assert.ErrorContains(t, err, "query interactions")
}
