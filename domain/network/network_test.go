package network_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NikolaosSamperis/PlaqueMS-project/domain/network"
	pkgerrors "github.com/NikolaosSamperis/PlaqueMS-project/pkg/errors"
)

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"  p02790 ", "P02790"},
		{"hrg", "HRG"},
		{"\tF13A1\n", "F13A1"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, network.NormalizeID(tt.raw), "raw=%q", tt.raw)
	}
}

func TestNewEdge_OrdersEndpoints(t *testing.T) {
	a := network.NewEdge("vcan", " HRG", 0.4, "ppi")
	b := network.NewEdge("HRG", "VCAN", 0.9, "ppi")

	assert.Equal(t, "HRG", a.Source)
	assert.Equal(t, "VCAN", a.Target)
	assert.Equal(t, a.Key(), b.Key())
}

func TestNewGraph_RejectsBrokenInvariants(t *testing.T) {
	nodes := []network.Node{
		network.NewNode("A", "", network.SourceRelational, nil),
		network.NewNode("B", "", network.SourceRelational, nil),
	}

	tests := []struct {
		name  string
		nodes []network.Node
		edges []network.Edge
	}{
		{"dangling edge", nodes, []network.Edge{network.NewEdge("A", "C", 1, "")}},
		{"self loop", nodes, []network.Edge{network.NewEdge("A", "a", 1, "")}},
		{"duplicate edge", nodes, []network.Edge{network.NewEdge("A", "B", 1, ""), network.NewEdge("B", "A", 2, "")}},
		{"duplicate node", append(nodes, network.NewNode("a", "", network.SourceGraph, nil)), nil},
		{"unnormalized node", []network.Node{{ID: "a"}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := network.NewGraph(tt.nodes, tt.edges)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsValidation(err))
		})
	}
}

func TestGraph_AccessorsReturnCopies(t *testing.T) {
	// Arrange
	g, err := network.NewGraph(
		[]network.Node{network.NewNode("b", "B", network.SourceGraph, network.Attributes{
			network.AttrFoldChange: network.Number(1.5),
		})},
		nil,
	)
	require.NoError(t, err)

	// Act
	nodes := g.Nodes()
	nodes[0].Attributes[network.AttrFoldChange] = network.Number(-3)

	// Assert
	n, ok := g.Node("B")
	require.True(t, ok)
	fc, _ := n.Attributes[network.AttrFoldChange].Float()
	assert.Equal(t, 1.5, fc)
}

func TestSelection_KeyIsCanonical(t *testing.T) {
	a, err := network.NewSelection(" Vienna ", "Core", "cellular", []string{"vcan", "HRG", " hrg"})
	require.NoError(t, err)
	b, err := network.NewSelection("vienna", "core", "Cellular", []string{"HRG", "VCAN"})
	require.NoError(t, err)

	assert.Equal(t, "cohort=vienna|region=core|extract=cellular|proteins=HRG,VCAN", a.Key())
	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, a.NetworkTitle(), b.NetworkTitle())
}

func TestSelection_RequiresCriteria(t *testing.T) {
	_, err := network.NewSelection("vienna", "  ", "cellular", nil)

	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Contains(t, err.Error(), "tissue_region is required")
}

func TestSelection_RejectsKeySeparators(t *testing.T) {
	tests := []struct {
		name     string
		cohort   string
		region   string
		proteins []string
	}{
		{name: "pipe in cohort", cohort: "a|region=b", region: "c"},
		{name: "equals in region", cohort: "a", region: "b=c"},
		{name: "comma in region", cohort: "a", region: "b,c"},
		{name: "pipe in protein", cohort: "a", region: "c", proteins: []string{"HRG|CP"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := network.NewSelection(tt.cohort, tt.region, "cellular", tt.proteins)

			require.Error(t, err)
			assert.True(t, pkgerrors.IsValidation(err))
		})
	}

	a, err := network.NewSelection("a", "b", "cellular", nil)
	require.NoError(t, err)
	b, err := network.NewSelection("a-b", "c", "cellular", nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.Key(), b.Key())
}

func TestReconcilePartition(t *testing.T) {
	g := mustGraph(t, "A", "B", "C", "D", "E")

	assignment, stale := network.ReconcilePartition(g, network.Partition{
		"a":     7,
		"b":     7,
		"C":     3,
		"d ":    3,
		"e":     3,
		"GHOST": 7,
	})

	assert.Equal(t, 1, stale)
	assert.Equal(t, 2, assignment.ClusterCount())
	// Larger remote cluster 3 becomes index 0.
	assert.Equal(t, 0, assignment.Cluster("C"))
	assert.Equal(t, 1, assignment.Cluster("A"))
	assert.Equal(t, 3, assignment.LargestClusterSize())
	assert.Equal(t, 0, assignment.UnassignedCount())
}

func TestReconcilePartition_OmittedNodesUnassigned(t *testing.T) {
	g := mustGraph(t, "A", "B", "C")

	assignment, stale := network.ReconcilePartition(g, network.Partition{"A": 1, "B": 1})

	assert.Zero(t, stale)
	assert.Equal(t, network.Unassigned, assignment.Cluster("C"))
	assert.Equal(t, 1, assignment.UnassignedCount())
	assert.Equal(t, 3, assignment.Len())
}

func TestReconcilePartition_CollidingNamesCountedStale(t *testing.T) {
	g := mustGraph(t, "HRG", "CP", "VCAN")

	assignment, stale := network.ReconcilePartition(g, network.Partition{
		"HRG":  1,
		"CP":   1,
		"hrg":  2,
		"VCAN": 3,
	})

	assert.Equal(t, 1, stale)
	assert.Equal(t, 2, assignment.ClusterCount())
	assert.Equal(t, assignment.Cluster("CP"), assignment.Cluster("HRG"))
	sizes := assignment.Sizes()
	for idx := 0; idx < assignment.ClusterCount(); idx++ {
		assert.Positive(t, sizes[idx], "cluster %d has no members", idx)
	}
}

func TestReconcilePartition_RenumberingIsStable(t *testing.T) {
	g := mustGraph(t, "A", "B", "C", "D")

	first, _ := network.ReconcilePartition(g, network.Partition{"A": 1, "B": 1, "C": 2, "D": 2})
	second, _ := network.ReconcilePartition(g, network.Partition{"A": 9, "B": 9, "C": 4, "D": 4})

	assert.Equal(t, first.Map(), second.Map())
}

func TestAttributeValue_JSON(t *testing.T) {
	attrs := network.Attributes{
		"fold_change": network.Number(-0.75),
		"significant": network.Flag(true),
		"tissue_area": network.Text("core"),
	}

	data, err := json.Marshal(attrs)
	require.NoError(t, err)
	assert.JSONEq(t, `{"fold_change":-0.75,"significant":true,"tissue_area":"core"}`, string(data))

	var back network.Attributes
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, attrs, back)
}

func mustGraph(t *testing.T, ids ...string) *network.Graph {
	t.Helper()
	nodes := make([]network.Node, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, network.NewNode(id, "", network.SourceRelational, nil))
	}
	g, err := network.NewGraph(nodes, nil)
	require.NoError(t, err)
	return g
}
