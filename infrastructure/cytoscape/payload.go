package cytoscape

import (
	"fmt"
	"math"
	"strings"

	"github.com/NikolaosSamperis/PlaqueMS-project/application/ports"
	"github.com/NikolaosSamperis/PlaqueMS-project/domain/network"
)

// Diverging fold-change palette: down-regulated, neutral, up-regulated.
const (
	colorDown    = "#2166AC"
	colorNeutral = "#F7F7F7"
	colorUp      = "#B2182B"
)

// cyNetwork is the Cytoscape.js JSON document accepted by POST /v1/networks.
type cyNetwork struct {
	Data     map[string]interface{} `json:"data"`
	Elements cyElements             `json:"elements"`
}

type cyElements struct {
	Nodes []cyElement `json:"nodes"`
	Edges []cyElement `json:"edges"`
}

type cyElement struct {
	Data map[string]interface{} `json:"data"`
}

// buildNetwork renders g. Nodes are keyed by their normalized identifier in
// both id and name so the partition can be read back by name.
func buildNetwork(title string, g *network.Graph, params ports.ClusteringParams) cyNetwork {
	doc := cyNetwork{
		Data: map[string]interface{}{"name": title},
		Elements: cyElements{
			Nodes: make([]cyElement, 0, g.NodeCount()),
			Edges: make([]cyElement, 0, g.EdgeCount()),
		},
	}

	for _, n := range g.Nodes() {
		data := make(map[string]interface{}, len(n.Attributes)+4)
		for _, key := range n.Attributes.Keys() {
			data[key] = n.Attributes[key].Interface()
		}
		data["id"] = n.ID
		data["name"] = n.ID
		data["label"] = n.Label
		data["source"] = n.Source
		doc.Elements.Nodes = append(doc.Elements.Nodes, cyElement{Data: data})
	}

	for i, e := range g.Edges() {
		data := map[string]interface{}{
			"id":          fmt.Sprintf("e%d", i),
			"source":      e.Source,
			"target":      e.Target,
			"weight":      e.Weight,
			"interaction": edgeInteraction(e),
		}
		if params.WeightAttribute != "" {
			data[params.WeightAttribute] = e.Weight
		}
		doc.Elements.Edges = append(doc.Elements.Edges, cyElement{Data: data})
	}
	return doc
}

func edgeInteraction(e network.Edge) string {
	if e.Type == "" {
		return "interacts_with"
	}
	return e.Type
}

// cyStyle is the body of POST /v1/styles.
type cyStyle struct {
	Title    string           `json:"title"`
	Defaults []cyDefault      `json:"defaults"`
	Mappings []cyStyleMapping `json:"mappings"`
}

type cyDefault struct {
	VisualProperty string      `json:"visualProperty"`
	Value          interface{} `json:"value"`
}

type cyStyleMapping struct {
	MappingType       string           `json:"mappingType"`
	MappingColumn     string           `json:"mappingColumn"`
	MappingColumnType string           `json:"mappingColumnType"`
	VisualProperty    string           `json:"visualProperty"`
	Points            []cyMappingPoint `json:"points,omitempty"`
}

type cyMappingPoint struct {
	Value   float64 `json:"value"`
	Lesser  string  `json:"lesser"`
	Equal   string  `json:"equal"`
	Greater string  `json:"greater"`
}

func newStyle(name string) cyStyle {
	return cyStyle{
		Title: name,
		Defaults: []cyDefault{
			{VisualProperty: "NODE_FILL_COLOR", Value: colorNeutral},
			{VisualProperty: "NODE_SIZE", Value: 40},
			{VisualProperty: "EDGE_TRANSPARENCY", Value: 160},
		},
		Mappings: []cyStyleMapping{},
	}
}

// styleMappings colours nodes by fold change on a scale symmetric around
// zero and sizes edges by weight. The colour mapping is omitted when no node
// carries a non-zero fold change.
func styleMappings(g *network.Graph, params ports.ClusteringParams) []cyStyleMapping {
	mappings := []cyStyleMapping{
		{
			MappingType:       "passthrough",
			MappingColumn:     "label",
			MappingColumnType: "String",
			VisualProperty:    "NODE_LABEL",
		},
		{
			MappingType:       "passthrough",
			MappingColumn:     weightColumn(params),
			MappingColumnType: "Double",
			VisualProperty:    "EDGE_WIDTH",
		},
	}

	limit := g.MaxAbsAttribute(network.AttrFoldChange)
	if limit > 0 && !math.IsInf(limit, 0) {
		mappings = append(mappings, cyStyleMapping{
			MappingType:       "continuous",
			MappingColumn:     network.AttrFoldChange,
			MappingColumnType: "Double",
			VisualProperty:    "NODE_FILL_COLOR",
			Points: []cyMappingPoint{
				{Value: -limit, Lesser: colorDown, Equal: colorDown, Greater: colorDown},
				{Value: 0, Lesser: colorNeutral, Equal: colorNeutral, Greater: colorNeutral},
				{Value: limit, Lesser: colorUp, Equal: colorUp, Greater: colorUp},
			},
		})
	}
	return mappings
}

func weightColumn(params ports.ClusteringParams) string {
	if params.WeightAttribute == "" {
		return "weight"
	}
	return params.WeightAttribute
}

// clusterCommand is the body of POST /v1/commands/cluster/{algorithm}.
func clusterCommand(suid int64, params ports.ClusteringParams) map[string]interface{} {
	return map[string]interface{}{
		"network":                fmt.Sprintf("SUID:%d", suid),
		"attribute":              weightColumn(params),
		"clusterAttribute":       params.ClusterAttribute,
		"inflation_parameter":    params.Inflation,
		"iterations":             params.Iterations,
		"maxResidual":            params.MaxResidual,
		"clusteringThresh":       params.ClusteringThreshold,
		"adjustLoops":            params.AdjustLoops,
		"edgeWeighter":           params.EdgeWeighter,
		"forceDecliningResidual": params.ForceDecliningResidual,
		"undirectedEdges":        params.UndirectedEdges,
		"selectedOnly":           false,
		"createGroups":           false,
		"showUI":                 false,
	}
}

// commandResponse is the CyREST command envelope.
type commandResponse struct {
	Data   map[string]interface{} `json:"data"`
	Errors []commandError         `json:"errors"`
}

type commandError struct {
	Status  int    `json:"status"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (r commandResponse) errorMessage() string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		if e.Message != "" {
			msgs = append(msgs, e.Message)
		}
	}
	return strings.Join(msgs, "; ")
}

func (r commandResponse) jobID() string {
	if r.Data == nil {
		return ""
	}
	switch v := r.Data["jobId"].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return ""
}

var pluginMissingMarkers = []string{"no such command", "not found", "factory is null"}

// pluginMissing reports whether a submit reply says the algorithm is not
// installed.
func pluginMissing(status int, message string) bool {
	if status == 404 {
		return true
	}
	lower := strings.ToLower(message)
	for _, marker := range pluginMissingMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Remote job states reported by GET /v1/jobs/{id}.
const (
	jobQueued    = "QUEUED"
	jobRunning   = "RUNNING"
	jobFinished  = "FINISHED"
	jobFailed    = "FAILED"
	jobCancelled = "CANCELLED"
)

type jobStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type createResponse struct {
	NetworkSUID int64 `json:"networkSUID"`
}

// partitionFromRows extracts name -> cluster from node table rows. Rows
// without a positive numeric cluster value are left out.
func partitionFromRows(rows []map[string]interface{}, clusterAttribute string) network.Partition {
	partition := make(network.Partition, len(rows))
	for _, row := range rows {
		name, _ := row["name"].(string)
		if strings.TrimSpace(name) == "" {
			continue
		}
		value, ok := row[clusterAttribute].(float64)
		if !ok || value <= 0 || value != math.Trunc(value) {
			continue
		}
		partition[name] = int(value)
	}
	return partition
}
