// Package handlers implements the REST endpoints of the clustering service.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/NikolaosSamperis/PlaqueMS-project/domain/network"
	pkgerrors "github.com/NikolaosSamperis/PlaqueMS-project/pkg/errors"
	"github.com/NikolaosSamperis/PlaqueMS-project/pkg/utils"
)

const maxBodyBytes = 1 << 20

// NodeView is a node with its cluster overlay.
type NodeView struct {
	network.Node
	Cluster int `json:"cluster"`
}

// GraphView is the clustered network as rendered by the API.
type GraphView struct {
	Nodes []NodeView           `json:"nodes"`
	Edges []network.Edge       `json:"edges"`
	Stats network.ClusterStats `json:"stats"`
}

func newGraphView(g *network.Graph, a *network.ClusterAssignment) GraphView {
	nodes := g.Nodes()
	view := GraphView{
		Nodes: make([]NodeView, len(nodes)),
		Edges: g.Edges(),
		Stats: network.ClusterStats{
			ClusterCount:       a.ClusterCount(),
			LargestClusterSize: a.LargestClusterSize(),
			UnassignedCount:    a.UnassignedCount(),
		},
	}
	for i, n := range nodes {
		view.Nodes[i] = NodeView{Node: n, Cluster: a.Cluster(n.ID)}
	}
	return view
}

// decodeJSON reads a size-limited JSON body into dst and validates it.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return pkgerrors.NewValidationError("request body is required")
		}
		return pkgerrors.NewValidationError("invalid request body: " + err.Error())
	}
	if err := utils.ValidateStruct(dst); err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}
	return nil
}

func respondJSON(w http.ResponseWriter, logger *zap.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}
