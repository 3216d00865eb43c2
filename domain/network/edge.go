package network

// Edge is an undirected interaction between two proteins. Source and Target
// are normalized and stored in lexical order so that (a,b) and (b,a) share a key.
type Edge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"weight"`
	Type   string  `json:"type,omitempty"`
}

// EdgeKey identifies the unordered node pair of an edge.
type EdgeKey struct {
	A, B string
}

// NewEdge creates an edge with normalized, ordered endpoints.
func NewEdge(a, b string, weight float64, interactionType string) Edge {
	a, b = NormalizeID(a), NormalizeID(b)
	if b < a {
		a, b = b, a
	}
	return Edge{Source: a, Target: b, Weight: weight, Type: interactionType}
}

// Key returns the unordered pair key.
func (e Edge) Key() EdgeKey {
	return EdgeKey{A: e.Source, B: e.Target}
}

// IsSelfLoop reports whether both endpoints are the same node.
func (e Edge) IsSelfLoop() bool {
	return e.Source == e.Target
}

// Less orders edges by (source, target).
func (e Edge) Less(o Edge) bool {
	if e.Source != o.Source {
		return e.Source < o.Source
	}
	return e.Target < o.Target
}
