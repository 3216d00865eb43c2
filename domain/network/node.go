package network

import (
	"sort"
	"strings"
)

// Well-known node attribute names.
const (
	AttrFoldChange    = "fold_change"
	AttrPValue        = "p_value"
	AttrAdjPValue     = "adj_p_value"
	AttrAveExpr       = "ave_expr"
	AttrTStatistic    = "t_statistic"
	AttrBStatistic    = "b_statistic"
	AttrCILow         = "ci_low"
	AttrCIHigh        = "ci_high"
	AttrSignificant   = "significant"
	AttrMeanAbundance = "mean_abundance"
	AttrSampleCount   = "sample_count"
	AttrPatientCount  = "patient_count"
	AttrTissueArea    = "tissue_area"
)

// Source tags identifying which backend contributed a node.
const (
	SourceRelational = "relational"
	SourceGraph      = "graph"
	SourceMerged     = "relational+graph"
)

// NormalizeID trims and case-folds a protein identifier so that the
// relational and graph stores' conventions compare equal.
func NormalizeID(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Attributes is a sparse attribute map keyed by attribute name.
type Attributes map[string]AttributeValue

// Clone returns a shallow copy.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Keys returns attribute names in sorted order.
func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Node is a protein in an assembled graph.
type Node struct {
	ID         string     `json:"id"`
	Label      string     `json:"label"`
	Source     string     `json:"source"`
	Attributes Attributes `json:"attributes,omitempty"`
}

// NewNode creates a node with a normalized identifier. The label falls back
// to the raw identifier when empty.
func NewNode(rawID, label, source string, attrs Attributes) Node {
	label = strings.TrimSpace(label)
	if label == "" {
		label = strings.TrimSpace(rawID)
	}
	return Node{
		ID:         NormalizeID(rawID),
		Label:      label,
		Source:     source,
		Attributes: attrs.Clone(),
	}
}

// Attribute returns a single attribute value.
func (n Node) Attribute(name string) (AttributeValue, bool) {
	v, ok := n.Attributes[name]
	return v, ok
}

func (n Node) clone() Node {
	n.Attributes = n.Attributes.Clone()
	return n
}
