package network

import "sort"

// Unassigned marks a node the clustering service left out of every cluster.
const Unassigned = -1

// Partition is a remote clustering result: remote node name to remote cluster id.
type Partition map[string]int

// ClusterAssignment maps every node of a graph to a cluster index in
// [0, ClusterCount) or to Unassigned.
type ClusterAssignment struct {
	clusters map[string]int
	count    int
}

// NewClusterAssignment builds an assignment from already-dense cluster
// indices. Missing nodes of g are recorded as Unassigned; identifiers not in
// g are ignored.
func NewClusterAssignment(g *Graph, clusters map[string]int) *ClusterAssignment {
	a := &ClusterAssignment{clusters: make(map[string]int, g.NodeCount())}
	seen := make(map[int]struct{})
	for _, id := range g.NodeIDs() {
		c, ok := clusters[id]
		if !ok || c < 0 {
			a.clusters[id] = Unassigned
			continue
		}
		a.clusters[id] = c
		seen[c] = struct{}{}
	}
	a.count = len(seen)
	return a
}

// ReconcilePartition maps a remote partition onto g. Remote names are
// normalized; names not in g are discarded and counted as stale, as are
// further names that normalize to an identifier already placed (the first
// raw name in sort order wins). Nodes of g
// the partition omits become Unassigned. Remote cluster ids are relabelled to
// 0..k-1 ordered by size descending, then by smallest member id, so equal
// partitions under different remote numbering produce equal assignments.
func ReconcilePartition(g *Graph, partition Partition) (*ClusterAssignment, int) {
	names := make([]string, 0, len(partition))
	for rawID := range partition {
		names = append(names, rawID)
	}
	sort.Strings(names)

	stale := 0
	placed := make(map[string]struct{}, len(names))
	members := make(map[int][]string)
	for _, rawID := range names {
		id := NormalizeID(rawID)
		if !g.HasNode(id) {
			stale++
			continue
		}
		if _, dup := placed[id]; dup {
			stale++
			continue
		}
		placed[id] = struct{}{}
		remoteCluster := partition[rawID]
		members[remoteCluster] = append(members[remoteCluster], id)
	}

	type group struct {
		ids []string
	}
	groups := make([]group, 0, len(members))
	for _, ids := range members {
		sort.Strings(ids)
		groups = append(groups, group{ids: ids})
	}
	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i].ids) != len(groups[j].ids) {
			return len(groups[i].ids) > len(groups[j].ids)
		}
		return groups[i].ids[0] < groups[j].ids[0]
	})

	dense := make(map[string]int, g.NodeCount())
	for idx, grp := range groups {
		for _, id := range grp.ids {
			dense[id] = idx
		}
	}
	return NewClusterAssignment(g, dense), stale
}

// Cluster returns the cluster index of a node, or Unassigned.
func (a *ClusterAssignment) Cluster(id string) int {
	c, ok := a.clusters[id]
	if !ok {
		return Unassigned
	}
	return c
}

// ClusterCount returns the number of distinct clusters.
func (a *ClusterAssignment) ClusterCount() int { return a.count }

// Len returns the number of nodes covered by the assignment.
func (a *ClusterAssignment) Len() int { return len(a.clusters) }

// Sizes returns the member count per cluster index.
func (a *ClusterAssignment) Sizes() map[int]int {
	sizes := make(map[int]int, a.count)
	for _, c := range a.clusters {
		if c != Unassigned {
			sizes[c]++
		}
	}
	return sizes
}

// LargestClusterSize returns the size of the biggest cluster, zero when none.
func (a *ClusterAssignment) LargestClusterSize() int {
	largest := 0
	for _, n := range a.Sizes() {
		if n > largest {
			largest = n
		}
	}
	return largest
}

// UnassignedCount returns the number of nodes outside every cluster.
func (a *ClusterAssignment) UnassignedCount() int {
	n := 0
	for _, c := range a.clusters {
		if c == Unassigned {
			n++
		}
	}
	return n
}

// Map returns a copy of the node-to-cluster mapping.
func (a *ClusterAssignment) Map() map[string]int {
	out := make(map[string]int, len(a.clusters))
	for k, v := range a.clusters {
		out[k] = v
	}
	return out
}
