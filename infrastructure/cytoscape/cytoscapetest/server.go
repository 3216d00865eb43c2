// Package cytoscapetest provides an in-process fake of the CyREST endpoints
// used by the cytoscape client.
package cytoscapetest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Options script the behaviour of a Server.
type Options struct {
	// PluginMissing answers every cluster command with "No such command".
	PluginMissing bool
	// Synchronous completes cluster commands without returning a job id.
	Synchronous bool
	// JobNeverFinishes keeps every job RUNNING.
	JobNeverFinishes bool
	// JobFails reports every job as FAILED with this message when non-empty.
	JobFails string
	// PollsUntilDone is the number of status calls answered RUNNING before
	// FINISHED. Zero finishes on the first poll.
	PollsUntilDone int
	// FailCreate answers this many network creations with 400 before
	// accepting them.
	FailCreate int
	// FailStyle answers style calls with 500.
	FailStyle bool
	// FailPolls answers this many status calls with 500 before recovering.
	FailPolls int
	// ExtraRows are appended to every node table, keyed name -> cluster.
	ExtraRows map[string]int
	// Partition overrides the default clustering, ConnectedComponents(0).
	Partition func(nodes []string, edges []Edge) map[string]int
}

// Edge is an uploaded edge as seen by the fake.
type Edge struct {
	Source string
	Target string
	Weight float64
}

type fakeNetwork struct {
	title      string
	collection string
	nodes      []string
	edges      []Edge
	clusters   map[string]int
	attribute  string
}

type fakeJob struct {
	suid  int64
	polls int
}

// Server is a scripted CyREST fake.
type Server struct {
	*httptest.Server
	opts Options

	mu       sync.Mutex
	nextSUID int64
	nextJob  int
	networks map[int64]*fakeNetwork
	jobs     map[string]*fakeJob
	styles   map[string]bool
	counts   map[string]int
	deleted  []int64
	commands []map[string]interface{}
}

// NewServer starts a fake server; call Close when done.
func NewServer(opts Options) *Server {
	s := &Server{
		opts:     opts,
		nextSUID: 100,
		networks: make(map[int64]*fakeNetwork),
		jobs:     make(map[string]*fakeJob),
		styles:   make(map[string]bool),
		counts:   make(map[string]int),
	}

	r := chi.NewRouter()
	r.Get("/v1", s.count("ping", s.handleVersion))
	r.Get("/v1/networks", s.count("list_networks", s.handleList))
	r.Post("/v1/networks", s.count("create_network", s.handleCreate))
	r.Delete("/v1/networks/{suid}", s.count("delete_network", s.handleDelete))
	r.Get("/v1/networks/{suid}/tables/defaultnode/rows", s.count("get_partition", s.handleRows))
	r.Get("/v1/styles/{name}", s.count("get_style", s.handleGetStyle))
	r.Post("/v1/styles", s.count("create_style", s.handleCreateStyle))
	r.Post("/v1/styles/{name}/mappings", s.count("style_mappings", s.handleStyleOK))
	r.Get("/v1/apply/styles/{name}/{suid}", s.count("apply_style", s.handleStyleOK))
	r.Post("/v1/commands/cluster/{algorithm}", s.count("submit_cluster", s.handleCluster))
	r.Get("/v1/jobs/{id}", s.count("poll_job", s.handleJob))

	s.Server = httptest.NewServer(r)
	return s
}

// Calls returns how many requests reached the named endpoint.
func (s *Server) Calls(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[endpoint]
}

// Deleted returns the SUIDs deleted so far, in order.
func (s *Server) Deleted() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.deleted...)
}

// Networks returns the number of live networks.
func (s *Server) Networks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.networks)
}

// LastCommand returns the body of the most recent cluster command.
func (s *Server) LastCommand() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.commands) == 0 {
		return nil
	}
	return s.commands[len(s.commands)-1]
}

// Seed adds a network with the given title, as if left over from an
// earlier run, and returns its SUID.
func (s *Server) Seed(title string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSUID++
	s.networks[s.nextSUID] = &fakeNetwork{title: title}
	return s.nextSUID
}

func (s *Server) count(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.counts[endpoint]++
		s.mu.Unlock()
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func commandErrors(status int, message string) map[string]interface{} {
	return map[string]interface{}{
		"data": map[string]interface{}{},
		"errors": []map[string]interface{}{{
			"status":  status,
			"type":    "urn:cytoscape:ci:cyrest-core:v1:handle-json-command:errors:1",
			"message": message,
		}},
	}
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"availableApiVersions": []string{"v1"}})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("query")
	s.mu.Lock()
	suids := []int64{}
	for suid, n := range s.networks {
		if title == "" || n.title == title {
			suids = append(suids, suid)
		}
	}
	s.mu.Unlock()
	sort.Slice(suids, func(i, j int) bool { return suids[i] < suids[j] })
	writeJSON(w, http.StatusOK, suids)
}

type cyDoc struct {
	Elements struct {
		Nodes []struct {
			Data map[string]interface{} `json:"data"`
		} `json:"nodes"`
		Edges []struct {
			Data map[string]interface{} `json:"data"`
		} `json:"edges"`
	} `json:"elements"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	reject := s.counts["create_network"] <= s.opts.FailCreate
	s.mu.Unlock()
	if reject {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad network"})
		return
	}

	var doc cyDoc
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	n := &fakeNetwork{
		title:      r.URL.Query().Get("title"),
		collection: r.URL.Query().Get("collection"),
	}
	for _, node := range doc.Elements.Nodes {
		name, _ := node.Data["name"].(string)
		n.nodes = append(n.nodes, name)
	}
	for _, edge := range doc.Elements.Edges {
		src, _ := edge.Data["source"].(string)
		dst, _ := edge.Data["target"].(string)
		weight, _ := edge.Data["weight"].(float64)
		n.edges = append(n.edges, Edge{Source: src, Target: dst, Weight: weight})
	}

	s.mu.Lock()
	s.nextSUID++
	suid := s.nextSUID
	s.networks[suid] = n
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]int64{"networkSUID": suid})
}

func (s *Server) network(r *http.Request) (int64, *fakeNetwork) {
	suid, err := strconv.ParseInt(chi.URLParam(r, "suid"), 10, 64)
	if err != nil {
		return 0, nil
	}
	return suid, s.networks[suid]
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	suid, n := s.network(r)
	if n == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "network not found"})
		return
	}
	delete(s.networks, suid)
	s.deleted = append(s.deleted, suid)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleGetStyle(w http.ResponseWriter, r *http.Request) {
	if s.opts.FailStyle {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "style subsystem failed"})
		return
	}
	s.mu.Lock()
	exists := s.styles[chi.URLParam(r, "name")]
	s.mu.Unlock()
	if !exists {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "style not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"title": chi.URLParam(r, "name")})
}

func (s *Server) handleCreateStyle(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "title required"})
		return
	}
	s.mu.Lock()
	s.styles[body.Title] = true
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"title": body.Title})
}

func (s *Server) handleStyleOK(w http.ResponseWriter, _ *http.Request) {
	if s.opts.FailStyle {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "style subsystem failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
}

func (s *Server) handleCluster(w http.ResponseWriter, r *http.Request) {
	algorithm := chi.URLParam(r, "algorithm")
	if s.opts.PluginMissing {
		writeJSON(w, http.StatusNotFound, commandErrors(404, fmt.Sprintf("No such command: cluster/%s", algorithm)))
		return
	}

	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, commandErrors(400, err.Error()))
		return
	}
	var suid int64
	if ref, _ := body["network"].(string); ref != "" {
		_, _ = fmt.Sscanf(ref, "SUID:%d", &suid)
	}
	attribute, _ := body["clusterAttribute"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, body)
	n := s.networks[suid]
	if n == nil {
		writeJSON(w, http.StatusOK, commandErrors(500, "network does not exist"))
		return
	}

	partition := s.opts.Partition
	if partition == nil {
		partition = ConnectedComponents(0)
	}
	n.clusters = partition(n.nodes, n.edges)
	n.attribute = attribute

	if s.opts.Synchronous {
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": map[string]interface{}{}, "errors": []interface{}{}})
		return
	}
	s.nextJob++
	id := fmt.Sprintf("job-%d", s.nextJob)
	s.jobs[id] = &fakeJob{suid: suid}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":   map[string]interface{}{"jobId": id},
		"errors": []interface{}{},
	})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[chi.URLParam(r, "id")]
	if job == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "job not found"})
		return
	}
	job.polls++
	if job.polls <= s.opts.FailPolls {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "busy"})
		return
	}

	status := "FINISHED"
	message := ""
	switch {
	case s.opts.JobNeverFinishes || job.polls-s.opts.FailPolls <= s.opts.PollsUntilDone:
		status = "RUNNING"
	case s.opts.JobFails != "":
		status = "FAILED"
		message = s.opts.JobFails
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status, "message": message})
}

func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, n := s.network(r)
	if n == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "network not found"})
		return
	}

	rows := make([]map[string]interface{}, 0, len(n.nodes)+len(s.opts.ExtraRows))
	for _, name := range n.nodes {
		row := map[string]interface{}{"name": name}
		if c, ok := n.clusters[name]; ok && n.attribute != "" {
			row[n.attribute] = c
		}
		rows = append(rows, row)
	}
	names := make([]string, 0, len(s.opts.ExtraRows))
	for name := range s.opts.ExtraRows {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		row := map[string]interface{}{"name": name}
		if n.attribute != "" {
			row[n.attribute] = s.opts.ExtraRows[name]
		}
		rows = append(rows, row)
	}
	writeJSON(w, http.StatusOK, rows)
}

// ConnectedComponents returns a partition function that keeps edges with
// weight >= minWeight and numbers every connected component with at least
// two nodes from 1, largest first. Nodes left isolated get no cluster.
func ConnectedComponents(minWeight float64) func(nodes []string, edges []Edge) map[string]int {
	return func(nodes []string, edges []Edge) map[string]int {
		return components(nodes, edges, minWeight)
	}
}

func components(nodes []string, edges []Edge, minWeight float64) map[string]int {
	parent := make(map[string]string, len(nodes))
	for _, n := range nodes {
		parent[n] = n
	}
	var find func(string) string
	find = func(x string) string {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	for _, e := range edges {
		if e.Weight < minWeight {
			continue
		}
		if _, ok := parent[e.Source]; !ok {
			continue
		}
		if _, ok := parent[e.Target]; !ok {
			continue
		}
		a, b := find(e.Source), find(e.Target)
		if a != b {
			parent[a] = b
		}
	}

	groups := make(map[string][]string)
	for _, n := range nodes {
		root := find(n)
		groups[root] = append(groups[root], n)
	}
	comps := make([][]string, 0, len(groups))
	for _, members := range groups {
		if len(members) < 2 {
			continue
		}
		sort.Strings(members)
		comps = append(comps, members)
	}
	sort.Slice(comps, func(i, j int) bool {
		if len(comps[i]) != len(comps[j]) {
			return len(comps[i]) > len(comps[j])
		}
		return comps[i][0] < comps[j][0]
	})

	clusters := make(map[string]int)
	for i, members := range comps {
		for _, m := range members {
			clusters[m] = i + 1
		}
	}
	return clusters
}
