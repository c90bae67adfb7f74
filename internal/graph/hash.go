package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// wireLink is the {name, target_id|target_cid, weight} shape the external
// serialization format uses for edges attached under a node.
type wireLink struct {
	Name     string  `json:"name"`
	TargetID string  `json:"target_id,omitempty"`
	Weight   float64 `json:"weight"`
}

type wireNode struct {
	ID       string     `json:"id"`
	Type     NodeType   `json:"type"`
	Content  string     `json:"content"`
	Status   Status     `json:"status"`
	Metadata Metadata   `json:"metadata"`
	Storage  Storage    `json:"storage"`
	Links    []wireLink `json:"links,omitempty"`
}

type wireGraph struct {
	Nodes      []wireNode    `json:"nodes"`
	Edges      []Edge        `json:"edges"`
	RootNodeID string        `json:"root_node_id,omitempty"`
	Metadata   GraphMetadata `json:"metadata"`
}

// Canonicalize renders the graph into the external serialization format:
// canonical JSON with sorted node order and explicit per-node outgoing
// links, ready to be content-hashed into a CID.
func (g *Graph) Canonicalize() ([]byte, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	bySource := make(map[string][]Edge)
	for _, e := range g.edges {
		bySource[e.Source] = append(bySource[e.Source], e)
	}

	nodes := make([]wireNode, 0, len(g.nodes))
	for _, n := range g.nodes {
		var links []wireLink
		for _, e := range bySource[n.ID] {
			links = append(links, wireLink{Name: string(e.Type), TargetID: e.Target, Weight: e.Weight})
		}
		sort.Slice(links, func(i, j int) bool {
			if links[i].Name != links[j].Name {
				return links[i].Name < links[j].Name
			}
			return links[i].TargetID < links[j].TargetID
		})
		nodes = append(nodes, wireNode{
			ID:       n.ID,
			Type:     n.Type,
			Content:  n.Content,
			Status:   n.Status,
			Metadata: n.Metadata,
			Storage:  n.Storage,
			Links:    links,
		})
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	edges := make([]Edge, len(g.edges))
	copy(edges, g.edges)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})

	wg := wireGraph{
		Nodes:      nodes,
		Edges:      edges,
		RootNodeID: g.RootNodeID,
		Metadata:   g.Metadata,
	}
	return json.Marshal(wg)
}

// ComputeHash returns the SHA-256 hex digest of the graph's canonical form,
// used as the graph's CID when persisted via put_graph.
func (g *Graph) ComputeHash() (string, error) {
	b, err := g.Canonicalize()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// FromCanonical reconstructs a Graph from the canonical wire form produced
// by Canonicalize, the inverse half of put_graph/get_graph.
func FromCanonical(b []byte) (*Graph, error) {
	var wg wireGraph
	if err := json.Unmarshal(b, &wg); err != nil {
		return nil, err
	}
	g := New(wg.Metadata.Name)
	g.Metadata = wg.Metadata
	g.RootNodeID = wg.RootNodeID

	// Dependencies are not carried on the wire form directly; they are
	// reconstructed from links targeting each node.
	deps := make(map[string][]string)
	for _, n := range wg.Nodes {
		node := &Node{
			ID:       n.ID,
			Type:     n.Type,
			Content:  n.Content,
			Status:   n.Status,
			Metadata: n.Metadata,
			Storage:  n.Storage,
		}
		g.nodes[node.ID] = node
	}
	for _, n := range wg.Nodes {
		for _, l := range n.Links {
			deps[l.TargetID] = append(deps[l.TargetID], n.ID)
		}
	}
	for id, ds := range deps {
		if node, ok := g.nodes[id]; ok {
			node.Dependencies = ds
		}
	}
	for _, e := range wg.Edges {
		g.edges = append(g.edges, e)
		g.successors[e.Source] = append(g.successors[e.Source], e.Target)
	}
	return g, nil
}
