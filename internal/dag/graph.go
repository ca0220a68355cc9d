package dag

import (
	"fmt"
	"sort"
	"sync"
)

// Graph is a set of named nodes and their dependencies. All operations on
// the graph are concurrency-safe.
type Graph struct {
	mutex sync.RWMutex
	nodes map[string]*node
}

// node is un-exported so that callers address nodes by name only.
type node struct {
	id         string
	deps       map[string]*node // predecessors
	dependents map[string]*node // successors
}

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*node)}
}

// AddNode adds a node. Adding an existing id does nothing.
func (g *Graph) AddNode(id string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.addNodeLocked(id)
}

func (g *Graph) addNodeLocked(id string) *node {
	if n, ok := g.nodes[id]; ok {
		return n
	}
	n := &node{id: id, deps: make(map[string]*node), dependents: make(map[string]*node)}
	g.nodes[id] = n
	return n
}

// AddEdge records that toID depends on fromID. Both nodes must exist.
func (g *Graph) AddEdge(fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", fromID, fromID)
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	from, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %s", fromID)
	}
	to, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %s", toID)
	}
	to.deps[fromID] = from
	from.dependents[toID] = to
	return nil
}

// Has reports whether the node exists.
func (g *Graph) Has(id string) bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// Nodes returns all node ids in sorted order.
func (g *Graph) Nodes() []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Dependencies returns the sorted ids the given node depends on directly.
func (g *Graph) Dependencies(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return sortedIDs(n.deps), nil
}

// Dependents returns the sorted ids that depend directly on the given node.
func (g *Graph) Dependents(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return sortedIDs(n.dependents), nil
}

// Downstream returns every node that depends on id, directly or
// transitively, in sorted order.
func (g *Graph) Downstream(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	seen := make(map[string]*node)
	var walk func(n *node)
	walk = func(n *node) {
		for did, d := range n.dependents {
			if _, ok := seen[did]; !ok {
				seen[did] = d
				walk(d)
			}
		}
	}
	walk(n)
	return sortedIDs(seen), nil
}

// DetectCycles returns an error naming a node on a cycle, if there is one.
func (g *Graph) DetectCycles() error {
	_, err := g.TopoOrder()
	return err
}

// TopoOrder returns the node ids with every node after its dependencies.
// Ties are broken by name so the order is deterministic.
func (g *Graph) TopoOrder() ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(g.nodes))
	order := make([]string, 0, len(g.nodes))

	var visit func(n *node) error
	visit = func(n *node) error {
		switch state[n.id] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("cycle detected involving node '%s'", n.id)
		}
		state[n.id] = visiting
		for _, id := range sortedIDs(n.deps) {
			if err := visit(n.deps[id]); err != nil {
				return err
			}
		}
		state[n.id] = done
		order = append(order, n.id)
		return nil
	}

	for _, id := range sortedIDs(g.nodes) {
		if err := visit(g.nodes[id]); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func sortedIDs(m map[string]*node) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
