// Package graph implements forge's dependency analyzer (spec §4.4, C4): it
// builds the module DAG, detects cycles via tri-colour DFS, and reports
// missing dependencies.
//
// Grounded on distr1-distri's internal/batch.Ctx.Build, which builds a
// gonum simple.DirectedGraph from package dependencies and uses
// gonum.org/v1/gonum/graph/topo to detect unorderable (cyclic) components;
// this package generalizes that into a standalone, general-purpose
// dependency graph with the tri-colour cycle report spec §4.4 requires
// (the teacher only detects *that* a cycle exists, via topo.Unorderable;
// it does not walk out a human-readable A → B → C → A chain).
package graph

import (
	"github.com/forgebuild/forge/internal/config"
	"github.com/forgebuild/forge/internal/errs"
	"golang.org/x/exp/slices"
	gonumgraph "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
)

// Node is one module in the dependency graph. Edges point from a module to
// each of its dependencies (A -> B means "A depends on B").
type Node struct {
	Module       config.ModuleConfig
	Dependencies []string // names
	InDegree     int      // number of modules that depend on this one
}

// DependencyGraph is the validated, cycle-free module DAG.
type DependencyGraph struct {
	nodes map[string]*Node
	order []string // module names in declaration order, for determinism
	g     *simple.DirectedGraph
	ids   map[string]int64
}

// Node looks up a node by module name.
func (d *DependencyGraph) Node(name string) (*Node, bool) {
	n, ok := d.nodes[name]
	return n, ok
}

// Names returns all module names in deterministic order.
func (d *DependencyGraph) Names() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Dependents returns the names of modules that directly depend on name.
func (d *DependencyGraph) Dependents(name string) []string {
	id, ok := d.ids[name]
	if !ok {
		return nil
	}
	var out []string
	it := d.g.To(id)
	for it.Next() {
		out = append(out, it.Node().(*idNode).name)
	}
	slices.Sort(out)
	return out
}

// TransitiveDependencies returns the full transitive dependency set of
// name, including name itself.
func (d *DependencyGraph) TransitiveDependencies(name string) map[string]bool {
	visited := map[string]bool{}
	var visit func(string)
	visit = func(n string) {
		if visited[n] {
			return
		}
		visited[n] = true
		node, ok := d.nodes[n]
		if !ok {
			return
		}
		for _, dep := range node.Dependencies {
			visit(dep)
		}
	}
	visit(name)
	return visited
}

type idNode struct {
	id   int64
	name string
}

func (n *idNode) ID() int64 { return n.id }

// Build constructs a DependencyGraph from project modules, validating that
// every dependency name resolves to a sibling module (spec §3's
// DependencyGraph invariant, and spec §4.3(f)) and that the graph contains
// no cycle (spec §4.4), reported via tri-colour DFS as a "→"-joined chain.
func Build(modules []config.ModuleConfig) (*DependencyGraph, error) {
	d := &DependencyGraph{
		nodes: make(map[string]*Node, len(modules)),
		g:     simple.NewDirectedGraph(),
		ids:   make(map[string]int64, len(modules)),
	}

	for i, m := range modules {
		d.nodes[m.Name] = &Node{Module: m, Dependencies: append([]string{}, m.Dependencies...)}
		d.order = append(d.order, m.Name)
		d.ids[m.Name] = int64(i)
		d.g.AddNode(&idNode{id: int64(i), name: m.Name})
	}

	for _, m := range modules {
		for _, dep := range m.Dependencies {
			if _, ok := d.nodes[dep]; !ok {
				return nil, &errs.GraphError{
					Reason: "missing dependency",
					Chain:  []string{m.Name, dep},
				}
			}
			if dep == m.Name {
				// gonum's simple graphs reject self edges; findCycle reports
				// the self-dependency from Dependencies alone.
				continue
			}
			d.g.SetEdge(d.g.NewEdge(
				&idNode{id: d.ids[m.Name], name: m.Name},
				&idNode{id: d.ids[dep], name: dep},
			))
		}
	}

	if chain := findCycle(d); chain != nil {
		return nil, &errs.GraphError{Reason: "cycle detected", Chain: chain}
	}

	for _, n := range d.nodes {
		for _, dep := range n.Dependencies {
			d.nodes[dep].InDegree++
		}
	}

	return d, nil
}

type color int

const (
	white color = iota
	grey
	black
)

// findCycle performs tri-colour DFS over the graph (white=unvisited,
// grey=on current path, black=done). Encountering a grey node while
// descending yields a cycle; the returned chain is the path from the cycle
// root back to the repeated node, e.g. ["A", "B", "C", "A"].
func findCycle(d *DependencyGraph) []string {
	colors := make(map[string]color, len(d.nodes))
	for _, name := range d.order {
		colors[name] = white
	}

	var path []string
	var cycle []string

	var visit func(name string) bool
	visit = func(name string) bool {
		colors[name] = grey
		path = append(path, name)
		for _, dep := range d.nodes[name].Dependencies {
			switch colors[dep] {
			case grey:
				// Found the back-edge; extract path[idx(dep):] + dep.
				idx := slices.Index(path, dep)
				cycle = append([]string{}, path[idx:]...)
				cycle = append(cycle, dep)
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		colors[name] = black
		return false
	}

	for _, name := range d.order {
		if colors[name] == white {
			if visit(name) {
				return cycle
			}
		}
	}
	return nil
}

// Underlying satisfies gonumgraph.Directed for callers (e.g. the scheduler)
// that want gonum's generic graph algorithms instead of this package's own
// traversal helpers.
func (d *DependencyGraph) Underlying() gonumgraph.Directed { return d.g }

func (d *DependencyGraph) IDOf(name string) (int64, bool) {
	id, ok := d.ids[name]
	return id, ok
}

func (d *DependencyGraph) NameOf(id int64) string {
	for name, i := range d.ids {
		if i == id {
			return name
		}
	}
	return ""
}
