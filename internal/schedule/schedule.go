// Package schedule implements forge's build scheduler (spec §4.5, C5):
// Kahn's algorithm over the dependency DAG, layering modules so that each
// layer may build in parallel once every earlier layer has completed.
//
// Grounded on distr1-distri's internal/batch.scheduler, which seeds its
// work queue with in-degree-zero nodes and enqueues a dependent as soon as
// s.canBuild reports all of its dependencies built (batch.go's
// "Enqueue all packages which have no dependencies" + canBuild loop); this
// package makes that same peeling process explicit as discrete Layers
// rather than an implicit work-queue, to support spec §8's "layer 0
// contains exactly the in-degree-zero nodes" invariant.
package schedule

import (
	"github.com/forgebuild/forge/internal/errs"
	"github.com/forgebuild/forge/internal/graph"
	"golang.org/x/exp/slices"
)

// Layer is a maximal set of modules that may be built in parallel at a
// given step of the schedule.
type Layer []string

// BuildSchedule is an ordered list of Layers; their concatenation is a
// topological order of the graph they were computed from.
type BuildSchedule struct {
	Layers []Layer
}

// Flatten returns every module name across all layers, in schedule order.
func (s *BuildSchedule) Flatten() []string {
	var out []string
	for _, l := range s.Layers {
		out = append(out, l...)
	}
	return out
}

// Build computes a BuildSchedule for the whole graph g using Kahn's
// algorithm: layer 0 is every node with in-degree zero; each subsequent
// layer is every node whose remaining in-degree reaches zero once all
// nodes of earlier layers are removed. If nodes remain but no layer can be
// formed, the graph has a cycle that validation missed — treated as a hard
// error (spec §4.5), though graph.Build should already have rejected it.
func Build(g *graph.DependencyGraph) (*BuildSchedule, error) {
	return buildSubset(g, g.Names())
}

// BuildTarget restricts the schedule to module and its transitive
// dependencies (spec §4.5 "Targeted builds"), re-computing layers on that
// subgraph.
func BuildTarget(g *graph.DependencyGraph, module string) (*BuildSchedule, error) {
	closure := g.TransitiveDependencies(module)
	names := make([]string, 0, len(closure))
	for n := range closure {
		names = append(names, n)
	}
	return buildSubset(g, names)
}

func buildSubset(g *graph.DependencyGraph, names []string) (*BuildSchedule, error) {
	inSubset := make(map[string]bool, len(names))
	for _, n := range names {
		inSubset[n] = true
	}

	// remaining[n] counts n's not-yet-placed dependencies within the
	// subset; dependents is the reverse adjacency restricted to the subset.
	remaining := make(map[string]int, len(names))
	dependents := make(map[string][]string, len(names))
	for _, n := range names {
		node, _ := g.Node(n)
		count := 0
		for _, dep := range node.Dependencies {
			if !inSubset[dep] {
				continue
			}
			count++
			dependents[dep] = append(dependents[dep], n)
		}
		remaining[n] = count
	}

	sched := &BuildSchedule{}
	placed := make(map[string]bool, len(names))

	for len(placed) < len(names) {
		var layer Layer
		for _, n := range names {
			if !placed[n] && remaining[n] == 0 {
				layer = append(layer, n)
			}
		}
		if len(layer) == 0 {
			return nil, &errs.GraphError{Reason: "no schedulable layer (undetected cycle)"}
		}
		slices.Sort(layer)
		for _, n := range layer {
			placed[n] = true
		}
		for _, n := range layer {
			for _, dependent := range dependents[n] {
				remaining[dependent]--
			}
		}
		sched.Layers = append(sched.Layers, layer)
	}

	return sched, nil
}
