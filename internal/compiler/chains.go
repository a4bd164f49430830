package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/rxmigrate/internal/ir"
)

// ChainWarning reports rules whose templates may keep re-enabling each
// other. A chain is not an error: the fixpoint controller bounds it at run
// time. Warnings point at rules worth a second look.
type ChainWarning struct {
	Path    []string `json:"path"`    // e.g. ["A", "B", "A"]
	Message string   `json:"message"` // human-readable description
	Level   string   `json:"level"`   // "warning"
}

// AnalyzeChains builds the "template of A produces a static call that B's
// pattern starts with" graph and reports every strongly connected
// component. Only static calls and constructors are considered; instance
// calls depend on receiver types the catalog cannot know.
func AnalyzeChains(rules []*ir.Rule) []ChainWarning {
	if len(rules) == 0 {
		return []ChainWarning{}
	}
	g := buildChainGraph(rules)

	warnings := []ChainWarning{}
	for _, scc := range tarjanSCC(g) {
		if len(scc) > 1 || hasSelfLoop(scc[0], g) {
			warnings = append(warnings, sccToWarning(scc, g))
		}
	}
	return warnings
}

// chainGraph keeps its nodes in rule order so traversal is deterministic.
type chainGraph struct {
	nodes []string
	edges map[string][]string
}

// headOf names the construct a pattern root starts with, or "" when the
// root is not a static call or constructor.
func headOf(n ir.Node) string {
	switch x := n.(type) {
	case *ir.Call:
		if sel, ok := x.Fun.(*ir.Select); ok {
			if ref, ok := sel.X.(*ir.ClassRef); ok {
				return ref.Name + "." + sel.Sel
			}
		}
	case *ir.New:
		return "new " + ir.QualifiedTypeString(x.Type)
	}
	return ""
}

func buildChainGraph(rules []*ir.Rule) chainGraph {
	g := chainGraph{edges: make(map[string][]string, len(rules))}

	byHead := make(map[string][]string)
	for _, r := range rules {
		g.nodes = append(g.nodes, r.ID)
		for _, alt := range r.Before {
			if h := headOf(alt); h != "" && !slices.Contains(byHead[h], r.ID) {
				byHead[h] = append(byHead[h], r.ID)
			}
		}
	}

	for _, r := range rules {
		g.edges[r.ID] = []string{}
		ir.Walk(r.After, func(n ir.Node) bool {
			for _, target := range byHead[headOf(n)] {
				if !slices.Contains(g.edges[r.ID], target) {
					g.edges[r.ID] = append(g.edges[r.ID], target)
				}
			}
			return true
		})
	}
	return g
}

func hasSelfLoop(node string, g chainGraph) bool {
	return slices.Contains(g.edges[node], node)
}

// tarjanSCC finds strongly connected components with Tarjan's algorithm.
func tarjanSCC(g chainGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.edges[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Reverse(scc)
			sccs = append(sccs, scc)
		}
	}

	for _, node := range g.nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func sccToWarning(scc []string, g chainGraph) ChainWarning {
	if len(scc) == 1 {
		id := scc[0]
		return ChainWarning{
			Path:    []string{id, id},
			Message: fmt.Sprintf("rule %s re-enables itself", id),
			Level:   "warning",
		}
	}
	path := reconstructCyclePath(scc, g)
	return ChainWarning{
		Path:    path,
		Message: fmt.Sprintf("rules may re-enable each other: %s", strings.Join(path, " -> ")),
		Level:   "warning",
	}
}

// reconstructCyclePath walks edges inside the SCC from its first member
// until it returns to the start.
func reconstructCyclePath(scc []string, g chainGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)
	for {
		visited[current] = true
		var next string
		for _, w := range g.edges[current] {
			if members[w] && (!visited[w] || w == start) {
				next = w
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
