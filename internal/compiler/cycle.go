package compiler

import (
	"sort"

	"github.com/xiao2945/danci-sub000/internal/ir"
)

// dependencyGraph maps a set or rule name to the names it references.
type dependencyGraph map[string][]string

// RuleCycles reports circular combinator references among rules.
//
// The graph holds every rule of the table with candidate replacing the rule
// of the same name, so a rule can be checked before it is saved. Only
// cycles passing through candidate are reported.
//
// The algorithm:
//  1. Build rule → referenced rules edges from combinator bodies
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1, or a self-loop, that contains candidate
func RuleCycles(candidate *ir.Rule, table RuleTable) []*ir.Error {
	graph := make(dependencyGraph)
	addRule := func(r *ir.Rule) {
		graph[r.Name] = []string{}
		if r.Kind() != ir.KindCombinator {
			return
		}
		node, err := ParseCombinator(r.Body())
		if err != nil {
			return
		}
		graph[r.Name] = node.RuleNames()
	}

	if table != nil {
		for _, name := range table.RuleNames() {
			if name == candidate.Name {
				continue
			}
			if r, ok := table.Rule(name); ok {
				addRule(r)
			}
		}
	}
	addRule(candidate)

	var errs []*ir.Error
	for _, scc := range tarjanSCC(graph) {
		if !contains(scc, candidate.Name) || (len(scc) == 1 && !hasSelfLoop(scc[0], graph)) {
			continue
		}
		path := reconstructCyclePath(scc, graph, candidate.Name)
		errs = append(errs, ir.Circular(ir.CodeCircularRule, "rule", path).AtLine(candidate.MatchLine))
	}
	return errs
}

// findCycles returns one closed path per cycle in graph, e.g. [A B A].
// Results are deterministic: nodes are visited in sorted order.
func findCycles(graph dependencyGraph) [][]string {
	var cycles [][]string
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			cycles = append(cycles, reconstructCyclePath(scc, graph, scc[0]))
		}
	}
	return cycles
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph dependencyGraph) [][]string {
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

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root node: pop the stack and emit an SCC
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
			sort.Strings(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// reconstructCyclePath builds a closed path through an SCC, starting and
// ending at start. A breadth-first walk inside the SCC finds the shortest
// way back.
func reconstructCyclePath(scc []string, graph dependencyGraph, start string) []string {
	if len(scc) == 1 {
		return []string{start, start}
	}

	sccSet := make(map[string]bool, len(scc))
	for _, node := range scc {
		sccSet[node] = true
	}

	parent := make(map[string]string)
	seen := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, neighbor := range graph[current] {
			if !sccSet[neighbor] {
				continue
			}
			if neighbor == start {
				var rev []string
				for x := current; x != start; x = parent[x] {
					rev = append(rev, x)
				}
				path := []string{start}
				for i := len(rev) - 1; i >= 0; i-- {
					path = append(path, rev[i])
				}
				return append(path, start)
			}
			if !seen[neighbor] {
				seen[neighbor] = true
				parent[neighbor] = current
				queue = append(queue, neighbor)
			}
		}
	}

	// unreachable for a real SCC
	return append(append([]string{}, scc...), start)
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
