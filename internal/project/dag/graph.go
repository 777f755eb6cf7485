// Package dag orders packages so every dependency precedes its dependents.
package dag

import (
	"fmt"
	"slices"
	"strings"
)

// Graph has an edge from each dependency to each package that needs it.
type Graph struct {
	Edges   [][]PackageID // Edges[dep] = []dependent
	Indeg   []int         // входящие степени для Kahn (только присутствующие пакеты)
	Present []bool        // пакет реально загружен, а не только упомянут
}

// Problem is a structural defect found while building the graph.
type Problem struct {
	Package string
	Dep     string
	Msg     string
}

func (p Problem) String() string {
	return p.Msg
}

func BuildGraph(idx PackageIndex, nodes []Node) (Graph, []Problem) {
	count := len(idx.IDToName)
	g := Graph{
		Edges:   make([][]PackageID, count),
		Indeg:   make([]int, count),
		Present: make([]bool, count),
	}
	var problems []Problem

	for _, n := range nodes {
		id, ok := idx.NameToID[n.Name]
		if !ok {
			continue
		}
		if g.Present[int(id)] {
			problems = append(problems, Problem{Package: n.Name, Msg: fmt.Sprintf("duplicate package %q", n.Name)})
			continue
		}
		g.Present[int(id)] = true
	}

	for _, n := range nodes {
		from, ok := idx.NameToID[n.Name]
		if !ok {
			continue
		}
		seen := make(map[PackageID]struct{}, len(n.Deps))
		for _, dep := range n.Deps {
			depID, ok := idx.NameToID[dep]
			if !ok {
				continue
			}
			if depID == from {
				problems = append(problems, Problem{Package: n.Name, Dep: dep, Msg: fmt.Sprintf("package %q depends on itself", n.Name)})
				continue
			}
			if _, dup := seen[depID]; dup {
				continue
			}
			seen[depID] = struct{}{}
			if !g.Present[int(depID)] {
				problems = append(problems, Problem{Package: n.Name, Dep: dep, Msg: fmt.Sprintf("package %q depends on missing package %q", n.Name, dep)})
				continue
			}
			g.Edges[int(depID)] = append(g.Edges[int(depID)], from)
			g.Indeg[int(from)]++
		}
	}
	for i := range g.Edges {
		if len(g.Edges[i]) > 1 {
			slices.Sort(g.Edges[i])
		}
	}
	return g, problems
}

// CycleProblem describes the packages left over by an incomplete sort.
func CycleProblem(idx PackageIndex, topo *Topo) (Problem, bool) {
	if topo == nil || !topo.Cyclic || len(topo.Cycles) == 0 {
		return Problem{}, false
	}
	names := make([]string, 0, len(topo.Cycles))
	for _, id := range topo.Cycles {
		names = append(names, idx.IDToName[int(id)])
	}
	return Problem{
		Package: names[0],
		Msg:     fmt.Sprintf("dependency cycle: %s", strings.Join(names, " -> ")),
	}, true
}

// Names maps ids back to package names.
func Names(idx PackageIndex, ids []PackageID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = idx.IDToName[int(id)]
	}
	return out
}
