// Package depgraph keeps a project's task dependency edges in an
// index-addressed arena and answers cycle and satisfaction questions.
package depgraph

import (
	"fmt"
	"strings"

	"crewline/internal/domain"
)

// Edge means TaskID cannot be Done until DependsOnID is Done.
type Edge struct {
	TaskID      string
	DependsOnID string
}

type Graph struct {
	ids   []string
	index map[string]int
	out   [][]int
}

// New builds a graph over taskIDs. Edges with an unknown endpoint are
// rejected; cycles are not checked here, see Validate.
func New(taskIDs []string, edges []Edge) (*Graph, error) {
	g := &Graph{index: make(map[string]int, len(taskIDs))}
	for _, id := range taskIDs {
		g.AddNode(id)
	}
	for _, e := range edges {
		from, ok := g.index[e.TaskID]
		if !ok {
			return nil, fmt.Errorf("%w: task %s", domain.ErrNotFound, e.TaskID)
		}
		to, ok := g.index[e.DependsOnID]
		if !ok {
			return nil, fmt.Errorf("%w: task %s", domain.ErrNotFound, e.DependsOnID)
		}
		if !g.has(from, to) {
			g.out[from] = append(g.out[from], to)
		}
	}
	return g, nil
}

// AddNode registers a task; adding a known id is a no-op.
func (g *Graph) AddNode(id string) {
	if _, ok := g.index[id]; ok {
		return
	}
	g.index[id] = len(g.ids)
	g.ids = append(g.ids, id)
	g.out = append(g.out, nil)
}

func (g *Graph) has(from, to int) bool {
	for _, n := range g.out[from] {
		if n == to {
			return true
		}
	}
	return false
}

func (g *Graph) lookup(id string) (int, error) {
	i, ok := g.index[id]
	if !ok {
		return 0, fmt.Errorf("%w: task %s", domain.ErrNotFound, id)
	}
	return i, nil
}

// AddEdge inserts task -> dependsOn. The graph is left unchanged on error.
func (g *Graph) AddEdge(task, dependsOn string) error {
	from, err := g.lookup(task)
	if err != nil {
		return err
	}
	to, err := g.lookup(dependsOn)
	if err != nil {
		return err
	}
	if from == to {
		return fmt.Errorf("%w: task %s cannot depend on itself", domain.ErrInvalidState, task)
	}
	if g.has(from, to) {
		return fmt.Errorf("%w: %s already depends on %s", domain.ErrConflict, task, dependsOn)
	}
	if g.reachable(to, from) {
		return fmt.Errorf("%w: %s -> %s would create a cycle", domain.ErrInvalidState, task, dependsOn)
	}
	g.out[from] = append(g.out[from], to)
	return nil
}

func (g *Graph) reachable(from, to int) bool {
	if from == to {
		return true
	}
	seen := make([]bool, len(g.ids))
	stack := []int{from}
	seen[from] = true
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range g.out[n] {
			if next == to {
				return true
			}
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}

// Edges lists every edge, grouped by dependent task in insertion order.
func (g *Graph) Edges() []Edge {
	var res []Edge
	for from, outs := range g.out {
		for _, n := range outs {
			res = append(res, Edge{TaskID: g.ids[from], DependsOnID: g.ids[n]})
		}
	}
	return res
}

// Validate runs a full DFS colouring pass and reports the first cycle found.
func (g *Graph) Validate() error {
	const (
		white = iota
		gray
		black
	)
	color := make([]int, len(g.ids))
	parent := make([]int, len(g.ids))

	var dfs func(n int) []int
	dfs = func(n int) []int {
		color[n] = gray
		for _, next := range g.out[n] {
			switch color[next] {
			case gray:
				cycle := []int{next}
				for cur := n; cur != next; cur = parent[cur] {
					cycle = append(cycle, cur)
				}
				cycle = append(cycle, next)
				return cycle
			case white:
				parent[next] = n
				if c := dfs(next); c != nil {
					return c
				}
			}
		}
		color[n] = black
		return nil
	}

	for n := range g.ids {
		if color[n] != white {
			continue
		}
		if c := dfs(n); c != nil {
			names := make([]string, len(c))
			for i := range c {
				names[len(c)-1-i] = g.ids[c[i]]
			}
			return fmt.Errorf("%w: dependency cycle %s", domain.ErrInvalidState, strings.Join(names, " -> "))
		}
	}
	return nil
}

// IsSatisfied reports whether every direct dependency of task is Done.
func (g *Graph) IsSatisfied(task string, status func(id string) domain.TaskStatus) bool {
	i, ok := g.index[task]
	if !ok {
		return true
	}
	for _, n := range g.out[i] {
		if status(g.ids[n]) != domain.StatusDone {
			return false
		}
	}
	return true
}
