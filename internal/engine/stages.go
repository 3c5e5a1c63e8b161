package engine

import (
	"fmt"
	"sort"
)

// Stage groups invocations whose children all completed in earlier stages, so its members may run in parallel.
type Stage struct {
	Nodes []int
}

// Stages layers the plan from leaves to root using Kahn's algorithm. Invocations shared by two
// parents appear once.
func Stages(plan Plan) ([]Stage, error) {
	if len(plan.Nodes) == 0 {
		return nil, nil
	}

	reachable := make(map[int]struct{}, len(plan.Nodes))
	pending := []int{plan.Root}
	for len(pending) > 0 {
		node := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		if _, visited := reachable[node]; visited {
			continue
		}
		reachable[node] = struct{}{}
		pending = append(pending, plan.Children(node)...)
	}

	inDegree := make(map[int]int, len(reachable))
	dependents := make(map[int][]int, len(reachable))
	for node := range reachable {
		children := uniqueNodes(plan.Children(node))
		inDegree[node] = len(children)
		for _, child := range children {
			dependents[child] = append(dependents[child], node)
		}
	}

	ready := make([]int, 0)
	for node, degree := range inDegree {
		if degree == 0 {
			ready = append(ready, node)
		}
	}

	stages := make([]Stage, 0)
	processed := 0
	for len(ready) > 0 {
		sort.Ints(ready)
		stage := Stage{Nodes: ready}
		stages = append(stages, stage)
		processed += len(ready)

		nextReady := make([]int, 0)
		for _, node := range stage.Nodes {
			for _, dependent := range dependents[node] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					nextReady = append(nextReady, dependent)
				}
			}
		}
		ready = nextReady
	}

	if processed != len(reachable) {
		return nil, fmt.Errorf(stagePlanningErrorTemplateConstant, plan.Target(), len(reachable)-processed, len(reachable))
	}
	return stages, nil
}

func uniqueNodes(nodes []int) []int {
	seen := make(map[int]struct{}, len(nodes))
	unique := make([]int, 0, len(nodes))
	for _, node := range nodes {
		if _, duplicate := seen[node]; duplicate {
			continue
		}
		seen[node] = struct{}{}
		unique = append(unique, node)
	}
	return unique
}
