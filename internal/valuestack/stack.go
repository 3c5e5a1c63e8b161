package valuestack

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/tyemirov/taskgraph/internal/taskgraph"
)

var valueNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Source identifies where a value came from. Later sources take precedence over earlier ones.
type Source int

// Value sources, lowest precedence first.
const (
	SourceEnvironment Source = iota
	SourceResult
	SourceCommandLine
)

// String names the source.
func (source Source) String() string {
	switch source {
	case SourceEnvironment:
		return "environment"
	case SourceResult:
		return "result"
	case SourceCommandLine:
		return "command line"
	default:
		return fmt.Sprintf("source(%d)", int(source))
	}
}

// NewValueName normalizes and validates value identifiers.
func NewValueName(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("value name cannot be empty")
	}
	if !valueNamePattern.MatchString(trimmed) {
		return "", fmt.Errorf("value name %q must match %s", trimmed, valueNamePattern.String())
	}
	return trimmed, nil
}

// Graph is the view of the task registry the stack needs.
type Graph interface {
	IsValueName(name string) bool
	DependentsOf(name string) []string
}

// Stack layers environment values, task results and command line values for one run.
// Command line values win over task results, which win over environment values.
type Stack struct {
	mutex  sync.RWMutex
	graph  Graph
	layers [SourceCommandLine + 1]map[string]any
}

// NewStack builds an empty stack. graph may be nil, in which case every environment name is accepted
// and no invalidation happens.
func NewStack(graph Graph) *Stack {
	stack := &Stack{graph: graph}
	stack.resetLayers()
	return stack
}

func (stack *Stack) resetLayers() {
	for layerIndex := range stack.layers {
		stack.layers[layerIndex] = make(map[string]any)
	}
}

// LoadEnvironment records NAME=VALUE pairs whose names the registry knows as task or input names.
func (stack *Stack) LoadEnvironment(environment []string) {
	stack.mutex.Lock()
	defer stack.mutex.Unlock()
	for _, assignment := range environment {
		name, value, found := strings.Cut(assignment, "=")
		if !found || len(name) == 0 {
			continue
		}
		if stack.graph != nil && !stack.graph.IsValueName(name) {
			continue
		}
		stack.layers[SourceEnvironment][name] = value
	}
}

// SetCommandLineValue records an explicit value. Stored results of every task consuming the name,
// directly or through other tasks, are dropped so they are computed again with the new value.
func (stack *Stack) SetCommandLineValue(name string, value any) {
	stack.mutex.Lock()
	defer stack.mutex.Unlock()
	if stack.graph != nil {
		for _, dependent := range stack.graph.DependentsOf(name) {
			delete(stack.layers[SourceResult], dependent)
		}
	}
	stack.layers[SourceCommandLine][name] = value
}

// SetResult records the result of a completed task under the task name.
func (stack *Stack) SetResult(name string, value any) {
	stack.mutex.Lock()
	defer stack.mutex.Unlock()
	stack.layers[SourceResult][name] = value
}

// Value returns the highest precedence value for name and where it came from.
func (stack *Stack) Value(name string) (any, Source, bool) {
	stack.mutex.RLock()
	defer stack.mutex.RUnlock()
	for source := SourceCommandLine; source >= SourceEnvironment; source-- {
		if value, present := stack.layers[source][name]; present {
			return value, source, true
		}
	}
	return nil, SourceEnvironment, false
}

// Values flattens the layers into one map honoring precedence.
func (stack *Stack) Values() map[string]any {
	stack.mutex.RLock()
	defer stack.mutex.RUnlock()
	merged := make(map[string]any)
	for source := SourceEnvironment; source <= SourceCommandLine; source++ {
		for name, value := range stack.layers[source] {
			merged[name] = value
		}
	}
	return merged
}

// BindingValues is Values with every value taken from the result layer wrapped in
// taskgraph.Settled. Resolving against it binds recorded results literally.
func (stack *Stack) BindingValues() map[string]any {
	stack.mutex.RLock()
	defer stack.mutex.RUnlock()
	merged := make(map[string]any)
	for source := SourceEnvironment; source <= SourceCommandLine; source++ {
		for name, value := range stack.layers[source] {
			if source == SourceResult {
				value = taskgraph.Settled{Value: value}
			}
			merged[name] = value
		}
	}
	return merged
}

// Layer returns a copy of the values recorded from one source.
func (stack *Stack) Layer(source Source) map[string]any {
	stack.mutex.RLock()
	defer stack.mutex.RUnlock()
	if source < SourceEnvironment || source > SourceCommandLine {
		return nil
	}
	snapshot := make(map[string]any, len(stack.layers[source]))
	for name, value := range stack.layers[source] {
		snapshot[name] = value
	}
	return snapshot
}

// Reset drops every value.
func (stack *Stack) Reset() {
	stack.mutex.Lock()
	defer stack.mutex.Unlock()
	stack.resetLayers()
}
