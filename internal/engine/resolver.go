package engine

import (
	"errors"

	"github.com/tyemirov/taskgraph/internal/taskgraph"
)

// Resolver turns a target task name and a bag of known values into a Plan.
type Resolver struct {
	registry *taskgraph.Registry
}

// NewResolver builds a resolver reading from registry.
func NewResolver(registry *taskgraph.Registry) (*Resolver, error) {
	if registry == nil {
		return nil, ErrRegistryNotConfigured
	}
	return &Resolver{registry: registry}, nil
}

// Resolve builds the invocation plan for target. It only reads the registry and knownValues.
// A target that is not a registered task yields taskgraph.NotFoundError.
func (resolver *Resolver) Resolve(target string, knownValues map[string]any) (Plan, error) {
	task, found := resolver.registry.Get(target)
	if !found {
		return Plan{}, taskgraph.NotFoundError{Name: target}
	}

	state := &resolution{
		registry: resolver.registry,
		onPath:   make(map[string]int),
	}
	root, resolveError := state.resolveTask(task, knownValues)
	if resolveError != nil {
		return Plan{}, resolveError
	}
	return Plan{Nodes: state.nodes, Root: root}, nil
}

type resolution struct {
	registry *taskgraph.Registry
	nodes    []Invocation
	path     []string
	onPath   map[string]int
}

func (state *resolution) resolveTask(task *taskgraph.Task, values map[string]any) (int, error) {
	taskName := task.Name()
	if pathIndex, visiting := state.onPath[taskName]; visiting {
		cyclePath := append(append([]string(nil), state.path[pathIndex:]...), taskName)
		return -1, CycleDetectedError{Path: cyclePath}
	}
	state.onPath[taskName] = len(state.path)
	state.path = append(state.path, taskName)
	defer func() {
		state.path = state.path[:len(state.path)-1]
		delete(state.onPath, taskName)
	}()

	allValues := mergeProvidedValues(values, task.ProvidedValues())
	node := len(state.nodes)
	state.nodes = append(state.nodes, Invocation{Task: task})
	bindings := make(map[string]Binding, len(task.Inputs()))

	for _, inputName := range task.Inputs() {
		binding, bound, bindError := state.bindInput(task, inputName, allValues)
		if bindError != nil {
			return -1, bindError
		}
		if bound {
			bindings[inputName] = binding
		}
	}

	state.nodes[node].Bindings = bindings
	return node, nil
}

func (state *resolution) bindInput(task *taskgraph.Task, inputName string, allValues map[string]any) (Binding, bool, error) {
	value, present := lookupInputValue(task, inputName, allValues)
	if settled, isSettled := value.(taskgraph.Settled); present && isSettled {
		return Literal(settled.Value), true, nil
	}
	if present {
		if referencedName, isText := value.(string); isText {
			if referencedTask, isTask := state.registry.Get(referencedName); isTask {
				return state.bindNested(task, inputName, referencedTask, allValues)
			}
		}
		return Literal(value), true, nil
	}

	if inputTask, isTask := state.registry.Get(inputName); isTask {
		return state.bindNested(task, inputName, inputTask, allValues)
	}

	if task.IsMandatory(inputName) {
		return Binding{}, false, taskgraph.MissingInputError{TaskName: task.Name(), InputName: inputName}
	}
	return Binding{}, false, nil
}

// bindNested resolves a nested task. For optional inputs a nested task that cannot be fully
// resolved leaves the input unbound instead of failing the parent.
func (state *resolution) bindNested(task *taskgraph.Task, inputName string, nestedTask *taskgraph.Task, allValues map[string]any) (Binding, bool, error) {
	arenaSize := len(state.nodes)
	child, resolveError := state.resolveTask(nestedTask, allValues)
	if resolveError == nil {
		return Pending(child), true, nil
	}

	var missingInputError taskgraph.MissingInputError
	if !task.IsMandatory(inputName) && errors.As(resolveError, &missingInputError) {
		state.nodes = state.nodes[:arenaSize]
		return Binding{}, false, nil
	}
	return Binding{}, false, resolveError
}

// lookupInputValue prefers module qualified spellings of an input (module.input, module_input,
// moduleinput) over the plain input name.
func lookupInputValue(task *taskgraph.Task, inputName string, values map[string]any) (any, bool) {
	if module := task.Module(); len(module) > 0 {
		for _, alias := range []string{module + "." + inputName, module + "_" + inputName, module + inputName} {
			if value, present := values[alias]; present {
				return value, true
			}
		}
	}
	value, present := values[inputName]
	return value, present
}

func mergeProvidedValues(values map[string]any, providedValues map[string]string) map[string]any {
	if len(providedValues) == 0 {
		return values
	}
	merged := make(map[string]any, len(values)+len(providedValues))
	for name, value := range values {
		merged[name] = value
	}
	for name, template := range providedValues {
		merged[name] = template
	}
	return merged
}

// ResolveMany resolves every target against the same known values, in order.
func (resolver *Resolver) ResolveMany(targets []string, knownValues map[string]any) ([]Plan, error) {
	plans := make([]Plan, 0, len(targets))
	for _, target := range targets {
		plan, resolveError := resolver.Resolve(target, knownValues)
		if resolveError != nil {
			return nil, resolveError
		}
		plans = append(plans, plan)
	}
	return plans, nil
}
