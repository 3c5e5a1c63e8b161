package taskgraph

import (
	"sort"
	"sync"
)

// Registry indexes registered tasks by name, by consumed input and by module.
type Registry struct {
	mutex         sync.RWMutex
	tasksByName   map[string]*Task
	tasksByInput  map[string]map[string]struct{}
	tasksByModule map[string]map[string]struct{}
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	registry := &Registry{}
	registry.Reset()
	return registry
}

// Register inserts the task, replacing any task registered under the same name,
// together with the synthetic tasks materialized from its provided values. Synthetic tasks of a
// replaced task are dropped once no registered task provides their template any more.
func (registry *Registry) Register(task *Task) error {
	if task == nil {
		return ErrTaskNotProvided
	}

	registry.mutex.Lock()
	defer registry.mutex.Unlock()

	previous, replacing := registry.tasksByName[task.name]
	registry.insert(task)
	for _, templateTask := range task.TemplateTasks() {
		if existing, exists := registry.tasksByName[templateTask.Name()]; exists && !existing.Synthetic() {
			continue
		}
		registry.insert(templateTask)
	}
	if replacing {
		registry.dropOrphanedTemplates(previous)
	}
	return nil
}

func (registry *Registry) dropOrphanedTemplates(replaced *Task) {
	for _, templateTask := range replaced.TemplateTasks() {
		registered, exists := registry.tasksByName[templateTask.name]
		if !exists || !registered.synthetic || registry.templateProvided(templateTask.name) {
			continue
		}
		registry.removeIndices(registered)
		delete(registry.tasksByName, registered.name)
	}
}

func (registry *Registry) templateProvided(template string) bool {
	for _, task := range registry.tasksByName {
		if task.synthetic {
			continue
		}
		for _, providedValue := range task.providedValues {
			if providedValue == template {
				return true
			}
		}
	}
	return false
}

func (registry *Registry) insert(task *Task) {
	if previous, exists := registry.tasksByName[task.name]; exists {
		registry.removeIndices(previous)
	}

	registry.tasksByName[task.name] = task
	for _, inputName := range task.Inputs() {
		addToIndex(registry.tasksByInput, inputName, task.name)
	}
	if len(task.module) > 0 {
		addToIndex(registry.tasksByModule, task.module, task.name)
	}
}

func (registry *Registry) removeIndices(task *Task) {
	for _, inputName := range task.Inputs() {
		removeFromIndex(registry.tasksByInput, inputName, task.name)
	}
	if len(task.module) > 0 {
		removeFromIndex(registry.tasksByModule, task.module, task.name)
	}
}

func addToIndex(index map[string]map[string]struct{}, key string, taskName string) {
	members, exists := index[key]
	if !exists {
		members = make(map[string]struct{})
		index[key] = members
	}
	members[taskName] = struct{}{}
}

func removeFromIndex(index map[string]map[string]struct{}, key string, taskName string) {
	members, exists := index[key]
	if !exists {
		return
	}
	delete(members, taskName)
	if len(members) == 0 {
		delete(index, key)
	}
}

// Get returns the task registered under name. A missing task means name is a plain value.
func (registry *Registry) Get(name string) (*Task, bool) {
	if registry == nil {
		return nil, false
	}
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()
	task, exists := registry.tasksByName[name]
	return task, exists
}

// IsTask reports whether name is a registered task.
func (registry *Registry) IsTask(name string) bool {
	_, exists := registry.Get(name)
	return exists
}

// IsValueName reports whether name is a task name or an input of any task.
func (registry *Registry) IsValueName(name string) bool {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()
	if _, isTask := registry.tasksByName[name]; isTask {
		return true
	}
	_, isInput := registry.tasksByInput[name]
	return isInput
}

// Reset removes every registered task.
func (registry *Registry) Reset() {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	registry.tasksByName = make(map[string]*Task)
	registry.tasksByInput = make(map[string]map[string]struct{})
	registry.tasksByModule = make(map[string]map[string]struct{})
}

// Len returns the number of registered tasks, synthetic tasks included.
func (registry *Registry) Len() int {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()
	return len(registry.tasksByName)
}

// Tasks returns every declared task sorted by name. Synthetic template tasks are omitted.
func (registry *Registry) Tasks() []*Task {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()
	tasks := make([]*Task, 0, len(registry.tasksByName))
	for _, task := range registry.tasksByName {
		if task.synthetic {
			continue
		}
		tasks = append(tasks, task)
	}
	sort.Slice(tasks, func(left int, right int) bool {
		return tasks[left].name < tasks[right].name
	})
	return tasks
}

// TasksConsuming returns the names of tasks declaring inputName.
func (registry *Registry) TasksConsuming(inputName string) []string {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()
	return sortedMembers(registry.tasksByInput[inputName])
}

// TasksInModule returns the names of tasks declared in module.
func (registry *Registry) TasksInModule(module string) []string {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()
	return sortedMembers(registry.tasksByModule[module])
}

// Modules returns the module names with at least one task.
func (registry *Registry) Modules() []string {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()
	modules := make([]string, 0, len(registry.tasksByModule))
	for module := range registry.tasksByModule {
		modules = append(modules, module)
	}
	sort.Strings(modules)
	return modules
}

// FinalTasks returns the declared tasks that no other task consumes as an input.
func (registry *Registry) FinalTasks() []*Task {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()
	finalTasks := make([]*Task, 0)
	for name, task := range registry.tasksByName {
		if task.synthetic {
			continue
		}
		if _, consumed := registry.tasksByInput[name]; consumed {
			continue
		}
		finalTasks = append(finalTasks, task)
	}
	sort.Slice(finalTasks, func(left int, right int) bool {
		return finalTasks[left].name < finalTasks[right].name
	})
	return finalTasks
}

// DependentsOf returns every task that consumes name directly or through other tasks.
func (registry *Registry) DependentsOf(name string) []string {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()

	visited := make(map[string]struct{})
	pending := []string{name}
	for len(pending) > 0 {
		current := pending[0]
		pending = pending[1:]
		for consumer := range registry.tasksByInput[current] {
			if _, seen := visited[consumer]; seen {
				continue
			}
			visited[consumer] = struct{}{}
			pending = append(pending, consumer)
		}
	}
	delete(visited, name)
	return sortedMembers(visited)
}

func sortedMembers(members map[string]struct{}) []string {
	names := make([]string, 0, len(members))
	for member := range members {
		names = append(names, member)
	}
	sort.Strings(names)
	return names
}
