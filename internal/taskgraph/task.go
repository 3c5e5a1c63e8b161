package taskgraph

import (
	"context"
	"sort"
	"strings"
)

// Arguments holds the values bound to a task's declared inputs.
type Arguments map[string]any

// Has reports whether the argument was bound.
func (arguments Arguments) Has(name string) bool {
	_, present := arguments[name]
	return present
}

// Text returns the bound argument rendered as text.
func (arguments Arguments) Text(name string) (string, bool) {
	value, present := arguments[name]
	if !present {
		return "", false
	}
	return FormatValue(value), true
}

// Invokable is the unit of work behind a task.
type Invokable interface {
	Invoke(ctx context.Context, arguments Arguments) (any, error)
}

// InvokableFunc adapts a function to the Invokable interface.
type InvokableFunc func(ctx context.Context, arguments Arguments) (any, error)

// Invoke calls the wrapped function.
func (function InvokableFunc) Invoke(ctx context.Context, arguments Arguments) (any, error) {
	return function(ctx, arguments)
}

// Definition declares a task before validation.
type Definition struct {
	Name            string
	Module          string
	MandatoryInputs []string
	OptionalInputs  []string
	DefaultInput    string
	Invokable       Invokable
	ProvidedValues  map[string]string
}

// Task is an immutable, validated unit of work with declared inputs.
type Task struct {
	name            string
	module          string
	mandatoryInputs []string
	optionalInputs  []string
	mandatorySet    map[string]struct{}
	optionalSet     map[string]struct{}
	defaultInput    string
	invokable       Invokable
	providedValues  map[string]string
	synthetic       bool
}

// Outcome describes the result of running a task with a set of values.
type Outcome struct {
	Value         any
	Skipped       bool
	MissingInputs []string
	Cached        bool
}

// Settled carries a value that is bound as it is. A settled string that names a task is not
// resolved into a nested invocation of that task.
type Settled struct {
	Value any
}

// NewTask validates a definition and builds a task.
func NewTask(definition Definition) (*Task, error) {
	name := strings.TrimSpace(definition.Name)
	if len(name) == 0 {
		return nil, ErrTaskNameMissing
	}

	task := &Task{
		name:           name,
		module:         strings.TrimSpace(definition.Module),
		mandatorySet:   make(map[string]struct{}, len(definition.MandatoryInputs)),
		optionalSet:    make(map[string]struct{}, len(definition.OptionalInputs)),
		defaultInput:   strings.TrimSpace(definition.DefaultInput),
		invokable:      definition.Invokable,
		providedValues: copyProvidedValues(definition.ProvidedValues),
	}

	for _, rawInput := range definition.MandatoryInputs {
		inputName, inputError := normalizeInputName(name, rawInput)
		if inputError != nil {
			return nil, inputError
		}
		if _, duplicate := task.mandatorySet[inputName]; duplicate {
			return nil, newDefinitionError(name, duplicateInputErrorTemplateConstant, name, inputName)
		}
		task.mandatorySet[inputName] = struct{}{}
		task.mandatoryInputs = append(task.mandatoryInputs, inputName)
	}

	for _, rawInput := range definition.OptionalInputs {
		inputName, inputError := normalizeInputName(name, rawInput)
		if inputError != nil {
			return nil, inputError
		}
		if _, overlapping := task.mandatorySet[inputName]; overlapping {
			return nil, newDefinitionError(name, overlappingInputErrorTemplateConstant, name, inputName)
		}
		if _, duplicate := task.optionalSet[inputName]; duplicate {
			return nil, newDefinitionError(name, duplicateInputErrorTemplateConstant, name, inputName)
		}
		task.optionalSet[inputName] = struct{}{}
		task.optionalInputs = append(task.optionalInputs, inputName)
	}

	if len(task.defaultInput) > 0 && !task.Declares(task.defaultInput) {
		return nil, newDefinitionError(name, undeclaredDefaultInputTemplateConstant, name, task.defaultInput)
	}

	return task, nil
}

func normalizeInputName(taskName string, rawInput string) (string, error) {
	inputName := strings.TrimSpace(rawInput)
	if len(inputName) == 0 {
		return "", ErrInputNameMissing
	}
	if !inputNamePattern.MatchString(inputName) {
		return "", newDefinitionError(taskName, invalidInputNameErrorTemplateConstant, taskName, inputName, inputNamePattern.String())
	}
	return inputName, nil
}

func copyProvidedValues(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	copied := make(map[string]string, len(values))
	for key, value := range values {
		copied[key] = value
	}
	return copied
}

// Name returns the unique task name.
func (task *Task) Name() string {
	return task.name
}

// Module returns the namespace the task was declared in.
func (task *Task) Module() string {
	return task.module
}

// MandatoryInputs returns the mandatory input names in declaration order.
func (task *Task) MandatoryInputs() []string {
	return append([]string(nil), task.mandatoryInputs...)
}

// OptionalInputs returns the optional input names in declaration order.
func (task *Task) OptionalInputs() []string {
	return append([]string(nil), task.optionalInputs...)
}

// Inputs returns mandatory inputs followed by optional inputs. This is the canonical input order.
func (task *Task) Inputs() []string {
	inputs := make([]string, 0, len(task.mandatoryInputs)+len(task.optionalInputs))
	inputs = append(inputs, task.mandatoryInputs...)
	return append(inputs, task.optionalInputs...)
}

// IsMandatory reports whether the input is mandatory.
func (task *Task) IsMandatory(inputName string) bool {
	_, mandatory := task.mandatorySet[inputName]
	return mandatory
}

// Declares reports whether the input is declared as mandatory or optional.
func (task *Task) Declares(inputName string) bool {
	if task.IsMandatory(inputName) {
		return true
	}
	_, optional := task.optionalSet[inputName]
	return optional
}

// DefaultInput returns the input that receives a bare value assigned to the task name.
func (task *Task) DefaultInput() string {
	return task.defaultInput
}

// Invokable returns the underlying unit of work, nil for alias and grouping tasks.
func (task *Task) Invokable() Invokable {
	return task.invokable
}

// ProvidedValues returns a copy of the templates the task contributes to its own resolution.
func (task *Task) ProvidedValues() map[string]string {
	return copyProvidedValues(task.providedValues)
}

// IsAlias reports whether running the task forwards its single mandatory input.
func (task *Task) IsAlias() bool {
	return task.invokable == nil && len(task.mandatoryInputs) == 1
}

// Synthetic reports whether the task was materialized from a provided value template.
func (task *Task) Synthetic() bool {
	return task.synthetic
}

// TemplateTasks materializes one synthetic task per provided value template that has placeholders.
func (task *Task) TemplateTasks() []*Task {
	if len(task.providedValues) == 0 {
		return nil
	}
	argumentNames := make([]string, 0, len(task.providedValues))
	for argumentName := range task.providedValues {
		argumentNames = append(argumentNames, argumentName)
	}
	sort.Strings(argumentNames)

	templateTasks := make([]*Task, 0, len(argumentNames))
	seenTemplates := make(map[string]struct{}, len(argumentNames))
	for _, argumentName := range argumentNames {
		template := task.providedValues[argumentName]
		if _, seen := seenTemplates[template]; seen {
			continue
		}
		placeholders := Placeholders(template)
		if len(placeholders) == 0 {
			continue
		}
		seenTemplates[template] = struct{}{}
		templateTasks = append(templateTasks, newTemplateTask(task.module, template, placeholders))
	}
	return templateTasks
}

func newTemplateTask(module string, template string, placeholders []string) *Task {
	mandatorySet := make(map[string]struct{}, len(placeholders))
	for _, placeholder := range placeholders {
		mandatorySet[placeholder] = struct{}{}
	}
	return &Task{
		name:            template,
		module:          module,
		mandatoryInputs: append([]string(nil), placeholders...),
		mandatorySet:    mandatorySet,
		optionalSet:     map[string]struct{}{},
		invokable: InvokableFunc(func(_ context.Context, arguments Arguments) (any, error) {
			rendered, _ := RenderTemplate(template, arguments)
			return rendered, nil
		}),
		synthetic: true,
	}
}

// Bind restricts values to the declared inputs and lists missing mandatory inputs.
func (task *Task) Bind(values map[string]any) (Arguments, []string) {
	arguments := make(Arguments, len(task.mandatoryInputs)+len(task.optionalInputs))
	var missing []string
	for _, inputName := range task.mandatoryInputs {
		value, present := values[inputName]
		if !present {
			missing = append(missing, inputName)
			continue
		}
		arguments[inputName] = value
	}
	for _, inputName := range task.optionalInputs {
		if value, present := values[inputName]; present {
			arguments[inputName] = value
		}
	}
	return arguments, missing
}

// Run binds values and invokes the task. Missing mandatory inputs skip the invocation without an error.
func (task *Task) Run(ctx context.Context, values map[string]any) (Outcome, error) {
	arguments, missing := task.Bind(values)
	if len(missing) > 0 {
		return Outcome{Skipped: true, MissingInputs: missing}, nil
	}

	if task.IsAlias() {
		return Outcome{Value: arguments[task.mandatoryInputs[0]]}, nil
	}
	if task.invokable == nil {
		return Outcome{}, nil
	}

	result, invokeError := task.invokable.Invoke(ctx, arguments)
	if invokeError != nil {
		return Outcome{}, InvocationError{TaskName: task.name, Cause: invokeError}
	}
	return Outcome{Value: result}, nil
}
