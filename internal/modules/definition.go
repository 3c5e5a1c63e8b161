package modules

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tyemirov/taskgraph/internal/execshell"
)

const (
	definitionParseErrorTemplateConstant   = "failed to parse task definitions: %w"
	definitionDocumentKindMessageConstant  = "task definitions must be a list, a single task, or a mapping with a tasks list"
	commandKindErrorTemplateConstant       = "task %q command must be a string or a list of strings"
	postprocessKindErrorTemplateConstant   = "task %q postprocess must be a mapping of names to patterns"
	postprocessPatternKindTemplateConstant = "task %q postprocess rule %q must be a string"
	definitionNameMissingTemplateConstant  = "task definition %d has no name"
	definitionsKeyConstant                 = "tasks"
	nameKeyConstant                        = "name"
)

// TaskDefinition is a task declared in a definition file.
type TaskDefinition struct {
	Name                 string            `yaml:"name"`
	Module               string            `yaml:"module"`
	Inputs               []string          `yaml:"inputs"`
	OptionalInputs       []string          `yaml:"optional_inputs"`
	OptionalInputsAlias  []string          `yaml:"optionalInputs"`
	DefaultInput         string            `yaml:"default_input"`
	DefaultInputAlias    string            `yaml:"defaultInput"`
	Executable           string            `yaml:"executable"`
	Command              yaml.Node         `yaml:"command"`
	CommandAlias         yaml.Node         `yaml:"commandLineArguments"`
	Values               map[string]string `yaml:"values"`
	Postprocess          yaml.Node         `yaml:"postprocess"`
	WorkingDirectory     string            `yaml:"working_directory"`
	EnvironmentVariables map[string]string `yaml:"environment"`
}

// CommandTemplate returns the command as a single string or as fragments.
func (definition TaskDefinition) CommandTemplate() (text string, fragments []string, err error) {
	node := definition.Command
	if node.Kind == 0 {
		node = definition.CommandAlias
	}
	switch node.Kind {
	case 0:
		return "", nil, nil
	case yaml.ScalarNode:
		return node.Value, nil, nil
	case yaml.SequenceNode:
		fragments = make([]string, 0, len(node.Content))
		for _, fragmentNode := range node.Content {
			if fragmentNode.Kind != yaml.ScalarNode {
				return "", nil, fmt.Errorf(commandKindErrorTemplateConstant, definition.Name)
			}
			fragments = append(fragments, fragmentNode.Value)
		}
		return "", fragments, nil
	default:
		return "", nil, fmt.Errorf(commandKindErrorTemplateConstant, definition.Name)
	}
}

// PostprocessRules returns the rules in file order.
func (definition TaskDefinition) PostprocessRules() ([]execshell.Rule, error) {
	node := definition.Postprocess
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf(postprocessKindErrorTemplateConstant, definition.Name)
	}
	rules := make([]execshell.Rule, 0, len(node.Content)/2)
	for index := 0; index+1 < len(node.Content); index += 2 {
		nameNode := node.Content[index]
		patternNode := node.Content[index+1]
		if patternNode.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf(postprocessPatternKindTemplateConstant, definition.Name, nameNode.Value)
		}
		rules = append(rules, execshell.Rule{Name: nameNode.Value, Pattern: patternNode.Value})
	}
	return rules, nil
}

// OptionalInputNames merges both spellings of optional inputs.
func (definition TaskDefinition) OptionalInputNames() []string {
	return append(append([]string(nil), definition.OptionalInputs...), definition.OptionalInputsAlias...)
}

// DefaultInputName returns whichever spelling of the default input is set.
func (definition TaskDefinition) DefaultInputName() string {
	if len(strings.TrimSpace(definition.DefaultInput)) > 0 {
		return definition.DefaultInput
	}
	return definition.DefaultInputAlias
}

// ParseDefinitions decodes YAML or JSON content. The document may be a list of tasks, a single task,
// or a mapping with a tasks list and an optional module applied to tasks that name none.
// defaultModule applies when neither the document nor the task names a module.
func ParseDefinitions(content []byte, defaultModule string) ([]TaskDefinition, error) {
	var document yaml.Node
	if unmarshalError := yaml.Unmarshal(content, &document); unmarshalError != nil {
		return nil, fmt.Errorf(definitionParseErrorTemplateConstant, unmarshalError)
	}
	if document.Kind == 0 || len(document.Content) == 0 {
		return nil, nil
	}
	root := document.Content[0]

	module := defaultModule
	var definitions []TaskDefinition
	switch root.Kind {
	case yaml.SequenceNode:
		if decodeError := root.Decode(&definitions); decodeError != nil {
			return nil, fmt.Errorf(definitionParseErrorTemplateConstant, decodeError)
		}
	case yaml.MappingNode:
		if mappingHasKey(root, definitionsKeyConstant) {
			var wrapper struct {
				Module string           `yaml:"module"`
				Tasks  []TaskDefinition `yaml:"tasks"`
			}
			if decodeError := root.Decode(&wrapper); decodeError != nil {
				return nil, fmt.Errorf(definitionParseErrorTemplateConstant, decodeError)
			}
			if len(strings.TrimSpace(wrapper.Module)) > 0 {
				module = strings.TrimSpace(wrapper.Module)
			}
			definitions = wrapper.Tasks
			break
		}
		if !mappingHasKey(root, nameKeyConstant) {
			return nil, fmt.Errorf(definitionParseErrorTemplateConstant, errors.New(definitionDocumentKindMessageConstant))
		}
		var single TaskDefinition
		if decodeError := root.Decode(&single); decodeError != nil {
			return nil, fmt.Errorf(definitionParseErrorTemplateConstant, decodeError)
		}
		definitions = []TaskDefinition{single}
	default:
		return nil, fmt.Errorf(definitionParseErrorTemplateConstant, errors.New(definitionDocumentKindMessageConstant))
	}

	for definitionIndex := range definitions {
		definitions[definitionIndex].Name = strings.TrimSpace(definitions[definitionIndex].Name)
		if len(definitions[definitionIndex].Name) == 0 {
			return nil, fmt.Errorf(definitionNameMissingTemplateConstant, definitionIndex)
		}
		if len(strings.TrimSpace(definitions[definitionIndex].Module)) == 0 {
			definitions[definitionIndex].Module = module
		}
	}
	return definitions, nil
}

func mappingHasKey(node *yaml.Node, key string) bool {
	for index := 0; index+1 < len(node.Content); index += 2 {
		if node.Content[index].Value == key {
			return true
		}
	}
	return false
}
