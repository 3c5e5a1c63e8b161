package tasks

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tyemirov/taskgraph/internal/taskgraph"
	flagutils "github.com/tyemirov/taskgraph/internal/utils/flags"
	"github.com/tyemirov/taskgraph/internal/valuestack"
)

const assignmentSeparatorConstant = "="

// splitAssignment reports whether argument is a NAME=VALUE assignment with a non-empty name.
func splitAssignment(argument string) (string, string, bool) {
	name, value, found := strings.Cut(argument, assignmentSeparatorConstant)
	if !found || len(strings.TrimSpace(name)) == 0 {
		return "", "", false
	}
	return strings.TrimSpace(name), value, true
}

func parseVariableAssignments(assignments []string) (map[string]string, error) {
	if len(assignments) == 0 {
		return nil, nil
	}

	result := make(map[string]string, len(assignments))
	for _, assignment := range assignments {
		trimmed := strings.TrimSpace(assignment)
		if len(trimmed) == 0 {
			continue
		}
		key, value, isAssignment := splitAssignment(trimmed)
		if !isAssignment {
			return nil, fmt.Errorf("values must be in name=value format: %s", assignment)
		}
		normalized, normalizeError := valuestack.NewValueName(key)
		if normalizeError != nil {
			return nil, normalizeError
		}
		result[normalized] = value
	}

	if len(result) == 0 {
		return nil, nil
	}
	return result, nil
}

func loadVariablesFromFiles(paths []string) (map[string]string, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	combined := make(map[string]string)
	for _, rawPath := range paths {
		trimmed := strings.TrimSpace(rawPath)
		if len(trimmed) == 0 {
			continue
		}
		fileVariables, fileError := loadVariablesFromFile(trimmed)
		if fileError != nil {
			return nil, fileError
		}
		for key, value := range fileVariables {
			combined[key] = value
		}
	}

	if len(combined) == 0 {
		return nil, nil
	}
	return combined, nil
}

func loadVariablesFromFile(path string) (map[string]string, error) {
	content, readError := os.ReadFile(path)
	if readError != nil {
		return nil, fmt.Errorf("failed to read value file %q: %w", path, readError)
	}

	var parsed map[string]any
	if unmarshalError := yaml.Unmarshal(content, &parsed); unmarshalError != nil {
		return nil, fmt.Errorf("failed to parse value file %q: %w", path, unmarshalError)
	}

	result := make(map[string]string, len(parsed))
	for rawKey, value := range parsed {
		normalizedKey, normalizeError := valuestack.NewValueName(rawKey)
		if normalizeError != nil {
			return nil, fmt.Errorf("invalid value name %q in %s: %w", rawKey, path, normalizeError)
		}
		result[normalizedKey] = taskgraph.FormatValue(value)
	}

	return result, nil
}

// resolveValues reads --var-file files in order, then --var assignments, later values winning.
func resolveValues(command *cobra.Command) (map[string]string, error) {
	values := make(map[string]string)
	if command == nil {
		return values, nil
	}

	valueFiles, valueFileError := command.Flags().GetStringArray(flagutils.VariableFileFlagName)
	if valueFileError != nil {
		return nil, valueFileError
	}
	fileValues, loadError := loadVariablesFromFiles(valueFiles)
	if loadError != nil {
		return nil, loadError
	}
	for key, value := range fileValues {
		values[key] = value
	}

	assignments, assignmentError := command.Flags().GetStringArray(flagutils.VariableFlagName)
	if assignmentError != nil {
		return nil, assignmentError
	}
	parsedAssignments, parseError := parseVariableAssignments(assignments)
	if parseError != nil {
		return nil, parseError
	}
	for key, value := range parsedAssignments {
		values[key] = value
	}
	return values, nil
}

// applyValues records values on the runner stack as command line values.
func applyValues(stack *valuestack.Stack, values map[string]string) {
	for name, value := range values {
		stack.SetCommandLineValue(name, value)
	}
}
