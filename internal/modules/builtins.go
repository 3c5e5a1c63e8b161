package modules

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/tyemirov/taskgraph/internal/taskgraph"
)

const (
	regexpModuleConstant     = "regexp"
	textModuleConstant       = "text"
	filesystemModuleConstant = "filesystem"
	jsonModuleConstant       = "json"

	searchPatternTaskConstant    = "search_pattern"
	waitTaskConstant             = "wait"
	randomASCIITaskConstant      = "random_ascii"
	currentDirectoryTaskConstant = "current_directory"
	jsonValueTaskConstant        = "json_value"
	updateJSONFileTaskConstant   = "update_json_file"

	textInputConstant     = "text"
	patternInputConstant  = "pattern"
	secondsInputConstant  = "seconds"
	sizeInputConstant     = "size"
	jsonInputConstant     = "json"
	pathInputConstant     = "path"
	keyInputConstant      = "key"
	valueInputConstant    = "value"
	jsonFileInputConstant = "json_file"

	defaultRandomASCIISizeConstant = 80
	jsonFilePermissionsConstant    = 0o644

	invalidPatternErrorTemplateConstant   = "invalid pattern %q: %w"
	invalidSecondsErrorTemplateConstant   = "invalid number of seconds %q: %w"
	invalidSizeErrorTemplateConstant      = "invalid size %q: %w"
	invalidJSONErrorMessageConstant       = "input is not valid JSON"
	readJSONFileErrorTemplateConstant     = "failed to read %s: %w"
	updateJSONFileErrorTemplateConstant   = "failed to set %q in %s: %w"
	writeJSONFileErrorTemplateConstant    = "failed to write %s: %w"
	currentDirectoryErrorTemplateConstant = "failed to determine current directory: %w"
)

// ErrInvalidJSON indicates a json input that does not parse.
var ErrInvalidJSON = errors.New(invalidJSONErrorMessageConstant)

// Builtins returns the definitions of the tasks implemented in Go.
func Builtins() []taskgraph.Definition {
	return []taskgraph.Definition{
		{
			Name:            searchPatternTaskConstant,
			Module:          regexpModuleConstant,
			MandatoryInputs: []string{textInputConstant, patternInputConstant},
			Invokable:       taskgraph.InvokableFunc(searchPattern),
		},
		{
			Name:            waitTaskConstant,
			Module:          textModuleConstant,
			MandatoryInputs: []string{secondsInputConstant},
			DefaultInput:    secondsInputConstant,
			Invokable:       taskgraph.InvokableFunc(wait),
		},
		{
			Name:           randomASCIITaskConstant,
			Module:         textModuleConstant,
			OptionalInputs: []string{sizeInputConstant},
			DefaultInput:   sizeInputConstant,
			Invokable:      taskgraph.InvokableFunc(randomASCII),
		},
		{
			Name:      currentDirectoryTaskConstant,
			Module:    filesystemModuleConstant,
			Invokable: taskgraph.InvokableFunc(currentDirectory),
		},
		{
			Name:            jsonValueTaskConstant,
			Module:          jsonModuleConstant,
			MandatoryInputs: []string{jsonInputConstant, pathInputConstant},
			Invokable:       taskgraph.InvokableFunc(jsonValue),
		},
		{
			Name:            updateJSONFileTaskConstant,
			Module:          jsonModuleConstant,
			MandatoryInputs: []string{keyInputConstant, valueInputConstant, jsonFileInputConstant},
			Invokable:       taskgraph.InvokableFunc(updateJSONFile),
		},
	}
}

// RegisterBuiltins registers every builtin task.
func RegisterBuiltins(registry *taskgraph.Registry) error {
	if registry == nil {
		return ErrRegistryMissing
	}
	for _, definition := range Builtins() {
		task, taskError := taskgraph.NewTask(definition)
		if taskError != nil {
			return taskError
		}
		if registerError := registry.Register(task); registerError != nil {
			return fmt.Errorf(registerTaskErrorTemplateConstant, definition.Name, registerError)
		}
	}
	return nil
}

// searchPattern collects, for every matching line, the first capture group or the whole line.
// A single match is returned as is; several are joined with newlines.
func searchPattern(_ context.Context, arguments taskgraph.Arguments) (any, error) {
	text, _ := arguments.Text(textInputConstant)
	pattern, _ := arguments.Text(patternInputConstant)
	expression, compileError := regexp.Compile(pattern)
	if compileError != nil {
		return nil, fmt.Errorf(invalidPatternErrorTemplateConstant, pattern, compileError)
	}

	matches := make([]string, 0)
	for _, line := range strings.Split(text, "\n") {
		submatches := expression.FindStringSubmatch(line)
		if submatches == nil {
			continue
		}
		if len(submatches) < 2 {
			matches = append(matches, line)
			continue
		}
		matches = append(matches, submatches[1])
	}
	if len(matches) == 1 {
		return matches[0], nil
	}
	return strings.Join(matches, "\n"), nil
}

func wait(ctx context.Context, arguments taskgraph.Arguments) (any, error) {
	rawSeconds, _ := arguments.Text(secondsInputConstant)
	seconds, parseError := strconv.ParseFloat(strings.TrimSpace(rawSeconds), 64)
	if parseError != nil {
		return nil, fmt.Errorf(invalidSecondsErrorTemplateConstant, rawSeconds, parseError)
	}
	timer := time.NewTimer(time.Duration(seconds * float64(time.Second)))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	}
}

// randomASCII produces ASCII noise of the requested size. While room remains a line break is written as CRLF followed by a letter.
func randomASCII(_ context.Context, arguments taskgraph.Arguments) (any, error) {
	size := defaultRandomASCIISizeConstant
	if rawSize, present := arguments.Text(sizeInputConstant); present {
		parsedSize, parseError := strconv.Atoi(strings.TrimSpace(rawSize))
		if parseError != nil {
			return nil, fmt.Errorf(invalidSizeErrorTemplateConstant, rawSize, parseError)
		}
		size = parsedSize
	}

	var builder strings.Builder
	for builder.Len() < size {
		character := byte(rand.IntN(128))
		if (character == '\r' || character == '\n') && builder.Len()+3 < size {
			builder.WriteString("\r\nA")
			continue
		}
		builder.WriteByte(character)
	}
	return builder.String(), nil
}

func currentDirectory(context.Context, taskgraph.Arguments) (any, error) {
	directory, directoryError := os.Getwd()
	if directoryError != nil {
		return nil, fmt.Errorf(currentDirectoryErrorTemplateConstant, directoryError)
	}
	return directory, nil
}

// jsonValue evaluates a gjson path against a JSON document.
func jsonValue(_ context.Context, arguments taskgraph.Arguments) (any, error) {
	document, _ := arguments.Text(jsonInputConstant)
	path, _ := arguments.Text(pathInputConstant)
	if !gjson.Valid(document) {
		return nil, ErrInvalidJSON
	}
	result := gjson.Get(document, path)
	if !result.Exists() {
		return nil, nil
	}
	if result.IsObject() || result.IsArray() {
		return result.Raw, nil
	}
	return result.String(), nil
}

// updateJSONFile sets key, an sjson path, to value and rewrites the file. The value is stored as
// raw JSON when it parses as JSON and as a string otherwise. It returns the updated document.
func updateJSONFile(_ context.Context, arguments taskgraph.Arguments) (any, error) {
	key, _ := arguments.Text(keyInputConstant)
	value, _ := arguments.Text(valueInputConstant)
	jsonFile, _ := arguments.Text(jsonFileInputConstant)

	content, readError := os.ReadFile(jsonFile)
	if readError != nil {
		return nil, fmt.Errorf(readJSONFileErrorTemplateConstant, jsonFile, readError)
	}

	var updated string
	var setError error
	if gjson.Valid(value) {
		updated, setError = sjson.SetRaw(string(content), key, value)
	} else {
		updated, setError = sjson.Set(string(content), key, value)
	}
	if setError != nil {
		return nil, fmt.Errorf(updateJSONFileErrorTemplateConstant, key, jsonFile, setError)
	}
	if writeError := os.WriteFile(jsonFile, []byte(updated), jsonFilePermissionsConstant); writeError != nil {
		return nil, fmt.Errorf(writeJSONFileErrorTemplateConstant, jsonFile, writeError)
	}
	return updated, nil
}
