package execshell

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tyemirov/taskgraph/internal/taskgraph"
)

const (
	postprocessPatternErrorTemplateConstant      = "postprocess rule %q: %w"
	postprocessCaptureGroupErrorTemplateConstant = "postprocess rule %q needs a capture group: %s"
)

// Rule extracts the first capture group of Pattern from output lines into the field Name.
type Rule struct {
	Name    string
	Pattern string
}

type compiledRule struct {
	name    string
	pattern *regexp.Regexp
}

// compileRules renders each pattern with the task arguments and compiles it. A rule whose pattern
// references a declared input without a value is left out.
func compileRules(taskName string, declaredInputs []string, rules []Rule, arguments taskgraph.Arguments) ([]compiledRule, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		rendered, renderError := Template{Fragments: []string{rule.Pattern}}.Render(taskName, declaredInputs, arguments)
		if renderError != nil {
			return nil, renderError
		}
		if len(rendered) == 0 {
			continue
		}
		pattern, compileError := regexp.Compile(rendered)
		if compileError != nil {
			return nil, fmt.Errorf(postprocessPatternErrorTemplateConstant, rule.Name, compileError)
		}
		if pattern.NumSubexp() < 1 {
			return nil, fmt.Errorf(postprocessCaptureGroupErrorTemplateConstant, rule.Name, rendered)
		}
		compiled = append(compiled, compiledRule{name: rule.Name, pattern: pattern})
	}
	return compiled, nil
}

// extractRecords scans output line by line against every rule in order. A rule matching while its
// field is already set in the current record starts a new record. One record is returned as a map,
// several as a slice of maps.
func extractRecords(output string, rules []compiledRule) any {
	records := make([]map[string]string, 0, 1)
	current := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		for _, rule := range rules {
			match := rule.pattern.FindStringSubmatch(line)
			if match == nil {
				continue
			}
			if _, alreadySet := current[rule.name]; alreadySet {
				records = append(records, current)
				current = make(map[string]string)
			}
			current[rule.name] = match[1]
		}
	}
	records = append(records, current)
	if len(records) == 1 {
		return records[0]
	}
	return records
}
