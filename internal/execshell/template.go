package execshell

import (
	"strings"

	"github.com/tyemirov/taskgraph/internal/taskgraph"
)

// Template is a command template given either as one string or as a list of fragments.
type Template struct {
	Text      string
	Fragments []string
}

// IsEmpty reports whether the template carries no command text.
func (template Template) IsEmpty() bool {
	return len(strings.TrimSpace(template.Text)) == 0 && len(template.Fragments) == 0
}

// Render substitutes arguments into the template.
//
// A single string is rendered in one pass; a placeholder naming a declared input without a value
// fails with taskgraph.MissingInputError. Fragments naming a declared input without a value are
// dropped and the rest are concatenated, so optional flags disappear cleanly. Placeholders that name
// no declared input are kept verbatim in both forms.
func (template Template) Render(taskName string, declaredInputs []string, arguments taskgraph.Arguments) (string, error) {
	declared := make(map[string]struct{}, len(declaredInputs))
	for _, inputName := range declaredInputs {
		declared[inputName] = struct{}{}
	}

	if len(template.Fragments) == 0 {
		rendered, unresolved := taskgraph.RenderTemplate(template.Text, arguments)
		for _, placeholder := range unresolved {
			if _, isDeclared := declared[placeholder]; isDeclared {
				return "", taskgraph.MissingInputError{TaskName: taskName, InputName: placeholder}
			}
		}
		return rendered, nil
	}

	var builder strings.Builder
	for _, fragment := range template.Fragments {
		rendered, unresolved := taskgraph.RenderTemplate(fragment, arguments)
		if referencesDeclared(unresolved, declared) {
			continue
		}
		builder.WriteString(rendered)
	}
	return builder.String(), nil
}

func referencesDeclared(placeholders []string, declared map[string]struct{}) bool {
	for _, placeholder := range placeholders {
		if _, isDeclared := declared[placeholder]; isDeclared {
			return true
		}
	}
	return false
}
