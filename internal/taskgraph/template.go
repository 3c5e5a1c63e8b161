package taskgraph

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

const (
	placeholderOpenConstant  = '{'
	placeholderCloseConstant = '}'
)

var inputNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

type templateSegment struct {
	literal     string
	placeholder string
}

// Placeholders lists the distinct {name} placeholders of a template in order of first appearance.
func Placeholders(template string) []string {
	segments := parseTemplate(template)
	names := make([]string, 0, len(segments))
	seen := make(map[string]struct{}, len(segments))
	for _, segment := range segments {
		if len(segment.placeholder) == 0 {
			continue
		}
		if _, exists := seen[segment.placeholder]; exists {
			continue
		}
		seen[segment.placeholder] = struct{}{}
		names = append(names, segment.placeholder)
	}
	return names
}

// RenderTemplate substitutes every placeholder present in values and returns the rendered text
// together with the placeholders it could not resolve. Unresolved placeholders stay verbatim.
// Doubled braces render as single braces.
func RenderTemplate(template string, values map[string]any) (string, []string) {
	var builder strings.Builder
	var unresolved []string
	seenUnresolved := map[string]struct{}{}
	for _, segment := range parseTemplate(template) {
		if len(segment.placeholder) == 0 {
			builder.WriteString(segment.literal)
			continue
		}
		value, present := values[segment.placeholder]
		if !present {
			builder.WriteString(segment.literal)
			if _, seen := seenUnresolved[segment.placeholder]; !seen {
				seenUnresolved[segment.placeholder] = struct{}{}
				unresolved = append(unresolved, segment.placeholder)
			}
			continue
		}
		builder.WriteString(FormatValue(value))
	}
	return builder.String(), unresolved
}

// FormatValue renders a bound value as text for templates, cache keys and exports.
func FormatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case []byte:
		return string(typed)
	case fmt.Stringer:
		return typed.String()
	case error:
		return typed.Error()
	}

	switch reflect.ValueOf(value).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Pointer:
		encoded, encodeError := json.Marshal(value)
		if encodeError == nil {
			return string(encoded)
		}
	}
	return fmt.Sprint(value)
}

func parseTemplate(template string) []templateSegment {
	segments := make([]templateSegment, 0, 4)
	var literal strings.Builder
	flushLiteral := func() {
		if literal.Len() == 0 {
			return
		}
		segments = append(segments, templateSegment{literal: literal.String()})
		literal.Reset()
	}

	for index := 0; index < len(template); {
		current := template[index]
		hasNext := index+1 < len(template)
		switch {
		case current == placeholderOpenConstant && hasNext && template[index+1] == placeholderOpenConstant:
			literal.WriteByte(placeholderOpenConstant)
			index += 2
		case current == placeholderCloseConstant && hasNext && template[index+1] == placeholderCloseConstant:
			literal.WriteByte(placeholderCloseConstant)
			index += 2
		case current == placeholderOpenConstant:
			closingOffset := strings.IndexByte(template[index+1:], placeholderCloseConstant)
			if closingOffset < 0 {
				literal.WriteByte(current)
				index++
				continue
			}
			name := template[index+1 : index+1+closingOffset]
			if !inputNamePattern.MatchString(name) {
				literal.WriteByte(current)
				index++
				continue
			}
			flushLiteral()
			segments = append(segments, templateSegment{
				literal:     template[index : index+closingOffset+2],
				placeholder: name,
			})
			index += closingOffset + 2
		default:
			literal.WriteByte(current)
			index++
		}
	}
	flushLiteral()
	return segments
}
