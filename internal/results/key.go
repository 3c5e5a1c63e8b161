package results

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tyemirov/taskgraph/internal/taskgraph"
)

const (
	keySeparatorConstant        = "\x1f"
	unsetMarkerConstant         = "\x00unset"
	nilMarkerConstant           = "n"
	stringMarkerConstant        = "s"
	encodedMarkerConstant       = "j"
	fallbackMarkerConstant      = "f"
	keyAssignmentConstant       = "="
	fallbackValueFormatConstant = "%T:%#v"
)

// Key builds the cache key of a task invocation: the task name followed by every declared input
// in canonical order, with a sentinel for inputs that were not supplied. The boolean is false when
// a mandatory input is missing.
func Key(task *taskgraph.Task, values map[string]any) (string, bool) {
	var builder strings.Builder
	builder.WriteString(strconv.Quote(task.Name()))
	for _, inputName := range task.Inputs() {
		builder.WriteString(keySeparatorConstant)
		builder.WriteString(inputName)
		builder.WriteString(keyAssignmentConstant)

		value, present := values[inputName]
		if !present {
			if task.IsMandatory(inputName) {
				return "", false
			}
			builder.WriteString(unsetMarkerConstant)
			continue
		}
		builder.WriteString(encodeKeyValue(value))
	}
	return builder.String(), true
}

func encodeKeyValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return nilMarkerConstant
	case string:
		return stringMarkerConstant + strconv.Quote(typed)
	}
	encoded, encodeError := json.Marshal(value)
	if encodeError != nil {
		return fallbackMarkerConstant + fmt.Sprintf(fallbackValueFormatConstant, value, value)
	}
	return encodedMarkerConstant + string(encoded)
}
