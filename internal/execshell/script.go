package execshell

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/tyemirov/taskgraph/internal/taskgraph"
)

const (
	scriptExecutorMissingMessageConstant = "shell script executor not configured"
	scriptCommandMissingMessageConstant  = "shell script has neither executable nor command template"
	transcriptFailureMessageConstant     = "transcript could not be written"
	transcriptPathFieldNameConstant      = "transcript"
	taskFieldNameConstant                = "task"
)

var (
	// ErrScriptExecutorMissing indicates a script built without a shell executor.
	ErrScriptExecutorMissing = errors.New(scriptExecutorMissingMessageConstant)
	// ErrScriptCommandMissing indicates a script with nothing to run.
	ErrScriptCommandMissing = errors.New(scriptCommandMissingMessageConstant)
)

// ScriptDefinition describes a shell-backed task.
type ScriptDefinition struct {
	TaskName             string
	Module               string
	Executable           string
	Template             Template
	DeclaredInputs       []string
	Postprocess          []Rule
	WorkingDirectory     string
	EnvironmentVariables map[string]string
}

// Script is the invokable behind shell-backed tasks. Each rendered line runs as its own process,
// strictly one after another.
type Script struct {
	definition  ScriptDefinition
	executor    *ShellExecutor
	transcripts *TranscriptWriter
	logger      *zap.Logger
}

// NewScript builds a script invokable. transcripts may be nil.
func NewScript(definition ScriptDefinition, executor *ShellExecutor, transcripts *TranscriptWriter) (*Script, error) {
	if executor == nil {
		return nil, ErrScriptExecutorMissing
	}
	if len(strings.TrimSpace(definition.Executable)) == 0 && definition.Template.IsEmpty() {
		return nil, ErrScriptCommandMissing
	}
	return &Script{
		definition:  definition,
		executor:    executor,
		transcripts: transcripts,
		logger:      executor.logger,
	}, nil
}

// Lines renders the command lines the script would run for arguments. The executable, when set,
// prefixes the first line.
func (script *Script) Lines(arguments taskgraph.Arguments) ([]string, error) {
	executable := strings.TrimSpace(script.definition.Executable)
	if script.definition.Template.IsEmpty() {
		return []string{executable}, nil
	}

	rendered, renderError := script.definition.Template.Render(script.definition.TaskName, script.definition.DeclaredInputs, arguments)
	if renderError != nil {
		return nil, renderError
	}
	rawLines := strings.Split(rendered, "\n")
	if len(executable) > 0 {
		rawLines[0] = executable + " " + rawLines[0]
	}

	lines := make([]string, 0, len(rawLines))
	for _, rawLine := range rawLines {
		if line := strings.TrimSpace(rawLine); len(line) > 0 {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// Invoke runs every line in order and stops at the first failing one. With postprocess rules the
// result is the extracted record or records, otherwise the list of execution records.
func (script *Script) Invoke(ctx context.Context, arguments taskgraph.Arguments) (any, error) {
	lines, linesError := script.Lines(arguments)
	if linesError != nil {
		return nil, linesError
	}
	rules, rulesError := compileRules(script.definition.TaskName, script.definition.DeclaredInputs, script.definition.Postprocess, arguments)
	if rulesError != nil {
		return nil, rulesError
	}

	transcript, transcriptError := script.transcripts.Open(script.definition.Module, script.definition.TaskName)
	if transcriptError != nil {
		script.logger.Warn(transcriptFailureMessageConstant,
			zap.String(taskFieldNameConstant, script.definition.TaskName),
			zap.Error(transcriptError),
		)
	}
	defer func() {
		if writeError := transcript.Err(); writeError != nil {
			script.logger.Warn(transcriptFailureMessageConstant,
				zap.String(transcriptPathFieldNameConstant, transcript.Path()),
				zap.Error(writeError),
			)
		}
		if closeError := transcript.Close(); closeError != nil {
			script.logger.Warn(transcriptFailureMessageConstant,
				zap.String(transcriptPathFieldNameConstant, transcript.Path()),
				zap.Error(closeError),
			)
		}
	}()

	records := make([]ExecutionRecord, 0, len(lines))
	for _, line := range lines {
		record, executeError := script.executor.Execute(ctx, ShellCommand{
			Line:                 line,
			WorkingDirectory:     script.definition.WorkingDirectory,
			EnvironmentVariables: script.definition.EnvironmentVariables,
			Observer:             CombineObservers(transcript),
		})
		if record.ProcessID != 0 {
			records = append(records, record)
		}
		if executeError != nil {
			var failedError CommandFailedError
			if errors.As(executeError, &failedError) {
				failedError.Records = records
				return nil, failedError
			}
			return nil, executeError
		}
	}

	if len(rules) == 0 {
		return records, nil
	}
	var output strings.Builder
	for _, record := range records {
		output.WriteString(record.StandardOutput())
	}
	return extractRecords(output.String(), rules), nil
}
