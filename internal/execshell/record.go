package execshell

import (
	"strings"
	"time"
)

// StreamName identifies the output stream a chunk was read from.
type StreamName string

// Output streams of a shell line.
const (
	StreamStandardOutput StreamName = "stdout"
	StreamStandardError  StreamName = "stderr"
)

// ShellCommand is one command line run through the shell. Observer, when set, follows the line
// while it runs.
type ShellCommand struct {
	Line                 string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
	Observer             CommandObserver
}

// CommandObserver follows a command line while it runs. OutputReceived gets every chunk as soon as
// it is read, before the line finishes. Calls for one line never overlap.
type CommandObserver interface {
	CommandStarted(command string, processID int, startTime time.Time)
	OutputReceived(stream StreamName, receivedAt time.Time, data string)
	CommandFinished(record ExecutionRecord)
}

type observerGroup []CommandObserver

// CombineObservers fans every notification out to the non-nil observers, in order. It returns nil
// when none is left.
func CombineObservers(observers ...CommandObserver) CommandObserver {
	group := make(observerGroup, 0, len(observers))
	for _, observer := range observers {
		if observer == nil {
			continue
		}
		if transcript, isTranscript := observer.(*Transcript); isTranscript && transcript == nil {
			continue
		}
		group = append(group, observer)
	}
	switch len(group) {
	case 0:
		return nil
	case 1:
		return group[0]
	}
	return group
}

func (group observerGroup) CommandStarted(command string, processID int, startTime time.Time) {
	for _, observer := range group {
		observer.CommandStarted(command, processID, startTime)
	}
}

func (group observerGroup) OutputReceived(stream StreamName, receivedAt time.Time, data string) {
	for _, observer := range group {
		observer.OutputReceived(stream, receivedAt, data)
	}
}

func (group observerGroup) CommandFinished(record ExecutionRecord) {
	for _, observer := range group {
		observer.CommandFinished(record)
	}
}

// LogEntry is one chunk of output with its offset from the start of the command.
type LogEntry struct {
	Stream StreamName    `json:"stream"`
	Offset time.Duration `json:"offset"`
	Data   string        `json:"data"`
}

// ExecutionRecord captures one finished command line.
type ExecutionRecord struct {
	Command   string     `json:"command"`
	StartTime time.Time  `json:"start_time"`
	EndTime   time.Time  `json:"end_time"`
	ProcessID int        `json:"pid"`
	ExitCode  int        `json:"return_code"`
	Log       []LogEntry `json:"log"`
}

// Output concatenates the chunks read from one stream in arrival order.
func (record ExecutionRecord) Output(stream StreamName) string {
	var builder strings.Builder
	for _, entry := range record.Log {
		if entry.Stream == stream {
			builder.WriteString(entry.Data)
		}
	}
	return builder.String()
}

// StandardOutput returns the captured standard output.
func (record ExecutionRecord) StandardOutput() string {
	return record.Output(StreamStandardOutput)
}

// StandardError returns the captured standard error.
func (record ExecutionRecord) StandardError() string {
	return record.Output(StreamStandardError)
}
