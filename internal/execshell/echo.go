package execshell

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

const (
	echoTimestampLayoutConstant     = "15:04:05.000000"
	echoExitMessageTemplateConstant = "exit code %d"
)

// ConsoleEcho prints command lines, their output and their exit codes as they happen. Every printed
// line starts with the local time.
type ConsoleEcho struct {
	mutex  sync.Mutex
	writer io.Writer
}

// NewConsoleEcho echoes to writer. A nil writer yields a nil echo.
func NewConsoleEcho(writer io.Writer) *ConsoleEcho {
	if writer == nil {
		return nil
	}
	return &ConsoleEcho{writer: writer}
}

// CommandStarted prints the command line.
func (echo *ConsoleEcho) CommandStarted(command string, _ int, startTime time.Time) {
	echo.print(startTime, command)
}

// OutputReceived prints one chunk of output.
func (echo *ConsoleEcho) OutputReceived(_ StreamName, receivedAt time.Time, data string) {
	echo.print(receivedAt, data)
}

// CommandFinished prints the exit code.
func (echo *ConsoleEcho) CommandFinished(record ExecutionRecord) {
	echo.print(record.EndTime, fmt.Sprintf(echoExitMessageTemplateConstant, record.ExitCode))
}

func (echo *ConsoleEcho) print(timestamp time.Time, data string) {
	if echo == nil {
		return
	}
	echo.mutex.Lock()
	defer echo.mutex.Unlock()
	_, _ = io.WriteString(echo.writer, prefixLines(timestamp.Local().Format(echoTimestampLayoutConstant)+" ", data))
}

// prefixLines puts prefix in front of every line of data and terminates the last line.
func prefixLines(prefix string, data string) string {
	var builder strings.Builder
	for _, line := range strings.SplitAfter(data, "\n") {
		if len(line) == 0 {
			continue
		}
		builder.WriteString(prefix)
		builder.WriteString(line)
		if !strings.HasSuffix(line, "\n") {
			builder.WriteByte('\n')
		}
	}
	return builder.String()
}
