package execshell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

const (
	shellExecutableConstant               = "sh"
	shellCommandFlagConstant              = "-c"
	streamReadSizeConstant                = 8192
	environmentAssignmentTemplateConstant = "%s=%s"
	drainPeriodConstant                   = 200 * time.Millisecond
)

// CommandRunner runs one command line and reports what it observed.
type CommandRunner interface {
	Run(executionContext context.Context, command ShellCommand) (ExecutionRecord, error)
}

// StreamingCommandRunner runs command lines with the system shell and reads standard output and
// standard error concurrently, one goroutine per stream, so neither pipe can fill up and stall the
// process while the other is drained.
type StreamingCommandRunner struct {
	clock       func() time.Time
	drainPeriod time.Duration
}

// NewStreamingCommandRunner builds a runner using the wall clock.
func NewStreamingCommandRunner() *StreamingCommandRunner {
	return &StreamingCommandRunner{clock: time.Now, drainPeriod: drainPeriodConstant}
}

// Run starts the line, captures both streams while it runs and waits for the shell to exit. Output
// still buffered when the shell exits is read for a short drain period; a background child that
// inherited the pipes does not hold the line open. A non-zero exit is reported through
// ExecutionRecord.ExitCode, not as an error. Canceling the context kills the whole process group
// and returns the context error. Every chunk is handed to command.Observer as soon as it is read.
func (runner *StreamingCommandRunner) Run(executionContext context.Context, command ShellCommand) (ExecutionRecord, error) {
	clock := runner.clock
	if clock == nil {
		clock = time.Now
	}
	drainPeriod := runner.drainPeriod
	if drainPeriod <= 0 {
		drainPeriod = drainPeriodConstant
	}

	shellCommand := exec.Command(shellExecutableConstant, shellCommandFlagConstant, command.Line)
	shellCommand.Dir = command.WorkingDirectory
	if len(command.EnvironmentVariables) > 0 {
		environment := os.Environ()
		for name, value := range command.EnvironmentVariables {
			environment = append(environment, fmt.Sprintf(environmentAssignmentTemplateConstant, name, value))
		}
		shellCommand.Env = environment
	}
	configureProcessGroup(shellCommand)

	standardOutput, standardOutputWriter, pipeError := os.Pipe()
	if pipeError != nil {
		return ExecutionRecord{}, pipeError
	}
	standardError, standardErrorWriter, pipeError := os.Pipe()
	if pipeError != nil {
		closeFiles(standardOutput, standardOutputWriter)
		return ExecutionRecord{}, pipeError
	}
	defer closeFiles(standardOutput, standardError)
	shellCommand.Stdout = standardOutputWriter
	shellCommand.Stderr = standardErrorWriter

	record := ExecutionRecord{Command: command.Line, StartTime: clock()}
	startError := shellCommand.Start()
	closeFiles(standardOutputWriter, standardErrorWriter)
	if startError != nil {
		return ExecutionRecord{}, startError
	}
	record.ProcessID = shellCommand.Process.Pid
	if command.Observer != nil {
		command.Observer.CommandStarted(command.Line, record.ProcessID, record.StartTime)
	}

	collector := &logCollector{start: record.StartTime, clock: clock, observer: command.Observer}
	var readers sync.WaitGroup
	readers.Add(2)
	go collector.drain(&readers, StreamStandardOutput, standardOutput)
	go collector.drain(&readers, StreamStandardError, standardError)

	exited := make(chan error, 1)
	go func() {
		exited <- shellCommand.Wait()
	}()

	var canceled error
	var waitError error
	select {
	case waitError = <-exited:
	case <-executionContext.Done():
		canceled = executionContext.Err()
		terminateProcessGroup(shellCommand)
		waitError = <-exited
	}

	drainDeadline := time.Now().Add(drainPeriod)
	stopReading(standardOutput, drainDeadline, drainPeriod)
	stopReading(standardError, drainDeadline, drainPeriod)
	readers.Wait()

	record.EndTime = clock()
	record.Log = collector.entries()

	if canceled != nil {
		record.ExitCode = -1
		notifyFinished(command.Observer, record)
		return record, canceled
	}

	if waitError != nil {
		var exitError *exec.ExitError
		if !errors.As(waitError, &exitError) {
			notifyFinished(command.Observer, record)
			return record, waitError
		}
		record.ExitCode = exitError.ExitCode()
	}
	notifyFinished(command.Observer, record)
	return record, nil
}

// stopReading bounds the remaining reads of a pipe. Buffered output is still returned until the
// deadline; pipes without deadline support are closed after the drain period instead.
func stopReading(pipe *os.File, deadline time.Time, drainPeriod time.Duration) {
	if deadlineError := pipe.SetReadDeadline(deadline); deadlineError != nil {
		time.AfterFunc(drainPeriod, func() {
			_ = pipe.Close()
		})
	}
}

func closeFiles(files ...*os.File) {
	for _, file := range files {
		_ = file.Close()
	}
}

func notifyFinished(observer CommandObserver, record ExecutionRecord) {
	if observer != nil {
		observer.CommandFinished(record)
	}
}

type logCollector struct {
	mutex    sync.Mutex
	start    time.Time
	clock    func() time.Time
	observer CommandObserver
	log      []LogEntry
}

func (collector *logCollector) drain(readers *sync.WaitGroup, stream StreamName, reader io.Reader) {
	defer readers.Done()
	buffer := make([]byte, streamReadSizeConstant)
	for {
		readCount, readError := reader.Read(buffer)
		if readCount > 0 {
			collector.append(stream, string(buffer[:readCount]))
		}
		if readError != nil {
			return
		}
	}
}

func (collector *logCollector) append(stream StreamName, data string) {
	collector.mutex.Lock()
	defer collector.mutex.Unlock()
	receivedAt := collector.clock()
	collector.log = append(collector.log, LogEntry{
		Stream: stream,
		Offset: receivedAt.Sub(collector.start),
		Data:   data,
	})
	if collector.observer != nil {
		collector.observer.OutputReceived(stream, receivedAt, data)
	}
}

func (collector *logCollector) entries() []LogEntry {
	collector.mutex.Lock()
	defer collector.mutex.Unlock()
	return append([]LogEntry(nil), collector.log...)
}
