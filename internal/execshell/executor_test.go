package execshell_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tyemirov/taskgraph/internal/execshell"
)

const (
	testExecutionSuccessCaseNameConstant         = "success"
	testExecutionFailureCaseNameConstant         = "failure_exit_code"
	testExecutionRunnerErrorCaseNameConstant     = "runner_error"
	testExecutionCanceledCaseNameConstant        = "canceled"
	testCommandLineConstant                      = "git --version"
	testWorkingDirectoryConstant                 = "."
	testStandardErrorOutputConstant              = "failure"
	testRunnerFailureMessageConstant             = "runner failure"
	testLoggerInitializationCaseNameConstant     = "logger_validation"
	testRunnerInitializationCaseNameConstant     = "runner_validation"
	testSuccessfulInitializationCaseNameConstant = "successful_initialization"
)

type recordingCommandRunner struct {
	executionRecord  execshell.ExecutionRecord
	executionError   error
	recordedCommands []execshell.ShellCommand
}

func (runner *recordingCommandRunner) Run(executionContext context.Context, command execshell.ShellCommand) (execshell.ExecutionRecord, error) {
	runner.recordedCommands = append(runner.recordedCommands, command)
	record := runner.executionRecord
	record.Command = command.Line
	return record, runner.executionError
}

func outputRecord(exitCode int, stream execshell.StreamName, data string) execshell.ExecutionRecord {
	return execshell.ExecutionRecord{
		ProcessID: 42,
		ExitCode:  exitCode,
		Log:       []execshell.LogEntry{{Stream: stream, Data: data}},
	}
}

func TestShellExecutorInitializationValidation(testInstance *testing.T) {
	testCases := []struct {
		name          string
		logger        *zap.Logger
		runner        execshell.CommandRunner
		expectError   error
		expectSuccess bool
	}{
		{
			name:        testLoggerInitializationCaseNameConstant,
			logger:      nil,
			runner:      &recordingCommandRunner{},
			expectError: execshell.ErrLoggerNotConfigured,
		},
		{
			name:        testRunnerInitializationCaseNameConstant,
			logger:      zap.NewNop(),
			runner:      nil,
			expectError: execshell.ErrCommandRunnerNotConfigured,
		},
		{
			name:          testSuccessfulInitializationCaseNameConstant,
			logger:        zap.NewNop(),
			runner:        &recordingCommandRunner{},
			expectSuccess: true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor, creationError := execshell.NewShellExecutor(testCase.logger, testCase.runner, false)
			if testCase.expectSuccess {
				require.NoError(testInstance, creationError)
				require.NotNil(testInstance, executor)
			} else {
				require.Error(testInstance, creationError)
				require.ErrorIs(testInstance, creationError, testCase.expectError)
			}
		})
	}
}

func TestShellExecutorExecuteBehavior(testInstance *testing.T) {
	testCases := []struct {
		name            string
		runnerRecord    execshell.ExecutionRecord
		runnerError     error
		expectErrorType any
		expectedLevels  []zapcore.Level
	}{
		{
			name:           testExecutionSuccessCaseNameConstant,
			runnerRecord:   outputRecord(0, execshell.StreamStandardOutput, "ok"),
			expectedLevels: []zapcore.Level{zap.InfoLevel, zap.InfoLevel},
		},
		{
			name:            testExecutionFailureCaseNameConstant,
			runnerRecord:    outputRecord(1, execshell.StreamStandardError, testStandardErrorOutputConstant),
			expectErrorType: execshell.CommandFailedError{},
			expectedLevels:  []zapcore.Level{zap.InfoLevel, zap.WarnLevel},
		},
		{
			name:            testExecutionRunnerErrorCaseNameConstant,
			runnerError:     errors.New(testRunnerFailureMessageConstant),
			expectErrorType: execshell.CommandExecutionError{},
			expectedLevels:  []zapcore.Level{zap.InfoLevel, zap.ErrorLevel},
		},
		{
			name:            testExecutionCanceledCaseNameConstant,
			runnerError:     context.Canceled,
			expectErrorType: execshell.CommandCanceledError{},
			expectedLevels:  []zapcore.Level{zap.InfoLevel, zap.WarnLevel},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			observerCore, observerLogs := observer.New(zap.DebugLevel)
			logger := zap.New(observerCore)

			recordingRunner := &recordingCommandRunner{
				executionRecord: testCase.runnerRecord,
				executionError:  testCase.runnerError,
			}

			shellExecutor, creationError := execshell.NewShellExecutor(logger, recordingRunner, false)
			require.NoError(testInstance, creationError)

			executionRecord, executionError := shellExecutor.Execute(context.Background(), execshell.ShellCommand{
				Line:             "  " + testCommandLineConstant + "\n",
				WorkingDirectory: testWorkingDirectoryConstant,
			})

			if testCase.expectErrorType != nil {
				require.Error(testInstance, executionError)
				require.IsType(testInstance, testCase.expectErrorType, executionError)
			} else {
				require.NoError(testInstance, executionError)
				require.Equal(testInstance, "ok", executionRecord.StandardOutput())
			}

			require.Len(testInstance, recordingRunner.recordedCommands, 1)
			require.Equal(testInstance, testCommandLineConstant, recordingRunner.recordedCommands[0].Line)

			capturedLogs := observerLogs.All()
			require.Len(testInstance, capturedLogs, len(testCase.expectedLevels))
			for logIndex := range capturedLogs {
				require.Equal(testInstance, testCase.expectedLevels[logIndex], capturedLogs[logIndex].Level)
				require.Equal(testInstance, testCommandLineConstant, capturedLogs[logIndex].ContextMap()["command"])
			}
		})
	}
}

func TestShellExecutorRejectsBlankLine(testInstance *testing.T) {
	recordingRunner := &recordingCommandRunner{}
	shellExecutor, creationError := execshell.NewShellExecutor(zap.NewNop(), recordingRunner, false)
	require.NoError(testInstance, creationError)

	_, executionError := shellExecutor.Execute(context.Background(), execshell.ShellCommand{Line: " \t"})
	require.ErrorIs(testInstance, executionError, execshell.ErrCommandLineMissing)
	require.Empty(testInstance, recordingRunner.recordedCommands)
}

func TestShellExecutorHumanReadableLogging(testInstance *testing.T) {
	testCases := []struct {
		name             string
		runnerRecord     execshell.ExecutionRecord
		runnerError      error
		expectedMessages []string
		expectedLevels   []zapcore.Level
	}{
		{
			name:         testExecutionSuccessCaseNameConstant,
			runnerRecord: outputRecord(0, execshell.StreamStandardOutput, "ok"),
			expectedMessages: []string{
				"Running git --version (in .)",
				"Finished git --version (pid 42)",
			},
			expectedLevels: []zapcore.Level{zap.InfoLevel, zap.InfoLevel},
		},
		{
			name:         testExecutionFailureCaseNameConstant,
			runnerRecord: outputRecord(1, execshell.StreamStandardError, "\nfailure\nsecond line"),
			expectedMessages: []string{
				"Running git --version (in .)",
				"Failed git --version (exit code 1: failure)",
			},
			expectedLevels: []zapcore.Level{zap.InfoLevel, zap.WarnLevel},
		},
		{
			name:        testExecutionRunnerErrorCaseNameConstant,
			runnerError: errors.New(testRunnerFailureMessageConstant),
			expectedMessages: []string{
				"Running git --version (in .)",
				"Unable to run git --version: runner failure",
			},
			expectedLevels: []zapcore.Level{zap.InfoLevel, zap.ErrorLevel},
		},
		{
			name:        testExecutionCanceledCaseNameConstant,
			runnerError: context.DeadlineExceeded,
			expectedMessages: []string{
				"Running git --version (in .)",
				"Canceled git --version",
			},
			expectedLevels: []zapcore.Level{zap.InfoLevel, zap.WarnLevel},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			observerCore, observedLogs := observer.New(zap.InfoLevel)
			logger := zap.New(observerCore)

			recordingRunner := &recordingCommandRunner{
				executionRecord: testCase.runnerRecord,
				executionError:  testCase.runnerError,
			}

			shellExecutor, creationError := execshell.NewShellExecutor(logger, recordingRunner, true)
			require.NoError(testInstance, creationError)

			_, _ = shellExecutor.Execute(context.Background(), execshell.ShellCommand{
				Line:             testCommandLineConstant,
				WorkingDirectory: testWorkingDirectoryConstant,
			})

			capturedLogs := observedLogs.All()
			require.Len(testInstance, capturedLogs, len(testCase.expectedMessages))
			for logIndex := range capturedLogs {
				require.Equal(testInstance, testCase.expectedMessages[logIndex], capturedLogs[logIndex].Message)
				require.Equal(testInstance, testCase.expectedLevels[logIndex], capturedLogs[logIndex].Level)
			}
		})
	}
}

func TestCommandFailedErrorMessage(testInstance *testing.T) {
	testCases := []struct {
		name     string
		record   execshell.ExecutionRecord
		expected string
	}{
		{
			name:     "no_output",
			record:   execshell.ExecutionRecord{ExitCode: 5},
			expected: `command "exit 5" exited with code 5`,
		},
		{
			name: "prefers_standard_error",
			record: execshell.ExecutionRecord{ExitCode: 2, Log: []execshell.LogEntry{
				{Stream: execshell.StreamStandardOutput, Data: "progress\n"},
				{Stream: execshell.StreamStandardError, Data: "one\n\ntwo\nthree\nfour\n"},
			}},
			expected: `command "exit 5" exited with code 2: one | two`,
		},
		{
			name: "falls_back_to_standard_output",
			record: execshell.ExecutionRecord{ExitCode: 3, Log: []execshell.LogEntry{
				{Stream: execshell.StreamStandardOutput, Data: "only stdout\n"},
			}},
			expected: `command "exit 5" exited with code 3: only stdout`,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			failure := execshell.CommandFailedError{Command: execshell.ShellCommand{Line: "exit 5"}, Record: testCase.record}
			require.Equal(testInstance, testCase.expected, failure.Error())
		})
	}
}
