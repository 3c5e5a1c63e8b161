package utils_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tyemirov/taskgraph/internal/utils"
)

const (
	testDiagnosticMessageConstant = "task invocation finished"
	testConsoleMessageConstant    = "Finished greeting"
	testSuppressedMessageConstant = "cache lookup"
)

func captureStandardError(testInstance *testing.T, action func()) string {
	testInstance.Helper()
	pipeReader, pipeWriter, pipeError := os.Pipe()
	require.NoError(testInstance, pipeError)

	originalStandardError := os.Stderr
	os.Stderr = pipeWriter
	defer func() {
		os.Stderr = originalStandardError
	}()

	action()

	require.NoError(testInstance, pipeWriter.Close())
	captured, readError := io.ReadAll(pipeReader)
	require.NoError(testInstance, readError)
	require.NoError(testInstance, pipeReader.Close())
	return string(bytes.TrimSpace(captured))
}

func requireBenignSync(testInstance *testing.T, logger *zap.Logger) {
	testInstance.Helper()
	syncError := logger.Sync()
	if syncError == nil {
		return
	}
	require.True(
		testInstance,
		errors.Is(syncError, syscall.ENOTSUP) ||
			errors.Is(syncError, syscall.EINVAL) ||
			errors.Is(syncError, syscall.EBADF) ||
			errors.Is(syncError, syscall.ENOTTY),
		syncError.Error(),
	)
}

func TestLoggerFactoryOutputs(testInstance *testing.T) {
	testCases := []struct {
		name              string
		logLevel          utils.LogLevel
		logFormat         utils.LogFormat
		expectJSON        bool
		expectConsole     bool
		expectSuppression bool
	}{
		{
			name:       "structured_debug",
			logLevel:   utils.LogLevelDebug,
			logFormat:  utils.LogFormatStructured,
			expectJSON: true,
		},
		{
			name:              "structured_warn_filters_info",
			logLevel:          utils.LogLevelWarn,
			logFormat:         utils.LogFormatStructured,
			expectJSON:        true,
			expectSuppression: true,
		},
		{
			name:          "console_info",
			logLevel:      utils.LogLevelInfo,
			logFormat:     utils.LogFormatConsole,
			expectConsole: true,
		},
		{
			name:          "mixed_case_values",
			logLevel:      utils.LogLevel(" INFO "),
			logFormat:     utils.LogFormat("Console"),
			expectConsole: true,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(subtest *testing.T) {
			output := captureStandardError(subtest, func() {
				loggerOutputs, creationError := utils.NewLoggerFactory().CreateLoggerOutputs(testCase.logLevel, testCase.logFormat)
				require.NoError(subtest, creationError)
				require.NotNil(subtest, loggerOutputs.DiagnosticLogger)
				require.NotNil(subtest, loggerOutputs.ConsoleLogger)

				loggerOutputs.DiagnosticLogger.Info(testSuppressedMessageConstant)
				loggerOutputs.DiagnosticLogger.Warn(testDiagnosticMessageConstant)
				loggerOutputs.ConsoleLogger.Warn(testConsoleMessageConstant)
				requireBenignSync(subtest, loggerOutputs.DiagnosticLogger)
				_ = loggerOutputs.ConsoleLogger.Sync()
			})

			require.Contains(subtest, output, testDiagnosticMessageConstant)
			if testCase.expectSuppression {
				require.NotContains(subtest, output, testSuppressedMessageConstant)
			} else {
				require.Contains(subtest, output, testSuppressedMessageConstant)
			}
			if testCase.expectConsole {
				require.Contains(subtest, output, testConsoleMessageConstant)
			} else {
				require.NotContains(subtest, output, testConsoleMessageConstant)
			}

			firstLine, _, _ := bytes.Cut([]byte(output), []byte("\n"))
			require.Equal(subtest, testCase.expectJSON, json.Valid(firstLine))
		})
	}
}

func TestLoggerFactoryRejectsUnsupportedValues(testInstance *testing.T) {
	testCases := []struct {
		name      string
		logLevel  utils.LogLevel
		logFormat utils.LogFormat
		expected  string
	}{
		{
			name:      "unknown_level",
			logLevel:  utils.LogLevel("verbose"),
			logFormat: utils.LogFormatStructured,
			expected:  `unsupported log level "verbose"`,
		},
		{
			name:      "unknown_format",
			logLevel:  utils.LogLevelInfo,
			logFormat: utils.LogFormat("xml"),
			expected:  `unsupported log format "xml"`,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(subtest *testing.T) {
			loggerOutputs, creationError := utils.NewLoggerFactory().CreateLoggerOutputs(testCase.logLevel, testCase.logFormat)
			require.EqualError(subtest, creationError, testCase.expected)
			require.Zero(subtest, loggerOutputs)
		})
	}
}
