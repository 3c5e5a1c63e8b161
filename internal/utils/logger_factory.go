package utils

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel names a supported diagnostic verbosity.
type LogLevel string

// LogFormat names a supported diagnostic encoding.
type LogFormat string

// Supported log levels.
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Supported log formats.
const (
	LogFormatStructured LogFormat = "structured"
	LogFormatConsole    LogFormat = "console"
)

const (
	unsupportedLogLevelTemplateConstant  = "unsupported log level %q"
	unsupportedLogFormatTemplateConstant = "unsupported log format %q"
	timestampKeyConstant                 = "ts"
	levelKeyConstant                     = "level"
	messageKeyConstant                   = "msg"
	callerKeyConstant                    = "caller"
)

// LoggerOutputs pairs the diagnostic logger with the console logger used for human-readable progress.
// ConsoleLogger discards everything unless the console format is selected.
type LoggerOutputs struct {
	DiagnosticLogger *zap.Logger
	ConsoleLogger    *zap.Logger
}

// LoggerFactory builds zap loggers writing to standard error.
type LoggerFactory struct{}

// NewLoggerFactory constructs a LoggerFactory.
func NewLoggerFactory() *LoggerFactory {
	return &LoggerFactory{}
}

// CreateLoggerOutputs builds loggers for the requested level and format.
func (factory *LoggerFactory) CreateLoggerOutputs(logLevel LogLevel, logFormat LogFormat) (LoggerOutputs, error) {
	zapLevel, levelError := parseLogLevel(logLevel)
	if levelError != nil {
		return LoggerOutputs{}, levelError
	}

	normalizedFormat := LogFormat(strings.ToLower(strings.TrimSpace(string(logFormat))))
	if normalizedFormat != LogFormatStructured && normalizedFormat != LogFormatConsole {
		return LoggerOutputs{}, fmt.Errorf(unsupportedLogFormatTemplateConstant, logFormat)
	}

	standardErrorSink := zapcore.Lock(zapcore.AddSync(NewFlushingWriter(os.Stderr)))
	levelEnabler := zap.NewAtomicLevelAt(zapLevel)

	diagnosticEncoderConfig := zap.NewProductionEncoderConfig()
	diagnosticEncoderConfig.TimeKey = timestampKeyConstant
	diagnosticEncoderConfig.LevelKey = levelKeyConstant
	diagnosticEncoderConfig.MessageKey = messageKeyConstant
	diagnosticEncoderConfig.CallerKey = callerKeyConstant
	diagnosticEncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if normalizedFormat == LogFormatStructured {
		diagnosticCore := zapcore.NewCore(zapcore.NewJSONEncoder(diagnosticEncoderConfig), standardErrorSink, levelEnabler)
		return LoggerOutputs{
			DiagnosticLogger: zap.New(diagnosticCore, zap.AddCaller()),
			ConsoleLogger:    zap.NewNop(),
		}, nil
	}

	diagnosticEncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	diagnosticCore := zapcore.NewCore(zapcore.NewConsoleEncoder(diagnosticEncoderConfig), standardErrorSink, levelEnabler)

	consoleEncoderConfig := zapcore.EncoderConfig{
		MessageKey:     messageKeyConstant,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	consoleCore := zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoderConfig), standardErrorSink, levelEnabler)

	return LoggerOutputs{
		DiagnosticLogger: zap.New(diagnosticCore),
		ConsoleLogger:    zap.New(consoleCore),
	}, nil
}

func parseLogLevel(logLevel LogLevel) (zapcore.Level, error) {
	switch LogLevel(strings.ToLower(strings.TrimSpace(string(logLevel)))) {
	case LogLevelDebug:
		return zapcore.DebugLevel, nil
	case LogLevelInfo:
		return zapcore.InfoLevel, nil
	case LogLevelWarn:
		return zapcore.WarnLevel, nil
	case LogLevelError:
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InvalidLevel, fmt.Errorf(unsupportedLogLevelTemplateConstant, logLevel)
	}
}
