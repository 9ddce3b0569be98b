package utils

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	logLevelWarningAliasConstant         = "warning"
	logTimestampKeyConstant              = "timestamp"
	unsupportedLogLevelTemplateConstant  = "unsupported log level: %s"
	unsupportedLogFormatTemplateConstant = "unsupported log format: %s"
)

// LogLevel enumerates supported logging granularities.
type LogLevel string

// Supported log levels. "warning" is accepted as an alias of warn.
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogFormat enumerates supported logger output encodings.
type LogFormat string

// Supported log formats: structured emits JSON lines, console emits tab separated text.
const (
	LogFormatStructured LogFormat = "structured"
	LogFormatConsole    LogFormat = "console"
)

var logLevelMapping = map[LogLevel]zapcore.Level{
	LogLevelDebug:                          zapcore.DebugLevel,
	LogLevelInfo:                           zapcore.InfoLevel,
	LogLevelWarn:                           zapcore.WarnLevel,
	LogLevel(logLevelWarningAliasConstant): zapcore.WarnLevel,
	LogLevelError:                          zapcore.ErrorLevel,
}

// ParseLogLevel resolves a level name case-insensitively.
func ParseLogLevel(requestedLogLevel LogLevel) (zapcore.Level, error) {
	normalized := LogLevel(strings.ToLower(strings.TrimSpace(string(requestedLogLevel))))
	zapLogLevel, levelExists := logLevelMapping[normalized]
	if !levelExists {
		return zapcore.InfoLevel, fmt.Errorf(unsupportedLogLevelTemplateConstant, requestedLogLevel)
	}
	return zapLogLevel, nil
}

// ParseLogFormat resolves a format name case-insensitively.
func ParseLogFormat(requestedLogFormat LogFormat) (LogFormat, error) {
	normalized := LogFormat(strings.ToLower(strings.TrimSpace(string(requestedLogFormat))))
	switch normalized {
	case LogFormatStructured, LogFormatConsole:
		return normalized, nil
	default:
		return "", fmt.Errorf(unsupportedLogFormatTemplateConstant, requestedLogFormat)
	}
}

// LoggerFactory builds zap loggers that write to a single sink. Every
// record is kept: verification runs are audited, so sampling is disabled.
type LoggerFactory struct {
	sink zapcore.WriteSyncer
}

// NewLoggerFactory constructs a factory writing to standard error.
func NewLoggerFactory() *LoggerFactory {
	return NewLoggerFactoryWithSink(zapcore.Lock(os.Stderr))
}

// NewLoggerFactoryWithSink constructs a factory writing to sink.
func NewLoggerFactoryWithSink(sink zapcore.WriteSyncer) *LoggerFactory {
	return &LoggerFactory{sink: sink}
}

// CreateLogger produces a logger honoring the requested level and format.
// Timestamps use ISO 8601 and errors carry stack traces.
func (factory *LoggerFactory) CreateLogger(requestedLogLevel LogLevel, requestedLogFormat LogFormat) (*zap.Logger, error) {
	zapLogLevel, levelError := ParseLogLevel(requestedLogLevel)
	if levelError != nil {
		return nil, levelError
	}
	logFormat, formatError := ParseLogFormat(requestedLogFormat)
	if formatError != nil {
		return nil, formatError
	}

	encoderConfiguration := zap.NewProductionEncoderConfig()
	encoderConfiguration.TimeKey = logTimestampKeyConstant
	encoderConfiguration.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if logFormat == LogFormatConsole {
		encoderConfiguration.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfiguration)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfiguration)
	}

	core := zapcore.NewCore(encoder, factory.sink, zap.NewAtomicLevelAt(zapLogLevel))
	return zap.New(core, zap.AddStacktrace(zapcore.ErrorLevel)), nil
}
