// Package logging builds the zap logger shared by every command.
package logging

import (
	"fmt"
	"strings"

	cerrors "github.com/cellcount/cellcount/internal/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options control logger construction.
type Options struct {
	// Level is one of debug, info, warn, error.
	Level string
	// Verbose forces debug level regardless of Level.
	Verbose bool
	// Development uses the console encoder and stack traces on warnings.
	Development bool
	// OutputPaths overrides the default stderr sink.
	OutputPaths []string
}

// New builds a logger from opts.
func New(opts Options) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if opts.Development {
		config = zap.NewDevelopmentConfig()
	}

	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		level = zapcore.DebugLevel
	}
	config.Level = zap.NewAtomicLevelAt(level)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if len(opts.OutputPaths) > 0 {
		config.OutputPaths = opts.OutputPaths
	}

	logger, err := config.Build()
	if err != nil {
		return nil, cerrors.NewInternalError("failed to initialize logger", err)
	}
	return logger, nil
}

// ParseLevel maps a level name to a zap level. Empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, cerrors.NewConfigError(cerrors.CodeInvalidConfig,
			fmt.Sprintf("invalid log level: %s", s))
	}
}

// ErrorFields returns zap fields describing err, including its category and
// code when it is a structured error.
func ErrorFields(err error) []zap.Field {
	fields := []zap.Field{zap.Error(err)}
	if cat := cerrors.GetCategory(err); cat != "" {
		fields = append(fields,
			zap.String("category", string(cat)),
			zap.String("code", cerrors.GetCode(err)),
		)
	}
	return fields
}
