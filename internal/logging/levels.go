package logging

import (
	"go.uber.org/zap/zapcore"
)

// TraceLevel sits one step below Debug. It is meant for per-candidate
// scoring output and index payload dumps, and is filtered in production.
const TraceLevel = zapcore.Level(-2)

// LevelFromString parses a level name, accepting "trace" in addition to the
// names zapcore understands.
func LevelFromString(level string) (zapcore.Level, error) {
	if level == "trace" {
		return TraceLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, err
	}
	return l, nil
}
