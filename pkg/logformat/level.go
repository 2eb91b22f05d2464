package logformat

import (
	"bytes"

	"github.com/TimelordUK/mview/internal/source"
)

// LevelDetector detects log levels from line content
type LevelDetector struct {
	patterns map[source.LogLevel][][]byte
}

// LevelPatterns configures the substring patterns for each level.
type LevelPatterns struct {
	Trace []string
	Debug []string
	Info  []string
	Warn  []string
	Error []string
	Fatal []string
}

// DefaultLevelPatterns returns the patterns used when no config is present
func DefaultLevelPatterns() LevelPatterns {
	return LevelPatterns{
		Trace: []string{"[TRC]", "[TRACE]", "TRACE", "TRC"},
		Debug: []string{"[DBG]", "[DEBUG]", "DEBUG", "DBG"},
		Info:  []string{"[INF]", "[INFO]", "INFO", "INF"},
		Warn:  []string{"[WRN]", "[WARN]", "[WARNING]", "WARN", "WRN", "WARNING"},
		Error: []string{"[ERR]", "[ERROR]", "ERROR", "ERR"},
		Fatal: []string{"[FTL]", "[FATAL]", "FATAL", "FTL", "[CRIT]", "CRITICAL"},
	}
}

// NewLevelDetector creates a detector from pattern lists
func NewLevelDetector(p LevelPatterns) *LevelDetector {
	toBytes := func(ss []string) [][]byte {
		out := make([][]byte, len(ss))
		for i, s := range ss {
			out[i] = []byte(s)
		}
		return out
	}
	return &LevelDetector{
		patterns: map[source.LogLevel][][]byte{
			source.LevelTrace: toBytes(p.Trace),
			source.LevelDebug: toBytes(p.Debug),
			source.LevelInfo:  toBytes(p.Info),
			source.LevelWarn:  toBytes(p.Warn),
			source.LevelError: toBytes(p.Error),
			source.LevelFatal: toBytes(p.Fatal),
		},
	}
}

// Detect returns the log level for a line, checking the most severe
// levels first so FATAL is never mistaken for a plain ERROR
func (d *LevelDetector) Detect(content []byte) source.LogLevel {
	order := []source.LogLevel{
		source.LevelFatal,
		source.LevelError,
		source.LevelWarn,
		source.LevelInfo,
		source.LevelDebug,
		source.LevelTrace,
	}
	for _, level := range order {
		for _, pattern := range d.patterns[level] {
			if bytes.Contains(content, pattern) {
				return level
			}
		}
	}
	return source.LevelUnknown
}
