package source

import "time"

// LogLevel represents a log severity level
type LogLevel int

const (
	LevelUnknown LogLevel = iota
	LevelTrace
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// SourceInfo identifies where a line came from (for merged views)
type SourceInfo struct {
	Path string
	Slot int // which attached source in a merged view
}

// Line represents a single line with optional metadata
type Line struct {
	Content       []byte
	Timestamp     *time.Time
	Level         LogLevel
	Continued     bool
	Source        *SourceInfo
	OriginalIndex int // line number in the original file
}

// LineProvider is the core abstraction for accessing lines.
// The viewport only interacts with this interface.
type LineProvider interface {
	// LineCount returns total number of lines
	LineCount() int

	// GetLine returns line at index (0-based)
	GetLine(index int) (*Line, error)

	// GetLines returns a range of lines efficiently
	GetLines(start, count int) ([]*Line, error)
}

// TimestampFunc extracts a line's timestamp in epoch milliseconds
type TimestampFunc func(content []byte) (int64, bool)

// LevelDetectFunc detects log level from content
type LevelDetectFunc func(content []byte) LogLevel

// ContinuationFunc reports whether a line continues the previous one
type ContinuationFunc func(content []byte) bool

// Annotation bundles the pluggable per-line format hooks. The file
// layer stays ignorant of any concrete log format.
type Annotation struct {
	Timestamp    TimestampFunc
	Level        LevelDetectFunc
	Continuation ContinuationFunc
}
