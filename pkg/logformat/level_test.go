package logformat

import (
	"testing"

	"github.com/TimelordUK/mview/internal/source"
)

func TestDetectLevels(t *testing.T) {
	d := NewLevelDetector(DefaultLevelPatterns())

	tests := []struct {
		name  string
		input string
		want  source.LogLevel
	}{
		{"bracketed error", "2024-01-15 [ERR] disk full", source.LevelError},
		{"plain warn", "10:30:45 WARN slow query", source.LevelWarn},
		{"info", "INFO server listening", source.LevelInfo},
		{"debug", "[DBG] cache miss", source.LevelDebug},
		{"trace", "TRACE entering handler", source.LevelTrace},
		{"fatal beats error", "FATAL ERROR: cannot recover", source.LevelFatal},
		{"critical maps to fatal", "CRITICAL: out of memory", source.LevelFatal},
		{"unknown", "just some text", source.LevelUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Detect([]byte(tt.input)); got != tt.want {
				t.Errorf("Detect(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestDetectCustomPatterns(t *testing.T) {
	d := NewLevelDetector(LevelPatterns{
		Error: []string{"E/"},
		Info:  []string{"I/"},
	})

	if got := d.Detect([]byte("E/NetworkMonitor: timeout")); got != source.LevelError {
		t.Errorf("Detect() = %v, want error", got)
	}
	if got := d.Detect([]byte("ERROR not in custom set")); got != source.LevelUnknown {
		t.Errorf("Detect() = %v, want unknown", got)
	}
}
