package render

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/TimelordUK/mview/internal/config"
	"github.com/TimelordUK/mview/internal/source"
	"github.com/TimelordUK/mview/pkg/logformat"
)

// Renderer applies styling to lines
type Renderer interface {
	Render(line *source.Line) string
}

// LogLevelRenderer colors each line by its severity, detecting the
// level from the content when the source left it unset
type LogLevelRenderer struct {
	detector *logformat.LevelDetector
	styles   []lipgloss.Style // indexed by source.LogLevel
}

// NewLogLevelRenderer builds a renderer from the configured theme and
// level patterns
func NewLogLevelRenderer(cfg *config.Config) *LogLevelRenderer {
	return &LogLevelRenderer{
		detector: logformat.NewLevelDetector(cfg.LogLevels.LevelPatterns()),
		styles:   levelStyles(cfg.Theme.Levels),
	}
}

// levelStyles flattens the theme's level colors into a table indexed
// by the level itself. Unknown stays unstyled.
func levelStyles(colors config.LogLevelColors) []lipgloss.Style {
	fg := func(color string) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
	}

	styles := make([]lipgloss.Style, source.LevelFatal+1)
	styles[source.LevelTrace] = fg(colors.Trace)
	styles[source.LevelDebug] = fg(colors.Debug)
	styles[source.LevelInfo] = fg(colors.Info)
	styles[source.LevelWarn] = fg(colors.Warn)
	styles[source.LevelError] = fg(colors.Error)
	styles[source.LevelFatal] = fg(colors.Fatal)
	return styles
}

// Render implements Renderer
func (r *LogLevelRenderer) Render(line *source.Line) string {
	level := line.Level
	if level == source.LevelUnknown {
		level = r.detector.Detect(line.Content)
	}
	if level <= source.LevelUnknown || int(level) >= len(r.styles) {
		return string(line.Content)
	}
	return r.styles[level].Render(string(line.Content))
}

// PlainRenderer passes content through untouched
type PlainRenderer struct{}

// NewPlainRenderer creates a plain renderer
func NewPlainRenderer() *PlainRenderer {
	return &PlainRenderer{}
}

// Render implements Renderer
func (r *PlainRenderer) Render(line *source.Line) string {
	return string(line.Content)
}
