package view

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/TimelordUK/mview/internal/render"
	"github.com/TimelordUK/mview/internal/source"
)

// MarkFunc returns the gutter marker for a view position, if any
type MarkFunc func(viewPos int) (rune, bool)

// Viewport manages the visible portion of content.
// It knows nothing about log formats, filters, or file sources.
// It only knows how to display lines from a LineProvider.
type Viewport struct {
	provider source.LineProvider
	renderer render.Renderer
	markFunc MarkFunc

	// Dimensions
	width  int
	height int

	// Scroll position
	scrollOffset int

	// Styling
	lineNumberStyle lipgloss.Style
	sourceNameStyle lipgloss.Style
	markStyle       lipgloss.Style
	highlightStyle  lipgloss.Style

	// Options
	showLineNumbers bool
	showSourceNames bool
	sourceWidth     int

	// Highlighted view position (-1 for none)
	highlightedLine int
}

// NewViewport creates a new viewport
func NewViewport(width, height int) *Viewport {
	return &Viewport{
		width:           width,
		height:          height,
		scrollOffset:    0,
		showLineNumbers: true,
		lineNumberStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		sourceNameStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		markStyle:       lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
		highlightStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true),
		renderer:        render.NewPlainRenderer(),
		highlightedLine: -1,
	}
}

// SetHighlightedLine sets which view position to highlight (-1 for none)
func (v *Viewport) SetHighlightedLine(viewPos int) {
	v.highlightedLine = viewPos
}

// ClearHighlight removes any line highlight
func (v *Viewport) ClearHighlight() {
	v.highlightedLine = -1
}

// SetRenderer sets the line renderer
func (v *Viewport) SetRenderer(r render.Renderer) {
	v.renderer = r
}

// SetMarkFunc sets the gutter marker source
func (v *Viewport) SetMarkFunc(f MarkFunc) {
	v.markFunc = f
}

// SetProvider sets the line provider
func (v *Viewport) SetProvider(provider source.LineProvider) {
	v.provider = provider
	v.scrollOffset = 0
}

// SetSourceNames enables the per-line source name column. width is the
// widest name across attached sources.
func (v *Viewport) SetSourceNames(show bool, width int) {
	v.showSourceNames = show
	v.sourceWidth = width
}

// SetSize updates viewport dimensions
func (v *Viewport) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.clampScroll()
}

// Height returns the viewport height in lines
func (v *Viewport) Height() int {
	return v.height
}

// ScrollDown scrolls down by n lines
func (v *Viewport) ScrollDown(n int) {
	v.scrollOffset += n
	v.clampScroll()
}

// ScrollUp scrolls up by n lines
func (v *Viewport) ScrollUp(n int) {
	v.scrollOffset -= n
	v.clampScroll()
}

// PageDown scrolls down by one page
func (v *Viewport) PageDown() {
	v.ScrollDown(v.height - 1)
}

// PageUp scrolls up by one page
func (v *Viewport) PageUp() {
	v.ScrollUp(v.height - 1)
}

// GotoTop scrolls to the beginning
func (v *Viewport) GotoTop() {
	v.scrollOffset = 0
}

// GotoBottom scrolls to the end
func (v *Viewport) GotoBottom() {
	if v.provider == nil {
		return
	}
	v.scrollOffset = v.provider.LineCount() - v.height
	v.clampScroll()
}

// GotoLine scrolls to a specific line
func (v *Viewport) GotoLine(line int) {
	v.scrollOffset = line
	v.clampScroll()
}

// AtBottom reports whether the last line is visible
func (v *Viewport) AtBottom() bool {
	if v.provider == nil {
		return true
	}
	return v.scrollOffset >= v.provider.LineCount()-v.height
}

// CurrentLine returns the current top line number
func (v *Viewport) CurrentLine() int {
	return v.scrollOffset
}

// clampScroll ensures scroll offset is within valid bounds
func (v *Viewport) clampScroll() {
	if v.provider == nil {
		v.scrollOffset = 0
		return
	}

	maxScroll := v.provider.LineCount() - v.height
	if maxScroll < 0 {
		maxScroll = 0
	}

	if v.scrollOffset > maxScroll {
		v.scrollOffset = maxScroll
	}
	if v.scrollOffset < 0 {
		v.scrollOffset = 0
	}
}

// Render returns the viewport content as a string
func (v *Viewport) Render() string {
	if v.provider == nil {
		return ""
	}

	lines, err := v.provider.GetLines(v.scrollOffset, v.height)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}

	var builder strings.Builder
	lineCount := v.provider.LineCount()
	lineNumWidth := len(fmt.Sprintf("%d", lineCount))

	for i, line := range lines {
		if i > 0 {
			builder.WriteString("\n")
		}

		viewPos := v.scrollOffset + i
		isHighlighted := v.highlightedLine >= 0 && viewPos == v.highlightedLine

		// Gutter marker column
		if v.markFunc != nil {
			if mark, ok := v.markFunc(viewPos); ok {
				builder.WriteString(v.markStyle.Render(string(mark)))
			} else {
				builder.WriteString(" ")
			}
		}

		if v.showSourceNames && v.sourceWidth > 0 {
			name := ""
			if line.Source != nil {
				name = filepath.Base(line.Source.Path)
			}
			builder.WriteString(v.sourceNameStyle.Render(fmt.Sprintf("%-*s|", v.sourceWidth, name)))
		}

		if v.showLineNumbers {
			lineNum := viewPos + 1
			if line.OriginalIndex > 0 {
				lineNum = line.OriginalIndex + 1
			}
			numStr := fmt.Sprintf("%*d ", lineNumWidth, lineNum)
			if isHighlighted {
				builder.WriteString(v.highlightStyle.Render(numStr))
			} else {
				builder.WriteString(v.lineNumberStyle.Render(numStr))
			}
		}

		builder.WriteString(v.renderer.Render(line))
	}

	// Pad with empty lines if needed
	for i := len(lines); i < v.height; i++ {
		if i > 0 || len(lines) > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString("~")
	}

	return builder.String()
}

// PercentScrolled returns how far through the view we are
func (v *Viewport) PercentScrolled() float64 {
	if v.provider == nil || v.provider.LineCount() == 0 {
		return 0
	}

	total := v.provider.LineCount()
	if total <= v.height {
		return 100
	}

	return float64(v.scrollOffset) / float64(total-v.height) * 100
}

// SetShowLineNumbers toggles line numbers
func (v *Viewport) SetShowLineNumbers(show bool) {
	v.showLineNumbers = show
}
