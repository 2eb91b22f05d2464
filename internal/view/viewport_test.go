package view

import (
	"fmt"
	"strings"
	"testing"

	"github.com/TimelordUK/mview/internal/source"
)

// sliceProvider serves fixed lines
type sliceProvider []string

func (p sliceProvider) LineCount() int { return len(p) }

func (p sliceProvider) GetLine(i int) (*source.Line, error) {
	if i < 0 || i >= len(p) {
		return nil, nil
	}
	return &source.Line{Content: []byte(p[i]), OriginalIndex: i}, nil
}

func (p sliceProvider) GetLines(start, count int) ([]*source.Line, error) {
	var out []*source.Line
	for i := start; i < start+count && i < len(p); i++ {
		line, _ := p.GetLine(i)
		out = append(out, line)
	}
	return out, nil
}

func numbered(n int) sliceProvider {
	p := make(sliceProvider, n)
	for i := range p {
		p[i] = fmt.Sprintf("line %d", i)
	}
	return p
}

func TestScrollClamping(t *testing.T) {
	v := NewViewport(80, 10)
	v.SetProvider(numbered(25))

	tests := []struct {
		name string
		op   func()
		want int
	}{
		{"initial", func() {}, 0},
		{"scroll down", func() { v.ScrollDown(5) }, 5},
		{"scroll past end", func() { v.ScrollDown(100) }, 15},
		{"scroll up past start", func() { v.ScrollUp(100) }, 0},
		{"page down", func() { v.PageDown() }, 9},
		{"goto bottom", func() { v.GotoBottom() }, 15},
		{"page up", func() { v.PageUp() }, 6},
		{"goto top", func() { v.GotoTop() }, 0},
		{"goto line", func() { v.GotoLine(12) }, 12},
		{"goto negative", func() { v.GotoLine(-5) }, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.op()
			if got := v.CurrentLine(); got != tt.want {
				t.Errorf("CurrentLine() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestShortContentNeverScrolls(t *testing.T) {
	v := NewViewport(80, 10)
	v.SetProvider(numbered(3))

	v.GotoBottom()
	if got := v.CurrentLine(); got != 0 {
		t.Errorf("CurrentLine() = %d, want 0", got)
	}
	if !v.AtBottom() {
		t.Error("AtBottom() = false for short content")
	}
	if got := v.PercentScrolled(); got != 100 {
		t.Errorf("PercentScrolled() = %f, want 100", got)
	}
}

func TestRenderShowsVisibleWindow(t *testing.T) {
	v := NewViewport(80, 3)
	v.SetShowLineNumbers(false)
	v.SetProvider(numbered(10))
	v.GotoLine(4)

	out := v.Render()
	rows := strings.Split(out, "\n")
	if len(rows) != 3 {
		t.Fatalf("Render() produced %d rows, want 3", len(rows))
	}
	for i, want := range []string{"line 4", "line 5", "line 6"} {
		if !strings.Contains(rows[i], want) {
			t.Errorf("row %d = %q, want it to contain %q", i, rows[i], want)
		}
	}
}

func TestRenderPadsShortContent(t *testing.T) {
	v := NewViewport(80, 4)
	v.SetShowLineNumbers(false)
	v.SetProvider(sliceProvider{"only"})

	rows := strings.Split(v.Render(), "\n")
	if len(rows) != 4 {
		t.Fatalf("Render() produced %d rows, want 4", len(rows))
	}
	for i := 1; i < 4; i++ {
		if rows[i] != "~" {
			t.Errorf("row %d = %q, want ~", i, rows[i])
		}
	}
}

func TestRenderGutterMarks(t *testing.T) {
	v := NewViewport(80, 3)
	v.SetShowLineNumbers(false)
	v.SetProvider(numbered(3))
	v.SetMarkFunc(func(viewPos int) (rune, bool) {
		if viewPos == 1 {
			return '>', true
		}
		return 0, false
	})

	rows := strings.Split(v.Render(), "\n")
	if !strings.Contains(rows[1], ">") {
		t.Errorf("marked row = %q, want gutter marker", rows[1])
	}
	if strings.Contains(rows[0], ">") {
		t.Errorf("unmarked row = %q, has stray marker", rows[0])
	}
}

func TestPercentScrolled(t *testing.T) {
	v := NewViewport(80, 10)
	v.SetProvider(numbered(30))

	if got := v.PercentScrolled(); got != 0 {
		t.Errorf("PercentScrolled() at top = %f", got)
	}
	v.GotoBottom()
	if got := v.PercentScrolled(); got != 100 {
		t.Errorf("PercentScrolled() at bottom = %f", got)
	}
}
