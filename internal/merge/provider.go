package merge

import "github.com/TimelordUK/mview/internal/source"

// ViewProvider adapts the filtered merged view to the line-provider
// interface the viewport consumes.
type ViewProvider struct {
	idx *Index
}

// Provider returns a line provider over the visible merged lines
func (idx *Index) Provider() *ViewProvider {
	return &ViewProvider{idx: idx}
}

// LineCount returns the number of visible lines
func (p *ViewProvider) LineCount() int {
	return p.idx.ViewCount()
}

// GetLine returns the visible line at a view position
func (p *ViewProvider) GetLine(index int) (*source.Line, error) {
	return p.idx.LineAt(index)
}

// GetLines returns a range of visible lines. The range is clamped to
// the view, so a request past the end returns what remains.
func (p *ViewProvider) GetLines(start, count int) ([]*source.Line, error) {
	total := p.idx.ViewCount()
	if start < 0 {
		start = 0
	}
	if start >= total {
		return nil, nil
	}
	if start+count > total {
		count = total - start
	}

	lines := make([]*source.Line, 0, count)
	for i := start; i < start+count; i++ {
		line, err := p.idx.LineAt(i)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}
