package merge

import (
	"sort"
	"time"

	"github.com/TimelordUK/mview/internal/source"
)

// ViewCount returns the number of currently visible lines
func (idx *Index) ViewCount() int {
	return len(idx.filtered)
}

// MergedCount returns the total number of merged lines, visible or not
func (idx *Index) MergedCount() int {
	return len(idx.index)
}

// At maps a view position to the ContentID it shows
func (idx *Index) At(viewPos int) (ContentID, bool) {
	if viewPos < 0 || viewPos >= len(idx.filtered) {
		return 0, false
	}
	return idx.index[idx.filtered[viewPos]], true
}

// ResolveLine fetches the line behind a ContentID, stamped with its
// source identity. Returns ErrNotFound for stale identifiers.
func (idx *Index) ResolveLine(id ContentID) (*source.Line, error) {
	src, lineNum, err := idx.Resolve(id)
	if err != nil {
		return nil, err
	}
	line, err := src.GetLine(lineNum)
	if err != nil {
		return nil, err
	}
	line.Source = &source.SourceInfo{Path: src.Path(), Slot: id.Slot()}
	return line, nil
}

// FindFromContent maps a ContentID back to its view position, if the
// line is still merged and visible
func (idx *Index) FindFromContent(id ContentID) (int, bool) {
	target, ok := idx.timeOf(id)
	if !ok {
		return 0, false
	}

	// Entries sharing a timestamp are not guaranteed id-ordered when
	// they arrived across separate merge passes, so scan the run
	lo := sort.Search(len(idx.index), func(i int) bool {
		t, ok := idx.timeOf(idx.index[i])
		return !ok || t >= target
	})

	pos := -1
	for i := lo; i < len(idx.index); i++ {
		t, ok := idx.timeOf(idx.index[i])
		if !ok || t > target {
			break
		}
		if idx.index[i] == id {
			pos = i
			break
		}
	}
	if pos < 0 {
		return 0, false
	}

	v := sort.SearchInts(idx.filtered, pos)
	if v >= len(idx.filtered) || idx.filtered[v] != pos {
		return 0, false
	}
	return v, true
}

// FindFromTime returns the first view position at or after the given
// time, or false when every visible line is earlier
func (idx *Index) FindFromTime(t time.Time) (int, bool) {
	target := t.UnixMilli()
	v := sort.Search(len(idx.filtered), func(i int) bool {
		ms, ok := idx.timeOf(idx.index[idx.filtered[i]])
		return !ok || ms >= target
	})
	if v >= len(idx.filtered) {
		return 0, false
	}
	return v, true
}

// LineAt is ResolveLine addressed by view position
func (idx *Index) LineAt(viewPos int) (*source.Line, error) {
	id, ok := idx.At(viewPos)
	if !ok {
		return nil, ErrNotFound
	}
	return idx.ResolveLine(id)
}
