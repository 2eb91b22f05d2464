package merge

import (
	"sort"

	"github.com/TimelordUK/mview/internal/source"
)

// BookmarkVector is an ordered set of view positions
type BookmarkVector []int

// InsertOnce adds a position, keeping the vector sorted and unique
func (bv *BookmarkVector) InsertOnce(pos int) {
	i := sort.SearchInts(*bv, pos)
	if i < len(*bv) && (*bv)[i] == pos {
		return
	}
	*bv = append(*bv, 0)
	copy((*bv)[i+1:], (*bv)[i:])
	(*bv)[i] = pos
}

// Contains reports membership
func (bv BookmarkVector) Contains(pos int) bool {
	i := sort.SearchInts(bv, pos)
	return i < len(bv) && bv[i] == pos
}

// Next returns the first marked position after pos, or -1
func (bv BookmarkVector) Next(pos int) int {
	i := sort.SearchInts(bv, pos+1)
	if i >= len(bv) {
		return -1
	}
	return bv[i]
}

// Prev returns the last marked position before pos, or -1
func (bv BookmarkVector) Prev(pos int) int {
	i := sort.SearchInts(bv, pos)
	if i == 0 {
		return -1
	}
	return bv[i-1]
}

// Bookmarks is every derived marker set over the visible view
type Bookmarks struct {
	Errors   BookmarkVector
	Warnings BookmarkVector
	Files    BookmarkVector
	User     BookmarkVector
	Search   BookmarkVector
}

// Marks returns the current marker sets
func (idx *Index) Marks() *Bookmarks {
	return &idx.marks
}

// UpdateMarks recomputes every marker set from the filtered view in
// order. The pass is deterministic: the same view and stored mark sets
// always produce the same output, however often it runs.
func (idx *Index) UpdateMarks() {
	var bm Bookmarks
	lastSlot := -1

	for v, pos := range idx.filtered {
		id := idx.index[pos]
		slot, line := id.Decode()
		if slot >= len(idx.files) || idx.files[slot] == nil || idx.files[slot].src == nil {
			continue
		}
		src := idx.files[slot].src

		if idx.UserMarked(id) {
			bm.User.InsertOnce(v)
		}
		if _, ok := idx.searchHits[id]; ok {
			bm.Search.InsertOnce(v)
		}

		if slot != lastSlot {
			bm.Files.InsertOnce(v)
			lastSlot = slot
		}

		if !src.Continued(line) {
			switch src.LevelAt(line) {
			case source.LevelWarn:
				bm.Warnings.InsertOnce(v)
			case source.LevelError, source.LevelFatal:
				bm.Errors.InsertOnce(v)
			}
		}
	}

	idx.marks = bm
}

// ToggleUserMark flips a user mark on a line, by stable identifier so
// it survives refiltering
func (idx *Index) ToggleUserMark(id ContentID) {
	i := sort.Search(len(idx.userMarks), func(i int) bool {
		return idx.userMarks[i] >= id
	})
	if i < len(idx.userMarks) && idx.userMarks[i] == id {
		idx.userMarks = append(idx.userMarks[:i], idx.userMarks[i+1:]...)
		delete(idx.annotations, id)
		return
	}
	idx.userMarks = append(idx.userMarks, 0)
	copy(idx.userMarks[i+1:], idx.userMarks[i:])
	idx.userMarks[i] = id
}

// UserMarked reports whether an identifier carries a user mark
func (idx *Index) UserMarked(id ContentID) bool {
	i := sort.Search(len(idx.userMarks), func(i int) bool {
		return idx.userMarks[i] >= id
	})
	return i < len(idx.userMarks) && idx.userMarks[i] == id
}

// UserMarks returns the marked identifiers in order
func (idx *Index) UserMarks() []ContentID {
	out := make([]ContentID, len(idx.userMarks))
	copy(out, idx.userMarks)
	return out
}

// SetAnnotation attaches a note to a marked line
func (idx *Index) SetAnnotation(id ContentID, note string) {
	if note == "" {
		delete(idx.annotations, id)
		return
	}
	idx.annotations[id] = note
}

// Annotation returns the note attached to a line, if any
func (idx *Index) Annotation(id ContentID) (string, bool) {
	note, ok := idx.annotations[id]
	return note, ok
}

// SearchHit is one match reported by the search collaborator
type SearchHit struct {
	ID    ContentID
	Start int
	End   int
}

// AddSearchHits merges a batch of match notifications into the stored
// search set. Marker sets are refreshed by the caller via UpdateMarks.
func (idx *Index) AddSearchHits(hits []SearchHit) {
	for _, h := range hits {
		idx.searchHits[h.ID] = [2]int{h.Start, h.End}
	}
}

// ClearSearchHits discards all search marks (a superseded search)
func (idx *Index) ClearSearchHits() {
	idx.searchHits = make(map[ContentID][2]int)
}

// SearchBounds returns the match bounds recorded for a line
func (idx *Index) SearchBounds(id ContentID) (start, end int, ok bool) {
	b, ok := idx.searchHits[id]
	return b[0], b[1], ok
}
