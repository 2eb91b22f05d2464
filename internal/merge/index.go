package merge

import (
	"container/heap"
	"sort"

	"github.com/TimelordUK/mview/internal/source"
)

// RebuildResult says how much of the merged index a rebuild pass had to
// touch. Escalation only: a pass never downgrades its outcome.
type RebuildResult int

const (
	NoChange RebuildResult = iota
	AppendedLines
	FullRebuild
)

func (r RebuildResult) String() string {
	switch r {
	case AppendedLines:
		return "appended"
	case FullRebuild:
		return "rebuilt"
	}
	return "no change"
}

// IndexDelegate receives per-line callbacks while the filtered view is
// (re)generated, so derived structures (a time histogram, say) stay in
// sync without rescanning.
type IndexDelegate interface {
	IndexStart(idx *Index)
	IndexLine(idx *Index, src LogSource, line int)
	IndexComplete(idx *Index)
}

// Index is the global, time-ordered merge of every attached source,
// plus the filtered subsequence of it that is currently visible.
type Index struct {
	files []*fileData

	index    []ContentID // merged, sorted by (time, id)
	filtered []int       // positions into index passing the filters

	filters  *FilterSet
	delegate IndexDelegate

	userMarks   []ContentID // sorted
	annotations map[ContentID]string
	searchHits  map[ContentID][2]int

	marks Bookmarks

	minLevel   source.LogLevel
	markedOnly bool

	forceRebuild  bool
	viewGen       uint64
	longestLine   int
	filenameWidth int
}

// NewIndex returns an empty merge index
func NewIndex() *Index {
	return &Index{
		filters:     NewFilterSet(),
		annotations: make(map[ContentID]string),
		searchHits:  make(map[ContentID][2]int),
	}
}

// Filters returns the filter set. After mutating it directly, call
// FiltersChanged.
func (idx *Index) Filters() *FilterSet {
	return idx.filters
}

// SetDelegate installs the index callback consumer
func (idx *Index) SetDelegate(d IndexDelegate) {
	idx.delegate = d
}

// ForceRebuild makes the next rebuild pass start from scratch
func (idx *Index) ForceRebuild() {
	idx.forceRebuild = true
}

// LongestLine returns the longest line length across attached sources
func (idx *Index) LongestLine() int {
	return idx.longestLine
}

// FilenameWidth returns the widest source display name
func (idx *Index) FilenameWidth() int {
	return idx.filenameWidth
}

// SetMinLevel squelches messages below the given severity
func (idx *Index) SetMinLevel(level source.LogLevel) {
	idx.minLevel = level
}

// SetMarkedOnly restricts the view to user-marked messages
func (idx *Index) SetMarkedOnly(on bool) {
	idx.markedOnly = on
}

// RebuildIndex is the incremental entry point, invoked whenever files
// may have grown. It probes every slot, merges new lines into the
// index (or re-sorts everything when ordering broke), regenerates the
// filtered view, and recomputes the bookmark sets.
func (idx *Index) RebuildIndex() RebuildResult {
	force := idx.forceRebuild
	idx.forceRebuild = false

	retval := NoChange
	if force {
		retval = FullRebuild
	}

	// Probe every slot for new lines
	for _, fd := range idx.files {
		if fd == nil {
			continue
		}
		if fd.src == nil {
			// A detached source with merged history leaves dangling
			// identifiers behind; start over without it
			if fd.linesIndexed > 0 {
				force = true
				retval = FullRebuild
			}
			continue
		}

		res, err := fd.src.Probe()
		if err != nil {
			res = source.ProbeInvalid
		}
		if res == source.ProbeNoLines && fd.linesIndexed < fd.src.LineCount() {
			// Nothing new on disk, but lines from an earlier probe are
			// still waiting to be merged
			res = source.ProbeNewLines
		}

		switch res {
		case source.ProbeNoLines:

		case source.ProbeNewLines:
			if retval == NoChange {
				retval = AppendedLines
			}
			if len(idx.index) > 0 {
				// A new line older than the last merged entry would
				// break ordering if plainly appended
				last, ok := idx.timeOf(idx.index[len(idx.index)-1])
				if !ok || fd.src.TimeAt(fd.linesIndexed) < last {
					force = true
					retval = FullRebuild
				}
			}

		case source.ProbeNewOrder, source.ProbeInvalid:
			// Line numbers changed meaning; the per-line filter masks
			// refer to the old order
			fd.filters.Reset()
			fd.linesIndexed = 0
			force = true
			retval = FullRebuild
		}
	}

	if force {
		for _, fd := range idx.files {
			if fd != nil {
				fd.linesIndexed = 0
			}
		}
		idx.index = idx.index[:0]
		idx.filtered = idx.filtered[:0]
		idx.viewGen++
		idx.longestLine = 0
		idx.filenameWidth = 0
	}

	if retval == NoChange {
		return NoChange
	}

	startSize := len(idx.index)

	// Global display widths
	for _, fd := range idx.files {
		if fd == nil || fd.src == nil {
			continue
		}
		if l := fd.src.LongestLine(); l > idx.longestLine {
			idx.longestLine = l
		}
		if w := len(fd.src.Name()); w > idx.filenameWidth {
			idx.filenameWidth = w
		}
	}

	if force {
		idx.fullSort()
	} else {
		idx.kmerge()
	}

	dirty := idx.applyFilters()
	if dirty && startSize > 0 {
		// A boundary line closed out a message whose lines are already
		// in the view; their verdicts changed, so regrow from scratch
		idx.regenFiltered()
	} else {
		idx.growFiltered(startSize)
	}
	idx.UpdateMarks()

	return retval
}

// fullSort re-enumerates every line of every slot and sorts the whole
// index by timestamp, identifiers breaking ties for determinism
func (idx *Index) fullSort() {
	for _, fd := range idx.files {
		if fd == nil || fd.src == nil {
			continue
		}
		n := fd.src.LineCount()
		for line := 0; line < n; line++ {
			idx.index = append(idx.index, EncodeContent(fd.slot, line))
		}
		fd.linesIndexed = n
	}

	sort.SliceStable(idx.index, func(i, j int) bool {
		ti, _ := idx.timeOf(idx.index[i])
		tj, _ := idx.timeOf(idx.index[j])
		if ti != tj {
			return ti < tj
		}
		return idx.index[i] < idx.index[j]
	})
}

// mergeHeap orders slots by the timestamp of their next unindexed line
type mergeHeap struct {
	idx *Index
	fds []*fileData
}

func (h *mergeHeap) Len() int { return len(h.fds) }

func (h *mergeHeap) Less(i, j int) bool {
	a, b := h.fds[i], h.fds[j]
	ta := a.src.TimeAt(a.linesIndexed)
	tb := b.src.TimeAt(b.linesIndexed)
	if ta != tb {
		return ta < tb
	}
	return EncodeContent(a.slot, a.linesIndexed) < EncodeContent(b.slot, b.linesIndexed)
}

func (h *mergeHeap) Swap(i, j int) { h.fds[i], h.fds[j] = h.fds[j], h.fds[i] }

func (h *mergeHeap) Push(x any) { h.fds = append(h.fds, x.(*fileData)) }

func (h *mergeHeap) Pop() any {
	last := h.fds[len(h.fds)-1]
	h.fds = h.fds[:len(h.fds)-1]
	return last
}

// kmerge merges the unindexed suffix of every slot, repeatedly taking
// the globally earliest head. It stops once any one source's tail is
// drained: the rest are picked up on the next pass, which bounds each
// pass's cost to the volume of new lines.
func (idx *Index) kmerge() {
	h := &mergeHeap{idx: idx}
	for _, fd := range idx.files {
		if fd == nil || fd.src == nil {
			continue
		}
		if fd.linesIndexed < fd.src.LineCount() {
			h.fds = append(h.fds, fd)
		}
	}
	heap.Init(h)

	for h.Len() > 0 {
		top := h.fds[0]
		idx.index = append(idx.index, EncodeContent(top.slot, top.linesIndexed))
		top.linesIndexed++
		if top.linesIndexed >= top.src.LineCount() {
			break
		}
		heap.Fix(h, 0)
	}
}

// applyFilters runs the per-file filter state machines over every line
// they have not consumed yet. It reports whether any already-committed
// verdict changed, which invalidates earlier view entries.
func (idx *Index) applyFilters() bool {
	dirty := false
	for _, fd := range idx.files {
		if fd == nil || fd.src == nil {
			continue
		}
		n := fd.src.LineCount()
		fd.filters.Resize(n)

		for f := 0; f < idx.filters.Len(); f++ {
			flt := idx.filters.Get(f)
			if flt == nil {
				continue
			}
			for line := fd.filters.Consumed(f); line < n; line++ {
				raw, err := fd.src.GetLine(line)
				if err != nil || raw == nil {
					break
				}
				matched := flt.Matches(fd.src, line, raw.Content)
				fd.filters.AddLine(f, fd.src.Continued(line), matched)
			}
		}
		if fd.filters.TakeDirty() {
			dirty = true
		}
	}
	return dirty
}

// passes applies the mask test plus the extra level/marked squelches
func (idx *Index) passes(id ContentID, inMask, outMask uint32) bool {
	slot, line := id.Decode()
	if slot >= len(idx.files) || idx.files[slot] == nil {
		return false
	}
	fd := idx.files[slot]
	if fd.src == nil || line >= fd.src.LineCount() {
		return false
	}
	if fd.filters.Excluded(inMask, outMask, line) {
		return false
	}

	if idx.minLevel > source.LevelUnknown && fd.src.LevelAt(line) < idx.minLevel {
		return false
	}
	if idx.markedOnly && !idx.messageMarked(fd, slot, line) {
		return false
	}
	return true
}

// messageMarked reports whether the message containing a line carries a
// user mark on its first line
func (idx *Index) messageMarked(fd *fileData, slot, line int) bool {
	head := line
	for head > 0 && fd.src.Continued(head) {
		head--
	}
	return idx.UserMarked(EncodeContent(slot, head))
}

// growFiltered appends to the filtered view every new index entry that
// passes the enabled filters, firing delegate callbacks as it goes
func (idx *Index) growFiltered(startSize int) {
	inMask, outMask := idx.filters.EnabledMasks()

	if idx.delegate != nil && startSize == 0 {
		idx.delegate.IndexStart(idx)
	}

	for pos := startSize; pos < len(idx.index); pos++ {
		id := idx.index[pos]
		if !idx.passes(id, inMask, outMask) {
			continue
		}
		idx.filtered = append(idx.filtered, pos)
		if idx.delegate != nil {
			slot, line := id.Decode()
			idx.delegate.IndexLine(idx, idx.files[slot].src, line)
		}
	}

	if idx.delegate != nil {
		idx.delegate.IndexComplete(idx)
	}
}

// FiltersChanged recomputes the filtered view from scratch against the
// current filter set without touching the merged index
func (idx *Index) FiltersChanged() {
	idx.applyFilters()
	idx.regenFiltered()
	idx.UpdateMarks()
}

// ViewGeneration counts filtered-view regenerations. An append-only
// grow keeps the generation; any pass that rebuilt the view from
// scratch (and may have hidden or revealed earlier lines) bumps it.
func (idx *Index) ViewGeneration() uint64 {
	return idx.viewGen
}

// regenFiltered rebuilds the filtered view over the whole merged index
func (idx *Index) regenFiltered() {
	idx.viewGen++
	inMask, outMask := idx.filters.EnabledMasks()

	if idx.delegate != nil {
		idx.delegate.IndexStart(idx)
	}

	idx.filtered = idx.filtered[:0]
	for pos, id := range idx.index {
		if !idx.passes(id, inMask, outMask) {
			continue
		}
		idx.filtered = append(idx.filtered, pos)
		if idx.delegate != nil {
			slot, line := id.Decode()
			idx.delegate.IndexLine(idx, idx.files[slot].src, line)
		}
	}

	if idx.delegate != nil {
		idx.delegate.IndexComplete(idx)
	}
}

// RemoveFilter drops a filter from the set and scrubs its bits from
// every file's state, then recomputes the view
func (idx *Index) RemoveFilter(f int) {
	idx.filters.Remove(f)
	for _, fd := range idx.files {
		if fd != nil {
			fd.filters.ClearFilter(f)
		}
	}
	idx.FiltersChanged()
}

// timeOf returns the logical timestamp behind a ContentID
func (idx *Index) timeOf(id ContentID) (int64, bool) {
	slot, line := id.Decode()
	if slot >= len(idx.files) || idx.files[slot] == nil {
		return 0, false
	}
	fd := idx.files[slot]
	if fd.src == nil || line >= fd.src.LineCount() {
		return 0, false
	}
	return fd.src.TimeAt(line), true
}
