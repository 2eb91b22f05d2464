package merge

import (
	"fmt"
	"regexp"
)

// MaxFilters bounds the filter set; each filter owns one bit of the
// per-line mask word.
const MaxFilters = 32

// FilterKind says whether matching lines are kept or dropped
type FilterKind int

const (
	Include FilterKind = iota
	Exclude
)

// Filter is the predicate capability evaluated against each new line
// of every attached source
type Filter interface {
	Matches(src LogSource, line int, raw []byte) bool
}

// RegexFilter matches lines against a compiled regular expression
type RegexFilter struct {
	pattern string
	re      *regexp.Regexp
}

// NewRegexFilter compiles a regex filter
func NewRegexFilter(pattern string) (*RegexFilter, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("filter %q: %w", pattern, err)
	}
	return &RegexFilter{pattern: pattern, re: re}, nil
}

// Matches implements Filter
func (f *RegexFilter) Matches(_ LogSource, _ int, raw []byte) bool {
	return f.re.Match(raw)
}

// Pattern returns the source pattern
func (f *RegexFilter) Pattern() string {
	return f.pattern
}

type filterSlot struct {
	filter  Filter
	kind    FilterKind
	enabled bool
}

// FilterSet holds the active filters; the slot position of a filter is
// its bit in every file's per-line mask
type FilterSet struct {
	slots []*filterSlot
}

// NewFilterSet returns an empty filter set
func NewFilterSet() *FilterSet {
	return &FilterSet{}
}

// Add registers a filter, enabled, in the lowest free slot
func (fs *FilterSet) Add(f Filter, kind FilterKind) (int, error) {
	for i, s := range fs.slots {
		if s == nil {
			fs.slots[i] = &filterSlot{filter: f, kind: kind, enabled: true}
			return i, nil
		}
	}
	if len(fs.slots) >= MaxFilters {
		return 0, fmt.Errorf("filter set full (%d filters)", MaxFilters)
	}
	fs.slots = append(fs.slots, &filterSlot{filter: f, kind: kind, enabled: true})
	return len(fs.slots) - 1, nil
}

// Remove frees a filter slot
func (fs *FilterSet) Remove(i int) {
	if i >= 0 && i < len(fs.slots) {
		fs.slots[i] = nil
	}
}

// SetEnabled toggles a filter without discarding its per-file state
func (fs *FilterSet) SetEnabled(i int, on bool) {
	if i >= 0 && i < len(fs.slots) && fs.slots[i] != nil {
		fs.slots[i].enabled = on
	}
}

// Enabled reports whether a slot holds an enabled filter
func (fs *FilterSet) Enabled(i int) bool {
	return i >= 0 && i < len(fs.slots) && fs.slots[i] != nil && fs.slots[i].enabled
}

// Kind returns a slot's filter kind; freed slots read as Include
func (fs *FilterSet) Kind(i int) FilterKind {
	if i < 0 || i >= len(fs.slots) || fs.slots[i] == nil {
		return Include
	}
	return fs.slots[i].kind
}

// Get returns the filter in a slot, or nil
func (fs *FilterSet) Get(i int) Filter {
	if i < 0 || i >= len(fs.slots) || fs.slots[i] == nil {
		return nil
	}
	return fs.slots[i].filter
}

// Len returns the number of slots ever allocated (including freed ones)
func (fs *FilterSet) Len() int {
	return len(fs.slots)
}

// EnabledMasks returns the include and exclude bitmasks over enabled
// filters, the shape the per-line inclusion test consumes
func (fs *FilterSet) EnabledMasks() (in, out uint32) {
	for i, s := range fs.slots {
		if s == nil || !s.enabled {
			continue
		}
		if s.kind == Include {
			in |= 1 << uint(i)
		} else {
			out |= 1 << uint(i)
		}
	}
	return in, out
}

// FilterState tracks, for one file, each filter's verdict on every
// processed line. Verdicts are message-scoped: every line of a
// multi-line message gets the same bit, committed when the message's
// closing boundary (the next message's first line) arrives.
type FilterState struct {
	mask []uint32 // one word per processed line, bit f = filter f's verdict

	// maskDirty is set whenever a commit or rollback rewrites bits of
	// already-processed lines, whose view verdicts may now be stale
	maskDirty bool

	messageMatched  [MaxFilters]bool
	linesForMessage [MaxFilters]int
	lastMatched     [MaxFilters]bool
	lastLines       [MaxFilters]int
	matchCount      [MaxFilters]int
	processed       [MaxFilters]int
}

// NewFilterState returns an empty per-file state
func NewFilterState() *FilterState {
	return &FilterState{}
}

// Resize grows the mask array to cover n lines
func (ts *FilterState) Resize(n int) {
	for len(ts.mask) < n {
		ts.mask = append(ts.mask, 0)
	}
}

// Consumed returns the number of lines filter f has seen, committed or
// buffered in the in-progress message
func (ts *FilterState) Consumed(f int) int {
	return ts.processed[f] + ts.linesForMessage[f]
}

// Processed returns the number of lines with committed verdicts
func (ts *FilterState) Processed(f int) int {
	return ts.processed[f]
}

// MatchCount returns how many committed lines matched filter f
func (ts *FilterState) MatchCount(f int) int {
	return ts.matchCount[f]
}

// AddLine feeds the next line of the file, in file order, to filter f.
// A non-continuation line closes out the in-progress message first:
// its verdict is ORed into the mask of every buffered line and the
// message becomes the rollback snapshot.
func (ts *FilterState) AddLine(f int, continuation, matched bool) {
	if !continuation && ts.linesForMessage[f] > 0 {
		bit := ts.messageMatched[f]
		for i := 0; i < ts.linesForMessage[f]; i++ {
			if bit {
				ts.mask[ts.processed[f]] |= 1 << uint(f)
				ts.matchCount[f]++
				ts.maskDirty = true
			}
			ts.processed[f]++
		}
		ts.lastMatched[f] = ts.messageMatched[f]
		ts.lastLines[f] = ts.linesForMessage[f]
		ts.messageMatched[f] = false
		ts.linesForMessage[f] = 0
	}

	ts.messageMatched[f] = ts.messageMatched[f] || matched
	ts.linesForMessage[f]++
}

// RevertToLast undoes the most recently committed message so a file can
// be rewound to an earlier cursor without rescanning from the start.
// rollback is how many of the restored message's lines are being
// discarded. The in-progress buffer must be empty; calling mid-message
// is a programming error.
func (ts *FilterState) RevertToLast(f int, rollback int) {
	if ts.linesForMessage[f] != 0 {
		panic("filter rollback with a message in flight")
	}

	ts.messageMatched[f] = ts.lastMatched[f]
	ts.linesForMessage[f] = ts.lastLines[f]

	for i := 0; i < ts.lastLines[f]; i++ {
		ts.processed[f]--
		pos := ts.processed[f]
		if ts.mask[pos]&(1<<uint(f)) != 0 {
			ts.matchCount[f]--
			ts.mask[pos] &^= 1 << uint(f)
			ts.maskDirty = true
		}
	}

	ts.lastMatched[f] = false
	ts.lastLines[f] = 0

	ts.linesForMessage[f] -= rollback
	if ts.linesForMessage[f] <= 0 {
		ts.linesForMessage[f] = 0
		ts.messageMatched[f] = false
	}
}

// TakeDirty reports whether committed verdicts changed since the last
// call, clearing the flag
func (ts *FilterState) TakeDirty() bool {
	d := ts.maskDirty
	ts.maskDirty = false
	return d
}

// Excluded is the per-line inclusion test: a line is excluded when no
// enabled include filter's bit is set (given any exist) or any enabled
// exclude filter's bit is set
func (ts *FilterState) Excluded(inMask, outMask uint32, line int) bool {
	var m uint32
	if line < len(ts.mask) {
		m = ts.mask[line]
	}
	filteredIn := inMask == 0 || m&inMask != 0
	filteredOut := m&outMask != 0
	return !filteredIn || filteredOut
}

// ClearFilter drops one filter's bits and counters after the filter is
// removed from the set
func (ts *FilterState) ClearFilter(f int) {
	for i := range ts.mask {
		ts.mask[i] &^= 1 << uint(f)
	}
	ts.messageMatched[f] = false
	ts.linesForMessage[f] = 0
	ts.lastMatched[f] = false
	ts.lastLines[f] = 0
	ts.matchCount[f] = 0
	ts.processed[f] = 0
}

// Reset clears everything; used when a file re-sorts or re-indexes
// itself and line numbers change meaning
func (ts *FilterState) Reset() {
	*ts = FilterState{}
}
