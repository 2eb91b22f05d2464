package merge

import (
	"errors"
	"fmt"

	"github.com/TimelordUK/mview/internal/source"
)

// ErrNotFound reports a lookup through a stale or empty slot. Callers
// treat it as "no longer visible", not as a failure.
var ErrNotFound = errors.New("content not found")

// LogSource is the file abstraction the merge engine consumes: ordered
// line iteration, a per-line timestamp, and a probe/reobserve pair for
// incremental growth. *source.FileSource satisfies it.
type LogSource interface {
	Name() string
	Path() string
	LineCount() int
	TimeAt(line int) int64
	LevelAt(line int) source.LogLevel
	Continued(line int) bool
	LongestLine() int
	GetLine(line int) (*source.Line, error)
	Probe() (source.ProbeResult, error)
	ReobserveFrom(line int)
}

// fileData is one slot of the attachment table. src is nil while the
// source is detached; the cursor and filter state outlive it so a
// reattached source resumes where it left off.
type fileData struct {
	slot         int
	src          LogSource
	linesIndexed int
	filters      *FilterState
}

// Attach adds a source to the lowest free slot and returns it
func (idx *Index) Attach(src LogSource) int {
	for i, fd := range idx.files {
		if fd == nil {
			idx.files[i] = &fileData{slot: i, src: src, filters: NewFilterState()}
			return i
		}
	}
	slot := len(idx.files)
	idx.files = append(idx.files, &fileData{slot: slot, src: src, filters: NewFilterState()})
	return slot
}

// Detach empties a slot's source but keeps its indexed history and
// filter state for a later Reattach
func (idx *Index) Detach(slot int) error {
	fd, err := idx.slotData(slot)
	if err != nil {
		return err
	}
	fd.src = nil
	return nil
}

// Reattach restores a source to a previously detached slot
func (idx *Index) Reattach(slot int, src LogSource) error {
	if slot < 0 || slot >= len(idx.files) || idx.files[slot] == nil {
		return fmt.Errorf("reattach slot %d: %w", slot, ErrNotFound)
	}
	if idx.files[slot].src != nil {
		return fmt.Errorf("reattach slot %d: already occupied", slot)
	}
	idx.files[slot].src = src
	return nil
}

// Remove permanently frees a slot. Identifiers minted for it become
// stale, so the next rebuild starts over.
func (idx *Index) Remove(slot int) error {
	if _, err := idx.slotData(slot); err != nil {
		return err
	}
	idx.files[slot] = nil
	idx.forceRebuild = true
	return nil
}

// Resolve maps a ContentID back to its source and line number
func (idx *Index) Resolve(id ContentID) (LogSource, int, error) {
	slot, line := id.Decode()
	fd, err := idx.slotData(slot)
	if err != nil {
		return nil, 0, err
	}
	if fd.src == nil {
		return nil, 0, fmt.Errorf("slot %d detached: %w", slot, ErrNotFound)
	}
	if line >= fd.src.LineCount() {
		return nil, 0, fmt.Errorf("line %d of %s: %w", line, fd.src.Name(), ErrNotFound)
	}
	return fd.src, line, nil
}

// LinesIndexed returns how many of a slot's lines have been merged
func (idx *Index) LinesIndexed(slot int) int {
	fd, err := idx.slotData(slot)
	if err != nil {
		return 0
	}
	return fd.linesIndexed
}

// FilterStateFor exposes a slot's filter state, mainly for tests and
// downstream diagnostics
func (idx *Index) FilterStateFor(slot int) *FilterState {
	fd, err := idx.slotData(slot)
	if err != nil {
		return nil
	}
	return fd.filters
}

func (idx *Index) slotData(slot int) (*fileData, error) {
	if slot < 0 || slot >= len(idx.files) || idx.files[slot] == nil {
		return nil, fmt.Errorf("slot %d: %w", slot, ErrNotFound)
	}
	return idx.files[slot], nil
}
