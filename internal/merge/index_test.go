package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimelordUK/mview/internal/source"
)

type memLine struct {
	ts    int64
	text  string
	level source.LogLevel
	cont  bool
}

// memSource is an in-memory LogSource. Appends are staged with push
// and surface one batch per Probe, mimicking a growing file.
type memSource struct {
	name    string
	lines   []memLine
	pending [][]memLine
}

func newMemSource(name string, lines ...memLine) *memSource {
	return &memSource{name: name, lines: lines}
}

func (s *memSource) push(lines ...memLine) {
	s.pending = append(s.pending, lines)
}

func (s *memSource) Name() string { return s.name }

func (s *memSource) Path() string { return "/logs/" + s.name }

func (s *memSource) LineCount() int { return len(s.lines) }

func (s *memSource) TimeAt(i int) int64 { return s.lines[i].ts }

func (s *memSource) LevelAt(i int) source.LogLevel { return s.lines[i].level }

func (s *memSource) Continued(i int) bool { return s.lines[i].cont }

func (s *memSource) ReobserveFrom(line int) {}

func (s *memSource) LongestLine() int {
	longest := 0
	for _, l := range s.lines {
		if len(l.text) > longest {
			longest = len(l.text)
		}
	}
	return longest
}

func (s *memSource) GetLine(i int) (*source.Line, error) {
	if i < 0 || i >= len(s.lines) {
		return nil, nil
	}
	t := time.UnixMilli(s.lines[i].ts)
	return &source.Line{
		Content:       []byte(s.lines[i].text),
		Timestamp:     &t,
		Level:         s.lines[i].level,
		Continued:     s.lines[i].cont,
		OriginalIndex: i,
	}, nil
}

func (s *memSource) Probe() (source.ProbeResult, error) {
	if len(s.pending) == 0 {
		return source.ProbeNoLines, nil
	}
	batch := s.pending[0]
	s.pending = s.pending[1:]

	res := source.ProbeNewLines
	for _, l := range batch {
		if len(s.lines) > 0 && !l.cont && l.ts < s.lines[len(s.lines)-1].ts {
			res = source.ProbeNewOrder
		}
		s.lines = append(s.lines, l)
	}
	if res == source.ProbeNewOrder {
		resortLines(s.lines)
	}
	return res, nil
}

func resortLines(lines []memLine) {
	for i := 1; i < len(lines); i++ {
		for j := i; j > 0 && lines[j].ts < lines[j-1].ts; j-- {
			lines[j], lines[j-1] = lines[j-1], lines[j]
		}
	}
}

// settle runs rebuild passes until nothing changes
func settle(t *testing.T, idx *Index) {
	t.Helper()
	for i := 0; i < 20; i++ {
		if idx.RebuildIndex() == NoChange {
			return
		}
	}
	t.Fatal("index did not settle")
}

// visible collects the text of every visible line in view order
func visible(t *testing.T, idx *Index) []string {
	t.Helper()
	out := make([]string, 0, idx.ViewCount())
	for v := 0; v < idx.ViewCount(); v++ {
		line, err := idx.LineAt(v)
		require.NoError(t, err)
		out = append(out, string(line.Content))
	}
	return out
}

func TestMergeInterleavesByTime(t *testing.T) {
	a := newMemSource("a.log",
		memLine{ts: 1000, text: "a0"},
		memLine{ts: 3000, text: "a1"},
		memLine{ts: 5000, text: "a2"})
	b := newMemSource("b.log",
		memLine{ts: 2000, text: "b0"},
		memLine{ts: 4000, text: "b1"})

	idx := NewIndex()
	idx.Attach(a)
	idx.Attach(b)
	settle(t, idx)

	assert.Equal(t, []string{"a0", "b0", "a1", "b1", "a2"}, visible(t, idx))
	assert.Equal(t, 5, idx.MergedCount())
}

func TestMergeStopsWhenOneTailDrains(t *testing.T) {
	a := newMemSource("a.log",
		memLine{ts: 1000, text: "a0"},
		memLine{ts: 3000, text: "a1"},
		memLine{ts: 5000, text: "a2"})
	b := newMemSource("b.log",
		memLine{ts: 2000, text: "b0"},
		memLine{ts: 4000, text: "b1"})

	idx := NewIndex()
	idx.Attach(a)
	idx.Attach(b)

	// The first pass drains b's tail and leaves a's last line pending
	require.Equal(t, AppendedLines, idx.RebuildIndex())
	assert.Equal(t, []string{"a0", "b0", "a1", "b1"}, visible(t, idx))

	// The next pass picks it up
	require.Equal(t, AppendedLines, idx.RebuildIndex())
	assert.Equal(t, []string{"a0", "b0", "a1", "b1", "a2"}, visible(t, idx))

	assert.Equal(t, NoChange, idx.RebuildIndex())
}

func TestAppendInOrderStaysIncremental(t *testing.T) {
	a := newMemSource("a.log", memLine{ts: 1000, text: "a0"})
	idx := NewIndex()
	slot := idx.Attach(a)
	settle(t, idx)

	a.push(memLine{ts: 2000, text: "a1"}, memLine{ts: 3000, text: "a2"})
	require.Equal(t, AppendedLines, idx.RebuildIndex())

	assert.Equal(t, []string{"a0", "a1", "a2"}, visible(t, idx))
	assert.Equal(t, 3, idx.LinesIndexed(slot))
}

func TestOlderAppendEscalatesToFullRebuild(t *testing.T) {
	a := newMemSource("a.log",
		memLine{ts: 1000, text: "a0"},
		memLine{ts: 3000, text: "a1"})
	b := newMemSource("b.log", memLine{ts: 2000, text: "b0"})

	idx := NewIndex()
	idx.Attach(a)
	idx.Attach(b)
	settle(t, idx)
	require.Equal(t, []string{"a0", "b0", "a1"}, visible(t, idx))

	// In order for b, but older than the last merged line
	b.push(memLine{ts: 2500, text: "b1"})
	require.Equal(t, FullRebuild, idx.RebuildIndex())

	assert.Equal(t, []string{"a0", "b0", "b1", "a1"}, visible(t, idx))
}

func TestReorderedFileForcesFullRebuild(t *testing.T) {
	a := newMemSource("a.log",
		memLine{ts: 1000, text: "a0"},
		memLine{ts: 3000, text: "a1"})

	idx := NewIndex()
	slot := idx.Attach(a)
	settle(t, idx)

	// An append older than the file's own tail re-sorts the file
	a.push(memLine{ts: 2000, text: "a-late"})
	require.Equal(t, FullRebuild, idx.RebuildIndex())
	settle(t, idx)

	assert.Equal(t, []string{"a0", "a-late", "a1"}, visible(t, idx))
	assert.Equal(t, 3, idx.LinesIndexed(slot))
}

func TestIncrementalMatchesFullRebuild(t *testing.T) {
	batches := [][]memLine{
		{{ts: 1000, text: "a0"}, {ts: 4000, text: "a1"}},
		{{ts: 6000, text: "a2"}},
		{{ts: 8000, text: "a3"}, {ts: 9000, text: "a4"}},
	}

	// Incrementally
	inc := newMemSource("a.log", batches[0]...)
	b := newMemSource("b.log",
		memLine{ts: 2000, text: "b0"},
		memLine{ts: 7000, text: "b1"})
	idx := NewIndex()
	idx.Attach(inc)
	idx.Attach(b)
	settle(t, idx)
	for _, batch := range batches[1:] {
		inc.push(batch...)
		settle(t, idx)
	}

	// All at once
	var all []memLine
	for _, batch := range batches {
		all = append(all, batch...)
	}
	full := NewIndex()
	full.Attach(newMemSource("a.log", all...))
	full.Attach(newMemSource("b.log",
		memLine{ts: 2000, text: "b0"},
		memLine{ts: 7000, text: "b1"}))
	settle(t, full)

	assert.Equal(t, visible(t, full), visible(t, idx))
}

func TestDetachKeepsHistoryAndForcesRebuild(t *testing.T) {
	a := newMemSource("a.log", memLine{ts: 1000, text: "a0"})
	b := newMemSource("b.log", memLine{ts: 2000, text: "b0"})

	idx := NewIndex()
	idx.Attach(a)
	slotB := idx.Attach(b)
	settle(t, idx)

	require.NoError(t, idx.Detach(slotB))
	require.Equal(t, FullRebuild, idx.RebuildIndex())
	assert.Equal(t, []string{"a0"}, visible(t, idx))

	require.NoError(t, idx.Reattach(slotB, b))
	settle(t, idx)
	assert.Equal(t, []string{"a0", "b0"}, visible(t, idx))
}

func TestRemoveFreesSlotForReuse(t *testing.T) {
	a := newMemSource("a.log", memLine{ts: 1000, text: "a0"})
	b := newMemSource("b.log", memLine{ts: 2000, text: "b0"})

	idx := NewIndex()
	idx.Attach(a)
	slotB := idx.Attach(b)
	settle(t, idx)

	require.NoError(t, idx.Remove(slotB))
	settle(t, idx)
	assert.Equal(t, []string{"a0"}, visible(t, idx))

	c := newMemSource("c.log", memLine{ts: 3000, text: "c0"})
	assert.Equal(t, slotB, idx.Attach(c))
	settle(t, idx)
	assert.Equal(t, []string{"a0", "c0"}, visible(t, idx))
}

func TestExcludeFilterHidesMatches(t *testing.T) {
	a := newMemSource("a.log",
		memLine{ts: 1000, text: "a0"},
		memLine{ts: 3000, text: "a1"},
		memLine{ts: 5000, text: "a2"})
	b := newMemSource("b.log",
		memLine{ts: 2000, text: "b0"},
		memLine{ts: 4000, text: "b1"},
		memLine{ts: 6000, text: "b tail"})

	idx := NewIndex()
	idx.Attach(a)
	idx.Attach(b)

	flt, err := NewRegexFilter("^b[01]")
	require.NoError(t, err)
	f, err := idx.Filters().Add(flt, Exclude)
	require.NoError(t, err)

	settle(t, idx)
	assert.Equal(t, []string{"a0", "a1", "a2", "b tail"}, visible(t, idx))
	assert.Equal(t, 6, idx.MergedCount(), "filtering hides lines, never unmerges them")

	idx.RemoveFilter(f)
	assert.Equal(t, []string{"a0", "b0", "a1", "b1", "a2", "b tail"}, visible(t, idx))
}

func TestExcludeFilterLeavesOpenMessageAlone(t *testing.T) {
	a := newMemSource("a.log",
		memLine{ts: 1000, text: "noise"},
		memLine{ts: 2000, text: "noise again"})

	idx := NewIndex()
	idx.Attach(a)

	flt, err := NewRegexFilter("noise")
	require.NoError(t, err)
	_, err = idx.Filters().Add(flt, Exclude)
	require.NoError(t, err)
	settle(t, idx)

	// The last message has no closing boundary yet, so its verdict is
	// still pending and it stays visible
	assert.Equal(t, []string{"noise again"}, visible(t, idx))

	a.push(memLine{ts: 3000, text: "clean"})
	settle(t, idx)
	assert.Equal(t, []string{"clean"}, visible(t, idx))
}

func TestViewGenerationTracksRegrowth(t *testing.T) {
	a := newMemSource("a.log",
		memLine{ts: 1000, text: "noise"},
		memLine{ts: 2000, text: "noise again"})

	idx := NewIndex()
	idx.Attach(a)

	flt, err := NewRegexFilter("noise")
	require.NoError(t, err)
	f, err := idx.Filters().Add(flt, Exclude)
	require.NoError(t, err)
	settle(t, idx)
	g0 := idx.ViewGeneration()

	// Closing out an excluded message rewrites verdicts of lines
	// already in the view, so the pass regrows it
	a.push(memLine{ts: 3000, text: "clean"})
	settle(t, idx)
	g1 := idx.ViewGeneration()
	assert.Greater(t, g1, g0)

	// A pure append changes no earlier verdicts and keeps the
	// generation
	a.push(memLine{ts: 4000, text: "clean too"})
	settle(t, idx)
	assert.Equal(t, g1, idx.ViewGeneration())

	idx.RemoveFilter(f)
	assert.Greater(t, idx.ViewGeneration(), g1)
}

func TestIncludeFilterIsMessageScoped(t *testing.T) {
	a := newMemSource("a.log",
		memLine{ts: 1000, text: "ERROR boom", level: source.LevelError},
		memLine{ts: 1000, text: "  at frame one", cont: true},
		memLine{ts: 1000, text: "  at frame two", cont: true},
		memLine{ts: 2000, text: "INFO fine", level: source.LevelInfo})

	idx := NewIndex()
	idx.Attach(a)

	flt, err := NewRegexFilter("ERROR")
	require.NoError(t, err)
	_, err = idx.Filters().Add(flt, Include)
	require.NoError(t, err)

	settle(t, idx)

	// The continuation lines ride along with their matching head; the
	// trailing message is still open and contributes nothing yet
	assert.Equal(t,
		[]string{"ERROR boom", "  at frame one", "  at frame two"},
		visible(t, idx))
}

func TestDisabledFilterLeavesViewAlone(t *testing.T) {
	a := newMemSource("a.log",
		memLine{ts: 1000, text: "keep"},
		memLine{ts: 2000, text: "drop"},
		memLine{ts: 3000, text: "tail"})

	idx := NewIndex()
	idx.Attach(a)

	flt, err := NewRegexFilter("drop")
	require.NoError(t, err)
	f, err := idx.Filters().Add(flt, Exclude)
	require.NoError(t, err)
	settle(t, idx)
	require.Equal(t, []string{"keep", "tail"}, visible(t, idx))

	idx.Filters().SetEnabled(f, false)
	idx.FiltersChanged()
	assert.Equal(t, []string{"keep", "drop", "tail"}, visible(t, idx))

	idx.Filters().SetEnabled(f, true)
	idx.FiltersChanged()
	assert.Equal(t, []string{"keep", "tail"}, visible(t, idx))
}

func TestMinLevelSquelch(t *testing.T) {
	a := newMemSource("a.log",
		memLine{ts: 1000, text: "debug detail", level: source.LevelDebug},
		memLine{ts: 2000, text: "warn here", level: source.LevelWarn},
		memLine{ts: 3000, text: "error here", level: source.LevelError})

	idx := NewIndex()
	idx.Attach(a)
	settle(t, idx)

	idx.SetMinLevel(source.LevelWarn)
	idx.FiltersChanged()
	assert.Equal(t, []string{"warn here", "error here"}, visible(t, idx))

	idx.SetMinLevel(source.LevelUnknown)
	idx.FiltersChanged()
	assert.Len(t, visible(t, idx), 3)
}

func TestMarkedOnlyShowsMarkedMessages(t *testing.T) {
	a := newMemSource("a.log",
		memLine{ts: 1000, text: "first"},
		memLine{ts: 1000, text: "  more", cont: true},
		memLine{ts: 2000, text: "second"})

	idx := NewIndex()
	idx.Attach(a)
	settle(t, idx)

	id, ok := idx.At(0)
	require.True(t, ok)
	idx.ToggleUserMark(id)

	idx.SetMarkedOnly(true)
	idx.FiltersChanged()
	assert.Equal(t, []string{"first", "  more"}, visible(t, idx))

	idx.SetMarkedOnly(false)
	idx.FiltersChanged()
	assert.Len(t, visible(t, idx), 3)
}

type recordingDelegate struct {
	starts    int
	lines     int
	completes int
}

func (d *recordingDelegate) IndexStart(idx *Index) { d.starts++ }

func (d *recordingDelegate) IndexLine(idx *Index, src LogSource, line int) { d.lines++ }

func (d *recordingDelegate) IndexComplete(idx *Index) { d.completes++ }

func TestDelegateSeesEveryVisibleLine(t *testing.T) {
	a := newMemSource("a.log",
		memLine{ts: 1000, text: "a0"},
		memLine{ts: 2000, text: "a1"})

	idx := NewIndex()
	var d recordingDelegate
	idx.SetDelegate(&d)
	idx.Attach(a)
	settle(t, idx)

	assert.Equal(t, 1, d.starts)
	assert.Equal(t, 2, d.lines)

	a.push(memLine{ts: 3000, text: "a2"})
	settle(t, idx)

	// An incremental pass extends without restarting
	assert.Equal(t, 1, d.starts)
	assert.Equal(t, 3, d.lines)
}
