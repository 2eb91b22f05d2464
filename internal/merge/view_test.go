package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTwoFileIndex(t *testing.T) *Index {
	t.Helper()
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
	return idx
}

func TestFindFromContentInvertsAt(t *testing.T) {
	idx := buildTwoFileIndex(t)

	for v := 0; v < idx.ViewCount(); v++ {
		id, ok := idx.At(v)
		require.True(t, ok)
		got, ok := idx.FindFromContent(id)
		require.True(t, ok, "position %d", v)
		assert.Equal(t, v, got)
	}
}

func TestFindFromContentStaleID(t *testing.T) {
	idx := buildTwoFileIndex(t)

	_, ok := idx.FindFromContent(EncodeContent(7, 0))
	assert.False(t, ok)
	_, ok = idx.FindFromContent(EncodeContent(0, 99))
	assert.False(t, ok)
}

func TestFindFromContentHiddenLine(t *testing.T) {
	idx := buildTwoFileIndex(t)
	id, ok := idx.At(1) // b0
	require.True(t, ok)

	flt, err := NewRegexFilter("^b")
	require.NoError(t, err)
	_, err = idx.Filters().Add(flt, Exclude)
	require.NoError(t, err)
	idx.FiltersChanged()

	_, found := idx.FindFromContent(id)
	assert.False(t, found, "hidden lines have no view position")
}

func TestFindFromTime(t *testing.T) {
	idx := buildTwoFileIndex(t)

	tests := []struct {
		name    string
		ms      int64
		wantPos int
		wantOK  bool
	}{
		{"before everything", 0, 0, true},
		{"exact", 3000, 2, true},
		{"between", 3500, 3, true},
		{"after everything", 9000, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos, ok := idx.FindFromTime(time.UnixMilli(tt.ms))
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantPos, pos)
			}
		})
	}
}

func TestResolveLineStampsSource(t *testing.T) {
	idx := buildTwoFileIndex(t)

	line, err := idx.LineAt(1)
	require.NoError(t, err)
	require.NotNil(t, line.Source)
	assert.Equal(t, "/logs/b.log", line.Source.Path)
	assert.Equal(t, 1, line.Source.Slot)
	assert.Equal(t, 0, line.OriginalIndex)
}

func TestLineAtOutOfRange(t *testing.T) {
	idx := buildTwoFileIndex(t)

	_, err := idx.LineAt(99)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = idx.LineAt(-1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProviderClampsRanges(t *testing.T) {
	idx := buildTwoFileIndex(t)
	p := idx.Provider()

	assert.Equal(t, 5, p.LineCount())

	lines, err := p.GetLines(3, 10)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "b1", string(lines[0].Content))

	lines, err = p.GetLines(99, 5)
	require.NoError(t, err)
	assert.Empty(t, lines)
}
