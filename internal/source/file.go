package source

import (
	"path/filepath"
	"sort"
	"time"

	"github.com/TimelordUK/mview/internal/index"
	mviewio "github.com/TimelordUK/mview/internal/io"
)

// ProbeResult describes what a Probe found in the underlying file.
type ProbeResult int

const (
	// ProbeNoLines means nothing changed.
	ProbeNoLines ProbeResult = iota
	// ProbeNewLines means lines were appended in order.
	ProbeNewLines
	// ProbeNewOrder means an appended line was older than its
	// predecessor; the source re-sorted itself, so line numbers no
	// longer mean what they used to.
	ProbeNewOrder
	// ProbeInvalid means the file shrank or became unreadable and was
	// re-indexed from scratch.
	ProbeInvalid
)

// lineMeta is the per-line annotation computed at index time. row is
// the physical row in the byte-offset index; it diverges from the
// logical line number once an out-of-order append forces a re-sort.
type lineMeta struct {
	row       int
	timeMS    int64
	level     LogLevel
	continued bool
}

// FileSource provides time-annotated, ordered lines from a single file
type FileSource struct {
	file  *mviewio.MappedFile
	lines *index.LineIndex
	meta  []lineMeta
	ann   Annotation

	path string
	name string
}

// NewFileSource opens and fully indexes a file
func NewFileSource(path string, ann Annotation) (*FileSource, error) {
	file, err := mviewio.OpenMapped(path)
	if err != nil {
		return nil, err
	}

	lines, err := index.BuildLineIndex(file)
	if err != nil {
		file.Close()
		return nil, err
	}

	s := &FileSource{
		file:  file,
		lines: lines,
		ann:   ann,
		path:  path,
		name:  filepath.Base(path),
	}
	outOfOrder, err := s.annotate()
	if err != nil {
		file.Close()
		return nil, err
	}
	if outOfOrder {
		s.resort()
	}
	return s, nil
}

// annotate fills metadata for rows indexed but not yet observed.
// Returns true if an appended line was older than its predecessor.
func (s *FileSource) annotate() (bool, error) {
	outOfOrder := false
	for row := len(s.meta); row < s.lines.LineCount(); row++ {
		content, err := s.lines.GetLine(row)
		if err != nil {
			return false, err
		}

		m := lineMeta{row: row}
		m.continued = s.ann.Continuation != nil && s.ann.Continuation(content)
		if s.ann.Level != nil {
			m.level = s.ann.Level(content)
		}

		ms, ok := int64(0), false
		if s.ann.Timestamp != nil {
			ms, ok = s.ann.Timestamp(content)
		}
		if (!ok || m.continued) && len(s.meta) > 0 {
			// Continuations and unstamped lines inherit the message
			// timestamp, and continuations its severity too
			prev := s.meta[len(s.meta)-1]
			ms = prev.timeMS
			if m.continued && m.level == LevelUnknown {
				m.level = prev.level
			}
		}
		m.timeMS = ms

		if len(s.meta) > 0 && !m.continued && ms < s.meta[len(s.meta)-1].timeMS {
			outOfOrder = true
		}
		s.meta = append(s.meta, m)
	}
	return outOfOrder, nil
}

// resort re-establishes time order after an out-of-order append. The
// sort is stable so continuation lines stay behind their message head
// (they carry the head's timestamp).
func (s *FileSource) resort() {
	sort.SliceStable(s.meta, func(i, j int) bool {
		return s.meta[i].timeMS < s.meta[j].timeMS
	})
}

// Probe checks the underlying file for changes. The four outcomes map
// directly onto the merge engine's rebuild decisions.
func (s *FileSource) Probe() (ProbeResult, error) {
	change, err := s.file.Refresh()
	if err != nil {
		return ProbeInvalid, err
	}

	switch change {
	case mviewio.Truncated:
		// Everything derived from the old mapping is void
		lines, err := index.BuildLineIndex(s.file)
		if err != nil {
			return ProbeInvalid, err
		}
		s.lines = lines
		s.meta = s.meta[:0]
		outOfOrder, err := s.annotate()
		if err != nil {
			return ProbeInvalid, err
		}
		if outOfOrder {
			s.resort()
		}
		return ProbeInvalid, nil

	case mviewio.Grown:
		if err := s.lines.AppendNewLines(0); err != nil {
			return ProbeInvalid, err
		}
	}

	if len(s.meta) == s.lines.LineCount() {
		return ProbeNoLines, nil
	}

	outOfOrder, err := s.annotate()
	if err != nil {
		return ProbeInvalid, err
	}
	if outOfOrder {
		s.resort()
		return ProbeNewOrder, nil
	}
	return ProbeNewLines, nil
}

// ReobserveFrom drops annotations from the given line on so they are
// rebuilt by the next probe. Line numbers at or past the watermark are
// meaningless until then.
func (s *FileSource) ReobserveFrom(line int) {
	if line < 0 {
		line = 0
	}
	if line < len(s.meta) {
		s.meta = s.meta[:line]
	}
}

// LineCount returns total number of lines
func (s *FileSource) LineCount() int {
	return len(s.meta)
}

// TimeAt returns the logical timestamp of a line in epoch milliseconds
func (s *FileSource) TimeAt(i int) int64 {
	return s.meta[i].timeMS
}

// LevelAt returns the detected severity of a line
func (s *FileSource) LevelAt(i int) LogLevel {
	return s.meta[i].level
}

// Continued reports whether line i continues the previous line
func (s *FileSource) Continued(i int) bool {
	return s.meta[i].continued
}

// LongestLine returns the byte length of the longest line
func (s *FileSource) LongestLine() int {
	return s.lines.LongestLine()
}

// Name returns the display name (basename)
func (s *FileSource) Name() string {
	return s.name
}

// Path returns the file path
func (s *FileSource) Path() string {
	return s.path
}

// GetLine returns line at logical index
func (s *FileSource) GetLine(i int) (*Line, error) {
	if i < 0 || i >= len(s.meta) {
		return nil, nil
	}

	content, err := s.lines.GetLine(s.meta[i].row)
	if err != nil {
		return nil, err
	}

	t := time.UnixMilli(s.meta[i].timeMS)
	return &Line{
		Content:       content,
		Timestamp:     &t,
		Level:         s.meta[i].level,
		Continued:     s.meta[i].continued,
		OriginalIndex: i,
	}, nil
}

// GetLines returns a range of lines
func (s *FileSource) GetLines(start, count int) ([]*Line, error) {
	if start < 0 {
		start = 0
	}
	var lines []*Line
	for i := start; i < start+count && i < len(s.meta); i++ {
		line, err := s.GetLine(i)
		if err != nil {
			return lines, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// FindLineAtTime returns the first line at or after the given time,
// or -1 when every line is earlier
func (s *FileSource) FindLineAtTime(t time.Time) int {
	target := t.UnixMilli()
	i := sort.Search(len(s.meta), func(i int) bool {
		return s.meta[i].timeMS >= target
	})
	if i >= len(s.meta) {
		return -1
	}
	return i
}

// Close closes the file source
func (s *FileSource) Close() error {
	return s.file.Close()
}
