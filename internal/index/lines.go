package index

import (
	"bytes"

	mviewio "github.com/TimelordUK/mview/internal/io"
)

const chunkSize = 64 * 1024

// LineIndex stores byte offsets for each line in a file
type LineIndex struct {
	offsets []int64 // byte offset of each line start
	longest int     // length of the longest line seen
	file    *mviewio.MappedFile
}

// BuildLineIndex scans the file and builds a line offset index
func BuildLineIndex(file *mviewio.MappedFile) (*LineIndex, error) {
	idx := &LineIndex{file: file}
	if file.Size() == 0 {
		return idx, nil
	}

	// Estimate initial capacity (assume ~100 bytes per line)
	idx.offsets = make([]int64, 0, int(file.Size()/100)+1)
	idx.offsets = append(idx.offsets, 0)

	if err := idx.scan(0); err != nil {
		return nil, err
	}
	return idx, nil
}

// AppendNewLines extends the index over bytes appended past oldSize.
// The scan restarts at the beginning of the last known line so a
// partial trailing line finished by the append is split correctly.
func (idx *LineIndex) AppendNewLines(oldSize int64) error {
	if idx.file.Size() <= oldSize {
		return nil
	}
	if len(idx.offsets) == 0 {
		idx.offsets = append(idx.offsets, 0)
		return idx.scan(0)
	}

	last := idx.offsets[len(idx.offsets)-1]
	return idx.scan(last)
}

// scan finds newline boundaries from pos to EOF, appending line starts
func (idx *LineIndex) scan(pos int64) error {
	size := idx.file.Size()
	buf := make([]byte, chunkSize)
	lineStart := pos

	for pos < size {
		readSize := chunkSize
		if pos+int64(readSize) > size {
			readSize = int(size - pos)
		}

		n, err := idx.file.ReadAt(buf[:readSize], pos)
		if err != nil {
			return err
		}

		chunk := buf[:n]
		offset := 0
		for {
			i := bytes.IndexByte(chunk[offset:], '\n')
			if i == -1 {
				break
			}
			next := pos + int64(offset) + int64(i) + 1
			if l := int(next - lineStart - 1); l > idx.longest {
				idx.longest = l
			}
			if next < size {
				idx.offsets = append(idx.offsets, next)
			}
			lineStart = next
			offset += i + 1
		}

		pos += int64(n)
	}

	if l := int(size - lineStart); l > idx.longest {
		idx.longest = l
	}
	return nil
}

// LineCount returns the total number of lines
func (idx *LineIndex) LineCount() int {
	return len(idx.offsets)
}

// LongestLine returns the length in bytes of the longest line
func (idx *LineIndex) LongestLine() int {
	return idx.longest
}

// GetLine returns the content of line at given index (0-based)
func (idx *LineIndex) GetLine(lineNum int) ([]byte, error) {
	if lineNum < 0 || lineNum >= len(idx.offsets) {
		return nil, nil
	}

	start := idx.offsets[lineNum]
	var end int64
	if lineNum+1 < len(idx.offsets) {
		end = idx.offsets[lineNum+1]
	} else {
		end = idx.file.Size()
	}

	content, err := idx.file.ReadRange(start, end)
	if err != nil {
		return nil, err
	}

	return bytes.TrimRight(content, "\r\n"), nil
}

// GetLines returns a range of lines
func (idx *LineIndex) GetLines(start, count int) ([][]byte, error) {
	if start < 0 {
		start = 0
	}
	if start >= len(idx.offsets) {
		return nil, nil
	}
	if start+count > len(idx.offsets) {
		count = len(idx.offsets) - start
	}

	lines := make([][]byte, count)
	for i := 0; i < count; i++ {
		line, err := idx.GetLine(start + i)
		if err != nil {
			return nil, err
		}
		lines[i] = line
	}
	return lines, nil
}

// ByteOffset returns the byte offset of a line
func (idx *LineIndex) ByteOffset(lineNum int) int64 {
	if lineNum < 0 || lineNum >= len(idx.offsets) {
		return -1
	}
	return idx.offsets[lineNum]
}
