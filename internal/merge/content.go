package merge

import "fmt"

// MaxLinesPerFile is the per-file line budget of the content addressing
// scheme. A file reaching it is a fatal configuration problem: letting
// line numbers spill into the next slot would silently corrupt every
// identifier after it.
const MaxLinesPerFile = 1 << 28

// ContentID names one line of one attached source: slot in the high
// bits, line number in the low bits. IDs order by (slot, line) and are
// never reused while the source occupies its slot.
type ContentID uint64

// EncodeContent packs a slot and line number into a ContentID
func EncodeContent(slot, line int) ContentID {
	if line < 0 || line >= MaxLinesPerFile {
		panic(fmt.Sprintf("line %d outside per-file capacity %d", line, MaxLinesPerFile))
	}
	if slot < 0 {
		panic(fmt.Sprintf("negative slot %d", slot))
	}
	return ContentID(uint64(slot)*MaxLinesPerFile + uint64(line))
}

// Decode unpacks a ContentID into its slot and line number
func (id ContentID) Decode() (slot, line int) {
	return int(uint64(id) / MaxLinesPerFile), int(uint64(id) % MaxLinesPerFile)
}

// Slot returns the slot part of the identifier
func (id ContentID) Slot() int {
	slot, _ := id.Decode()
	return slot
}

// Line returns the line part of the identifier
func (id ContentID) Line() int {
	_, line := id.Decode()
	return line
}
