package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentIDRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		slot int
		line int
	}{
		{"origin", 0, 0},
		{"first slot high line", 0, MaxLinesPerFile - 1},
		{"second slot", 1, 0},
		{"large slot", 4095, 123456},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := EncodeContent(tt.slot, tt.line)
			slot, line := id.Decode()
			assert.Equal(t, tt.slot, slot)
			assert.Equal(t, tt.line, line)
			assert.Equal(t, tt.slot, id.Slot())
			assert.Equal(t, tt.line, id.Line())
		})
	}
}

func TestContentIDOrdersBySlotThenLine(t *testing.T) {
	assert.Less(t, EncodeContent(0, 5), EncodeContent(0, 6))
	assert.Less(t, EncodeContent(0, MaxLinesPerFile-1), EncodeContent(1, 0))
	assert.Less(t, EncodeContent(1, 100), EncodeContent(2, 0))
}

func TestEncodeContentCapacityPanics(t *testing.T) {
	assert.Panics(t, func() { EncodeContent(0, MaxLinesPerFile) })
	assert.Panics(t, func() { EncodeContent(0, -1) })
	assert.Panics(t, func() { EncodeContent(-1, 0) })
}
