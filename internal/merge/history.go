package merge

// LocationHistory is a back/forward navigation stack over stable
// content identifiers, with browser-history append semantics. Entries
// that no longer resolve to a visible view position are skipped, so
// navigation keeps working as filters and files come and go.
type LocationHistory struct {
	resolve  func(ContentID) (int, bool)
	history  []ContentID
	position int // offset back from the top of the stack
}

// NewLocationHistory builds a history over a view-position resolver,
// normally Index.FindFromContent
func NewLocationHistory(resolve func(ContentID) (int, bool)) *LocationHistory {
	return &LocationHistory{resolve: resolve}
}

// Append records a new location, truncating any forward history beyond
// the current position and resetting the position to the top
func (h *LocationHistory) Append(id ContentID) {
	h.history = h.history[:len(h.history)-h.position]
	h.position = 0
	h.history = append(h.history, id)
}

// entry returns the identifier at the given offset back from the top
func (h *LocationHistory) entry(offset int) ContentID {
	return h.history[len(h.history)-1-offset]
}

// Back moves toward older locations. currentTop is the caller's
// current view position, so the top entry is only a destination when
// it differs from where the caller already is. Reports false only once
// the stack is exhausted.
func (h *LocationHistory) Back(currentTop int) (int, bool) {
	for h.position < len(h.history) {
		if h.position == 0 {
			if pos, ok := h.resolve(h.entry(0)); ok && pos != currentTop {
				return pos, true
			}
		}

		if h.position+1 >= len(h.history) {
			break
		}
		h.position++

		if pos, ok := h.resolve(h.entry(h.position)); ok {
			return pos, true
		}
	}
	return 0, false
}

// Forward moves back toward newer locations, skipping entries that no
// longer resolve
func (h *LocationHistory) Forward(currentTop int) (int, bool) {
	for h.position > 0 {
		h.position--
		if pos, ok := h.resolve(h.entry(h.position)); ok {
			return pos, true
		}
	}
	return 0, false
}

// Len returns the number of recorded locations
func (h *LocationHistory) Len() int {
	return len(h.history)
}
