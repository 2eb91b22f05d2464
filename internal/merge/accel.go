package merge

// Direction classifies the recent message rate
type Direction int

const (
	Steady Direction = iota
	Accelerating
	Decelerating
)

func (d Direction) String() string {
	switch d {
	case Accelerating:
		return "accelerating"
	case Decelerating:
		return "decelerating"
	}
	return "steady"
}

const (
	accelWindow    = 8
	accelThreshold = 0.1
)

// Accel estimates whether messages are arriving faster or slower by
// comparing inter-message time deltas over a small sliding window.
// Points are fed newest first, walking backward through the view.
type Accel struct {
	points []int64
}

// AddPoint records the next (older) message timestamp in milliseconds.
// It refuses the point, returning false, when the window is full or
// the point is newer than its predecessor, which cannot happen while
// walking a time-ordered view backward.
func (a *Accel) AddPoint(ms int64) bool {
	if len(a.points) >= accelWindow {
		return false
	}
	if len(a.points) > 0 && ms > a.points[len(a.points)-1] {
		return false
	}
	a.points = append(a.points, ms)
	return true
}

// Direction reports the trend over the collected window
func (a *Accel) Direction() Direction {
	if len(a.points) < 3 {
		return Steady
	}

	// deltas[0] is the most recent gap
	deltas := make([]int64, len(a.points)-1)
	for i := range deltas {
		deltas[i] = a.points[i] - a.points[i+1]
	}

	var sum int64
	for _, d := range deltas[1:] {
		sum += d
	}
	mean := float64(sum) / float64(len(deltas)-1)
	if mean <= 0 {
		mean = 1
	}

	diff := (float64(deltas[0]) - mean) / mean
	switch {
	case diff < -accelThreshold:
		return Accelerating
	case diff > accelThreshold:
		return Decelerating
	}
	return Steady
}

// LineAccelDirection estimates the message-rate trend at a view
// position, walking backward and skipping continuation lines
func (idx *Index) LineAccelDirection(viewPos int) Direction {
	var la Accel

	for v := viewPos; v >= 0 && v < len(idx.filtered); v-- {
		id := idx.index[idx.filtered[v]]
		slot, line := id.Decode()
		fd := idx.files[slot]
		if fd == nil || fd.src == nil || line >= fd.src.LineCount() {
			break
		}
		if fd.src.Continued(line) {
			continue
		}
		if !la.AddPoint(fd.src.TimeAt(line)) {
			break
		}
	}

	return la.Direction()
}
