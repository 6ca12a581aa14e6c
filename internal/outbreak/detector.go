// Package outbreak turns an activity time series into discrete outbreak
// episodes. It depends on nothing else in the engine and keeps no state
// between calls.
package outbreak

// Number is any integer or float series element.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Detect scans series for maximal runs at or above threshold and returns
// each completed run's peak height and width (ticks from its first index to
// the index where it dropped below threshold), in chronological order.
//
// A run still above threshold when the series ends is not reported; callers
// wanting the open run can append a sub-threshold value.
func Detect[T Number](series []T, threshold T) (peaks []T, widths []int) {
	peaks = []T{}
	widths = []int{}

	counting := false
	start := 0
	var peak T

	for i, v := range series {
		switch {
		case !counting && v >= threshold:
			counting = true
			start = i
			peak = v
		case counting && v >= threshold:
			if v > peak {
				peak = v
			}
		case counting && v < threshold:
			peaks = append(peaks, peak)
			widths = append(widths, i-start)
			peak = 0
			counting = false
		}
	}
	return peaks, widths
}
