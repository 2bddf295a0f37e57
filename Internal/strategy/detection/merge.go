package detection

// significant reports whether the run's peak close cleared the baseline by more
// than minimumATRDelta volatilities, measured at the bar of that close. Overscan
// bars never carry a close extremum, so extending the first run cannot move it.
func significant(w Window, iv Interval, minimumATRDelta float64) bool {
	i, peak := iv.PeakClose()
	if iv.Type == Above {
		return peak > w.baseline(i)+w.volatility(i)*minimumATRDelta
	}
	return peak < w.baseline(i)-w.volatility(i)*minimumATRDelta
}

// FilterInsignificant walks newest to oldest and folds every whipsaw run into
// its older neighbor. The oldest run has no older neighbor: it is folded forward
// into the next run, and only while more than two runs remain. Every run left
// over is significant, or the oldest of at most two, so a second pass is a no-op.
func FilterInsignificant(w Window, intervals []Interval, minimumATRDelta float64) []Interval {
	out := append([]Interval(nil), intervals...)
	for i := len(out) - 1; i >= 0; i-- {
		if significant(w, out[i], minimumATRDelta) {
			continue
		}
		switch {
		case i > 0:
			out[i-1] = out[i-1].absorbNewer(out[i])
			out = append(out[:i], out[i+1:]...)
		case len(out) > 2:
			out[1] = out[1].absorbWhipsaw(out[0])
			out = out[1:]
		}
	}
	return out
}

// CoalesceSameType joins adjacent runs left with the same type, newest to oldest.
func CoalesceSameType(intervals []Interval) []Interval {
	out := append([]Interval(nil), intervals...)
	for i := len(out) - 1; i > 0; i-- {
		if out[i].Type != out[i-1].Type {
			continue
		}
		out[i-1] = out[i-1].absorbNewer(out[i])
		out = append(out[:i], out[i+1:]...)
	}
	return out
}

// MergeIntervals runs both passes. The result alternates type and stays contiguous.
func MergeIntervals(w Window, intervals []Interval, minimumATRDelta float64) []Interval {
	return CoalesceSameType(FilterInsignificant(w, intervals, minimumATRDelta))
}
