package schedule

import "time"

// Classify determines whether the window anchored at cutDateTime is pending,
// active or already over at now. The anchor is interpreted in now's location.
func Classify(now time.Time, cutDateTime, startTime, endTime string) (Status, error) {
	iv, err := Bounds(cutDateTime, startTime, endTime, now.Location())
	if err != nil {
		return "", err
	}
	return iv.Classify(now), nil
}

// Classify applies the classification rules to a concrete interval.
func (iv Interval) Classify(now time.Time) Status {
	if now.After(iv.End) {
		return StatusAlreadyOccurred
	}
	if now.Before(iv.Start) {
		return StatusPending
	}
	// A 00:00 end belongs to the anchor day, so its final instant is still active.
	if sameDay(now, iv.Anchor) || now.Equal(iv.End) {
		return StatusActive
	}
	return StatusPending
}

// Remaining returns the time left until the interval ends, floored at zero.
func (iv Interval) Remaining(now time.Time) time.Duration {
	d := iv.End.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Classify classifies w at now.
func (w CutWindow) Classify(now time.Time) (Status, error) {
	return Classify(now, w.CutDateTime, w.StartTime, w.EndTime)
}

func sameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
