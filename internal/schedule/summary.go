package schedule

// Summary aggregates the outage duration of one day-group.
type Summary struct {
	TotalCutMinutes int     `json:"total_cut_minutes"`
	CutHours        float64 `json:"cut_hours"`
	AvailableHours  float64 `json:"available_hours"`

	// Overbooked is set when the windows add up to more than a day, which
	// only happens with overlapping or malformed source data.
	Overbooked bool `json:"overbooked"`

	// Skipped holds the entries excluded because of parse errors.
	Skipped []*ParseError `json:"-"`
}

// Summarize totals the cut minutes of windows using their bare time-of-day
// values. A window whose end precedes its start wraps past midnight.
// Entries that fail to parse are reported in Skipped and contribute nothing.
func Summarize(windows []CutWindow) Summary {
	var s Summary

	for _, w := range windows {
		minutes, err := windowMinutes(w)
		if err != nil {
			if pe, ok := err.(*ParseError); ok {
				s.Skipped = append(s.Skipped, pe)
			}
			continue
		}
		s.TotalCutMinutes += minutes
	}

	s.CutHours = float64(s.TotalCutMinutes) / 60
	s.AvailableHours = 24 - s.CutHours
	s.Overbooked = s.AvailableHours < 0

	return s
}

func windowMinutes(w CutWindow) (int, error) {
	start, err := ParseClock("horaDesde", w.StartTime)
	if err != nil {
		return 0, err
	}
	end, err := ParseClock("horaHasta", w.EndTime)
	if err != nil {
		return 0, err
	}

	diff := end.Minutes() - start.Minutes()
	if diff < 0 {
		diff += minutesPerDay
	}
	return diff, nil
}
