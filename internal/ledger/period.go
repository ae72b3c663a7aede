package ledger

import "time"

// PreviousMonth returns the first and last day of the calendar month before now,
// in now's location. Both bounds are inclusive.
func PreviousMonth(now time.Time) (start, end time.Time) {
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	end = firstOfMonth.AddDate(0, 0, -1)
	start = time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, end.Location())
	return start, end
}
