package appointment

import "time"

// DeriveStatus labels an appointment Completed once its start lies strictly
// before now, Scheduled otherwise. The result is stored as a snapshot.
func DeriveStatus(start, now time.Time) Status {
	if start.Before(now) {
		return StatusCompleted
	}
	return StatusScheduled
}

// Title is "<lastName>, <initials> - <type>".
func Title(lastName, initials string, t Type) string {
	return lastName + ", " + initials + " - " + string(t)
}
