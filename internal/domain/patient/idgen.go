package patient

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const maxSequence = 999

// NextPatientID returns the next identifier for the year of now:
// "<year>-001" when the year has none yet, otherwise the highest sequence
// of that year plus one. Ids of other years and ids whose suffix is not a
// number are ignored.
func NextPatientID(existing []string, now time.Time) (string, error) {
	year := now.Year()
	prefix := fmt.Sprintf("%04d-", year)

	highest := 0
	for _, id := range existing {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		n, err := strconv.Atoi(id[len(prefix):])
		if err != nil || n < 0 {
			continue
		}
		if n > highest {
			highest = n
		}
	}

	next := highest + 1
	if next > maxSequence {
		return "", ErrIDSpaceExhausted
	}
	return fmt.Sprintf("%s%03d", prefix, next), nil
}
