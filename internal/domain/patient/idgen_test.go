package patient

import (
	"errors"
	"regexp"
	"testing"
	"time"
)

func TestNextPatientID(t *testing.T) {
	at2024 := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	at2025 := time.Date(2025, 1, 1, 0, 0, 1, 0, time.UTC)

	tests := []struct {
		name     string
		existing []string
		now      time.Time
		want     string
	}{
		{"empty", nil, at2024, "2024-001"},
		{"sequential", []string{"2024-001", "2024-002"}, at2024, "2024-003"},
		{"gaps use the maximum", []string{"2024-007", "2024-002"}, at2024, "2024-008"},
		{"new year restarts", []string{"2024-001", "2024-002"}, at2025, "2025-001"},
		{"other years ignored", []string{"2023-050", "2024-004"}, at2024, "2024-005"},
		{"malformed suffix ignored", []string{"2024-abc", "2024-002"}, at2024, "2024-003"},
		{"last slot", []string{"2024-998"}, at2024, "2024-999"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextPatientID(tt.existing, tt.now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestNextPatientID_Exhausted(t *testing.T) {
	_, err := NextPatientID([]string{"2024-999"}, time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC))
	if !errors.Is(err, ErrIDSpaceExhausted) {
		t.Fatalf("expected ErrIDSpaceExhausted, got %v", err)
	}
}

func TestNextPatientID_Format(t *testing.T) {
	pattern := regexp.MustCompile(`^\d{4}-\d{3}$`)
	id, err := NextPatientID([]string{"2024-041"}, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if !pattern.MatchString(id) {
		t.Errorf("id %q does not match %s", id, pattern)
	}
}
