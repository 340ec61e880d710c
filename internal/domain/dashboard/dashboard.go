// Package dashboard computes the practice statistics shown on the home
// screen. Everything is derived live from the stored collections.
package dashboard

import (
	"context"
	"time"

	"github.com/medvault/medvault/internal/domain/appointment"
	"github.com/medvault/medvault/internal/domain/patient"
	"github.com/medvault/medvault/internal/platform/docstore"
)

// Months is the number of calendar months covered by Summary.Monthly.
const Months = 6

type PatientLister interface {
	List(ctx context.Context) ([]patient.Patient, error)
}

type AppointmentLister interface {
	List(ctx context.Context, patientID string) ([]appointment.Appointment, error)
}

// MonthCount is the number of patients created in one calendar month.
type MonthCount struct {
	Month    string `json:"month"` // 2006-01
	Label    string `json:"label"` // Jan
	Patients int    `json:"patients"`
}

type Summary struct {
	TotalPatients        int          `json:"totalPatients"`
	UpcomingAppointments int          `json:"upcomingAppointments"`
	PatientGrowth        float64      `json:"patientGrowth"`
	AppointmentGrowth    float64      `json:"appointmentGrowth"`
	Monthly              []MonthCount `json:"monthly"`
	GeneratedAt          string       `json:"generatedAt"`
}

type Service struct {
	patients     PatientLister
	appointments AppointmentLister
}

func NewService(patients PatientLister, appointments AppointmentLister) *Service {
	return &Service{patients: patients, appointments: appointments}
}

// Summary computes the statistics as of now. Months are calendar months in
// now's location. Timestamps that do not parse are ignored.
func (s *Service) Summary(ctx context.Context, now time.Time) (*Summary, error) {
	patients, err := s.patients.List(ctx)
	if err != nil {
		return nil, err
	}
	appts, err := s.appointments.List(ctx, "")
	if err != nil {
		return nil, err
	}

	loc := now.Location()
	current := monthStart(now)
	first := current.AddDate(0, -(Months - 1), 0)

	monthly := make([]MonthCount, Months)
	for i := range monthly {
		m := first.AddDate(0, i, 0)
		monthly[i] = MonthCount{Month: m.Format("2006-01"), Label: m.Format("Jan")}
	}
	for _, p := range patients {
		t, err := docstore.ParseTime(p.CreatedAt)
		if err != nil {
			continue
		}
		if i := monthIndex(first, t.In(loc)); i >= 0 && i < Months {
			monthly[i].Patients++
		}
	}

	var upcoming, thisMonth, lastMonth int
	for _, a := range appts {
		t, err := docstore.ParseTime(a.Start)
		if err != nil {
			continue
		}
		if !t.Before(now) {
			upcoming++
		}
		switch monthIndex(first, t.In(loc)) {
		case Months - 1:
			thisMonth++
		case Months - 2:
			lastMonth++
		}
	}

	return &Summary{
		TotalPatients:        len(patients),
		UpcomingAppointments: upcoming,
		PatientGrowth:        growth(monthly[Months-1].Patients, monthly[Months-2].Patients),
		AppointmentGrowth:    growth(thisMonth, lastMonth),
		Monthly:              monthly,
		GeneratedAt:          docstore.FormatTime(now),
	}, nil
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// monthIndex returns the number of calendar months between first and t.
func monthIndex(first, t time.Time) int {
	return (t.Year()-first.Year())*12 + int(t.Month()) - int(first.Month())
}

// growth is the percentage change from previous to current, or 0 when
// there is no previous value.
func growth(current, previous int) float64 {
	if previous == 0 {
		return 0
	}
	return float64(current-previous) / float64(previous) * 100
}
