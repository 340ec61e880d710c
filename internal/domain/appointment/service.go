package appointment

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/medvault/medvault/internal/domain/patient"
	"github.com/medvault/medvault/internal/platform/validation"
)

var commandMessages = validation.Messages{
	"patientId.required":  "Patient is required",
	"type.oneof":          "Type must be Consultation, Treatment or Follow-up",
	"start.required":      "Start time is required",
	"start.rfc3339":       "Start time must be an RFC 3339 timestamp",
	"end.required":        "End time is required",
	"end.rfc3339":         "End time must be an RFC 3339 timestamp",
	"durationMinutes.gte": "Duration must not be negative",
	"durationMinutes.lte": "Duration must not exceed 1440 minutes",
}

// PatientLookup resolves the patient an appointment is for.
type PatientLookup interface {
	Get(ctx context.Context, id string) (*patient.Patient, error)
}

type Settings struct {
	// EnforcePatientReference rejects appointments for unknown patients.
	EnforcePatientReference bool
	Now                     func() time.Time
}

type Service struct {
	appointments Repository
	patients     PatientLookup
	validate     *validation.Validator
	enforce      bool
	now          func() time.Time
}

func NewService(appointments Repository, patients PatientLookup, v *validation.Validator, s Settings) *Service {
	v.RegisterMessages(Command{}, commandMessages)
	svc := &Service{
		appointments: appointments,
		patients:     patients,
		validate:     v,
		enforce:      s.EnforcePatientReference,
		now:          s.Now,
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc
}

// withEnd fills End from Start and DurationMinutes when End is empty.
func withEnd(cmd Command) Command {
	if cmd.End != "" || cmd.DurationMinutes <= 0 {
		return cmd
	}
	start, err := time.Parse(time.RFC3339, cmd.Start)
	if err != nil {
		return cmd
	}
	cmd.End = start.Add(time.Duration(cmd.DurationMinutes) * time.Minute).Format(time.RFC3339)
	return cmd
}

// prepare validates cmd and returns it with End filled in, the parsed
// start and the title for the referenced patient.
func (s *Service) prepare(ctx context.Context, cmd Command) (Command, time.Time, string, error) {
	cmd = withEnd(cmd)
	if err := s.validate.Struct(cmd); err != nil {
		return cmd, time.Time{}, "", err
	}
	start, err := time.Parse(time.RFC3339, cmd.Start)
	if err != nil {
		return cmd, time.Time{}, "", err
	}

	title := string(cmd.Type)
	p, err := s.patients.Get(ctx, cmd.PatientID)
	switch {
	case err == nil:
		title = Title(p.LastName, p.Initials, cmd.Type)
	case errors.Is(err, patient.ErrNotFound):
		if s.enforce {
			return cmd, time.Time{}, "", ErrPatientNotFound
		}
	default:
		return cmd, time.Time{}, "", err
	}
	return cmd, start, title, nil
}

func (s *Service) Create(ctx context.Context, cmd Command) (*Appointment, error) {
	cmd, start, title, err := s.prepare(ctx, cmd)
	if err != nil {
		return nil, err
	}

	a := &Appointment{
		ID:        uuid.New().String(),
		PatientID: cmd.PatientID,
		Title:     title,
		Type:      cmd.Type,
		Start:     cmd.Start,
		End:       cmd.End,
		Notes:     cmd.Notes,
		Status:    DeriveStatus(start, s.now()),
	}
	if err := s.appointments.Upsert(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Update rewrites an appointment from cmd, re-deriving its title and
// status. createdAt is kept.
func (s *Service) Update(ctx context.Context, id string, cmd Command) (*Appointment, error) {
	cmd, start, title, err := s.prepare(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return s.appointments.Modify(ctx, id, func(a *Appointment) error {
		a.PatientID = cmd.PatientID
		a.Title = title
		a.Type = cmd.Type
		a.Start = cmd.Start
		a.End = cmd.End
		a.Notes = cmd.Notes
		a.Status = DeriveStatus(start, s.now())
		return nil
	})
}

func (s *Service) Get(ctx context.Context, id string) (*Appointment, error) {
	return s.appointments.Get(ctx, id)
}

// List returns appointments in stored order; an empty patientID lists all.
func (s *Service) List(ctx context.Context, patientID string) ([]Appointment, error) {
	return s.appointments.List(ctx, patientID)
}

// History returns a patient's appointments, latest start first.
func (s *Service) History(ctx context.Context, patientID string) ([]Appointment, error) {
	appts, err := s.appointments.List(ctx, patientID)
	if err != nil {
		return nil, err
	}
	starts := make(map[string]time.Time, len(appts))
	for _, a := range appts {
		if t, err := time.Parse(time.RFC3339, a.Start); err == nil {
			starts[a.ID] = t
		}
	}
	sort.SliceStable(appts, func(i, j int) bool {
		return starts[appts[i].ID].After(starts[appts[j].ID])
	})
	return appts, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.appointments.Delete(ctx, id)
}
