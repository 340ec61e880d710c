package patient

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medvault/medvault/internal/platform/docstore"
	"github.com/medvault/medvault/internal/platform/validation"
)

// DefaultAgreementText is stored on consent forms unless configured otherwise.
const DefaultAgreementText = "I hereby give consent for botulinum toxin treatment performed by T.C.F. Bodewes and agree to the associated costs."

var commandMessages = validation.Messages{
	"firstName.required": "First name is required",
	"lastName.required":  "Last name is required",
	"initials.required":  "Initials are required",
	"dob.required":       "Date of birth is required",
	"gender.oneof":       "Gender must be Male, Female or Other",
	"email.required":     "Email is required",
	"email.email":        "Invalid email address",
	"phone.required":     "Phone number is required",
	"address.required":   "Address is required",
}

var consentMessages = validation.Messages{
	"signature.required": "Signature is required",
}

// Settings configures a Service.
type Settings struct {
	DeletePolicy  DeletePolicy
	AgreementText string
	// Dependents are consulted by cascade and restrict deletes.
	Dependents []Dependents
	Visits     VisitSource
	Now        Clock
}

type Service struct {
	patients   Repository
	validate   *validation.Validator
	dependents []Dependents
	visits     VisitSource
	policy     DeletePolicy
	agreement  string
	now        Clock
}

func NewService(patients Repository, v *validation.Validator, s Settings) *Service {
	v.RegisterMessages(Command{}, commandMessages)
	v.RegisterMessages(SignConsentCommand{}, consentMessages)

	svc := &Service{
		patients:   patients,
		validate:   v,
		dependents: s.Dependents,
		visits:     s.Visits,
		policy:     s.DeletePolicy,
		agreement:  s.AgreementText,
		now:        s.Now,
	}
	if svc.policy == "" {
		svc.policy = PolicyOrphan
	}
	if svc.agreement == "" {
		svc.agreement = DefaultAgreementText
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc
}

func (s *Service) Create(ctx context.Context, cmd Command) (*Patient, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, err
	}

	var p Patient
	cmd.apply(&p)
	err := s.patients.Create(ctx, &p, func(existing []string) (string, error) {
		return NextPatientID(existing, s.now())
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Patient, error) {
	return s.patients.Get(ctx, id)
}

// Query narrows and orders List. Search matches first name, last name and
// initials case-insensitively; Sort is "asc", "desc" or empty for stored
// order.
type Query struct {
	Search string
	Sort   string
}

func (s *Service) List(ctx context.Context, q Query) ([]Patient, error) {
	all, err := s.patients.List(ctx)
	if err != nil {
		return nil, err
	}

	term := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]Patient, 0, len(all))
	for _, p := range all {
		if term == "" ||
			strings.Contains(strings.ToLower(p.FirstName), term) ||
			strings.Contains(strings.ToLower(p.LastName), term) ||
			strings.Contains(strings.ToLower(p.Initials), term) {
			out = append(out, p)
		}
	}

	switch strings.ToLower(q.Sort) {
	case "asc":
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].LastName) < strings.ToLower(out[j].LastName)
		})
	case "desc":
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].LastName) > strings.ToLower(out[j].LastName)
		})
	}
	return out, nil
}

// Update replaces the editable fields. The id, consent form and createdAt
// are kept.
func (s *Service) Update(ctx context.Context, id string, cmd Command) (*Patient, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, err
	}
	return s.patients.Modify(ctx, id, func(p *Patient) error {
		cmd.apply(p)
		return nil
	})
}

// Delete removes a patient. An empty policy uses the configured default.
// Deleting an unknown id is a no-op.
func (s *Service) Delete(ctx context.Context, id string, policy DeletePolicy) error {
	if policy == "" {
		policy = s.policy
	}

	switch policy {
	case PolicyOrphan:
	case PolicyRestrict:
		for _, d := range s.dependents {
			n, err := d.CountByPatient(ctx, id)
			if err != nil {
				return fmt.Errorf("count dependents of %s: %w", id, err)
			}
			if n > 0 {
				return ErrHasDependents
			}
		}
	case PolicyCascade:
		for _, d := range s.dependents {
			if _, err := d.DeleteByPatient(ctx, id); err != nil {
				return fmt.Errorf("delete dependents of %s: %w", id, err)
			}
		}
	default:
		return ErrInvalidPolicy
	}

	return s.patients.Delete(ctx, id)
}

// SignConsent replaces the patient's consent form with a newly signed one.
func (s *Service) SignConsent(ctx context.Context, id string, cmd SignConsentCommand) (*Patient, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, err
	}
	return s.patients.Modify(ctx, id, func(p *Patient) error {
		p.ConsentForm = &ConsentForm{
			ID:            uuid.New().String(),
			SignedAt:      docstore.FormatTime(s.now()),
			Location:      cmd.Location,
			Date:          cmd.Date,
			PatientName:   cmd.PatientName,
			Signature:     cmd.Signature,
			AgreementText: s.agreement,
		}
		return nil
	})
}

// ClearConsent removes the embedded consent form.
func (s *Service) ClearConsent(ctx context.Context, id string) (*Patient, error) {
	return s.patients.Modify(ctx, id, func(p *Patient) error {
		p.ConsentForm = nil
		return nil
	})
}

// LastVisit is the date of a patient's most recent medical record.
type LastVisit struct {
	Date      string `json:"date"`
	DaysSince int    `json:"daysSince"`
}

// LastVisit returns nil when the patient has no dated records.
func (s *Service) LastVisit(ctx context.Context, id string) (*LastVisit, error) {
	if s.visits == nil {
		return nil, nil
	}
	dates, err := s.visits.VisitDates(ctx, id)
	if err != nil {
		return nil, err
	}

	var (
		latest     time.Time
		latestText string
	)
	for _, d := range dates {
		t, err := docstore.ParseTime(d)
		if err != nil {
			continue
		}
		if latestText == "" || t.After(latest) {
			latest, latestText = t, d
		}
	}
	if latestText == "" {
		return nil, nil
	}

	days := int(math.Floor(s.now().Sub(latest).Hours() / 24))
	return &LastVisit{Date: latestText, DaysSince: days}, nil
}
