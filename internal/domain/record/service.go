package record

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/medvault/medvault/internal/domain/patient"
	"github.com/medvault/medvault/internal/platform/docstore"
	"github.com/medvault/medvault/internal/platform/validation"
)

var commandMessages = validation.Messages{
	"patientId.required":                  "Patient is required",
	"date.required":                       "Date is required",
	"type.required":                       "Record type is required",
	"provider.required":                   "Provider is required",
	"complaint.required":                  "Chief complaint is required",
	"diagnosis.required":                  "Diagnosis is required",
	"treatment.required":                  "Treatment is required",
	"medications.*.productName.required":  "Product name is required",
	"medications.*.genericName.required":  "Generic name is required",
	"medications.*.dosage.required":       "Dosage is required",
	"medications.*.batch.required":        "Batch number is required",
	"medications.*.expiryDate.required":   "Expiry date is required",
	"images.*.type.oneof":                 "Image type must be Before or After",
	"images.*.url.required":               "Image URL is required",
	"treatmentPoints.*.area.required":     "Treatment area is required",
	"treatmentPoints.*.units.gte":         "Units must be between 1 and 12",
	"treatmentPoints.*.units.lte":         "Units must be between 1 and 12",
	"treatmentPoints.*.coordinates.x.gte": "Coordinates must be between 0 and 100",
	"treatmentPoints.*.coordinates.x.lte": "Coordinates must be between 0 and 100",
	"treatmentPoints.*.coordinates.y.gte": "Coordinates must be between 0 and 100",
	"treatmentPoints.*.coordinates.y.lte": "Coordinates must be between 0 and 100",
}

// PatientLookup resolves the patient a record refers to.
type PatientLookup interface {
	Get(ctx context.Context, id string) (*patient.Patient, error)
}

type Settings struct {
	// EnforcePatientReference rejects records for unknown patients.
	EnforcePatientReference bool
	Now                     func() time.Time
}

type Service struct {
	records  Repository
	patients PatientLookup
	validate *validation.Validator
	enforce  bool
	now      func() time.Time
}

func NewService(records Repository, patients PatientLookup, v *validation.Validator, s Settings) *Service {
	v.RegisterMessages(Command{}, commandMessages)
	svc := &Service{
		records:  records,
		patients: patients,
		validate: v,
		enforce:  s.EnforcePatientReference,
		now:      s.Now,
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc
}

// Create stores a new record. A non-empty patientID, taken from the
// request path, overrides the one in cmd.
func (s *Service) Create(ctx context.Context, patientID string, cmd Command) (*MedicalRecord, error) {
	if patientID != "" {
		cmd.PatientID = patientID
	}
	if err := s.validate.Struct(cmd); err != nil {
		return nil, err
	}
	if s.enforce {
		if _, err := s.patients.Get(ctx, cmd.PatientID); err != nil {
			if errors.Is(err, patient.ErrNotFound) {
				return nil, ErrPatientNotFound
			}
			return nil, err
		}
	}

	rec := &MedicalRecord{
		ID:        uuid.New().String(),
		PatientID: cmd.PatientID,
	}
	s.apply(rec, cmd)
	if err := s.records.Upsert(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// apply copies the command onto rec and fills ids of new child entries.
func (s *Service) apply(rec *MedicalRecord, cmd Command) {
	rec.Date = cmd.Date
	rec.Type = cmd.Type
	rec.Provider = cmd.Provider
	rec.Complaint = cmd.Complaint
	rec.Diagnosis = cmd.Diagnosis
	rec.Treatment = cmd.Treatment
	rec.Notes = cmd.Notes
	rec.FollowUpDate = cmd.FollowUpDate

	rec.Medications = make([]Medication, len(cmd.Medications))
	for i, m := range cmd.Medications {
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		rec.Medications[i] = m
	}

	rec.Aftercare = make([]string, len(cmd.Aftercare))
	copy(rec.Aftercare, cmd.Aftercare)

	uploadedAt := docstore.FormatTime(s.now())
	rec.Images = make([]RecordImage, len(cmd.Images))
	for i, img := range cmd.Images {
		if img.ID == "" {
			img.ID = uuid.New().String()
		}
		if img.UploadedAt == "" {
			img.UploadedAt = uploadedAt
		}
		rec.Images[i] = img
	}

	rec.TreatmentPoints = make([]TreatmentPoint, len(cmd.TreatmentPoints))
	for i, tp := range cmd.TreatmentPoints {
		if tp.ID == "" {
			tp.ID = uuid.New().String()
		}
		rec.TreatmentPoints[i] = tp
	}
}

func (s *Service) Get(ctx context.Context, id string) (*MedicalRecord, error) {
	return s.records.Get(ctx, id)
}

// List returns records in stored order; an empty patientID lists all.
func (s *Service) List(ctx context.Context, patientID string) ([]MedicalRecord, error) {
	return s.records.List(ctx, patientID)
}

// History returns a patient's records, newest date first. Records whose
// date cannot be parsed come last in stored order.
func (s *Service) History(ctx context.Context, patientID string) ([]MedicalRecord, error) {
	recs, err := s.records.List(ctx, patientID)
	if err != nil {
		return nil, err
	}
	SortByDateDesc(recs)
	return recs, nil
}

func SortByDateDesc(recs []MedicalRecord) {
	keys := make(map[string]time.Time, len(recs))
	for _, r := range recs {
		if t, err := docstore.ParseTime(r.Date); err == nil {
			keys[r.ID] = t
		}
	}
	sort.SliceStable(recs, func(i, j int) bool {
		ti, iok := keys[recs[i].ID]
		tj, jok := keys[recs[j].ID]
		if iok != jok {
			return iok
		}
		return ti.After(tj)
	})
}

// Update replaces the editable fields. The id, patient and createdAt are
// kept.
func (s *Service) Update(ctx context.Context, id string, cmd Command) (*MedicalRecord, error) {
	cur, err := s.records.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	cmd.PatientID = cur.PatientID
	if err := s.validate.Struct(cmd); err != nil {
		return nil, err
	}
	return s.records.Modify(ctx, id, func(rec *MedicalRecord) error {
		s.apply(rec, cmd)
		return nil
	})
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.records.Delete(ctx, id)
}

// Patient returns the patient of rec, or nil for an orphaned record.
func (s *Service) Patient(ctx context.Context, rec *MedicalRecord) (*patient.Patient, error) {
	p, err := s.patients.Get(ctx, rec.PatientID)
	if errors.Is(err, patient.ErrNotFound) {
		return nil, nil
	}
	return p, err
}
