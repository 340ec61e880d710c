package appointment

import "errors"

type Type string

const (
	TypeConsultation Type = "Consultation"
	TypeTreatment    Type = "Treatment"
	TypeFollowUp     Type = "Follow-up"
)

type Status string

const (
	StatusScheduled Status = "Scheduled"
	StatusCompleted Status = "Completed"
	// StatusCancelled is a valid stored value; no operation produces it.
	StatusCancelled Status = "Cancelled"
)

// Appointment is stored in the appointments collection. Title is derived
// from the patient's name whenever the appointment is saved; renaming the
// patient does not touch it.
type Appointment struct {
	ID        string `json:"id"`
	PatientID string `json:"patientId"`
	Title     string `json:"title"`
	Type      Type   `json:"type"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Notes     string `json:"notes,omitempty"`
	Status    Status `json:"status"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// Command creates or edits an appointment. End may be omitted when
// DurationMinutes is given.
type Command struct {
	PatientID       string `json:"patientId" validate:"required"`
	Type            Type   `json:"type" validate:"oneof=Consultation Treatment Follow-up"`
	Start           string `json:"start" validate:"required,rfc3339"`
	End             string `json:"end" validate:"required,rfc3339"`
	DurationMinutes int    `json:"durationMinutes" validate:"gte=0,lte=1440"`
	Notes           string `json:"notes"`
}

var (
	ErrNotFound        = errors.New("appointment not found")
	ErrPatientNotFound = errors.New("referenced patient does not exist")
)
