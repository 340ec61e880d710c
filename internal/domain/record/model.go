package record

import "errors"

// MedicalRecord is stored in the medical_records collection. PatientID is
// a plain reference; readers must tolerate records whose patient is gone.
type MedicalRecord struct {
	ID              string           `json:"id"`
	PatientID       string           `json:"patientId"`
	Date            string           `json:"date"`
	Type            string           `json:"type"`
	Provider        string           `json:"provider"`
	Complaint       string           `json:"complaint"`
	Diagnosis       string           `json:"diagnosis"`
	Treatment       string           `json:"treatment"`
	Notes           string           `json:"notes"`
	FollowUpDate    string           `json:"followUpDate,omitempty"`
	Medications     []Medication     `json:"medications"`
	Aftercare       []string         `json:"aftercare"`
	Images          []RecordImage    `json:"images"`
	TreatmentPoints []TreatmentPoint `json:"treatmentPoints"`
	CreatedAt       string           `json:"createdAt"`
	UpdatedAt       string           `json:"updatedAt"`
}

type Medication struct {
	ID          string `json:"id"`
	ProductName string `json:"productName" validate:"required"`
	GenericName string `json:"genericName" validate:"required"`
	Dosage      string `json:"dosage" validate:"required"`
	Batch       string `json:"batch" validate:"required"`
	ExpiryDate  string `json:"expiryDate" validate:"required"`
}

type ImageType string

const (
	ImageBefore ImageType = "Before"
	ImageAfter  ImageType = "After"
)

type RecordImage struct {
	ID         string    `json:"id"`
	Type       ImageType `json:"type" validate:"oneof=Before After"`
	URL        string    `json:"url" validate:"required"`
	UploadedAt string    `json:"uploadedAt"`
}

type Coordinates struct {
	X float64 `json:"x" validate:"gte=0,lte=100"`
	Y float64 `json:"y" validate:"gte=0,lte=100"`
}

type TreatmentPoint struct {
	ID          string      `json:"id"`
	Area        string      `json:"area" validate:"required"`
	Units       int         `json:"units" validate:"gte=1,lte=12"`
	Coordinates Coordinates `json:"coordinates"`
}

// Command carries the editable fields of a record for create and update.
type Command struct {
	PatientID       string           `json:"patientId" validate:"required"`
	Date            string           `json:"date" validate:"required"`
	Type            string           `json:"type" validate:"required"`
	Provider        string           `json:"provider" validate:"required"`
	Complaint       string           `json:"complaint" validate:"required"`
	Diagnosis       string           `json:"diagnosis" validate:"required"`
	Treatment       string           `json:"treatment" validate:"required"`
	Notes           string           `json:"notes"`
	FollowUpDate    string           `json:"followUpDate"`
	Medications     []Medication     `json:"medications" validate:"dive"`
	Aftercare       []string         `json:"aftercare"`
	Images          []RecordImage    `json:"images" validate:"dive"`
	TreatmentPoints []TreatmentPoint `json:"treatmentPoints" validate:"dive"`
}

var (
	ErrNotFound        = errors.New("medical record not found")
	ErrPatientNotFound = errors.New("referenced patient does not exist")
	ErrPatientRequired = errors.New("patient id is required")
)
