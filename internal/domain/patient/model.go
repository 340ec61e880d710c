package patient

import (
	"errors"
	"strings"
)

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

// Patient is stored in the patients collection. ID has the form YYYY-NNN
// and never changes after creation.
type Patient struct {
	ID          string       `json:"id"`
	FirstName   string       `json:"firstName"`
	LastName    string       `json:"lastName"`
	Initials    string       `json:"initials"`
	DOB         string       `json:"dob"`
	Gender      Gender       `json:"gender"`
	Email       string       `json:"email"`
	Phone       string       `json:"phone"`
	Address     string       `json:"address"`
	ConsentForm *ConsentForm `json:"consentForm,omitempty"`
	CreatedAt   string       `json:"createdAt"`
	UpdatedAt   string       `json:"updatedAt"`
}

// ConsentForm is embedded in its patient. AgreementText is frozen at signing.
type ConsentForm struct {
	ID            string `json:"id"`
	SignedAt      string `json:"signedAt"`
	Location      string `json:"location"`
	Date          string `json:"date"`
	PatientName   string `json:"patientName"`
	Signature     string `json:"signature"`
	AgreementText string `json:"agreementText"`
}

// FullName returns "First Last".
func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Command carries the editable fields of a patient for create and update.
type Command struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Initials  string `json:"initials" validate:"required"`
	DOB       string `json:"dob" validate:"required"`
	Gender    Gender `json:"gender" validate:"oneof=Male Female Other"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required"`
	Address   string `json:"address" validate:"required"`
}

func (c *Command) apply(p *Patient) {
	p.FirstName = c.FirstName
	p.LastName = c.LastName
	p.Initials = c.Initials
	p.DOB = c.DOB
	p.Gender = c.Gender
	p.Email = c.Email
	p.Phone = c.Phone
	p.Address = c.Address
}

// SignConsentCommand records a signed consent form. Location, Date and
// PatientName are free text as entered on the form.
type SignConsentCommand struct {
	Location    string `json:"location"`
	Date        string `json:"date"`
	PatientName string `json:"patientName"`
	Signature   string `json:"signature" validate:"required"`
}

// DeletePolicy decides what happens to a patient's records and
// appointments when the patient is deleted.
type DeletePolicy string

const (
	// PolicyOrphan leaves children in place.
	PolicyOrphan DeletePolicy = "orphan"
	// PolicyCascade deletes children first.
	PolicyCascade DeletePolicy = "cascade"
	// PolicyRestrict refuses while children exist.
	PolicyRestrict DeletePolicy = "restrict"
)

func ParseDeletePolicy(s string) (DeletePolicy, error) {
	switch p := DeletePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyOrphan, PolicyCascade, PolicyRestrict:
		return p, nil
	default:
		return "", ErrInvalidPolicy
	}
}

var (
	ErrNotFound         = errors.New("patient not found")
	ErrIDSpaceExhausted = errors.New("maximum patient IDs for this year reached")
	ErrHasDependents    = errors.New("patient has medical records or appointments")
	ErrInvalidPolicy    = errors.New("delete policy must be orphan, cascade or restrict")
)
