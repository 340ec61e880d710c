// Package pdf renders medical records and consent forms as A4 documents.
package pdf

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"io"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Patient is the patient block printed on every document. A nil *Patient
// prints as unknown.
type Patient struct {
	ID      string
	Name    string
	DOB     string
	Gender  string
	Email   string
	Phone   string
	Address string
}

type Medication struct {
	ProductName string
	GenericName string
	Dosage      string
	Batch       string
	ExpiryDate  string
}

type TreatmentPoint struct {
	Area  string
	Units int
	X, Y  float64
}

type Record struct {
	ID              string
	Date            string
	Type            string
	Provider        string
	Complaint       string
	Diagnosis       string
	Treatment       string
	Notes           string
	FollowUpDate    string
	Medications     []Medication
	Aftercare       []string
	TreatmentPoints []TreatmentPoint
}

type Consent struct {
	Location      string
	Date          string
	PatientName   string
	SignedAt      string
	AgreementText string
	// Signature is a data URL or bare base64 PNG.
	Signature string
}

const (
	title     = "MedVault"
	font      = "Arial"
	labelW    = 45.0
	lineH     = 7.0
	signature = "signature"
)

type document struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

func newDocument(heading string) *document {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetTitle(heading, true)
	pdf.SetCreator(title, true)
	pdf.AddPage()

	d := &document{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	pdf.SetFont(font, "B", 16)
	pdf.SetTextColor(40, 40, 110)
	pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
	pdf.SetFont(font, "B", 13)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 9, d.tr(heading), "B", 1, "C", false, 0, "")
	pdf.Ln(3)
	return d
}

func (d *document) section(name string) {
	d.pdf.Ln(2)
	d.pdf.SetFont(font, "B", 12)
	d.pdf.SetFillColor(230, 230, 240)
	d.pdf.CellFormat(0, 8, d.tr(name), "", 1, "L", true, 0, "")
	d.pdf.Ln(1)
}

func (d *document) detail(label, value string) {
	if value == "" {
		value = "-"
	}
	d.pdf.SetFont(font, "B", 10)
	d.pdf.CellFormat(labelW, lineH, d.tr(label), "", 0, "", false, 0, "")
	d.pdf.SetFont(font, "", 10)
	d.pdf.MultiCell(0, lineH, d.tr(value), "", "L", false)
}

func (d *document) text(s string) {
	d.pdf.SetFont(font, "", 10)
	d.pdf.MultiCell(0, 5, d.tr(s), "", "L", false)
}

func (d *document) patient(p *Patient) {
	d.section("Patient")
	if p == nil {
		d.text("Unknown patient (the referenced patient no longer exists).")
		return
	}
	d.detail("Patient ID", p.ID)
	d.detail("Name", p.Name)
	d.detail("Date of birth", p.DOB)
	d.detail("Gender", p.Gender)
	d.detail("Email", p.Email)
	d.detail("Phone", p.Phone)
	d.detail("Address", p.Address)
}

func (d *document) output(w io.Writer) error {
	if err := d.pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	if err := d.pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// RenderRecord writes a medical record report for p.
func RenderRecord(w io.Writer, p *Patient, r Record) error {
	d := newDocument("Medical Record")
	d.patient(p)

	d.section("Record")
	d.detail("Date", r.Date)
	d.detail("Type", r.Type)
	d.detail("Provider", r.Provider)
	d.detail("Chief complaint", r.Complaint)
	d.detail("Diagnosis", r.Diagnosis)
	d.detail("Treatment", r.Treatment)
	if r.FollowUpDate != "" {
		d.detail("Follow-up", r.FollowUpDate)
	}
	if r.Notes != "" {
		d.detail("Notes", r.Notes)
	}

	if len(r.Medications) > 0 {
		d.section("Medications")
		d.medications(r.Medications)
	}

	if len(r.TreatmentPoints) > 0 {
		d.section("Treatment points")
		total := 0
		for _, tp := range r.TreatmentPoints {
			total += tp.Units
			d.detail(tp.Area, fmt.Sprintf("%d units at (%s%%, %s%%)", tp.Units, num(tp.X), num(tp.Y)))
		}
		d.detail("Total units", strconv.Itoa(total))
	}

	if len(r.Aftercare) > 0 {
		d.section("Aftercare")
		for _, a := range r.Aftercare {
			d.text("- " + a)
		}
	}

	return d.output(w)
}

func (d *document) medications(meds []Medication) {
	widths := []float64{45, 40, 30, 30, 35}
	headers := []string{"Product", "Generic", "Dosage", "Batch", "Expiry"}

	d.pdf.SetFont(font, "B", 9)
	d.pdf.SetFillColor(240, 240, 240)
	for i, h := range headers {
		d.pdf.CellFormat(widths[i], lineH, h, "1", 0, "", true, 0, "")
	}
	d.pdf.Ln(-1)

	d.pdf.SetFont(font, "", 9)
	for _, m := range meds {
		cells := []string{m.ProductName, m.GenericName, m.Dosage, m.Batch, m.ExpiryDate}
		for i, c := range cells {
			d.pdf.CellFormat(widths[i], lineH, d.tr(c), "1", 0, "", false, 0, "")
		}
		d.pdf.Ln(-1)
	}
}

// RenderConsent writes the signed consent form of p.
func RenderConsent(w io.Writer, p *Patient, c Consent) error {
	d := newDocument("Treatment Consent Form")
	d.patient(p)

	d.section("Agreement")
	d.text(c.AgreementText)
	d.pdf.Ln(2)
	d.detail("Patient name", c.PatientName)
	d.detail("Location", c.Location)
	d.detail("Date", c.Date)
	d.detail("Signed at", c.SignedAt)

	d.section("Signature")
	if img, ok := decodeSignature(c.Signature); ok {
		opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
		d.pdf.RegisterImageOptionsReader(signature, opts, bytes.NewReader(img))
		d.pdf.ImageOptions(signature, d.pdf.GetX(), d.pdf.GetY(), 60, 0, true, opts, 0, "")
	} else {
		d.text("Signature on file.")
	}

	return d.output(w)
}

// decodeSignature extracts PNG bytes from a data URL or bare base64 string.
// Anything that does not decode to a PNG is rejected.
func decodeSignature(s string) ([]byte, bool) {
	if s == "" {
		return nil, false
	}
	if i := strings.Index(s, ","); strings.HasPrefix(s, "data:") && i >= 0 {
		s = s[i+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, false
	}
	if _, err := png.DecodeConfig(bytes.NewReader(raw)); err != nil {
		return nil, false
	}
	return raw, true
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
