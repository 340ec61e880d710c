package record

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medvault/medvault/internal/domain/patient"
	"github.com/medvault/medvault/internal/platform/pdf"
	"github.com/medvault/medvault/internal/platform/validation"
	"github.com/medvault/medvault/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients/:id/records", h.PatientHistory)
	api.POST("/patients/:id/records", h.CreateRecord)
	api.GET("/patients/:id/records/:recordId/pdf", h.RecordPDF)
	api.GET("/records", h.ListRecords)
	api.GET("/records/:id", h.GetRecord)
	api.PUT("/records/:id", h.UpdateRecord)
	api.DELETE("/records/:id", h.DeleteRecord)
}

func httpError(c echo.Context, err error) error {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"errors": verrs})
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "medical record not found")
	case errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) PatientHistory(c echo.Context) error {
	recs, err := h.svc.History(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, pagination.Page(recs, pagination.FromContext(c)))
}

func (h *Handler) ListRecords(c echo.Context) error {
	recs, err := h.svc.List(c.Request().Context(), c.QueryParam("patientId"))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, pagination.Page(recs, pagination.FromContext(c)))
}

func (h *Handler) CreateRecord(c echo.Context) error {
	var cmd Command
	if err := c.Bind(&cmd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.Create(c.Request().Context(), c.Param("id"), cmd)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) GetRecord(c echo.Context) error {
	rec, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) UpdateRecord(c echo.Context) error {
	var cmd Command
	if err := c.Bind(&cmd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.Update(c.Request().Context(), c.Param("id"), cmd)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) DeleteRecord(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RecordPDF(c echo.Context) error {
	ctx := c.Request().Context()
	rec, err := h.svc.Get(ctx, c.Param("recordId"))
	if err != nil {
		return httpError(c, err)
	}
	if rec.PatientID != c.Param("id") {
		return httpError(c, ErrNotFound)
	}
	p, err := h.svc.Patient(ctx, rec)
	if err != nil {
		return httpError(c, err)
	}

	var buf bytes.Buffer
	if err := pdf.RenderRecord(&buf, patient.PDFPatient(p), pdfRecord(rec)); err != nil {
		return httpError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", "record-"+rec.ID+".pdf"))
	return c.Blob(http.StatusOK, "application/pdf", buf.Bytes())
}

func pdfRecord(rec *MedicalRecord) pdf.Record {
	out := pdf.Record{
		ID:           rec.ID,
		Date:         rec.Date,
		Type:         rec.Type,
		Provider:     rec.Provider,
		Complaint:    rec.Complaint,
		Diagnosis:    rec.Diagnosis,
		Treatment:    rec.Treatment,
		Notes:        rec.Notes,
		FollowUpDate: rec.FollowUpDate,
		Aftercare:    rec.Aftercare,
	}
	for _, m := range rec.Medications {
		out.Medications = append(out.Medications, pdf.Medication{
			ProductName: m.ProductName,
			GenericName: m.GenericName,
			Dosage:      m.Dosage,
			Batch:       m.Batch,
			ExpiryDate:  m.ExpiryDate,
		})
	}
	for _, tp := range rec.TreatmentPoints {
		out.TreatmentPoints = append(out.TreatmentPoints, pdf.TreatmentPoint{
			Area:  tp.Area,
			Units: tp.Units,
			X:     tp.Coordinates.X,
			Y:     tp.Coordinates.Y,
		})
	}
	return out
}
