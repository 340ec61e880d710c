package patient

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

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
	api.GET("/patients", h.ListPatients)
	api.POST("/patients", h.CreatePatient)
	api.GET("/patients/:id", h.GetPatient)
	api.PUT("/patients/:id", h.UpdatePatient)
	api.DELETE("/patients/:id", h.DeletePatient)
	api.POST("/patients/:id/consent", h.SignConsent)
	api.DELETE("/patients/:id/consent", h.ClearConsent)
	api.GET("/patients/:id/consent/pdf", h.ConsentPDF)
	api.GET("/patients/:id/last-visit", h.LastVisit)
}

func httpError(c echo.Context, err error) error {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"errors": verrs})
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, ErrIDSpaceExhausted), errors.Is(err, ErrHasDependents):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidPolicy):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) ListPatients(c echo.Context) error {
	q := Query{Search: c.QueryParam("q"), Sort: c.QueryParam("sort")}
	patients, err := h.svc.List(c.Request().Context(), q)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, pagination.Page(patients, pagination.FromContext(c)))
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var cmd Command
	if err := c.Bind(&cmd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.Create(c.Request().Context(), cmd)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	p, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	var cmd Command
	if err := c.Bind(&cmd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.Update(c.Request().Context(), c.Param("id"), cmd)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	var policy DeletePolicy
	if raw := c.QueryParam("policy"); raw != "" {
		p, err := ParseDeletePolicy(raw)
		if err != nil {
			return httpError(c, err)
		}
		policy = p
	}
	if err := h.svc.Delete(c.Request().Context(), c.Param("id"), policy); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SignConsent(c echo.Context) error {
	var cmd SignConsentCommand
	if err := c.Bind(&cmd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.SignConsent(c.Request().Context(), c.Param("id"), cmd)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ClearConsent(c echo.Context) error {
	p, err := h.svc.ClearConsent(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ConsentPDF(c echo.Context) error {
	p, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(c, err)
	}
	if p.ConsentForm == nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient has no signed consent form")
	}

	cf := p.ConsentForm
	var buf bytes.Buffer
	err = pdf.RenderConsent(&buf, PDFPatient(p), pdf.Consent{
		Location:      cf.Location,
		Date:          cf.Date,
		PatientName:   cf.PatientName,
		SignedAt:      cf.SignedAt,
		AgreementText: cf.AgreementText,
		Signature:     cf.Signature,
	})
	if err != nil {
		return httpError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", "consent-"+p.ID+".pdf"))
	return c.Blob(http.StatusOK, "application/pdf", buf.Bytes())
}

func (h *Handler) LastVisit(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if _, err := h.svc.Get(ctx, id); err != nil {
		return httpError(c, err)
	}
	lv, err := h.svc.LastVisit(ctx, id)
	if err != nil {
		return httpError(c, err)
	}
	if lv == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, lv)
}

// PDFPatient maps p to the patient block of a PDF document. A nil patient
// maps to nil.
func PDFPatient(p *Patient) *pdf.Patient {
	if p == nil {
		return nil
	}
	return &pdf.Patient{
		ID:      p.ID,
		Name:    p.FullName(),
		DOB:     p.DOB,
		Gender:  string(p.Gender),
		Email:   p.Email,
		Phone:   p.Phone,
		Address: p.Address,
	}
}
