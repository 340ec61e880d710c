package appointment

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

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
	api.GET("/appointments", h.ListAppointments)
	api.POST("/appointments", h.CreateAppointment)
	api.GET("/appointments/:id", h.GetAppointment)
	api.PUT("/appointments/:id", h.UpdateAppointment)
	api.DELETE("/appointments/:id", h.DeleteAppointment)
	api.GET("/patients/:id/appointments", h.PatientAppointments)
}

func httpError(c echo.Context, err error) error {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"errors": verrs})
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	case errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) ListAppointments(c echo.Context) error {
	appts, err := h.svc.List(c.Request().Context(), c.QueryParam("patientId"))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, pagination.Page(appts, pagination.FromContext(c)))
}

func (h *Handler) PatientAppointments(c echo.Context) error {
	appts, err := h.svc.History(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, pagination.Page(appts, pagination.FromContext(c)))
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	var cmd Command
	if err := c.Bind(&cmd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.Create(c.Request().Context(), cmd)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	a, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	var cmd Command
	if err := c.Bind(&cmd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.Update(c.Request().Context(), c.Param("id"), cmd)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) DeleteAppointment(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
