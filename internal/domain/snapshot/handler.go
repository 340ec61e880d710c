package snapshot

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
	now func() time.Time
}

func NewHandler(svc *Service, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{svc: svc, now: now}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/export", h.Export)
	api.POST("/import", h.Import)
	api.DELETE("/data", h.Clear)
}

func (h *Handler) Export(c echo.Context) error {
	snap, err := h.svc.Export(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	name := fmt.Sprintf("medvault-export-%s.json", h.now().Format("2006-01-02"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.JSON(http.StatusOK, snap)
}

func (h *Handler) Import(c echo.Context) error {
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.Import(c.Request().Context(), payload)
	if errors.Is(err, ErrInvalidFormat) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Clear(c echo.Context) error {
	if err := h.svc.Clear(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
