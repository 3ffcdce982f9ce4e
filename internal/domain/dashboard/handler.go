package dashboard

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/soulsalutte/clinic/internal/domain/scheduling"
	"github.com/soulsalutte/clinic/internal/platform/apperr"
	"github.com/soulsalutte/clinic/internal/platform/auth"
)

type SessionSource interface {
	List(ctx context.Context) ([]*scheduling.Session, error)
}

type PatientCounter interface {
	Count(ctx context.Context) (int, error)
}

type Handler struct {
	sessions SessionSource
	patients PatientCounter
	loc      *time.Location
	now      func() time.Time
}

func NewHandler(sessions SessionSource, patients PatientCounter, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{sessions: sessions, patients: patients, loc: loc, now: time.Now}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/dashboard", auth.RequireRole(auth.RolePhysio, auth.RoleReceptionist))
	g.GET("/estatisticas", h.Stats)
}

func (h *Handler) Stats(c echo.Context) error {
	ctx := c.Request().Context()
	sessions, err := h.sessions.List(ctx)
	if err != nil {
		return apperr.HTTP(err)
	}
	st := Compute(sessions, h.now(), h.loc)
	if h.patients != nil {
		if st.TotalPatients, err = h.patients.Count(ctx); err != nil {
			return apperr.HTTP(err)
		}
	}
	return c.JSON(http.StatusOK, st)
}
