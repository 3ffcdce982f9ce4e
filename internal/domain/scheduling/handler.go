package scheduling

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/soulsalutte/clinic/internal/platform/apperr"
	"github.com/soulsalutte/clinic/internal/platform/auth"
	"github.com/soulsalutte/clinic/internal/platform/inflight"
	"github.com/soulsalutte/clinic/pkg/localtime"
)

// GuardKey names the in-flight hold for mutations of one session.
func GuardKey(id int64) string {
	return "session:" + strconv.FormatInt(id, 10)
}

type Handler struct {
	svc   *Service
	guard inflight.Guard
	loc   *time.Location
}

func NewHandler(svc *Service, guard inflight.Guard, loc *time.Location) *Handler {
	if guard == nil {
		guard = inflight.NewMemoryGuard()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{svc: svc, guard: guard, loc: loc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	staff := api.Group("/sessoes", auth.RequireRole(auth.RolePhysio, auth.RoleReceptionist))
	staff.GET("", h.List)
	staff.GET("/cliente/:clienteId", h.ListByPatient)
	staff.GET("/:id", h.Get)
	staff.POST("", h.Create)
	staff.PUT("/:id", h.Update)
	staff.DELETE("/:id", h.Delete)
	staff.PATCH("/:id/mover", h.Move)
	staff.PATCH("/:id/status", h.UpdateStatus)
}

func parseID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// guarded runs fn while holding the session's in-flight hold. A second
// mutation of the same session is refused, never queued.
func (h *Handler) guarded(ctx context.Context, id int64, fn func() (*Session, error)) (*Session, error) {
	release, err := h.guard.Acquire(ctx, GuardKey(id))
	if err != nil {
		return nil, err
	}
	defer release()
	return fn()
}

func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	from, to := c.QueryParam("inicio"), c.QueryParam("fim")

	var (
		items []*Session
		err   error
	)
	switch {
	case from == "" && to == "":
		items, err = h.svc.List(ctx)
	case from == "" || to == "":
		return echo.NewHTTPError(http.StatusBadRequest, "inicio and fim must be given together")
	default:
		start, perr := localtime.Parse(from, h.loc)
		if perr != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "inicio: "+perr.Error())
		}
		end, perr := localtime.ParseRangeEnd(to, h.loc)
		if perr != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "fim: "+perr.Error())
		}
		items, err = h.svc.ListByDateRange(ctx, start, end)
	}
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, ToWireList(items, h.loc))
}

func (h *Handler) ListByPatient(c echo.Context) error {
	patientID, err := parseID(c, "clienteId")
	if err != nil {
		return err
	}
	items, err := h.svc.ListByPatient(c.Request().Context(), patientID)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, ToWireList(items, h.loc))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	s, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, s.ToWire(h.loc))
}

func (h *Handler) bindSession(c echo.Context) (*Session, error) {
	var w Wire
	if err := c.Bind(&w); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	s, err := FromWire(w, h.loc)
	if err != nil {
		return nil, apperr.HTTP(err)
	}
	return s, nil
}

func (h *Handler) Create(c echo.Context) error {
	s, err := h.bindSession(c)
	if err != nil {
		return err
	}
	s.ID = 0
	if err := h.svc.Create(c.Request().Context(), s); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, s.ToWire(h.loc))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	s, err := h.bindSession(c)
	if err != nil {
		return err
	}
	s.ID = id
	_, err = h.guarded(c.Request().Context(), id, func() (*Session, error) {
		return s, h.svc.Update(c.Request().Context(), s)
	})
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, s.ToWire(h.loc))
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	_, err = h.guarded(c.Request().Context(), id, func() (*Session, error) {
		return nil, h.svc.Delete(c.Request().Context(), id)
	})
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type moveRequest struct {
	Start string `json:"dataHoraInicio"`
	End   string `json:"dataHoraFim"`
}

func (h *Handler) Move(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req moveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	start, err := localtime.Parse(req.Start, h.loc)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "dataHoraInicio: "+err.Error())
	}
	end, err := localtime.Parse(req.End, h.loc)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "dataHoraFim: "+err.Error())
	}

	ctx := c.Request().Context()
	s, err := h.guarded(ctx, id, func() (*Session, error) {
		return h.svc.Reschedule(ctx, id, start, end)
	})
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, s.ToWire(h.loc))
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	s, err := h.guarded(ctx, id, func() (*Session, error) {
		return h.svc.SetStatus(ctx, id, req.Status)
	})
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, s.ToWire(h.loc))
}
