package assessment

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/soulsalutte/clinic/internal/platform/apperr"
	"github.com/soulsalutte/clinic/internal/platform/auth"
	"github.com/soulsalutte/clinic/pkg/localtime"
)

type Handler struct {
	svc *Service
	loc *time.Location
}

func NewHandler(svc *Service, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{svc: svc, loc: loc}
}

// RegisterRoutes mounts the assessment endpoints. Clinical records are
// restricted to physiotherapists.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	clinical := api.Group("/avaliacoes", auth.RequireRole(auth.RolePhysio))
	clinical.GET("", h.List)
	clinical.GET("/cliente/:clienteId", h.ListByPatient)
	clinical.GET("/:id", h.Get)
	clinical.POST("", h.Create)
	clinical.PUT("/:id", h.Update)
	clinical.DELETE("/:id", h.Delete)
	clinical.POST("/:id/evolucoes", h.AppendProgressNote)
}

func parseID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func (h *Handler) List(c echo.Context) error {
	items, err := h.svc.List(c.Request().Context())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, items)
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
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Create(c echo.Context) error {
	var a Assessment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a.ID = 0
	if err := h.svc.Create(c.Request().Context(), &a); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var a Assessment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a.ID = id
	if err := h.svc.Update(c.Request().Context(), &a); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type noteRequest struct {
	Text string `json:"evolucao"`
	At   string `json:"dataEvolucao"`
}

func (h *Handler) AppendProgressNote(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req noteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	var at time.Time
	if req.At != "" {
		if at, err = localtime.Parse(req.At, h.loc); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "dataEvolucao: "+err.Error())
		}
	}
	a, err := h.svc.AppendProgressNote(c.Request().Context(), id, req.Text, at)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, a)
}
