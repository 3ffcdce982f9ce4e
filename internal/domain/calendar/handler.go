package calendar

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/soulsalutte/clinic/internal/domain/scheduling"
	"github.com/soulsalutte/clinic/internal/platform/apperr"
	"github.com/soulsalutte/clinic/internal/platform/auth"
	"github.com/soulsalutte/clinic/pkg/localtime"
)

type Handler struct {
	coord *Coordinator
	now   func() time.Time
}

func NewHandler(coord *Coordinator) *Handler {
	return &Handler{coord: coord, now: time.Now}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/agenda", auth.RequireRole(auth.RolePhysio, auth.RoleReceptionist))
	g.GET("", h.Grid)
	g.POST("/sessoes/:id/arrastar", h.Drag)
	g.POST("/sessoes/:id/redimensionar", h.Resize)
	g.POST("/sessoes/:id/status", h.ChangeStatus)
	g.POST("/slots", h.SelectSlot)
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// Grid renders the week or day containing ?data= (today when absent).
func (h *Handler) Grid(c echo.Context) error {
	loc := h.coord.loc
	view, err := ParseView(c.QueryParam("visao"))
	if err != nil {
		return apperr.HTTP(err)
	}
	anchor := h.now()
	if d := c.QueryParam("data"); d != "" {
		if anchor, err = localtime.ParseDate(d, loc); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "data must be YYYY-MM-DD")
		}
	}

	ctx := c.Request().Context()
	w := NewWindow(anchor, view, loc)
	sessions, err := h.coord.store.ListByDateRange(ctx, w.Start, w.End)
	if err != nil {
		return apperr.HTTP(err)
	}
	ids := make([]int64, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID
	}
	busy := h.coord.BusySet(ctx, ids)
	board := NewBoard(Confirmed, sessions)
	return c.JSON(http.StatusOK, board.Grid(w, func(id int64) bool {
		return busy[id]
	}, loc))
}

type snapshotResponse struct {
	Start  string `json:"dataHoraInicio"`
	End    string `json:"dataHoraFim"`
	Status string `json:"status"`
}

type outcomeResponse struct {
	GestureID         string           `json:"gestoId"`
	Kind              Kind             `json:"tipo"`
	Phase             Phase            `json:"fase"`
	Session           scheduling.Wire  `json:"sessao"`
	Prior             snapshotResponse `json:"anterior"`
	Message           string           `json:"mensagem"`
	CloseQuickActions bool             `json:"fecharAcoesRapidas"`
}

// respond writes a settled gesture. Rolled-back gestures keep the status
// code of their cause and still carry the record to restore.
func (h *Handler) respond(c echo.Context, out *Outcome, err error) error {
	if out == nil {
		return apperr.HTTP(err)
	}
	loc := h.coord.loc
	body := outcomeResponse{
		GestureID: out.Gesture.ID,
		Kind:      out.Gesture.Kind,
		Phase:     out.Gesture.Phase,
		Session:   out.Session.ToWire(loc),
		Prior: snapshotResponse{
			Start:  localtime.Format(out.Gesture.Prior.Start, loc),
			End:    localtime.Format(out.Gesture.Prior.End, loc),
			Status: string(out.Gesture.Prior.Status),
		},
		Message:           out.Message,
		CloseQuickActions: out.CloseQuickActions,
	}
	if err != nil {
		return c.JSON(apperr.Status(err), body)
	}
	return c.JSON(http.StatusOK, body)
}

type timeRequest struct {
	Start string `json:"inicio"`
	End   string `json:"fim"`
}

func (h *Handler) bindTime(c echo.Context, field string) (time.Time, error) {
	var req timeRequest
	if err := c.Bind(&req); err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	raw := req.Start
	if field == "fim" {
		raw = req.End
	}
	t, err := localtime.Parse(raw, h.coord.loc)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, field+": "+err.Error())
	}
	return t, nil
}

func (h *Handler) Drag(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	drop, err := h.bindTime(c, "inicio")
	if err != nil {
		return err
	}
	out, err := h.coord.Drag(c.Request().Context(), id, drop)
	return h.respond(c, out, err)
}

func (h *Handler) Resize(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	end, err := h.bindTime(c, "fim")
	if err != nil {
		return err
	}
	out, err := h.coord.Resize(c.Request().Context(), id, end)
	return h.respond(c, out, err)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) ChangeStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	out, err := h.coord.ChangeStatus(c.Request().Context(), id, req.Status)
	return h.respond(c, out, err)
}

type slotResponse struct {
	Start string `json:"inicio"`
	End   string `json:"fim"`
}

// SelectSlot answers an empty-slot click with the new-session hint.
func (h *Handler) SelectSlot(c echo.Context) error {
	at, err := h.bindTime(c, "inicio")
	if err != nil {
		return err
	}
	hint, err := SelectSlot(at, h.coord.loc)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, slotResponse{
		Start: localtime.Format(hint.Start, h.coord.loc),
		End:   localtime.Format(hint.End, h.coord.loc),
	})
}
