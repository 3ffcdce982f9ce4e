package export

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/soulsalutte/clinic/internal/platform/apperr"
	"github.com/soulsalutte/clinic/internal/platform/auth"
)

type Handler struct {
	exporter *Exporter
}

func NewHandler(exporter *Exporter) *Handler {
	return &Handler{exporter: exporter}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/avaliacoes/:id/pdf", h.Download, auth.RequireRole(auth.RolePhysio))
}

func (h *Handler) Download(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	f, err := h.exporter.Export(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%q; filename*=UTF-8''%s`, f.Name, url.PathEscape(f.Name)))
	return c.Blob(http.StatusOK, "application/pdf", f.Content)
}
