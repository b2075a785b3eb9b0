package permission

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the catalog endpoints. The guard factory wraps
// each route with an authorization check for the named permission.
func (h *Handler) RegisterRoutes(api *echo.Group, guard func(permission string) echo.MiddlewareFunc) {
	api.GET("/permissions", h.ListPermissions, guard("permissions.read"))
	api.POST("/permissions", h.EnsurePermissions, guard("permissions.manage"))
}

type ensureRequest struct {
	Names []string `json:"names"`
}

func (h *Handler) ListPermissions(c echo.Context) error {
	perms, err := h.svc.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "list permissions failed")
	}
	return c.JSON(http.StatusOK, perms)
}

func (h *Handler) EnsurePermissions(c echo.Context) error {
	var req ensureRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Names) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "at least one permission name is required")
	}
	perms, err := h.svc.Ensure(c.Request().Context(), req.Names...)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "ensure permissions failed")
	}
	return c.JSON(http.StatusOK, perms)
}
