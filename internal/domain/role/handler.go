package role

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, guard func(permission string) echo.MiddlewareFunc) {
	read := guard("roles.read")
	manage := guard("roles.manage")

	api.GET("/roles", h.ListRoles, read)
	api.GET("/roles/:id", h.GetRole, read)
	api.POST("/roles", h.CreateRole, manage)
	api.POST("/roles/:id/permissions", h.AssignPermissions, manage)
	api.DELETE("/roles/:id/permissions", h.RemovePermissions, manage)

	api.GET("/principals/:principalId/roles", h.PrincipalRoles, read)
	api.POST("/principals/:principalId/roles/:id", h.AssignRole, manage)
	api.DELETE("/principals/:principalId/roles/:id", h.RemoveRole, manage)
	api.POST("/principals/:principalId/permissions", h.GrantDirect, manage)
	api.DELETE("/principals/:principalId/permissions", h.RevokeDirect, manage)
}

type createRoleRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

type permissionsRequest struct {
	Permissions []string `json:"permissions"`
}

type directGrantRequest struct {
	Permission string `json:"permission"`
}

func (h *Handler) CreateRole(c echo.Context) error {
	var req createRoleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	r, err := h.svc.CreateRole(c.Request().Context(), req.Name, req.Description, req.Permissions)
	if err != nil {
		return mapRoleError(err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) GetRole(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid role id")
	}
	r, err := h.svc.GetRole(c.Request().Context(), id)
	if err != nil {
		return mapRoleError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) ListRoles(c echo.Context) error {
	roles, err := h.svc.ListRoles(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "list roles failed")
	}
	return c.JSON(http.StatusOK, roles)
}

func (h *Handler) AssignPermissions(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid role id")
	}
	var req permissionsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	r, err := h.svc.AssignPermissions(c.Request().Context(), id, req.Permissions)
	if err != nil {
		return mapRoleError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) RemovePermissions(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid role id")
	}
	var req permissionsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	r, err := h.svc.RemovePermissions(c.Request().Context(), id, req.Permissions)
	if err != nil {
		return mapRoleError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) PrincipalRoles(c echo.Context) error {
	principalID, err := uuid.Parse(c.Param("principalId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid principal id")
	}
	roles, err := h.svc.PrincipalRoles(c.Request().Context(), principalID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "list principal roles failed")
	}
	return c.JSON(http.StatusOK, roles)
}

func (h *Handler) AssignRole(c echo.Context) error {
	principalID, err := uuid.Parse(c.Param("principalId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid principal id")
	}
	roleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid role id")
	}
	if err := h.svc.AssignRole(c.Request().Context(), principalID, roleID); err != nil {
		return mapRoleError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RemoveRole(c echo.Context) error {
	principalID, err := uuid.Parse(c.Param("principalId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid principal id")
	}
	roleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid role id")
	}
	if err := h.svc.RemoveRole(c.Request().Context(), principalID, roleID); err != nil {
		return mapRoleError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GrantDirect(c echo.Context) error {
	principalID, err := uuid.Parse(c.Param("principalId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid principal id")
	}
	var req directGrantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.GrantDirect(c.Request().Context(), principalID, req.Permission); err != nil {
		return mapRoleError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RevokeDirect(c echo.Context) error {
	principalID, err := uuid.Parse(c.Param("principalId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid principal id")
	}
	var req directGrantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.RevokeDirect(c.Request().Context(), principalID, req.Permission); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "revoke failed")
	}
	return c.NoContent(http.StatusNoContent)
}

func mapRoleError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "role not found")
	case errors.Is(err, ErrDuplicateRole):
		return echo.NewHTTPError(http.StatusConflict, "role name already exists")
	case errors.Is(err, ErrUnknownPermission):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "role operation failed")
	}
}
