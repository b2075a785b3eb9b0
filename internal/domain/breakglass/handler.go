package breakglass

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medguard/medguard/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, guard func(permission string) echo.MiddlewareFunc) {
	manage := guard("breakglass.manage")

	api.POST("/break-glass", h.IssueGrant, manage)
	api.GET("/break-glass", h.ListActiveGrants, manage)
	api.DELETE("/break-glass/:id", h.ExpireGrant, manage)
}

type issueGrantRequest struct {
	PrincipalID   string `json:"principal_id"`
	Permission    string `json:"permission"`
	Scope         string `json:"scope"`
	Justification string `json:"justification"`
	TTLMinutes    int    `json:"ttl_minutes"`
}

func (h *Handler) IssueGrant(c echo.Context) error {
	actor, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusForbidden, "insufficient permission")
	}

	var req issueGrantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	principalID, err := uuid.Parse(req.PrincipalID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid principal_id")
	}

	issued, err := h.svc.Issue(c.Request().Context(), IssueRequest{
		PrincipalID:   principalID,
		Permission:    req.Permission,
		Scope:         req.Scope,
		Justification: req.Justification,
		TTL:           time.Duration(req.TTLMinutes) * time.Minute,
		IssuedBy:      actor,
		SourceIP:      c.RealIP(),
	})
	if err != nil {
		return mapIssueError(err)
	}
	return c.JSON(http.StatusCreated, issued)
}

func (h *Handler) ListActiveGrants(c echo.Context) error {
	var principalID *uuid.UUID
	if raw := c.QueryParam("principal_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid principal_id")
		}
		principalID = &id
	}

	grants, err := h.svc.ListActive(c.Request().Context(), principalID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "list grants failed")
	}
	return c.JSON(http.StatusOK, grants)
}

func (h *Handler) ExpireGrant(c echo.Context) error {
	actor, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusForbidden, "insufficient permission")
	}
	grantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid grant id")
	}

	revoked, err := h.svc.Expire(c.Request().Context(), grantID, actor, c.RealIP())
	if err != nil {
		switch {
		case errors.Is(err, ErrGrantNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "grant not found")
		case errors.Is(err, ErrAlreadyUsed):
			return echo.NewHTTPError(http.StatusConflict, "grant already consumed")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "revoke failed")
		}
	}
	return c.JSON(http.StatusOK, revoked)
}

func mapIssueError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidJustification),
		errors.Is(err, ErrInvalidPermission):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrRateLimited):
		return echo.NewHTTPError(http.StatusTooManyRequests, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "issue grant failed")
	}
}
