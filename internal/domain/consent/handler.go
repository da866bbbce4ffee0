package consent

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mysehat/consent/internal/domain/audit"
	"github.com/mysehat/consent/internal/platform/auth"
)

type Handler struct {
	registry *Registry
}

func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/consents", h.ListConsents)
	api.GET("/consents/check", h.CheckConsent)
	api.POST("/consents/grant", h.GrantConsent)
	api.POST("/consents/revoke", h.RevokeConsent)
	api.POST("/consents/access", h.LogAccess)
	api.GET("/my-data", h.ExportData)
	api.DELETE("/my-data", h.DeleteData)
}

func (h *Handler) manager(c echo.Context) (*Manager, error) {
	uid := auth.UserIDFromContext(c.Request().Context())
	if uid == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "no user in request")
	}
	return h.registry.Manager(uid), nil
}

type consentRequest struct {
	Category DataCategory `json:"category"`
	Purpose  Purpose      `json:"purpose"`
}

func (h *Handler) ListConsents(c echo.Context) error {
	m, err := h.manager(c)
	if err != nil {
		return err
	}
	records, err := m.Records(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"user_id":  m.UserID(),
		"consents": records,
	})
}

// CheckConsent answers the gate question over HTTP. A denied check is itself
// an auditable event: the caller attempted an access that consent does not
// cover.
func (h *Handler) CheckConsent(c echo.Context) error {
	m, err := h.manager(c)
	if err != nil {
		return err
	}
	category := DataCategory(c.QueryParam("category"))
	purpose := Purpose(c.QueryParam("purpose"))
	if category == "" || purpose == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "category and purpose are required")
	}
	if !IsValidCombination(category, purpose) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid category/purpose combination")
	}

	ctx := c.Request().Context()
	granted := m.HasConsent(ctx, category, purpose)
	if !granted {
		accessor := c.QueryParam("accessor")
		if accessor == "" {
			accessor = "api"
		}
		_ = m.LogDataAccess(ctx, audit.ActionAccessDenied, string(category), string(purpose), accessor, false)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"category": category,
		"purpose":  purpose,
		"granted":  granted,
	})
}

func (h *Handler) GrantConsent(c echo.Context) error {
	return h.mutateConsent(c, (*Manager).GrantConsent)
}

func (h *Handler) RevokeConsent(c echo.Context) error {
	return h.mutateConsent(c, (*Manager).RevokeConsent)
}

func (h *Handler) mutateConsent(c echo.Context, op func(m *Manager, ctx context.Context, category DataCategory, purpose Purpose) error) error {
	m, err := h.manager(c)
	if err != nil {
		return err
	}
	var req consentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := op(m, c.Request().Context(), req.Category, req.Purpose); err != nil {
		if isInvalidCombination(err) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	records, err := m.Records(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, records[RecordKey(req.Category, req.Purpose)])
}

func (h *Handler) LogAccess(c echo.Context) error {
	m, err := h.manager(c)
	if err != nil {
		return err
	}
	var req struct {
		Action   audit.Action `json:"action"`
		DataType string       `json:"data_type"`
		Purpose  string       `json:"purpose"`
		Accessor string       `json:"accessor"`
		Success  bool         `json:"success"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !req.Action.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown audit action")
	}
	if req.Accessor == "" {
		req.Accessor = "api"
	}
	if err := m.LogDataAccess(c.Request().Context(), req.Action, req.DataType, req.Purpose, req.Accessor, req.Success); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusCreated)
}

func (h *Handler) ExportData(c echo.Context) error {
	m, err := h.manager(c)
	if err != nil {
		return err
	}
	doc, err := m.ExportAllData(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, doc)
}

func (h *Handler) DeleteData(c echo.Context) error {
	m, err := h.manager(c)
	if err != nil {
		return err
	}
	if err := m.DeleteAllData(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "erased",
		"user_id": m.UserID(),
	})
}

func isInvalidCombination(err error) bool {
	return errors.Is(err, ErrInvalidCombination)
}
