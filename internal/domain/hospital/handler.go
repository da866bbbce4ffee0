package hospital

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mysehat/consent/internal/platform/auth"
)

type Handler struct {
	registry *Registry
}

func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/hospital-consents", h.ListConsents)
	api.GET("/hospital-consents/active", h.ListActiveConsents)
	api.POST("/hospital-consents", h.GrantConsent)
	api.DELETE("/hospital-consents/:id", h.RevokeConsent)
	api.DELETE("/hospital-consents", h.RevokeAll)
	api.GET("/hospital-consents/check", h.CheckAccess)
}

func (h *Handler) service(c echo.Context) (*Service, error) {
	uid := auth.UserIDFromContext(c.Request().Context())
	if uid == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "no user in request")
	}
	return h.registry.Service(uid), nil
}

func (h *Handler) ListConsents(c echo.Context) error {
	svc, err := h.service(c)
	if err != nil {
		return err
	}
	consents, err := svc.Consents(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, consents)
}

func (h *Handler) ListActiveConsents(c echo.Context) error {
	svc, err := h.service(c)
	if err != nil {
		return err
	}
	consents, err := svc.ActiveConsents(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, consents)
}

func (h *Handler) GrantConsent(c echo.Context) error {
	svc, err := h.service(c)
	if err != nil {
		return err
	}
	var req struct {
		HospitalID       string             `json:"hospital_id"`
		HospitalName     string             `json:"hospital_name"`
		Resources        []ResourceCategory `json:"resources"`
		ExpiresIn        *int64             `json:"expires_in_seconds"`
		EmergencyEventID string             `json:"emergency_event_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	params := GrantParams{
		HospitalID:       req.HospitalID,
		HospitalName:     req.HospitalName,
		Resources:        req.Resources,
		EmergencyEventID: req.EmergencyEventID,
	}
	if req.ExpiresIn != nil {
		if *req.ExpiresIn <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "expires_in_seconds must be positive")
		}
		d := time.Duration(*req.ExpiresIn) * time.Second
		params.ExpiresAfter = &d
	}

	consent, err := svc.Grant(c.Request().Context(), params)
	if err != nil {
		if errors.Is(err, ErrNoHospital) || errors.Is(err, ErrNoResources) || errors.Is(err, ErrBadResource) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, consent)
}

func (h *Handler) RevokeConsent(c echo.Context) error {
	svc, err := h.service(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := svc.Revoke(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "hospital consent not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RevokeAll(c echo.Context) error {
	svc, err := h.service(c)
	if err != nil {
		return err
	}
	revoked, err := svc.RevokeAll(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int{"revoked": revoked})
}

func (h *Handler) CheckAccess(c echo.Context) error {
	svc, err := h.service(c)
	if err != nil {
		return err
	}
	hospitalID := c.QueryParam("hospital_id")
	resource := ResourceCategory(c.QueryParam("resource"))
	if hospitalID == "" || resource == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "hospital_id and resource are required")
	}
	if !resource.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown resource category")
	}
	allowed, err := svc.CheckAccess(c.Request().Context(), hospitalID, resource)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"hospital_id": hospitalID,
		"resource":    resource,
		"allowed":     allowed,
	})
}
