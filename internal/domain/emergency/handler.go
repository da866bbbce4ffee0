package emergency

import (
	"errors"
	"net/http"

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
	api.GET("/emergency/config", h.GetConfig)
	api.PUT("/emergency/config", h.SetConfig)
	api.GET("/emergency/profile", h.GetProfile)
	api.PUT("/emergency/profile", h.SetProfile)
	api.POST("/emergency/packet", h.CreatePacket)
}

func (h *Handler) service(c echo.Context) (*Service, error) {
	uid := auth.UserIDFromContext(c.Request().Context())
	if uid == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "no user in request")
	}
	return h.registry.Service(uid), nil
}

func (h *Handler) GetConfig(c echo.Context) error {
	svc, err := h.service(c)
	if err != nil {
		return err
	}
	cfg, err := svc.Config(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, cfg)
}

func (h *Handler) SetConfig(c echo.Context) error {
	svc, err := h.service(c)
	if err != nil {
		return err
	}
	var cfg AccessConfig
	if err := c.Bind(&cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := svc.SetConfig(c.Request().Context(), cfg); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, cfg)
}

func (h *Handler) GetProfile(c echo.Context) error {
	svc, err := h.service(c)
	if err != nil {
		return err
	}
	profile, err := svc.Profile(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *Handler) SetProfile(c echo.Context) error {
	svc, err := h.service(c)
	if err != nil {
		return err
	}
	var profile Profile
	if err := c.Bind(&profile); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := svc.SetProfile(c.Request().Context(), profile); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *Handler) CreatePacket(c echo.Context) error {
	svc, err := h.service(c)
	if err != nil {
		return err
	}
	var req struct {
		Location  Location `json:"location"`
		Confirmed bool     `json:"confirmed"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	packet, err := svc.CreatePacket(c.Request().Context(), req.Location, req.Confirmed)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoConsent):
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		case errors.Is(err, ErrConfirmationRequired):
			return echo.NewHTTPError(http.StatusPreconditionRequired, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, packet)
}
