package aigov

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mysehat/consent/internal/domain/consent"
	"github.com/mysehat/consent/internal/platform/auth"
)

type Handler struct {
	registry *Registry
}

func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/ai/preferences", h.GetPreferences)
	api.POST("/ai/opt-in", h.OptIn)
	api.POST("/ai/opt-out", h.OptOut)
	api.GET("/ai/disclaimers", h.ListDisclaimers)
}

func (h *Handler) service(c echo.Context) (*Service, error) {
	uid := auth.UserIDFromContext(c.Request().Context())
	if uid == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "no user in request")
	}
	return h.registry.Service(uid), nil
}

func (h *Handler) GetPreferences(c echo.Context) error {
	svc, err := h.service(c)
	if err != nil {
		return err
	}
	prefs, err := svc.Preferences(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, prefs)
}

func (h *Handler) OptIn(c echo.Context) error {
	return h.setOptState(c, (*Service).OptIn)
}

func (h *Handler) OptOut(c echo.Context) error {
	return h.setOptState(c, (*Service).OptOut)
}

func (h *Handler) setOptState(c echo.Context, op func(s *Service, ctx context.Context, f Feature) error) error {
	svc, err := h.service(c)
	if err != nil {
		return err
	}
	var req struct {
		Feature Feature `json:"feature"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := op(svc, c.Request().Context(), req.Feature); err != nil {
		if errors.Is(err, ErrUnknownFeature) || errors.Is(err, consent.ErrInvalidCombination) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	prefs, err := svc.Preferences(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, prefs)
}

// ListDisclaimers returns the notice shown with each AI feature's output.
func (h *Handler) ListDisclaimers(c echo.Context) error {
	out := make(map[Feature]string, len(Features()))
	for _, f := range Features() {
		out[f] = f.Disclaimer()
	}
	return c.JSON(http.StatusOK, out)
}
