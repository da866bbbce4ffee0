package audit

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mysehat/consent/internal/platform/auth"
	"github.com/mysehat/consent/pkg/pagination"
)

// Source resolves the audit log for a user. Satisfied by the consent
// registry, which owns the per-user log instances.
type Source interface {
	AuditLog(userID string) *Log
}

type Handler struct {
	source Source
}

func NewHandler(source Source) *Handler {
	return &Handler{source: source}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/audit", h.ListEntries)
}

// ListEntries returns the user's audit trail newest-first, paginated.
func (h *Handler) ListEntries(c echo.Context) error {
	uid := auth.UserIDFromContext(c.Request().Context())
	if uid == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "no user in request")
	}

	entries, err := h.source.AuditLog(uid).Entries(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	pg := pagination.FromContext(c)
	total := len(entries)
	page := paginate(entries, pg.Offset, pg.Limit)
	return c.JSON(http.StatusOK, pagination.NewResponse(page, total, pg))
}

func paginate(entries []Entry, offset, limit int) []Entry {
	if offset >= len(entries) {
		return []Entry{}
	}
	end := offset + limit
	if end > len(entries) {
		end = len(entries)
	}
	return entries[offset:end]
}
