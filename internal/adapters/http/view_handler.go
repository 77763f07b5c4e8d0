package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskdeck/core/internal/application/services"
	"github.com/taskdeck/core/internal/infrastructure/logger"
	"github.com/taskdeck/core/internal/ports"
)

// ViewHandler serves the derived task view and the remembered view
// preferences.
type ViewHandler struct {
	viewService *services.ViewService
	logger      *logger.Logger
}

// NewViewHandler creates a new view handler
func NewViewHandler(viewService *services.ViewService, logger *logger.Logger) *ViewHandler {
	return &ViewHandler{
		viewService: viewService,
		logger:      logger,
	}
}

// GetView handles building the filtered, sorted task view
func (h *ViewHandler) GetView(c echo.Context) error {
	query := ports.ViewQuery{
		Search:   c.QueryParam("search"),
		Status:   ports.StatusFilter(c.QueryParam("status")),
		Priority: ports.PriorityFilter(c.QueryParam("priority")),
		Sort:     ports.SortKey(c.QueryParam("sort")),
	}

	if query.Status == "" {
		query.Status = ports.StatusAll
	}
	if query.Priority == "" {
		query.Priority = ports.PriorityAny
	}
	if query.Sort == "" {
		query.Sort = ports.SortCreatedAtAsc
	}

	if !query.Status.IsValid() {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid status filter")
	}
	if !query.Priority.IsValid() {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid priority filter")
	}
	if !query.Sort.IsValid() {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid sort key")
	}

	view, err := h.viewService.BuildView(c.Request().Context(), query)
	if err != nil {
		h.logger.Error("Build view failed", "error", err)
		return domainError(err)
	}

	return c.JSON(http.StatusOK, view)
}

// GetPreferences handles reading the remembered view controls
func (h *ViewHandler) GetPreferences(c echo.Context) error {
	prefs, err := h.viewService.Preferences(c.Request().Context())
	if err != nil {
		h.logger.Error("Load preferences failed", "error", err)
		return domainError(err)
	}

	return c.JSON(http.StatusOK, prefs)
}

// SavePreferences handles persisting the view controls
func (h *ViewHandler) SavePreferences(c echo.Context) error {
	var prefs ports.ViewPreferences
	if err := c.Bind(&prefs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if !prefs.Status.IsValid() || !prefs.Priority.IsValid() || !prefs.Sort.IsValid() {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid preference values")
	}

	if err := h.viewService.SavePreferences(c.Request().Context(), prefs); err != nil {
		h.logger.Error("Save preferences failed", "error", err)
		return domainError(err)
	}

	return c.JSON(http.StatusOK, prefs)
}
