package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medidesk/medidesk-api/internal/models"
	"github.com/medidesk/medidesk-api/internal/service"
	"github.com/medidesk/medidesk-api/pkg/response"
)

type dashboardService interface {
	Snapshot(ctx context.Context) (*models.DashboardSnapshot, error)
}

type exportService interface {
	DaySheet(ctx context.Context, rawDate string, format service.ExportFormat) (*service.ExportResult, error)
}

// DashboardHandler serves the office overview and day-sheet exports.
type DashboardHandler struct {
	dashboard dashboardService
	export    exportService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(dashboard dashboardService, export exportService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, export: export}
}

// Snapshot godoc
// @Summary Office dashboard
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Snapshot(c *gin.Context) {
	snapshot, err := h.dashboard.Snapshot(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot, nil)
}

// ExportDaySheet godoc
// @Summary Export the day sheet
// @Tags Dashboard
// @Produce text/csv
// @Produce application/pdf
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /dashboard/day-sheet [get]
func (h *DashboardHandler) ExportDaySheet(c *gin.Context) {
	result, err := h.export.DaySheet(c.Request.Context(), c.Query("date"), service.ExportFormat(c.DefaultQuery("format", "csv")))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Data)
}
