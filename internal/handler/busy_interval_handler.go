package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/medidesk/medidesk-api/internal/dto"
	"github.com/medidesk/medidesk-api/internal/models"
	appErrors "github.com/medidesk/medidesk-api/pkg/errors"
	"github.com/medidesk/medidesk-api/pkg/response"
)

type busyIntervalService interface {
	List(ctx context.Context, filter models.BusyIntervalFilter) ([]models.BusyInterval, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.BusyInterval, error)
	Create(ctx context.Context, req dto.CreateBusyIntervalRequest) (*models.BusyInterval, error)
	Update(ctx context.Context, id string, req dto.UpdateBusyIntervalRequest) (*models.BusyInterval, error)
	Delete(ctx context.Context, id string) error
}

// BusyIntervalHandler manages the doctor's blocked-hours endpoints.
type BusyIntervalHandler struct {
	service busyIntervalService
}

// NewBusyIntervalHandler constructs the handler.
func NewBusyIntervalHandler(service busyIntervalService) *BusyIntervalHandler {
	return &BusyIntervalHandler{service: service}
}

// List godoc
// @Summary List busy intervals
// @Tags BusyIntervals
// @Produce json
// @Param dateFrom query string false "Start date (YYYY-MM-DD)"
// @Param dateTo query string false "End date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /busy-intervals [get]
func (h *BusyIntervalHandler) List(c *gin.Context) {
	filter := models.BusyIntervalFilter{
		DateFrom: queryDate(c, "dateFrom"),
		DateTo:   queryDate(c, "dateTo"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "pageSize", 20),
	}
	intervals, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, 200, intervals, pagination)
}

// Get godoc
// @Summary Get busy interval by id
// @Tags BusyIntervals
// @Produce json
// @Param id path string true "Interval ID"
// @Success 200 {object} response.Envelope
// @Router /busy-intervals/{id} [get]
func (h *BusyIntervalHandler) Get(c *gin.Context) {
	interval, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, 200, interval, nil)
}

// Create godoc
// @Summary Block hours on the doctor's calendar
// @Tags BusyIntervals
// @Accept json
// @Produce json
// @Param payload body dto.CreateBusyIntervalRequest true "Interval"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /busy-intervals [post]
func (h *BusyIntervalHandler) Create(c *gin.Context) {
	var req dto.CreateBusyIntervalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid busy interval payload"))
		return
	}
	interval, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, interval)
}

// Update godoc
// @Summary Update a busy interval
// @Tags BusyIntervals
// @Accept json
// @Produce json
// @Param id path string true "Interval ID"
// @Param payload body dto.UpdateBusyIntervalRequest true "Interval"
// @Success 200 {object} response.Envelope
// @Router /busy-intervals/{id} [put]
func (h *BusyIntervalHandler) Update(c *gin.Context) {
	var req dto.UpdateBusyIntervalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid busy interval payload"))
		return
	}
	interval, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, 200, interval, nil)
}

// Delete godoc
// @Summary Remove a busy interval
// @Tags BusyIntervals
// @Param id path string true "Interval ID"
// @Success 204
// @Router /busy-intervals/{id} [delete]
func (h *BusyIntervalHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
