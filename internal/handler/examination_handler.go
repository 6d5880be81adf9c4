package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/medidesk/medidesk-api/internal/dto"
	"github.com/medidesk/medidesk-api/internal/models"
	appErrors "github.com/medidesk/medidesk-api/pkg/errors"
	"github.com/medidesk/medidesk-api/pkg/response"
)

type examinationService interface {
	List(ctx context.Context, filter models.ExaminationFilter) ([]models.ExaminationDetail, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.ExaminationDetail, error)
	Create(ctx context.Context, req dto.CreateExaminationRequest, createdBy string) (*models.ExaminationDetail, error)
	Update(ctx context.Context, id string, req dto.UpdateExaminationRequest) (*models.ExaminationDetail, error)
	Delete(ctx context.Context, id string) error
}

// ExaminationHandler manages examination HTTP endpoints.
type ExaminationHandler struct {
	service examinationService
}

// NewExaminationHandler constructs the handler.
func NewExaminationHandler(service examinationService) *ExaminationHandler {
	return &ExaminationHandler{service: service}
}

// List godoc
// @Summary List examinations
// @Tags Examinations
// @Produce json
// @Param patientId query string false "Filter by patient"
// @Success 200 {object} response.Envelope
// @Router /examinations [get]
func (h *ExaminationHandler) List(c *gin.Context) {
	filter := models.ExaminationFilter{
		PatientID: c.Query("patientId"),
		DateFrom:  queryDate(c, "dateFrom"),
		DateTo:    queryDate(c, "dateTo"),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "pageSize", 20),
	}
	examinations, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, 200, examinations, pagination)
}

// Get godoc
// @Summary Get examination by id
// @Tags Examinations
// @Produce json
// @Param id path string true "Examination ID"
// @Success 200 {object} response.Envelope
// @Router /examinations/{id} [get]
func (h *ExaminationHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, 200, detail, nil)
}

// Create godoc
// @Summary Record an examination
// @Tags Examinations
// @Accept json
// @Produce json
// @Param payload body dto.CreateExaminationRequest true "Examination"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /examinations [post]
func (h *ExaminationHandler) Create(c *gin.Context) {
	var req dto.CreateExaminationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid examination payload"))
		return
	}
	detail, err := h.service.Create(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// Update godoc
// @Summary Amend an examination
// @Tags Examinations
// @Accept json
// @Produce json
// @Param id path string true "Examination ID"
// @Param payload body dto.UpdateExaminationRequest true "Examination"
// @Success 200 {object} response.Envelope
// @Router /examinations/{id} [put]
func (h *ExaminationHandler) Update(c *gin.Context) {
	var req dto.UpdateExaminationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid examination payload"))
		return
	}
	detail, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, 200, detail, nil)
}

// Delete godoc
// @Summary Delete an examination
// @Tags Examinations
// @Param id path string true "Examination ID"
// @Success 204
// @Router /examinations/{id} [delete]
func (h *ExaminationHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
