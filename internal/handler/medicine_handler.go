package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/medidesk/medidesk-api/internal/dto"
	"github.com/medidesk/medidesk-api/internal/models"
	appErrors "github.com/medidesk/medidesk-api/pkg/errors"
	"github.com/medidesk/medidesk-api/pkg/response"
)

type medicineService interface {
	List(ctx context.Context) ([]models.Medicine, error)
	Get(ctx context.Context, id string) (*models.Medicine, error)
	Create(ctx context.Context, req dto.CreateMedicineRequest) (*models.Medicine, error)
	Update(ctx context.Context, id string, req dto.UpdateMedicineRequest) (*models.Medicine, error)
	Delete(ctx context.Context, id string) error
}

// MedicineHandler manages medicine catalog endpoints.
type MedicineHandler struct {
	service medicineService
}

// NewMedicineHandler constructs the handler.
func NewMedicineHandler(service medicineService) *MedicineHandler {
	return &MedicineHandler{service: service}
}

// List godoc
// @Summary List medicines
// @Tags Medicines
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /medicines [get]
func (h *MedicineHandler) List(c *gin.Context) {
	medicines, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, 200, medicines, nil)
}

// Get godoc
// @Summary Get medicine by id
// @Tags Medicines
// @Produce json
// @Param id path string true "Medicine ID"
// @Success 200 {object} response.Envelope
// @Router /medicines/{id} [get]
func (h *MedicineHandler) Get(c *gin.Context) {
	medicine, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, 200, medicine, nil)
}

// Create godoc
// @Summary Add a medicine
// @Tags Medicines
// @Accept json
// @Produce json
// @Param payload body dto.CreateMedicineRequest true "Medicine"
// @Success 201 {object} response.Envelope
// @Router /medicines [post]
func (h *MedicineHandler) Create(c *gin.Context) {
	var req dto.CreateMedicineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid medicine payload"))
		return
	}
	medicine, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, medicine)
}

// Update godoc
// @Summary Update a medicine
// @Tags Medicines
// @Accept json
// @Produce json
// @Param id path string true "Medicine ID"
// @Param payload body dto.UpdateMedicineRequest true "Medicine"
// @Success 200 {object} response.Envelope
// @Router /medicines/{id} [put]
func (h *MedicineHandler) Update(c *gin.Context) {
	var req dto.UpdateMedicineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid medicine payload"))
		return
	}
	medicine, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, 200, medicine, nil)
}

// Delete godoc
// @Summary Remove a medicine
// @Tags Medicines
// @Param id path string true "Medicine ID"
// @Success 204
// @Router /medicines/{id} [delete]
func (h *MedicineHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
