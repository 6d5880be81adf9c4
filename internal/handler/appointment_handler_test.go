package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medidesk/medidesk-api/internal/dto"
	"github.com/medidesk/medidesk-api/internal/middleware"
	"github.com/medidesk/medidesk-api/internal/models"
	appErrors "github.com/medidesk/medidesk-api/pkg/errors"
)

type fakeAppointmentSrv struct {
	detail    *models.AppointmentDetail
	createErr error
	cancelErr error
	lastActor string
	lastReq   dto.CreateAppointmentRequest
}

func (f *fakeAppointmentSrv) List(context.Context, models.AppointmentFilter) ([]models.AppointmentDetail, *models.Pagination, error) {
	return nil, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func (f *fakeAppointmentSrv) Get(context.Context, string) (*models.AppointmentDetail, error) {
	if f.detail == nil {
		return nil, appErrors.ErrNotFound
	}
	return f.detail, nil
}

func (f *fakeAppointmentSrv) Create(_ context.Context, req dto.CreateAppointmentRequest, createdBy string) (*models.AppointmentDetail, error) {
	f.lastReq = req
	f.lastActor = createdBy
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.detail, nil
}

func (f *fakeAppointmentSrv) Update(context.Context, string, dto.UpdateAppointmentRequest) (*models.AppointmentDetail, error) {
	return f.detail, nil
}

func (f *fakeAppointmentSrv) Cancel(context.Context, string) (*models.AppointmentDetail, error) {
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	return f.detail, nil
}

func (f *fakeAppointmentSrv) Delete(context.Context, string) error { return nil }

func (f *fakeAppointmentSrv) Availability(context.Context, string) ([]dto.SlotAvailability, error) {
	return []dto.SlotAvailability{{Time: "09:00", Available: true}}, nil
}

func sampleDetail() *models.AppointmentDetail {
	return &models.AppointmentDetail{
		Appointment: models.Appointment{
			ID:        "appt-1",
			PatientID: "pat-1",
			Date:      time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
			Time:      models.NewTimeOfDay(10, 0),
			Status:    models.AppointmentUpcoming,
		},
		PatientName: "Jane Doe",
	}
}

func TestAppointmentHandlerCreatePassesActor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeAppointmentSrv{detail: sampleDetail()}
	handler := NewAppointmentHandler(srv)

	body, _ := json.Marshal(dto.CreateAppointmentRequest{
		PatientID: "a9f5f3c2-9c1e-4a7b-8c42-0d4f4a1b2c3d",
		Date:      "2026-09-14",
		Time:      "10:00",
	})
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "secretary-1", Role: models.RoleSecretary})

	handler.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "secretary-1", srv.lastActor)
	assert.Equal(t, "10:00", srv.lastReq.Time)
}

func TestAppointmentHandlerCreateConflictStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeAppointmentSrv{createErr: appErrors.ErrSlotTaken}
	handler := NewAppointmentHandler(srv)

	body, _ := json.Marshal(dto.CreateAppointmentRequest{
		PatientID: "a9f5f3c2-9c1e-4a7b-8c42-0d4f4a1b2c3d",
		Date:      "2026-09-14",
		Time:      "10:00",
	})
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)

	assert.Equal(t, http.StatusConflict, rec.Code)

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "SLOT_TAKEN", envelope.Error.Code)
}

func TestAppointmentHandlerCreateRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAppointmentHandler(&fakeAppointmentSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewReader([]byte("{not-json")))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAppointmentHandlerCancel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	detail := sampleDetail()
	detail.Status = models.AppointmentCancelled
	handler := NewAppointmentHandler(&fakeAppointmentSrv{detail: detail})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/appointments/appt-1/cancel", nil)
	c.Params = gin.Params{{Key: "id", Value: "appt-1"}}

	handler.Cancel(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cancelled")
}

func TestAppointmentHandlerAvailability(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAppointmentHandler(&fakeAppointmentSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/appointments/availability?date=2026-09-14", nil)

	handler.Availability(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "09:00")
}
