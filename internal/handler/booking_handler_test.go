package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pawclass-api/internal/dto"
	"github.com/noah-isme/pawclass-api/internal/middleware"
	"github.com/noah-isme/pawclass-api/internal/models"
	appErrors "github.com/noah-isme/pawclass-api/pkg/errors"
)

type bookingServiceMock struct {
	createResp  *models.Booking
	createErr   error
	cancelResp  *models.CancelResult
	cancelErr   error
	lastRequest dto.CreateBookingRequest
	lastQuery   dto.BookingQuery
	lastActor   *models.JWTClaims
	cancelledID string
}

func (m *bookingServiceMock) Create(ctx context.Context, req dto.CreateBookingRequest, actor *models.JWTClaims) (*models.Booking, error) {
	m.lastRequest = req
	m.lastActor = actor
	return m.createResp, m.createErr
}

func (m *bookingServiceMock) Cancel(ctx context.Context, id string, actor *models.JWTClaims) (*models.CancelResult, error) {
	m.cancelledID = id
	return m.cancelResp, m.cancelErr
}

func (m *bookingServiceMock) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.BookingDetail, error) {
	return &models.BookingDetail{Booking: models.Booking{ID: id}}, nil
}

func (m *bookingServiceMock) List(ctx context.Context, q dto.BookingQuery, actor *models.JWTClaims) ([]models.BookingDetail, *models.Pagination, error) {
	m.lastQuery = q
	return []models.BookingDetail{}, models.NewPagination(q.Page, q.PageSize, 0), nil
}

func studentContext(method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
	return c, w
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		Retryable bool   `json:"retryable"`
	} `json:"error"`
	Meta map[string]interface{} `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestBookingHandlerCreate(t *testing.T) {
	mockSvc := &bookingServiceMock{createResp: &models.Booking{ID: "bk-1", Status: models.BookingStatusConfirmed}}
	handler := NewBookingHandler(mockSvc)

	payload, _ := json.Marshal(dto.CreateBookingRequest{ScheduleID: "sch-1", EnrollmentID: "enr-1"})
	c, w := studentContext(http.MethodPost, "/bookings", payload)

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "sch-1", mockSvc.lastRequest.ScheduleID)
	assert.Equal(t, "stu-1", mockSvc.lastActor.UserID)
}

func TestBookingHandlerCreateInvalidBody(t *testing.T) {
	handler := NewBookingHandler(&bookingServiceMock{})
	c, w := studentContext(http.MethodPost, "/bookings", []byte(`{"schedule_id":`))

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBookingHandlerCreateMapsDomainErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{appErrors.ErrQuotaExhausted, http.StatusConflict, "QUOTA_EXHAUSTED"},
		{appErrors.ErrMismatch, http.StatusUnprocessableEntity, "TICKET_CLASS_MISMATCH"},
		{appErrors.ErrCapacityExceeded, http.StatusConflict, "CAPACITY_EXCEEDED"},
		{appErrors.Storage(assert.AnError, "failed"), http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE"},
	}
	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			handler := NewBookingHandler(&bookingServiceMock{createErr: tc.err})
			payload, _ := json.Marshal(dto.CreateBookingRequest{ScheduleID: "sch-1", EnrollmentID: "enr-1"})
			c, w := studentContext(http.MethodPost, "/bookings", payload)

			handler.Create(c)
			require.Equal(t, tc.status, w.Code)
			env := decode(t, w)
			require.NotNil(t, env.Error)
			assert.Equal(t, tc.code, env.Error.Code)
			assert.Equal(t, tc.code == "STORAGE_UNAVAILABLE", env.Error.Retryable)
		})
	}
}

func TestBookingHandlerCancelReportsSoftFailure(t *testing.T) {
	mockSvc := &bookingServiceMock{cancelResp: &models.CancelResult{
		Booking:          &models.Booking{ID: "bk-1", Status: models.BookingStatusCancelled},
		Cancelled:        true,
		LateCancellation: true,
		LedgerError:      "no remaining sessions on enrollment",
	}}
	handler := NewBookingHandler(mockSvc)
	c, w := studentContext(http.MethodPost, "/bookings/bk-1/cancel", nil)
	c.Params = gin.Params{{Key: "id", Value: "bk-1"}}

	handler.Cancel(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bk-1", mockSvc.cancelledID)

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &result))
	assert.Equal(t, true, result["late_cancellation"])
	assert.Equal(t, false, result["deducted"])
	assert.Equal(t, "no remaining sessions on enrollment", result["ledger_error"])
}

func TestBookingHandlerListParsesQuery(t *testing.T) {
	mockSvc := &bookingServiceMock{}
	handler := NewBookingHandler(mockSvc)
	c, w := studentContext(http.MethodGet, "/bookings?status=confirmed&page=2&page_size=5", nil)

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "confirmed", mockSvc.lastQuery.Status)
	assert.Equal(t, 2, mockSvc.lastQuery.Page)
	assert.Equal(t, 5, mockSvc.lastQuery.PageSize)
}
