package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Domenick1991/appointments/internal/apperr"
	"github.com/Domenick1991/appointments/internal/domain"
	"github.com/Domenick1991/appointments/internal/service/inventory"
)

type MockCatalogUseCase struct {
	mock.Mock
}

func (m *MockCatalogUseCase) CreateWorkspace(ctx context.Context, ws *domain.Workspace) error {
	args := m.Called(ctx, ws)
	return args.Error(0)
}

func (m *MockCatalogUseCase) GetWorkspace(ctx context.Context, id int64) (*domain.Workspace, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Workspace), args.Error(1)
}

func (m *MockCatalogUseCase) CreateService(ctx context.Context, svc *domain.Service) error {
	args := m.Called(ctx, svc)
	return args.Error(0)
}

func (m *MockCatalogUseCase) GetService(ctx context.Context, id int64) (*domain.Service, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Service), args.Error(1)
}

func (m *MockCatalogUseCase) ListServices(ctx context.Context, workspaceID int64) ([]domain.Service, error) {
	args := m.Called(ctx, workspaceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Service), args.Error(1)
}

type MockAvailabilityUseCase struct {
	mock.Mock
}

func (m *MockAvailabilityUseCase) AvailableSlots(ctx context.Context, serviceID int64, date, timezone string) ([]string, error) {
	args := m.Called(ctx, serviceID, date, timezone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockInventoryUseCase struct {
	mock.Mock
}

func (m *MockInventoryUseCase) CreateItem(ctx context.Context, item *domain.InventoryItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockInventoryUseCase) Adjust(ctx context.Context, workspaceID, itemID int64, delta int, actorID *string, reason string) (inventory.Movement, error) {
	args := m.Called(ctx, workspaceID, itemID, delta, actorID, reason)
	return args.Get(0).(inventory.Movement), args.Error(1)
}

func (m *MockInventoryUseCase) List(ctx context.Context, workspaceID int64) ([]domain.InventoryItem, error) {
	args := m.Called(ctx, workspaceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.InventoryItem), args.Error(1)
}

func TestCatalogHandler_availableSlots(t *testing.T) {
	mockAvailability := &MockAvailabilityUseCase{}
	handler := NewCatalogHandler(&MockCatalogUseCase{}, mockAvailability)

	c, w := testContext(http.MethodGet, "/services/3/availability?date=2030-03-04&timezone=Europe/Berlin", nil)
	c.Params = gin.Params{{Key: "id", Value: "3"}}

	slots := []string{"09:00", "10:00"}
	mockAvailability.On("AvailableSlots", c.Request.Context(), int64(3), "2030-03-04", "Europe/Berlin").Return(slots, nil)

	handler.availableSlots(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp slotsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, slots, resp.Slots)
	assert.Equal(t, "Europe/Berlin", resp.Timezone)
	mockAvailability.AssertExpectations(t)
}

func TestCatalogHandler_availableSlots_EmptyIsArray(t *testing.T) {
	mockAvailability := &MockAvailabilityUseCase{}
	handler := NewCatalogHandler(&MockCatalogUseCase{}, mockAvailability)

	c, w := testContext(http.MethodGet, "/services/3/availability?date=2030-03-04", nil)
	c.Params = gin.Params{{Key: "id", Value: "3"}}
	mockAvailability.On("AvailableSlots", c.Request.Context(), int64(3), "2030-03-04", "").Return(nil, nil)

	handler.availableSlots(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"slots":[]`)
}

func TestCatalogHandler_availableSlots_MissingDate(t *testing.T) {
	mockAvailability := &MockAvailabilityUseCase{}
	handler := NewCatalogHandler(&MockCatalogUseCase{}, mockAvailability)

	c, w := testContext(http.MethodGet, "/services/3/availability", nil)
	c.Params = gin.Params{{Key: "id", Value: "3"}}

	handler.availableSlots(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockAvailability.AssertNotCalled(t, "AvailableSlots", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCatalogHandler_createService_UsesStaffWorkspace(t *testing.T) {
	mockCatalog := &MockCatalogUseCase{}
	handler := NewCatalogHandler(mockCatalog, nil)

	c, w := testContext(http.MethodPost, "/services", map[string]any{
		"name":             "Massage",
		"duration_minutes": 60,
	})
	asStaff(c)

	mockCatalog.On("CreateService", c.Request.Context(), mock.MatchedBy(func(svc *domain.Service) bool {
		return svc.WorkspaceID == 7 && svc.Name == "Massage" && svc.DurationMinutes == 60
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.Service).ID = 11
	}).Return(nil)

	handler.createService(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var svc domain.Service
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &svc))
	assert.Equal(t, int64(11), svc.ID)
	mockCatalog.AssertExpectations(t)
}

func TestCatalogHandler_getWorkspace_NotFound(t *testing.T) {
	mockCatalog := &MockCatalogUseCase{}
	handler := NewCatalogHandler(mockCatalog, nil)

	c, w := testContext(http.MethodGet, "/workspaces/9", nil)
	c.Params = gin.Params{{Key: "id", Value: "9"}}
	mockCatalog.On("GetWorkspace", c.Request.Context(), int64(9)).Return(nil, apperr.New(apperr.CodeNotFound, "workspace not found"))

	handler.getWorkspace(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockCatalog.AssertExpectations(t)
}

func TestInventoryHandler_adjust(t *testing.T) {
	mockInventory := &MockInventoryUseCase{}
	handler := NewInventoryHandler(mockInventory, nil)

	c, w := testContext(http.MethodPost, "/inventory/4/adjust", map[string]any{"delta": -3, "reason": "spill"})
	c.Params = gin.Params{{Key: "id", Value: "4"}}
	asStaff(c)

	staffID := "staff-1"
	mv := inventory.Movement{
		Item:   domain.InventoryItem{ID: 4, WorkspaceID: 7, Name: "Oil", Quantity: 2, Threshold: 2},
		Delta:  -3,
		Before: 5,
		After:  2,
	}
	mockInventory.On("Adjust", c.Request.Context(), int64(7), int64(4), -3, &staffID, "spill").Return(mv, nil)

	handler.adjust(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp movementResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.After)
	assert.True(t, resp.Low)
	mockInventory.AssertExpectations(t)
}

func TestInventoryHandler_recentActivity_BadLimit(t *testing.T) {
	handler := NewInventoryHandler(&MockInventoryUseCase{}, nil)

	c, w := testContext(http.MethodGet, "/activity?limit=0", nil)
	asStaff(c)

	handler.recentActivity(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNewRouter_HealthAndUnknownRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(Dependencies{
		Bookings:     &MockBookingUseCase{},
		Availability: &MockAvailabilityUseCase{},
		Catalog:      &MockCatalogUseCase{},
		Inventory:    &MockInventoryUseCase{},
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNewRouter_HealthReportsFailedCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(Dependencies{
		Checks: map[string]HealthCheck{
			"database": func(context.Context) error { return nil },
			"kafka":    func(context.Context) error { return errors.New("broker down") },
		},
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "unavailable", body.Status)
	assert.Equal(t, map[string]string{"kafka": "broker down"}, body.Checks)
}

func TestNewRouter_BookingRouteRequiresIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockService := &MockBookingUseCase{}
	router := NewRouter(Dependencies{Bookings: mockService})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/bookings/5/restore", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	mockService.AssertNotCalled(t, "Restore", mock.Anything, mock.Anything, mock.Anything)
}
