package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/internal/middleware"
	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/internal/models"
	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/internal/service"
	appErrors "github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/pkg/errors"
	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/pkg/export"
)

type catalogServiceMock struct {
	listResp      []models.ClassSession
	listErr       error
	availResp     []models.AvailableSession
	availErr      error
	getResp       *models.ClassSession
	getErr        error
	createResp    *models.ClassSession
	createErr     error
	cancelResp    *models.ClassSession
	cancelErr     error
	rosterSession *models.ClassSession
	rosterRows    []models.RosterRow
	rosterErr     error
	lastFilter    models.SessionFilter
	listCalled    bool
	createCalled  bool
}

func (m *catalogServiceMock) List(ctx context.Context, filter models.SessionFilter) ([]models.ClassSession, *models.Pagination, error) {
	m.listCalled = true
	m.lastFilter = filter
	return m.listResp, &models.Pagination{Page: 1, PageSize: 50, TotalCount: len(m.listResp)}, m.listErr
}

func (m *catalogServiceMock) ListAvailable(ctx context.Context, filter models.SessionFilter) ([]models.AvailableSession, error) {
	m.lastFilter = filter
	return m.availResp, m.availErr
}

func (m *catalogServiceMock) Get(ctx context.Context, id string) (*models.ClassSession, error) {
	return m.getResp, m.getErr
}

func (m *catalogServiceMock) Create(ctx context.Context, req service.CreateSessionRequest, actor *models.JWTClaims) (*models.ClassSession, error) {
	m.createCalled = true
	return m.createResp, m.createErr
}

func (m *catalogServiceMock) Cancel(ctx context.Context, id string, actor *models.JWTClaims) (*models.ClassSession, error) {
	return m.cancelResp, m.cancelErr
}

func (m *catalogServiceMock) SetCapacity(ctx context.Context, id string, req service.CapacityRequest, actor *models.JWTClaims) (*models.ClassSession, error) {
	return m.getResp, m.getErr
}

func (m *catalogServiceMock) Reschedule(ctx context.Context, id string, req service.RescheduleSessionRequest, actor *models.JWTClaims) (*models.ClassSession, error) {
	return m.getResp, m.getErr
}

func (m *catalogServiceMock) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	return m.getErr
}

func (m *catalogServiceMock) Roster(ctx context.Context, id string) (*models.ClassSession, []models.RosterRow, error) {
	return m.rosterSession, m.rosterRows, m.rosterErr
}

func sessionTestContext(t *testing.T, method, target string, body string, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(method, target, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func TestSessionHandlerListParsesWindow(t *testing.T) {
	mockSvc := &catalogServiceMock{listResp: []models.ClassSession{{ID: "ses-1"}}}
	handler := NewSessionHandler(mockSvc, export.NewCSVExporter(), export.NewPDFExporter())

	from := time.Now().UTC().Truncate(time.Second)
	to := from.Add(24 * time.Hour)
	target := "/sessions?from=" + from.Format(time.RFC3339) + "&to=" + to.Format(time.RFC3339) + "&location_id=loc-1"
	c, w := sessionTestContext(t, http.MethodGet, target, "", nil)

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.listCalled)
	assert.Equal(t, "loc-1", mockSvc.lastFilter.LocationID)
	assert.True(t, mockSvc.lastFilter.From.Equal(from))
}

func TestSessionHandlerListRejectsBadTimestamps(t *testing.T) {
	mockSvc := &catalogServiceMock{}
	handler := NewSessionHandler(mockSvc, export.NewCSVExporter(), export.NewPDFExporter())

	c, w := sessionTestContext(t, http.MethodGet, "/sessions?from=yesterday&to=tomorrow", "", nil)

	handler.List(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mockSvc.listCalled)
}

func TestSessionHandlerCreate(t *testing.T) {
	mockSvc := &catalogServiceMock{createResp: &models.ClassSession{ID: "ses-1", Capacity: 8}}
	handler := NewSessionHandler(mockSvc, export.NewCSVExporter(), export.NewPDFExporter())

	payload, _ := json.Marshal(service.CreateSessionRequest{
		StartsAt:     time.Now().UTC().Add(24 * time.Hour),
		DurationMin:  60,
		LocationID:   "loc-1",
		ModalityID:   "mod-1",
		InstructorID: "staff-1",
		Capacity:     8,
	})
	c, w := sessionTestContext(t, http.MethodPost, "/sessions", string(payload), &models.JWTClaims{UserID: "staff-1", Role: models.RoleStaff})

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, mockSvc.createCalled)
}

func TestSessionHandlerCreateConflict(t *testing.T) {
	mockSvc := &catalogServiceMock{createErr: appErrors.ErrConflict}
	handler := NewSessionHandler(mockSvc, export.NewCSVExporter(), export.NewPDFExporter())

	payload, _ := json.Marshal(service.CreateSessionRequest{
		StartsAt:     time.Now().UTC().Add(24 * time.Hour),
		DurationMin:  60,
		LocationID:   "loc-1",
		ModalityID:   "mod-1",
		InstructorID: "staff-1",
		Capacity:     8,
	})
	c, w := sessionTestContext(t, http.MethodPost, "/sessions", string(payload), &models.JWTClaims{UserID: "staff-1", Role: models.RoleStaff})

	handler.Create(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestSessionHandlerRosterFormats(t *testing.T) {
	session := &models.ClassSession{ID: "ses-1", StartsAt: time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)}
	rows := []models.RosterRow{
		{EnrollmentID: "enr-1", MemberID: "m1", MemberName: "Ana Souza", Status: models.EnrollmentStatusScheduled, CreatedAt: time.Now().UTC()},
	}
	mockSvc := &catalogServiceMock{rosterSession: session, rosterRows: rows}
	handler := NewSessionHandler(mockSvc, export.NewCSVExporter(), export.NewPDFExporter())

	t.Run("json by default", func(t *testing.T) {
		c, w := sessionTestContext(t, http.MethodGet, "/sessions/ses-1/roster", "", nil)
		c.Params = gin.Params{{Key: "id", Value: "ses-1"}}

		handler.Roster(c)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Ana Souza")
	})

	t.Run("csv download", func(t *testing.T) {
		c, w := sessionTestContext(t, http.MethodGet, "/sessions/ses-1/roster?format=csv", "", nil)
		c.Params = gin.Params{{Key: "id", Value: "ses-1"}}

		handler.Roster(c)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "roster-ses-1.csv")
		assert.Contains(t, w.Body.String(), "Enrollment,Member,Name,Status,Booked At")
		assert.Contains(t, w.Body.String(), "enr-1,m1,Ana Souza,SCHEDULED")
	})

	t.Run("pdf download", func(t *testing.T) {
		c, w := sessionTestContext(t, http.MethodGet, "/sessions/ses-1/roster?format=pdf", "", nil)
		c.Params = gin.Params{{Key: "id", Value: "ses-1"}}

		handler.Roster(c)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
		assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF"))
	})

	t.Run("unknown format", func(t *testing.T) {
		c, w := sessionTestContext(t, http.MethodGet, "/sessions/ses-1/roster?format=xml", "", nil)
		c.Params = gin.Params{{Key: "id", Value: "ses-1"}}

		handler.Roster(c)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSessionHandlerGetNotFound(t *testing.T) {
	mockSvc := &catalogServiceMock{getErr: appErrors.ErrNotFound}
	handler := NewSessionHandler(mockSvc, export.NewCSVExporter(), export.NewPDFExporter())

	c, w := sessionTestContext(t, http.MethodGet, "/sessions/missing", "", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}
