package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/internal/models"
	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/internal/service"
	appErrors "github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/pkg/errors"
	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/pkg/export"
	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/pkg/response"
)

type catalogService interface {
	List(ctx context.Context, filter models.SessionFilter) ([]models.ClassSession, *models.Pagination, error)
	ListAvailable(ctx context.Context, filter models.SessionFilter) ([]models.AvailableSession, error)
	Get(ctx context.Context, id string) (*models.ClassSession, error)
	Create(ctx context.Context, req service.CreateSessionRequest, actor *models.JWTClaims) (*models.ClassSession, error)
	Cancel(ctx context.Context, id string, actor *models.JWTClaims) (*models.ClassSession, error)
	SetCapacity(ctx context.Context, id string, req service.CapacityRequest, actor *models.JWTClaims) (*models.ClassSession, error)
	Reschedule(ctx context.Context, id string, req service.RescheduleSessionRequest, actor *models.JWTClaims) (*models.ClassSession, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
	Roster(ctx context.Context, id string) (*models.ClassSession, []models.RosterRow, error)
}

type rosterExporter interface {
	Render(roster export.Roster) ([]byte, error)
}

// SessionHandler exposes class session endpoints.
type SessionHandler struct {
	catalog catalogService
	csv     rosterExporter
	pdf     rosterExporter
}

// NewSessionHandler constructs SessionHandler.
func NewSessionHandler(catalog catalogService, csv, pdf rosterExporter) *SessionHandler {
	return &SessionHandler{catalog: catalog, csv: csv, pdf: pdf}
}

func sessionFilterFromQuery(c *gin.Context) (models.SessionFilter, error) {
	var filter models.SessionFilter
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		return filter, appErrors.Clone(appErrors.ErrValidation, "from must be an RFC3339 timestamp")
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		return filter, appErrors.Clone(appErrors.ErrValidation, "to must be an RFC3339 timestamp")
	}
	filter.From = from
	filter.To = to
	filter.LocationID = c.Query("location_id")
	filter.ModalityID = c.Query("modality_id")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}
	return filter, nil
}

// List godoc
// @Summary List sessions in a window
// @Tags Sessions
// @Produce json
// @Param from query string true "Window start (RFC3339)"
// @Param to query string true "Window end (RFC3339)"
// @Param location_id query string false "Filter by location"
// @Param modality_id query string false "Filter by modality"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	filter, err := sessionFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	sessions, pagination, err := h.catalog.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, pagination)
}

// Available godoc
// @Summary List bookable sessions with remaining seats
// @Tags Sessions
// @Produce json
// @Param from query string true "Window start (RFC3339)"
// @Param to query string true "Window end (RFC3339)"
// @Param location_id query string false "Filter by location"
// @Param modality_id query string false "Filter by modality"
// @Success 200 {object} response.Envelope
// @Router /sessions/available [get]
func (h *SessionHandler) Available(c *gin.Context) {
	filter, err := sessionFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	sessions, err := h.catalog.ListAvailable(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}

// Get godoc
// @Summary Get a session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Create godoc
// @Summary Publish a new session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body service.CreateSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Router /sessions [post]
func (h *SessionHandler) Create(c *gin.Context) {
	var req service.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	session, err := h.catalog.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// Cancel godoc
// @Summary Cancel a session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/cancel [post]
func (h *SessionHandler) Cancel(c *gin.Context) {
	session, err := h.catalog.Cancel(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// SetCapacity godoc
// @Summary Change session capacity
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body service.CapacityRequest true "Capacity payload"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/capacity [put]
func (h *SessionHandler) SetCapacity(c *gin.Context) {
	var req service.CapacityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	session, err := h.catalog.SetCapacity(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Reschedule godoc
// @Summary Move a session to a new time
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body service.RescheduleSessionRequest true "Schedule payload"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/schedule [put]
func (h *SessionHandler) Reschedule(c *gin.Context) {
	var req service.RescheduleSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	session, err := h.catalog.Reschedule(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Delete godoc
// @Summary Delete a session without enrollments
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 204 {object} response.Envelope
// @Router /sessions/{id} [delete]
func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.catalog.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Roster godoc
// @Summary Session attendance sheet
// @Description Lists every enrollment for the session. format=csv or format=pdf downloads a printable sheet.
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Param format query string false "json (default), csv, or pdf"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/roster [get]
func (h *SessionHandler) Roster(c *gin.Context) {
	session, rows, err := h.catalog.Roster(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	format := c.DefaultQuery("format", "json")
	if format == "json" {
		response.JSON(c, http.StatusOK, rows, nil)
		return
	}

	roster := export.Roster{
		Title:    "Attendance Sheet",
		Subtitle: fmt.Sprintf("Session %s at %s", session.ID, session.StartsAt.Format("2006-01-02 15:04")),
		Headers:  []string{"Enrollment", "Member", "Name", "Status", "Booked At"},
	}
	for _, row := range rows {
		roster.Rows = append(roster.Rows, []string{
			row.EnrollmentID,
			row.MemberID,
			row.MemberName,
			string(row.Status),
			row.CreatedAt.Format(time.RFC3339),
		})
	}

	var exporter rosterExporter
	var mime, ext string
	switch format {
	case "csv":
		exporter, mime, ext = h.csv, "text/csv", "csv"
	case "pdf":
		exporter, mime, ext = h.pdf, "application/pdf", "pdf"
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be json, csv, or pdf"))
		return
	}

	content, err := exporter.Render(roster)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster"))
		return
	}

	filename := fmt.Sprintf("roster-%s.%s", session.ID, ext)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	c.Data(http.StatusOK, mime, content)
}
