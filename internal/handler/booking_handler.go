package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/internal/models"
	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/internal/service"
	appErrors "github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/pkg/errors"
	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/pkg/response"
)

type schedulingService interface {
	Book(ctx context.Context, req service.BookRequest, actor *models.JWTClaims) (*models.BookingResult, error)
	Cancel(ctx context.Context, enrollmentID string, actor *models.JWTClaims) (*models.CancelResult, error)
	MarkAttendance(ctx context.Context, enrollmentID string, outcome models.EnrollmentStatus, actor *models.JWTClaims) (*models.AttendanceResult, error)
	WaitlistPosition(ctx context.Context, entryID string, actor *models.JWTClaims) (*models.WaitlistPosition, error)
	Withdraw(ctx context.Context, entryID string, actor *models.JWTClaims) error
	ListWaitlisted(ctx context.Context, sessionID string, actor *models.JWTClaims) ([]models.WaitlistEntry, error)
	MyWaitlist(ctx context.Context, actor *models.JWTClaims) ([]models.WaitlistEntry, error)
}

type memberLedger interface {
	GetEnrollment(ctx context.Context, id string, actor *models.JWTClaims) (*models.Enrollment, error)
	ListForMember(ctx context.Context, memberID string) ([]models.Enrollment, error)
}

// BookingHandler exposes booking, waitlist, and attendance endpoints.
type BookingHandler struct {
	scheduling schedulingService
	ledger     memberLedger
}

// NewBookingHandler constructs BookingHandler.
func NewBookingHandler(scheduling schedulingService, ledger memberLedger) *BookingHandler {
	return &BookingHandler{scheduling: scheduling, ledger: ledger}
}

// Book godoc
// @Summary Book a seat or join the waitlist
// @Description Returns either an enrollment or a waitlist entry, never silently one for the other.
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body service.BookRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Book(c *gin.Context) {
	var req service.BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.scheduling.Book(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// CancelEnrollment godoc
// @Summary Cancel a booked seat
// @Description Frees the seat and promotes the waitlist head when one exists.
// @Tags Bookings
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id} [delete]
func (h *BookingHandler) CancelEnrollment(c *gin.Context) {
	result, err := h.scheduling.Cancel(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// GetEnrollment godoc
// @Summary Get an enrollment
// @Tags Bookings
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *BookingHandler) GetEnrollment(c *gin.Context) {
	enrollment, err := h.ledger.GetEnrollment(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// MarkAttendance godoc
// @Summary Record an attendance outcome
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body object true "Outcome payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/attendance [post]
func (h *BookingHandler) MarkAttendance(c *gin.Context) {
	var payload struct {
		Outcome string `json:"outcome" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "outcome required"))
		return
	}
	outcome := models.EnrollmentStatus(strings.ToUpper(payload.Outcome))
	result, err := h.scheduling.MarkAttendance(c.Request.Context(), c.Param("id"), outcome, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// WaitlistPosition godoc
// @Summary Current 1-based queue position of a waitlist entry
// @Tags Waitlist
// @Produce json
// @Param id path string true "Waitlist entry ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /waitlist/{id}/position [get]
func (h *BookingHandler) WaitlistPosition(c *gin.Context) {
	position, err := h.scheduling.WaitlistPosition(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, position, nil)
}

// Withdraw godoc
// @Summary Leave a waitlist
// @Tags Waitlist
// @Produce json
// @Param id path string true "Waitlist entry ID"
// @Success 204 {object} response.Envelope
// @Router /waitlist/{id} [delete]
func (h *BookingHandler) Withdraw(c *gin.Context) {
	if err := h.scheduling.Withdraw(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SessionWaitlist godoc
// @Summary Session queue in promotion order
// @Tags Waitlist
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/waitlist [get]
func (h *BookingHandler) SessionWaitlist(c *gin.Context) {
	entries, err := h.scheduling.ListWaitlisted(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// MyEnrollments godoc
// @Summary The caller's enrollments, newest first
// @Tags Bookings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/enrollments [get]
func (h *BookingHandler) MyEnrollments(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	enrollments, err := h.ledger.ListForMember(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, nil)
}

// MemberEnrollments godoc
// @Summary A member's enrollments, newest first
// @Tags Bookings
// @Produce json
// @Param id path string true "Member ID"
// @Success 200 {object} response.Envelope
// @Router /users/{id}/enrollments [get]
func (h *BookingHandler) MemberEnrollments(c *gin.Context) {
	enrollments, err := h.ledger.ListForMember(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, nil)
}

// MyWaitlist godoc
// @Summary The caller's waitlist entries
// @Tags Waitlist
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/waitlist [get]
func (h *BookingHandler) MyWaitlist(c *gin.Context) {
	entries, err := h.scheduling.MyWaitlist(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
