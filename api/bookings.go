package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Domenick1991/appointments/internal/apperr"
	"github.com/Domenick1991/appointments/internal/domain"
	"github.com/Domenick1991/appointments/internal/service/booking"
)

type BookingUseCase interface {
	Create(ctx context.Context, input booking.CreateInput, actor booking.Actor) (*domain.Booking, error)
	Confirm(ctx context.Context, bookingID int64, actor booking.Actor) (*domain.Booking, error)
	Cancel(ctx context.Context, bookingID int64, actor booking.Actor, reason string) (*domain.Booking, error)
	Restore(ctx context.Context, bookingID int64, actor booking.Actor) (*domain.Booking, error)
	Reschedule(ctx context.Context, bookingID int64, newStart time.Time, actor booking.Actor) (*domain.Booking, error)
	UpdateStatus(ctx context.Context, bookingID int64, status domain.BookingStatus, actor booking.Actor) (*domain.Booking, error)
	UpdateDetails(ctx context.Context, bookingID int64, update domain.ContactUpdate, actor booking.Actor) (*domain.Contact, error)
	ResendNotification(ctx context.Context, bookingID int64, kind domain.NotificationKind, actor booking.Actor) (*domain.Booking, error)
	Get(ctx context.Context, bookingID int64, actor booking.Actor) (*domain.Booking, error)
	History(ctx context.Context, bookingID int64, actor booking.Actor) ([]domain.TimelineEntry, error)
}

type BookingHandler struct {
	service BookingUseCase
	tokens  TokenService
}

type createBookingRequest struct {
	ServiceID int64  `json:"service_id"`
	StartTime string `json:"start_time"`
	StaffID   *int64 `json:"staff_id"`
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	Phone     string `json:"phone"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type rescheduleRequest struct {
	StartTime string `json:"start_time"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type resendRequest struct {
	Kind string `json:"kind"`
}

type bookingResponse struct {
	ID          int64  `json:"id"`
	WorkspaceID int64  `json:"workspace_id"`
	ServiceID   int64  `json:"service_id"`
	ContactID   int64  `json:"contact_id"`
	StaffID     *int64 `json:"staff_id,omitempty"`
	Status      string `json:"status"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Version     int64  `json:"version"`
	ManageToken string `json:"manage_token,omitempty"`
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	return bookingResponse{
		ID:          b.ID,
		WorkspaceID: b.WorkspaceID,
		ServiceID:   b.ServiceID,
		ContactID:   b.ContactID,
		StaffID:     b.StaffID,
		Status:      string(b.Status),
		StartTime:   b.StartTime.UTC().Format(time.RFC3339),
		EndTime:     b.EndTime.UTC().Format(time.RFC3339),
		Version:     b.Version,
	}
}

func NewBookingHandler(service BookingUseCase, tokens TokenService) *BookingHandler {
	return &BookingHandler{service: service, tokens: tokens}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.create)
	router.GET("/:id", h.get)
	router.POST("/:id/confirm", h.confirm)
	router.POST("/:id/cancel", h.cancel)
	router.POST("/:id/restore", h.restore)
	router.POST("/:id/reschedule", h.reschedule)
	router.PATCH("/:id/status", h.updateStatus)
	router.PATCH("/:id/details", h.updateDetails)
	router.POST("/:id/notifications", h.resend)
	router.GET("/:id/history", h.history)
}

// manageActor accepts either staff headers or a booking token bound to bookingID.
func (h *BookingHandler) manageActor(c *gin.Context, bookingID int64) (booking.Actor, bool) {
	if actor, ok := staffActor(c); ok {
		return actor, true
	}
	token := bookingToken(c)
	if token == "" || h.tokens == nil {
		writeError(c, apperr.New(apperr.CodeUnauthorized, "staff identity or booking token required"))
		return booking.Actor{}, false
	}
	if _, err := h.tokens.Verify(token, bookingID); err != nil {
		writeError(c, err)
		return booking.Actor{}, false
	}
	return booking.TokenActor(), true
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, validationError(err.Error()))
		return
	}
	start, err := parseTime("start_time", req.StartTime)
	if err != nil {
		writeError(c, err)
		return
	}

	actor, ok := staffActor(c)
	if !ok {
		actor = booking.PublicActor(0)
	}
	created, err := h.service.Create(c.Request.Context(), booking.CreateInput{
		ServiceID: req.ServiceID,
		StartTime: start,
		StaffID:   req.StaffID,
		Contact: domain.ContactInput{
			Email:    req.Email,
			FullName: req.FullName,
			Phone:    req.Phone,
		},
	}, actor)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := toBookingResponse(created)
	if h.tokens != nil {
		token, err := h.tokens.Mint(created.ID, created.WorkspaceID)
		if err != nil {
			writeError(c, err)
			return
		}
		resp.ManageToken = token
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *BookingHandler) get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	actor, ok := h.manageActor(c, id)
	if !ok {
		return
	}
	b, err := h.service.Get(c.Request.Context(), id, actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) confirm(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	actor, ok := requireStaff(c)
	if !ok {
		return
	}
	b, err := h.service.Confirm(c.Request.Context(), id, actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) cancel(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	actor, ok := h.manageActor(c, id)
	if !ok {
		return
	}
	var req cancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, validationError(err.Error()))
			return
		}
	}
	b, err := h.service.Cancel(c.Request.Context(), id, actor, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) restore(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	actor, ok := requireStaff(c)
	if !ok {
		return
	}
	b, err := h.service.Restore(c.Request.Context(), id, actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) reschedule(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	actor, ok := h.manageActor(c, id)
	if !ok {
		return
	}
	var req rescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, validationError(err.Error()))
		return
	}
	start, err := parseTime("start_time", req.StartTime)
	if err != nil {
		writeError(c, err)
		return
	}
	b, err := h.service.Reschedule(c.Request.Context(), id, start, actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) updateStatus(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	actor, ok := requireStaff(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, validationError(err.Error()))
		return
	}
	b, err := h.service.UpdateStatus(c.Request.Context(), id, domain.BookingStatus(req.Status), actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) updateDetails(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	actor, ok := requireStaff(c)
	if !ok {
		return
	}
	var req domain.ContactUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, validationError(err.Error()))
		return
	}
	contact, err := h.service.UpdateDetails(c.Request.Context(), id, req, actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

func (h *BookingHandler) resend(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	actor, ok := requireStaff(c)
	if !ok {
		return
	}
	var req resendRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, validationError(err.Error()))
			return
		}
	}
	if _, err := h.service.ResendNotification(c.Request.Context(), id, domain.NotificationKind(req.Kind), actor); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

func (h *BookingHandler) history(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	actor, ok := requireStaff(c)
	if !ok {
		return
	}
	timeline, err := h.service.History(c.Request.Context(), id, actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking_id": id, "entries": timeline})
}
