package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mossy-p/consult-signaling/internal/auth"
	"github.com/mossy-p/consult-signaling/internal/middleware"
	"github.com/mossy-p/consult-signaling/internal/models"
	"github.com/mossy-p/consult-signaling/internal/store"
	"go.uber.org/zap"
)

// ConsultationStore is the persistence used by the consultation API.
type ConsultationStore interface {
	Create(ctx context.Context, patientID string, req models.CreateConsultationRequest) (*models.Consultation, error)
	Get(ctx context.Context, id string) (*models.Consultation, error)
	ListForUser(ctx context.Context, userID string) ([]models.Consultation, error)
	UpdateStatus(ctx context.Context, id string, status models.ConsultationStatus) (*models.Consultation, error)
	AppendMessage(ctx context.Context, c *models.Consultation, sender, content string) (*models.ChatMessage, error)
	Messages(ctx context.Context, consultationID string) ([]models.ChatMessage, error)
}

// RoomCloser ends live relay sessions of a room.
type RoomCloser interface {
	CloseRoom(roomID string)
}

type ConsultationHandler struct {
	store         ConsultationStore
	rooms         RoomCloser
	chatMaxLength int
	log           *zap.Logger
}

func NewConsultationHandler(s ConsultationStore, rooms RoomCloser, chatMaxLength int, log *zap.Logger) *ConsultationHandler {
	return &ConsultationHandler{store: s, rooms: rooms, chatMaxLength: chatMaxLength, log: log}
}

// Register mounts the consultation routes on an authenticated group.
func (h *ConsultationHandler) Register(g *gin.RouterGroup) {
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PUT("/:id/status", h.UpdateStatus)
	g.POST("/:id/messages", h.AddMessage)
	g.GET("/:id/messages", h.Messages)
}

// Create books a consultation for the calling patient.
func (h *ConsultationHandler) Create(c *gin.Context) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	if id.Role != auth.RolePatient {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only patients can book consultations"})
		return
	}

	var req models.CreateConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// There is no user directory here, so doctorId is not checked against
	// known doctors; the account service owns that.
	if req.DoctorID == id.ParticipantID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Doctor and patient must differ"})
		return
	}

	consultation, err := h.store.Create(c.Request.Context(), id.ParticipantID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.log.Info("consultation booked",
		zap.String("consultation_id", consultation.ID),
		zap.String("room_id", consultation.RoomID),
		zap.String("patient", consultation.PatientID),
		zap.String("doctor", consultation.DoctorID))
	c.JSON(http.StatusCreated, consultation)
}

// List returns the consultations of the caller, newest first.
func (h *ConsultationHandler) List(c *gin.Context) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	list, err := h.store.ListForUser(c.Request.Context(), id.ParticipantID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"consultations": list})
}

func (h *ConsultationHandler) Get(c *gin.Context) {
	consultation, _, ok := h.loadAsParty(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, consultation)
}

// UpdateStatus completes or cancels a consultation and closes its room.
func (h *ConsultationHandler) UpdateStatus(c *gin.Context) {
	consultation, id, ok := h.loadAsParty(c)
	if !ok {
		return
	}

	var req models.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status"})
		return
	}

	updated, err := h.store.UpdateStatus(c.Request.Context(), consultation.ID, req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.rooms.CloseRoom(updated.RoomID)
	h.log.Info("consultation status updated",
		zap.String("consultation_id", updated.ID),
		zap.String("status", string(updated.Status)),
		zap.String("by", id.ParticipantID))
	c.JSON(http.StatusOK, updated)
}

// AddMessage appends to the durable chat history of a consultation.
func (h *ConsultationHandler) AddMessage(c *gin.Context) {
	consultation, id, ok := h.loadAsParty(c)
	if !ok {
		return
	}

	var req models.AddMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message content is required"})
		return
	}
	if h.chatMaxLength > 0 && len(content) > h.chatMaxLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message is too long"})
		return
	}

	msg, err := h.store.AppendMessage(c.Request.Context(), consultation, id.ParticipantID, content)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *ConsultationHandler) Messages(c *gin.Context) {
	consultation, _, ok := h.loadAsParty(c)
	if !ok {
		return
	}

	msgs, err := h.store.Messages(c.Request.Context(), consultation.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// loadAsParty loads the consultation named in the path and checks that the
// caller is one of its parties. It writes the error response itself.
func (h *ConsultationHandler) loadAsParty(c *gin.Context) (*models.Consultation, auth.Identity, bool) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return nil, id, false
	}

	consultation, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return nil, id, false
	}
	if !consultation.HasParty(id.ParticipantID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return nil, id, false
	}
	return consultation, id, true
}

func (h *ConsultationHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Consultation not found"})
	case errors.Is(err, store.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		h.log.Error("consultation request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
