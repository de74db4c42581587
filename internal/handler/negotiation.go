package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carematch/internal/domain"
	"carematch/internal/service"
	apperrors "carematch/pkg/errors"
	"carematch/pkg/logger"
)

type NegotiationHandler struct {
	negotiationService service.NegotiationService
	log                logger.Logger
}

func NewNegotiationHandler(negotiationService service.NegotiationService, log logger.Logger) *NegotiationHandler {
	return &NegotiationHandler{
		negotiationService: negotiationService,
		log:                log,
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
}

type StartRoomRequest struct {
	CarerID   string  `json:"carerId" binding:"required"`
	CenterID  string  `json:"centerId" binding:"required"`
	SeniorID  *string `json:"seniorId"`
	Initiator string  `json:"initiator" binding:"required"`
}

func (h *NegotiationHandler) Start(c *gin.Context) {
	var req StartRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.negotiationService.StartRoom(c.Request.Context(), req.CarerID, req.CenterID, req.SeniorID, req.Initiator)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, room)
}

func (h *NegotiationHandler) List(c *gin.Context) {
	status := c.Query("status")

	rooms, err := h.negotiationService.ListRooms(c.Request.Context(), status)
	if err != nil {
		respondError(c, err)
		return
	}
	if rooms == nil {
		rooms = []*domain.Room{}
	}

	c.JSON(http.StatusOK, rooms)
}

func (h *NegotiationHandler) GetByID(c *gin.Context) {
	room, err := h.negotiationService.GetRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *NegotiationHandler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// The only status transition a client may request is closing the room.
	if req.Status != domain.RoomStatusClosed {
		respondError(c, apperrors.ErrInvalidArgument)
		return
	}

	room, err := h.negotiationService.CloseRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

type SendMessageRequest struct {
	SenderID string `json:"senderId" binding:"required"`
	Content  string `json:"content" binding:"required"`
	Kind     string `json:"kind"`
}

func (h *NegotiationHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.negotiationService.SendMessage(c.Request.Context(), c.Param("id"), req.SenderID, req.Content, req.Kind)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

type MarkReadRequest struct {
	MessageIDs []string `json:"messageIds" binding:"required"`
	ReaderID   string   `json:"readerId" binding:"required"`
}

func (h *NegotiationHandler) MarkRead(c *gin.Context) {
	var req MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.negotiationService.MarkRead(c.Request.Context(), c.Param("id"), req.MessageIDs, req.ReaderID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

type SendProposalRequest struct {
	ProposalID string `json:"proposalId"`
}

func (h *NegotiationHandler) SendProposal(c *gin.Context) {
	var req SendProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	proposal, err := h.negotiationService.SendProposal(c.Request.Context(), c.Param("id"), req.ProposalID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, proposal)
}

type RespondProposalRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *NegotiationHandler) RespondProposal(c *gin.Context) {
	var req RespondProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	proposal, err := h.negotiationService.RespondToProposal(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, proposal)
}

func (h *NegotiationHandler) UnreadCount(c *gin.Context) {
	readerID := c.Query("readerId")
	if readerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "readerId is required"})
		return
	}

	count, err := h.negotiationService.UnreadCount(c.Request.Context(), c.Param("id"), readerID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}
