package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/bridge"
	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/common"
)

// Publisher hands validated hook payloads to the relay queue.
type Publisher interface {
	PublishEvent(ctx context.Context, ev bridge.RelayEvent) error
}

type Handler struct {
	Pub Publisher
}

func NewHandler(pub Publisher) *Handler {
	return &Handler{Pub: pub}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"message": "pong"})
}

type communicationHookReq struct {
	TicketID  string `json:"ticket_id"`
	Direction string `json:"direction"`
	Content   string `json:"content"`
}

// CommunicationHook receives "a communication was recorded against a
// ticket" notifications from the ticket system.
func (h *Handler) CommunicationHook(c *gin.Context) {
	var req communicationHookReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.TicketID == "" || req.Direction == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "ticket_id and direction required")
		return
	}

	ev := bridge.RelayEvent{
		ID:        uuid.NewString(),
		Kind:      bridge.RelayCommunication,
		TicketID:  req.TicketID,
		Direction: req.Direction,
		Content:   req.Content,
	}
	if err := h.Pub.PublishEvent(c.Request.Context(), ev); err != nil {
		common.Fail(c, http.StatusBadGateway, 20001, "failed to enqueue event")
		return
	}
	common.OK(c, gin.H{"event_id": ev.ID})
}

type statusHookReq struct {
	TicketID       string `json:"ticket_id"`
	StatusCategory string `json:"status_category"`
}

// TicketStatusHook receives status-category transitions.
func (h *Handler) TicketStatusHook(c *gin.Context) {
	var req statusHookReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.TicketID == "" || req.StatusCategory == "" {
		common.Fail(c, http.StatusBadRequest, 10003, "ticket_id and status_category required")
		return
	}

	ev := bridge.RelayEvent{
		ID:             uuid.NewString(),
		Kind:           bridge.RelayStatusChange,
		TicketID:       req.TicketID,
		StatusCategory: req.StatusCategory,
	}
	if err := h.Pub.PublishEvent(c.Request.Context(), ev); err != nil {
		common.Fail(c, http.StatusBadGateway, 20001, "failed to enqueue event")
		return
	}
	common.OK(c, gin.H{"event_id": ev.ID})
}
