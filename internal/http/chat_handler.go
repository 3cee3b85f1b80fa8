package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tagrag/internal/domain"
	"tagrag/internal/logging"
	"tagrag/internal/service"
)

// Conversation es la conversacion compartida que atiende la API.
type Conversation interface {
	ConversationID() uuid.UUID
	Turn(ctx context.Context, input string) (string, error)
	History() []domain.RequestMessage
}

// ChatHandler expone los turnos y la historia por HTTP.
type ChatHandler struct {
	logger       *zap.Logger
	conversation Conversation
}

func NewChatHandler(logger *zap.Logger, conversation Conversation) *ChatHandler {
	return &ChatHandler{logger: logging.OrNop(logger), conversation: conversation}
}

// PostChat maneja POST /chat.
func (h *ChatHandler) PostChat(c *gin.Context) {
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid chat request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	subject := "anonymous"
	if claims, ok := GetAuthClaims(c); ok {
		subject = claims.Subject
	}

	reply, err := h.conversation.Turn(c.Request.Context(), req.Content)
	if err != nil {
		var turnErr *service.TurnError
		switch {
		case errors.Is(err, service.ErrEmptyInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		case errors.As(err, &turnErr):
			h.logger.Warn("chat turn failed", zap.String("subject", subject), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "turn failed", "turn_id": turnErr.TurnID.String()})
		default:
			h.logger.Error("chat turn failed", zap.String("subject", subject), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not process message"})
		}
		return
	}

	h.logger.Debug("chat turn answered", zap.String("subject", subject))
	c.JSON(http.StatusOK, gin.H{
		"conversation_id": h.conversation.ConversationID().String(),
		"reply":           reply,
	})
}

// GetHistory maneja GET /history.
func (h *ChatHandler) GetHistory(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"conversation_id": h.conversation.ConversationID().String(),
		"history":         h.conversation.History(),
	})
}
