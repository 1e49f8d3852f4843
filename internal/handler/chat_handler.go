package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chatops-labs/chatbot-api/internal/models"
	"github.com/chatops-labs/chatbot-api/internal/service"
	appErrors "github.com/chatops-labs/chatbot-api/pkg/errors"
	"github.com/chatops-labs/chatbot-api/pkg/response"
)

// ChatHandler exposes the chat endpoint.
type ChatHandler struct {
	chat *service.ChatService
}

// NewChatHandler creates a new handler.
func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// Chat godoc
// @Summary Chat endpoint
// @Description Process a chat message and return the bot reply
// @Tags Chat
// @Accept json
// @Produce json
// @Param payload body models.ChatRequest true "Chat payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /chat [post]
func (h *ChatHandler) Chat(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid chat payload"))
		return
	}

	res, err := h.chat.Process(req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res)
}
