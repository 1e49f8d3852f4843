package service

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/chatops-labs/chatbot-api/internal/models"
	appErrors "github.com/chatops-labs/chatbot-api/pkg/errors"
)

// ChatService answers chat messages with a deterministic heuristic reply.
type ChatService struct {
	logger *zap.Logger
}

// NewChatService constructs a ChatService.
func NewChatService(logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{logger: logger}
}

// Process validates the message and returns the bot's reply.
func (s *ChatService) Process(req models.ChatRequest, user *models.AccessClaims) (*models.ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "message must not be empty or whitespace")
	}
	if utf8.RuneCountInString(message) > models.MaxChatMessageLength {
		return nil, appErrors.Clone(appErrors.ErrValidation, "message too long: maximum allowed is 4096 characters")
	}

	if user != nil {
		s.logger.Info("chat request", zap.String("user_id", user.UserID), zap.Int("message_len", len(message)))
	}

	reply := "I'm here to help! Please ask me anything."
	if strings.Contains(strings.ToLower(message), "hello") {
		reply = "Hello! How can I assist you today?"
	}
	return &models.ChatResponse{Response: reply}, nil
}
