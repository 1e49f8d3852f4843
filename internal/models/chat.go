package models

// MaxChatMessageLength caps inbound chat messages.
const MaxChatMessageLength = 4096

// ChatRequest is the body for chat interactions.
type ChatRequest struct {
	Message string `json:"message" validate:"required"`
}

// ChatResponse carries the bot's reply.
type ChatResponse struct {
	Response string `json:"response"`
}
