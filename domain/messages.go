package domain

import "github.com/satriahrh/vista/domain/entities"

// ChatRequest is the body of POST /api/chat
type ChatRequest struct {
	Message string                `json:"message"`
	Context entities.VistaContext `json:"context"`
}

// ChatResponse is the reply of POST /api/chat. Exactly one field is set.
type ChatResponse struct {
	FunctionCalls []entities.FunctionCall `json:"functionCalls,omitempty"`
	Text          string                  `json:"text,omitempty"`
}

// VisionRequest is the body of POST /api/vision
type VisionRequest struct {
	ImageData string `json:"imageData"` // data URL or bare base64 JPEG
}
