package api

import "time"

// ConsoleAuthRequest represents the request payload for console authentication
type ConsoleAuthRequest struct {
	AccessKey string `json:"access_key" validate:"required"`
}

// ConsoleAuthResponse represents the response payload for console authentication
type ConsoleAuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	ConsoleID string    `json:"console_id"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
