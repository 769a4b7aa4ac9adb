package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/vista/domain"
	"github.com/satriahrh/vista/domain/repositories"
	"github.com/satriahrh/vista/internal/auth"
	"github.com/satriahrh/vista/internal/websocket"
	"github.com/satriahrh/vista/usecase"
)

// Handler serves the HTTP API of the VISTA brain
type Handler struct {
	hub      *websocket.Hub
	issuer   *auth.Issuer
	chat     *usecase.ChatService
	registry repositories.SmartHomeRegistry
	logger   *zap.Logger
}

// NewHandler creates the API handler
func NewHandler(hub *websocket.Hub, issuer *auth.Issuer, chat *usecase.ChatService, registry repositories.SmartHomeRegistry, logger *zap.Logger) *Handler {
	return &Handler{
		hub:      hub,
		issuer:   issuer,
		chat:     chat,
		registry: registry,
		logger:   logger,
	}
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, h *Handler) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "vista-brain",
		})
	})

	// stateless proxies for consoles that keep their own state
	e.POST("/api/chat", h.chatProxy)
	e.POST("/api/vision", h.visionProxy)

	v1 := e.Group("/api/v1")
	v1.POST("/console/auth", h.consoleAuth)
	v1.GET("/entities", h.listEntities)
	v1.GET("/consoles", h.listConsoles)

	// WebSocket endpoint with JWT validation
	e.GET("/ws", h.websocketWithAuth)
}

func (h *Handler) consoleAuth(c echo.Context) error {
	var req ConsoleAuthRequest
	if err := c.Bind(&req); err != nil {
		h.logger.Error("Failed to bind console auth request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if req.AccessKey == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Access key is required",
		})
	}

	token, consoleID, expiresAt, err := h.issuer.Authenticate(req.AccessKey)
	if errors.Is(err, auth.ErrUnknownAccessKey) {
		h.logger.Warn("Console authentication failed", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "authentication_failed",
			Message: "Invalid access key",
		})
	}
	if err != nil {
		h.logger.Error("Failed to generate console token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	h.logger.Info("Console authenticated successfully", zap.String("console_id", consoleID))

	return c.JSON(http.StatusOK, ConsoleAuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		ConsoleID: consoleID,
	})
}

func (h *Handler) chatProxy(c echo.Context) error {
	var req domain.ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "Invalid request format"})
	}

	resp, err := h.chat.Chat(c.Request().Context(), req)
	if errors.Is(err, usecase.ErrEmptyCommand) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing_fields", Message: "Message is required"})
	}
	if err != nil {
		h.logger.Error("Chat proxy failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "chat_failed", Message: "Failed to get response from AI"})
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) visionProxy(c echo.Context) error {
	var req domain.VisionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "Invalid request format"})
	}

	result, err := h.chat.Vision(c.Request().Context(), req)
	if errors.Is(err, usecase.ErrInvalidImage) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_image", Message: "Image data must be base64 encoded"})
	}
	if err != nil {
		h.logger.Error("Vision proxy failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "vision_failed", Message: "Failed to analyze image"})
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) listEntities(c echo.Context) error {
	list, err := h.registry.List(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to list entities", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error"})
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) listConsoles(c echo.Context) error {
	if claims, err := h.authorize(c); claims == nil {
		return err
	}
	return c.JSON(http.StatusOK, h.hub.Sessions())
}

// authorize validates the bearer token. It returns nil claims once the
// rejection has been written.
func (h *Handler) authorize(c echo.Context) (*auth.JWTClaims, error) {
	token := strings.TrimPrefix(c.Request().Header.Get("Authorization"), "Bearer ")
	if token == "" || token == c.Request().Header.Get("Authorization") {
		h.logger.Warn("Request rejected: missing token")
		return nil, c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required in Authorization header",
		})
	}

	claims, err := h.issuer.ValidateToken(token)
	if err != nil {
		h.logger.Warn("Request rejected: invalid token", zap.Error(err))
		return nil, c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		})
	}

	if claims.Role != auth.RoleConsole {
		h.logger.Warn("Request rejected: invalid role", zap.String("role", claims.Role))
		return nil, c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "invalid_role",
			Message: "Only console tokens are allowed",
		})
	}
	return claims, nil
}

// websocketWithAuth handles WebSocket connections with JWT authentication
func (h *Handler) websocketWithAuth(c echo.Context) error {
	claims, err := h.authorize(c)
	if claims == nil {
		return err
	}

	h.logger.Info("WebSocket connection authenticated",
		zap.String("console_id", claims.ConsoleID),
		zap.String("role", claims.Role))

	return websocket.HandleWebSocketWithAuth(h.hub, c, claims.ConsoleID, h.logger)
}
