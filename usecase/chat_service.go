package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/vista/domain"
	"github.com/satriahrh/vista/domain/entities"
	"github.com/satriahrh/vista/domain/repositories"
)

// ErrInvalidImage is returned when the vision payload is not base64 image data
var ErrInvalidImage = errors.New("invalid image data")

// ChatService serves the stateless chat and vision endpoints. Consoles
// that keep their own state can use these instead of a websocket session.
type ChatService struct {
	reasoner repositories.Reasoner
	vision   repositories.VisionAnalyzer
	logger   *zap.Logger
}

// NewChatService creates a new chat service
func NewChatService(reasoner repositories.Reasoner, vision repositories.VisionAnalyzer, logger *zap.Logger) *ChatService {
	return &ChatService{reasoner: reasoner, vision: vision, logger: logger}
}

// Chat asks the reasoner once, without history
func (s *ChatService) Chat(ctx context.Context, req domain.ChatRequest) (domain.ChatResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return domain.ChatResponse{}, ErrEmptyCommand
	}

	action, err := s.reasoner.Ask(ctx, req.Message, req.Context, nil)
	if err != nil {
		return domain.ChatResponse{}, fmt.Errorf("ask reasoner: %w", err)
	}

	s.logger.Debug("Stateless chat answered", zap.String("function", action.FunctionName()))
	return domain.ChatResponse{
		FunctionCalls: []entities.FunctionCall{entities.ActionToFunctionCall(action)},
	}, nil
}

// Vision analyzes one frame sent as a data URL or bare base64 JPEG
func (s *ChatService) Vision(ctx context.Context, req domain.VisionRequest) (entities.VisionResult, error) {
	frame, err := DecodeImageData(req.ImageData)
	if err != nil {
		return entities.VisionResult{}, err
	}

	result, err := s.vision.AnalyzeFrame(ctx, frame)
	if err != nil {
		return entities.VisionResult{}, fmt.Errorf("analyze frame: %w", err)
	}
	return result, nil
}

// DecodeImageData strips an optional data URL prefix and decodes base64
func DecodeImageData(data string) ([]byte, error) {
	if i := strings.Index(data, ","); strings.HasPrefix(data, "data:") && i >= 0 {
		data = data[i+1:]
	}
	if data == "" {
		return nil, ErrInvalidImage
	}

	frame, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return frame, nil
}
