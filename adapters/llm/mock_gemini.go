package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/satriahrh/vista/domain/entities"
	"github.com/satriahrh/vista/domain/repositories"
)

// MockGeminiClient answers from keywords so the brain can run without an
// API key
type MockGeminiClient struct {
	registry repositories.SmartHomeRegistry
}

// NewMockGeminiClient creates a new mock Gemini client
func NewMockGeminiClient(registry repositories.SmartHomeRegistry) *MockGeminiClient {
	return &MockGeminiClient{registry: registry}
}

var (
	_ repositories.Reasoner       = (*MockGeminiClient)(nil)
	_ repositories.VisionAnalyzer = (*MockGeminiClient)(nil)
)

// Ask implements repositories.Reasoner
func (m *MockGeminiClient) Ask(ctx context.Context, prompt string, vctx entities.VistaContext, history []entities.ChatMessage) (entities.Action, error) {
	lower := strings.ToLower(prompt)

	switch {
	case strings.Contains(lower, "song") || strings.Contains(lower, "music"):
		return entities.RecognizeSong{}, nil
	case strings.Contains(lower, "turn on") || strings.Contains(lower, "turn off"):
		service := entities.ServiceTurnOn
		if strings.Contains(lower, "turn off") {
			service = entities.ServiceTurnOff
		}
		if target, ok := m.resolveTarget(ctx, lower, vctx); ok {
			state, _ := service.TargetState()
			return entities.CallHomeAssistant{
				EntityID:            target.ID,
				Service:             service,
				ConfirmationMessage: fmt.Sprintf("Right away. The %s is now %s.", strings.ToLower(target.Name), state),
			}, nil
		}
		return entities.AnswerUser{SpokenResponse: "I'm afraid I can't tell which device you mean."}, nil
	case strings.Contains(lower, "see") || strings.Contains(lower, "look"):
		return entities.AnswerUser{SpokenResponse: vctx.SceneDescription}, nil
	default:
		return entities.AnswerUser{SpokenResponse: fmt.Sprintf("You said %q. Noted.", prompt)}, nil
	}
}

// resolveTarget prefers a named entity, then the focused entity in view
func (m *MockGeminiClient) resolveTarget(ctx context.Context, prompt string, vctx entities.VistaContext) (entities.SmartHomeEntity, bool) {
	if m.registry != nil {
		list, err := m.registry.List(ctx)
		if err == nil {
			for _, entity := range list {
				names := append([]string{entity.Name}, entity.Aliases...)
				for _, name := range names {
					if name != "" && strings.Contains(prompt, strings.ToLower(name)) {
						return *entity, true
					}
				}
			}
		}
	}

	for _, inView := range vctx.EntitiesInView {
		if inView.IsFocused {
			return entities.SmartHomeEntity{ID: inView.ID, Name: inView.Name}, true
		}
	}
	return entities.SmartHomeEntity{}, false
}

// Interrupt implements repositories.Reasoner; the mock never interrupts
func (m *MockGeminiClient) Interrupt(ctx context.Context, vctx entities.VistaContext) (string, bool, error) {
	return "", false, nil
}

// Summarize implements repositories.Reasoner
func (m *MockGeminiClient) Summarize(ctx context.Context, logText string) (string, error) {
	lines := strings.Count(strings.TrimSpace(logText), "\n") + 1
	return fmt.Sprintf("%d events were observed in the recent window.", lines), nil
}

// AnalyzeFrame implements repositories.VisionAnalyzer
func (m *MockGeminiClient) AnalyzeFrame(ctx context.Context, jpeg []byte) (entities.VisionResult, error) {
	return entities.VisionResult{
		SceneDescription: fmt.Sprintf("A camera frame of %d bytes showing an indoor scene.", len(jpeg)),
		VisibleText:      []entities.VisibleText{},
	}, nil
}
