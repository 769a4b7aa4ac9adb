package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// contentGenerator is the subset of genai.Models used by the adapters
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiLLM implements the Reasoner and VisionAnalyzer interfaces using
// Google's Gemini API
type GeminiLLM struct {
	models     contentGenerator
	logger     *zap.Logger
	config     GeminiConfig
	retryDelay time.Duration
}

// NewGeminiLLM creates a new Gemini LLM instance
func NewGeminiLLM(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiLLM, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return newGeminiLLM(client.Models, config, logger), nil
}

func newGeminiLLM(models contentGenerator, config GeminiConfig, logger *zap.Logger) *GeminiLLM {
	config = config.withDefaults()
	logger.Info("Gemini adapter configured",
		zap.String("model", config.Model),
		zap.String("visionModel", config.VisionModel),
		zap.Int("maxAttempts", config.MaxAttempts))

	return &GeminiLLM{
		models:     models,
		logger:     logger,
		config:     config,
		retryDelay: time.Second,
	}
}

// generate calls the model, retrying with a linearly growing delay
func (g *GeminiLLM) generate(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(g.config.TimeoutSeconds)*time.Second)
	defer cancel()

	var response *genai.GenerateContentResponse
	var err error
	for attempt := 0; attempt < g.config.MaxAttempts; attempt++ {
		response, err = g.models.GenerateContent(ctx, model, contents, config)
		if err == nil {
			return response, nil
		}

		g.logger.Warn("Failed to generate content, retrying",
			zap.String("model", model),
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if attempt < g.config.MaxAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("generate content: %w", ctx.Err())
			case <-time.After(time.Duration(attempt+1) * g.retryDelay):
			}
		}
	}

	return nil, fmt.Errorf("generate content after %d attempts: %w", g.config.MaxAttempts, err)
}

func (g *GeminiLLM) baseConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SafetySettings:  GeminiHardcodedConfig.SafetySettings,
		Temperature:     genai.Ptr(g.config.Temperature),
		TopP:            genai.Ptr(g.config.TopP),
		TopK:            genai.Ptr(g.config.TopK),
		MaxOutputTokens: int32(g.config.MaxOutputTokens),
	}
}

// responseText extracts the text of the first candidate
func responseText(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return ""
	}

	var text string
	for _, part := range response.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			text += part.Text
		}
	}
	return text
}

// preview returns at most the first 50 runes of s for log fields
func preview(s string) string {
	const limit = 50
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
