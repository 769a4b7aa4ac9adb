package llm

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/vista/domain/entities"
	"github.com/satriahrh/vista/domain/repositories"
)

// Ensure GeminiLLM implements the VisionAnalyzer interface
var _ repositories.VisionAnalyzer = (*GeminiLLM)(nil)

// AnalyzeFrame implements repositories.VisionAnalyzer
func (g *GeminiLLM) AnalyzeFrame(ctx context.Context, jpeg []byte) (entities.VisionResult, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(GeminiHardcodedConfig.VisionPrompt),
			genai.NewPartFromBytes(jpeg, "image/jpeg"),
		}, genai.RoleUser),
	}

	config := g.baseConfig()
	config.ResponseMIMEType = "application/json"

	response, err := g.generate(ctx, g.config.VisionModel, contents, config)
	if err != nil {
		return entities.VisionResult{}, err
	}

	text := responseText(response)
	result, ok := parseVisionResult(text)
	if !ok {
		g.logger.Warn("Vision response was not valid JSON", zap.String("response", preview(text)))
	}
	return result, nil
}

// parseVisionResult decodes the model JSON. visible_text may be a list of
// objects or a list of plain strings. Anything else falls back to the raw
// text with no visible text.
func parseVisionResult(text string) (entities.VisionResult, bool) {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var raw struct {
		SceneDescription string            `json:"scene_description"`
		VisibleText      []json.RawMessage `json:"visible_text"`
	}
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil || raw.SceneDescription == "" {
		return entities.VisionResult{
			SceneDescription: strings.TrimSpace(text),
			VisibleText:      []entities.VisibleText{},
		}, false
	}

	result := entities.VisionResult{
		SceneDescription: raw.SceneDescription,
		VisibleText:      make([]entities.VisibleText, 0, len(raw.VisibleText)),
	}
	for _, item := range raw.VisibleText {
		var visible entities.VisibleText
		if err := json.Unmarshal(item, &visible); err == nil && visible.Text != "" {
			result.VisibleText = append(result.VisibleText, visible)
			continue
		}
		var plain string
		if err := json.Unmarshal(item, &plain); err == nil && plain != "" {
			result.VisibleText = append(result.VisibleText, entities.VisibleText{Text: plain, Location: "unknown"})
		}
	}
	return result, true
}
