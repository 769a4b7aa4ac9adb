package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/vista/domain/entities"
	"github.com/satriahrh/vista/domain/repositories"
)

// Ensure GeminiLLM implements the Reasoner interface
var _ repositories.Reasoner = (*GeminiLLM)(nil)

// jarvisTools declares the functions the model may call
func jarvisTools() []*genai.Tool {
	return []*genai.Tool{{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        entities.FunctionAnswerUser,
				Description: "Provide a spoken response to the user for direct questions, comments, or observations.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"spoken_response": {
							Type:        genai.TypeString,
							Description: "The concise and witty response to be spoken out loud to the user.",
						},
					},
					Required: []string{"spoken_response"},
				},
			},
			{
				Name:        entities.FunctionCallHomeAssistant,
				Description: "Control a smart home device.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"entity_id": {
							Type:        genai.TypeString,
							Description: `The unique ID of the device to control (e.g., "light.desk_lamp").`,
						},
						"service": {
							Type:        genai.TypeString,
							Description: `The service to call, either "turn_on" or "turn_off".`,
							Enum:        []string{string(entities.ServiceTurnOn), string(entities.ServiceTurnOff)},
						},
						"confirmation_message": {
							Type:        genai.TypeString,
							Description: "A brief confirmation message to be spoken to the user after the action is taken.",
						},
					},
					Required: []string{"entity_id", "service", "confirmation_message"},
				},
			},
			{
				Name:        entities.FunctionRecognizeSong,
				Description: "Identifies a song playing in the environment.",
				Parameters: &genai.Schema{
					Type:       genai.TypeObject,
					Properties: map[string]*genai.Schema{},
				},
			},
		},
	}}
}

// formatPrompt renders the user prompt and context the way the model is
// instructed to expect them
func formatPrompt(prompt string, vctx entities.VistaContext) (string, error) {
	contextJSON, err := json.MarshalIndent(vctx, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal context: %w", err)
	}
	return fmt.Sprintf("User Prompt: %q\n\nCurrent Context:\n%s", prompt, contextJSON), nil
}

// Ask implements repositories.Reasoner
func (g *GeminiLLM) Ask(ctx context.Context, prompt string, vctx entities.VistaContext, history []entities.ChatMessage) (entities.Action, error) {
	fullPrompt, err := formatPrompt(prompt, vctx)
	if err != nil {
		return nil, err
	}

	contents := convertHistoryToGeminiFormat(history)
	contents = append(contents, genai.NewContentFromText(fullPrompt, genai.RoleUser))

	config := g.baseConfig()
	config.SystemInstruction = genai.NewContentFromText(GeminiHardcodedConfig.SystemPrompt, genai.RoleUser)
	config.Tools = jarvisTools()

	response, err := g.generate(ctx, g.config.Model, contents, config)
	if err != nil {
		g.logger.Error("Failed to ask Jarvis", zap.Error(err))
		return nil, err
	}

	action, err := actionFromResponse(response)
	if err != nil {
		g.logger.Warn("Jarvis response carried no usable action",
			zap.String("prompt", preview(prompt)),
			zap.Error(err))
		return nil, err
	}

	g.logger.Info("Jarvis responded",
		zap.String("prompt", preview(prompt)),
		zap.String("action", action.FunctionName()))

	return action, nil
}

// actionFromResponse picks the first function call, or treats plain text as
// an implicit answer_user
func actionFromResponse(response *genai.GenerateContentResponse) (entities.Action, error) {
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return nil, fmt.Errorf("empty response: %w", entities.ErrUnknownAction)
	}

	for _, part := range response.Candidates[0].Content.Parts {
		if part != nil && part.FunctionCall != nil {
			return entities.ActionFromFunctionCall(entities.FunctionCall{
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			})
		}
	}

	text := strings.TrimSpace(responseText(response))
	if text == "" {
		return nil, fmt.Errorf("no text or function call: %w", entities.ErrUnknownAction)
	}
	return entities.AnswerUser{SpokenResponse: text}, nil
}

// Interrupt implements repositories.Reasoner
func (g *GeminiLLM) Interrupt(ctx context.Context, vctx entities.VistaContext) (string, bool, error) {
	contextJSON, err := json.MarshalIndent(vctx, "", "  ")
	if err != nil {
		return "", false, fmt.Errorf("failed to marshal context: %w", err)
	}

	prompt := fmt.Sprintf("%s\n\nCurrent Context:\n%s", GeminiHardcodedConfig.InterruptionPrompt, contextJSON)
	config := g.baseConfig()
	config.SystemInstruction = genai.NewContentFromText(GeminiHardcodedConfig.SystemPrompt, genai.RoleUser)

	response, err := g.generate(ctx, g.config.Model, []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}, config)
	if err != nil {
		return "", false, err
	}

	insight, ok := parseInsight(responseText(response))
	return insight, ok, nil
}

// parseInsight enforces the sentence-or-sentinel contract
func parseInsight(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" || strings.Contains(strings.ToUpper(text), repositories.NoEventSentinel) {
		return "", false
	}
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = strings.TrimSpace(text[:idx])
	}
	return text, true
}

// Summarize implements repositories.Reasoner
func (g *GeminiLLM) Summarize(ctx context.Context, logText string) (string, error) {
	prompt := fmt.Sprintf("%s\n\n%s", GeminiHardcodedConfig.SummaryPrompt, logText)

	response, err := g.generate(ctx, g.config.Model, []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}, g.baseConfig())
	if err != nil {
		return "", err
	}

	summary := strings.TrimSpace(responseText(response))
	if summary == "" {
		return "", fmt.Errorf("empty summary")
	}
	return summary, nil
}

// convertHistoryToGeminiFormat converts transcript turns to Gemini contents.
// Function calls and responses are flattened to text so a history never
// contains a dangling call without its response.
func convertHistoryToGeminiFormat(messages []entities.ChatMessage) []*genai.Content {
	var contents []*genai.Content

	for _, msg := range messages {
		if msg.IsError {
			continue
		}

		var role genai.Role
		switch msg.Role {
		case entities.ChatRoleModel:
			role = genai.RoleModel
		default:
			role = genai.RoleUser // tool output is fed back as user content
		}

		var parts []*genai.Part
		for _, part := range msg.Parts {
			switch {
			case part.FunctionCall != nil:
				args, _ := json.Marshal(part.FunctionCall.Args)
				parts = append(parts, genai.NewPartFromText(fmt.Sprintf("[%s %s]", part.FunctionCall.Name, args)))
			case part.FunctionResponse != nil:
				response, _ := json.Marshal(part.FunctionResponse.Response)
				parts = append(parts, genai.NewPartFromText(fmt.Sprintf("[%s result %s]", part.FunctionResponse.Name, response)))
			case part.Text != "":
				parts = append(parts, genai.NewPartFromText(part.Text))
			}
		}

		if len(parts) > 0 {
			contents = append(contents, genai.NewContentFromParts(parts, role))
		}
	}

	return contents
}
