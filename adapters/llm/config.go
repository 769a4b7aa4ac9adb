package llm

import (
	"fmt"
	"os"
	"strconv"

	"google.golang.org/genai"
)

const (
	defaultModel          = "gemini-2.0-flash"
	defaultVisionModel    = "gemini-2.0-flash"
	defaultTemperature    = 0.9
	defaultTopP           = 1.0
	defaultTopK           = 1.0
	defaultMaxTokens      = 2048
	defaultTimeoutSeconds = 30
	defaultMaxAttempts    = 3
)

// GeminiConfig holds configuration for the Gemini adapters
// Required fields:
// - APIKey: Google AI API key
// Optional fields fall back to the default* constants.
type GeminiConfig struct {
	APIKey          string
	Model           string
	VisionModel     string
	Temperature     float32
	TopP            float32
	TopK            float32
	MaxOutputTokens int
	TimeoutSeconds  int
	MaxAttempts     int
}

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("Google AI API key is required")
	}

	// Validate temperature is in the valid range
	if config.Temperature != 0 && (config.Temperature < 0 || config.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", config.Temperature)
	}

	// Validate topP is in the valid range
	if config.TopP != 0 && (config.TopP < 0 || config.TopP > 1) {
		return fmt.Errorf("topP must be between 0 and 1, got %f", config.TopP)
	}

	if config.TopK < 0 {
		return fmt.Errorf("topK must be positive, got %f", config.TopK)
	}

	if config.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout must be positive, got %d", config.TimeoutSeconds)
	}

	if config.MaxAttempts < 0 {
		return fmt.Errorf("max attempts must be positive, got %d", config.MaxAttempts)
	}

	return nil
}

// withDefaults fills zero fields with the default constants
func (c GeminiConfig) withDefaults() GeminiConfig {
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.VisionModel == "" {
		c.VisionModel = defaultVisionModel
	}
	if c.Temperature == 0 {
		c.Temperature = defaultTemperature
	}
	if c.TopP == 0 {
		c.TopP = defaultTopP
	}
	if c.TopK == 0 {
		c.TopK = defaultTopK
	}
	if c.MaxOutputTokens == 0 {
		c.MaxOutputTokens = defaultMaxTokens
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	return c
}

// NewGeminiConfigFromEnv creates a GeminiConfig from environment variables
func NewGeminiConfigFromEnv() GeminiConfig {
	config := GeminiConfig{
		APIKey:      os.Getenv("GEMINI_API_KEY"),
		Model:       os.Getenv("GEMINI_MODEL"),
		VisionModel: os.Getenv("GEMINI_VISION_MODEL"),
	}

	if v := os.Getenv("GEMINI_TEMPERATURE"); v != "" {
		if temperature, err := strconv.ParseFloat(v, 32); err == nil {
			config.Temperature = float32(temperature)
		}
	}

	if v := os.Getenv("GEMINI_MAX_OUTPUT_TOKENS"); v != "" {
		if tokens, err := strconv.Atoi(v); err == nil && tokens > 0 {
			config.MaxOutputTokens = tokens
		}
	}

	if v := os.Getenv("GEMINI_TIMEOUT_SECONDS"); v != "" {
		if timeout, err := strconv.Atoi(v); err == nil && timeout > 0 {
			config.TimeoutSeconds = timeout
		}
	}

	return config
}

// GeminiHardcodedConfig holds the prompts and safety settings shared by all
// Gemini calls
var GeminiHardcodedConfig = struct {
	SystemPrompt       string
	InterruptionPrompt string
	VisionPrompt       string
	SummaryPrompt      string
	SafetySettings     []*genai.SafetySetting
}{
	SystemPrompt: `You're Jarvis, a witty, concise, and incredibly helpful AI assistant, inspired by the one from Iron Man.
Your purpose is to assist the user by interpreting their environment through a continuous stream of contextual data and responding to their commands.

You will receive a 'vistaContext' object with every prompt, containing:
- scene_description: A description of what the camera sees.
- visible_text: Text detected in the scene.
- entities_in_view: A list of recognized smart home entities. The entity with is_focused=true is the one the user is most likely looking at.
- audio_context: The most recently detected ambient sound.

Your Rules:
1. Persona: Be witty, a bit sarcastic, but always helpful and efficient. Keep responses brief. Address the user as "Sir" or "Ma'am" occasionally.
2. Function Calling: You MUST use the provided tools. Do not describe what you would do; simply call the function.
   - Use 'call_home_assistant' to control smart devices.
   - Use 'answer_user' to respond verbally to a direct question or to provide an observation.
   - Use 'recognize_song' if the user asks about music.
3. Context is Key: Use the 'vistaContext' to inform your answers.
4. Ambiguity: If a command is ambiguous and no entity is focused, ask for clarification with 'answer_user'.`,
	InterruptionPrompt: `Proactive check. Analyze the context for anything unusual, interesting, or that might require the user's attention.
Reply with exactly one short sentence, or with exactly NO_EVENT if nothing is worth mentioning.`,
	VisionPrompt: `Analyze this image and provide a concise description of the scene, identifying key objects and any visible text.
Return the response as a JSON object with 'scene_description' (string) and 'visible_text' (array of objects with 'text' and 'location').`,
	SummaryPrompt: `Summarize the following event log from a home vision assistant in two or three sentences. Mention anything that needs attention.`,
	SafetySettings: []*genai.SafetySetting{
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	},
}
