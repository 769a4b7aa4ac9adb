package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/satriahrh/vista/adapters/llm"
	"github.com/satriahrh/vista/adapters/tts"
	"github.com/satriahrh/vista/internal/contextbuilder"
	"github.com/satriahrh/vista/internal/orchestrator"
	"github.com/satriahrh/vista/internal/voice"
	"github.com/satriahrh/vista/usecase"
)

const (
	defaultPort            = "8080"
	defaultTokenTTL        = 24 * time.Hour
	defaultIdleTimeout     = 10 * time.Minute
	defaultCleanupInterval = time.Minute
	defaultSTTLanguage     = "en-US"
)

// Config is the process configuration of the VISTA brain
type Config struct {
	Port string

	// JWTSecret signs console tokens
	JWTSecret []byte
	TokenTTL  time.Duration
	// AccessKeys maps a console access key to its console id
	AccessKeys map[string]string

	// MockLLM answers from keywords instead of calling Gemini
	MockLLM bool
	Gemini  llm.GeminiConfig

	// ServerSTT feeds binary microphone frames to Google Cloud Speech
	ServerSTT   bool
	STTLanguage string
	// ServerTTS narrates through ElevenLabs instead of the browser voice
	ServerTTS  bool
	ElevenLabs tts.ElevenLabsConfig

	Session         usecase.SessionConfig
	IdleTimeout     time.Duration
	CleanupInterval time.Duration
}

// Load reads a .env file when present, then the environment
func Load() (Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	config := Config{
		Port:            getString("PORT", defaultPort),
		JWTSecret:       []byte(os.Getenv("JWT_SECRET")),
		MockLLM:         getBool("VISTA_MOCK_LLM", false),
		Gemini:          llm.NewGeminiConfigFromEnv(),
		ServerSTT:       getBool("VISTA_SERVER_STT", false),
		STTLanguage:     getString("VISTA_STT_LANGUAGE", defaultSTTLanguage),
		ServerTTS:       getBool("VISTA_SERVER_TTS", false),
		ElevenLabs:      tts.NewElevenLabsConfigFromEnv(),
		Session:         usecase.DefaultSessionConfig(),
		IdleTimeout:     defaultIdleTimeout,
		CleanupInterval: defaultCleanupInterval,
		TokenTTL:        defaultTokenTTL,
	}

	keys, err := parseAccessKeys(os.Getenv("VISTA_ACCESS_KEYS"))
	if err != nil {
		return Config{}, err
	}
	config.AccessKeys = keys

	durations := []struct {
		key    string
		target *time.Duration
	}{
		{"VISTA_TOKEN_TTL", &config.TokenTTL},
		{"VISTA_IDLE_TIMEOUT", &config.IdleTimeout},
		{"VISTA_CLEANUP_INTERVAL", &config.CleanupInterval},
		{"VISTA_VISION_INTERVAL", &config.Session.Orchestrator.VisionInterval},
		{"VISTA_INTERRUPTION_INTERVAL", &config.Session.Orchestrator.InterruptionInterval},
		{"VISTA_WAKE_WINDOW", &config.Session.Voice.WakeWindow},
		{"VISTA_MANUAL_WINDOW", &config.Session.Voice.ManualWindow},
		{"VISTA_RECONNECT_BASE", &config.Session.Voice.BackoffBase},
		{"VISTA_RECONNECT_MAX", &config.Session.Voice.BackoffMax},
		{"VISTA_RECONNECT_STABLE_AFTER", &config.Session.Voice.StableAfter},
		{"VISTA_CAPTURE_TIMEOUT", &config.Session.Context.CaptureTimeout},
		{"VISTA_VISION_TIMEOUT", &config.Session.Context.VisionTimeout},
	}
	for _, d := range durations {
		if err := getDuration(d.key, d.target); err != nil {
			return Config{}, err
		}
	}

	if phrases := os.Getenv("VISTA_WAKE_PHRASES"); phrases != "" {
		config.Session.Voice.WakePhrases = splitList(phrases)
	}
	if ack := os.Getenv("VISTA_ACKNOWLEDGEMENT"); ack != "" {
		config.Session.Voice.Acknowledgement = ack
	}

	return config, nil
}

// ValidateConfig validates the Config
func ValidateConfig(config Config) error {
	if config.Port == "" {
		return fmt.Errorf("port is required")
	}
	if len(config.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 bytes")
	}
	if config.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	if len(config.AccessKeys) == 0 {
		return fmt.Errorf("VISTA_ACCESS_KEYS must name at least one console")
	}
	if config.IdleTimeout <= 0 || config.CleanupInterval <= 0 {
		return fmt.Errorf("idle timeout and cleanup interval must be positive")
	}

	if !config.MockLLM {
		if err := llm.ValidateGeminiConfig(config.Gemini); err != nil {
			return fmt.Errorf("gemini: %w", err)
		}
	}
	if config.ServerTTS {
		if err := tts.ValidateElevenLabsConfig(config.ElevenLabs); err != nil {
			return fmt.Errorf("elevenlabs: %w", err)
		}
	}

	if err := voice.ValidateConfig(config.Session.Voice); err != nil {
		return fmt.Errorf("voice: %w", err)
	}
	if err := orchestrator.ValidateConfig(config.Session.Orchestrator); err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	if err := contextbuilder.ValidateConfig(config.Session.Context); err != nil {
		return fmt.Errorf("context: %w", err)
	}
	return nil
}

// parseAccessKeys parses "key=console,key2=console2"
func parseAccessKeys(raw string) (map[string]string, error) {
	keys := make(map[string]string)
	for _, pair := range splitList(raw) {
		key, consoleID, ok := strings.Cut(pair, "=")
		key, consoleID = strings.TrimSpace(key), strings.TrimSpace(consoleID)
		if !ok || key == "" || consoleID == "" {
			return nil, fmt.Errorf("invalid VISTA_ACCESS_KEYS entry %q, want key=console_id", pair)
		}
		keys[key] = consoleID
	}
	return keys, nil
}

func splitList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getDuration accepts Go durations ("1500ms") or whole seconds ("10")
func getDuration(key string, target *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		*target = time.Duration(seconds) * time.Second
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*target = d
	return nil
}
