package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/vista/adapters"
	"github.com/satriahrh/vista/adapters/llm"
	"github.com/satriahrh/vista/adapters/stt"
	"github.com/satriahrh/vista/adapters/tts"
	"github.com/satriahrh/vista/domain/repositories"
	"github.com/satriahrh/vista/internal/api"
	"github.com/satriahrh/vista/internal/auth"
	"github.com/satriahrh/vista/internal/config"
	"github.com/satriahrh/vista/internal/websocket"
	"github.com/satriahrh/vista/usecase"
)

// model is what the brain needs from a language model
type model interface {
	repositories.Reasoner
	repositories.VisionAnalyzer
}

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if err := config.ValidateConfig(cfg); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize adapters
	registry := adapters.NewDemoSmartHomeRegistry()

	var llmService model
	if cfg.MockLLM {
		logger.Warn("Using keyword mock instead of Gemini")
		llmService = llm.NewMockGeminiClient(registry)
	} else {
		gemini, err := llm.NewGeminiLLM(ctx, cfg.Gemini, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Gemini", zap.Error(err))
		}
		llmService = gemini
	}

	var speech websocket.ServerSpeech
	if cfg.ServerSTT {
		audio := stt.DefaultAudioConfig
		audio.Language = cfg.STTLanguage
		speech.STT = stt.NewGoogleSpeechToText(logger)
		speech.AudioConfig = audio
		logger.Info("Server-side speech recognition enabled", zap.String("language", audio.Language))
	}
	if cfg.ServerTTS {
		elevenLabs, err := tts.NewElevenLabsTTS(cfg.ElevenLabs, logger)
		if err != nil {
			logger.Fatal("Failed to initialize ElevenLabs", zap.Error(err))
		}
		speech.TTS = elevenLabs
		speech.ContentType = elevenLabs.ContentType()
		logger.Info("Server-side narration enabled")
	}

	services := usecase.Services{
		Reasoner: llmService,
		Vision:   llmService,
		Registry: registry,
	}

	// Initialize WebSocket hub, one session per console
	hub := websocket.NewHub(services, cfg.Session, speech, clock.New(), logger)
	go hub.Run(ctx)

	cleanup := websocket.NewSessionCleanupService(hub, cfg.IdleTimeout, cfg.CleanupInterval, clock.New(), logger)
	cleanup.Start()
	defer cleanup.Stop()

	// Initialize API routes
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL, cfg.AccessKeys)
	chatService := usecase.NewChatService(llmService, llmService, logger)
	api.InitRoutes(e, api.NewHandler(hub, issuer, chatService, registry, logger))

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("VISTA brain started",
		zap.String("port", cfg.Port),
		zap.Int("consoles", len(cfg.AccessKeys)),
		zap.Bool("mockLLM", cfg.MockLLM))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}
	// closes every console session
	stop()

	logger.Info("Server exited")
}
