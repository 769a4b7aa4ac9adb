package repositories

import (
	"context"

	"github.com/satriahrh/vista/domain/entities"
)

// NoEventSentinel is the token the reasoner returns when a proactive check
// finds nothing worth mentioning
const NoEventSentinel = "NO_EVENT"

// Reasoner abstracts the function-calling chat model ("Jarvis")
type Reasoner interface {
	// Ask sends the user prompt plus context and returns exactly one action.
	// Plain text replies are returned as an implicit AnswerUser.
	Ask(ctx context.Context, prompt string, vctx entities.VistaContext, history []entities.ChatMessage) (entities.Action, error)
	// Interrupt asks for a one-line proactive insight. ok is false when the
	// model answered with the no-event sentinel.
	Interrupt(ctx context.Context, vctx entities.VistaContext) (insight string, ok bool, err error)
	// Summarize condenses a block of log lines
	Summarize(ctx context.Context, logText string) (string, error)
}

// VisionAnalyzer abstracts the cloud multimodal scene analysis
type VisionAnalyzer interface {
	// AnalyzeFrame describes a JPEG frame. Non-JSON model output is returned
	// as the scene description with no visible text.
	AnalyzeFrame(ctx context.Context, jpeg []byte) (entities.VisionResult, error)
}
