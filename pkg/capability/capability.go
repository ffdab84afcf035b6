// Package capability exposes the generative operations the design workflow
// depends on, typed in domain terms and backed by the Gemini REST API.
package capability

import (
	"context"
	"errors"
	"fmt"

	"decor-ai-be/internal/entity"
	"decor-ai-be/internal/pkg/logger"
	"decor-ai-be/pkg/gemini"
)

const moduleName = "capability"

var (
	// ErrParseFailure means the model answered but not in the declared shape.
	ErrParseFailure = errors.New("capability: unparseable model response")
	// ErrGenerationFailure means image synthesis produced nothing.
	ErrGenerationFailure = errors.New("capability: image generation failed")
	// ErrEditFailure means an edit response carried no image.
	ErrEditFailure = errors.New("capability: image edit failed")
	// ErrServiceFailure covers transport errors, non-2xx answers and empty candidates.
	ErrServiceFailure = errors.New("capability: remote service failure")
)

// Capability is every remote operation the workflow, the perspective cache
// and the chat session use. Each call is a single awaited round trip.
type Capability interface {
	RequestDesigns(ctx context.Context, image entity.Image, prefs entity.Preferences) ([]entity.DesignStub, error)
	SynthesizeImage(ctx context.Context, prompt string) (entity.Image, error)
	FindStores(ctx context.Context, itemName string, prefs entity.Preferences) ([]entity.Store, error)
	GenerateColorPalettes(ctx context.Context, image entity.Image) ([]entity.ColorPalette, error)
	EditImage(ctx context.Context, image entity.Image, instruction string) (entity.Image, error)
	StartConversation(transcript []entity.ChatTurn) Conversation
}

// Conversation is a remote dialogue that remembers its own history.
type Conversation interface {
	Send(ctx context.Context, message string) (string, error)
}

type Config struct {
	DesignModel    string
	ImageModel     string
	SearchModel    string
	PaletteModel   string
	EditModel      string
	ChatModel      string
	// ThinkingBudget of the design model. Zero means the default, negative
	// sends no thinking config.
	ThinkingBudget int
}

func DefaultConfig() Config {
	return Config{
		DesignModel:    "gemini-2.5-pro",
		ImageModel:     "imagen-4.0-generate-001",
		SearchModel:    "gemini-2.5-flash",
		PaletteModel:   "gemini-2.5-flash",
		EditModel:      "gemini-2.5-flash-image",
		ChatModel:      "gemini-2.5-flash",
		ThinkingBudget: 32768,
	}
}

type geminiCapability struct {
	client *gemini.Client
	cfg    Config
	logger logger.ILogger
}

func NewGeminiCapability(client *gemini.Client, cfg Config, log logger.ILogger) Capability {
	def := DefaultConfig()
	if cfg.DesignModel == "" {
		cfg.DesignModel = def.DesignModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = def.ImageModel
	}
	if cfg.SearchModel == "" {
		cfg.SearchModel = def.SearchModel
	}
	if cfg.PaletteModel == "" {
		cfg.PaletteModel = def.PaletteModel
	}
	if cfg.EditModel == "" {
		cfg.EditModel = def.EditModel
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = def.ChatModel
	}
	if cfg.ThinkingBudget == 0 {
		cfg.ThinkingBudget = def.ThinkingBudget
	}
	return &geminiCapability{client: client, cfg: cfg, logger: log}
}

// serviceFailure tags a transport level error so callers can match it with
// errors.Is while keeping the cause in the message.
func serviceFailure(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrServiceFailure, err)
}
