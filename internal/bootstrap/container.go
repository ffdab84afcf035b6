package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"decor-ai-be/internal/config"
	"decor-ai-be/internal/controller"
	"decor-ai-be/internal/handler"
	"decor-ai-be/internal/pkg/logger"
	"decor-ai-be/internal/repository/memory"
	"decor-ai-be/internal/service"
	"decor-ai-be/internal/websocket"
	"decor-ai-be/internal/workflow"
	"decor-ai-be/pkg/capability"
	"decor-ai-be/pkg/gemini"

	pktNats "decor-ai-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

type Container struct {
	Logger logger.ILogger

	// Controllers
	WorkflowController controller.IWorkflowController
	ChatController     controller.IChatController

	// Background Services (Exposed for main.go to run)
	ConsumerService    service.IConsumerService
	WorkflowService    service.IWorkflowService
	DesignEventService *service.DesignEventService // nil without NATS

	// WebSockets
	WorkspaceSocketHandler *handler.WorkspaceSocketHandler
	WebSocketHub           *websocket.Hub

	WorkspaceRepository *memory.WorkspaceRepository

	closers []func()
}

// NewContainer wires every component. ctx bounds the background work of
// the services and should be cancelled on shutdown.
func NewContainer(ctx context.Context, cfg *config.Config) *Container {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())

	// Remote capability
	geminiClient := gemini.NewClient(gemini.Config{
		APIKey:     cfg.Gemini.APIKey,
		BaseURL:    cfg.Gemini.BaseURL,
		Timeout:    cfg.Gemini.Timeout,
		MaxRetries: uint(max(cfg.Gemini.MaxRetries, 0)),
	})
	designCapability := capability.NewGeminiCapability(geminiClient, capability.Config{
		DesignModel:    cfg.Gemini.DesignModel,
		ImageModel:     cfg.Gemini.ImageModel,
		SearchModel:    cfg.Gemini.SearchModel,
		PaletteModel:   cfg.Gemini.PaletteModel,
		EditModel:      cfg.Gemini.EditModel,
		ChatModel:      cfg.Gemini.ChatModel,
		ThinkingBudget: cfg.Gemini.ThinkingBudget,
	}, sysLogger)

	return NewContainerWithCapability(ctx, cfg, designCapability, sysLogger)
}

// NewContainerWithCapability wires everything around an existing
// capability. Tests use it with an in-memory fake.
func NewContainerWithCapability(ctx context.Context, cfg *config.Config, designCapability capability.Capability, sysLogger logger.ILogger) *Container {
	c := &Container{Logger: sysLogger}

	// 1. Event Bus
	// Publishing waits for the hub consumer's ack, keeping each workspace's
	// snapshots in order.
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{BlockPublishUntilSubscriberAck: true},
		watermillLogger,
	)
	c.closers = append(c.closers, func() { pubSub.Close() })

	// 2. Infrastructure
	// NATS
	var eventPublisher service.EventPublisher
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("Bootstrap", "Failed to connect to NATS Publisher", map[string]interface{}{"error": err.Error()})
		} else {
			eventPublisher = natsPub
			c.closers = append(c.closers, natsPub.Close)
		}

		natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("Bootstrap", "Failed to connect to NATS Subscriber", map[string]interface{}{"error": err.Error()})
		} else {
			c.DesignEventService = service.NewDesignEventService(natsSub, sysLogger)
			c.closers = append(c.closers, natsSub.Close)
		}
	}

	// Redis
	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			sysLogger.Warn("Bootstrap", "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
			opt = &redis.Options{
				Addr: cfg.App.RedisURL,
			}
		}
		rdb = redis.NewClient(opt)
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			sysLogger.Warn("Bootstrap", "Failed to connect to Redis", map[string]interface{}{"error": err.Error()})
		}
		c.closers = append(c.closers, func() { rdb.Close() })
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger(cfg.App.WsLogFilePath)
	c.WebSocketHub = websocket.NewHub(rdb, wsLogger)

	// 3. Services
	baseURL := strings.TrimRight(cfg.App.BaseURL, "/")
	c.WorkspaceRepository = memory.NewWorkspaceRepository(cfg.Workflow.WorkspaceTTL)
	// Workflows release their previews; the TTL only catches leaks.
	previews := workflow.NewPreviewRegistry(2 * cfg.Workflow.WorkspaceTTL)

	publisherService := service.NewPublisherService(cfg.App.EventTopic, pubSub)
	c.ConsumerService = service.NewConsumerService(
		pubSub,
		cfg.App.EventTopic,
		c.WebSocketHub, // Hub implements PushDelivery
		wsLogger,
	)

	c.WorkflowService = service.NewWorkflowService(
		ctx,
		c.WorkspaceRepository,
		previews,
		designCapability,
		publisherService,
		eventPublisher,
		sysLogger,
		service.WorkflowServiceConfig{
			GenerationTimeout:  cfg.Workflow.GenerationTimeout,
			PaletteTimeout:     cfg.Workflow.PaletteTimeout,
			EditTimeout:        cfg.Workflow.EditTimeout,
			PerspectiveTimeout: cfg.Workflow.PerspectiveTimeout,
			PreviewURL: func(workspaceId, token string) string {
				return fmt.Sprintf("%s/api/workflow/v1/%s/preview/%s", baseURL, workspaceId, token)
			},
		},
	)
	chatService := service.NewChatService(c.WorkspaceRepository, cfg.Workflow.ChatTimeout, sysLogger)

	// 4. Controllers & Handlers
	c.WorkflowController = controller.NewWorkflowController(c.WorkflowService)
	c.ChatController = controller.NewChatController(chatService)
	c.WorkspaceSocketHandler = handler.NewWorkspaceSocketHandler(c.WorkflowService, chatService, c.WebSocketHub, wsLogger)

	return c
}

// Close releases the connections opened by NewContainer, newest first.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.Logger.Sync()
}
