package service

import (
	"context"
	"fmt"

	"decor-ai-be/internal/pkg/logger"
	"decor-ai-be/pkg/events"
	pktNats "decor-ai-be/pkg/nats"
)

// EventSubscriber is implemented by the NATS subscriber.
type EventSubscriber interface {
	Subscribe(ctx context.Context, subject, durableName string, handler pktNats.EventHandler) error
}

// DesignEventService keeps an audit log of finished generations across
// every instance of the service.
type DesignEventService struct {
	subscriber EventSubscriber
	logger     logger.ILogger
}

func NewDesignEventService(sub EventSubscriber, log logger.ILogger) *DesignEventService {
	return &DesignEventService{
		subscriber: sub,
		logger:     log,
	}
}

// Start begins listening to the event bus.
func (s *DesignEventService) Start(ctx context.Context) error {
	subject := pktNats.Subject(events.DesignsGenerated)
	if err := s.subscriber.Subscribe(ctx, subject, "design-audit-worker", s.handleEvent); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	s.logger.Info("DesignEventService", "Listening to "+subject, nil)
	return nil
}

func (s *DesignEventService) handleEvent(ctx context.Context, event events.Event) error {
	payload := event.Payload()
	workspaceId, _ := payload["workspace_id"].(string)
	if workspaceId == "" {
		// Nothing to audit; acking keeps it from being redelivered.
		s.logger.Warn("DesignEventService", "Event without workspace id", map[string]interface{}{"type": event.EventType()})
		return nil
	}

	s.logger.Info("DesignEventService", "Designs generated", map[string]interface{}{
		"workspace_id": workspaceId,
		"styles":       payload["styles"],
		"duration_ms":  payload["duration_ms"],
		"occurred_at":  event.Timestamp(),
	})
	return nil
}
