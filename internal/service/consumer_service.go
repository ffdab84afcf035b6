package service

import (
	"context"
	"encoding/json"

	"decor-ai-be/internal/dto"
	"decor-ai-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// PushDelivery sends a typed message to the browsers watching a workspace.
// Implemented by the websocket hub.
type PushDelivery interface {
	Send(workspaceId, msgType string, data json.RawMessage)
}

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	delivery  PushDelivery
	logger    logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	delivery PushDelivery,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:    pubSub,
		topicName: topicName,
		delivery:  delivery,
		logger:    log,
	}
}

// Consume forwards workspace messages to the push channel until ctx is done.
func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(msg *message.Message) {
	// Nothing here is retriable, so every message is acked.
	defer msg.Ack()

	var payload dto.PublishWorkspaceMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("ConsumerService", "Failed to unmarshal message", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		return
	}

	cs.delivery.Send(payload.WorkspaceId, payload.Type, payload.Data)
}
