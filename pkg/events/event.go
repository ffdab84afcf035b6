package events

import "time"

// DesignsGenerated is published after a generation completes.
const DesignsGenerated = "DESIGNS_GENERATED"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "DESIGNS_GENERATED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewDesignsGenerated describes a finished generation without the images.
func NewDesignsGenerated(workspaceId string, styles []string, duration time.Duration) BaseEvent {
	return BaseEvent{
		Type: DesignsGenerated,
		Data: map[string]interface{}{
			"workspace_id": workspaceId,
			"styles":       styles,
			"duration_ms":  duration.Milliseconds(),
		},
		OccurredAt: time.Now(),
	}
}
