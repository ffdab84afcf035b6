package dto

import "encoding/json"

// PublishWorkspaceMessage travels on the in-process bus from the services
// to the websocket hub.
type PublishWorkspaceMessage struct {
	WorkspaceId string          `json:"workspace_id"`
	Type        string          `json:"type"`
	Data        json.RawMessage `json:"data"`
}

// PushMessage is what a browser receives on its websocket.
type PushMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}
