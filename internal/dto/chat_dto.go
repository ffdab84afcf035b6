package dto

import "decor-ai-be/internal/entity"

type SendChatRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

type ChatTranscriptResponse struct {
	WorkspaceId string            `json:"workspace_id"`
	Turns       []entity.ChatTurn `json:"turns"`
}
