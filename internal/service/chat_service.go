package service

import (
	"context"
	"time"

	"decor-ai-be/internal/dto"
	"decor-ai-be/internal/pkg/logger"
	"decor-ai-be/internal/repository/memory"
)

type IChatService interface {
	Transcript(ctx context.Context, workspaceId string) (*dto.ChatTranscriptResponse, error)
	Send(ctx context.Context, workspaceId string, req *dto.SendChatRequest) (*dto.ChatTranscriptResponse, error)
	Dispose(ctx context.Context, workspaceId string) (*dto.ChatTranscriptResponse, error)
}

type chatService struct {
	repo    *memory.WorkspaceRepository
	timeout time.Duration
	logger  logger.ILogger
}

func NewChatService(repo *memory.WorkspaceRepository, timeout time.Duration, log logger.ILogger) IChatService {
	return &chatService{
		repo:    repo,
		timeout: timeout,
		logger:  log,
	}
}

func (s *chatService) Transcript(ctx context.Context, workspaceId string) (*dto.ChatTranscriptResponse, error) {
	ws, ok := s.repo.Get(workspaceId)
	if !ok {
		return nil, ErrWorkspaceNotFound
	}
	return &dto.ChatTranscriptResponse{WorkspaceId: workspaceId, Turns: ws.Chat.Transcript()}, nil
}

// Send blocks until the assistant replied. A failed round trip still
// succeeds, with an apology as the last turn.
func (s *chatService) Send(ctx context.Context, workspaceId string, req *dto.SendChatRequest) (*dto.ChatTranscriptResponse, error) {
	ws, ok := s.repo.Get(workspaceId)
	if !ok {
		return nil, ErrWorkspaceNotFound
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	turns := ws.Chat.Send(ctx, req.Message)
	return &dto.ChatTranscriptResponse{WorkspaceId: workspaceId, Turns: turns}, nil
}

func (s *chatService) Dispose(ctx context.Context, workspaceId string) (*dto.ChatTranscriptResponse, error) {
	ws, ok := s.repo.Get(workspaceId)
	if !ok {
		return nil, ErrWorkspaceNotFound
	}
	turns := ws.Chat.Dispose()
	s.logger.Info("ChatService", "Chat disposed", map[string]interface{}{"workspace_id": workspaceId})
	return &dto.ChatTranscriptResponse{WorkspaceId: workspaceId, Turns: turns}, nil
}
