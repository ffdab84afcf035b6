package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"decor-ai-be/internal/chat"
	"decor-ai-be/internal/constant"
	"decor-ai-be/internal/dto"
	"decor-ai-be/internal/entity"
	"decor-ai-be/internal/pkg/logger"
	"decor-ai-be/internal/repository/memory"
	"decor-ai-be/internal/workflow"
	"decor-ai-be/pkg/capability"
	"decor-ai-be/pkg/events"

	"github.com/google/uuid"
)

var (
	ErrWorkspaceNotFound = errors.New("workspace not found")
	ErrPreviewNotFound   = errors.New("preview not found")
)

// EventPublisher publishes domain events. Implemented by the NATS publisher.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type IWorkflowService interface {
	CreateWorkspace(ctx context.Context) (*dto.CreateWorkspaceResponse, error)
	DeleteWorkspace(ctx context.Context, workspaceId string) error
	GetState(ctx context.Context, workspaceId string) (entity.WorkflowState, error)
	UploadImage(ctx context.Context, workspaceId string, data []byte) (entity.WorkflowState, error)
	Preview(ctx context.Context, workspaceId, token string) (workflow.Preview, error)
	UpdatePreferences(ctx context.Context, workspaceId string, req *dto.UpdatePreferencesRequest) (entity.WorkflowState, error)
	StartGeneration(ctx context.Context, workspaceId string) (entity.WorkflowState, error)
	GeneratePalettes(ctx context.Context, workspaceId string) (entity.WorkflowState, error)
	SelectPalette(ctx context.Context, workspaceId string, index int) (entity.WorkflowState, error)
	OpenEditor(ctx context.Context, workspaceId, optionId string) (entity.WorkflowState, error)
	CloseEditor(ctx context.Context, workspaceId string) (entity.WorkflowState, error)
	ApplyEdit(ctx context.Context, workspaceId string, req *dto.ApplyEditRequest) (entity.WorkflowState, error)
	OpenPerspective(ctx context.Context, workspaceId, optionId string) (entity.PerspectiveSet, error)
	ClosePerspective(ctx context.Context, workspaceId string) (entity.WorkflowState, error)
	GetPerspective(ctx context.Context, workspaceId, optionId string) (entity.PerspectiveSet, error)
	SelectPerspective(ctx context.Context, workspaceId, optionId string, angle entity.Angle) (entity.PerspectiveSet, error)
	RetryPerspective(ctx context.Context, workspaceId, optionId string, angle entity.Angle) (entity.PerspectiveSet, error)
	Restart(ctx context.Context, workspaceId string) (entity.WorkflowState, error)
	// Wait blocks until every background task has finished.
	Wait()
}

type WorkflowServiceConfig struct {
	GenerationTimeout  time.Duration
	PaletteTimeout     time.Duration
	EditTimeout        time.Duration
	PerspectiveTimeout time.Duration
	// PreviewURL builds the URL a browser loads an uploaded image from.
	PreviewURL func(workspaceId, token string) string
}

type workflowService struct {
	baseCtx        context.Context
	repo           *memory.WorkspaceRepository
	previews       *workflow.PreviewRegistry
	capability     capability.Capability
	publisher      IPublisherService
	eventPublisher EventPublisher
	logger         logger.ILogger
	cfg            WorkflowServiceConfig

	wg sync.WaitGroup
}

// NewWorkflowService runs background tasks on ctx, so cancelling it aborts
// every generation in progress. eventPublisher may be nil.
func NewWorkflowService(
	ctx context.Context,
	repo *memory.WorkspaceRepository,
	previews *workflow.PreviewRegistry,
	c capability.Capability,
	publisher IPublisherService,
	eventPublisher EventPublisher,
	log logger.ILogger,
	cfg WorkflowServiceConfig,
) IWorkflowService {
	if cfg.PreviewURL == nil {
		cfg.PreviewURL = func(workspaceId, token string) string {
			return fmt.Sprintf("/api/workflow/v1/%s/preview/%s", workspaceId, token)
		}
	}
	return &workflowService{
		baseCtx:        ctx,
		repo:           repo,
		previews:       previews,
		capability:     c,
		publisher:      publisher,
		eventPublisher: eventPublisher,
		logger:         log,
		cfg:            cfg,
	}
}

func (s *workflowService) CreateWorkspace(ctx context.Context) (*dto.CreateWorkspaceResponse, error) {
	id := uuid.NewString()

	wf := workflow.New(s.baseCtx, id, s.capability, s.previews, s.logger, workflow.Config{
		PreviewURL:         func(token string) string { return s.cfg.PreviewURL(id, token) },
		PerspectiveTimeout: s.cfg.PerspectiveTimeout,
		OnChange: func(state entity.WorkflowState) {
			s.push(id, constant.PushTypeWorkflowState, state)
		},
		OnPerspective: func(set entity.PerspectiveSet) {
			s.push(id, constant.PushTypePerspective, set)
		},
	})
	session := chat.NewSession(s.capability, s.logger, func(turns []entity.ChatTurn) {
		s.push(id, constant.PushTypeChat, dto.ChatTranscriptResponse{WorkspaceId: id, Turns: turns})
	})

	s.repo.Save(&memory.Workspace{
		Id:        id,
		Workflow:  wf,
		Chat:      session,
		CreatedAt: time.Now(),
	})
	s.logger.Info("WorkflowService", "Workspace created", map[string]interface{}{"workspace_id": id})

	return &dto.CreateWorkspaceResponse{Id: id, State: wf.State()}, nil
}

func (s *workflowService) DeleteWorkspace(ctx context.Context, workspaceId string) error {
	ws, err := s.workspace(workspaceId)
	if err != nil {
		return err
	}
	ws.Chat.Dispose()
	s.repo.Delete(workspaceId)
	return nil
}

func (s *workflowService) GetState(ctx context.Context, workspaceId string) (entity.WorkflowState, error) {
	ws, err := s.workspace(workspaceId)
	if err != nil {
		return entity.WorkflowState{}, err
	}
	return ws.Workflow.State(), nil
}

func (s *workflowService) UploadImage(ctx context.Context, workspaceId string, data []byte) (entity.WorkflowState, error) {
	ws, err := s.workspace(workspaceId)
	if err != nil {
		return entity.WorkflowState{}, err
	}
	if err := ws.Workflow.UploadImage(data); err != nil {
		return entity.WorkflowState{}, err
	}
	return ws.Workflow.State(), nil
}

func (s *workflowService) Preview(ctx context.Context, workspaceId, token string) (workflow.Preview, error) {
	ws, err := s.workspace(workspaceId)
	if err != nil {
		return workflow.Preview{}, err
	}
	preview, ok := ws.Workflow.Preview(token)
	if !ok {
		return workflow.Preview{}, ErrPreviewNotFound
	}
	return preview, nil
}

func (s *workflowService) UpdatePreferences(ctx context.Context, workspaceId string, req *dto.UpdatePreferencesRequest) (entity.WorkflowState, error) {
	ws, err := s.workspace(workspaceId)
	if err != nil {
		return entity.WorkflowState{}, err
	}
	ws.Workflow.UpdatePreferences(req.ToPatch())
	return ws.Workflow.State(), nil
}

// StartGeneration switches to the generating step and returns right away.
// The designs arrive through the push channel.
func (s *workflowService) StartGeneration(ctx context.Context, workspaceId string) (entity.WorkflowState, error) {
	ws, err := s.workspace(workspaceId)
	if err != nil {
		return entity.WorkflowState{}, err
	}
	task, err := ws.Workflow.BeginGeneration()
	if err != nil {
		return entity.WorkflowState{}, err
	}

	start := time.Now()
	s.runAsync(ws, "generation", s.cfg.GenerationTimeout, task, func(err error) {
		if err == nil {
			s.publishDesignsGenerated(ws, time.Since(start))
		}
	})
	return ws.Workflow.State(), nil
}

func (s *workflowService) GeneratePalettes(ctx context.Context, workspaceId string) (entity.WorkflowState, error) {
	ws, err := s.workspace(workspaceId)
	if err != nil {
		return entity.WorkflowState{}, err
	}
	task, err := ws.Workflow.BeginPalettes()
	if err != nil {
		return entity.WorkflowState{}, err
	}
	s.runAsync(ws, "palettes", s.cfg.PaletteTimeout, task, nil)
	return ws.Workflow.State(), nil
}

func (s *workflowService) SelectPalette(ctx context.Context, workspaceId string, index int) (entity.WorkflowState, error) {
	ws, err := s.workspace(workspaceId)
	if err != nil {
		return entity.WorkflowState{}, err
	}
	if err := ws.Workflow.SelectPalette(index); err != nil {
		return entity.WorkflowState{}, err
	}
	return ws.Workflow.State(), nil
}

func (s *workflowService) OpenEditor(ctx context.Context, workspaceId, optionId string) (entity.WorkflowState, error) {
	ws, err := s.workspace(workspaceId)
	if err != nil {
		return entity.WorkflowState{}, err
	}
	if err := ws.Workflow.OpenEditor(optionId); err != nil {
		return entity.WorkflowState{}, err
	}
	return ws.Workflow.State(), nil
}

func (s *workflowService) CloseEditor(ctx context.Context, workspaceId string) (entity.WorkflowState, error) {
	ws, err := s.workspace(workspaceId)
	if err != nil {
		return entity.WorkflowState{}, err
	}
	ws.Workflow.CloseEditor()
	return ws.Workflow.State(), nil
}

func (s *workflowService) ApplyEdit(ctx context.Context, workspaceId string, req *dto.ApplyEditRequest) (entity.WorkflowState, error) {
	ws, err := s.workspace(workspaceId)
	if err != nil {
		return entity.WorkflowState{}, err
	}
	task, err := ws.Workflow.BeginEdit(req.OptionId, req.Instruction)
	if err != nil {
		return entity.WorkflowState{}, err
	}
	s.runAsync(ws, "edit", s.cfg.EditTimeout, task, nil)
	return ws.Workflow.State(), nil
}

func (s *workflowService) OpenPerspective(ctx context.Context, workspaceId, optionId string) (entity.PerspectiveSet, error) {
	ws, err := s.workspace(workspaceId)
	if err != nil {
		return entity.PerspectiveSet{}, err
	}
	return ws.Workflow.OpenPerspectiveViewer(optionId)
}

func (s *workflowService) ClosePerspective(ctx context.Context, workspaceId string) (entity.WorkflowState, error) {
	ws, err := s.workspace(workspaceId)
	if err != nil {
		return entity.WorkflowState{}, err
	}
	ws.Workflow.ClosePerspectiveViewer()
	return ws.Workflow.State(), nil
}

func (s *workflowService) GetPerspective(ctx context.Context, workspaceId, optionId string) (entity.PerspectiveSet, error) {
	ws, err := s.workspace(workspaceId)
	if err != nil {
		return entity.PerspectiveSet{}, err
	}
	set, ok := ws.Workflow.Perspectives().Get(optionId)
	if !ok {
		return entity.PerspectiveSet{}, workflow.ErrOptionNotFound
	}
	return set, nil
}

func (s *workflowService) SelectPerspective(ctx context.Context, workspaceId, optionId string, angle entity.Angle) (entity.PerspectiveSet, error) {
	ws, err := s.workspace(workspaceId)
	if err != nil {
		return entity.PerspectiveSet{}, err
	}
	return ws.Workflow.Perspectives().Select(optionId, angle)
}

func (s *workflowService) RetryPerspective(ctx context.Context, workspaceId, optionId string, angle entity.Angle) (entity.PerspectiveSet, error) {
	ws, err := s.workspace(workspaceId)
	if err != nil {
		return entity.PerspectiveSet{}, err
	}
	return ws.Workflow.Perspectives().Retry(optionId, angle)
}

func (s *workflowService) Restart(ctx context.Context, workspaceId string) (entity.WorkflowState, error) {
	ws, err := s.workspace(workspaceId)
	if err != nil {
		return entity.WorkflowState{}, err
	}
	ws.Workflow.Restart()
	return ws.Workflow.State(), nil
}

func (s *workflowService) Wait() {
	s.wg.Wait()
}

func (s *workflowService) workspace(id string) (*memory.Workspace, error) {
	ws, ok := s.repo.Get(id)
	if !ok {
		return nil, ErrWorkspaceNotFound
	}
	return ws, nil
}

// runAsync finishes task in the background on the service context. done,
// if set, runs afterwards with the task's error.
func (s *workflowService) runAsync(ws *memory.Workspace, operation string, timeout time.Duration, task workflow.Task, done func(error)) {
	if task == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx := s.baseCtx
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		err := task(ctx)
		if err != nil && !errors.Is(err, workflow.ErrStaleResult) {
			s.logger.Warn("WorkflowService", "Background task failed", map[string]interface{}{
				"workspace_id": ws.Id,
				"operation":    operation,
				"error":        err.Error(),
			})
		}
		if done != nil {
			done(err)
		}
	}()
}

func (s *workflowService) publishDesignsGenerated(ws *memory.Workspace, duration time.Duration) {
	if s.eventPublisher == nil {
		return
	}

	state := ws.Workflow.State()
	styles := make([]string, len(state.DesignOptions))
	for i, option := range state.DesignOptions {
		styles[i] = option.StyleName
	}

	if err := s.eventPublisher.Publish(s.baseCtx, events.NewDesignsGenerated(ws.Id, styles, duration)); err != nil {
		s.logger.Warn("WorkflowService", "Failed to publish event", map[string]interface{}{
			"workspace_id": ws.Id,
			"event":        events.DesignsGenerated,
			"error":        err.Error(),
		})
	}
}

// push forwards a snapshot to the websocket consumer. It runs inside the
// owner's lock, which keeps snapshots of one workspace in order.
func (s *workflowService) push(workspaceId, msgType string, data interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("WorkflowService", "Failed to encode push data", map[string]interface{}{
			"workspace_id": workspaceId,
			"type":         msgType,
			"error":        err.Error(),
		})
		return
	}

	payload, err := json.Marshal(dto.PublishWorkspaceMessage{WorkspaceId: workspaceId, Type: msgType, Data: raw})
	if err != nil {
		return
	}
	if err := s.publisher.Publish(s.baseCtx, payload); err != nil {
		s.logger.Warn("WorkflowService", "Failed to publish push message", map[string]interface{}{
			"workspace_id": workspaceId,
			"type":         msgType,
			"error":        err.Error(),
		})
	}
}
