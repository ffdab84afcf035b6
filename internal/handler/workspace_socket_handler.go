package handler

import (
	"encoding/json"

	"decor-ai-be/internal/constant"
	"decor-ai-be/internal/dto"
	"decor-ai-be/internal/pkg/logger"
	"decor-ai-be/internal/pkg/serverutils"
	"decor-ai-be/internal/service"
	internalWS "decor-ai-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WorkspaceSocketHandler streams workflow, perspective and chat snapshots
// of one workspace to the browser.
type WorkspaceSocketHandler struct {
	workflowService service.IWorkflowService
	chatService     service.IChatService
	hub             *internalWS.Hub
	logger          logger.ILogger
}

func NewWorkspaceSocketHandler(workflowService service.IWorkflowService, chatService service.IChatService, hub *internalWS.Hub, log logger.ILogger) *WorkspaceSocketHandler {
	return &WorkspaceSocketHandler{
		workflowService: workflowService,
		chatService:     chatService,
		hub:             hub,
		logger:          log,
	}
}

// ServeWs handles websocket requests from the peer. The first frames are
// the current workflow state and chat transcript.
func (h *WorkspaceSocketHandler) ServeWs(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	workspaceId := c.Params("id")
	state, err := h.workflowService.GetState(c.UserContext(), workspaceId)
	if err != nil {
		return serverutils.NewNotFoundError("Workspace not found", err)
	}
	transcript, err := h.chatService.Transcript(c.UserContext(), workspaceId)
	if err != nil {
		return serverutils.NewNotFoundError("Workspace not found", err)
	}

	initial := make([][]byte, 0, 2)
	for _, msg := range []struct {
		msgType string
		data    interface{}
	}{
		{constant.PushTypeWorkflowState, state},
		{constant.PushTypeChat, transcript},
	} {
		frame, err := encodePush(msg.msgType, msg.data)
		if err != nil {
			return err
		}
		initial = append(initial, frame)
	}

	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("WorkspaceSocketHandler", "Starting WebSocket session", map[string]interface{}{"workspace_id": workspaceId})
		internalWS.ServeWs(h.hub, conn, workspaceId, initial...)
		h.logger.Info("WorkspaceSocketHandler", "WebSocket session ended", map[string]interface{}{"workspace_id": workspaceId})
	})(c)
}

// RegisterRoutes registers the websocket route.
func (h *WorkspaceSocketHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/ws/:id", h.ServeWs)
}

func encodePush(msgType string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(dto.PushMessage{Type: msgType, Data: raw})
}
