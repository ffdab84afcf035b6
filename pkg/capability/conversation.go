package capability

import (
	"context"
	"time"

	"decor-ai-be/internal/entity"
	"decor-ai-be/pkg/gemini"
	"decor-ai-be/pkg/metrics"
)

type geminiConversation struct {
	chat *gemini.Chat
}

// StartConversation seeds a remote chat with transcript. The transcript is
// translated once here; later sends rely on the chat's own history.
func (g *geminiCapability) StartConversation(transcript []entity.ChatTurn) Conversation {
	history := make([]*gemini.Content, 0, len(transcript))
	for _, turn := range transcript {
		role := gemini.RoleModel
		if turn.Role == entity.ChatRoleUser {
			role = gemini.RoleUser
		}
		history = append(history, gemini.NewTextContent(role, turn.Text))
	}
	return &geminiConversation{chat: g.client.NewChat(g.cfg.ChatModel, history)}
}

func (c *geminiConversation) Send(ctx context.Context, message string) (reply string, err error) {
	defer metrics.ObserveRemoteCall("chat", time.Now(), &err)

	reply, err = c.chat.SendMessage(ctx, message)
	if err != nil {
		return "", serviceFailure("chat", err)
	}
	return reply, nil
}
