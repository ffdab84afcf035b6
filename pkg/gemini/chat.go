package gemini

import (
	"context"
	"sync"
)

// Chat is a stateful conversation. History given at creation is sent with
// every request together with the turns exchanged through SendMessage, so
// callers never resend earlier turns themselves.
type Chat struct {
	client *Client
	model  string

	mu      sync.Mutex
	history []*Content
}

func (c *Client) NewChat(model string, history []*Content) *Chat {
	seed := make([]*Content, len(history))
	copy(seed, history)
	return &Chat{client: c, model: model, history: seed}
}

// SendMessage sends one user message and records both turns on success.
// Concurrent calls are serialized.
func (ch *Chat) SendMessage(ctx context.Context, message string) (string, error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	userTurn := NewTextContent(RoleUser, message)
	contents := make([]*Content, 0, len(ch.history)+1)
	contents = append(contents, ch.history...)
	contents = append(contents, userTurn)

	res, err := ch.client.GenerateContent(ctx, ch.model, &GenerateContentRequest{Contents: contents})
	if err != nil {
		return "", err
	}

	reply := res.Text()
	if reply == "" {
		return "", ErrEmptyResponse
	}

	ch.history = append(ch.history, userTurn, NewTextContent(RoleModel, reply))
	return reply, nil
}

// History returns a copy of the turns the chat will send next time.
func (ch *Chat) History() []*Content {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	out := make([]*Content, len(ch.history))
	copy(out, ch.history)
	return out
}
