// Package chat keeps the support chatbot transcript of a workspace.
package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"decor-ai-be/internal/constant"
	"decor-ai-be/internal/entity"
	"decor-ai-be/internal/pkg/logger"
	"decor-ai-be/pkg/capability"

	"github.com/google/uuid"
)

const moduleName = "chat"

// Session is a transcript plus the remote conversation backing it. The
// remote handle is created on the first message and seeded with the
// transcript up to that point; afterwards it keeps its own history.
type Session struct {
	capability capability.Capability
	logger     logger.ILogger
	onChange   func([]entity.ChatTurn)

	// sendMu serializes Send so turns never interleave.
	sendMu sync.Mutex

	mu           sync.Mutex
	transcript   []entity.ChatTurn
	conversation capability.Conversation
	epoch        uint64
}

// NewSession starts a transcript with the greeting. onChange runs with the
// session locked and must not call back into it.
func NewSession(c capability.Capability, log logger.ILogger, onChange func([]entity.ChatTurn)) *Session {
	return &Session{
		capability: c,
		logger:     log,
		onChange:   onChange,
		transcript: []entity.ChatTurn{greeting()},
	}
}

func greeting() entity.ChatTurn {
	return newTurn(entity.ChatRoleAssistant, constant.ChatGreeting)
}

func newTurn(role entity.ChatRole, text string) entity.ChatTurn {
	return entity.ChatTurn{
		Id:        uuid.NewString(),
		Role:      role,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

// Send appends text as a user turn, asks the remote for a reply and appends
// it. A failed round trip appends an apology instead. Blank text is ignored.
func (s *Session) Send(ctx context.Context, text string) []entity.ChatTurn {
	if strings.TrimSpace(text) == "" {
		return s.Transcript()
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	if s.conversation == nil {
		s.conversation = s.capability.StartConversation(copyTurns(s.transcript))
	}
	conversation := s.conversation
	epoch := s.epoch
	s.transcript = append(s.transcript, newTurn(entity.ChatRoleUser, text))
	s.notify(copyTurns(s.transcript))
	s.mu.Unlock()

	reply, err := conversation.Send(ctx, text)
	if err != nil {
		s.logger.Error(moduleName, "Chat round trip failed", map[string]interface{}{
			"error": err.Error(),
		})
		reply = constant.ChatApology
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		// Disposed while waiting; the reply belongs to a dropped transcript.
		return copyTurns(s.transcript)
	}
	s.transcript = append(s.transcript, newTurn(entity.ChatRoleAssistant, reply))
	snap := copyTurns(s.transcript)
	s.notify(snap)
	return snap
}

func (s *Session) Transcript() []entity.ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyTurns(s.transcript)
}

// Dispose drops the remote conversation and starts over from the greeting.
func (s *Session) Dispose() []entity.ChatTurn {
	s.mu.Lock()
	s.epoch++
	s.conversation = nil
	s.transcript = []entity.ChatTurn{greeting()}
	snap := copyTurns(s.transcript)
	s.notify(snap)
	s.mu.Unlock()
	return snap
}

func (s *Session) notify(snap []entity.ChatTurn) {
	if s.onChange != nil {
		s.onChange(snap)
	}
}

func copyTurns(turns []entity.ChatTurn) []entity.ChatTurn {
	out := make([]entity.ChatTurn, len(turns))
	copy(out, turns)
	return out
}
