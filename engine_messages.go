package mentorbridge

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/mentorbridge/mentorbridge/permission"
)

// SendMessage stores a message from the caller to toUserID. created_at never
// decreases for one sender, even if the clock steps back.
func (e *Engine) SendMessage(ctx context.Context, id *Identity, toUserID, content string) (Message, error) {
	if err := e.require(id, permission.ActionSendMessage); err != nil {
		return Message{}, err
	}
	if e.messages == nil {
		return Message{}, ErrStoreNotConfigured
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return Message{}, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	if len(content) > e.config.Messages.MaxLength {
		return Message{}, fmt.Errorf("%w: content exceeds %d bytes", ErrInvalidInput, e.config.Messages.MaxLength)
	}
	toUserID = strings.TrimSpace(toUserID)
	if toUserID == "" || toUserID == id.UserID {
		return Message{}, fmt.Errorf("%w: invalid recipient", ErrInvalidInput)
	}
	if _, err := e.credentials.GetUserByID(ctx, toUserID); err != nil {
		return Message{}, e.backendError("message.recipient", err)
	}

	lock := e.senderLock(id.UserID)
	lock.Lock()
	defer lock.Unlock()

	latest, err := e.messages.LatestMessageAt(ctx, id.UserID)
	if err != nil {
		return Message{}, e.backendError("message.latest", err)
	}
	at := e.now().UTC()
	if at.Before(latest) {
		at = latest
	}

	msg := Message{
		ID:         uuid.NewString(),
		FromUserID: id.UserID,
		ToUserID:   toUserID,
		Content:    content,
		CreatedAt:  at,
	}
	if err := e.messages.CreateMessage(ctx, msg); err != nil {
		return Message{}, e.backendError("message.create", err)
	}

	e.metricInc(MetricMessageSent)
	return msg, nil
}

// ListMessages returns messages the caller sent or received, oldest first,
// with participant names. A non-empty withUserID restricts the list to that
// conversation.
func (e *Engine) ListMessages(ctx context.Context, id *Identity, withUserID string) ([]MessageView, error) {
	if err := e.require(id, permission.ActionListMessages); err != nil {
		return nil, err
	}
	if e.messages == nil {
		return nil, ErrStoreNotConfigured
	}
	msgs, err := e.messages.ListMessages(ctx, id.UserID, strings.TrimSpace(withUserID))
	if err != nil {
		return nil, e.backendError("message.list", err)
	}

	names := make(map[string]string)
	out := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageView{
			Message:      m,
			FromUserName: e.displayName(ctx, m.FromUserID, names),
			ToUserName:   e.displayName(ctx, m.ToUserID, names),
		})
	}
	return out, nil
}

func (e *Engine) senderLock(userID string) *sync.Mutex {
	return &e.senderLocks[senderStripe(userID)]
}

func senderStripe(userID string) uint64 {
	return xxhash.Sum64String(userID) % senderLockStripes
}
