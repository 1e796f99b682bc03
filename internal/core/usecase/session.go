package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/megachat/sales-assistant/internal/core/domain"
	"github.com/megachat/sales-assistant/internal/core/ports"
)

const defaultSessionMaxMessages = 50

// SessionHistory keeps recent turns per user in the cache store. Appends are
// read-modify-write; concurrent turns of one user resolve last-write-wins.
type SessionHistory struct {
	store       ports.CacheStore
	ttl         time.Duration
	maxMessages int
}

func NewSessionHistory(store ports.CacheStore, ttl time.Duration, maxMessages int) *SessionHistory {
	if maxMessages <= 0 {
		maxMessages = defaultSessionMaxMessages
	}
	return &SessionHistory{store: store, ttl: ttl, maxMessages: maxMessages}
}

func (s *SessionHistory) History(ctx context.Context, userID string) (*domain.Session, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "session history", fmt.Errorf("user id is required"))
	}

	session := &domain.Session{UserID: userID, Messages: []domain.SessionMessage{}}
	raw, found, err := s.store.Get(ctx, SessionCacheKey(userID))
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if !found {
		return session, nil
	}
	if err := json.Unmarshal(raw, session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	session.UserID = userID
	return session, nil
}

func (s *SessionHistory) Append(ctx context.Context, userID string, messages ...domain.SessionMessage) error {
	if len(messages) == 0 {
		return nil
	}
	session, err := s.History(ctx, userID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, msg := range messages {
		if msg.At.IsZero() {
			msg.At = now
		}
		session.Messages = append(session.Messages, msg)
	}
	if overflow := len(session.Messages) - s.maxMessages; overflow > 0 {
		session.Messages = session.Messages[overflow:]
	}

	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.store.Set(ctx, SessionCacheKey(session.UserID), raw, s.ttl); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

func (s *SessionHistory) Clear(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "clear session", fmt.Errorf("user id is required"))
	}
	if err := s.store.Delete(ctx, SessionCacheKey(userID)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
