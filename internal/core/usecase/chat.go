package usecase

import (
	"context"
	"log/slog"

	"github.com/megachat/sales-assistant/internal/core/domain"
	"github.com/megachat/sales-assistant/internal/core/ports"
)

// ChatUseCase runs the pipeline and records the turn in the user's session.
type ChatUseCase struct {
	pipeline ports.ChatService
	sessions ports.SessionStore
}

func NewChatUseCase(pipeline ports.ChatService, sessions ports.SessionStore) *ChatUseCase {
	return &ChatUseCase{pipeline: pipeline, sessions: sessions}
}

func (uc *ChatUseCase) Run(ctx context.Context, query domain.Query) (*domain.ChatResult, error) {
	result, err := uc.pipeline.Run(ctx, query)
	if err != nil {
		return nil, err
	}

	if uc.sessions != nil && query.UserID != "" {
		err := uc.sessions.Append(ctx, query.UserID,
			domain.SessionMessage{Role: "user", Content: query.Text},
			domain.SessionMessage{Role: "assistant", Content: result.Response},
		)
		if err != nil {
			slog.Warn("session_append_failed", "user_id", query.UserID, "session_id", query.SessionID, "error", err)
		}
	}
	return result, nil
}
