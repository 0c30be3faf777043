package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"medchat/internal/models"
)

// TitleOutcome is the result of one auto-title attempt.
type TitleOutcome string

const (
	TitleUpdated TitleOutcome = "updated"
	TitleSkipped TitleOutcome = "skipped"
	TitleFailed  TitleOutcome = "failed"
)

// TitleResult reports what autoTitle did. Reason explains a skip; Err is set on failure.
type TitleResult struct {
	Outcome TitleOutcome
	Title   string
	Reason  string
	Err     error
}

func skipped(reason string) TitleResult {
	return TitleResult{Outcome: TitleSkipped, Reason: reason}
}

func failed(err error) TitleResult {
	return TitleResult{Outcome: TitleFailed, Err: err}
}

// autoTitle names a session that still carries the placeholder title, using its first
// user message. session is the record loaded at the start of the request.
func (h *Handler) autoTitle(ctx context.Context, session *models.Session) TitleResult {
	if !h.store.IsPlaceholderTitle(session.Title) {
		return skipped("already named")
	}

	release, acquired, err := h.locker.TryLock(ctx, "medchat:title:"+session.ID, h.titleLockTTL)
	if err != nil {
		// the conditional rename still keeps the first title
		h.logger.Warn("title lock unavailable", "session_id", session.ID, "error", err)
	} else if !acquired {
		return skipped("title in progress")
	}
	defer release()

	first, err := h.store.FirstUserMessage(ctx, session.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return skipped("no user message")
		}
		return failed(err)
	}

	title, err := h.generator.Title(ctx, first.Content)
	if err != nil {
		return failed(err)
	}

	changed, err := h.store.RenameIfPlaceholder(ctx, session.ID, session.Title, title)
	if err != nil {
		return failed(fmt.Errorf("save title: %w", err))
	}
	if !changed {
		return skipped("renamed concurrently")
	}
	return TitleResult{Outcome: TitleUpdated, Title: title}
}

func (h *Handler) recordTitle(ctx context.Context, sessionID string, result TitleResult) {
	h.titleOutcome.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(result.Outcome))))
	switch result.Outcome {
	case TitleUpdated:
		h.logger.Info("session titled", "session_id", sessionID, "title", result.Title)
	case TitleSkipped:
		h.logger.Debug("session title skipped", "session_id", sessionID, "reason", result.Reason)
	case TitleFailed:
		h.logger.Warn("session title failed", "session_id", sessionID, "error", result.Err)
	}
}
