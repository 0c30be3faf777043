package assistant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"medchat/internal/models"
)

// CreateSession inserts a new session and returns the record. A blank title uses the placeholder.
func (s *Service) CreateSession(ctx context.Context, title string) (*models.Session, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = s.placeholder
	}
	session := &models.Session{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: s.timestamp(),
	}
	if _, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO chat_sessions (id, title, created_at) VALUES (?, ?, ?)`),
		session.ID, session.Title, session.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// ListSessions returns all sessions, most recently created first.
func (s *Service) ListSessions(ctx context.Context) ([]models.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, created_at FROM chat_sessions ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]models.Session, 0)
	for rows.Next() {
		var se models.Session
		if err := rows.Scan(&se.ID, &se.Title, &se.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, se)
	}
	return sessions, rows.Err()
}

// GetSession loads one session. It returns sql.ErrNoRows when the id is unknown.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	var session models.Session
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT id, title, created_at FROM chat_sessions WHERE id = ?`),
		sessionID,
	).Scan(&session.ID, &session.Title, &session.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &session, nil
}

// UpdateSessionTitle overwrites a session title and returns the updated record.
// It returns sql.ErrNoRows when the id is unknown.
func (s *Service) UpdateSessionTitle(ctx context.Context, sessionID, title string) (*models.Session, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("title cannot be empty")
	}
	if _, err := s.db.ExecContext(ctx,
		s.q(`UPDATE chat_sessions SET title = ? WHERE id = ?`),
		title, sessionID,
	); err != nil {
		return nil, fmt.Errorf("update session title: %w", err)
	}
	// rows affected is unreliable on mysql for unchanged values, so re-read instead
	return s.GetSession(ctx, sessionID)
}

// RenameIfPlaceholder sets the title only while the stored title still equals current and
// current is a placeholder. It reports whether the title changed, so concurrent callers
// holding the same snapshot cannot overwrite each other.
func (s *Service) RenameIfPlaceholder(ctx context.Context, sessionID, current, title string) (bool, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return false, errors.New("title cannot be empty")
	}
	if !s.IsPlaceholderTitle(current) {
		return false, nil
	}
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE chat_sessions SET title = ? WHERE id = ? AND title = ?`),
		title, sessionID, current,
	)
	if err != nil {
		return false, fmt.Errorf("rename session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("session rows affected: %w", err)
	}
	return affected > 0, nil
}
