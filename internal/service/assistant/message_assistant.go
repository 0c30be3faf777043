package assistant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"medchat/internal/models"
)

// ErrInvalidRole is returned when a message carries a role outside models.Role.
var ErrInvalidRole = errors.New("invalid message role")

// AddMessage appends a message to a session. The session is not looked up first;
// the foreign key rejects messages for unknown sessions.
func (s *Service) AddMessage(ctx context.Context, sessionID string, role models.Role, content string) (*models.Message, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	msg := &models.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: s.timestamp(),
	}
	if _, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO chat_messages (id, session_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`),
		msg.ID, msg.SessionID, string(msg.Role), msg.Content, msg.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

// ListMessages returns the messages of a session in chronological order.
func (s *Service) ListMessages(ctx context.Context, sessionID string) ([]*models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT id, session_id, role, content, created_at FROM chat_messages WHERE session_id = ? ORDER BY created_at ASC`),
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*models.Message, 0)
	for rows.Next() {
		m := new(models.Message)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// FirstUserMessage returns the earliest user message of a session, or sql.ErrNoRows.
func (s *Service) FirstUserMessage(ctx context.Context, sessionID string) (*models.Message, error) {
	m := new(models.Message)
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT id, session_id, role, content, created_at FROM chat_messages
			WHERE session_id = ? AND role = ? ORDER BY created_at ASC LIMIT 1`),
		sessionID, string(models.RoleUser),
	).Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("first user message: %w", err)
	}
	return m, nil
}
