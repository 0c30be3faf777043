package assistant

import (
	"database/sql"
	"strings"
	"sync"
	"time"

	"medchat/internal/storage"
)

// Service persists chat sessions and their messages.
type Service struct {
	db          *sql.DB
	driver      string
	placeholder string

	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewService builds a new assistant service over an opened and migrated database.
// An empty placeholder falls back to "New Chat".
func NewService(db *sql.DB, driver, placeholder string) *Service {
	placeholder = strings.TrimSpace(placeholder)
	if placeholder == "" {
		placeholder = "New Chat"
	}
	return &Service{
		db:          db,
		driver:      storage.Normalize(driver),
		placeholder: placeholder,
		now:         time.Now,
	}
}

// IsPlaceholderTitle reports whether title still marks an unnamed session.
func (s *Service) IsPlaceholderTitle(title string) bool {
	title = strings.TrimSpace(title)
	return title == "" || strings.EqualFold(title, s.placeholder)
}

func (s *Service) q(query string) string {
	return storage.Rebind(s.driver, query)
}

// timestamp returns a strictly increasing UTC time with microsecond precision,
// the finest resolution every supported database keeps.
func (s *Service) timestamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.now().UTC().Truncate(time.Microsecond)
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}
