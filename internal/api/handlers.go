package api

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"medchat/internal/config"
	"medchat/internal/models"
)

// SessionStore is the persistence the handlers need.
type SessionStore interface {
	CreateSession(ctx context.Context, title string) (*models.Session, error)
	ListSessions(ctx context.Context) ([]models.Session, error)
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	RenameIfPlaceholder(ctx context.Context, sessionID, current, title string) (bool, error)
	IsPlaceholderTitle(title string) bool
	AddMessage(ctx context.Context, sessionID string, role models.Role, content string) (*models.Message, error)
	ListMessages(ctx context.Context, sessionID string) ([]*models.Message, error)
	FirstUserMessage(ctx context.Context, sessionID string) (*models.Message, error)
}

// ReplyGenerator talks to the generation provider.
type ReplyGenerator interface {
	Reply(ctx context.Context, userText, modelOverride string) (string, error)
	Title(ctx context.Context, firstMessage string) (string, error)
}

// TitleLocker serializes auto-titling of one session across requests and processes.
type TitleLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error)
}

// Options tunes handler behavior. Zero values fall back to defaults.
type Options struct {
	WelcomeMessage string
	TitleLockTTL   time.Duration
	Logger         *slog.Logger
}

// Handler wires HTTP routes to the session store and the generation provider.
type Handler struct {
	store     SessionStore
	generator ReplyGenerator
	locker    TitleLocker

	welcome      string
	titleLockTTL time.Duration
	logger       *slog.Logger
	titleOutcome metric.Int64Counter
}

// NewHandler constructs a Handler instance. A nil locker disables cross-request locking;
// title writes stay conditional either way.
func NewHandler(store SessionStore, generator ReplyGenerator, locker TitleLocker, opts Options) *Handler {
	if locker == nil {
		locker = freeLocker{}
	}
	if opts.WelcomeMessage == "" {
		opts.WelcomeMessage = config.DefaultWelcomeMessage
	}
	if opts.TitleLockTTL <= 0 {
		opts.TitleLockTTL = config.DefaultTitleLockTTL * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	counter, err := otel.Meter("medchat/api").Int64Counter(
		"medchat.title.outcome",
		metric.WithDescription("Auto-title attempts by outcome"),
	)
	if err != nil {
		opts.Logger.Warn("create title outcome counter", "error", err)
		counter = noop.Int64Counter{}
	}
	return &Handler{
		store:        store,
		generator:    generator,
		locker:       locker,
		welcome:      opts.WelcomeMessage,
		titleLockTTL: opts.TitleLockTTL,
		logger:       opts.Logger,
		titleOutcome: counter,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	router.POST("/new_session", h.newSession)
	router.GET("/sessions", h.listSessions)
	router.GET("/messages/:session_id", h.getMessages)
	router.POST("/send_message", h.sendMessage)
}

func (h *Handler) newSession(c *gin.Context) {
	ctx := c.Request.Context()
	session, err := h.store.CreateSession(ctx, "")
	if err != nil {
		h.logger.Error("create session", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if _, err := h.store.AddMessage(ctx, session.ID, models.RoleAssistant, h.welcome); err != nil {
		h.logger.Error("store welcome message", "session_id", session.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": session.ID,
		"title":      session.Title,
	})
}

func (h *Handler) listSessions(c *gin.Context) {
	sessions, err := h.store.ListSessions(c.Request.Context())
	if err != nil {
		h.logger.Error("list sessions", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if sessions == nil {
		sessions = make([]models.Session, 0)
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *Handler) getMessages(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := strings.TrimSpace(c.Param("session_id"))
	if _, err := h.store.GetSession(ctx, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		h.logger.Error("load session", "session_id", sessionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	messages, err := h.store.ListMessages(ctx, sessionID)
	if err != nil {
		h.logger.Error("list messages", "session_id", sessionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, messages)
}

type sendMessageRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Model     string `json:"model"`
}

func (h *Handler) sendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	if req.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	ctx := c.Request.Context()
	session, err := h.store.GetSession(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		h.logger.Error("load session", "session_id", req.SessionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.store.AddMessage(ctx, session.ID, models.RoleUser, req.Message); err != nil {
		h.logger.Error("store user message", "session_id", session.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	reply, err := h.generator.Reply(ctx, req.Message, req.Model)
	if err != nil {
		// the user message stays stored without an answer
		h.logger.Error("provider reply failed", "session_id", session.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.store.AddMessage(ctx, session.ID, models.RoleAssistant, reply); err != nil {
		h.logger.Error("store assistant message", "session_id", session.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	result := h.autoTitle(ctx, session)
	h.recordTitle(ctx, session.ID, result)

	c.JSON(http.StatusOK, gin.H{
		"assistant":  reply,
		"session_id": session.ID,
	})
}

type freeLocker struct{}

func (freeLocker) TryLock(context.Context, string, time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}
