package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nikhilbhutani/ragdesk/internal/apperr"
	"github.com/nikhilbhutani/ragdesk/internal/database"
	"github.com/nikhilbhutani/ragdesk/internal/models"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Service struct {
	db    *database.DB
	graph *Graph
}

func NewService(db *database.DB, graph *Graph) *Service {
	return &Service{db: db, graph: graph}
}

type SessionPage struct {
	Items    []models.ChatSession `json:"items"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"pageSize"`
	Total    int                  `json:"total"`
}

// ListSessions pages through sessions, most recently active first.
func (s *Service) ListSessions(ctx context.Context, page, pageSize int) (*SessionPage, error) {
	if page < 1 || pageSize < 1 || pageSize > MaxPageSize {
		return nil, fmt.Errorf("page must be >= 1 and page_size in [1, %d]: %w", MaxPageSize, apperr.ErrBadRequest)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_sessions`).Scan(&total); err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, s.db.Rebind(
		`SELECT session_id, title, created_at, updated_at FROM chat_sessions
		 ORDER BY updated_at DESC, created_at DESC LIMIT ? OFFSET ?`),
		pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	items := []models.ChatSession{}
	for rows.Next() {
		var sess models.ChatSession
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		items = append(items, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	return &SessionPage{Items: items, Page: page, PageSize: pageSize, Total: total}, nil
}

func (s *Service) CreateSession(ctx context.Context, title string) (*models.ChatSession, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = models.DefaultSessionTitle
	}

	now := time.Now().UTC()
	sess := &models.ChatSession{
		ID:        models.NewID(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.db.Rebind(
			`INSERT INTO chat_sessions (session_id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`),
			sess.ID, sess.Title, sess.CreatedAt, sess.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) getSession(ctx context.Context, id string) (*models.ChatSession, error) {
	var sess models.ChatSession
	err := s.db.QueryRowContext(ctx, s.db.Rebind(
		`SELECT session_id, title, created_at, updated_at FROM chat_sessions WHERE session_id = ?`), id,
	).Scan(&sess.ID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &sess, nil
}

type SessionDetail struct {
	Session  models.ChatSession   `json:"session"`
	Messages []models.ChatMessage `json:"messages"`
}

// GetSession returns a session with its messages in chronological order.
func (s *Service) GetSession(ctx context.Context, id string) (*SessionDetail, error) {
	sess, err := s.getSession(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.db.Rebind(
		`SELECT message_id, session_id, role, content, citations, created_at FROM chat_messages
		 WHERE session_id = ? ORDER BY created_at ASC`), id,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := []models.ChatMessage{}
	for rows.Next() {
		var (
			msg       models.ChatMessage
			citations string
		)
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &citations, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if err := json.Unmarshal([]byte(citations), &msg.Citations); err != nil {
			return nil, fmt.Errorf("decode citations: %w", err)
		}
		if msg.Citations == nil {
			msg.Citations = []models.DocumentSnippet{}
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	return &SessionDetail{Session: *sess, Messages: messages}, nil
}

// DeleteSession removes a session and all of its messages.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.db.Rebind(`DELETE FROM chat_messages WHERE session_id = ?`), id); err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		res, err := tx.ExecContext(ctx, s.db.Rebind(`DELETE FROM chat_sessions WHERE session_id = ?`), id)
		if err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("session %s: %w", id, apperr.ErrNotFound)
		}
		return nil
	})
}

type SendRequest struct {
	Message       string  `json:"message"`
	VectorStoreID *string `json:"vectorStoreId"`
}

type SendResponse struct {
	SessionID string             `json:"sessionId"`
	Message   models.ChatMessage `json:"message"`
}

// SendMessage stores the user message, runs the chat graph and stores the
// assistant reply. Model failures are answered, not returned.
func (s *Service) SendMessage(ctx context.Context, sessionID string, req SendRequest) (*SendResponse, error) {
	question := strings.TrimSpace(req.Message)
	if question == "" {
		return nil, fmt.Errorf("message is required: %w", apperr.ErrBadRequest)
	}
	storeID := req.VectorStoreID
	if storeID != nil && strings.TrimSpace(*storeID) == "" {
		storeID = nil
	}

	if _, err := s.getSession(ctx, sessionID); err != nil {
		return nil, err
	}

	user := models.ChatMessage{
		ID:        models.NewID(),
		SessionID: sessionID,
		Role:      models.RoleUser,
		Content:   req.Message,
		Citations: []models.DocumentSnippet{},
		Timestamp: time.Now().UTC(),
	}
	if err := s.insertMessage(ctx, user); err != nil {
		return nil, err
	}

	state, err := s.graph.Run(ctx, question, storeID)
	if err != nil {
		return nil, err
	}
	if state.Failed {
		slog.Warn("chat answered with model failure notice", "session_id", sessionID)
	}

	citations := state.Citations
	if citations == nil {
		citations = []models.DocumentSnippet{}
	}
	reply := models.ChatMessage{
		ID:        models.NewID(),
		SessionID: sessionID,
		Role:      models.RoleAssistant,
		Content:   state.Answer,
		Citations: citations,
		Timestamp: time.Now().UTC(),
	}
	// Keep assistant replies strictly after the question they answer.
	if !reply.Timestamp.After(user.Timestamp) {
		reply.Timestamp = user.Timestamp.Add(time.Microsecond)
	}
	if err := s.insertMessage(ctx, reply); err != nil {
		return nil, err
	}

	return &SendResponse{SessionID: sessionID, Message: reply}, nil
}

// insertMessage stores msg and bumps the session's updated_at in one
// transaction.
func (s *Service) insertMessage(ctx context.Context, msg models.ChatMessage) error {
	citations, err := json.Marshal(msg.Citations)
	if err != nil {
		return fmt.Errorf("encode citations: %w", err)
	}

	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.db.Rebind(
			`INSERT INTO chat_messages (message_id, session_id, role, content, citations, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`),
			msg.ID, msg.SessionID, msg.Role, msg.Content, string(citations), msg.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		_, err = tx.ExecContext(ctx, s.db.Rebind(`UPDATE chat_sessions SET updated_at = ? WHERE session_id = ?`),
			msg.Timestamp, msg.SessionID)
		if err != nil {
			return fmt.Errorf("touch session: %w", err)
		}
		return nil
	})
}
