package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ashureev/assessor/internal/assessment"
	"github.com/ashureev/assessor/internal/domain"
)

// SQLiteStore implements Repository using SQLite. The catalogue, context
// and turn history are stored as JSON columns on one row per session.
type SQLiteStore struct {
	db    *sql.DB
	locks *keyedMutex
	now   func() time.Time
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, locks: newKeyedMutex(), now: time.Now}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		client_name TEXT NOT NULL,
		project_name TEXT NOT NULL,
		project_overview TEXT NOT NULL,
		questions_json TEXT NOT NULL,
		messages_json TEXT NOT NULL DEFAULT '[]',
		current_question_id INTEGER,
		progress_total INTEGER NOT NULL,
		progress_answered INTEGER NOT NULL,
		progress_mandatory INTEGER NOT NULL,
		progress_mandatory_answered INTEGER NOT NULL,
		progress_percent INTEGER NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// Create stores a new session. The catalogue must be non-empty with unique ids.
func (s *SQLiteStore) Create(ctx context.Context, sc domain.SessionContext, questions []domain.Question) (string, error) {
	if err := validateCatalogue(questions); err != nil {
		return "", err
	}

	now := s.now().UTC()
	session := &domain.Session{
		ID:        uuid.NewString(),
		Context:   sc,
		Questions: domain.CloneQuestions(questions),
		Messages:  []domain.ChatMessage{},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	session.Progress = assessment.ComputeProgress(session.Questions)

	questionsJSON, messagesJSON, err := encodeSession(session)
	if err != nil {
		return "", err
	}

	query := `
	INSERT INTO sessions (
		id, client_name, project_name, project_overview, questions_json, messages_json,
		current_question_id, progress_total, progress_answered, progress_mandatory,
		progress_mandatory_answered, progress_percent, version, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, NULL, ?, ?, ?, ?, ?, ?, ?, ?)`

	err = withRetry(ctx, session.ID, func() error {
		_, execErr := s.db.ExecContext(ctx, query,
			session.ID, sc.ClientName, sc.ProjectName, sc.ProjectOverview,
			questionsJSON, messagesJSON,
			session.Progress.Total, session.Progress.Answered, session.Progress.Mandatory,
			session.Progress.MandatoryAnswered, session.Progress.PercentComplete,
			session.Version, now.UnixMilli(), now.UnixMilli(),
		)
		return execErr
	})
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}

	slog.Info("Session created", "session_id", session.ID, "questions", len(questions))
	return session.ID, nil
}

const selectColumns = `
	id, client_name, project_name, project_overview, questions_json, messages_json,
	current_question_id, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner, withMessages bool) (*domain.Session, error) {
	var (
		session       domain.Session
		questionsJSON string
		messagesJSON  string
		currentID     sql.NullInt64
		createdAt     int64
		updatedAt     int64
	)
	err := row.Scan(
		&session.ID, &session.Context.ClientName, &session.Context.ProjectName,
		&session.Context.ProjectOverview, &questionsJSON, &messagesJSON,
		&currentID, &session.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(questionsJSON), &session.Questions); err != nil {
		return nil, fmt.Errorf("decode questions for %s: %w", session.ID, err)
	}
	if withMessages {
		if err := json.Unmarshal([]byte(messagesJSON), &session.Messages); err != nil {
			return nil, fmt.Errorf("decode messages for %s: %w", session.ID, err)
		}
	}
	if currentID.Valid {
		id := int(currentID.Int64)
		session.CurrentQuestionID = &id
	}
	session.CreatedAt = time.UnixMilli(createdAt).UTC()
	session.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	session.Progress = assessment.ComputeProgress(session.Questions)
	return &session, nil
}

// Get loads one session including its turn history.
func (s *SQLiteStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	return s.get(ctx, s.db, sessionID)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) get(ctx context.Context, q querier, sessionID string) (*domain.Session, error) {
	row := q.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM sessions WHERE id = ?`, sessionID)
	session, err := scanSession(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get session %s: %w", sessionID, domain.ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}
	return session, nil
}

// List returns every session, newest first. Turn history is not loaded.
func (s *SQLiteStore) List(ctx context.Context) ([]*domain.Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close session rows", "error", closeErr)
		}
	}()

	var sessions []*domain.Session
	for rows.Next() {
		session, err := scanSession(rows, false)
		if err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// UpdateAnswer replaces one question's answer fields and recomputes progress.
func (s *SQLiteStore) UpdateAnswer(ctx context.Context, sessionID string, questionID int, answer, answeredBy, comments string) (*domain.Session, error) {
	return s.Apply(ctx, sessionID, SetAnswer(questionID, answer, answeredBy, comments))
}

// Apply serializes writers per session id in-process and guards against
// other processes with a version check, retrying on conflict.
func (s *SQLiteStore) Apply(ctx context.Context, sessionID string, fn MutateFunc) (*domain.Session, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	var result *domain.Session
	err := withRetry(ctx, sessionID, func() error {
		var applyErr error
		result, applyErr = s.applyOnce(ctx, sessionID, fn)
		return applyErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// applyOnce reads a snapshot, mutates it outside any transaction and writes
// it back only if no other writer bumped the version in between.
func (s *SQLiteStore) applyOnce(ctx context.Context, sessionID string, fn MutateFunc) (*domain.Session, error) {
	session, err := s.get(ctx, s.db, sessionID)
	if err != nil {
		return nil, err
	}
	readVersion := session.Version

	if err := fn(session); err != nil {
		return nil, err
	}

	session.Progress = assessment.ComputeProgress(session.Questions)
	session.UpdatedAt = s.now().UTC()
	session.Version = readVersion + 1

	questionsJSON, messagesJSON, err := encodeSession(session)
	if err != nil {
		return nil, err
	}

	var currentID any
	if session.CurrentQuestionID != nil {
		currentID = *session.CurrentQuestionID
	}

	query := `
	UPDATE sessions SET
		questions_json = ?, messages_json = ?, current_question_id = ?,
		progress_total = ?, progress_answered = ?, progress_mandatory = ?,
		progress_mandatory_answered = ?, progress_percent = ?,
		version = ?, updated_at = ?
	WHERE id = ? AND version = ?`

	res, err := s.db.ExecContext(ctx, query,
		questionsJSON, messagesJSON, currentID,
		session.Progress.Total, session.Progress.Answered, session.Progress.Mandatory,
		session.Progress.MandatoryAnswered, session.Progress.PercentComplete,
		session.Version, session.UpdatedAt.UnixMilli(),
		sessionID, readVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("update session %s at version %d: %w", sessionID, readVersion, domain.ErrConflict)
	}
	return session, nil
}

// DeleteIdle removes sessions whose last update is older than ttl.
func (s *SQLiteStore) DeleteIdle(ctx context.Context, ttl time.Duration) ([]string, error) {
	threshold := s.now().Add(-ttl).UnixMilli()
	var deleted []string
	err := withRetry(ctx, "", func() error {
		deleted = deleted[:0]
		rows, err := s.db.QueryContext(ctx, `DELETE FROM sessions WHERE updated_at < ? RETURNING id`, threshold)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			deleted = append(deleted, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("delete idle sessions: %w", err)
	}
	return deleted, nil
}

func encodeSession(session *domain.Session) (string, string, error) {
	questionsJSON, err := json.Marshal(session.Questions)
	if err != nil {
		return "", "", fmt.Errorf("encode questions: %w", err)
	}
	messages := session.Messages
	if messages == nil {
		messages = []domain.ChatMessage{}
	}
	messagesJSON, err := json.Marshal(messages)
	if err != nil {
		return "", "", fmt.Errorf("encode messages: %w", err)
	}
	return string(questionsJSON), string(messagesJSON), nil
}

func validateCatalogue(questions []domain.Question) error {
	if len(questions) == 0 {
		return fmt.Errorf("catalogue has no questions: %w", domain.ErrMalformedInput)
	}
	seen := make(map[int]struct{}, len(questions))
	for _, q := range questions {
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("duplicate question id %d: %w", q.ID, domain.ErrMalformedInput)
		}
		seen[q.ID] = struct{}{}
	}
	return nil
}

var _ Repository = (*SQLiteStore)(nil)
