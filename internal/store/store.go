// Package store provides session persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/assessor/internal/domain"
)

// MutateFunc changes a freshly loaded session in place. Returning an error
// aborts the update and nothing is written.
type MutateFunc func(s *domain.Session) error

// Repository defines durable storage for assessment sessions.
//
// Every write path recomputes Progress from the catalogue before persisting,
// and writes to one session id are serialized.
type Repository interface {
	// Create stores a new session and returns its id.
	Create(ctx context.Context, sc domain.SessionContext, questions []domain.Question) (string, error)

	// Get loads a session. It returns domain.ErrSessionNotFound when absent.
	Get(ctx context.Context, sessionID string) (*domain.Session, error)

	// List returns every session, newest first, without turn history.
	List(ctx context.Context) ([]*domain.Session, error)

	// UpdateAnswer replaces one question's answer fields.
	UpdateAnswer(ctx context.Context, sessionID string, questionID int, answer, answeredBy, comments string) (*domain.Session, error)

	// Apply runs fn against the latest stored session and persists the result
	// as one atomic unit.
	Apply(ctx context.Context, sessionID string, fn MutateFunc) (*domain.Session, error)

	// DeleteIdle removes sessions not updated within ttl and returns their ids.
	DeleteIdle(ctx context.Context, ttl time.Duration) ([]string, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// SetAnswer returns a MutateFunc writing one question's answer fields.
func SetAnswer(questionID int, answer, answeredBy, comments string) MutateFunc {
	return func(s *domain.Session) error {
		q := s.Question(questionID)
		if q == nil {
			return domain.ErrQuestionNotFound
		}
		q.Answer = answer
		q.AnsweredBy = answeredBy
		q.Comments = comments
		return nil
	}
}
