// Package dialog runs one assessment conversation turn at a time: it asks
// the completion backend for a reply, reconciles the inbound text against
// the pending question and persists the outcome in a single store update.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ashureev/assessor/internal/assessment"
	"github.com/ashureev/assessor/internal/domain"
	"github.com/ashureev/assessor/internal/llm"
	"github.com/ashureev/assessor/internal/store"
)

// DefaultRespondent is recorded as AnsweredBy when the caller is anonymous.
const DefaultRespondent = "Client SME"

// FallbackMessage is returned when the completion backend fails.
const FallbackMessage = "I'm having trouble processing your message. Could you please try again?"

const (
	movingOnIntro  = "Great! Let's move on to the next question."
	nextUpIntro    = "Here's the next question."
	completionNote = "Excellent! You've completed all the questions in this assessment. You can now export the results using the Export button above."
)

// Options tunes the orchestrator.
type Options struct {
	// HistoryWindow bounds the turns the reconciler inspects.
	HistoryWindow int
	// LLMTimeout bounds each completion call.
	LLMTimeout  time.Duration
	Temperature float64
	MaxTokens   int
}

// Notifier receives every committed turn, e.g. for WebSocket fan-out.
type Notifier interface {
	NotifyTurn(sessionID string, result *TurnResult)
}

// TurnResult is the outbound payload of one chat turn.
type TurnResult struct {
	OutboundText       string          `json:"outboundText"`
	NextQuestionID     *int            `json:"nextQuestionId,omitempty"`
	AnsweredQuestionID *int            `json:"answeredQuestionId,omitempty"`
	Progress           domain.Progress `json:"progress"`
	Session            *domain.Session `json:"session"`
	// Degraded is set when the fallback message was returned and nothing
	// was persisted.
	Degraded bool `json:"degraded,omitempty"`
}

// SessionView is a session together with its derived presentation data.
type SessionView struct {
	Session       *domain.Session           `json:"session"`
	CategoryStats []assessment.CategoryStat `json:"categoryStats"`
	NextQuestion  *domain.Question          `json:"nextQuestion"`
}

// Service is the dialog orchestrator.
type Service struct {
	repo      store.Repository
	completer llm.Completer
	opts      Options
	notifier  Notifier
	views     singleflight.Group
	now       func() time.Time
}

// NewService creates a Service. Zero option fields fall back to defaults.
func NewService(repo store.Repository, completer llm.Completer, opts Options) *Service {
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 20
	}
	if opts.LLMTimeout <= 0 {
		opts.LLMTimeout = 30 * time.Second
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 800
	}
	return &Service{
		repo:      repo,
		completer: completer,
		opts:      opts,
		now:       time.Now,
	}
}

// SetNotifier installs the receiver of committed turns.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// CreateSession stores a new session for the given catalogue.
func (s *Service) CreateSession(ctx context.Context, sc domain.SessionContext, questions []domain.Question) (string, error) {
	if strings.TrimSpace(sc.ClientName) == "" || strings.TrimSpace(sc.ProjectName) == "" {
		return "", fmt.Errorf("client and project names are required: %w", domain.ErrMalformedInput)
	}
	id, err := s.repo.Create(ctx, sc, questions)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

// Get loads a session.
func (s *Service) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	return s.repo.Get(ctx, sessionID)
}

// List returns all sessions, newest first.
func (s *Service) List(ctx context.Context) ([]*domain.Session, error) {
	return s.repo.List(ctx)
}

// View loads a session with its category stats and next question. Concurrent
// views of one session share a single load.
func (s *Service) View(ctx context.Context, sessionID string) (*SessionView, error) {
	v, err, _ := s.views.Do(sessionID, func() (any, error) {
		sess, err := s.repo.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return &SessionView{
			Session:       sess,
			CategoryStats: assessment.CategoryStats(sess.Questions),
			NextQuestion:  assessment.SelectNext(sess.Questions, sess.Context.ProjectOverview),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*SessionView), nil
}

// History returns the session's turn log, oldest first.
func (s *Service) History(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	sess, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Messages == nil {
		return []domain.ChatMessage{}, nil
	}
	return sess.Messages, nil
}

// UpdateAnswer writes one question's answer fields directly.
func (s *Service) UpdateAnswer(ctx context.Context, sessionID string, questionID int, answer, answeredBy, comments string) (*domain.Session, error) {
	if answeredBy == "" {
		answeredBy = DefaultRespondent
	}
	sess, err := s.repo.UpdateAnswer(ctx, sessionID, questionID, answer, answeredBy, comments)
	if err != nil {
		return nil, err
	}
	slog.Info("Answer updated", "session_id", sessionID, "question_id", questionID)
	return sess, nil
}

// HandleTurn processes one inbound chat message.
//
// An unknown session yields domain.ErrSessionNotFound with nothing written.
// When the completion backend fails the result carries FallbackMessage and
// the session is left untouched. Otherwise the answer write, the new current
// question and both turns are committed together.
func (s *Service) HandleTurn(ctx context.Context, sessionID, text, respondent string) (*TurnResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("message is required: %w", domain.ErrMalformedInput)
	}
	if respondent == "" {
		respondent = DefaultRespondent
	}

	snap, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	completion, err := s.complete(ctx, snap, text)
	if err != nil {
		slog.Warn("Completion failed, returning fallback", "session_id", sessionID, "error", err)
		return &TurnResult{
			OutboundText:   FallbackMessage,
			NextQuestionID: snap.CurrentQuestionID,
			Progress:       snap.Progress,
			Session:        snap,
			Degraded:       true,
		}, nil
	}

	var (
		outbound string
		outcome  assessment.Outcome
		next     *int
	)
	updated, err := s.repo.Apply(ctx, sessionID, func(sess *domain.Session) error {
		outcome = assessment.Reconcile(assessment.ReconcileInput{
			Questions:         sess.Questions,
			Recent:            sess.RecentMessages(s.opts.HistoryWindow),
			CurrentQuestionID: sess.CurrentQuestionID,
			Inbound:           text,
			SuggestedNextID:   completion.SuggestedQuestionID,
		})

		if outcome.IsAnswer {
			q := sess.Question(*outcome.AnsweredQuestionID)
			if q == nil {
				return domain.ErrQuestionNotFound
			}
			q.Answer = outcome.Answer
			q.AnsweredBy = respondent
		}

		outbound = completion.Text
		next = outcome.NextQuestionID
		if next == nil {
			nq := assessment.SelectNext(sess.Questions, sess.Context.ProjectOverview)
			outbound += nextQuestionSuffix(nq, outcome)
			if nq != nil {
				id := nq.ID
				next = &id
			}
		}

		now := s.now()
		sess.CurrentQuestionID = next
		sess.Messages = append(sess.Messages,
			domain.ChatMessage{Role: domain.RoleUser, Content: text, Timestamp: now},
			domain.ChatMessage{Role: domain.RoleAssistant, Content: outbound, Timestamp: now, QuestionID: next},
		)
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("persist turn: %w", err)
	}

	if outcome.IsAnswer {
		slog.Info("Answer recorded",
			"session_id", sessionID,
			"question_id", *outcome.AnsweredQuestionID,
			"pending_source", string(outcome.PendingSource),
		)
	}

	result := &TurnResult{
		OutboundText:       outbound,
		NextQuestionID:     next,
		AnsweredQuestionID: outcome.AnsweredQuestionID,
		Progress:           updated.Progress,
		Session:            updated,
	}
	if s.notifier != nil {
		s.notifier.NotifyTurn(sessionID, result)
	}
	return result, nil
}

func (s *Service) complete(ctx context.Context, snap *domain.Session, text string) (*llm.Completion, error) {
	pending, _ := assessment.PendingQuestion(snap.Questions, snap.RecentMessages(s.opts.HistoryWindow), snap.CurrentQuestionID)
	req := llm.Request{
		Messages:    llm.BuildMessages(llm.BuildSystemPrompt(snap, pending), snap.Messages, text),
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
	}

	cctx, cancel := context.WithTimeout(ctx, s.opts.LLMTimeout)
	defer cancel()
	return s.completer.Complete(cctx, req)
}

// nextQuestionSuffix presents a locally selected question. It is empty when
// the conversation stays on the pending question without an answer.
func nextQuestionSuffix(next *domain.Question, outcome assessment.Outcome) string {
	if next == nil {
		if outcome.IsAnswer {
			return "\n\n" + completionNote
		}
		return ""
	}
	intro := nextUpIntro
	if outcome.IsAnswer {
		intro = movingOnIntro
	} else if outcome.PendingQuestionID != nil && *outcome.PendingQuestionID == next.ID {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n\n%s\n\n**%s**\n%s", intro, next.Category, next.Text)
	if next.AdditionalContext != "" {
		fmt.Fprintf(&b, "\n\n*Additional context: %s*", next.AdditionalContext)
	}
	if next.SufficiencyRule != "" {
		fmt.Fprintf(&b, "\n\n(%s)", next.SufficiencyRule)
	}
	return b.String()
}
