package assessment

import (
	"strings"
	"unicode/utf8"

	"github.com/ashureev/assessor/internal/domain"
)

const (
	// minAnswerLength is the rune count a reply must exceed to count as an
	// answer without matching a no-answer phrase.
	minAnswerLength = 10
	// mentionWindow is how many recent turns the substring fallback inspects.
	mentionWindow = 5
	// mentionPrefixLen is how much of a question's text must appear in a turn.
	mentionPrefixLen = 50
)

// noAnswerPhrases are accepted as answers regardless of length.
var noAnswerPhrases = []string{"don't know", "not applicable", "n/a"}

// PendingSource records how the pending question was identified.
type PendingSource string

const (
	PendingNone      PendingSource = ""
	PendingCurrent   PendingSource = "current"
	PendingTagged    PendingSource = "tagged_turn"
	PendingMentioned PendingSource = "mentioned"
)

// ReconcileInput is everything Reconcile needs for one inbound reply.
type ReconcileInput struct {
	Questions []domain.Question
	// Recent is the bounded window of prior turns, oldest first.
	Recent []domain.ChatMessage
	// CurrentQuestionID is the explicitly tracked pending question, if any.
	CurrentQuestionID *int
	Inbound           string
	// SuggestedNextID is the question the completion collaborator says it is
	// asking next.
	SuggestedNextID *int
}

// Outcome is the reconciliation decision for one inbound reply.
type Outcome struct {
	IsAnswer           bool
	AnsweredQuestionID *int
	PendingQuestionID  *int
	PendingSource      PendingSource
	// Answer is the verbatim inbound text to store when IsAnswer is set.
	Answer         string
	NextQuestionID *int
}

// Reconcile decides whether inbound answers the pending question and which
// question the collaborator moved on to. It never chooses the next question
// itself; that is left to SelectNext when NextQuestionID is nil.
func Reconcile(in ReconcileInput) Outcome {
	var out Outcome
	pending, source := PendingQuestion(in.Questions, in.Recent, in.CurrentQuestionID)
	if pending != nil {
		id := pending.ID
		out.PendingQuestionID = &id
		out.PendingSource = source
	}

	if pending != nil && IsAnswer(in.Inbound) {
		id := pending.ID
		out.IsAnswer = true
		out.AnsweredQuestionID = &id
		out.Answer = in.Inbound
	}

	if in.SuggestedNextID != nil && domain.FindQuestion(in.Questions, *in.SuggestedNextID) >= 0 {
		id := *in.SuggestedNextID
		out.NextQuestionID = &id
	}
	return out
}

// PendingQuestion identifies the question the conversation is waiting on.
//
// The explicit current id wins. Without it, the most recent assistant turn
// carrying a question id names the question; an id that no longer resolves
// yields no pending question. As a last resort, the first unanswered
// question whose opening text appears in one of the last few turns is used.
func PendingQuestion(questions []domain.Question, recent []domain.ChatMessage, currentID *int) (*domain.Question, PendingSource) {
	if currentID != nil {
		if i := domain.FindQuestion(questions, *currentID); i >= 0 {
			return &questions[i], PendingCurrent
		}
	}

	for i := len(recent) - 1; i >= 0; i-- {
		msg := recent[i]
		if msg.Role != domain.RoleAssistant || msg.QuestionID == nil {
			continue
		}
		if idx := domain.FindQuestion(questions, *msg.QuestionID); idx >= 0 {
			return &questions[idx], PendingTagged
		}
		return nil, PendingNone
	}

	window := recent
	if len(window) > mentionWindow {
		window = window[len(window)-mentionWindow:]
	}
	for i := range questions {
		q := &questions[i]
		if q.IsAnswered() {
			continue
		}
		prefix := strings.ToLower(truncateRunes(q.Text, mentionPrefixLen))
		if prefix == "" {
			continue
		}
		for _, msg := range window {
			if strings.Contains(strings.ToLower(msg.Content), prefix) {
				return q, PendingMentioned
			}
		}
	}
	return nil, PendingNone
}

// IsAnswer applies the sufficiency heuristic to a reply: longer than
// minAnswerLength runes, or containing a no-answer phrase.
func IsAnswer(text string) bool {
	if utf8.RuneCountInString(text) > minAnswerLength {
		return true
	}
	lower := strings.ToLower(text)
	for _, phrase := range noAnswerPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
