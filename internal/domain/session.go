package domain

import (
	"time"
)

// SessionContext describes the client engagement. It is fixed at creation.
type SessionContext struct {
	ClientName      string `json:"clientName" yaml:"clientName"`
	ProjectName     string `json:"projectName" yaml:"projectName"`
	ProjectOverview string `json:"projectOverview" yaml:"projectOverview"`
}

// Progress is derived from the catalogue and never set directly.
type Progress struct {
	Total             int `json:"total" yaml:"total"`
	Answered          int `json:"answered" yaml:"answered"`
	Mandatory         int `json:"mandatory" yaml:"mandatory"`
	MandatoryAnswered int `json:"mandatoryAnswered" yaml:"mandatoryAnswered"`
	PercentComplete   int `json:"percentComplete" yaml:"percentComplete"`
}

// Session is one client's assessment: context, catalogue, derived progress
// and the turn history that produced the answers.
type Session struct {
	ID                string         `json:"id" yaml:"id"`
	Context           SessionContext `json:"context" yaml:"context"`
	Questions         []Question     `json:"questions" yaml:"questions"`
	CurrentQuestionID *int           `json:"currentQuestionId,omitempty" yaml:"currentQuestionId,omitempty"`
	Messages          []ChatMessage  `json:"-" yaml:"-"`
	Version           int64          `json:"-" yaml:"-"`
	CreatedAt         time.Time      `json:"createdAt" yaml:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt" yaml:"updatedAt"`
	Progress          Progress       `json:"progress" yaml:"progress"`
}

// Question returns a pointer into the catalogue for the given id, or nil.
func (s *Session) Question(id int) *Question {
	if i := FindQuestion(s.Questions, id); i >= 0 {
		return &s.Questions[i]
	}
	return nil
}

// RecentMessages returns at most the last n turns.
func (s *Session) RecentMessages(n int) []ChatMessage {
	if n <= 0 || n >= len(s.Messages) {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}
