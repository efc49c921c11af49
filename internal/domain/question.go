// Package domain contains core domain types for the assessment service.
package domain

import "strings"

// Question is one catalogue entry. ID, Category, Text, SufficiencyRule and
// Mandatory are fixed for the catalogue's lifetime; the answer fields change.
type Question struct {
	ID                int    `json:"id" yaml:"id"`
	Category          string `json:"category" yaml:"category"`
	Text              string `json:"question" yaml:"question"`
	SufficiencyRule   string `json:"sufficiencyRule" yaml:"sufficiencyRule"`
	Mandatory         bool   `json:"mandatory" yaml:"mandatory"`
	AdditionalContext string `json:"additionalContext,omitempty" yaml:"additionalContext,omitempty"`
	Answer            string `json:"answer,omitempty" yaml:"answer,omitempty"`
	AnsweredBy        string `json:"answeredBy,omitempty" yaml:"answeredBy,omitempty"`
	Comments          string `json:"comments,omitempty" yaml:"comments,omitempty"`
}

// IsAnswered reports whether the question carries a non-blank answer.
func (q *Question) IsAnswered() bool {
	return strings.TrimSpace(q.Answer) != ""
}

// FindQuestion returns the index of the question with the given id, or -1.
func FindQuestion(questions []Question, id int) int {
	for i := range questions {
		if questions[i].ID == id {
			return i
		}
	}
	return -1
}

// CloneQuestions returns a copy of the catalogue that shares no backing array.
func CloneQuestions(questions []Question) []Question {
	if questions == nil {
		return nil
	}
	out := make([]Question, len(questions))
	copy(out, questions)
	return out
}
