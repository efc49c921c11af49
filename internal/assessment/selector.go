package assessment

import (
	"strings"

	"github.com/ashureev/assessor/internal/domain"
)

// OffTopicKeyword excludes questions mentioning Keyword unless the project
// overview mentions Stem. Stem is usually a shorter form so that
// "manufacturer" in an overview keeps manufacturing questions relevant.
type OffTopicKeyword struct {
	Keyword string
	Stem    string
}

// DefaultOffTopicKeywords are the industry-specific terms filtered by SelectNext.
var DefaultOffTopicKeywords = []OffTopicKeyword{
	{Keyword: "manufacturing", Stem: "manufactur"},
	{Keyword: "healthcare", Stem: "health"},
}

// CategoryGroup holds the questions of one category in catalogue order.
type CategoryGroup struct {
	Category  string
	Questions []*domain.Question
}

// GroupByCategory partitions questions by category, keeping first-seen order
// for both the groups and the questions inside them.
func GroupByCategory(questions []*domain.Question) []CategoryGroup {
	index := make(map[string]int)
	var groups []CategoryGroup
	for _, q := range questions {
		idx, ok := index[q.Category]
		if !ok {
			idx = len(groups)
			index[q.Category] = idx
			groups = append(groups, CategoryGroup{Category: q.Category})
		}
		groups[idx].Questions = append(groups[idx].Questions, q)
	}
	return groups
}

// Unanswered returns pointers to unanswered questions in catalogue order.
// When mandatoryOnly is set, optional questions are skipped.
func Unanswered(questions []domain.Question, mandatoryOnly bool) []*domain.Question {
	var out []*domain.Question
	for i := range questions {
		q := &questions[i]
		if q.IsAnswered() {
			continue
		}
		if mandatoryOnly && !q.Mandatory {
			continue
		}
		out = append(out, q)
	}
	return out
}

// SelectNext picks the next question to ask using DefaultOffTopicKeywords.
// It returns nil when the catalogue is fully answered.
func SelectNext(questions []domain.Question, overview string) *domain.Question {
	return SelectNextWith(questions, overview, DefaultOffTopicKeywords)
}

// SelectNextWith is SelectNext with an explicit keyword list.
//
// Unanswered mandatory questions always win: the category holding the most
// of them is chosen (ties go to the category seen first) and its first
// question is returned. Otherwise the first unanswered question that passes
// the relevance filter is returned, falling back to the first unanswered
// question when the filter rejects all of them.
func SelectNextWith(questions []domain.Question, overview string, keywords []OffTopicKeyword) *domain.Question {
	if mandatory := Unanswered(questions, true); len(mandatory) > 0 {
		groups := GroupByCategory(mandatory)
		best := groups[0]
		for _, g := range groups[1:] {
			if len(g.Questions) > len(best.Questions) {
				best = g
			}
		}
		return best.Questions[0]
	}

	unanswered := Unanswered(questions, false)
	if len(unanswered) == 0 {
		return nil
	}

	overviewLower := strings.ToLower(overview)
	for _, q := range unanswered {
		if isRelevant(strings.ToLower(q.Text), overviewLower, keywords) {
			return q
		}
	}
	return unanswered[0]
}

func isRelevant(questionLower, overviewLower string, keywords []OffTopicKeyword) bool {
	for _, k := range keywords {
		stem := k.Stem
		if stem == "" {
			stem = k.Keyword
		}
		if strings.Contains(questionLower, strings.ToLower(k.Keyword)) &&
			!strings.Contains(overviewLower, strings.ToLower(stem)) {
			return false
		}
	}
	return true
}
