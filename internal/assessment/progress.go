// Package assessment implements the decision logic of an assessment session:
// progress accounting, next-question selection and reconciliation of free-text
// replies against the pending question. Every function here is pure.
package assessment

import (
	"math"

	"github.com/ashureev/assessor/internal/domain"
)

// ComputeProgress derives completion statistics from a catalogue snapshot.
func ComputeProgress(questions []domain.Question) domain.Progress {
	var p domain.Progress
	p.Total = len(questions)
	for i := range questions {
		answered := questions[i].IsAnswered()
		if answered {
			p.Answered++
		}
		if questions[i].Mandatory {
			p.Mandatory++
			if answered {
				p.MandatoryAnswered++
			}
		}
	}
	if p.Total > 0 {
		p.PercentComplete = int(math.Round(float64(p.Answered) / float64(p.Total) * 100))
	}
	return p
}

// CategoryStat counts questions and answers within one category.
type CategoryStat struct {
	Category string `json:"category" yaml:"category"`
	Total    int    `json:"total" yaml:"total"`
	Answered int    `json:"answered" yaml:"answered"`
}

// CategoryStats returns per-category counts in first-seen catalogue order.
func CategoryStats(questions []domain.Question) []CategoryStat {
	index := make(map[string]int)
	var stats []CategoryStat
	for i := range questions {
		q := &questions[i]
		idx, ok := index[q.Category]
		if !ok {
			idx = len(stats)
			index[q.Category] = idx
			stats = append(stats, CategoryStat{Category: q.Category})
		}
		stats[idx].Total++
		if q.IsAnswered() {
			stats[idx].Answered++
		}
	}
	return stats
}
