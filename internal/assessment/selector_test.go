package assessment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/assessor/internal/domain"
)

func answer(questions []domain.Question, id int, text string) {
	questions[domain.FindQuestion(questions, id)].Answer = text
}

func TestSelectNextWalkthrough(t *testing.T) {
	t.Parallel()

	questions := []domain.Question{
		{ID: 1, Category: "A", Mandatory: true, Text: "How many servers?"},
		{ID: 2, Category: "A", Mandatory: true, Text: "Which databases?"},
		{ID: 3, Category: "B", Text: "Any batch jobs?"},
	}

	next := SelectNext(questions, "retail platform")
	require.NotNil(t, next)
	assert.Equal(t, 1, next.ID)

	answer(questions, 1, "about forty virtual machines")
	next = SelectNext(questions, "retail platform")
	require.NotNil(t, next)
	assert.Equal(t, 2, next.ID)

	answer(questions, 2, "postgres and redis")
	next = SelectNext(questions, "retail platform")
	require.NotNil(t, next)
	assert.Equal(t, 3, next.ID)

	answer(questions, 3, "nightly reconciliation")
	assert.Nil(t, SelectNext(questions, "retail platform"))
	assert.Equal(t, 100, ComputeProgress(questions).PercentComplete)
}

func TestSelectNextPicksLargestMandatoryCategory(t *testing.T) {
	t.Parallel()

	questions := []domain.Question{
		{ID: 1, Category: "Security", Mandatory: true},
		{ID: 2, Category: "Data", Mandatory: true},
		{ID: 3, Category: "Data", Mandatory: true},
		{ID: 4, Category: "Security", Mandatory: false},
	}

	next := SelectNext(questions, "")
	require.NotNil(t, next)
	assert.Equal(t, 2, next.ID)
}

func TestSelectNextTieGoesToFirstCategory(t *testing.T) {
	t.Parallel()

	questions := []domain.Question{
		{ID: 10, Category: "Ops", Text: "optional first"},
		{ID: 11, Category: "Network", Mandatory: true},
		{ID: 12, Category: "Storage", Mandatory: true},
		{ID: 13, Category: "Storage", Mandatory: true},
		{ID: 14, Category: "Network", Mandatory: true},
	}

	next := SelectNext(questions, "")
	require.NotNil(t, next)
	assert.Equal(t, 11, next.ID)
}

func TestSelectNextNeverReturnsOptionalWhileMandatoryRemain(t *testing.T) {
	t.Parallel()

	questions := []domain.Question{
		{ID: 1, Category: "A"},
		{ID: 2, Category: "A"},
		{ID: 3, Category: "B", Mandatory: true},
	}

	next := SelectNext(questions, "")
	require.NotNil(t, next)
	assert.True(t, next.Mandatory)
	assert.Equal(t, 3, next.ID)
}

func TestSelectNextIsDeterministic(t *testing.T) {
	t.Parallel()

	questions := []domain.Question{
		{ID: 1, Category: "A", Mandatory: true},
		{ID: 2, Category: "B", Mandatory: true},
		{ID: 3, Category: "B", Mandatory: true},
	}
	first := SelectNext(questions, "overview")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first.ID, SelectNext(questions, "overview").ID)
	}
}

func TestSelectNextRelevanceFilter(t *testing.T) {
	t.Parallel()

	questions := []domain.Question{
		{ID: 1, Category: "Ops", Text: "Describe your manufacturing execution systems"},
		{ID: 2, Category: "Ops", Text: "Describe your deployment pipeline"},
	}

	next := SelectNext(questions, "Retail e-commerce platform")
	require.NotNil(t, next)
	assert.Equal(t, 2, next.ID, "off-topic question should be skipped")

	answer(questions, 2, "github actions to ECS")
	next = SelectNext(questions, "Retail e-commerce platform")
	require.NotNil(t, next)
	assert.Equal(t, 1, next.ID, "last remaining question is returned even when off-topic")
}

func TestSelectNextRelevanceFilterKeepsMatchingOverview(t *testing.T) {
	t.Parallel()

	questions := []domain.Question{
		{ID: 1, Category: "Ops", Text: "Which HEALTHCARE regulations apply?"},
		{ID: 2, Category: "Ops", Text: "Describe your deployment pipeline"},
	}

	next := SelectNext(questions, "Regional health provider portal")
	require.NotNil(t, next)
	assert.Equal(t, 1, next.ID)
}

func TestGroupByCategory(t *testing.T) {
	t.Parallel()

	questions := []domain.Question{
		{ID: 1, Category: "B"},
		{ID: 2, Category: "A"},
		{ID: 3, Category: "B"},
	}
	groups := GroupByCategory(Unanswered(questions, false))
	require.Len(t, groups, 2)
	assert.Equal(t, "B", groups[0].Category)
	assert.Len(t, groups[0].Questions, 2)
	assert.Equal(t, 3, groups[0].Questions[1].ID)
}
