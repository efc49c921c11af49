package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/assessor/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testCatalogue() []domain.Question {
	return []domain.Question{
		{ID: 1, Category: "A", Text: "Question one?", SufficiencyRule: "detail", Mandatory: true},
		{ID: 2, Category: "A", Text: "Question two?", Mandatory: true},
		{ID: 3, Category: "B", Text: "Question three?"},
	}
}

var testContext = domain.SessionContext{
	ClientName:      "Acme",
	ProjectName:     "Lift and shift",
	ProjectOverview: "retail e-commerce platform",
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, testContext, testCatalogue())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, testContext, got.Context)
	assert.Equal(t, testCatalogue(), got.Questions)
	assert.Empty(t, got.Messages)
	assert.Nil(t, got.CurrentQuestionID)
	assert.Equal(t, domain.Progress{Total: 3, Mandatory: 2}, got.Progress)
	assert.Equal(t, got.CreatedAt, got.UpdatedAt)
}

func TestCreateRejectsBadCatalogue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, testContext, nil)
	assert.ErrorIs(t, err, domain.ErrMalformedInput)

	dup := []domain.Question{{ID: 1}, {ID: 1}}
	_, err = s.Create(ctx, testContext, dup)
	assert.ErrorIs(t, err, domain.ErrMalformedInput)
}

func TestGetMissingSession(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestUpdateAnswerRecomputesProgress(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, err := s.Create(ctx, testContext, testCatalogue())
	require.NoError(t, err)

	before, err := s.Get(ctx, id)
	require.NoError(t, err)

	updated, err := s.UpdateAnswer(ctx, id, 1, "forty servers on vmware", "Client SME", "")
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Progress.Answered)
	assert.Equal(t, 1, updated.Progress.MandatoryAnswered)
	assert.Equal(t, 33, updated.Progress.PercentComplete)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "forty servers on vmware", got.Question(1).Answer)
	assert.Equal(t, "Client SME", got.Question(1).AnsweredBy)
	assert.Equal(t, updated.Progress, got.Progress)
	assert.Equal(t, before.CreatedAt, got.CreatedAt)
	assert.False(t, got.UpdatedAt.Before(before.UpdatedAt))
	assert.Equal(t, before.Version+1, got.Version)
}

func TestUpdateAnswerNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, err := s.Create(ctx, testContext, testCatalogue())
	require.NoError(t, err)

	_, err = s.UpdateAnswer(ctx, "nope", 1, "x", "y", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.UpdateAnswer(ctx, id, 99, "x", "y", "")
	assert.ErrorIs(t, err, domain.ErrQuestionNotFound)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version, "failed update must not write")
}

func TestApplyAbortsOnMutateError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, err := s.Create(ctx, testContext, testCatalogue())
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = s.Apply(ctx, id, func(sess *domain.Session) error {
		sess.Questions[0].Answer = "should not persist"
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, got.Questions[0].Answer)
}

func TestApplyPersistsMessagesAndCurrentQuestion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, err := s.Create(ctx, testContext, testCatalogue())
	require.NoError(t, err)

	qid := 2
	_, err = s.Apply(ctx, id, func(sess *domain.Session) error {
		sess.Messages = append(sess.Messages,
			domain.ChatMessage{Role: domain.RoleUser, Content: "hello", Timestamp: time.Now().UTC()},
			domain.ChatMessage{Role: domain.RoleAssistant, Content: "Question two?", Timestamp: time.Now().UTC(), QuestionID: &qid},
		)
		sess.CurrentQuestionID = &qid
		return nil
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	require.NotNil(t, got.Messages[1].QuestionID)
	assert.Equal(t, 2, *got.Messages[1].QuestionID)
	require.NotNil(t, got.CurrentQuestionID)
	assert.Equal(t, 2, *got.CurrentQuestionID)
}

func TestApplyConcurrentWritersDoNotLoseUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, err := s.Create(ctx, testContext, testCatalogue())
	require.NoError(t, err)

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := s.Apply(ctx, id, func(sess *domain.Session) error {
				sess.Messages = append(sess.Messages, domain.ChatMessage{
					Role:      domain.RoleUser,
					Content:   fmt.Sprintf("turn %d", n),
					Timestamp: time.Now().UTC(),
				})
				return nil
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, got.Messages, writers)
	assert.Equal(t, int64(writers+1), got.Version)
	assert.Zero(t, s.locks.size(), "lock table should drain")
}

func TestListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	first, err := s.Create(ctx, testContext, testCatalogue())
	require.NoError(t, err)
	s.now = func() time.Time { return base.Add(time.Hour) }
	second, err := s.Create(ctx, testContext, testCatalogue())
	require.NoError(t, err)

	sessions, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, second, sessions[0].ID)
	assert.Equal(t, first, sessions[1].ID)
	assert.Nil(t, sessions[0].Messages)
}

func TestDeleteIdle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	s.now = func() time.Time { return old }
	stale, err := s.Create(ctx, testContext, testCatalogue())
	require.NoError(t, err)
	s.now = time.Now
	fresh, err := s.Create(ctx, testContext, testCatalogue())
	require.NoError(t, err)

	deleted, err := s.DeleteIdle(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{stale}, deleted)

	_, err = s.Get(ctx, stale)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.Get(ctx, fresh)
	assert.NoError(t, err)
}

func TestIsBusyError(t *testing.T) {
	assert.False(t, IsBusyError(nil))
	assert.True(t, IsBusyError(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.True(t, IsBusyError(fmt.Errorf("wrap: %w", errors.New("SQLITE_BUSY"))))
	assert.False(t, IsBusyError(errors.New("no such table")))
}

func appendTurn(content string) MutateFunc {
	return func(sess *domain.Session) error {
		sess.Messages = append(sess.Messages, domain.ChatMessage{
			Role:      domain.RoleUser,
			Content:   content,
			Timestamp: time.Now().UTC(),
		})
		return nil
	}
}

func openPair(t *testing.T) (*SQLiteStore, *SQLiteStore) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessions.db")
	a, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	b, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return a, b
}

func TestApplyOnceDetectsWriteFromAnotherStore(t *testing.T) {
	a, b := openPair(t)
	ctx := context.Background()
	id, err := a.Create(ctx, testContext, testCatalogue())
	require.NoError(t, err)

	_, err = a.applyOnce(ctx, id, func(sess *domain.Session) error {
		_, err := b.Apply(ctx, id, appendTurn("from b"))
		require.NoError(t, err)
		return appendTurn("from a")(sess)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConflict)

	got, err := a.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "from b", got.Messages[0].Content)
	assert.Equal(t, int64(2), got.Version)
}

func TestApplyRetriesAfterWriteFromAnotherStore(t *testing.T) {
	a, b := openPair(t)
	ctx := context.Background()
	id, err := a.Create(ctx, testContext, testCatalogue())
	require.NoError(t, err)

	calls := 0
	got, err := a.Apply(ctx, id, func(sess *domain.Session) error {
		calls++
		if calls == 1 {
			_, err := b.Apply(ctx, id, appendTurn("from b"))
			require.NoError(t, err)
		}
		return appendTurn("from a")(sess)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, int64(3), got.Version)

	stored, err := b.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, stored.Messages, 2)
	assert.Equal(t, "from b", stored.Messages[0].Content)
	assert.Equal(t, "from a", stored.Messages[1].Content)
}
