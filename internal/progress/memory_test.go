package progress

import (
	"context"
	"errors"
	"testing"

	"github.com/pot-code/coursegate/internal/course"
	"github.com/pot-code/coursegate/internal/infrastructure/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T) *MemoryGateway {
	t.Helper()
	catalog, err := course.NewMemoryCatalog([]*course.CourseModel{
		{ID: "c1", Lessons: []*course.LessonModel{{ID: "l1", Position: 1}, {ID: "l2", Position: 2}}},
		{ID: "c2", Lessons: []*course.LessonModel{{ID: "x1", Position: 1}}},
	}, nil)
	require.NoError(t, err)
	return NewMemoryGateway(catalog, uuid.NewNanoIDGenerator(12))
}

func TestMemoryGateway_UpsertNeverDowngrades(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway(t)

	require.NoError(t, g.UpsertWatchRecord(ctx, "u1", "l1", Completed))
	require.NoError(t, g.UpsertWatchRecord(ctx, "u1", "l1", Unlocked))
	require.NoError(t, g.UpsertWatchRecord(ctx, "u1", "l2", Unlocked))

	records, err := g.GetWatchRecords(ctx, "u1", "c1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, Completed, records["l1"].State)
	assert.Equal(t, Unlocked, records["l2"].State)
}

func TestMemoryGateway_RecordsScopedByCourseAndLearner(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway(t)

	require.NoError(t, g.UpsertWatchRecord(ctx, "u1", "l1", Completed))
	require.NoError(t, g.UpsertWatchRecord(ctx, "u1", "x1", Completed))
	require.NoError(t, g.UpsertWatchRecord(ctx, "u2", "l2", Unlocked))

	records, err := g.GetWatchRecords(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Contains(t, records, "l1")

	_, err = g.GetWatchRecords(ctx, "u1", "missing")
	assert.ErrorIs(t, err, course.ErrCourseNotFound)
}

func TestMemoryGateway_QuizResultCreateOnce(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway(t)

	none, err := g.GetQuizResult(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Nil(t, none)

	first, err := g.InsertQuizResult(ctx, "u1", "c1", 3, 5)
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	_, err = g.InsertQuizResult(ctx, "u1", "c1", 5, 5)
	assert.ErrorIs(t, err, ErrAlreadySubmitted)

	stored, err := g.GetQuizResult(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Score)
	assert.Equal(t, first.ID, stored.ID)
}

func TestMemoryGateway_AwardOnce(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway(t)

	require.NoError(t, g.RecordAward(ctx, "u1", "l1", 10))
	assert.ErrorIs(t, g.RecordAward(ctx, "u1", "l1", 10), ErrAlreadyAwarded)
	assert.NoError(t, g.RecordAward(ctx, "u2", "l1", 10))
}

func TestMemoryGateway_PointsNeverDecrease(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway(t)

	points, err := g.GetPoints(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, points)

	require.NoError(t, g.SetPoints(ctx, "u1", 20))
	require.NoError(t, g.SetPoints(ctx, "u1", 10))
	points, err = g.GetPoints(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 20, points)
}

func TestMemoryGateway_TransactRollsBack(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway(t)
	boom := errors.New("boom")

	err := g.Transact(ctx, func(tx Gateway) error {
		require.NoError(t, tx.RecordAward(ctx, "u1", "l1", 10))
		require.NoError(t, tx.SetPoints(ctx, "u1", 10))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	points, _ := g.GetPoints(ctx, "u1")
	assert.Equal(t, 0, points)
	assert.NoError(t, g.RecordAward(ctx, "u1", "l1", 10), "award must have been rolled back")
}

func TestMemoryGateway_TransactCommits(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway(t)

	err := g.Transact(ctx, func(tx Gateway) error {
		if err := tx.RecordAward(ctx, "u1", "l1", 10); err != nil {
			return err
		}
		cur, err := tx.GetPoints(ctx, "u1")
		if err != nil {
			return err
		}
		return tx.SetPoints(ctx, "u1", cur+10)
	})
	require.NoError(t, err)

	points, _ := g.GetPoints(ctx, "u1")
	assert.Equal(t, 10, points)
}
