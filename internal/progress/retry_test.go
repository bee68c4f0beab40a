package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pot-code/coursegate/internal/course"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyGateway fails the first n calls of GetPoints and SetPoints
type flakyGateway struct {
	Gateway
	failures int
	calls    int
	err      error
}

func (f *flakyGateway) GetPoints(ctx context.Context, learnerID string) (int, error) {
	f.calls++
	if f.calls <= f.failures {
		return 0, f.err
	}
	return 42, nil
}

func (f *flakyGateway) SetPoints(ctx context.Context, learnerID string, total int) error {
	f.calls++
	<-ctx.Done()
	return ctx.Err()
}

func (f *flakyGateway) InsertQuizResult(ctx context.Context, learnerID, courseID string, score, total int) (*QuizResult, error) {
	f.calls++
	return nil, ErrAlreadySubmitted
}

var fastRetry = RetryConfig{
	CallTimeout:    20 * time.Millisecond,
	MaxRetries:     2,
	InitialBackoff: time.Millisecond,
	MaxBackoff:     2 * time.Millisecond,
}

func TestWithRetry_RecoversFromTransientFailure(t *testing.T) {
	base := &flakyGateway{failures: 2, err: errors.New("connection reset")}
	g := WithRetry(base, fastRetry)

	points, err := g.GetPoints(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 42, points)
	assert.Equal(t, 3, base.calls)
}

func TestWithRetry_ExhaustedIsStoreUnavailable(t *testing.T) {
	cause := errors.New("connection reset")
	base := &flakyGateway{failures: 10, err: cause}
	g := WithRetry(base, fastRetry)

	_, err := g.GetPoints(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 3, base.calls)
}

func TestWithRetry_AttemptTimeout(t *testing.T) {
	base := &flakyGateway{}
	g := WithRetry(base, fastRetry)

	err := g.SetPoints(context.Background(), "u1", 1)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 3, base.calls)
}

func TestWithRetry_DomainErrorIsNotRetried(t *testing.T) {
	base := &flakyGateway{}
	g := WithRetry(base, fastRetry)

	_, err := g.InsertQuizResult(context.Background(), "u1", "c1", 1, 1)
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
	assert.NotErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, 1, base.calls)
}

func TestWithRetry_CancelledContextIsNotRetried(t *testing.T) {
	base := &flakyGateway{failures: 10, err: errors.New("connection reset")}
	g := WithRetry(base, fastRetry)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.GetPoints(ctx, "u1")
	assert.Error(t, err)
	assert.LessOrEqual(t, base.calls, 1)
}

// flakyCatalog fails the first n reads
type flakyCatalog struct {
	failures int
	calls    int
}

func (f *flakyCatalog) GetCourse(ctx context.Context, courseID string) (*course.CourseModel, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("connection refused")
	}
	return &course.CourseModel{ID: courseID}, nil
}

func (f *flakyCatalog) GetQuiz(ctx context.Context, courseID string) (*course.QuizModel, error) {
	f.calls++
	return nil, course.ErrQuizNotFound
}

func TestCatalogWithRetry(t *testing.T) {
	ctx := context.Background()

	base := &flakyCatalog{failures: 1}
	c, err := CatalogWithRetry(base, fastRetry).GetCourse(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ID)
	assert.Equal(t, 2, base.calls)

	base = &flakyCatalog{failures: 10}
	_, err = CatalogWithRetry(base, fastRetry).GetCourse(ctx, "c1")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, 3, base.calls)

	base = &flakyCatalog{}
	_, err = CatalogWithRetry(base, fastRetry).GetQuiz(ctx, "c1")
	assert.ErrorIs(t, err, course.ErrQuizNotFound)
	assert.NotErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, 1, base.calls)
}

func TestRetryConfig_Budget(t *testing.T) {
	cfg := RetryConfig{CallTimeout: time.Second, MaxRetries: 3, MaxBackoff: 2 * time.Second}
	// 4 attempts plus 3 waits of at most 2s with 50% jitter
	assert.Equal(t, 4*time.Second+9*time.Second, cfg.Budget())

	cfg.MaxRetries = 0
	assert.Equal(t, time.Second, cfg.Budget())
}
