package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/pot-code/coursegate/internal/course"
	"github.com/pot-code/coursegate/internal/infrastructure/logging"
	"go.uber.org/zap"
)

// RetryConfig bounds of a single logical store call
type RetryConfig struct {
	CallTimeout    time.Duration // per attempt, zero disables the timeout
	MaxRetries     uint          // attempts after the first one
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// permanentErrors are outcomes of the store, not failures of it
var permanentErrors = []error{
	ErrAlreadySubmitted,
	ErrAlreadyAwarded,
	course.ErrCourseNotFound,
	course.ErrQuizNotFound,
	course.ErrInvalidPositions,
}

type retryGateway struct {
	base Gateway
	cfg  RetryConfig
}

var _ Gateway = &retryGateway{}

// WithRetry decorate a Gateway so that every call runs under cfg.CallTimeout and
// transient failures are retried with exponential backoff. When the retries are
// exhausted the last error is returned wrapped in ErrStoreUnavailable.
func WithRetry(base Gateway, cfg RetryConfig) Gateway {
	return &retryGateway{base: base, cfg: cfg}
}

// Budget upper bound of one logical call: every attempt timing out plus the
// longest possible jittered wait before each retry
func (cfg RetryConfig) Budget() time.Duration {
	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = backoff.DefaultMaxInterval
	}
	maxWait := time.Duration(float64(maxBackoff) * (1 + backoff.DefaultRandomizationFactor))
	return cfg.CallTimeout*time.Duration(cfg.MaxRetries+1) + maxWait*time.Duration(cfg.MaxRetries)
}

func (cfg RetryConfig) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if cfg.InitialBackoff > 0 {
		b.InitialInterval = cfg.InitialBackoff
	}
	if cfg.MaxBackoff > 0 {
		b.MaxInterval = cfg.MaxBackoff
	}
	return b
}

func isPermanent(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	for _, target := range permanentErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func retry[T any](ctx context.Context, cfg RetryConfig, method string, op func(ctx context.Context) (T, error)) (T, error) {
	logger := logging.ExtractLoggerFromContext(ctx)
	permanent := false
	res, err := backoff.Retry(ctx, func() (T, error) {
		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if cfg.CallTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, cfg.CallTimeout)
		}
		defer cancel()

		res, err := op(attemptCtx)
		if err != nil && isPermanent(ctx, err) {
			permanent = true
			return res, backoff.Permanent(err)
		}
		return res, err
	},
		backoff.WithBackOff(cfg.newBackOff()),
		backoff.WithMaxTries(cfg.MaxRetries+1),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("progress store call failed, retrying",
				zap.String("store.method", method),
				zap.Duration("store.backoff", next),
				zap.Error(err))
		}),
	)
	if err != nil && !permanent {
		return res, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return res, err
}

func (rg *retryGateway) GetWatchRecords(ctx context.Context, learnerID, courseID string) (map[string]*WatchRecord, error) {
	return retry(ctx, rg.cfg, "GetWatchRecords", func(ctx context.Context) (map[string]*WatchRecord, error) {
		return rg.base.GetWatchRecords(ctx, learnerID, courseID)
	})
}

func (rg *retryGateway) UpsertWatchRecord(ctx context.Context, learnerID, lessonID string, state LockState) error {
	_, err := retry(ctx, rg.cfg, "UpsertWatchRecord", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, rg.base.UpsertWatchRecord(ctx, learnerID, lessonID, state)
	})
	return err
}

func (rg *retryGateway) GetQuizResult(ctx context.Context, learnerID, courseID string) (*QuizResult, error) {
	return retry(ctx, rg.cfg, "GetQuizResult", func(ctx context.Context) (*QuizResult, error) {
		return rg.base.GetQuizResult(ctx, learnerID, courseID)
	})
}

func (rg *retryGateway) InsertQuizResult(ctx context.Context, learnerID, courseID string, score, total int) (*QuizResult, error) {
	return retry(ctx, rg.cfg, "InsertQuizResult", func(ctx context.Context) (*QuizResult, error) {
		return rg.base.InsertQuizResult(ctx, learnerID, courseID, score, total)
	})
}

func (rg *retryGateway) GetPoints(ctx context.Context, learnerID string) (int, error) {
	return retry(ctx, rg.cfg, "GetPoints", func(ctx context.Context) (int, error) {
		return rg.base.GetPoints(ctx, learnerID)
	})
}

func (rg *retryGateway) SetPoints(ctx context.Context, learnerID string, total int) error {
	_, err := retry(ctx, rg.cfg, "SetPoints", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, rg.base.SetPoints(ctx, learnerID, total)
	})
	return err
}

func (rg *retryGateway) RecordAward(ctx context.Context, learnerID, lessonID string, amount int) error {
	_, err := retry(ctx, rg.cfg, "RecordAward", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, rg.base.RecordAward(ctx, learnerID, lessonID, amount)
	})
	return err
}

// Transact retries the whole transaction, fn receives the undecorated transactional gateway
func (rg *retryGateway) Transact(ctx context.Context, fn func(tx Gateway) error) error {
	_, err := retry(ctx, rg.cfg, "Transact", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, rg.base.Transact(ctx, fn)
	})
	return err
}

func (rg *retryGateway) Ping() error {
	return rg.base.Ping()
}

type retryCatalog struct {
	base course.Repository
	cfg  RetryConfig
}

var _ course.Repository = &retryCatalog{}

// CatalogWithRetry bounds catalog reads the way WithRetry bounds progress calls
func CatalogWithRetry(base course.Repository, cfg RetryConfig) course.Repository {
	return &retryCatalog{base: base, cfg: cfg}
}

func (rc *retryCatalog) GetCourse(ctx context.Context, courseID string) (*course.CourseModel, error) {
	return retry(ctx, rc.cfg, "GetCourse", func(ctx context.Context) (*course.CourseModel, error) {
		return rc.base.GetCourse(ctx, courseID)
	})
}

func (rc *retryCatalog) GetQuiz(ctx context.Context, courseID string) (*course.QuizModel, error) {
	return retry(ctx, rc.cfg, "GetQuiz", func(ctx context.Context) (*course.QuizModel, error) {
		return rc.base.GetQuiz(ctx, courseID)
	})
}
