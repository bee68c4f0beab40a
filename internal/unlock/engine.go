package unlock

import (
	"context"
	"errors"

	"github.com/pot-code/coursegate/internal/course"
	"github.com/pot-code/coursegate/internal/event"
	"github.com/pot-code/coursegate/internal/infrastructure/logging"
	"github.com/pot-code/coursegate/internal/progress"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

// ErrOutOfOrderCompletion completed lesson is neither the active lesson nor already completed
var ErrOutOfOrderCompletion = errors.New("Lesson completed out of order")

// ErrLessonNotFound lesson does not belong to the course
var ErrLessonNotFound = errors.New("Lesson not found")

// Completion outcome of a lesson completion
type Completion struct {
	CourseID string `json:"course_id"`
	LessonID string `json:"lesson_id"`
	// FirstCompletion the lesson was not completed before this call
	FirstCompletion bool `json:"first_completion"`
	PointsAwarded   int  `json:"points_awarded"`
	TotalPoints     int  `json:"total_points"`
	// NextLessonID lesson at the following position, empty for the final lesson
	NextLessonID string `json:"next_lesson_id,omitempty"`
	// Unlocked the next lesson was locked before this call
	Unlocked    bool `json:"unlocked"`
	FinalLesson bool `json:"final_lesson"`
	// Persisted false when nothing was written, which happens without a learner identity
	Persisted bool `json:"persisted"`
}

// Engine sole writer of lock state and points
type Engine struct {
	Gateway     progress.Gateway
	Publisher   event.Publisher
	PointsAward int
}

func NewEngine(Gateway progress.Gateway, Publisher event.Publisher, PointsAward int) *Engine {
	return &Engine{
		Gateway:     Gateway,
		Publisher:   Publisher,
		PointsAward: PointsAward,
	}
}

// OnLessonCompleted marks the lesson completed, awards points on the first completion
// and unlocks the lesson at the following position. Completing a lesson again
// re-confirms the unlock of the next lesson and awards nothing.
func (e *Engine) OnLessonCompleted(ctx context.Context, learnerID string, c *course.CourseModel, lessonID string) (*Completion, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "Engine.OnLessonCompleted", "service")
	defer apmSpan.End()

	logger := logging.ExtractLoggerFromContext(ctx).With(
		zap.String("course.id", c.ID),
		zap.String("lesson.id", lessonID),
	)

	lesson := c.Lesson(lessonID)
	if lesson == nil {
		return nil, ErrLessonNotFound
	}
	next := c.Next(lesson)
	result := &Completion{
		CourseID:    c.ID,
		LessonID:    lessonID,
		FinalLesson: next == nil,
	}
	if next != nil {
		result.NextLessonID = next.ID
	}
	if learnerID == "" {
		logger.Debug("no learner identity, completion not persisted")
		return result, nil
	}

	records, err := e.Gateway.GetWatchRecords(ctx, learnerID, c.ID)
	if err != nil {
		return nil, err
	}
	current := EffectiveLock(lesson, records)
	if current != progress.Completed {
		if active := ActiveLesson(c, records); active == nil || active.ID != lessonID {
			logger.Warn("rejected out of order completion", zap.String("learner.id", learnerID))
			return nil, ErrOutOfOrderCompletion
		}
	}

	var (
		awarded, total int
		firstTime      bool
		unlocked       bool
	)
	err = e.Gateway.Transact(ctx, func(tx progress.Gateway) error {
		awarded, total, firstTime, unlocked = 0, 0, false, false

		if err := tx.UpsertWatchRecord(ctx, learnerID, lessonID, progress.Completed); err != nil {
			return err
		}
		if current != progress.Completed {
			firstTime = true
			if e.PointsAward > 0 {
				err := tx.RecordAward(ctx, learnerID, lessonID, e.PointsAward)
				switch {
				case errors.Is(err, progress.ErrAlreadyAwarded):
					// completed concurrently from another device
					firstTime = false
				case err != nil:
					return err
				default:
					cur, err := tx.GetPoints(ctx, learnerID)
					if err != nil {
						return err
					}
					awarded, total = e.PointsAward, cur+e.PointsAward
					if err := tx.SetPoints(ctx, learnerID, total); err != nil {
						return err
					}
				}
			}
		}
		if next != nil {
			prev := EffectiveLock(next, records)
			if prev != progress.Completed {
				if err := tx.UpsertWatchRecord(ctx, learnerID, next.ID, progress.Unlocked); err != nil {
					return err
				}
			}
			unlocked = prev == progress.Locked
		}
		return nil
	})
	if err != nil {
		logger.Error("failed to persist completion", zap.String("learner.id", learnerID), zap.Error(err))
		return nil, err
	}

	result.Persisted = true
	result.FirstCompletion = firstTime
	result.PointsAwarded = awarded
	result.TotalPoints = total
	result.Unlocked = unlocked

	if firstTime {
		e.Publisher.Publish(ctx, event.LessonCompleted(learnerID, c.ID, lessonID))
	}
	if awarded > 0 {
		e.Publisher.Publish(ctx, event.PointsAwarded(learnerID, awarded, total))
	}
	if unlocked {
		e.Publisher.Publish(ctx, event.LessonUnlocked(learnerID, c.ID, next.ID))
	}
	return result, nil
}

// QuizGate reads the learner records and evaluates IsQuizUnlocked
func (e *Engine) QuizGate(ctx context.Context, learnerID string, c *course.CourseModel) (bool, error) {
	if learnerID == "" {
		return IsQuizUnlocked(c, nil), nil
	}
	records, err := e.Gateway.GetWatchRecords(ctx, learnerID, c.ID)
	if err != nil {
		return false, err
	}
	return IsQuizUnlocked(c, records), nil
}
