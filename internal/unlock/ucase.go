package unlock

import (
	"context"

	"github.com/pot-code/coursegate/internal/course"
	"github.com/pot-code/coursegate/internal/progress"
	"go.elastic.co/apm"
)

// LessonProgress lesson with its effective state for a learner
type LessonProgress struct {
	*course.LessonModel
	State    progress.LockState `json:"state"`
	Playable bool               `json:"playable"`
}

// CourseProgress everything the rendering layer needs to draw the lesson list
type CourseProgress struct {
	CourseID       string            `json:"course_id"`
	Name           string            `json:"name"`
	Lessons        []*LessonProgress `json:"lessons"`
	ActiveLessonID string            `json:"active_lesson_id,omitempty"`
	QuizUnlocked   bool              `json:"quiz_unlocked"`
	QuizSubmitted  bool              `json:"quiz_submitted"`
	Points         int               `json:"points"`
}

type UseCase struct {
	Catalog course.Repository
	Gateway progress.Gateway
}

func NewUseCase(Catalog course.Repository, Gateway progress.Gateway) *UseCase {
	return &UseCase{Catalog: Catalog, Gateway: Gateway}
}

// GetCourseProgress a learner without identity sees the default states
func (uc *UseCase) GetCourseProgress(ctx context.Context, learnerID, courseID string) (*CourseProgress, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "UseCase.GetCourseProgress", "service")
	defer apmSpan.End()

	c, err := uc.Catalog.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	var (
		records map[string]*progress.WatchRecord
		result  *progress.QuizResult
		points  int
	)
	if learnerID != "" {
		if records, err = uc.Gateway.GetWatchRecords(ctx, learnerID, courseID); err != nil {
			return nil, err
		}
		if result, err = uc.Gateway.GetQuizResult(ctx, learnerID, courseID); err != nil {
			return nil, err
		}
		if points, err = uc.Gateway.GetPoints(ctx, learnerID); err != nil {
			return nil, err
		}
	}

	view := &CourseProgress{
		CourseID:      c.ID,
		Name:          c.Name,
		Lessons:       make([]*LessonProgress, 0, len(c.Lessons)),
		QuizUnlocked:  IsQuizUnlocked(c, records),
		QuizSubmitted: result != nil,
		Points:        points,
	}
	for _, l := range c.Lessons {
		state := EffectiveLock(l, records)
		view.Lessons = append(view.Lessons, &LessonProgress{
			LessonModel: l,
			State:       state,
			Playable:    state != progress.Locked,
		})
	}
	if active := ActiveLesson(c, records); active != nil {
		view.ActiveLessonID = active.ID
	}
	return view, nil
}
