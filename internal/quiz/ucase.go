package quiz

import (
	"context"
	"errors"

	"github.com/pot-code/coursegate/internal/course"
	"github.com/pot-code/coursegate/internal/event"
	"github.com/pot-code/coursegate/internal/infrastructure/logging"
	"github.com/pot-code/coursegate/internal/progress"
	"github.com/pot-code/coursegate/internal/unlock"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

// View what the learner may see of a quiz. A submitted quiz is shown in results
// mode: Result is set and Questions is empty.
type View struct {
	CourseID  string                  `json:"course_id"`
	Locked    bool                    `json:"locked"`
	Questions []*course.QuestionModel `json:"questions,omitempty"`
	Result    *progress.QuizResult    `json:"result,omitempty"`
}

// Submission stored result, AlreadyCompleted reports that it was submitted earlier
type Submission struct {
	Result           *progress.QuizResult `json:"result"`
	AlreadyCompleted bool                 `json:"already_completed"`
}

// UseCase sole writer of quiz results
type UseCase struct {
	Catalog   course.Repository
	Gateway   progress.Gateway
	Publisher event.Publisher
}

func NewUseCase(Catalog course.Repository, Gateway progress.Gateway, Publisher event.Publisher) *UseCase {
	return &UseCase{
		Catalog:   Catalog,
		Gateway:   Gateway,
		Publisher: Publisher,
	}
}

// gate loads the course and quiz and reports whether the quiz is open to the learner
func (uc *UseCase) gate(ctx context.Context, learnerID, courseID string) (*course.QuizModel, bool, error) {
	c, err := uc.Catalog.GetCourse(ctx, courseID)
	if err != nil {
		return nil, false, err
	}
	q, err := uc.Catalog.GetQuiz(ctx, courseID)
	if err != nil {
		return nil, false, err
	}

	var records map[string]*progress.WatchRecord
	if learnerID != "" {
		if records, err = uc.Gateway.GetWatchRecords(ctx, learnerID, courseID); err != nil {
			return nil, false, err
		}
	}
	return q, unlock.IsQuizUnlocked(c, records), nil
}

func (uc *UseCase) Get(ctx context.Context, learnerID, courseID string) (*View, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "QuizUseCase.Get", "service")
	defer apmSpan.End()

	q, open, err := uc.gate(ctx, learnerID, courseID)
	if err != nil {
		return nil, err
	}
	view := &View{CourseID: courseID, Locked: !open}
	if !open {
		return view, nil
	}

	if learnerID != "" {
		result, err := uc.Gateway.GetQuizResult(ctx, learnerID, courseID)
		if err != nil {
			return nil, err
		}
		if result != nil {
			view.Result = result
			return view, nil
		}
	}
	view.Questions = q.Questions
	return view, nil
}

// Submit scores and stores the first submission of the learner. A later
// submission returns the stored result untouched.
func (uc *UseCase) Submit(ctx context.Context, learnerID, courseID string, answers map[string]string) (*Submission, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "QuizUseCase.Submit", "service")
	defer apmSpan.End()

	logger := logging.ExtractLoggerFromContext(ctx).With(
		zap.String("course.id", courseID),
		zap.String("learner.id", learnerID),
	)

	q, open, err := uc.gate(ctx, learnerID, courseID)
	if err != nil {
		return nil, err
	}
	if !open {
		return nil, ErrQuizLocked
	}
	if learnerID != "" {
		existing, err := uc.Gateway.GetQuizResult(ctx, learnerID, courseID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return &Submission{Result: existing, AlreadyCompleted: true}, nil
		}
	}

	score, err := Score(q, answers)
	if err != nil {
		return nil, err
	}
	total := len(q.Questions)
	if learnerID == "" {
		logger.Debug("no learner identity, quiz result not persisted")
		return &Submission{Result: &progress.QuizResult{CourseID: courseID, Score: score, Total: total}}, nil
	}

	result, err := uc.Gateway.InsertQuizResult(ctx, learnerID, courseID, score, total)
	if errors.Is(err, progress.ErrAlreadySubmitted) {
		logger.Info("quiz submitted concurrently, returning stored result")
		existing, err := uc.Gateway.GetQuizResult(ctx, learnerID, courseID)
		if err != nil {
			return nil, err
		}
		return &Submission{Result: existing, AlreadyCompleted: true}, nil
	}
	if err != nil {
		return nil, err
	}

	uc.Publisher.Publish(ctx, event.QuizResult(learnerID, courseID, score, total))
	return &Submission{Result: result}, nil
}
