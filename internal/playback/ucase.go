package playback

import (
	"context"
	"errors"
	"time"

	"github.com/pot-code/coursegate/internal/course"
	"github.com/pot-code/coursegate/internal/event"
	"github.com/pot-code/coursegate/internal/infrastructure/logging"
	"github.com/pot-code/coursegate/internal/infrastructure/uuid"
	"github.com/pot-code/coursegate/internal/progress"
	"github.com/pot-code/coursegate/internal/unlock"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

// ErrLessonLocked lesson cannot be played yet
var ErrLessonLocked = errors.New("Lesson is locked")

// Outcome result of a playback signal
type Outcome struct {
	SessionID string `json:"session_id"`
	State     State  `json:"state"`
	// Completion set when this signal completed the lesson
	Completion   *unlock.Completion `json:"completion,omitempty"`
	QuizUnlocked bool               `json:"quiz_unlocked"`
	// NextLessonID lesson to advance to after a natural end, empty when the
	// session was replaced meanwhile or the lesson is the final one
	NextLessonID string `json:"next_lesson_id,omitempty"`
}

type UseCase struct {
	Catalog       course.Repository
	Gateway       progress.Gateway
	Engine        *unlock.Engine
	Sessions      *SessionStore
	Detector      *Detector
	Publisher     event.Publisher
	UUIDGenerator uuid.Generator
	StoreTimeout  time.Duration
}

func NewUseCase(
	Catalog course.Repository,
	Gateway progress.Gateway,
	Engine *unlock.Engine,
	Sessions *SessionStore,
	Detector *Detector,
	Publisher event.Publisher,
	UUIDGenerator uuid.Generator,
	StoreTimeout time.Duration,
) *UseCase {
	return &UseCase{
		Catalog:       Catalog,
		Gateway:       Gateway,
		Engine:        Engine,
		Sessions:      Sessions,
		Detector:      Detector,
		Publisher:     Publisher,
		UUIDGenerator: UUIDGenerator,
		StoreTimeout:  StoreTimeout,
	}
}

// Start opens a session on lesson, replacing any session of the learner
func (uc *UseCase) Start(ctx context.Context, learnerID, courseID, lessonID string) (*Session, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "PlaybackUseCase.Start", "service")
	defer apmSpan.End()

	c, err := uc.Catalog.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	lesson := c.Lesson(lessonID)
	if lesson == nil {
		return nil, unlock.ErrLessonNotFound
	}

	var records map[string]*progress.WatchRecord
	if learnerID != "" {
		if records, err = uc.Gateway.GetWatchRecords(ctx, learnerID, courseID); err != nil {
			return nil, err
		}
	}
	if !unlock.CanPlay(lesson, records) {
		return nil, ErrLessonLocked
	}

	id, err := uc.UUIDGenerator.Generate()
	if err != nil {
		return nil, err
	}
	s := &Session{
		ID:        id,
		LearnerID: learnerID,
		CourseID:  courseID,
		LessonID:  lessonID,
		Duration:  float64(lesson.Duration),
		State:     Playing,
		StartedAt: time.Now().UTC(),
	}
	if learnerID == "" {
		return s, nil
	}
	if err := uc.Sessions.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Progress reports the playback position, duration is what the player sees and
// is only used when the catalog does not know the lesson duration
func (uc *UseCase) Progress(ctx context.Context, learnerID, sessionID string, position, duration float64) (*Outcome, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "PlaybackUseCase.Progress", "service")
	defer apmSpan.End()

	return uc.signal(ctx, learnerID, sessionID, func(s *Session) bool {
		if s.Duration > 0 {
			duration = s.Duration
		}
		return uc.Detector.Observe(s, position, duration)
	})
}

// Ended reports the natural end of the media
func (uc *UseCase) Ended(ctx context.Context, learnerID, sessionID string) (*Outcome, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "PlaybackUseCase.Ended", "service")
	defer apmSpan.End()

	outcome, err := uc.signal(ctx, learnerID, sessionID, uc.Detector.Ended)
	if err != nil || learnerID == "" {
		return outcome, err
	}

	// auto-advance only while the learner is still on this session
	if s, err := uc.Sessions.Lookup(ctx, learnerID, sessionID); err == nil {
		next, err := uc.nextPlayable(ctx, s)
		if err != nil {
			return nil, err
		}
		outcome.NextLessonID = next
	}
	return outcome, nil
}

func (uc *UseCase) nextPlayable(ctx context.Context, s *Session) (string, error) {
	c, err := uc.Catalog.GetCourse(ctx, s.CourseID)
	if err != nil {
		return "", err
	}
	lesson := c.Lesson(s.LessonID)
	if lesson == nil {
		return "", nil
	}
	next := c.Next(lesson)
	if next == nil {
		return "", nil
	}
	records, err := uc.Gateway.GetWatchRecords(ctx, s.LearnerID, s.CourseID)
	if err != nil {
		return "", err
	}
	if !unlock.CanPlay(next, records) {
		return "", nil
	}
	return next.ID, nil
}

// signal loads the session, applies transition and hands a completion over to the engine
func (uc *UseCase) signal(ctx context.Context, learnerID, sessionID string, transition func(s *Session) bool) (*Outcome, error) {
	if learnerID == "" {
		return &Outcome{SessionID: sessionID}, nil
	}
	logger := logging.ExtractLoggerFromContext(ctx).With(
		zap.String("learner.id", learnerID),
		zap.String("session.id", sessionID),
	)

	s, err := uc.Sessions.Lookup(ctx, learnerID, sessionID)
	if err != nil {
		return nil, err
	}
	outcome := &Outcome{SessionID: s.ID, State: s.State}
	prev := s.State
	if !transition(s) {
		outcome.State = s.State
		if s.State != prev {
			return outcome, uc.saveIfCurrent(ctx, s)
		}
		return outcome, nil
	}

	// the learner may navigate away, the write must still land
	storeCtx, cancel := uc.detach(ctx)
	defer cancel()

	claimed, err := uc.Sessions.Claim(storeCtx, s)
	if err != nil {
		return nil, err
	}
	outcome.State = s.State
	if !claimed {
		logger.Debug("completion already claimed")
		return outcome, nil
	}

	completion, err := uc.complete(storeCtx, s)
	if err != nil {
		if rerr := uc.Sessions.Release(storeCtx, s); rerr != nil {
			logger.Error("failed to release completion claim", zap.Error(rerr))
		}
		return nil, err
	}
	outcome.Completion = completion.Completion
	outcome.QuizUnlocked = completion.quizUnlocked

	if err := uc.saveIfCurrent(storeCtx, s); err != nil {
		logger.Warn("failed to save session", zap.Error(err))
	}
	return outcome, nil
}

func (uc *UseCase) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if uc.StoreTimeout <= 0 {
		return context.WithCancel(detached)
	}
	return context.WithTimeout(detached, uc.StoreTimeout)
}

// saveIfCurrent does not resurrect a session that was replaced meanwhile
func (uc *UseCase) saveIfCurrent(ctx context.Context, s *Session) error {
	if _, err := uc.Sessions.Lookup(ctx, s.LearnerID, s.ID); err != nil {
		if errors.Is(err, ErrStaleSession) || errors.Is(err, ErrNoSession) {
			return nil
		}
		return err
	}
	return uc.Sessions.Save(ctx, s)
}

type completionResult struct {
	*unlock.Completion
	quizUnlocked bool
}

func (uc *UseCase) complete(ctx context.Context, s *Session) (*completionResult, error) {
	c, err := uc.Catalog.GetCourse(ctx, s.CourseID)
	if err != nil {
		return nil, err
	}
	completion, err := uc.Engine.OnLessonCompleted(ctx, s.LearnerID, c, s.LessonID)
	if err != nil {
		return nil, err
	}
	result := &completionResult{Completion: completion}
	if !completion.FinalLesson || !completion.Persisted {
		return result, nil
	}

	open, err := uc.Engine.QuizGate(ctx, s.LearnerID, c)
	if err != nil {
		return nil, err
	}
	result.quizUnlocked = open
	if open && completion.FirstCompletion {
		uc.Publisher.Publish(ctx, event.QuizUnlocked(s.LearnerID, c.ID))
	}
	return result, nil
}
