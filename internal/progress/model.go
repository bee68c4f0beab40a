package progress

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable store could not be reached within the retry budget
var ErrStoreUnavailable = errors.New("Progress store unavailable")

// ErrAlreadySubmitted a quiz result exists for the learner and course
var ErrAlreadySubmitted = errors.New("Quiz already submitted")

// ErrAlreadyAwarded points were already awarded for the learner and lesson
var ErrAlreadyAwarded = errors.New("Points already awarded")

// LockState lock state of a lesson for a learner. The order is significant:
// a state only ever moves to a greater value.
type LockState int

const (
	Locked LockState = iota
	Unlocked
	Completed
)

func (s LockState) String() string {
	switch s {
	case Unlocked:
		return "UNLOCKED"
	case Completed:
		return "COMPLETED"
	default:
		return "LOCKED"
	}
}

// MarshalText encodes the state by name
func (s LockState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// WatchRecord explicit lock state of a (learner, lesson) pair
type WatchRecord struct {
	LearnerID string    `json:"-"`
	LessonID  string    `json:"lesson_id"`
	State     LockState `json:"state"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QuizResult first and only quiz submission of a learner for a course
type QuizResult struct {
	ID        string    `json:"id"`
	LearnerID string    `json:"-"`
	CourseID  string    `json:"course_id"`
	Score     int       `json:"score"`
	Total     int       `json:"total"`
	CreatedAt time.Time `json:"created_at"`
}

// Gateway persistence contract of learner progress. It holds no business rules.
type Gateway interface {
	// GetWatchRecords records of the learner for lessons of the course, keyed by lesson ID
	GetWatchRecords(ctx context.Context, learnerID, courseID string) (map[string]*WatchRecord, error)
	// UpsertWatchRecord insert or update the record, a stored state is never lowered
	UpsertWatchRecord(ctx context.Context, learnerID, lessonID string, state LockState) error
	// GetQuizResult nil when the learner has not submitted the quiz
	GetQuizResult(ctx context.Context, learnerID, courseID string) (*QuizResult, error)
	// InsertQuizResult returns ErrAlreadySubmitted if a result exists
	InsertQuizResult(ctx context.Context, learnerID, courseID string, score, total int) (*QuizResult, error)
	GetPoints(ctx context.Context, learnerID string) (int, error)
	SetPoints(ctx context.Context, learnerID string, total int) error
	// RecordAward returns ErrAlreadyAwarded if the lesson was already rewarded
	RecordAward(ctx context.Context, learnerID, lessonID string, amount int) error
	// Transact runs fn atomically, fn must only use the Gateway it is given
	Transact(ctx context.Context, fn func(tx Gateway) error) error
	Ping() error
}
