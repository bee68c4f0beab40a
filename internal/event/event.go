package event

import (
	"context"
	"time"
)

// Kind event name as seen by the rendering layer
type Kind string

const (
	KindLessonUnlocked  Kind = "lesson_unlocked"
	KindLessonCompleted Kind = "lesson_completed"
	KindPointsAwarded   Kind = "points_awarded"
	KindQuizUnlocked    Kind = "quiz_unlocked"
	KindQuizResult      Kind = "quiz_result"
)

// Event progress change of a learner. Amount and Total belong to points_awarded,
// Score and Total to quiz_result.
type Event struct {
	Kind      Kind      `json:"kind"`
	LearnerID string    `json:"learner_id"`
	CourseID  string    `json:"course_id,omitempty"`
	LessonID  string    `json:"lesson_id,omitempty"`
	Amount    int       `json:"amount,omitempty"`
	Score     int       `json:"score,omitempty"`
	Total     int       `json:"total,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher delivery is best effort, failures are logged by the implementation
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

func LessonUnlocked(learnerID, courseID, lessonID string) Event {
	return Event{Kind: KindLessonUnlocked, LearnerID: learnerID, CourseID: courseID, LessonID: lessonID, At: time.Now().UTC()}
}

func LessonCompleted(learnerID, courseID, lessonID string) Event {
	return Event{Kind: KindLessonCompleted, LearnerID: learnerID, CourseID: courseID, LessonID: lessonID, At: time.Now().UTC()}
}

func PointsAwarded(learnerID string, amount, total int) Event {
	return Event{Kind: KindPointsAwarded, LearnerID: learnerID, Amount: amount, Total: total, At: time.Now().UTC()}
}

func QuizUnlocked(learnerID, courseID string) Event {
	return Event{Kind: KindQuizUnlocked, LearnerID: learnerID, CourseID: courseID, At: time.Now().UTC()}
}

func QuizResult(learnerID, courseID string, score, total int) Event {
	return Event{Kind: KindQuizResult, LearnerID: learnerID, CourseID: courseID, Score: score, Total: total, At: time.Now().UTC()}
}
