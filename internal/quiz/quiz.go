package quiz

import (
	"errors"
	"strings"

	"github.com/pot-code/coursegate/internal/course"
)

// ErrIncompleteAnswers a question was left without an answer
var ErrIncompleteAnswers = errors.New("Every question must be answered")

// ErrQuizLocked some lesson of the course is not completed yet
var ErrQuizLocked = errors.New("Quiz is locked")

// ErrQuizNotFound course has no quiz
var ErrQuizNotFound = course.ErrQuizNotFound

// Score counts the questions whose answer equals the correct one byte for byte.
// Answers are keyed by question ID, answers to unknown questions are ignored.
func Score(q *course.QuizModel, answers map[string]string) (score int, err error) {
	if q == nil || len(q.Questions) == 0 {
		return 0, ErrQuizNotFound
	}
	for _, question := range q.Questions {
		if strings.TrimSpace(answers[question.ID]) == "" {
			return 0, ErrIncompleteAnswers
		}
	}
	for _, question := range q.Questions {
		if answers[question.ID] == question.CorrectAnswer {
			score++
		}
	}
	return score, nil
}
