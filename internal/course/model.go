package course

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrCourseNotFound no course with the given ID
var ErrCourseNotFound = errors.New("Course not found")

// ErrQuizNotFound course has no quiz attached
var ErrQuizNotFound = errors.New("Quiz not found")

// ErrInvalidPositions lesson positions are not 1..n
var ErrInvalidPositions = errors.New("Lesson positions must be unique and contiguous from 1")

// LessonModel one orderable unit of video content within a course
type LessonModel struct {
	ID       string `json:"id" yaml:"id"`
	CourseID string `json:"course_id" yaml:"-"`
	Position int    `json:"position" yaml:"position"`
	Name     string `json:"name" yaml:"name"`
	MediaURL string `json:"media_url" yaml:"media_url"`
	Duration int    `json:"duration" yaml:"duration"` // seconds
}

// CourseModel a course and its lessons ordered by position
type CourseModel struct {
	ID      string         `json:"id" yaml:"id"`
	Name    string         `json:"name" yaml:"name"`
	Lessons []*LessonModel `json:"lessons" yaml:"lessons"`
}

// QuestionModel a single-answer quiz question
type QuestionModel struct {
	ID            string   `json:"id" yaml:"id"`
	Position      int      `json:"position" yaml:"position"`
	Prompt        string   `json:"prompt" yaml:"prompt"`
	Options       []string `json:"options" yaml:"options"`
	CorrectAnswer string   `json:"-" yaml:"correct_answer"`
}

// QuizModel trailing quiz of a course
type QuizModel struct {
	CourseID  string           `json:"course_id" yaml:"-"`
	Questions []*QuestionModel `json:"questions" yaml:"questions"`
}

// Repository read access to the course catalog
type Repository interface {
	GetCourse(ctx context.Context, courseID string) (*CourseModel, error)
	GetQuiz(ctx context.Context, courseID string) (*QuizModel, error)
}

// Normalize sorts lessons by position and checks positions run 1..n without gaps
func (c *CourseModel) Normalize() error {
	sort.SliceStable(c.Lessons, func(i, j int) bool {
		return c.Lessons[i].Position < c.Lessons[j].Position
	})
	for i, l := range c.Lessons {
		if l.Position != i+1 {
			return fmt.Errorf("course %s, lesson %s at position %d: %w", c.ID, l.ID, l.Position, ErrInvalidPositions)
		}
		l.CourseID = c.ID
	}
	return nil
}

// Lesson find lesson by ID
func (c *CourseModel) Lesson(lessonID string) *LessonModel {
	for _, l := range c.Lessons {
		if l.ID == lessonID {
			return l
		}
	}
	return nil
}

// At lesson at the 1-based position, nil if out of range
func (c *CourseModel) At(position int) *LessonModel {
	if position < 1 || position > len(c.Lessons) {
		return nil
	}
	return c.Lessons[position-1]
}

// Next lesson following l, nil when l is the final lesson
func (c *CourseModel) Next(l *LessonModel) *LessonModel {
	return c.At(l.Position + 1)
}

// Normalize sorts questions by position
func (q *QuizModel) Normalize() {
	sort.SliceStable(q.Questions, func(i, j int) bool {
		return q.Questions[i].Position < q.Questions[j].Position
	})
}
