package course

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pot-code/coursegate/internal/infrastructure/driver"
	"go.elastic.co/apm"
)

// SQLRepository catalog stored in the course tables
type SQLRepository struct {
	Conn driver.ITransactionalDB
}

var _ Repository = &SQLRepository{}

func NewSQLRepository(Conn driver.ITransactionalDB) *SQLRepository {
	return &SQLRepository{
		Conn: Conn,
	}
}

// GetCourse load course with its lessons
func (repo *SQLRepository) GetCourse(ctx context.Context, courseID string) (*CourseModel, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "SQLRepository.GetCourse", "db")
	defer apmSpan.End()

	conn := repo.Conn
	row, err := conn.QueryContext(ctx, `SELECT id, name FROM course WHERE id = $1`, courseID)
	if err != nil {
		return nil, err
	}
	c := new(CourseModel)
	found := row.Next()
	if found {
		err = row.Scan(&c.ID, &c.Name)
	} else {
		err = row.Err()
	}
	row.Close()
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrCourseNotFound
	}

	rows, err := conn.QueryContext(ctx, `
SELECT
    id, "position", name, media_url, duration
FROM
    course_lesson
WHERE
    course_id = $1
ORDER BY "position" ASC
	`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		l := new(LessonModel)
		if err := rows.Scan(&l.ID, &l.Position, &l.Name, &l.MediaURL, &l.Duration); err != nil {
			return nil, err
		}
		c.Lessons = append(c.Lessons, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := c.Normalize(); err != nil {
		return nil, err
	}
	return c, nil
}

// GetQuiz load quiz questions of the course
func (repo *SQLRepository) GetQuiz(ctx context.Context, courseID string) (*QuizModel, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "SQLRepository.GetQuiz", "db")
	defer apmSpan.End()

	rows, err := repo.Conn.QueryContext(ctx, `
SELECT
    id, "position", prompt, options, correct_answer
FROM
    quiz_question
WHERE
    course_id = $1
ORDER BY "position" ASC
	`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	quiz := &QuizModel{CourseID: courseID}
	for rows.Next() {
		var (
			q       = new(QuestionModel)
			options string
		)
		if err := rows.Scan(&q.ID, &q.Position, &q.Prompt, &options, &q.CorrectAnswer); err != nil {
			return nil, err
		}
		if options != "" {
			if err := json.Unmarshal([]byte(options), &q.Options); err != nil {
				return nil, fmt.Errorf("decode options of question %s: %w", q.ID, err)
			}
		}
		quiz.Questions = append(quiz.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(quiz.Questions) == 0 {
		return nil, ErrQuizNotFound
	}
	return quiz, nil
}
