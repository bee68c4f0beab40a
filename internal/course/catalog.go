package course

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type catalogEntry struct {
	CourseModel `yaml:",inline"`
	Quiz        *QuizModel `yaml:"quiz"`
}

type catalogFile struct {
	Courses []*catalogEntry `yaml:"courses"`
}

// MemoryCatalog read-only catalog held in memory, seeded from YAML
type MemoryCatalog struct {
	courses map[string]*CourseModel
	quizzes map[string]*QuizModel
}

var _ Repository = &MemoryCatalog{}

// NewMemoryCatalog build a catalog from courses and quizzes keyed by course ID
func NewMemoryCatalog(courses []*CourseModel, quizzes []*QuizModel) (*MemoryCatalog, error) {
	mc := &MemoryCatalog{
		courses: make(map[string]*CourseModel, len(courses)),
		quizzes: make(map[string]*QuizModel, len(quizzes)),
	}
	for _, c := range courses {
		if err := c.Normalize(); err != nil {
			return nil, err
		}
		if _, dup := mc.courses[c.ID]; dup {
			return nil, fmt.Errorf("duplicated course %s", c.ID)
		}
		mc.courses[c.ID] = c
	}
	for _, q := range quizzes {
		q.Normalize()
		mc.quizzes[q.CourseID] = q
	}
	return mc, nil
}

// LoadCatalog decode a YAML catalog
func LoadCatalog(r io.Reader) (*MemoryCatalog, error) {
	var file catalogFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	var (
		courses []*CourseModel
		quizzes []*QuizModel
	)
	for _, entry := range file.Courses {
		c := entry.CourseModel
		courses = append(courses, &c)
		if entry.Quiz != nil && len(entry.Quiz.Questions) > 0 {
			entry.Quiz.CourseID = c.ID
			quizzes = append(quizzes, entry.Quiz)
		}
	}
	return NewMemoryCatalog(courses, quizzes)
}

// LoadCatalogFile decode a YAML catalog from path
func LoadCatalogFile(path string) (*MemoryCatalog, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fd.Close()
	return LoadCatalog(fd)
}

// GetCourse implement Repository
func (mc *MemoryCatalog) GetCourse(ctx context.Context, courseID string) (*CourseModel, error) {
	if c, ok := mc.courses[courseID]; ok {
		return c, nil
	}
	return nil, ErrCourseNotFound
}

// GetQuiz implement Repository
func (mc *MemoryCatalog) GetQuiz(ctx context.Context, courseID string) (*QuizModel, error) {
	if q, ok := mc.quizzes[courseID]; ok {
		return q, nil
	}
	return nil, ErrQuizNotFound
}
