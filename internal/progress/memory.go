package progress

import (
	"context"
	"sync"
	"time"

	"github.com/pot-code/coursegate/internal/course"
	"github.com/pot-code/coursegate/internal/infrastructure/uuid"
)

type learnerLesson struct {
	learner, lesson string
}

type learnerCourse struct {
	learner, course string
}

type memState struct {
	watch  map[learnerLesson]WatchRecord
	quiz   map[learnerCourse]QuizResult
	points map[string]int
	awards map[learnerLesson]int
}

func newMemState() *memState {
	return &memState{
		watch:  make(map[learnerLesson]WatchRecord),
		quiz:   make(map[learnerCourse]QuizResult),
		points: make(map[string]int),
		awards: make(map[learnerLesson]int),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.watch {
		c.watch[k] = v
	}
	for k, v := range s.quiz {
		c.quiz[k] = v
	}
	for k, v := range s.points {
		c.points[k] = v
	}
	for k, v := range s.awards {
		c.awards[k] = v
	}
	return c
}

// MemoryGateway process local Gateway, used by tests and the memory database driver
type MemoryGateway struct {
	Catalog       course.Repository
	UUIDGenerator uuid.Generator

	mu    sync.Mutex
	state *memState
	now   func() time.Time
}

var _ Gateway = &MemoryGateway{}

// NewMemoryGateway catalog resolves which lessons belong to a course, when nil
// GetWatchRecords returns every record of the learner
func NewMemoryGateway(Catalog course.Repository, UUIDGenerator uuid.Generator) *MemoryGateway {
	return &MemoryGateway{
		Catalog:       Catalog,
		UUIDGenerator: UUIDGenerator,
		state:         newMemState(),
		now:           time.Now,
	}
}

func (mg *MemoryGateway) courseLessons(ctx context.Context, courseID string) (map[string]bool, error) {
	if mg.Catalog == nil {
		return nil, nil
	}
	c, err := mg.Catalog.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(c.Lessons))
	for _, l := range c.Lessons {
		ids[l.ID] = true
	}
	return ids, nil
}

func (mg *MemoryGateway) GetWatchRecords(ctx context.Context, learnerID, courseID string) (map[string]*WatchRecord, error) {
	lessons, err := mg.courseLessons(ctx, courseID)
	if err != nil {
		return nil, err
	}
	mg.mu.Lock()
	defer mg.mu.Unlock()
	return (&memoryTx{mg, mg.state}).watchRecords(learnerID, lessons), nil
}

func (mg *MemoryGateway) UpsertWatchRecord(ctx context.Context, learnerID, lessonID string, state LockState) error {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	return (&memoryTx{mg, mg.state}).UpsertWatchRecord(ctx, learnerID, lessonID, state)
}

func (mg *MemoryGateway) GetQuizResult(ctx context.Context, learnerID, courseID string) (*QuizResult, error) {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	return (&memoryTx{mg, mg.state}).GetQuizResult(ctx, learnerID, courseID)
}

func (mg *MemoryGateway) InsertQuizResult(ctx context.Context, learnerID, courseID string, score, total int) (*QuizResult, error) {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	return (&memoryTx{mg, mg.state}).InsertQuizResult(ctx, learnerID, courseID, score, total)
}

func (mg *MemoryGateway) GetPoints(ctx context.Context, learnerID string) (int, error) {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	return (&memoryTx{mg, mg.state}).GetPoints(ctx, learnerID)
}

func (mg *MemoryGateway) SetPoints(ctx context.Context, learnerID string, total int) error {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	return (&memoryTx{mg, mg.state}).SetPoints(ctx, learnerID, total)
}

func (mg *MemoryGateway) RecordAward(ctx context.Context, learnerID, lessonID string, amount int) error {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	return (&memoryTx{mg, mg.state}).RecordAward(ctx, learnerID, lessonID, amount)
}

// Transact runs fn against a copy of the state that replaces the current one
// only when fn succeeds. Transactions are serialized with every other call.
func (mg *MemoryGateway) Transact(ctx context.Context, fn func(tx Gateway) error) error {
	mg.mu.Lock()
	defer mg.mu.Unlock()

	tx := &memoryTx{mg, mg.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	mg.state = tx.state
	return nil
}

func (mg *MemoryGateway) Ping() error {
	return nil
}

// memoryTx operates on a state owned by the caller, mu must be held
type memoryTx struct {
	parent *MemoryGateway
	state  *memState
}

var _ Gateway = &memoryTx{}

func (tx *memoryTx) watchRecords(learnerID string, lessons map[string]bool) map[string]*WatchRecord {
	result := make(map[string]*WatchRecord)
	for k, v := range tx.state.watch {
		if k.learner != learnerID {
			continue
		}
		if lessons != nil && !lessons[k.lesson] {
			continue
		}
		record := v
		result[k.lesson] = &record
	}
	return result
}

func (tx *memoryTx) GetWatchRecords(ctx context.Context, learnerID, courseID string) (map[string]*WatchRecord, error) {
	lessons, err := tx.parent.courseLessons(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return tx.watchRecords(learnerID, lessons), nil
}

func (tx *memoryTx) UpsertWatchRecord(ctx context.Context, learnerID, lessonID string, state LockState) error {
	key := learnerLesson{learnerID, lessonID}
	record, ok := tx.state.watch[key]
	if !ok || state > record.State {
		record.State = state
	}
	record.LearnerID = learnerID
	record.LessonID = lessonID
	record.UpdatedAt = tx.parent.now().UTC()
	tx.state.watch[key] = record
	return nil
}

func (tx *memoryTx) GetQuizResult(ctx context.Context, learnerID, courseID string) (*QuizResult, error) {
	if result, ok := tx.state.quiz[learnerCourse{learnerID, courseID}]; ok {
		return &result, nil
	}
	return nil, nil
}

func (tx *memoryTx) InsertQuizResult(ctx context.Context, learnerID, courseID string, score, total int) (*QuizResult, error) {
	key := learnerCourse{learnerID, courseID}
	if _, ok := tx.state.quiz[key]; ok {
		return nil, ErrAlreadySubmitted
	}
	id, err := tx.parent.UUIDGenerator.Generate()
	if err != nil {
		return nil, err
	}
	result := QuizResult{
		ID:        id,
		LearnerID: learnerID,
		CourseID:  courseID,
		Score:     score,
		Total:     total,
		CreatedAt: tx.parent.now().UTC(),
	}
	tx.state.quiz[key] = result
	return &result, nil
}

func (tx *memoryTx) GetPoints(ctx context.Context, learnerID string) (int, error) {
	return tx.state.points[learnerID], nil
}

func (tx *memoryTx) SetPoints(ctx context.Context, learnerID string, total int) error {
	if total > tx.state.points[learnerID] {
		tx.state.points[learnerID] = total
	}
	return nil
}

func (tx *memoryTx) RecordAward(ctx context.Context, learnerID, lessonID string, amount int) error {
	key := learnerLesson{learnerID, lessonID}
	if _, ok := tx.state.awards[key]; ok {
		return ErrAlreadyAwarded
	}
	tx.state.awards[key] = amount
	return nil
}

func (tx *memoryTx) Transact(ctx context.Context, fn func(tx Gateway) error) error {
	return fn(tx)
}

func (tx *memoryTx) Ping() error {
	return nil
}
