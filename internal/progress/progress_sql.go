package progress

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pot-code/coursegate/internal/infrastructure/driver"
	"github.com/pot-code/coursegate/internal/infrastructure/uuid"
	"go.elastic.co/apm"
)

// SQLGateway Gateway backed by MySQL or PostgreSQL, see scripts/ for the schema
type SQLGateway struct {
	Conn          driver.ITransactionalDB
	UUIDGenerator uuid.Generator
	inTx          bool
}

var _ Gateway = &SQLGateway{}

func NewSQLGateway(Conn driver.ITransactionalDB, UUIDGenerator uuid.Generator) *SQLGateway {
	return &SQLGateway{Conn: Conn, UUIDGenerator: UUIDGenerator}
}

// dialect pick the statement matching the connected database
func (repo *SQLGateway) dialect(mysqlQuery, pgQuery string) string {
	if repo.Conn.Dialect() == driver.DialectPostgres {
		return pgQuery
	}
	return mysqlQuery
}

func (repo *SQLGateway) GetWatchRecords(ctx context.Context, learnerID, courseID string) (map[string]*WatchRecord, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "SQLGateway.GetWatchRecords", "db")
	defer apmSpan.End()

	rows, err := repo.Conn.QueryContext(ctx, `
SELECT
    wr.lesson_id, wr.status, wr.updated_at
FROM
    watch_record wr
        INNER JOIN
    course_lesson cl ON (cl.id = wr.lesson_id)
WHERE
    wr.learner_id = $1 AND cl.course_id = $2
	`, learnerID, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]*WatchRecord)
	for rows.Next() {
		var status int
		item := &WatchRecord{LearnerID: learnerID}
		if err := rows.Scan(&item.LessonID, &status, &item.UpdatedAt); err != nil {
			return nil, err
		}
		item.State = LockState(status)
		result[item.LessonID] = item
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (repo *SQLGateway) UpsertWatchRecord(ctx context.Context, learnerID, lessonID string, state LockState) error {
	apmSpan, ctx := apm.StartSpan(ctx, "SQLGateway.UpsertWatchRecord", "db")
	defer apmSpan.End()

	_, err := repo.Conn.ExecContext(ctx, repo.dialect(`
INSERT INTO watch_record(learner_id, lesson_id, status, updated_at)
VALUES($1, $2, $3, $4)
ON DUPLICATE KEY UPDATE
    status = GREATEST(status, VALUES(status)),
    updated_at = VALUES(updated_at)
	`, `
INSERT INTO watch_record(learner_id, lesson_id, status, updated_at)
VALUES($1, $2, $3, $4)
ON CONFLICT (learner_id, lesson_id) DO UPDATE SET
    status = GREATEST(watch_record.status, EXCLUDED.status),
    updated_at = EXCLUDED.updated_at
	`), learnerID, lessonID, int(state), time.Now().UTC())
	return err
}

func (repo *SQLGateway) GetQuizResult(ctx context.Context, learnerID, courseID string) (*QuizResult, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "SQLGateway.GetQuizResult", "db")
	defer apmSpan.End()

	row, err := repo.Conn.QueryContext(ctx, `
SELECT id, score, total, created_at
FROM quiz_result
WHERE learner_id = $1 AND course_id = $2
	`, learnerID, courseID)
	if err != nil {
		return nil, err
	}
	defer row.Close()

	if row.Next() {
		result := &QuizResult{LearnerID: learnerID, CourseID: courseID}
		if err := row.Scan(&result.ID, &result.Score, &result.Total, &result.CreatedAt); err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, row.Err()
}

func (repo *SQLGateway) InsertQuizResult(ctx context.Context, learnerID, courseID string, score, total int) (*QuizResult, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "SQLGateway.InsertQuizResult", "db")
	defer apmSpan.End()

	id, err := repo.UUIDGenerator.Generate()
	if err != nil {
		return nil, err
	}
	result := &QuizResult{
		ID:        id,
		LearnerID: learnerID,
		CourseID:  courseID,
		Score:     score,
		Total:     total,
		CreatedAt: time.Now().UTC(),
	}
	_, err = repo.Conn.ExecContext(ctx, `
INSERT INTO quiz_result(id, learner_id, course_id, score, total, created_at)
VALUES($1, $2, $3, $4, $5, $6)
	`, result.ID, learnerID, courseID, score, total, result.CreatedAt)
	if driver.IsUniqueViolation(err) {
		return nil, ErrAlreadySubmitted
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetPoints locks the points row when called inside Transact
func (repo *SQLGateway) GetPoints(ctx context.Context, learnerID string) (int, error) {
	query := `SELECT points FROM learner_points WHERE learner_id = $1`
	if repo.inTx {
		query += ` FOR UPDATE`
	}
	row, err := repo.Conn.QueryContext(ctx, query, learnerID)
	if err != nil {
		return 0, err
	}
	defer row.Close()

	var points int
	if row.Next() {
		if err := row.Scan(&points); err != nil {
			return 0, err
		}
	} else if err := row.Err(); err != nil {
		return 0, err
	}
	return points, nil
}

func (repo *SQLGateway) SetPoints(ctx context.Context, learnerID string, total int) error {
	_, err := repo.Conn.ExecContext(ctx, repo.dialect(`
INSERT INTO learner_points(learner_id, points, updated_at)
VALUES($1, $2, $3)
ON DUPLICATE KEY UPDATE
    points = GREATEST(points, VALUES(points)),
    updated_at = VALUES(updated_at)
	`, `
INSERT INTO learner_points(learner_id, points, updated_at)
VALUES($1, $2, $3)
ON CONFLICT (learner_id) DO UPDATE SET
    points = GREATEST(learner_points.points, EXCLUDED.points),
    updated_at = EXCLUDED.updated_at
	`), learnerID, total, time.Now().UTC())
	return err
}

// RecordAward inserts without raising a constraint error, so a postgres transaction stays usable
func (repo *SQLGateway) RecordAward(ctx context.Context, learnerID, lessonID string, amount int) error {
	apmSpan, ctx := apm.StartSpan(ctx, "SQLGateway.RecordAward", "db")
	defer apmSpan.End()

	res, err := repo.Conn.ExecContext(ctx, repo.dialect(`
INSERT INTO point_award(learner_id, lesson_id, amount, created_at)
VALUES($1, $2, $3, $4)
ON DUPLICATE KEY UPDATE learner_id = learner_id
	`, `
INSERT INTO point_award(learner_id, lesson_id, amount, created_at)
VALUES($1, $2, $3, $4)
ON CONFLICT (learner_id, lesson_id) DO NOTHING
	`), learnerID, lessonID, amount, time.Now().UTC())
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAlreadyAwarded
	}
	return nil
}

func (repo *SQLGateway) Transact(ctx context.Context, fn func(tx Gateway) error) (err error) {
	apmSpan, ctx := apm.StartSpan(ctx, "SQLGateway.Transact", "db")
	defer apmSpan.End()

	if repo.inTx {
		return fn(repo)
	}
	tx, err := repo.Conn.BeginTx(ctx, &driver.TxOptions{
		Isolation:  sql.LevelRepeatableRead,
		AccessMode: driver.AccessReadWrite,
	})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if err = fn(&SQLGateway{Conn: tx, UUIDGenerator: repo.UUIDGenerator, inTx: true}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (repo *SQLGateway) Ping() error {
	return repo.Conn.Ping()
}
