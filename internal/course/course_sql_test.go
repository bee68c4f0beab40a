package course

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/pot-code/coursegate/internal/infrastructure/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRows struct {
	values [][]interface{}
	err    error
	idx    int
}

func (r *stubRows) Next() bool {
	r.idx++
	return r.idx <= len(r.values)
}

func (r *stubRows) Scan(dest ...interface{}) error {
	row := r.values[r.idx-1]
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = row[i].(string)
		case *int:
			*p = row[i].(int)
		}
	}
	return nil
}

func (r *stubRows) Err() error {
	if r.idx > len(r.values) {
		return r.err
	}
	return nil
}

func (r *stubRows) Close() error { return nil }

// stubDB answers queries in order with the prepared results
type stubDB struct {
	results []*stubRows
}

var _ driver.ITransactionalDB = &stubDB{}

func (db *stubDB) QueryContext(ctx context.Context, query string, args ...interface{}) (driver.ISQLRows, error) {
	r := db.results[0]
	db.results = db.results[1:]
	return r, nil
}

func (db *stubDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, errors.New("read only")
}

func (db *stubDB) BeginTx(ctx context.Context, opts *driver.TxOptions) (driver.ITransactionalDB, error) {
	return db, nil
}

func (db *stubDB) Commit(ctx context.Context) error   { return nil }
func (db *stubDB) Rollback(ctx context.Context) error { return nil }
func (db *stubDB) Close(ctx context.Context) error    { return nil }
func (db *stubDB) Dialect() string                    { return driver.DialectPostgres }
func (db *stubDB) Ping() error                        { return nil }

func TestSQLRepository_GetCourse(t *testing.T) {
	db := &stubDB{results: []*stubRows{
		{values: [][]interface{}{{"c1", "Go"}}},
		{values: [][]interface{}{{"l2", 2, "Types", "", 200}, {"l1", 1, "Hello", "", 100}}},
	}}
	c, err := NewSQLRepository(db).GetCourse(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, c.Lessons, 2)
	assert.Equal(t, "l1", c.Lessons[0].ID)
	assert.Equal(t, "c1", c.Lessons[1].CourseID)
}

func TestSQLRepository_InterruptedReadIsAnError(t *testing.T) {
	broken := errors.New("conn closed")

	db := &stubDB{results: []*stubRows{
		{values: [][]interface{}{{"c1", "Go"}}},
		{values: [][]interface{}{{"l1", 1, "Hello", "", 100}}, err: broken},
	}}
	_, err := NewSQLRepository(db).GetCourse(context.Background(), "c1")
	assert.ErrorIs(t, err, broken)

	db = &stubDB{results: []*stubRows{{err: broken}}}
	_, err = NewSQLRepository(db).GetCourse(context.Background(), "c1")
	assert.ErrorIs(t, err, broken)

	db = &stubDB{results: []*stubRows{
		{values: [][]interface{}{{"q1", 1, "Zero value of int?", `["0","nil"]`, "0"}}, err: broken},
	}}
	_, err = NewSQLRepository(db).GetQuiz(context.Background(), "c1")
	assert.ErrorIs(t, err, broken)
}
