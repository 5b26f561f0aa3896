package services

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type queryStep struct {
	pattern *regexp.Regexp
	args    []driver.Value
	columns []string
	rows    [][]driver.Value
	err     error
}

// scriptedDB replays queries in order and fails on anything unexpected.
type scriptedDB struct {
	mu    sync.Mutex
	steps []*queryStep
}

func (db *scriptedDB) next(query string, args []driver.NamedValue) (*queryStep, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if len(db.steps) == 0 {
		return nil, fmt.Errorf("unexpected query: %s", query)
	}
	step := db.steps[0]
	if !step.pattern.MatchString(query) {
		return nil, fmt.Errorf("unexpected query: %s", query)
	}
	if len(step.args) != len(args) {
		return nil, fmt.Errorf("unexpected arg count for %s: got %d want %d", query, len(args), len(step.args))
	}
	for i := range args {
		if args[i].Value != step.args[i] {
			return nil, fmt.Errorf("unexpected arg %d for %s: got %v want %v", i, query, args[i].Value, step.args[i])
		}
	}
	db.steps = db.steps[1:]
	return step, nil
}

func (db *scriptedDB) verifyComplete() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if len(db.steps) != 0 {
		return fmt.Errorf("unmet expectations: %d", len(db.steps))
	}
	return nil
}

type scriptedDriver struct {
	db *scriptedDB
}

func (d *scriptedDriver) Open(string) (driver.Conn, error) {
	return &scriptedConn{db: d.db}, nil
}

type scriptedConn struct {
	db *scriptedDB
}

func (c *scriptedConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}

func (c *scriptedConn) Close() error { return nil }

func (c *scriptedConn) Begin() (driver.Tx, error) {
	return nil, errors.New("transactions not supported")
}

func (c *scriptedConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	step, err := c.db.next(query, args)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if step.err != nil {
		return nil, step.err
	}
	return &scriptedRows{columns: step.columns, rows: step.rows}, nil
}

type scriptedRows struct {
	columns []string
	rows    [][]driver.Value
	idx     int
}

func (r *scriptedRows) Columns() []string { return r.columns }

func (r *scriptedRows) Close() error { return nil }

func (r *scriptedRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	row := r.rows[r.idx]
	for i := range dest {
		dest[i] = nil
	}
	copy(dest, row)
	r.idx++
	return nil
}

func newScriptedGormDB(t *testing.T, steps []*queryStep) (*gorm.DB, *scriptedDB) {
	t.Helper()
	state := &scriptedDB{steps: steps}
	driverName := fmt.Sprintf("scripted_%d", time.Now().UnixNano())
	sql.Register(driverName, &scriptedDriver{db: state})

	sqlDB, err := sql.Open(driverName, "")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	return gormDB, state
}

func lockStep(pattern, name string, status driver.Value) *queryStep {
	return &queryStep{
		pattern: regexp.MustCompile(pattern),
		args:    []driver.Value{name},
		columns: []string{"status"},
		rows:    [][]driver.Value{{status}},
	}
}

func TestMySQLBatchLockerAcquireAndRelease(t *testing.T) {
	const name = "scoring_reevaluation_batch"
	db, state := newScriptedGormDB(t, []*queryStep{
		lockStep(`SELECT GET_LOCK`, name, int64(1)),
		lockStep(`SELECT RELEASE_LOCK`, name, int64(1)),
	})

	release, err := NewMySQLBatchLocker(db).TryLock(context.Background(), name)
	require.NoError(t, err)
	require.NoError(t, release())
	assert.NoError(t, state.verifyComplete())
}

func TestMySQLBatchLockerHeldElsewhere(t *testing.T) {
	const name = "scoring_reevaluation_batch"
	db, state := newScriptedGormDB(t, []*queryStep{
		lockStep(`SELECT GET_LOCK`, name, int64(0)),
		lockStep(`SELECT GET_LOCK`, name, nil),
	})
	locker := NewMySQLBatchLocker(db)

	_, err := locker.TryLock(context.Background(), name)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = locker.TryLock(context.Background(), name)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, state.verifyComplete())
}

func TestMySQLBatchLockerQueryFailure(t *testing.T) {
	db, _ := newScriptedGormDB(t, []*queryStep{{
		pattern: regexp.MustCompile(`SELECT GET_LOCK`),
		args:    []driver.Value{"batch"},
		err:     errStoreDown,
	}})

	_, err := NewMySQLBatchLocker(db).TryLock(context.Background(), "batch")
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestReEvaluateReleasesBatchLockWhenCancelled(t *testing.T) {
	const name = "nightly"
	db, state := newScriptedGormDB(t, []*queryStep{
		lockStep(`SELECT GET_LOCK`, name, int64(1)),
		lockStep(`SELECT RELEASE_LOCK`, name, int64(1)),
		lockStep(`SELECT GET_LOCK`, name, int64(1)),
		lockStep(`SELECT RELEASE_LOCK`, name, int64(1)),
	})
	store := reEvaluationFixture(t)
	svc := NewReEvaluationService(store, store, store, nil, NewMySQLBatchLocker(db), nil,
		ReEvaluationOptions{Workers: 1, LockName: name})
	svc.now = fixedNow

	ctx, cancel := context.WithCancel(context.Background())
	store.onAppend = func(int) { cancel() }
	first, err := svc.ReEvaluate(ctx, adminActor, ReEvaluationRequest{ConfigurationID: 5})
	require.NoError(t, err)
	assert.True(t, first.Cancelled)

	store.onAppend = nil
	second, err := svc.ReEvaluate(context.Background(), adminActor, ReEvaluationRequest{ConfigurationID: 5})
	require.NoError(t, err)
	assert.False(t, second.Cancelled)
	assert.Len(t, second.Deltas, 3)

	assert.NoError(t, state.verifyComplete())
}
