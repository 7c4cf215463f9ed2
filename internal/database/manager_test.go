package database

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// sqlmock options have an unexported type, so they are forwarded to
// sqlmock.New via reflection.
func newMockManager(t *testing.T, opts ...any) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	args := make([]reflect.Value, len(opts))
	for i, o := range opts {
		args[i] = reflect.ValueOf(o)
	}
	out := reflect.ValueOf(sqlmock.New).Call(args)
	db, mock := out[0].Interface().(*sql.DB), out[1].Interface().(sqlmock.Sqlmock)
	err, _ := out[2].Interface().(error)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewManagerFromDB(db, nil, zap.NewNop()), mock
}

func TestManagerRecordsQueryMetrics(t *testing.T) {
	m, mock := newMockManager(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE badges SET is_active = false")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM badges")).
		WillReturnError(errors.New("relation does not exist"))

	_, err := m.ExecContext(context.Background(), "UPDATE badges SET is_active = false")
	require.NoError(t, err)
	_, err = m.QueryContext(context.Background(), "SELECT id FROM badges")
	require.Error(t, err)

	snap := m.Metrics()
	assert.Equal(t, int64(2), snap.QueryCount)
	assert.Equal(t, int64(1), snap.ErrorCount)
	assert.Equal(t, int64(1), snap.ExecCount)
	assert.Equal(t, int64(1), snap.SelectCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction(t *testing.T) {
	t.Run("commits on success", func(t *testing.T) {
		m, mock := newMockManager(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM student_badges")).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := m.WithTransaction(context.Background(), func(tx *sql.Tx) error {
			_, err := tx.Exec("DELETE FROM student_badges")
			return err
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		m, mock := newMockManager(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := m.WithTransaction(context.Background(), func(*sql.Tx) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestHealthCheck(t *testing.T) {
	tables := []string{"students", "student_skills", "badges", "badge_rules", "student_badges"}

	t.Run("healthy", func(t *testing.T) {
		m, mock := newMockManager(t, sqlmock.MonitorPingsOption(true))
		mock.ExpectPing()
		for _, table := range tables {
			mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM " + table + " LIMIT 1")).
				WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
		}

		status := m.Health(context.Background())
		assert.Equal(t, StatusHealthy, status.Status)
		assert.Empty(t, status.Errors)
		assert.True(t, m.health.IsHealthy())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ping failure", func(t *testing.T) {
		m, mock := newMockManager(t, sqlmock.MonitorPingsOption(true))
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		status := m.Health(context.Background())
		assert.Equal(t, StatusUnhealthy, status.Status)
		require.Len(t, status.Errors, 1)
		assert.Contains(t, status.Errors[0], "connection refused")
		assert.False(t, m.health.IsHealthy())
	})

	t.Run("missing table", func(t *testing.T) {
		m, mock := newMockManager(t, sqlmock.MonitorPingsOption(true))
		mock.ExpectPing()
		mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM students LIMIT 1")).
			WillReturnError(errors.New(`relation "students" does not exist`))
		for _, table := range tables[1:] {
			mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM " + table + " LIMIT 1")).
				WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
		}

		status := m.Health(context.Background())
		assert.Equal(t, StatusUnhealthy, status.Status)
		assert.Len(t, status.Errors, 1)
	})

	t.Run("closed", func(t *testing.T) {
		m, _ := newMockManager(t)
		require.NoError(t, m.Close())

		status := m.Health(context.Background())
		assert.Equal(t, StatusUnhealthy, status.Status)
	})
}

func TestMetricsRegister(t *testing.T) {
	m, _ := newMockManager(t)
	reg := prometheus.NewRegistry()
	require.NoError(t, m.RegisterMetrics(reg))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["coachhub_db_queries_total"])
	assert.True(t, names["go_sql_open_connections"])
}
