package repositories

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"coachhub/internal/database"
	"coachhub/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockDB(t *testing.T) (*database.Manager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return database.NewManagerFromDB(db, nil, zap.NewNop()), mock
}

var (
	badgeColumns = []string{
		"id", "name", "description", "icon", "sport", "is_active", "created_at", "updated_at",
		"rule_id", "field_name", "operator", "value", "weight", "is_required", "position",
	}
	created = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
)

// ===============================
// SKILL REPOSITORY
// ===============================

func TestSkillRepositoryGetSnapshot(t *testing.T) {
	m, mock := newMockDB(t)
	repo := NewSkillRepository(m, zap.NewNop())

	fields := models.SkillFields()
	columns := []string{"id", "sport"}
	values := []driver.Value{int64(7), "Cricket"}
	for _, f := range fields {
		col, _ := f.Column()
		columns = append(columns, col)
		switch f {
		case models.SkillPushupScore:
			values = append(values, 25.0)
		case models.SkillFootwork:
			values = append(values, 8.5)
		default:
			values = append(values, nil)
		}
	}
	columns = append(columns, "updated_at")
	values = append(values, created)

	mock.ExpectQuery(regexp.QuoteMeta("JOIN student_skills sk ON sk.student_id = s.id")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(values...))

	snap, err := repo.GetSnapshot(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, int64(7), snap.StudentID)
	assert.Equal(t, "Cricket", snap.Sport)
	assert.Equal(t, created, snap.UpdatedAt)
	assert.Len(t, snap.Values, 2)

	v, ok := snap.Measured(models.SkillPushupScore)
	assert.True(t, ok)
	assert.Equal(t, 25.0, v)
	_, ok = snap.Measured(models.SkillSitupScore)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSkillRepositoryGetSnapshotNotFound(t *testing.T) {
	m, mock := newMockDB(t)
	repo := NewSkillRepository(m, zap.NewNop())

	mock.ExpectQuery(regexp.QuoteMeta("FROM students s")).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetSnapshot(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSkillRepositoryListEvaluableStudents(t *testing.T) {
	m, mock := newMockDB(t)
	repo := NewSkillRepository(m, zap.NewNop())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT s.id, s.name, s.sport")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "sport"}).
			AddRow(int64(1), "Asha", "Cricket").
			AddRow(int64(2), "Ben", "Athletics"))

	students, err := repo.ListEvaluableStudents(context.Background())
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "Asha", students[0].Name)
	assert.Equal(t, "Athletics", students[1].Sport)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ===============================
// BADGE REPOSITORY
// ===============================

func TestBadgeRepositoryListActiveForSport(t *testing.T) {
	m, mock := newMockDB(t)
	repo := NewBadgeRepository(m, zap.NewNop())

	rows := sqlmock.NewRows(badgeColumns).
		AddRow(int64(1), "Push-up Pro", "", "", "ALL", true, created, nil,
			int64(10), "pushupScore", "GTE", "20", 1.0, true, 0).
		AddRow(int64(2), "All-Rounder", "", "", "Cricket", true, created, created,
			int64(11), "battingGrip", "GTE", "7", 1.0, false, 0).
		AddRow(int64(2), "All-Rounder", "", "", "Cricket", true, created, created,
			int64(12), "footwork", "GTE", "7", 2.0, false, 1).
		AddRow(int64(3), "Empty", "", "", "Cricket", true, created, nil,
			nil, nil, nil, nil, nil, nil, nil)

	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN badge_rules r ON r.badge_id = b.id")).
		WithArgs(models.SportAll, "cricket").
		WillReturnRows(rows)

	badges, err := repo.ListActiveForSport(context.Background(), "cricket")
	require.NoError(t, err)
	require.Len(t, badges, 3)

	assert.Len(t, badges[0].Rules, 1)
	assert.Nil(t, badges[0].UpdatedAt)
	assert.True(t, badges[0].Rules[0].Required)

	require.Len(t, badges[1].Rules, 2)
	assert.Equal(t, models.SkillFootwork, badges[1].Rules[1].FieldName)
	assert.Equal(t, 2.0, badges[1].Rules[1].Weight)
	assert.Equal(t, int64(2), badges[1].Rules[1].BadgeID)
	assert.NotNil(t, badges[1].UpdatedAt)

	assert.Empty(t, badges[2].Rules)
	assert.NotNil(t, badges[2].Rules)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBadgeRepositoryGetByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		m, mock := newMockDB(t)
		repo := NewBadgeRepository(m, zap.NewNop())

		mock.ExpectQuery(regexp.QuoteMeta("WHERE b.id = $1")).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(badgeColumns).
				AddRow(int64(1), "Push-up Pro", "", "", "ALL", false, created, nil,
					int64(10), "pushupScore", "GTE", "20", 1.0, true, 0))

		b, err := repo.GetByID(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, "Push-up Pro", b.Name)
		assert.False(t, b.IsActive)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		m, mock := newMockDB(t)
		repo := NewBadgeRepository(m, zap.NewNop())

		mock.ExpectQuery(regexp.QuoteMeta("WHERE b.id = $1")).
			WithArgs(int64(5)).
			WillReturnRows(sqlmock.NewRows(badgeColumns))

		_, err := repo.GetByID(context.Background(), 5)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

// ===============================
// AWARD REPOSITORY
// ===============================

func TestAwardRepositoryListActiveBadgeIDs(t *testing.T) {
	m, mock := newMockDB(t)
	repo := NewAwardRepository(m, zap.NewNop())

	mock.ExpectQuery(regexp.QuoteMeta("WHERE student_id = $1 AND NOT revoked")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"badge_id"}).AddRow(int64(1)).AddRow(int64(4)))

	ids, err := repo.ListActiveBadgeIDs(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 4}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAwardRepositoryCreate(t *testing.T) {
	insert := regexp.QuoteMeta("INSERT INTO student_badges")

	t.Run("assigns id", func(t *testing.T) {
		m, mock := newMockDB(t)
		repo := NewAwardRepository(m, zap.NewNop())

		award := &models.StudentBadge{StudentID: 3, BadgeID: 1, Score: 1, Progress: 100, AwardedAt: created}
		mock.ExpectQuery(insert).
			WithArgs(int64(3), int64(1), 1.0, 100, created).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

		require.NoError(t, repo.Create(context.Background(), award))
		assert.Equal(t, int64(42), award.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation maps to ErrAwardExists", func(t *testing.T) {
		m, mock := newMockDB(t)
		repo := NewAwardRepository(m, zap.NewNop())

		mock.ExpectQuery(insert).WillReturnError(&pq.Error{Code: "23505"})

		err := repo.Create(context.Background(), &models.StudentBadge{StudentID: 3, BadgeID: 1})
		assert.ErrorIs(t, err, ErrAwardExists)
	})

	t.Run("other errors are wrapped", func(t *testing.T) {
		m, mock := newMockDB(t)
		repo := NewAwardRepository(m, zap.NewNop())

		boom := errors.New("connection reset")
		mock.ExpectQuery(insert).WillReturnError(boom)

		err := repo.Create(context.Background(), &models.StudentBadge{StudentID: 3, BadgeID: 1})
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, ErrAwardExists)
	})
}

func TestAwardRepositoryListByStudent(t *testing.T) {
	m, mock := newMockDB(t)
	repo := NewAwardRepository(m, zap.NewNop())

	revokedAt := created.Add(time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY sb.awarded_at DESC, sb.id DESC")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "student_id", "badge_id", "name", "score", "progress",
			"awarded_at", "revoked", "revoked_at", "revoke_reason",
		}).
			AddRow(int64(2), int64(3), int64(4), "Sprinter", 1.0, 100, created, false, nil, nil).
			AddRow(int64(1), int64(3), int64(1), "Push-up Pro", 1.0, 100, created, true, revokedAt, "data entry error"))

	awards, err := repo.ListByStudent(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, awards, 2)

	assert.Equal(t, "Sprinter", awards[0].BadgeName)
	assert.Nil(t, awards[0].RevokedAt)
	assert.True(t, awards[1].Revoked)
	require.NotNil(t, awards[1].RevokeReason)
	assert.Equal(t, "data entry error", *awards[1].RevokeReason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAwardRepositoryRevoke(t *testing.T) {
	update := regexp.QuoteMeta("UPDATE student_badges")

	t.Run("revokes live award", func(t *testing.T) {
		m, mock := newMockDB(t)
		repo := NewAwardRepository(m, zap.NewNop())

		mock.ExpectExec(update).
			WithArgs(int64(3), int64(1), "retest").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Revoke(context.Background(), 3, 1, "retest"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nothing to revoke", func(t *testing.T) {
		m, mock := newMockDB(t)
		repo := NewAwardRepository(m, zap.NewNop())

		mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Revoke(context.Background(), 3, 1, "")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
