package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"coachhub/internal/database"
	"coachhub/internal/models"

	"go.uber.org/zap"
)

// skillRepository implements SkillRepository over students/student_skills
type skillRepository struct {
	*BaseRepository
	fields        []models.SkillField
	snapshotQuery string
}

// NewSkillRepository creates a postgres-backed skill repository
func NewSkillRepository(db *database.Manager, logger *zap.Logger) SkillRepository {
	fields := models.SkillFields()
	cols := make([]string, len(fields))
	for i, f := range fields {
		col, _ := f.Column()
		cols[i] = "sk." + col
	}

	return &skillRepository{
		BaseRepository: NewBaseRepository(db, logger),
		fields:         fields,
		snapshotQuery: fmt.Sprintf(`
			SELECT s.id, s.sport, %s, sk.updated_at
			FROM students s
			JOIN student_skills sk ON sk.student_id = s.id
			WHERE s.id = $1`, strings.Join(cols, ", ")),
	}
}

// GetSnapshot loads the athlete's sport and every measured skill column.
// NULL columns are left out of the snapshot.
func (r *skillRepository) GetSnapshot(ctx context.Context, studentID int64) (*models.SkillSnapshot, error) {
	var (
		id        int64
		sport     string
		updatedAt time.Time
		values    = make([]sql.NullFloat64, len(r.fields))
	)

	dest := make([]interface{}, 0, len(r.fields)+3)
	dest = append(dest, &id, &sport)
	for i := range values {
		dest = append(dest, &values[i])
	}
	dest = append(dest, &updatedAt)

	err := r.db.QueryRowContext(ctx, r.snapshotQuery, studentID).Scan(dest...)
	if err != nil {
		if r.IsNotFound(err) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to load skill snapshot",
			zap.Int64("student_id", studentID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to load skill snapshot: %w", err)
	}

	snapshot := models.NewSkillSnapshot(id, sport, nil)
	snapshot.UpdatedAt = updatedAt
	for i, v := range values {
		if v.Valid {
			snapshot.Set(r.fields[i], v.Float64)
		}
	}
	return snapshot, nil
}

// ListEvaluableStudents returns every athlete with a skills row, by id
func (r *skillRepository) ListEvaluableStudents(ctx context.Context) ([]*models.Student, error) {
	query := `
		SELECT s.id, s.name, s.sport
		FROM students s
		JOIN student_skills sk ON sk.student_id = s.id
		ORDER BY s.id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	students := []*models.Student{}
	for rows.Next() {
		s := &models.Student{}
		if err := rows.Scan(&s.ID, &s.Name, &s.Sport); err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate students: %w", err)
	}
	return students, nil
}
