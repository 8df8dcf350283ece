package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lingua-scheduler-api/internal/models"
)

const classColumns = "id, name, teacher_id, max_students, sessions_per_week, fixed_schedule, status, created_at, updated_at"

// ClassRepository reads class scheduling profiles.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// FindByID returns a class by id. Soft-deleted classes are treated as missing.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	query := fmt.Sprintf("SELECT %s FROM classes WHERE id = $1 AND deleted_at IS NULL", classColumns)
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// ListActive returns active classes ordered by name. A non-empty ids slice restricts the result.
func (r *ClassRepository) ListActive(ctx context.Context, ids []string) ([]models.Class, error) {
	query := fmt.Sprintf("SELECT %s FROM classes WHERE status = 'active' AND deleted_at IS NULL", classColumns)
	var args []interface{}
	if len(ids) > 0 {
		query += " AND id = ANY($1)"
		args = append(args, pq.Array(ids))
	}
	query += " ORDER BY name ASC"

	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, fmt.Errorf("list active classes: %w", err)
	}
	return classes, nil
}
