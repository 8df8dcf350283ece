package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lingua-scheduler-api/internal/models"
)

const roomColumns = "id, name, capacity, status, deleted_at, created_at, updated_at"

// RoomRepository reads classrooms.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository constructs a room repository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// FindByID loads a room that has not been soft-deleted.
func (r *RoomRepository) FindByID(ctx context.Context, id string) (*models.Room, error) {
	query := fmt.Sprintf("SELECT %s FROM rooms WHERE id = $1 AND deleted_at IS NULL", roomColumns)
	var room models.Room
	if err := r.db.GetContext(ctx, &room, query, id); err != nil {
		return nil, err
	}
	return &room, nil
}

// ListAvailable returns bookable rooms holding at least minCapacity people, smallest first.
func (r *RoomRepository) ListAvailable(ctx context.Context, minCapacity int) ([]models.Room, error) {
	query := fmt.Sprintf("SELECT %s FROM rooms WHERE status = 'available' AND deleted_at IS NULL AND capacity >= $1 ORDER BY capacity ASC, name ASC", roomColumns)
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query, minCapacity); err != nil {
		return nil, fmt.Errorf("list available rooms: %w", err)
	}
	return rooms, nil
}
