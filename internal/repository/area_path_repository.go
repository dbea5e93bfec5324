package repository

import (
	"context"
	"database/sql"

	"github.com/jengzang/coverage-backend-go/internal/database"
	"github.com/jengzang/coverage-backend-go/internal/models"
)

// AreaPathRepository handles database operations for trip traversal edges
type AreaPathRepository struct {
	db *database.DB
}

// NewAreaPathRepository creates a new area path repository
func NewAreaPathRepository(db *database.DB) *AreaPathRepository {
	return &AreaPathRepository{db: db}
}

// InsertBatch writes all edges of a trip in a single transaction.
func (r *AreaPathRepository) InsertBatch(ctx context.Context, paths []models.AreaPath) error {
	if len(paths) == 0 {
		return nil
	}

	query := r.db.Rebind(`INSERT INTO area_paths (area_id, next_area_id, previous_area_id, bearing, trip_id)
		VALUES (?, ?, ?, ?, ?)`)

	err := r.db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, p := range paths {
			if _, err := stmt.ExecContext(ctx, p.AreaID, p.NextAreaID, nullable(p.PreviousAreaID), p.Bearing, p.TripID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return storeErr("insert area paths", err)
	}
	return nil
}

// ByTrip returns the edges of one trip in insertion order.
func (r *AreaPathRepository) ByTrip(ctx context.Context, tripID int64) ([]models.AreaPath, error) {
	query := r.db.Rebind(`SELECT area_id, next_area_id, previous_area_id, bearing, trip_id
		FROM area_paths WHERE trip_id = ? ORDER BY id`)
	rows, err := r.db.QueryContext(ctx, query, tripID)
	if err != nil {
		return nil, storeErr("query area paths", err)
	}
	defer rows.Close()

	var paths []models.AreaPath
	for rows.Next() {
		var (
			p        models.AreaPath
			previous sql.Null[int64]
		)
		if err := rows.Scan(&p.AreaID, &p.NextAreaID, &previous, &p.Bearing, &p.TripID); err != nil {
			return nil, storeErr("scan area path", err)
		}
		p.PreviousAreaID = ptr(previous)
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate area paths", err)
	}
	return paths, nil
}
