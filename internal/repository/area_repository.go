package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jengzang/coverage-backend-go/internal/database"
	"github.com/jengzang/coverage-backend-go/internal/models"
	"github.com/jengzang/coverage-backend-go/internal/spatial"
)

// idChunk bounds the number of placeholders in one IN list.
const idChunk = 500

// AreaRepository handles database operations for areas
type AreaRepository struct {
	db *database.DB
}

// NewAreaRepository creates a new area repository
func NewAreaRepository(db *database.DB) *AreaRepository {
	return &AreaRepository{db: db}
}

// NearestWithin returns the area closest to (lat, lon) whose center lies within
// radius meters, or nil when there is none. The lat/lon index narrows the
// candidates to a bounding box; the exact test is geodetic.
func (r *AreaRepository) NearestWithin(ctx context.Context, lat, lon, radius float64) (*models.Area, error) {
	minLat, minLon, maxLat, maxLon := spatial.BoundingBox(lat, lon, radius)

	query := `SELECT id, latitude, longitude, accuracy FROM areas WHERE latitude BETWEEN ? AND ?`
	args := []interface{}{minLat, maxLat}
	if minLon <= maxLon {
		query += " AND longitude BETWEEN ? AND ?"
	} else {
		// Box crosses the antimeridian.
		query += " AND (longitude >= ? OR longitude <= ?)"
	}
	args = append(args, minLon, maxLon)

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, storeErr("query areas in range", err)
	}
	defer rows.Close()

	var (
		best     *models.Area
		bestDist float64
	)
	for rows.Next() {
		var a models.Area
		if err := rows.Scan(&a.ID, &a.Latitude, &a.Longitude, &a.Accuracy); err != nil {
			return nil, storeErr("scan area", err)
		}
		if !spatial.Within(lat, lon, a.Latitude, a.Longitude, radius) {
			continue
		}
		d := spatial.HaversineDistance(lat, lon, a.Latitude, a.Longitude)
		if best == nil || d < bestDist || (d == bestDist && a.ID < best.ID) {
			found := a
			best, bestDist = &found, d
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate areas", err)
	}
	return best, nil
}

// Create inserts a new area centered on (lat, lon).
func (r *AreaRepository) Create(ctx context.Context, lat, lon float64, accuracy float32) (models.Area, error) {
	a := models.Area{Latitude: lat, Longitude: lon, Accuracy: accuracy}
	query := r.db.Rebind(`INSERT INTO areas (latitude, longitude, accuracy) VALUES (?, ?, ?) RETURNING id`)
	if err := r.db.QueryRowContext(ctx, query, lat, lon, accuracy).Scan(&a.ID); err != nil {
		return models.Area{}, storeErr("create area", err)
	}
	return a, nil
}

// UpdateLocation overwrites an area's center and accuracy. The id is unchanged.
func (r *AreaRepository) UpdateLocation(ctx context.Context, id int64, lat, lon float64, accuracy float32) error {
	query := r.db.Rebind(`UPDATE areas SET latitude = ?, longitude = ?, accuracy = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, lat, lon, accuracy, id)
	if err != nil {
		return storeErr("update area", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storeErr("update area", sql.ErrNoRows)
	}
	return nil
}

// GetByID retrieves a single area. Returns nil, nil when it does not exist.
func (r *AreaRepository) GetByID(ctx context.Context, id int64) (*models.Area, error) {
	var a models.Area
	query := r.db.Rebind(`SELECT id, latitude, longitude, accuracy FROM areas WHERE id = ?`)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&a.ID, &a.Latitude, &a.Longitude, &a.Accuracy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get area", err)
	}
	return &a, nil
}

// GetByIDs loads the given areas keyed by id. Unknown ids are absent from the result.
func (r *AreaRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]models.Area, error) {
	areas := make(map[int64]models.Area, len(ids))
	for start := 0; start < len(ids); start += idChunk {
		end := min(start+idChunk, len(ids))
		chunk := ids[start:end]

		args := make([]interface{}, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		query := `SELECT id, latitude, longitude, accuracy FROM areas WHERE id IN (` + placeholders(len(chunk)) + `)`

		rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
		if err != nil {
			return nil, storeErr("query areas", err)
		}
		for rows.Next() {
			var a models.Area
			if err := rows.Scan(&a.ID, &a.Latitude, &a.Longitude, &a.Accuracy); err != nil {
				rows.Close()
				return nil, storeErr("scan area", err)
			}
			areas[a.ID] = a
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, storeErr("iterate areas", err)
		}
	}
	return areas, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
