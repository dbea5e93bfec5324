package repository

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"github.com/jengzang/coverage-backend-go/internal/database"
	"github.com/jengzang/coverage-backend-go/internal/models"
)

// maxTripClauses bounds the trip filter pushed into SQL. Larger filters are applied in memory.
const maxTripClauses = 200

const measurementColumns = `id, area_id, packet_id, trip_id, speed, bearing, network_type, signal_strength,
	round_trip_time, server_reply_time, ipdv, jitter, gsm_asu_level, lte_asu_level`

// MeasurementRepository handles database operations for measurements and trips
type MeasurementRepository struct {
	db *database.DB
}

// NewMeasurementRepository creates a new measurement repository
func NewMeasurementRepository(db *database.DB) *MeasurementRepository {
	return &MeasurementRepository{db: db}
}

// AllocateTrip reserves the next trip id. The sequence is owned by the store so
// concurrent batches never receive the same id.
func (r *MeasurementRepository) AllocateTrip(ctx context.Context) (int64, error) {
	var id int64
	if err := r.db.QueryRowContext(ctx, `INSERT INTO trips DEFAULT VALUES RETURNING id`).Scan(&id); err != nil {
		return 0, storeErr("allocate trip", err)
	}
	return id, nil
}

// InsertBatch writes all measurements in a single transaction.
func (r *MeasurementRepository) InsertBatch(ctx context.Context, measurements []models.Measurement) error {
	if len(measurements) == 0 {
		return nil
	}

	query := r.db.Rebind(`INSERT INTO measurements (area_id, packet_id, trip_id, speed, bearing, network_type,
		signal_strength, round_trip_time, server_reply_time, ipdv, jitter, gsm_asu_level, lte_asu_level)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	err := r.db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, m := range measurements {
			_, err := stmt.ExecContext(ctx,
				m.AreaID, m.PacketID, m.TripID, m.Speed, m.Bearing, nullable(m.NetworkType),
				nullable(m.SignalStrength), nullable(m.RoundTripTime), nullable(m.ServerReplyTime),
				nullable(m.IPDV), nullable(m.Jitter), nullable(m.GsmAsuLevel), nullable(m.LteAsuLevel),
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return storeErr("insert measurements", err)
	}
	return nil
}

// Query returns the measurements matching filter ordered by trip and packet id.
func (r *MeasurementRepository) Query(ctx context.Context, filter models.MeasurementFilter) ([]models.Measurement, error) {
	query := `SELECT ` + measurementColumns + ` FROM measurements`

	var conditions []string
	var args []interface{}

	if filter.AreaID != nil {
		conditions = append(conditions, "area_id = ?")
		args = append(args, *filter.AreaID)
	}
	if len(filter.NetworkTypes) > 0 {
		conditions = append(conditions, "network_type IN ("+placeholders(len(filter.NetworkTypes))+")")
		for _, t := range filter.NetworkTypes {
			args = append(args, t)
		}
	}

	var tripSet map[int64]bool
	if len(filter.TripIDs) > 0 {
		runs := tripRuns(filter.TripIDs)
		if len(runs) <= maxTripClauses {
			var clauses []string
			for _, run := range runs {
				if run[0] == run[1] {
					clauses = append(clauses, "trip_id = ?")
					args = append(args, run[0])
				} else {
					clauses = append(clauses, "trip_id BETWEEN ? AND ?")
					args = append(args, run[0], run[1])
				}
			}
			conditions = append(conditions, "("+strings.Join(clauses, " OR ")+")")
		} else {
			tripSet = make(map[int64]bool, len(filter.TripIDs))
			for _, id := range filter.TripIDs {
				tripSet[id] = true
			}
		}
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY trip_id, packet_id, id"

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, storeErr("query measurements", err)
	}
	defer rows.Close()

	var measurements []models.Measurement
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, storeErr("scan measurement", err)
		}
		if tripSet != nil && !tripSet[m.TripID] {
			continue
		}
		measurements = append(measurements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate measurements", err)
	}
	return measurements, nil
}

// ListTrips summarizes every trip that has measurements, ordered by trip id.
func (r *MeasurementRepository) ListTrips(ctx context.Context) ([]models.TripSummary, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT trip_id, network_type, COUNT(*) FROM measurements
		GROUP BY trip_id, network_type ORDER BY trip_id`)
	if err != nil {
		return nil, storeErr("list trips", err)
	}
	defer rows.Close()

	type bucket struct {
		networkType *string
		count       int64
	}
	perTrip := make(map[int64][]bucket)
	var order []int64

	for rows.Next() {
		var (
			tripID      int64
			networkType sql.NullString
			count       int64
		)
		if err := rows.Scan(&tripID, &networkType, &count); err != nil {
			return nil, storeErr("scan trip", err)
		}
		if _, seen := perTrip[tripID]; !seen {
			order = append(order, tripID)
		}
		b := bucket{count: count}
		if networkType.Valid {
			nt := networkType.String
			b.networkType = &nt
		}
		perTrip[tripID] = append(perTrip[tripID], b)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate trips", err)
	}

	trips := make([]models.TripSummary, 0, len(order))
	for _, tripID := range order {
		summary := models.TripSummary{TripID: tripID}
		var best bucket
		for _, b := range perTrip[tripID] {
			summary.MeasurementCount += b.count
			if b.networkType != nil && (b.count > best.count || (b.count == best.count && best.networkType != nil && *b.networkType < *best.networkType)) {
				best = b
			}
		}
		if best.networkType != nil && summary.MeasurementCount > 0 {
			summary.DominantNetworkType = best.networkType
			summary.DominantShare = float64(best.count) / float64(summary.MeasurementCount)
		}
		trips = append(trips, summary)
	}
	return trips, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMeasurement(row rowScanner) (models.Measurement, error) {
	var (
		m               models.Measurement
		networkType     sql.Null[string]
		signalStrength  sql.Null[float32]
		roundTripTime   sql.Null[int32]
		serverReplyTime sql.Null[int64]
		ipdv            sql.Null[int32]
		jitter          sql.Null[int32]
		gsmAsuLevel     sql.Null[int32]
		lteAsuLevel     sql.Null[int32]
	)
	err := row.Scan(
		&m.ID, &m.AreaID, &m.PacketID, &m.TripID, &m.Speed, &m.Bearing, &networkType, &signalStrength,
		&roundTripTime, &serverReplyTime, &ipdv, &jitter, &gsmAsuLevel, &lteAsuLevel,
	)
	if err != nil {
		return models.Measurement{}, err
	}
	m.NetworkType = ptr(networkType)
	m.SignalStrength = ptr(signalStrength)
	m.RoundTripTime = ptr(roundTripTime)
	m.ServerReplyTime = ptr(serverReplyTime)
	m.IPDV = ptr(ipdv)
	m.Jitter = ptr(jitter)
	m.GsmAsuLevel = ptr(gsmAsuLevel)
	m.LteAsuLevel = ptr(lteAsuLevel)
	return m, nil
}

// tripRuns collapses ids into sorted inclusive [lo, hi] runs of consecutive values.
func tripRuns(ids []int64) [][2]int64 {
	sorted := make([]int64, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var runs [][2]int64
	for _, id := range sorted {
		if n := len(runs); n > 0 && id <= runs[n-1][1]+1 {
			runs[n-1][1] = max(runs[n-1][1], id)
			continue
		}
		runs = append(runs, [2]int64{id, id})
	}
	return runs
}

func nullable[T any](p *T) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func ptr[T any](n sql.Null[T]) *T {
	if !n.Valid {
		return nil
	}
	v := n.V
	return &v
}
