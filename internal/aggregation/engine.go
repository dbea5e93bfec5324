// Package aggregation turns a batch of client measurement records into a trip:
// areas resolved or refined, traversal edges and derived delay metrics.
package aggregation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jengzang/coverage-backend-go/internal/models"
	"github.com/jengzang/coverage-backend-go/internal/spatial"
)

// UDPSendIntervalMs is the fixed cadence at which clients send probes.
const UDPSendIntervalMs = 250

// AreaStore resolves and maintains areas.
type AreaStore interface {
	NearestWithin(ctx context.Context, lat, lon, radius float64) (*models.Area, error)
	Create(ctx context.Context, lat, lon float64, accuracy float32) (models.Area, error)
	UpdateLocation(ctx context.Context, id int64, lat, lon float64, accuracy float32) error
}

// MeasurementStore allocates trips and persists measurements.
type MeasurementStore interface {
	AllocateTrip(ctx context.Context) (int64, error)
	InsertBatch(ctx context.Context, measurements []models.Measurement) error
}

// PathStore persists trip traversal edges.
type PathStore interface {
	InsertBatch(ctx context.Context, paths []models.AreaPath) error
}

// Result summarizes one ingested batch.
type Result struct {
	TripID       int64
	Stored       int // measurements written
	WiFi         int // records discarded as WiFi
	Unresolved   int // records skipped because their area could not be resolved
	Paths        int // edges written
	Measurements []models.Measurement
}

// Engine ingests batches. It holds no state besides its dependencies and is
// safe for concurrent use.
type Engine struct {
	areas        AreaStore
	measurements MeasurementStore
	paths        PathStore
	locker       *spatial.BucketLocker
	log          logrus.FieldLogger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = log }
}

// NewEngine creates an engine over the given stores.
func NewEngine(areas AreaStore, measurements MeasurementStore, paths PathStore, opts ...Option) *Engine {
	e := &Engine{
		areas:        areas,
		measurements: measurements,
		paths:        paths,
		locker:       spatial.NewBucketLocker(spatial.DefaultBucketLevel),
		log:          logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IngestBatch stores records as one new trip. Records are processed in packet id
// order. A record whose area cannot be resolved is skipped. The measurement and
// path writes are independent: one failing does not undo the other, and areas
// created along the way are kept. The returned error joins the write failures.
func (e *Engine) IngestBatch(ctx context.Context, records []models.MeasurementRecord) (Result, error) {
	if len(records) == 0 {
		return Result{}, nil
	}
	start := time.Now()

	tripID, err := e.measurements.AllocateTrip(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("allocate trip: %w", err)
	}
	log := e.log.WithField("trip_id", tripID)
	res := Result{TripID: tripID}

	sorted := make([]models.MeasurementRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].PacketID < sorted[j].PacketID })

	var (
		path     = pathFold{tripID: tripID}
		previous *models.MeasurementRecord
	)
	for i := range sorted {
		r := &sorted[i]
		if r.IsWiFi() {
			res.WiFi++
			continue
		}

		area, err := e.resolveArea(ctx, *r)
		if err != nil {
			res.Unresolved++
			log.WithError(err).WithFields(logrus.Fields{
				"packet_id": r.PacketID,
				"latitude":  r.Latitude,
				"longitude": r.Longitude,
			}).Warn("could not resolve area, skipping record")
			continue
		}

		path.step(area.ID, r.Bearing)

		ipdv := IPDV(previous, r)
		res.Measurements = append(res.Measurements, newMeasurement(*r, area.ID, tripID, ipdv))
		previous = r
	}

	var errs []error
	if err := e.measurements.InsertBatch(ctx, res.Measurements); err != nil {
		log.WithError(err).WithField("records", len(res.Measurements)).Error("failed to persist measurements")
		errs = append(errs, fmt.Errorf("trip %d measurements: %w", tripID, err))
	} else {
		res.Stored = len(res.Measurements)
	}
	if err := e.paths.InsertBatch(ctx, path.edges); err != nil {
		log.WithError(err).WithField("records", len(path.edges)).Error("failed to persist area paths")
		errs = append(errs, fmt.Errorf("trip %d area paths: %w", tripID, err))
	} else {
		res.Paths = len(path.edges)
	}

	log.WithFields(logrus.Fields{
		"records":    len(records),
		"stored":     res.Stored,
		"wifi":       res.WiFi,
		"unresolved": res.Unresolved,
		"paths":      res.Paths,
		"took":       time.Since(start),
	}).Info("ingested batch")

	return res, errors.Join(errs...)
}

// resolveArea finds the area covering the record's fix or creates one. An area
// with poor accuracy is moved to a strictly more accurate fix. The bucket lock
// keeps two concurrent fixes in the same neighbourhood from both creating an area.
func (e *Engine) resolveArea(ctx context.Context, r models.MeasurementRecord) (models.Area, error) {
	unlock := e.locker.Lock(r.Latitude, r.Longitude)
	defer unlock()

	found, err := e.areas.NearestWithin(ctx, r.Latitude, r.Longitude, models.AreaRadiusMeters)
	if err != nil {
		return models.Area{}, err
	}
	if found == nil {
		return e.areas.Create(ctx, r.Latitude, r.Longitude, r.Accuracy)
	}

	area := *found
	if area.Accuracy > models.AreaRadiusMeters && r.Accuracy < area.Accuracy {
		if err := e.areas.UpdateLocation(ctx, area.ID, r.Latitude, r.Longitude, r.Accuracy); err != nil {
			// The area itself is still valid for this record.
			e.log.WithError(err).WithField("area_id", area.ID).Warn("failed to refine area location")
			return area, nil
		}
		area.Latitude, area.Longitude, area.Accuracy = r.Latitude, r.Longitude, r.Accuracy
	}
	return area, nil
}

// IPDV is the deviation of the server reply interval from the send cadence.
// It is defined only when cur directly follows prev and both carry a reply time.
func IPDV(prev, cur *models.MeasurementRecord) *int32 {
	if prev == nil || cur == nil {
		return nil
	}
	if int64(cur.PacketID)-int64(prev.PacketID) != 1 || prev.ServerReplyTime == nil || cur.ServerReplyTime == nil {
		return nil
	}
	v := int32(*cur.ServerReplyTime - *prev.ServerReplyTime - UDPSendIntervalMs)
	return &v
}

func newMeasurement(r models.MeasurementRecord, areaID, tripID int64, ipdv *int32) models.Measurement {
	m := models.Measurement{
		AreaID:          areaID,
		PacketID:        r.PacketID,
		TripID:          tripID,
		Speed:           r.Speed,
		Bearing:         r.Bearing,
		NetworkType:     r.NetworkType,
		SignalStrength:  r.SignalStrength,
		RoundTripTime:   r.RoundTripTime,
		ServerReplyTime: r.ServerReplyTime,
		IPDV:            ipdv,
		GsmAsuLevel:     r.GsmAsuLevel,
		LteAsuLevel:     r.LteAsuLevel,
	}
	if ipdv != nil {
		j := *ipdv
		if j < 0 {
			j = -j
		}
		m.Jitter = &j
	}
	return m
}
