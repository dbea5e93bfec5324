// Package ingest runs the client-facing listeners: batched measurement upload
// over TCP and the UDP probe echo.
package ingest

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jengzang/coverage-backend-go/internal/aggregation"
	"github.com/jengzang/coverage-backend-go/internal/models"
	"github.com/jengzang/coverage-backend-go/internal/wire"
)

// DefaultReadTimeout is how long a connection may stay silent before it is closed.
const DefaultReadTimeout = 5 * time.Second

// BatchIngester stores one decoded batch as a trip.
type BatchIngester interface {
	IngestBatch(ctx context.Context, records []models.MeasurementRecord) (aggregation.Result, error)
}

// BatchListener accepts upload connections. Each connection is served by its own
// goroutine and its batches are ingested one after another in arrival order.
type BatchListener struct {
	ingester    BatchIngester
	readTimeout time.Duration
	metrics     *Metrics
	log         logrus.FieldLogger

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// NewBatchListener creates a listener. A zero readTimeout uses DefaultReadTimeout.
func NewBatchListener(ingester BatchIngester, readTimeout time.Duration, metrics *Metrics, log logrus.FieldLogger) *BatchListener {
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &BatchListener{
		ingester:    ingester,
		readTimeout: readTimeout,
		metrics:     metrics,
		log:         log,
		conns:       make(map[net.Conn]struct{}),
	}
}

// ListenAndServe listens on addr and serves until ctx is done.
func (l *BatchListener) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return l.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done. It closes ln and every open
// connection before returning, and waits for their goroutines.
func (l *BatchListener) Serve(ctx context.Context, ln net.Listener) error {
	l.log.WithField("addr", ln.Addr().String()).Info("batch listener started")

	stop := context.AfterFunc(ctx, func() {
		ln.Close()
		l.closeAll()
	})
	defer stop()
	defer l.wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				l.log.Info("batch listener stopped")
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return err
		}

		l.track(conn, true)
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			defer l.track(conn, false)
			l.serveConn(ctx, conn)
		}()
	}
}

func (l *BatchListener) track(conn net.Conn, add bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if add {
		l.conns[conn] = struct{}{}
		l.metrics.connectionsTotal.Inc()
		l.metrics.connectionsActive.Inc()
		return
	}
	delete(l.conns, conn)
	l.metrics.connectionsActive.Dec()
}

func (l *BatchListener) closeAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for conn := range l.conns {
		conn.Close()
	}
}

func (l *BatchListener) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	log := l.log.WithFields(logrus.Fields{
		"remote":  conn.RemoteAddr().String(),
		"session": uuid.NewString(),
	})
	log.Info("client connected")

	reader := wire.NewBatchReader(conn)
	reader.BeforeRead = func() error {
		return conn.SetReadDeadline(time.Now().Add(l.readTimeout))
	}

	batches := 0
	for {
		encoded, err := reader.ReadBatch()
		if err != nil {
			l.logDisconnect(log, err, batches)
			return
		}
		batches++

		records := l.decode(log, encoded)
		if len(records) == 0 {
			continue
		}

		start := time.Now()
		res, err := l.ingester.IngestBatch(ctx, records)
		l.metrics.batchDuration.Observe(time.Since(start).Seconds())
		l.metrics.records.WithLabelValues(outcomeStored).Add(float64(res.Stored))
		l.metrics.records.WithLabelValues(outcomeWiFi).Add(float64(res.WiFi))
		l.metrics.records.WithLabelValues(outcomeSkipped).Add(float64(res.Unresolved))
		if err != nil {
			l.metrics.batches.WithLabelValues(outcomeFailed).Inc()
			log.WithError(err).WithField("records", len(records)).Error("batch ingestion failed")
			continue
		}
		l.metrics.batches.WithLabelValues(outcomeOK).Inc()
	}
}

// decode parses every record of a batch, dropping the malformed ones.
func (l *BatchListener) decode(log logrus.FieldLogger, encoded []string) []models.MeasurementRecord {
	records := make([]models.MeasurementRecord, 0, len(encoded))
	for i, s := range encoded {
		r, err := wire.Decode(s)
		if err != nil {
			l.metrics.records.WithLabelValues(outcomeMalformed).Inc()
			log.WithError(err).WithField("index", i).Warn("skipping malformed record")
			continue
		}
		records = append(records, r)
	}
	return records
}

// logDisconnect classifies the error that ended a connection. End of stream,
// idle timeout and shutdown are normal.
func (l *BatchListener) logDisconnect(log logrus.FieldLogger, err error, batches int) {
	log = log.WithField("batches", batches)
	var ne net.Error
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		log.Info("client disconnected")
	case errors.As(err, &ne) && ne.Timeout():
		log.Info("client idle, closing connection")
	case errors.Is(err, wire.ErrProtocol), errors.Is(err, io.ErrUnexpectedEOF):
		log.WithError(err).Warn("closing connection after malformed frame")
	default:
		log.WithError(err).Warn("connection read failed")
	}
}
