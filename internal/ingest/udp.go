package ingest

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jengzang/coverage-backend-go/internal/wire"
)

// ProbeServer echoes UDP probes with a server timestamp. It keeps no per-client
// state; each datagram is answered from its own goroutine.
type ProbeServer struct {
	start   time.Time
	metrics *Metrics
	log     logrus.FieldLogger
	wg      sync.WaitGroup
}

// NewProbeServer creates a probe server whose clock starts now.
func NewProbeServer(metrics *Metrics, log logrus.FieldLogger) *ProbeServer {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ProbeServer{start: time.Now(), metrics: metrics, log: log}
}

// Millis is the monotonic server time in milliseconds.
func (s *ProbeServer) Millis() int64 {
	return time.Since(s.start).Milliseconds()
}

// ListenAndServe listens on addr and serves until ctx is done.
func (s *ProbeServer) ListenAndServe(ctx context.Context, addr string) error {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, conn)
}

// Serve answers probes on conn until ctx is done, then closes conn.
func (s *ProbeServer) Serve(ctx context.Context, conn net.PacketConn) error {
	s.log.WithField("addr", conn.LocalAddr().String()).Info("probe server started")

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer s.wg.Wait()

	// One spare byte so oversized datagrams are detected instead of truncated to size.
	buf := make([]byte, wire.ProbeSize+1)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.log.Info("probe server stopped")
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return err
		}

		received := s.Millis()
		packetID, err := wire.DecodeProbe(buf[:n])
		if err != nil {
			s.metrics.probes.WithLabelValues(outcomeDropped).Inc()
			s.log.WithField("remote", addr.String()).WithField("bytes", n).Debug("dropping malformed probe")
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.reply(conn, addr, packetID, received)
		}()
	}
}

func (s *ProbeServer) reply(conn net.PacketConn, addr net.Addr, packetID int32, millis int64) {
	if _, err := conn.WriteTo(wire.EncodeProbeReply(packetID, millis), addr); err != nil {
		s.metrics.probes.WithLabelValues(outcomeFailed).Inc()
		s.log.WithError(err).WithField("remote", addr.String()).Debug("probe reply failed")
		return
	}
	s.metrics.probes.WithLabelValues(outcomeReplied).Inc()
	s.log.WithFields(logrus.Fields{"remote": addr.String(), "packet_id": packetID}).Debug("probe replied")
}
