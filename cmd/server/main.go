package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/jengzang/coverage-backend-go/internal/aggregation"
	"github.com/jengzang/coverage-backend-go/internal/api"
	"github.com/jengzang/coverage-backend-go/internal/config"
	"github.com/jengzang/coverage-backend-go/internal/database"
	"github.com/jengzang/coverage-backend-go/internal/deadspot"
	"github.com/jengzang/coverage-backend-go/internal/handler"
	"github.com/jengzang/coverage-backend-go/internal/ingest"
	"github.com/jengzang/coverage-backend-go/internal/repository"
	"github.com/jengzang/coverage-backend-go/internal/scoring"
	"github.com/jengzang/coverage-backend-go/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 加载配置
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := cfg.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 初始化数据库
	db, err := database.Open(ctx, cfg.Database(), log)
	if err != nil {
		log.WithError(err).Fatal("Failed to open database")
	}
	defer db.Close()
	if err := database.Migrate(ctx, db, log); err != nil {
		log.WithError(err).Fatal("Failed to migrate database")
	}

	areas := repository.NewAreaRepository(db)
	measurements := repository.NewMeasurementRepository(db)
	paths := repository.NewAreaPathRepository(db)

	engine := aggregation.NewEngine(areas, measurements, paths, aggregation.WithLogger(log))
	scorer := scoring.NewScorer(measurements, areas, log)

	var router deadspot.RouteProvider
	key, err := deadspot.LoadAPIKey(cfg.DirectionsKeyFile)
	switch {
	case err != nil:
		log.WithError(err).Warn("Directions API key unreadable, route queries disabled")
	case key == "":
		log.WithField("file", cfg.DirectionsKeyFile).Warn("No Directions API key, route queries disabled")
	default:
		router = deadspot.NewGoogleDirections(key, cfg.DirectionsURL)
	}
	detector := deadspot.NewDetector(areas, scorer, router, log)

	metrics := ingest.NewMetrics(prometheus.DefaultRegisterer)
	batches := ingest.NewBatchListener(engine, cfg.ReadTimeout, metrics, log)
	probes := ingest.NewProbeServer(metrics, log)

	// 初始化路由
	gin.SetMode(gin.ReleaseMode)
	coverage := handler.NewCoverageHandler(service.NewCoverageService(service.Repositories{Areas: areas, Measurements: measurements, Paths: paths}, scorer, detector, log))
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.SetupRouter(cfg, coverage, prometheus.DefaultGatherer, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return batches.ListenAndServe(gctx, cfg.TCPAddr)
	})
	g.Go(func() error {
		return probes.ListenAndServe(gctx, cfg.UDPAddr)
	})
	g.Go(func() error {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("Server stopped with error")
		return
	}
	log.Info("Server stopped")
}
