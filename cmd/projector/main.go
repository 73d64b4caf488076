// Command projector runs the checkpointed read-model projector (spec
// §4.H) as a standalone long-lived process, wired the way the teacher's
// cmd/report-bank/main.go wires its own background projector: open the
// database handles, ensure schema, install a signal-driven cancellation
// context, run until stopped.
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/AbdalrahmanBashir/EventSourcedBank/config"
	"github.com/AbdalrahmanBashir/EventSourcedBank/eventstore/postgres"
	"github.com/AbdalrahmanBashir/EventSourcedBank/metrics"
	projectionpg "github.com/AbdalrahmanBashir/EventSourcedBank/projection/postgres"
	"github.com/AbdalrahmanBashir/EventSourcedBank/projector"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.FromEnv()
	failOnError(logger, err)

	eventStoreDB, err := sql.Open("postgres", cfg.EventStoreDSN)
	failOnError(logger, err)
	defer eventStoreDB.Close()

	readModelDB := eventStoreDB
	if cfg.ReadModelDSN != cfg.EventStoreDSN {
		readModelDB, err = sql.Open("postgres", cfg.ReadModelDSN)
		failOnError(logger, err)
		defer readModelDB.Close()
	}

	ctx := context.Background()

	failOnError(logger, postgres.EnsureSchema(ctx, eventStoreDB))
	failOnError(logger, projectionpg.EnsureSchema(ctx, readModelDB))

	store := postgres.NewEventStore(eventStoreDB, logger)
	reads := projectionpg.NewStore(readModelDB)

	registry := prometheus.NewRegistry()
	recorder := metrics.NewMetrics()
	failOnError(logger, recorder.Register(registry))

	go serveMetrics(logger, registry)

	proj := projector.New(cfg.ProjectorName, store, reads, logger, recorder)

	runCtx, cancel := context.WithCancel(ctx)
	go waitForSignal(cancel)

	if err := proj.Run(runCtx); err != nil && err != context.Canceled {
		logger.WithError(err).Fatal("projector.Run returned an error")
	}
}

func serveMetrics(logger *logrus.Logger, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	if err := http.ListenAndServe(":9090", mux); err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Error("metrics server stopped")
	}
}

func waitForSignal(cancel context.CancelFunc) {
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt)
	<-sigint
	cancel()
}

func failOnError(logger *logrus.Logger, err error) {
	if err != nil {
		logger.WithError(err).Fatal("projector startup failed")
	}
}
