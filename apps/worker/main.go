package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/trezcool/admissions/apps/shared"
	"github.com/trezcool/admissions/core"
	metricsvc "github.com/trezcool/admissions/services/metrics"
	schedulersvc "github.com/trezcool/admissions/services/scheduler"
	"github.com/trezcool/admissions/storage/database"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	logger := shared.NewLogger(conf, "WORKER : ")
	defer logger.Close()
	dbLogger := shared.NewLogger(conf, "DB : ")

	db, err := database.Open(context.Background(), conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	recorder := metricsvc.NewRecorder()
	visitScheduler := shared.NewVisitScheduler(conf, db, logger, recorder)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Worker initializing : version %q, tick every %v", conf.Build, conf.Automation.TickPeriod))
	defer logger.Info("Worker stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/vars - Added to the default mux by importing the expvar package.
	// /metrics - the automation counters.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	http.Handle("/metrics", recorder.Handler())

	go func() {
		if err := http.ListenAndServe(conf.Automation.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Scheduler

	sched := schedulersvc.New(logger)
	sched.Every(conf.Automation.TickPeriod, "visit-automation", visitScheduler.Tick)
	sched.Start()

	// =========================================================================
	// Shutdown

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	sig := <-shutdown
	logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

	// give the running tick a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()
	if err := sched.Stop(ctx); err != nil {
		logger.Error(fmt.Sprintf("could not stop scheduler gracefully: %v", err), err)
	}
}
