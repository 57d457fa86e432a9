package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/dig"

	dig_container "github.com/trezcool/admissions/apps/api/di/dig"
	echoapi "github.com/trezcool/admissions/apps/api/echo"
	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/application"
	"github.com/trezcool/admissions/core/lead"
	metricsvc "github.com/trezcool/admissions/services/metrics"
)

type apiParams struct {
	dig.In
	Conf       *core.Config
	Logger     core.Logger
	DBLogger   core.Logger `name:"dbLogger"`
	DB         *sqlx.DB
	Validate   *validator.Validate
	Translator ut.Translator
	Server     *echoapi.Server
	Recorder   *metricsvc.Recorder
}

func startWithDig() {
	must(dig_container.New().Invoke(run))
}

func run(p apiParams) {
	// =========================================================================
	// Initialize App

	p.Logger.Info(fmt.Sprintf("Application initializing : version %q, env %s", p.Conf.Build, p.Conf.Env))
	registerValidators(p.Validate, p.Translator)

	defer func() {
		if err := p.DB.Close(); err != nil {
			p.DBLogger.Fatal("Failed to close", err)
		}
	}()
	defer p.Logger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service

	expvar.NewString("build").Set(p.Conf.Build)
	expvar.NewString("env").Set(p.Conf.Env)
	expvar.NewString("reminderTolerance").Set(p.Conf.Automation.ReminderTolerance.String())

	go func() {
		if err := http.ListenAndServe(p.Conf.Server.DebugHost, debugMux(p.Recorder)); err != nil {
			p.Logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	go p.Server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err := <-p.Server.Errors():
		p.Logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-p.Server.ShutdownSignal():
		p.Logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))
		shutdown(p.Conf, p.Server, p.Logger)
	}
}

// registerValidators adds the custom tags and their translations of every request struct.
func registerValidators(validate *validator.Validate, translator ut.Translator) {
	core.InitValidators(validate, translator)
	lead.RegisterValidators(validate, translator)
	application.RegisterValidators(validate, translator)
}

// debugMux serves:
// /debug/pprof - the runtime profiles.
// /debug/vars - the expvar variables.
// /metrics - the automation counters.
func debugMux(recorder *metricsvc.Recorder) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/debug/vars", expvar.Handler())
	mux.Handle("/metrics", recorder.Handler())
	return mux
}

// shutdown gives outstanding requests conf.Server.ShutdownTimeout to complete, then forces the server closed.
func shutdown(conf *core.Config, server *echoapi.Server, logger core.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

		if err = server.Close(); err != nil {
			logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
		}
	}
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
