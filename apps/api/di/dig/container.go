package dig_container

import (
	"context"
	"fmt"
	"log"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/admissions/apps/api/echo"
	"github.com/trezcool/admissions/apps/shared"
	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/application"
	"github.com/trezcool/admissions/core/lead"
	"github.com/trezcool/admissions/core/task"
	"github.com/trezcool/admissions/core/visit"
	metricsvc "github.com/trezcool/admissions/services/metrics"
	"github.com/trezcool/admissions/storage/database"
	sqlxrepos "github.com/trezcool/admissions/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type serverParams struct {
	dig.In
	Conf           *core.Config
	Logger         core.Logger
	Validate       *validator.Validate
	Translator     ut.Translator
	LeadSvc        *lead.Service
	VisitSvc       *visit.Service
	ApplicationSvc *application.Service
	TaskSvc        *task.Service
	Recorder       *metricsvc.Recorder
}

func newLogger(conf *core.Config) core.Logger {
	return shared.NewLogger(conf, "API : ")
}

func newDBLogger(conf *core.Config) core.Logger {
	return shared.NewLogger(conf, "DB : ")
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		ctx := context.Background()
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}

		db, err := database.Open(ctx, conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newClock() core.Clock {
	return core.SystemClock
}

func newMetrics(recorder *metricsvc.Recorder) core.Metrics {
	return recorder
}

func newLeadService(repo lead.Repository, txr core.TxRunner, clock core.Clock) *lead.Service {
	return lead.NewService(repo, txr, clock)
}

func newAutomation(conf *core.Config, tasks task.Repository, leads application.LeadFinder, clock core.Clock) *application.Automation {
	return application.NewAutomation(tasks, leads, clock, conf.Automation.ReviewTaskDueDays)
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:           p.Conf,
		Logger:         p.Logger,
		Validate:       p.Validate,
		Translator:     p.Translator,
		LeadSvc:        p.LeadSvc,
		VisitSvc:       p.VisitSvc,
		ApplicationSvc: p.ApplicationSvc,
		TaskSvc:        p.TaskSvc,
		Metrics:        p.Recorder.Handler(),
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newClock))
	must(c.Provide(metricsvc.NewRecorder))
	must(c.Provide(newMetrics))

	// storage
	must(c.Provide(sqlxrepos.NewStore, dig.As(new(core.TxRunner))))
	must(c.Provide(sqlxrepos.NewLeadRepository, dig.As(
		new(lead.Repository),
		new(visit.LeadFinder),
		new(application.LeadFinder),
	)))
	must(c.Provide(sqlxrepos.NewVisitRepository, dig.As(new(visit.Repository))))
	must(c.Provide(sqlxrepos.NewApplicationRepository, dig.As(new(application.Repository))))
	must(c.Provide(sqlxrepos.NewTaskRepository, dig.As(new(task.Repository))))

	// services
	must(c.Provide(newLeadService))
	must(c.Provide(visit.NewService))
	must(c.Provide(newAutomation))
	must(c.Provide(application.NewService))
	must(c.Provide(task.NewService))

	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
