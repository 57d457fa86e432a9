package shared

import (
	"log"
	"os"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/visit"
	appfs "github.com/trezcool/admissions/fs"
	emailsvc "github.com/trezcool/admissions/services/email"
	logsvc "github.com/trezcool/admissions/services/logger"
	notifysvc "github.com/trezcool/admissions/services/notify"
	sqlxrepos "github.com/trezcool/admissions/storage/database/sqlx"
)

// NewLogger returns the rollbar logger of a process, mirrored to stdout with prefix.
func NewLogger(conf *core.Config, prefix string) *logsvc.RollbarLogger {
	return logsvc.NewRollbarLogger(
		log.New(os.Stdout, prefix, log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
}

// NewEmailService prints emails in debug mode and sends them through sendgrid otherwise.
func NewEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// NewVisitScheduler wires the visit automation on the Postgres store.
// It parses the email templates the reminders are rendered with.
func NewVisitScheduler(conf *core.Config, db *sqlx.DB, logger core.Logger, metrics core.Metrics) *visit.Scheduler {
	core.ParseEmailTemplates(appfs.FS, conf, logger)

	return visit.NewScheduler(
		sqlxrepos.NewVisitRepository(db),
		sqlxrepos.NewTaskRepository(db),
		sqlxrepos.NewStore(db),
		core.SystemClock,
		notifysvc.NewEmailNotifier(NewEmailService(conf, logger), time.UTC),
		logger,
		visit.WithOffsets(visit.DefaultOffsets(conf.Automation.ReminderTolerance)...),
		visit.WithNoShow(conf.Automation.NoShowDelay, conf.Automation.NoShowTaskDue),
		visit.WithMetrics(metrics),
	)
}
