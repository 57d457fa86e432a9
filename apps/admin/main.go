package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/admissions/apps/shared"
	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/visit"
	metricsvc "github.com/trezcool/admissions/services/metrics"
	"github.com/trezcool/admissions/storage/database"
)

func main() {
	conf := core.NewConfig()
	logger := shared.NewLogger(conf, "ADMIN : ")

	var db *sqlx.DB
	openDB := func() (*sqlx.DB, error) {
		if db != nil {
			return db, nil
		}
		var err error
		db, err = database.Open(context.Background(), conf)
		return db, err
	}

	cli := commandLine{
		openDB: openDB,
		newScheduler: func() (*visit.Scheduler, error) {
			db, err := openDB()
			if err != nil {
				return nil, err
			}
			return shared.NewVisitScheduler(conf, db, logger, metricsvc.NewRecorder()), nil
		},
	}

	err := cli.run(os.Args[1:])
	if db != nil {
		_ = db.Close()
	}
	logger.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		os.Exit(1)
	}
}
