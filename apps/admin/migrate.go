package main

import (
	"github.com/spf13/cobra"
	"github.com/trezcool/goose"

	appfs "github.com/trezcool/admissions/fs"
)

var gooseRunFunc = goose.RunFS // mockable

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run a goose command against the embedded migrations",
		Long: "Commands: up, up-by-one, up-to VERSION, down, down-to VERSION, redo, reset, status, " +
			"version, create NAME [go|sql], fix",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := cli.openDB()
			if err != nil {
				return err
			}
			return gooseRunFunc(args[0], db.DB, appfs.FS, "migrations", args[1:]...)
		},
	}
}
