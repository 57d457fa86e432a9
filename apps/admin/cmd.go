package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/admissions/core/visit"
)

type commandLine struct {
	openDB       func() (*sqlx.DB, error)
	newScheduler func() (*visit.Scheduler, error)
}

func (cli *commandLine) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "admin",
		Short:         "Admissions operator commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(cli.migrateCmd())
	cmd.AddCommand(cli.tickCmd())
	cmd.AddCommand(cli.sweepCmd())
	cmd.AddCommand(cli.remindCmd())
	return cmd
}

func (cli *commandLine) run(args []string) error {
	cmd := cli.rootCmd()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func (cli *commandLine) tickCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run one automation tick now: every reminder window, then the no-show sweep",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sch, err := cli.newScheduler()
			if err != nil {
				return err
			}
			for _, offset := range sch.Offsets() {
				if err := remind(cmd, sch, offset); err != nil {
					return err
				}
			}
			return sweep(cmd, sch)
		},
	}
}

func (cli *commandLine) sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run the no-show sweep now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sch, err := cli.newScheduler()
			if err != nil {
				return err
			}
			return sweep(cmd, sch)
		},
	}
}

func (cli *commandLine) remindCmd() *cobra.Command {
	var label string

	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Run one reminder window now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sch, err := cli.newScheduler()
			if err != nil {
				return err
			}
			labels := make([]string, 0, len(sch.Offsets()))
			for _, offset := range sch.Offsets() {
				if offset.Label == label {
					return remind(cmd, sch, offset)
				}
				labels = append(labels, offset.Label)
			}
			return fmt.Errorf("unknown offset %q (want one of %s)", label, strings.Join(labels, ", "))
		},
	}

	cmd.Flags().StringVarP(&label, "offset", "o", visit.Reminder24h.Label, "reminder window to run")
	return cmd
}

func remind(cmd *cobra.Command, sch *visit.Scheduler, offset visit.ReminderOffset) error {
	rep, err := sch.RunReminders(context.Background(), offset)
	if err != nil {
		return errors.Wrapf(err, "running %s reminders", offset.Label)
	}
	fmt.Fprintln(cmd.OutOrStdout(), rep.String())
	return nil
}

func sweep(cmd *cobra.Command, sch *visit.Scheduler) error {
	rep, err := sch.SweepNoShows(context.Background())
	if err != nil {
		return errors.Wrap(err, "sweeping no-shows")
	}
	fmt.Fprintln(cmd.OutOrStdout(), rep.String())
	return nil
}
