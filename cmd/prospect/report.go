package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/prospect-mining/prospect/internal/db"
	"github.com/prospect-mining/prospect/internal/report"
	"github.com/prospect-mining/prospect/internal/store"
)

var reportJSON bool

var reportCmd = &cobra.Command{
	Use:   "report [session-id]",
	Short: "Show the report for the last (or a given) archived session",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := db.Open(cfg.DbPath)
		if err != nil {
			return err
		}
		defer conn.Close()
		st := store.New(conn)

		var a *store.Archived
		if len(args) == 1 {
			a, err = st.Get(args[0])
		} else {
			a, err = st.Last()
		}
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("no archived sessions")
		}
		if err != nil {
			return err
		}

		// Pipes get JSON so reports compose with other tools.
		if reportJSON || !term.IsTerminal(int(os.Stdout.Fd())) {
			return report.WriteJSON(os.Stdout, a)
		}
		report.RenderSession(os.Stdout, a)
		return nil
	},
}

var sessionsLimit int

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List archived sessions, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := db.Open(cfg.DbPath)
		if err != nil {
			return err
		}
		defer conn.Close()

		list, err := store.New(conn).List(sessionsLimit)
		if err != nil {
			return err
		}
		report.RenderSessionList(os.Stdout, list)
		return nil
	},
}

func init() {
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "emit JSON even on a terminal")
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "n", 20, "maximum sessions to list")
	rootCmd.AddCommand(reportCmd, sessionsCmd)
}
