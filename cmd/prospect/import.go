package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prospect-mining/prospect/internal/backfill"
	"github.com/prospect-mining/prospect/internal/db"
	"github.com/prospect-mining/prospect/internal/session"
	"github.com/prospect-mining/prospect/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import <journal-file>...",
	Short: "Replay historical journal files into the session archive",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := db.Open(cfg.DbPath)
		if err != nil {
			return err
		}
		defer conn.Close()
		st := store.New(conn)
		sessCfg := session.Config{
			TrackedMaterials:     cfg.TrackedMaterials,
			AnnounceThresholdPct: cfg.AnnounceThresholdPct,
		}

		for _, path := range args {
			res, err := backfill.Run(conn, st, sessCfg, path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			switch {
			case res.Imported:
				fmt.Printf("%s: imported session %s (%d events, %d lines skipped)\n",
					path, res.SessionID, res.Events, res.Skipped)
			case res.Events > 0:
				fmt.Printf("%s: no mining activity, skipped\n", path)
			default:
				fmt.Printf("%s: already imported or empty\n", path)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
