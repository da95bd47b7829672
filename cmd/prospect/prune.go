package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prospect-mining/prospect/internal/db"
	"github.com/prospect-mining/prospect/internal/retention"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old sessions and enforce the blob disk cap",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := db.Open(cfg.DbPath)
		if err != nil {
			return err
		}
		defer conn.Close()

		sessions, err := retention.PruneSessions(conn, cfg.RetentionMonths)
		if err != nil {
			return err
		}
		blobs, err := retention.PruneBlobs(conn, cfg.BlobDir, cfg.BlobDiskCapGB)
		if err != nil {
			return err
		}
		fmt.Printf("pruned %d session(s), %d blob(s)\n", sessions, blobs)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pruneCmd)
}
