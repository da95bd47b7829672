package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/prospect-mining/prospect/internal/db"
	"github.com/prospect-mining/prospect/internal/export"
	"github.com/prospect-mining/prospect/internal/store"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Export an archived session as markdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := db.Open(cfg.DbPath)
		if err != nil {
			return err
		}
		defer conn.Close()

		exp, err := export.Load(store.New(conn), cfg.BlobDir, args[0])
		if err != nil {
			return fmt.Errorf("session %s: %w", args[0], err)
		}
		md := export.Markdown(exp)
		if exportOut == "" || exportOut == "-" {
			fmt.Print(md)
			return nil
		}
		return os.WriteFile(exportOut, []byte(md), 0o644)
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "write to file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}
