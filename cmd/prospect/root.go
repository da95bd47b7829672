package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/prospect-mining/prospect/internal/config"
)

// cfg is populated once in PersistentPreRunE.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "prospect",
	Short: "Mining session tracker for journal-writing spaceflight games",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return err
		}
		cfg = c
		return nil
	},
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "prospect: %v\n", err)
		os.Exit(1)
	}
}

func pidFile() string {
	return filepath.Join(filepath.Dir(cfg.DbPath), "prospectd.pid")
}

func daemonRunning() bool {
	b, err := os.ReadFile(pidFile())
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || pid <= 0 {
		return false
	}
	// Signal 0 checks process existence.
	return syscall.Kill(pid, 0) == nil
}
