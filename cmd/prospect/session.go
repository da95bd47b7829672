package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/prospect-mining/prospect/internal/control"
	"github.com/prospect-mining/prospect/internal/monitor"
	"github.com/prospect-mining/prospect/internal/session"
)

// sendCommand queues a session command for the daemon. The daemon
// consumes it on its next cycle; commands do not wait for completion.
func sendCommand(cmd string) error {
	if !daemonRunning() {
		return fmt.Errorf("prospectd is not running; start it first")
	}
	if err := control.Write(cfg.ControlDir, "session", cmd); err != nil {
		return err
	}
	fmt.Printf("%s requested\n", cmd)
	return nil
}

func sessionCommand(use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendCommand(use)
		},
	}
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon health and the live session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		daemon := "not running"
		if daemonRunning() {
			daemon = "running"
		}
		fmt.Printf("daemon:   %s\n", daemon)

		v, ok, err := control.Read(cfg.ControlDir, "health")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("no health report yet")
			return nil
		}
		var h monitor.Health
		if err := json.Unmarshal([]byte(v), &h); err != nil {
			return fmt.Errorf("parse health report: %w", err)
		}
		fmt.Printf("session:  %s\n", h.State)
		if h.SessionID != "" {
			fmt.Printf("id:       %s\n", h.SessionID)
		}
		if h.Ship != "" {
			fmt.Printf("ship:     %s\n", h.Ship)
		}
		fmt.Printf("journal:  %s @ %d\n", h.File, h.Offset)
		if h.Skipped > 0 {
			fmt.Printf("skipped:  %d unparsable lines\n", h.Skipped)
		}
		if h.LastErr != "" {
			fmt.Printf("error:    %s\n", h.LastErr)
		}

		sv, ok, err := control.Read(cfg.ControlDir, "status")
		if err != nil || !ok {
			return err
		}
		var view session.View
		if err := json.Unmarshal([]byte(sv), &view); err != nil {
			return nil
		}
		if view.State == session.StateActive || view.State == session.StatePaused {
			fmt.Printf("active:   %s\n", view.ActiveDuration.Round(time.Second))
			if view.Capacity > 0 {
				approx := ""
				if view.CapacityApprox {
					approx = " (approx)"
				}
				fmt.Printf("hold:     %.0f%% of %dt%s\n", view.HoldFillPct, view.Capacity, approx)
			}
			for _, s := range view.Stats {
				fmt.Printf("  %-24s %.1ft  %.1f t/hr\n", s.Material, s.Tons, s.TonsPerHour)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(
		sessionCommand("start", "Begin a new mining session"),
		sessionCommand("stop", "Finalize the session and archive its report"),
		sessionCommand("pause", "Freeze session timing"),
		sessionCommand("resume", "Resume a paused session"),
		sessionCommand("cancel", "Discard the session without archiving"),
		statusCmd,
	)
}
