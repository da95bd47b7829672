// prospectd: mining session daemon. Tails the journal, applies events
// to the live session, archives finished sessions into SQLite.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prospect-mining/prospect/internal/announce"
	"github.com/prospect-mining/prospect/internal/config"
	"github.com/prospect-mining/prospect/internal/db"
	"github.com/prospect-mining/prospect/internal/monitor"
	"github.com/prospect-mining/prospect/internal/session"
	"github.com/prospect-mining/prospect/internal/store"
)

func pidPath(cfg *config.Config) string {
	return filepath.Join(filepath.Dir(cfg.DbPath), "prospectd.pid")
}

func writePid(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(fmt.Sprintf("%d", os.Getpid())), 0o644)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatal(err)
	}
	if cfg.JournalDir == "" {
		fatal(errors.New("journal_dir is not configured; set it in config.yaml or PROSPECT_JOURNAL_DIR"))
	}

	conn, err := db.Open(cfg.DbPath)
	if err != nil {
		fatal(err)
	}
	defer conn.Close()

	if err := writePid(pidPath(cfg)); err != nil {
		fatal(fmt.Errorf("cannot write pid file: %w", err))
	}
	defer os.Remove(pidPath(cfg))

	m, err := monitor.New(
		monitor.Config{
			JournalDir:       cfg.JournalDir,
			CargoPath:        cfg.CargoPath,
			StatusPath:       cfg.StatusPath,
			ControlDir:       cfg.ControlDir,
			BlobDir:          cfg.BlobDir,
			PollInterval:     cfg.PollInterval(),
			SidePollInterval: cfg.SidePollInterval(),
		},
		session.Config{
			TrackedMaterials:     cfg.TrackedMaterials,
			AnnounceThresholdPct: cfg.AnnounceThresholdPct,
		},
		announce.NewFileAnnouncer(cfg.ControlDir),
		conn,
		store.New(conn),
	)
	if err != nil {
		fatal(err)
	}
	defer m.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := m.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "prospectd: %v\n", err)
	os.Exit(1)
}
