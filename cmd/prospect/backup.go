package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/prospect-mining/prospect/internal/backup"
	"github.com/prospect-mining/prospect/internal/config"
	"github.com/prospect-mining/prospect/internal/db"
	"github.com/prospect-mining/prospect/internal/store"
)

var (
	backupVault string
	backupNode  string
)

// backupStore builds the configured backend, wrapped with retries.
func backupStore(ctx context.Context, bc config.Backup) (backup.Store, error) {
	switch bc.Backend {
	case "folder":
		if bc.FolderRoot == "" {
			return nil, fmt.Errorf("backup.folder_root is not set")
		}
		return backup.NewRetryableStore(backup.NewFolderStore(bc.FolderRoot), backup.DefaultRetryConfig()), nil
	case "s3":
		s3, err := backup.NewS3Store(ctx, backup.S3Config{
			Bucket:    bc.S3.Bucket,
			Prefix:    bc.S3.Prefix,
			Region:    bc.S3.Region,
			Endpoint:  bc.S3.Endpoint,
			PathStyle: bc.S3.PathStyle,
			AccessKey: bc.S3.AccessKey,
			SecretKey: bc.S3.SecretKey,
		})
		if err != nil {
			return nil, err
		}
		return backup.NewRetryableStore(s3, backup.DefaultRetryConfig()), nil
	case "":
		return nil, fmt.Errorf("no backup backend configured")
	default:
		return nil, fmt.Errorf("unknown backup backend %q", bc.Backend)
	}
}

func masterKey(bc config.Backup) ([]byte, error) {
	if bc.KeyHex == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(bc.KeyHex)
	if err != nil {
		return nil, fmt.Errorf("backup.key_hex: %w", err)
	}
	if len(key) != backup.KeySize {
		return nil, fmt.Errorf("backup.key_hex must be %d bytes", backup.KeySize)
	}
	return key, nil
}

func nodeID() string {
	if backupNode != "" {
		return backupNode
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "node"
	}
	return host
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Publish unpublished sessions to the backup store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bs, err := backupStore(cmd.Context(), cfg.Backup)
		if err != nil {
			return err
		}
		master, err := masterKey(cfg.Backup)
		if err != nil {
			return err
		}
		conn, err := db.Open(cfg.DbPath)
		if err != nil {
			return err
		}
		defer conn.Close()

		res, err := backup.Publish(conn, store.New(conn), cfg.BlobDir, bs,
			backupVault, nodeID(), master, len(master) > 0)
		if err != nil {
			return err
		}
		fmt.Printf("published %d session(s) in %d segment(s), %d blob(s)\n",
			res.SessionsPublished, res.SegmentsPublished, res.BlobsPublished)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Pull sessions from the backup store into the local archive",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bs, err := backupStore(cmd.Context(), cfg.Backup)
		if err != nil {
			return err
		}
		master, err := masterKey(cfg.Backup)
		if err != nil {
			return err
		}
		conn, err := db.Open(cfg.DbPath)
		if err != nil {
			return err
		}
		defer conn.Close()

		res, err := backup.Restore(conn, store.New(conn), cfg.BlobDir, bs, backupVault, master)
		if err != nil {
			return err
		}
		fmt.Printf("restored %d session(s), %d blob(s); %d already present\n",
			res.SessionsRestored, res.BlobsRestored, res.SessionsSkipped)
		if res.Errors > 0 || res.SegmentsInvalid > 0 {
			fmt.Printf("warning: %d error(s), %d invalid segment(s)\n", res.Errors, res.SegmentsInvalid)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{backupCmd, restoreCmd} {
		c.Flags().StringVar(&backupVault, "vault", "default", "vault id in the backup store")
	}
	backupCmd.Flags().StringVar(&backupNode, "node", "", "node id (defaults to hostname)")
	rootCmd.AddCommand(backupCmd, restoreCmd)
}
