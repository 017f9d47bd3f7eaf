package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tokomas/goldpos/internal/config"
	"github.com/tokomas/goldpos/internal/db"
	"github.com/tokomas/goldpos/internal/sync"
)

func newSyncCmd() *cobra.Command {
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Salesforce synchronization",
	}

	syncCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run a full sync now",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, conn, err := buildEngine(cmd)
			if err != nil {
				return err
			}
			defer conn.Close()

			syncCfg, err := sync.LoadConfig(conn)
			if err != nil {
				return err
			}
			if err := engine.Configure(syncCfg); err != nil {
				return err
			}
			result, err := engine.RunFullSync(context.Background())
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	})

	syncCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show sync status",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, conn, err := buildEngine(cmd)
			if err != nil {
				return err
			}
			defer conn.Close()

			status, err := engine.GetStatus()
			if err != nil {
				return err
			}
			return printJSON(status)
		},
	})

	return syncCmd
}

func buildEngine(cmd *cobra.Command) (*sync.Engine, *sql.DB, error) {
	cfg, err := config.Load(cmd)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	setupLogging(cfg.LogLevel)

	conn, err := db.Open(cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}
	return sync.NewEngine(conn, nil), conn, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
