package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/insight/config"
	"github.com/mohammad-safakhou/insight/internal/reportindex"
	"github.com/mohammad-safakhou/insight/internal/research"
	srv "github.com/mohammad-safakhou/insight/internal/server"
	"github.com/mohammad-safakhou/insight/internal/store"
	"github.com/mohammad-safakhou/insight/internal/telemetry"
)

func researchCMD() *cobra.Command {
	var cfgPath string
	var engine string
	var research = &cobra.Command{
		Use:   "research [query]",
		Short: "Run a research session for a query and write the report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			cfg := config.LoadConfig(cfgPath)

			ctx := context.Background()
			runner, _, cleanup, err := buildRunner(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			id := uuid.NewString()
			sess, err := runner.Run(ctx, engine, id, query)
			if err != nil {
				return err
			}
			fmt.Println(sess.FinalReport)
			return nil
		},
	}
	research.Flags().StringVar(&engine, "engine", "", "research engine (training or web; default training)")
	research.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return research
}

func resumeCMD() *cobra.Command {
	var cfgPath string
	var engine string
	var statePath string
	var resume = &cobra.Command{
		Use:   "resume [session-id]",
		Short: "Resume an interrupted research session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && statePath == "" {
				return fmt.Errorf("a session id or --state file is required")
			}
			cfg := config.LoadConfig(cfgPath)

			ctx := context.Background()
			runner, sessions, cleanup, err := buildRunner(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			var sess *research.Session
			if statePath != "" {
				files, err := store.NewFileStore(cfg.Storage.File)
				if err != nil {
					return err
				}
				s, err := files.ReadState(statePath)
				if err != nil {
					return err
				}
				sess = s
			} else {
				s, err := sessions.GetSession(ctx, args[0])
				if err != nil {
					return err
				}
				sess = s
			}

			if err := runner.Resume(ctx, engine, sess); err != nil {
				return err
			}
			fmt.Println(sess.FinalReport)
			return nil
		},
	}
	resume.Flags().StringVar(&engine, "engine", "", "research engine (training or web; default training)")
	resume.Flags().StringVar(&statePath, "state", "", "resume from a state file instead of the database")
	resume.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return resume
}

func buildRunner(ctx context.Context, cfg *config.Config) (*srv.Runner, *store.SessionStore, func(), error) {
	db, err := store.Open(ctx, cfg.Storage.Postgres)
	if err != nil {
		return nil, nil, nil, err
	}
	cleanup := func() { _ = db.Close() }

	sessions := store.NewSessionStore(db)
	var snapshots *store.SnapshotStore
	if cfg.Storage.Redis.Host != "" {
		rdb, err := store.Connect(ctx, cfg.Storage.Redis)
		if err != nil {
			log.Printf("redis unavailable, continuing without snapshots: %v", err)
		} else {
			snapshots = store.NewSnapshotStore(rdb, cfg.Storage.Redis)
		}
	}
	files, err := store.NewFileStore(cfg.Storage.File)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	index, err := reportindex.New()
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	runner := srv.BuildRunner(cfg, db, sessions, snapshots, files, index, telemetry.New())
	return runner, sessions, cleanup, nil
}
