package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/idilsaglam/itemwatch/internal/logging"
	"github.com/idilsaglam/itemwatch/internal/recordstore"
	"github.com/idilsaglam/itemwatch/internal/server"
	"github.com/idilsaglam/itemwatch/internal/tracing"
	"github.com/idilsaglam/itemwatch/internal/ui"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the record service",
		Long: `serve answers records/query requests from a record store.

Records are kept in memory, SQLite or PostgreSQL and can be seeded from a
JSON or YAML fixture file.`,
		Example: `  itemwatch serve --fixtures examples/items.yaml
  itemwatch serve --driver sqlite --dsn items.db --rate-limit 5`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
	f := cmd.Flags()
	f.String("listen", "", "listen address")
	f.String("driver", "", "record store: memory, sqlite or postgres")
	f.String("dsn", "", "store data source name")
	f.String("fixtures", "", "JSON or YAML file of records to load at startup")
	f.Float64("rate-limit", 0, "requests per second per client, 0 for unlimited")
	f.Int("burst", 0, "rate limit burst")
	f.Bool("trust-proxy", false, "rate limit on X-Forwarded-For; only behind a proxy that sets it")
	f.Bool("tracing", false, "export OpenTelemetry traces")
	a.bind(cmd, map[string]string{
		"server.listen":      "listen",
		"server.driver":      "driver",
		"server.dsn":         "dsn",
		"server.fixtures":    "fixtures",
		"server.rate_limit":  "rate-limit",
		"server.burst":       "burst",
		"server.trust_proxy": "trust-proxy",
		"tracing.enabled":    "tracing",
	})
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	log, closer, err := logging.Open(cfg.Log, "")
	if err != nil {
		return err
	}
	defer closer.Close()

	store, err := recordstore.Open(cfg.Server.Driver, cfg.Server.DSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	if cfg.Server.Fixtures != "" {
		recs, err := recordstore.LoadFixtures(cfg.Server.Fixtures)
		if err != nil {
			return err
		}
		if err := store.Put(ctx, recs...); err != nil {
			return fmt.Errorf("seed store: %w", err)
		}
		log.Info("fixtures loaded", "path", cfg.Server.Fixtures, "records", len(recs))
	}

	tp, err := a.tracing(ctx)
	if err != nil {
		return err
	}
	defer tp.Shutdown(context.Background())

	var traced *tracing.Provider
	if cfg.Tracing.Enabled {
		traced = tp
	}
	srv := server.New(store, server.Options{
		Logger:     log,
		RateLimit:  cfg.Server.RateLimit,
		Burst:      cfg.Server.Burst,
		TrustProxy: cfg.Server.TrustProxy,
		Tracing:    traced,
	})
	log.Info("serving records", "driver", cfg.Server.Driver, "rate_limit", cfg.Server.RateLimit, "tracing", cfg.Tracing.Enabled)
	if err := srv.Serve(ctx, cfg.Server.Listen); err != nil {
		return err
	}
	ui.OK("record service stopped")
	return nil
}
