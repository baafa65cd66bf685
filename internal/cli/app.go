package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/idilsaglam/itemwatch/internal/cloud"
	"github.com/idilsaglam/itemwatch/internal/cloud/httpdb"
	"github.com/idilsaglam/itemwatch/internal/config"
	"github.com/idilsaglam/itemwatch/internal/fetcher"
	"github.com/idilsaglam/itemwatch/internal/logging"
	"github.com/idilsaglam/itemwatch/internal/tracing"
	"github.com/idilsaglam/itemwatch/internal/tui"
	"github.com/idilsaglam/itemwatch/internal/ui"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	opt     *Options
	v       *viper.Viper
	cfgFile string
	demo    bool
	cfg     *config.Config
}

func newApp(opt *Options) *app {
	return &app{opt: opt, v: config.New()}
}

func (a *app) bindRootFlags(root *cobra.Command) {
	f := root.PersistentFlags()
	f.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.itemwatch/config.yaml)")
	f.BoolVar(&a.demo, "demo", false, "use built-in sample records instead of the record service")
	f.String("endpoint", "", "record service URL")
	f.String("container", "", "container identifier")
	f.String("environment", "", "container environment: development or production")
	f.String("database", "", "database to query: public or private")
	f.String("theme", "", "plain output theme: classic, neon or mono")
	f.String("color", "", "color output: auto, always or never")
	f.String("log-level", "", "log level: debug, info, warn or error")
	f.Duration("timeout", 0, "request timeout, 0 for none")

	a.bind(root, map[string]string{
		"endpoint":        "endpoint",
		"container":       "container",
		"environment":     "environment",
		"database":        "database",
		"theme":           "theme",
		"color":           "color",
		"log.level":       "log-level",
		"request_timeout": "timeout",
	})
}

// bind maps config keys to flags of cmd so a flag given on the command line
// wins over file and environment. It panics on a flag cmd does not define.
func (a *app) bind(cmd *cobra.Command, keys map[string]string) {
	for key, name := range keys {
		flag := cmd.PersistentFlags().Lookup(name)
		if flag == nil {
			flag = cmd.Flags().Lookup(name)
		}
		if flag == nil {
			panic(fmt.Sprintf("cli: %s has no flag %q for config key %q", cmd.Name(), name, key))
		}
		if err := a.v.BindPFlag(key, flag); err != nil {
			panic(fmt.Sprintf("cli: bind %q to --%s: %v", key, name, err))
		}
	}
}

// load resolves the configuration. Called once per invocation.
func (a *app) load() error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	ui.SetTheme(cfg.Theme)
	return ui.SetColorMode(cfg.Color)
}

// database returns the record database to query: the injected one, the demo
// records, or the configured record service.
func (a *app) database() cloud.Database {
	switch {
	case a.opt.Database != nil:
		return a.opt.Database
	case a.demo:
		return demoDatabase()
	}
	c := httpdb.NewContainer(httpdb.Options{
		Endpoint:    a.cfg.Endpoint,
		Container:   a.cfg.Container,
		Environment: a.cfg.Environment,
		APIToken:    a.cfg.APIToken,
		HTTPClient:  &http.Client{Timeout: a.cfg.RequestTimeout},
	})
	return c.Database(cloud.Scope(a.cfg.Database))
}

// clientLogger logs to the configured file, or to ~/.itemwatch/itemwatch.log
// so log lines never land on the terminal the client draws on.
func (a *app) clientLogger() (*slog.Logger, io.Closer, error) {
	fallback := ""
	if home, err := os.UserHomeDir(); err == nil {
		fallback = filepath.Join(home, config.Dir, "itemwatch.log")
	}
	return logging.Open(a.cfg.Log, fallback)
}

func (a *app) tracing(ctx context.Context) (*tracing.Provider, error) {
	return tracing.Init(ctx, tracing.Config{
		ServiceName: "itemwatch",
		Endpoint:    a.cfg.Tracing.Endpoint,
		Enabled:     a.cfg.Tracing.Enabled,
	})
}

func (a *app) watch(ctx context.Context) error {
	log, closer, err := a.clientLogger()
	if err != nil {
		return err
	}
	defer closer.Close()

	tp, err := a.tracing(ctx)
	if err != nil {
		return err
	}
	defer tp.Shutdown(context.Background())

	f := fetcher.New(a.database(), fetcher.WithLogger(log))
	log.Info("watch started", "endpoint", a.cfg.Endpoint, "database", a.cfg.Database, "demo", a.demo)
	if err := tui.Run(ctx, f, tui.WithLogger(log), tui.WithTitle(listTitle)); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	return nil
}
