package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	_ "github.com/joho/godotenv/autoload"
	glog "github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mythforge/pkg/auth"
	"mythforge/pkg/config"
	"mythforge/pkg/metrics"
	"mythforge/pkg/oracle"
	"mythforge/pkg/server"
	"mythforge/pkg/store"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "mythforge",
	Short:         "Turn life events into Greek myths",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (default)",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("MYTHFORGE_CONFIG"), "YAML config file")
	rootCmd.AddCommand(serveCmd, migrateCmd, forgeCmd, vocabularyCmd)
}

func main() {
	ctx, done := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer done()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

// loadConfig reads the config and applies the log level to both loggers.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	lvl, _ := cfg.LogLevel()
	log.SetLevel(lvl)
	return cfg, nil
}

// echoLevel maps the configured level onto echo's gommon logger.
func echoLevel(lvl log.Level) glog.Lvl {
	switch {
	case lvl <= log.DebugLevel:
		return glog.DEBUG
	case lvl == log.InfoLevel:
		return glog.INFO
	case lvl == log.WarnLevel:
		return glog.WARN
	}
	return glog.ERROR
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == config.DefaultJWTSecret {
		log.Warn("JWT_SECRET not set, using the development secret")
	}

	st, err := store.Open(ctx, cfg.Database.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	gen, err := newGenerator(ctx, cfg.Generation)
	if err != nil {
		return err
	}

	verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	o := oracle.New(gen, st, oracleOptions(cfg, metrics.NewPipeline(reg))...)
	srv := server.NewServer(o, st, verifier, server.Options{
		AllowOrigins: cfg.Server.AllowOrigins,
		Gatherer:     reg,
	})
	lvl, _ := cfg.LogLevel()
	srv.Echo.Logger.SetLevel(echoLevel(lvl))

	log.Info("oracle ready", "provider", cfg.Generation.Provider, "model", cfg.Generation.Model, "database", cfg.Database.Path)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func oracleOptions(cfg *config.Config, m *metrics.Pipeline) []oracle.Option {
	opts := []oracle.Option{oracle.WithMetrics(m), oracle.WithLogger(log.Default())}
	if t := cfg.Generation.Temperature; t != nil {
		opts = append(opts, oracle.WithTemperature(*t))
	}
	return opts
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := store.Open(cmd.Context(), cfg.Database.Path)
		if err != nil {
			return err
		}
		defer st.Close()
		fmt.Fprintf(cmd.OutOrStdout(), "%s is at schema v%d\n", cfg.Database.Path, store.CurrentSchemaVersion)
		return nil
	},
}
