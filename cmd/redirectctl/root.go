package main

import (
	"fmt"
	"os"

	"github.com/sifan077/redirector/config"
	"github.com/sifan077/redirector/internal/app/nginx"
	"github.com/sifan077/redirector/internal/app/redirect"
	"github.com/sifan077/redirector/internal/app/reload"
	"github.com/sifan077/redirector/internal/app/repository"
	"github.com/sifan077/redirector/internal/app/service"
	"github.com/sifan077/redirector/internal/infra/logger"
	infraPostgres "github.com/sifan077/redirector/internal/infra/postgres"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	verbose    bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "redirectctl",
	Short: "Operate the expired-domain redirect engine",
	Long: `redirectctl talks to the redirect store directly. It can dry-run redirect
decisions, regenerate the proxy configuration and manage domain policies
without the admin API being up.

Configuration is read the same way the server reads it: config/config.yaml,
.env and environment variables.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log engine activity to stderr")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
}

// app is the engine wired against the configured store.
type app struct {
	cfg       *config.Config
	log       *zap.Logger
	db        *gorm.DB
	engine    service.RedirectService
	domains   service.DomainService
	backlinks service.BacklinkService
	closers   []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
	_ = logger.Sync()
}

func openApp() (*app, error) {
	logCfg := logger.ConfigFromEnv("redirectctl")
	if !verbose {
		logCfg.Level = "error"
	}
	log, err := logger.Init(logCfg)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	db, err := infraPostgres.NewGorm(cfg.Postgres)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, db: db}
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}

	reloader, closer, err := reload.FromConfig(cfg.Reload, log.Named("reload"))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closer.Close)

	patterns := redirect.NewPatternCache(0)
	domainRepo := repository.NewDomainRepository(db)
	backlinkRepo := repository.NewBacklinkRepository(db)
	ruleRepo := repository.NewRuleRepository(db)

	engine, err := service.NewRedirectService(service.RedirectDeps{
		Logger:    log.Named("engine"),
		Domains:   domainRepo,
		Backlinks: backlinkRepo,
		Rules:     ruleRepo,
		Snapshot:  repository.NewSnapshotReader(db),
		Emitter: nginx.NewEmitter(nginx.Config{
			Dir:      cfg.Nginx.ConfigDir,
			Suffix:   cfg.Nginx.FileSuffix,
			Listen:   cfg.Nginx.Listen,
			Logger:   log.Named("nginx"),
			Patterns: patterns,
		}),
		Reloader: reload.NewCoordinator(reload.CoordinatorConfig{
			Reloader: reloader,
			Timeout:  cfg.Reload.Timeout,
			Logger:   log.Named("reload"),
		}),
		Patterns: patterns,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.engine = engine
	a.domains = service.NewDomainService(domainRepo, engine, log.Named("domains"))
	a.backlinks = service.NewBacklinkService(backlinkRepo, domainRepo, engine, log.Named("backlinks"))
	return a, nil
}
