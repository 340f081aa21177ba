package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/prospector/config"
	"github.com/mohammad-safakhou/prospector/internal/agent/core"
	"github.com/mohammad-safakhou/prospector/internal/browser"
	"github.com/mohammad-safakhou/prospector/internal/scheduler"
	"github.com/mohammad-safakhou/prospector/internal/server"
	"github.com/mohammad-safakhou/prospector/provider"
	"github.com/mohammad-safakhou/prospector/tools/web_search"
)

func serveCMD() *cobra.Command {
	var cfgPath string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the research API server and workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}
	serve.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	return serve
}

func run(cfg *config.Config) error {
	logger := log.New(log.Writer(), "[PROSPECTOR] ", log.LstdFlags)

	llm, err := provider.NewProvider(cfg.LLM)
	if err != nil {
		return fmt.Errorf("llm provider: %w", err)
	}
	searcher, err := web_search.NewWebSearcher(web_search.Provider(cfg.Search.Provider), cfg.Search.APIKey)
	if err != nil {
		return fmt.Errorf("search provider: %w", err)
	}
	cache, err := scheduler.NewResultCache(cfg.Cache)
	if err != nil {
		return fmt.Errorf("result cache: %w", err)
	}
	defer cache.Close()

	orch := core.NewOrchestrator(cfg, llm, searcher, nil)

	// One browsing session per attempt, owned by the run and torn down
	// on every exit path.
	runner := scheduler.RunnerFunc(func(ctx context.Context, profile core.Profile, progress core.ProgressFunc) (core.Report, error) {
		session, err := browser.NewSession(ctx, cfg.Browser, llm, nil)
		if err != nil {
			return core.Report{}, fmt.Errorf("browser session: %w", err)
		}
		defer session.Close()
		return orch.Run(ctx, profile, session, progress)
	})

	sched := scheduler.NewScheduler(cfg.Scheduler, cache, runner, nil)
	if err := sched.Start(context.Background()); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	srv := server.New(cfg.Server, sched)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		sched.Stop()
		return err
	case s := <-sig:
		logger.Printf("received %s, shutting down", s)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("http shutdown: %v", err)
	}
	sched.Stop()
	return nil
}
