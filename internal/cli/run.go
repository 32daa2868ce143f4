package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/forPelevin/hlscene/internal/config"
	"github.com/forPelevin/hlscene/internal/jobs"
	"github.com/forPelevin/hlscene/internal/logging"
	"github.com/forPelevin/hlscene/internal/pipeline"
	"github.com/forPelevin/hlscene/internal/server"
	"github.com/forPelevin/hlscene/internal/service"
	"github.com/forPelevin/hlscene/internal/storage"
	"github.com/forPelevin/hlscene/internal/worker"
)

func setup(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonLogs, _ := cmd.Flags().GetBool("json-logs")
	logFile, _ := cmd.Flags().GetString("log-file")

	var extra []io.Writer
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, logging.New(verbose, jsonLogs), fmt.Errorf("log file: %w", err)
		}
		extra = append(extra, f)
	}
	log := logging.New(verbose, jsonLogs, extra...)

	cfg, err := config.Load(path)
	if err != nil {
		return nil, log, fmt.Errorf("config: %w", err)
	}
	return cfg, log, nil
}

func runCut(cmd *cobra.Command, input string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	applySelectionFlags(cmd, cfg)
	outDir, _ := cmd.Flags().GetString("out")

	absIn, err := filepath.Abs(input)
	if err != nil {
		return err
	}

	pcfg := pipeline.Config{
		InputVideo: absIn,
		OutDir:     outDir,
		App:        cfg,
		Log:        logging.WithComponent(log, "cut"),
	}
	if err := pcfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 3*time.Hour)
	defer cancel()

	res, err := pipeline.Run(ctx, pcfg)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Dir)
	return nil
}

// applySelectionFlags lets explicitly set flags win over file and env values.
func applySelectionFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("clips") {
		cfg.Selection.Clips, _ = f.GetInt("clips")
	}
	if f.Changed("min") {
		cfg.Selection.Min, _ = f.GetFloat64("min")
	}
	if f.Changed("max") {
		cfg.Selection.Max, _ = f.GetFloat64("max")
	}
	if f.Changed("overlap") {
		cfg.Selection.Overlap, _ = f.GetString("overlap")
	}
}

func runServe(cmd *cobra.Command) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	uc, err := pipeline.NewUsecase(cfg, log)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	st, err := storage.NewLocalStorage(cfg.Paths.Upload, cfg.Paths.Results)
	if err != nil {
		return err
	}
	runner := worker.New(worker.Config{
		QueueSize:   cfg.Worker.QueueSize,
		Concurrency: cfg.Worker.Concurrency,
	}, logging.WithComponent(log, "worker"))
	defer runner.Close()

	svc := service.New(service.Deps{
		Store:     jobs.NewMemoryStore(),
		Runner:    runner,
		Storage:   st,
		Processor: uc,
		CacheDir:  cfg.Paths.Cache,
		Log:       logging.WithComponent(log, "service"),
	})
	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: server.NewRouter(&server.App{
			Service:       svc,
			Defaults:      cfg.Selection,
			MaxUploadSize: cfg.Server.MaxUploadBytes,
			Log:           logging.WithComponent(log, "http"),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// runConfigInit writes the effective configuration (defaults, config file
// and env overrides) so it can be edited.
func runConfigInit(cmd *cobra.Command, path string) error {
	cfg, _, err := setup(cmd)
	if err != nil {
		return err
	}
	if force, _ := cmd.Flags().GetBool("force"); !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfg.Save(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
