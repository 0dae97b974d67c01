package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cryptodash/backend-go/internal/config"
	"cryptodash/backend-go/internal/handlers"
	internalhttp "cryptodash/backend-go/internal/http"
	"cryptodash/backend-go/internal/logger"
	"cryptodash/backend-go/internal/models"
	"cryptodash/backend-go/internal/render"
	"cryptodash/backend-go/internal/services"
)

var (
	version = "dev"
	commit  = "none"
)

var defaultEnvFiles = []string{
	".env",
	".env.local",
	"backend-go/.env",
	"backend-go/.env.local",
}

type rootFlags struct {
	port    string
	envFile string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:          "cryptodash",
		Short:        "Crypto market dashboard backed by CoinMarketCap",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			loadEnv(flags.envFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), flags)
		},
	}
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", "", "additional .env file to load before the defaults")
	root.Flags().StringVar(&flags.port, "port", "", "listen port (overrides PORT)")

	root.AddCommand(newNewsCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cryptodash %s (commit: %s)\n", version, commit)
		},
	}
}

func newNewsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "news",
		Short: "Print today's news items",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			log, err := logger.New(cfg.LogLevel, cfg.LogDev)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			src, err := services.NewNewsSource(cfg, services.NewCMCClient(cfg, log))
			if err != nil {
				return err
			}
			svc := services.NewNewsService(cfg, src, log)
			res, err := svc.Today(cmd.Context())
			if err != nil {
				return err
			}
			printNews(cmd.OutOrStdout(), res.Epoch, res.Stale, res.Value)
			return nil
		},
	}
}

func printNews(w io.Writer, epoch string, stale bool, items []models.NewsItem) {
	header := "News for " + epoch
	if stale {
		header += " (stale)"
	}
	fmt.Fprintln(w, header)
	for i, it := range items {
		fmt.Fprintf(w, "%2d. %s\n", i+1, it.Title)
		if it.Source != "" || it.PublishedDate != "" {
			fmt.Fprintf(w, "    %s %s\n", it.PublishedDate, it.Source)
		}
		if it.URL != "" {
			fmt.Fprintf(w, "    %s\n", it.URL)
		}
	}
}

func loadEnv(extra string) {
	files := defaultEnvFiles
	if extra != "" {
		files = append([]string{extra}, defaultEnvFiles...)
	}
	// godotenv stops at the first missing file, so load them one by one.
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

func serve(ctx context.Context, flags *rootFlags) error {
	cfg := config.Load()
	if flags.port != "" {
		cfg.Port = flags.port
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	cache := services.NewCache(cfg, log)
	if closer, ok := cache.(io.Closer); ok {
		defer closer.Close()
	}
	cmc := services.NewCMCClient(cfg, log)
	market := services.NewMarketService(cfg, cache, cmc, log)
	src, err := services.NewNewsSource(cfg, cmc)
	if err != nil {
		return err
	}
	news := services.NewNewsService(cfg, src, log)
	pages, err := render.New()
	if err != nil {
		return err
	}
	api := handlers.New(cfg, market, news, cmc, pages, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           internalhttp.NewRouter(cfg, log, api),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if !cfg.HasAPIKey() {
		log.Warn("CMC_API_KEY is not set, market pages will show an error")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("cryptodash listening",
			zap.String("addr", srv.Addr),
			zap.String("cache", cache.Backend()),
			zap.String("news_source", src.Name()),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
