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

	_ "github.com/osvaldoandrade/nftminter/pkg/auth/hmac"   // Register HS256 JWT auth provider
	_ "github.com/osvaldoandrade/nftminter/pkg/auth/static" // Register static token auth provider (dev/local)
	"github.com/osvaldoandrade/nftminter/pkg/config"

	"github.com/osvaldoandrade/nftminter/pkg/app"

	"github.com/joho/godotenv"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	// a missing .env is the normal case outside local development
	_ = godotenv.Load()

	cfgPath := getenv("NFTMINTER_CONFIG_PATH", "")

	cfg, err := config.LoadConfigOptional(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "[ERROR] load config:", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "[ERROR] invalid config:", err)
		os.Exit(1)
	}

	application, err := app.NewApplication(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "[ERROR] init app:", err)
		os.Exit(1)
	}
	defer application.Close()
	app.SetupMappings(application)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           application.Engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		application.Logger.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintln(os.Stderr, "[ERROR] http server:", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	// in-flight mints may be waiting on a receipt; give them the receipt timeout to finish
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ReceiptTimeoutSeconds)*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)

	if application.TracingShutdown != nil {
		_ = application.TracingShutdown(ctx)
	}
}
