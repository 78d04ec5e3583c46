package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"asha-portal/internal/factory"
	"asha-portal/internal/handler"
	"asha-portal/internal/util"
)

func main() {
	f, err := factory.NewFactory()
	if err != nil {
		util.Fatal("Failed to initialize factory", util.ErrorField(err))
	}
	defer f.Close()

	cfg := f.Config()

	authHandler := handler.NewAuthHandler(f.AuthService(), f.TokenManager(), cfg, util.Get())
	router := handler.NewRouter(authHandler, f.RateLimiter(), util.Get())

	serverAddr := cfg.GetServerAddress()
	if cfg.Server.EnableTLS {
		serverAddr = fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.TLSPort)
	}

	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		util.Info("Server starting",
			util.String("environment", cfg.Environment),
			util.Bool("tls_enabled", cfg.Server.EnableTLS),
			util.String("address", server.Addr),
		)

		var err error
		if cfg.Server.EnableTLS {
			err = server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			util.Warn("Starting HTTP server - TLS is disabled",
				util.String("environment", cfg.Environment))
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Background expiry sweep for the in-memory OTP backend. Scylla rows
	// carry their own TTL.
	if otpStore := f.MemoryOTPStore(); otpStore != nil {
		g.Go(func() error {
			otpStore.StartSweeper(gctx, cfg.OTP.SweepInterval)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		util.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			util.Error("Failed to shutdown server gracefully", util.ErrorField(err))
			return err
		}
		util.Info("Server shutdown completed")
		return nil
	})

	if err := g.Wait(); err != nil {
		util.Fatal("Server failed", util.ErrorField(err))
	}
}
