package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"simantu.org/internal/auth"
	"simantu.org/internal/config"
	"simantu.org/internal/httpapi"
	"simantu.org/internal/obs"
	"simantu.org/internal/store/memory"
	"simantu.org/internal/store/pg"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	if err := run(); err != nil {
		obs.Error("fatal", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("SIMANTU_CONFIG"))
	if err != nil {
		return err
	}

	obs.Init()
	obs.InitBuildInfo(version, commit, cfg.Env)

	var (
		store auth.Store
		ready httpapi.ReadinessChecker
	)
	if cfg.Database.DSN != "" {
		pgStore, err := pg.Open(cfg.Database.DSN)
		if err != nil {
			return err
		}
		defer pgStore.Close()
		store, ready = pgStore, pgStore
	} else {
		obs.Warn("no database configured, using in-memory store", nil)
		store = memory.New()
	}

	tokens := auth.NewTokenService(cfg.Auth.JWTSecret)
	if tokens.UsesFallbackSecret() {
		if cfg.Production() {
			return errors.New("SIMANTU_JWT_SECRET must be set in production")
		}
		obs.Warn("token secret not configured, using the built-in fallback", nil)
	}
	svc, err := auth.NewService(store, tokens)
	if err != nil {
		return err
	}

	if admin := cfg.Auth.Admin; admin.Email != "" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		acc, err := svc.EnsureAdmin(ctx, admin.Name, admin.Email, admin.Password)
		cancel()
		if err != nil {
			return err
		}
		obs.Info("administrator account ready", map[string]any{"account_id": acc.ID, "email": acc.Email})
	}

	proxies, err := cfg.HTTP.TrustedProxyPrefixes()
	if err != nil {
		return err
	}

	api := httpapi.New(httpapi.Options{
		Auth:        svc,
		Ready:       ready,
		Version:     version,
		Env:         cfg.Env,
		CORSOrigins: cfg.CORS.Origins,
		RateBurst:   cfg.RateLimit.Burst,
		RatePerSec:  cfg.RateLimit.RPS,

		TrustedProxies: proxies,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 2)
	go func() {
		obs.Info("http listening", map[string]any{"addr": srv.Addr, "version": version})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	var grpcSrv *grpc.Server
	if cfg.GRPC.Addr != "" {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return err
		}
		grpcSrv = grpc.NewServer()
		httpapi.NewGRPCServer(ready).Register(grpcSrv)
		go func() {
			obs.Info("grpc listening", map[string]any{"addr": cfg.GRPC.Addr})
			if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errc <- err
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case <-stop:
		obs.Info("shutting down", nil)
	case err := <-errc:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	obs.Info("stopped", nil)
	return nil
}
