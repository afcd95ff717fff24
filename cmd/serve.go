package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mossy-p/consult-signaling/config"
	"github.com/mossy-p/consult-signaling/internal/auth"
	"github.com/mossy-p/consult-signaling/internal/handlers"
	"github.com/mossy-p/consult-signaling/internal/logging"
	"github.com/mossy-p/consult-signaling/internal/relay"
	"github.com/mossy-p/consult-signaling/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the WebSocket relay",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	rdb, err := store.Connect(connectCtx, cfg.Redis)
	cancel()
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer rdb.Close()
	logger.Info("redis connection established", zap.String("addr", cfg.Redis.Host+":"+cfg.Redis.Port))

	consultations := store.NewConsultations(rdb)
	tokens := auth.NewTokens(cfg.JWT.Secret, cfg.JWT.TTL)
	hub := relay.NewHub(consultations, tokens, relay.Options{
		SendBuffer:     cfg.Relay.SendBuffer,
		MaxMessageSize: cfg.Relay.MaxMessageSize,
		PingInterval:   cfg.Relay.PingInterval,
		JoinTimeout:    cfg.Relay.JoinTimeout,
		ChatMaxLength:  cfg.Relay.ChatMaxLength,
	}, logger.Named("relay"))

	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(handlers.RouterDeps{
		AllowedOrigins: cfg.AllowedOrigins,
		DevLogin:       !cfg.IsProduction(),
		Tokens:         tokens,
		Consultations:  handlers.NewConsultationHandler(consultations, hub, cfg.Relay.ChatMaxLength, logger.Named("api")),
		Signaling:      handlers.NewSignalingHandler(hub, tokens, logger.Named("ws")),
		Stats:          hub,
		Log:            logger.Named("http"),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting signaling server",
			zap.String("addr", srv.Addr),
			zap.String("environment", cfg.Environment),
			zap.Bool("dev_login", !cfg.IsProduction()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		stop()
		<-hubDone
		return fmt.Errorf("http: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	<-hubDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
