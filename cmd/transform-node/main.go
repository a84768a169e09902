package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ilyakaznacheev/cleanenv"

	"github.com/tendant/simple-transform/pkg/simpletransform/api"
	"github.com/tendant/simple-transform/pkg/simpletransform/bus"
	"github.com/tendant/simple-transform/pkg/simpletransform/config"
)

// Config is the process environment configuration
type Config struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"`
	QueueDepth  int    `env:"QUEUE_DEPTH" env-default:"64"`
}

const (
	requestQueue = "transformation-requests"
	replyQueue   = "transformation-replies"
)

func main() {
	var env Config
	if err := cleanenv.ReadEnv(&env); err != nil {
		slog.Error("Failed to read environment", "error", err)
		os.Exit(1)
	}

	logger := newLogger(env.Environment)
	slog.SetDefault(logger)

	nodeConfig, err := config.Load(
		config.WithEnvironment(env.Environment),
		config.WithEnv(""),
	)
	if err != nil {
		logger.Error("Failed to load node configuration", "error", err)
		os.Exit(1)
	}

	messageBus := bus.New(bus.WithQueueDepth(env.QueueDepth), bus.WithLogger(logger))

	node, err := nodeConfig.BuildNode(messageBus.Producer(replyQueue), logger)
	if err != nil {
		logger.Error("Failed to build transformation node", "error", err)
		os.Exit(1)
	}

	replyLog := api.NewReplyLog(0)

	requestDispatch := bus.NewDispatcher()
	requestDispatch.Register(bus.KindTransformationRequest, node.HandleMessage)

	replyDispatch := bus.NewDispatcher()
	replyDispatch.Register(bus.KindTransformationReply, replyLog.Record)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := messageBus.Consume(ctx, requestQueue, requestDispatch); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Request consumer stopped", "error", err)
		}
	}()
	go func() {
		if err := messageBus.Consume(ctx, replyQueue, replyDispatch); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Reply consumer stopped", "error", err)
		}
	}()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Mount("/transformations", api.NewTransformHandler(messageBus.Producer(requestQueue), replyLog).Routes())

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", env.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Transformation node starting",
			"port", env.Port,
			"environment", env.Environment,
			"worker", nodeConfig.Worker,
			"storage", nodeConfig.Storage.Type)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
}

func newLogger(environment string) *slog.Logger {
	level := slog.LevelInfo
	if environment == "development" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
