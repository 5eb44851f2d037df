// Copyright (C) 2026 LinkForge Labs (eng@linkforge.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/linkforge-seo/linkforge/pkg/logging"
	"github.com/linkforge-seo/linkforge/services/planner/engine"
	"github.com/linkforge-seo/linkforge/services/planner/rewrite"
	"github.com/linkforge-seo/linkforge/services/planner/routes"
	"github.com/linkforge-seo/linkforge/services/planner/storage"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "linkforge-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("planner-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func main() {
	port := os.Getenv("PLANNER_PORT")
	if port == "" {
		port = "12310"
	}

	logger := logging.New(logging.Config{
		Service: "planner",
		LogDir:  os.Getenv("PLANNER_LOG_DIR"),
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	dataDir := os.Getenv("PLANNER_DATA_DIR")
	if dataDir == "" {
		dataDir = "/data/planner"
		slog.Warn("PLANNER_DATA_DIR not set, defaulting", "dir", dataDir)
	}
	store, err := storage.Open(storage.DefaultConfig(dataDir))
	if err != nil {
		log.Fatalf("FATAL: Could not open the planner store: %v", err)
	}
	defer store.Close()

	log.Println("Configuring the rewrite backend")
	var rewriter rewrite.Rewriter
	switch os.Getenv("REWRITE_BACKEND") {
	case "openai":
		rewriter, err = rewrite.NewOpenAIRewriter()
		slog.Info("Using OpenAI rewrite backend")
	case "template", "":
		rewriter = rewrite.NewTemplateRewriter()
		slog.Info("Using template rewrite backend")
	default:
		slog.Warn("REWRITE_BACKEND not recognized, defaulting to template")
		rewriter = rewrite.NewTemplateRewriter()
	}
	if err != nil {
		log.Fatalf("Failed to initialize rewrite backend: %v", err)
	}

	planner := engine.NewPlanner(store, rewriter, engine.Options{
		Logger: logger.Slog(),
	})

	router := gin.Default()
	router.Use(otelgin.Middleware("planner-service"))
	routes.SetupRoutes(router, planner, store)

	srv := &http.Server{Addr: ":" + port, Handler: router}
	go func() {
		log.Println("Starting the planner server on port ", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Block until interrupted, then drain in-flight requests. Planning runs
	// detach from request contexts, so a drain only waits on the HTTP layer;
	// the store close below is what makes Badger shut down cleanly.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutdown signal received, draining")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
}
