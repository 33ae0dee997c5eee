// Copyright (C) 2025 ConvoGuard (engineering@convoguard.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ConvoGuardAI/ConvoGuard/pkg/escalation"
	"github.com/ConvoGuardAI/ConvoGuard/pkg/logging"
	"github.com/ConvoGuardAI/ConvoGuard/pkg/model"
	"github.com/ConvoGuardAI/ConvoGuard/pkg/triage"
	"github.com/ConvoGuardAI/ConvoGuard/services/inference/handlers"
	"github.com/ConvoGuardAI/ConvoGuard/services/inference/middleware"
	"github.com/ConvoGuardAI/ConvoGuard/services/inference/observability"
	"github.com/ConvoGuardAI/ConvoGuard/services/inference/routes"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "convoguard-otel-collector:4317"
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
		resource.WithAttributes(semconv.ServiceNameKey.String("inference-service")))
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

// loadProfile resolves TIER_PROFILE, which is either a built-in
// profile name or a path to a YAML file.
func loadProfile() (triage.Profile, error) {
	name := os.Getenv("TIER_PROFILE")
	if name == "" {
		return triage.ServingProfile(), nil
	}
	if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
		return triage.LoadProfile(name)
	}
	return triage.ProfileByName(name)
}

func modelConfig() model.Config {
	cfg := model.Config{
		Candidates: []string{"./models/onnx", "/app/models/onnx"},
	}
	if dirs := os.Getenv("MODEL_CANDIDATE_DIRS"); dirs != "" {
		cfg.Candidates = strings.Split(dirs, ",")
		for i := range cfg.Candidates {
			cfg.Candidates[i] = strings.TrimSpace(cfg.Candidates[i])
		}
	}
	if ms := os.Getenv("INFERENCE_TIMEOUT_MS"); ms != "" {
		v, err := strconv.Atoi(ms)
		if err != nil || v <= 0 {
			slog.Warn("invalid INFERENCE_TIMEOUT_MS, using the default", "value", ms)
		} else {
			cfg.Timeout = time.Duration(v) * time.Millisecond
		}
	}
	return cfg
}

func main() {
	port := os.Getenv("INFERENCE_PORT")
	if port == "" {
		port = "8000"
	}

	logger, err := logging.SetupDefault(logging.Config{
		Level:   os.Getenv("LOG_LEVEL"),
		Service: "inference",
		Writer:  os.Stdout,
	})
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logger.Close()

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	metrics := observability.InitMetrics()

	profile, err := loadProfile()
	if err != nil {
		log.Fatalf("FATAL: could not load the tier profile: %v", err)
	}
	classifier, err := triage.NewPatternClassifier(profile)
	if err != nil {
		log.Fatalf("FATAL: could not build the pattern classifier: %v", err)
	}
	router := triage.NewConfidenceRouter(classifier)
	slog.Info("pattern classifier ready", "profile", classifier.ProfileName())

	// The capability probe runs exactly once, before the first request.
	cfg := modelConfig()
	var factory model.Factory
	sidecarURL := strings.Trim(os.Getenv("MODEL_SIDECAR_URL"), "\"' ")
	if sidecarURL != "" {
		factory = model.SidecarFactory(sidecarURL)
	} else {
		slog.Info("MODEL_SIDECAR_URL not set, running rules-only")
	}
	chain := model.NewChain(model.Probe(cfg, factory), router, cfg)
	metrics.SetModelLoaded(chain.ModelLoaded())
	slog.Info("fallback chain initialized", "state", chain.State().String())

	var escalator handlers.Escalator
	if os.Getenv("OPENAI_API_KEY") != "" {
		client, err := escalation.NewClassifier()
		if err != nil {
			log.Fatalf("FATAL: could not configure the escalation classifier: %v", err)
		}
		escalator = client
		slog.Info("escalation classifier configured", "model", client.Name())
	} else {
		slog.Info("OPENAI_API_KEY not set, low-confidence verdicts are served without escalation")
	}

	engine := gin.Default()
	engine.Use(otelgin.Middleware("inference-service"))
	engine.Use(middleware.RequestID())

	routes.SetupRoutes(engine, chain, escalator, metrics)

	log.Println("Starting the inference server on port ", port)
	if err := engine.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
