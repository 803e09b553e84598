package kaizend

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/autonomiq/kaizen/anomaly"
	"github.com/autonomiq/kaizen/engine"
	"github.com/autonomiq/kaizen/engine/api"
	"github.com/autonomiq/kaizen/engine/middleware"
	"github.com/autonomiq/kaizen/federation"
	"github.com/autonomiq/kaizen/pkg/jaeger"
	"github.com/autonomiq/kaizen/pkg/mqtt"
	"github.com/autonomiq/kaizen/pkg/prometheus"
	"github.com/autonomiq/kaizen/pkg/server"
	httpserver "github.com/autonomiq/kaizen/pkg/server/http"
	"github.com/autonomiq/kaizen/pkg/storage"
	"github.com/autonomiq/kaizen/policy"
	"github.com/autonomiq/kaizen/privacy"
	"github.com/autonomiq/kaizen/remediation"
	"github.com/autonomiq/kaizen/rules"
)

const svcName = "engine"

type Config struct {
	LogLevel    string
	InstanceID  string
	MQTTAddress string
	MQTTQoS     uint8
	MQTTTimeout time.Duration
	Domain      string

	PolicyPath  string
	ActuatorURL string

	RoundQuorum   int
	RoundDeadline time.Duration
	MaxMissed     int
	WasmPath      string
	Blend         float64

	Tick       time.Duration
	BufferSize int
	Retention  time.Duration

	Storage    storage.Config
	Server     server.Config
	OTELURL    url.URL
	TraceRatio float64
}

func StartEngine(ctx context.Context, cancel context.CancelFunc, cfg Config) error {
	g, ctx := errgroup.WithContext(ctx)

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("failed to parse log level: %s", err.Error())
	}
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	var tp trace.TracerProvider
	switch {
	case cfg.OTELURL == (url.URL{}):
		tp = noop.NewTracerProvider()
	default:
		sdktp, err := jaeger.NewProvider(ctx, svcName, cfg.OTELURL, cfg.InstanceID, cfg.TraceRatio)
		if err != nil {
			return fmt.Errorf("failed to initialize opentelemetry: %s", err.Error())
		}
		defer func() {
			if err := sdktp.Shutdown(ctx); err != nil {
				slog.Error("error shutting down tracer provider", slog.Any("error", err))
			}
		}()
		tp = sdktp
	}
	tracer := tp.Tracer(svcName)

	mqttPubSub, err := mqtt.NewPubSub(cfg.MQTTAddress, cfg.MQTTQoS, svcName+"-"+cfg.InstanceID, "", "", cfg.Domain, cfg.MQTTTimeout, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize mqtt pubsub: %s", err.Error())
	}

	stores, err := storage.NewStores(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %s", err.Error())
	}
	if stores.Closer != nil {
		defer func() {
			if err := stores.Closer.Close(); err != nil {
				logger.Error("error closing storage", slog.Any("error", err))
			}
		}()
	}

	pol, err := policy.Load(cfg.PolicyPath)
	if err != nil {
		return fmt.Errorf("failed to load policy: %s", err.Error())
	}

	var agg federation.Aggregator
	switch {
	case cfg.WasmPath != "":
		binary, err := os.ReadFile(cfg.WasmPath)
		if err != nil {
			return fmt.Errorf("failed to read aggregator binary: %s", err.Error())
		}
		agg, err = federation.NewWasmAggregator(binary)
		if err != nil {
			return fmt.Errorf("failed to initialize wasm aggregator: %s", err.Error())
		}
	default:
		agg = federation.NewFedAvgAggregator(cfg.Blend)
	}

	accountant := privacy.NewAccountant(stores.Budgets, pol.Privacy.Ceilings, logger)
	coordinator := federation.NewCoordinator(federation.RoundConfig{
		Quorum:          cfg.RoundQuorum,
		Deadline:        cfg.RoundDeadline,
		MaxMissedRounds: cfg.MaxMissed,
	}, agg, stores.Models, stores.Participants, accountant, logger)
	detector := anomaly.NewDetector(pol.Anomaly, stores.Baselines, stores.Anomalies, logger)

	ruleEngine := rules.NewEngine(rules.EngineConfig{
		OutcomeWindow:    pol.Engine.OutcomeWindow,
		DisableThreshold: pol.Engine.DisableThreshold,
	}, logger)
	if err := ruleEngine.Replace(pol.RuleSet()); err != nil {
		return fmt.Errorf("failed to load rules: %s", err.Error())
	}

	buffer := engine.NewBuffer(cfg.Retention, 0)
	actuator := remediation.NewHTTPActuator(cfg.ActuatorURL, nil)
	dispatcher := remediation.NewDispatcher(remediation.Config{}, actuator, buffer, stores.Actions, logger)

	svc := engine.NewService(engine.Config{
		Tick:       cfg.Tick,
		BufferSize: cfg.BufferSize,
		Retention:  cfg.Retention,
		Domain:     cfg.Domain,
	}, coordinator, accountant, detector, ruleEngine, dispatcher, stores, mqttPubSub, pol, buffer, logger)
	svc = middleware.Logging(logger, svc)
	svc = middleware.Tracing(tracer, svc)
	counter, latency := prometheus.MakeMetrics(svcName, "api")
	svc = middleware.Metrics(counter, latency, svc)

	if err := svc.Subscribe(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to engine topics: %s", err.Error())
	}

	watcher := policy.NewWatcher(cfg.PolicyPath, func(p *policy.Policy) {
		if err := svc.ReloadPolicy(ctx, p); err != nil {
			logger.Error("failed to reload policy", slog.Any("error", err))
		}
	}, logger)

	hs := httpserver.NewServer(ctx, cancel, svcName, cfg.Server, api.MakeHandler(svc, logger, cfg.InstanceID), logger)

	g.Go(func() error {
		return svc.Run(ctx)
	})

	g.Go(func() error {
		return watcher.Watch(ctx)
	})

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, svcName, hs)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", svcName, err))
	}

	return nil
}
