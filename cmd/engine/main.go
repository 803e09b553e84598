package main

import (
	"context"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/autonomiq/kaizen/kaizend"
	"github.com/autonomiq/kaizen/pkg/server"
	"github.com/autonomiq/kaizen/pkg/storage"
)

const (
	defHTTPPort   = "7080"
	envPrefixHTTP = "ENGINE_HTTP_"
	pathEnv       = ".env"
)

type envConfig struct {
	LogLevel    string        `env:"ENGINE_LOG_LEVEL"       envDefault:"info"`
	InstanceID  string        `env:"ENGINE_INSTANCE_ID"`
	MQTTAddress string        `env:"ENGINE_MQTT_ADDRESS"    envDefault:"tcp://localhost:1883"`
	MQTTQoS     uint8         `env:"ENGINE_MQTT_QOS"        envDefault:"2"`
	MQTTTimeout time.Duration `env:"ENGINE_MQTT_TIMEOUT"    envDefault:"30s"`
	Domain      string        `env:"ENGINE_DOMAIN"          envDefault:"default"`

	PolicyPath  string `env:"ENGINE_POLICY_PATH"   envDefault:"policy.yaml"`
	ActuatorURL string `env:"ENGINE_ACTUATOR_URL"  envDefault:"http://localhost:9090"`

	RoundQuorum   int           `env:"ENGINE_ROUND_QUORUM"      envDefault:"1"`
	RoundDeadline time.Duration `env:"ENGINE_ROUND_DEADLINE"    envDefault:"5m"`
	MaxMissed     int           `env:"ENGINE_MAX_MISSED_ROUNDS" envDefault:"3"`
	WasmPath      string        `env:"ENGINE_WASM_AGGREGATOR"`
	Blend         float64       `env:"ENGINE_MODEL_BLEND"       envDefault:"1.0"`

	Tick       time.Duration `env:"ENGINE_TICK"        envDefault:"30s"`
	BufferSize int           `env:"ENGINE_BUFFER_SIZE" envDefault:"4096"`
	Retention  time.Duration `env:"ENGINE_RETENTION"   envDefault:"15m"`

	OTELURL    url.URL `env:"ENGINE_OTEL_URL"`
	TraceRatio float64 `env:"ENGINE_TRACE_RATIO" envDefault:"0"`
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	storageConfig := storage.Config{}
	if err := env.Parse(&storageConfig); err != nil {
		log.Fatalf("failed to load storage configuration : %s", err.Error())
	}

	httpServerConfig := server.Config{Port: defHTTPPort}
	if err := env.ParseWithOptions(&httpServerConfig, env.Options{Prefix: envPrefixHTTP}); err != nil {
		log.Fatalf("failed to load HTTP server configuration : %s", err.Error())
	}

	if err := kaizend.StartEngine(ctx, cancel, kaizend.Config{
		LogLevel:      cfg.LogLevel,
		InstanceID:    cfg.InstanceID,
		MQTTAddress:   cfg.MQTTAddress,
		MQTTQoS:       cfg.MQTTQoS,
		MQTTTimeout:   cfg.MQTTTimeout,
		Domain:        cfg.Domain,
		PolicyPath:    cfg.PolicyPath,
		ActuatorURL:   cfg.ActuatorURL,
		RoundQuorum:   cfg.RoundQuorum,
		RoundDeadline: cfg.RoundDeadline,
		MaxMissed:     cfg.MaxMissed,
		WasmPath:      cfg.WasmPath,
		Blend:         cfg.Blend,
		Tick:          cfg.Tick,
		BufferSize:    cfg.BufferSize,
		Retention:     cfg.Retention,
		Storage:       storageConfig,
		Server:        httpServerConfig,
		OTELURL:       cfg.OTELURL,
		TraceRatio:    cfg.TraceRatio,
	}); err != nil {
		log.Fatalf("failed to start engine: %s", err.Error())
	}
}
