package kaizen

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml"
)

type Config struct {
	Engine   EngineConfig   `toml:"engine"`
	MQTT     MQTTConfig     `toml:"mqtt"`
	Actuator ActuatorConfig `toml:"actuator"`
}

type EngineConfig struct {
	LogLevel   string `toml:"log_level"`
	Domain     string `toml:"domain"`
	PolicyPath string `toml:"policy_path"`
	HTTPPort   string `toml:"http_port"`
	Storage    string `toml:"storage"`
	BadgerPath string `toml:"badger_path"`
}

type MQTTConfig struct {
	Address string `toml:"address"`
	QoS     uint8  `toml:"qos"`
}

type ActuatorConfig struct {
	URL string `toml:"url"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	tree, err := toml.Load(string(data))
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	var cfg Config
	if err := tree.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := toml.Marshal(*cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}
