package kaizend

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	kaizen "github.com/autonomiq/kaizen"
	"github.com/autonomiq/kaizen/pkg/server"
	"github.com/autonomiq/kaizen/pkg/storage"
)

var configPath = "config.toml"

var engineCmd = []cobra.Command{
	{
		Use:   "start",
		Short: "Start engine",
		Long:  `Start the continuous improvement engine.`,
		Run: func(cmd *cobra.Command, _ []string) {
			fileCfg, err := kaizen.LoadConfig(configPath)
			if err != nil {
				slog.Error("failed to load config", slog.Any("error", err))

				return
			}

			cfg := Config{
				LogLevel:    fileCfg.Engine.LogLevel,
				InstanceID:  uuid.NewString(),
				MQTTAddress: fileCfg.MQTT.Address,
				MQTTQoS:     fileCfg.MQTT.QoS,
				MQTTTimeout: 30 * time.Second,
				Domain:      fileCfg.Engine.Domain,
				PolicyPath:  fileCfg.Engine.PolicyPath,
				ActuatorURL: fileCfg.Actuator.URL,
				Storage: storage.Config{
					Type:       fileCfg.Engine.Storage,
					BadgerPath: fileCfg.Engine.BadgerPath,
				},
				Server: server.Config{
					Port: fileCfg.Engine.HTTPPort,
				},
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if err := StartEngine(ctx, cancel, cfg); err != nil {
				slog.Error("failed to start engine", slog.String("error", err.Error()))
			}
		},
	},
}

func NewEngineCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "engine [start]",
		Short: "Engine management",
		Long:  `Start the continuous improvement engine.`,
	}

	cmd.PersistentFlags().StringVarP(
		&configPath,
		"config",
		"c",
		configPath,
		"Path to the daemon configuration file",
	)

	for i := range engineCmd {
		cmd.AddCommand(&engineCmd[i])
	}

	return &cmd
}
