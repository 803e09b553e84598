package kaizend

import (
	"log/slog"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	kaizen "github.com/autonomiq/kaizen"
)

func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize daemon configuration",
		Long:  `Interactively build the daemon configuration file.`,
		Run: func(cmd *cobra.Command, _ []string) {
			cfg := kaizen.Config{
				Engine: kaizen.EngineConfig{
					LogLevel:   "info",
					Domain:     "default",
					PolicyPath: "policy.yaml",
					HTTPPort:   "7080",
					Storage:    "memory",
					BadgerPath: "./data/badger",
				},
				MQTT: kaizen.MQTTConfig{
					Address: "tcp://localhost:1883",
					QoS:     2,
				},
				Actuator: kaizen.ActuatorConfig{
					URL: "http://localhost:9090",
				},
			}

			qos := strconv.Itoa(int(cfg.MQTT.QoS))
			form := huh.NewForm(
				huh.NewGroup(
					huh.NewSelect[string]().
						Title("Log level").
						Options(
							huh.NewOption("debug", "debug"),
							huh.NewOption("info", "info"),
							huh.NewOption("warn", "warn"),
							huh.NewOption("error", "error"),
						).
						Value(&cfg.Engine.LogLevel),
					huh.NewInput().
						Title("Domain").
						Value(&cfg.Engine.Domain),
					huh.NewInput().
						Title("Policy path").
						Value(&cfg.Engine.PolicyPath),
					huh.NewInput().
						Title("HTTP port").
						Value(&cfg.Engine.HTTPPort),
					huh.NewSelect[string]().
						Title("Storage backend").
						Options(
							huh.NewOption("memory", "memory"),
							huh.NewOption("badger", "badger"),
						).
						Value(&cfg.Engine.Storage),
				),
				huh.NewGroup(
					huh.NewInput().
						Title("MQTT address").
						Value(&cfg.MQTT.Address),
					huh.NewSelect[string]().
						Title("MQTT QoS").
						Options(
							huh.NewOption("0", "0"),
							huh.NewOption("1", "1"),
							huh.NewOption("2", "2"),
						).
						Value(&qos),
					huh.NewInput().
						Title("Actuator URL").
						Value(&cfg.Actuator.URL),
				),
			)

			if err := form.Run(); err != nil {
				slog.Error("configuration aborted", slog.Any("error", err))

				return
			}

			q, err := strconv.ParseUint(qos, 10, 8)
			if err != nil {
				slog.Error("invalid qos", slog.Any("error", err))

				return
			}
			cfg.MQTT.QoS = uint8(q)

			if err := kaizen.SaveConfig(configPath, &cfg); err != nil {
				slog.Error("failed to write config", slog.Any("error", err))

				return
			}
			cmd.Printf("wrote %s\n", configPath)
		},
	}
}
