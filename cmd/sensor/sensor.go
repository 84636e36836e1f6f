package sensor

import (
	"fmt"

	"github.com/markusressel/sensormon/internal/configuration"
	"github.com/markusressel/sensormon/internal/hwmon"
	"github.com/markusressel/sensormon/internal/sensors"
	"github.com/markusressel/sensormon/internal/ui"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var sensorId string

var Command = &cobra.Command{
	Use:              "sensor",
	Short:            "Sensor related commands",
	Long:             ``,
	TraverseChildren: true,
	Args:             cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pterm.DisableOutput()

		read, config, err := getReader(sensorId)
		if err != nil {
			return err
		}

		value, err := readScaled(read, config)
		if err != nil {
			return err
		}
		fmt.Printf("%v", value)
		return nil
	},
}

func init() {
	Command.PersistentFlags().StringVarP(
		&sensorId,
		"id", "i",
		"",
		"Sensor ID as specified in the config",
	)
	_ = Command.MarkPersistentFlagRequired("id")
}

// getReader builds a one-shot reader for the configured sensor with the
// given id, resolving hwmon platform references first.
func getReader(id string) (sensors.ReadFunc, configuration.SensorConfig, error) {
	configPath := configuration.DetectConfigFile()
	ui.Info("Using configuration file at: %s", configPath)
	configuration.LoadConfig()
	if err := configuration.Validate(configPath); err != nil {
		return nil, configuration.SensorConfig{}, err
	}

	availableSensorIds := []string{}
	for _, config := range configuration.CurrentConfig.Sensors {
		availableSensorIds = append(availableSensorIds, config.ID)
		if config.ID != id {
			continue
		}

		if config.Aggregate != nil {
			return nil, config, fmt.Errorf("aggregate sensors can only be read by the daemon: %s", id)
		}

		if config.HwMon != nil {
			chips := hwmon.GetChips()
			feature, err := hwmon.ResolveSensorConfig(&config, chips)
			if err != nil {
				return nil, config, err
			}
			if config.Scale == 0 {
				config.Scale = feature.Scale
			}
		}

		read, err := sensors.NewReader(config)
		if err != nil {
			return nil, config, err
		}
		return read, config, nil
	}

	return nil, configuration.SensorConfig{}, fmt.Errorf("no sensor with id found: %s, options: %s", id, availableSensorIds)
}

func readScaled(read sensors.ReadFunc, config configuration.SensorConfig) (float64, error) {
	raw, err := read()
	if err != nil {
		return 0, err
	}
	scale := config.Scale
	if scale == 0 {
		scale = 1
	}
	return (raw + config.Offset) * scale, nil
}
