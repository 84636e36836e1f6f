package sensors

import (
	"fmt"
	"math"
	"strings"

	"github.com/markusressel/sensormon/internal/configuration"
	"github.com/markusressel/sensormon/internal/persistence"
	"github.com/markusressel/sensormon/internal/power"
	"github.com/markusressel/sensormon/internal/properties"
	"github.com/markusressel/sensormon/internal/thresholds"
	cmap "github.com/orcaman/concurrent-map/v2"
)

var (
	// SensorMap holds the currently active sensor generation, keyed by id.
	SensorMap = cmap.New[*Sensor]()
)

// unit strings per object type, matching the hwmon sysfs conventions
var defaultUnits = map[string]string{
	"temperature": "DegreesC",
	"voltage":     "Volts",
	"current":     "Amperes",
	"power":       "Watts",
	"fanspeed":    "RPM",
}

// FromConfig builds a Sensor from its configuration block.
func FromConfig(
	config configuration.SensorConfig,
	configPath string,
	gate *power.Gate,
	registry *properties.Registry,
	store persistence.Persistence,
	dispatch func(func()),
) (*Sensor, error) {
	objectType := strings.ToLower(config.Type)
	if len(objectType) <= 0 {
		objectType = "temperature"
	}

	unit := config.Unit
	if len(unit) <= 0 {
		unit = defaultUnits[objectType]
	}
	if len(unit) <= 0 {
		return nil, fmt.Errorf("sensor %s: unknown type %s and no unit configured", config.ID, config.Type)
	}

	readState, err := power.ParseState(string(config.PowerState))
	if err != nil {
		return nil, fmt.Errorf("sensor %s: %w", config.ID, err)
	}

	var thresholdList []thresholds.Threshold
	for _, thresholdConfig := range config.Thresholds {
		level, err := thresholds.ParseLevel(thresholdConfig.Severity)
		if err != nil {
			return nil, fmt.Errorf("sensor %s: %w", config.ID, err)
		}
		direction, err := thresholds.ParseDirection(thresholdConfig.Direction)
		if err != nil {
			return nil, fmt.Errorf("sensor %s: %w", config.ID, err)
		}

		hysteresis := math.NaN()
		if thresholdConfig.Hysteresis != nil {
			hysteresis = *thresholdConfig.Hysteresis
		}

		thresholdList = append(thresholdList, thresholds.Threshold{
			Level:      level,
			Direction:  direction,
			Value:      thresholdConfig.Value,
			Hysteresis: hysteresis,
		})
	}

	return New(Config{
		Name:       config.ID,
		ConfigPath: configPath,
		ObjectType: objectType,
		Unit:       unit,
		Min:        config.Min,
		Max:        config.Max,
		Thresholds: thresholdList,
		ReadState:  readState,
		Dispatch:   dispatch,
	}, gate, registry, store)
}
