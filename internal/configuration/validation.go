package configuration

import (
	"fmt"
	"strings"

	"github.com/looplab/tarjan"
	"github.com/markusressel/sensormon/internal/ui"
	"github.com/markusressel/sensormon/internal/util"
	"golang.org/x/exp/slices"
)

func Validate(configPath string) error {
	return validateConfig(&CurrentConfig, configPath)
}

func validateConfig(config *Configuration, path string) error {
	err := validateSensors(config)
	if err != nil {
		return err
	}
	err = validateEvents(config)
	if err != nil {
		return err
	}

	if containsCmdSensors(config) {
		if _, err := util.CheckFilePermissionsForExecution(path); err != nil {
			return fmt.Errorf("config file '%s' has invalid permissions: %s", path, err)
		}
	}

	return nil
}

func containsCmdSensors(config *Configuration) bool {
	for _, sensorConfig := range config.Sensors {
		if sensorConfig.Cmd != nil {
			return true
		}
	}

	return false
}

var validSeverities = []string{"warning", "critical", "softshutdown", "hardshutdown"}
var validDirections = []string{"high", "low"}
var validAggregateFunctions = []string{
	AggregateFunctionMinimum,
	AggregateFunctionMaximum,
	AggregateFunctionAverage,
}

func validateSensors(config *Configuration) error {
	ids := map[string]bool{}
	for _, sensorConfig := range config.Sensors {
		if len(sensorConfig.ID) <= 0 {
			return fmt.Errorf("sensor without id in configuration")
		}
		if ids[sensorConfig.ID] {
			return fmt.Errorf("sensor %s: duplicate id", sensorConfig.ID)
		}
		ids[sensorConfig.ID] = true

		subConfigs := 0
		if sensorConfig.HwMon != nil {
			subConfigs++
		}
		if sensorConfig.File != nil {
			subConfigs++
		}
		if sensorConfig.Cmd != nil {
			subConfigs++
		}
		if sensorConfig.Aggregate != nil {
			subConfigs++
		}
		if subConfigs > 1 {
			return fmt.Errorf("sensor %s: only one sensor type can be used per sensor definition block", sensorConfig.ID)
		}
		if subConfigs <= 0 {
			return fmt.Errorf("sensor %s: sub-configuration for sensor is missing, use one of: hwmon | file | cmd | aggregate", sensorConfig.ID)
		}

		if !(sensorConfig.Min < sensorConfig.Max) {
			return fmt.Errorf("sensor %s: min must be less than max", sensorConfig.ID)
		}

		if sensorConfig.HwMon != nil {
			if sensorConfig.HwMon.Index <= 0 {
				return fmt.Errorf("sensor %s: invalid index, must be >= 1", sensorConfig.ID)
			}
		}

		if sensorConfig.Aggregate != nil {
			function := strings.ToLower(sensorConfig.Aggregate.Function)
			if !slices.Contains(validAggregateFunctions, function) {
				return fmt.Errorf("sensor %s: invalid aggregate function: %s", sensorConfig.ID, sensorConfig.Aggregate.Function)
			}
			if len(sensorConfig.Aggregate.Sensors) <= 0 {
				return fmt.Errorf("sensor %s: aggregate sensor references no sensors", sensorConfig.ID)
			}
			for _, referenced := range sensorConfig.Aggregate.Sensors {
				if referenced == sensorConfig.ID {
					return fmt.Errorf("sensor %s: aggregate references itself", sensorConfig.ID)
				}
				if !sensorIdExists(config, referenced) {
					return fmt.Errorf("sensor %s: aggregate references unknown sensor: %s", sensorConfig.ID, referenced)
				}
			}
		}

		for _, thresholdConfig := range sensorConfig.Thresholds {
			if !slices.Contains(validSeverities, strings.ToLower(thresholdConfig.Severity)) {
				return fmt.Errorf("sensor %s: invalid threshold severity: %s", sensorConfig.ID, thresholdConfig.Severity)
			}
			if !slices.Contains(validDirections, strings.ToLower(thresholdConfig.Direction)) {
				return fmt.Errorf("sensor %s: invalid threshold direction: %s", sensorConfig.ID, thresholdConfig.Direction)
			}
		}
	}

	return validateNoAggregateCycles(config)
}

func sensorIdExists(config *Configuration, id string) bool {
	for _, sensorConfig := range config.Sensors {
		if sensorConfig.ID == id {
			return true
		}
	}
	return false
}

// validateNoAggregateCycles makes sure aggregate sensors do not reference
// themselves, directly or through other aggregates.
func validateNoAggregateCycles(config *Configuration) error {
	graph := make(map[interface{}][]interface{})

	for _, sensorConfig := range config.Sensors {
		var children []interface{}
		if sensorConfig.Aggregate != nil {
			for _, referenced := range sensorConfig.Aggregate.Sensors {
				children = append(children, referenced)
			}
		}
		graph[sensorConfig.ID] = children
	}

	output := tarjan.Connections(graph)
	for _, component := range output {
		if len(component) > 1 {
			var ids []string
			for _, id := range component {
				ids = append(ids, fmt.Sprintf("%v", id))
			}
			return fmt.Errorf("aggregate sensors must not contain cyclic references: %s", strings.Join(ids, " -> "))
		}
	}

	return nil
}

func validateEvents(config *Configuration) error {
	ids := map[string]bool{}
	for _, eventConfig := range config.Events {
		if len(eventConfig.ID) <= 0 {
			return fmt.Errorf("event without id in configuration")
		}
		if ids[eventConfig.ID] {
			return fmt.Errorf("event %s: duplicate id", eventConfig.ID)
		}
		ids[eventConfig.ID] = true

		if len(eventConfig.Groups) <= 0 {
			return fmt.Errorf("event %s: no fault source groups configured", eventConfig.ID)
		}
		for groupName, paths := range eventConfig.Groups {
			if len(paths) <= 0 {
				ui.Warning("Event %s: group %s has no fault sources", eventConfig.ID, groupName)
			}
		}
	}
	return nil
}
