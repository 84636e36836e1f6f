package sensors

import (
	"errors"
	"fmt"
	"math"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/markusressel/sensormon/internal/configuration"
	"github.com/markusressel/sensormon/internal/util"
)

// ErrSourceRemoved marks a terminal read error: the data source behind a
// sensor disappeared and the sensor must be recreated through
// reconfiguration, not retried.
var ErrSourceRemoved = errors.New("sensor data source removed")

// ReadFunc obtains one raw reading. The engine never knows the transport
// behind it.
type ReadFunc func() (float64, error)

const cmdReadTimeout = 2 * time.Second

// NewSysfsReader reads a single numeric line from the given file. The
// file is opened and closed on every read, so a source that disappeared
// underneath (f.ex. hot-unplugged hardware) never silently returns stale
// data.
func NewSysfsReader(path string) ReadFunc {
	return func() (float64, error) {
		value, err := util.ReadFloatFromFile(path)
		if err != nil {
			if isSourceRemoved(err) {
				return math.NaN(), fmt.Errorf("%w: %s", ErrSourceRemoved, path)
			}
			return math.NaN(), err
		}
		return value, nil
	}
}

func isSourceRemoved(err error) bool {
	return errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ENODEV) ||
		errors.Is(err, syscall.ENXIO)
}

// NewFileReader is a sysfs reader with home directory expansion.
func NewFileReader(path string) (ReadFunc, error) {
	if strings.HasPrefix(path, "~") {
		currentUser, err := user.Current()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(currentUser.HomeDir, path[1:])
	}
	return NewSysfsReader(path), nil
}

// NewCmdReader executes the given command and parses its output as a number.
func NewCmdReader(executable string, args []string) ReadFunc {
	return func() (float64, error) {
		output, err := util.SafeCmdExecution(executable, args, cmdReadTimeout)
		if err != nil {
			return math.NaN(), err
		}
		return strconv.ParseFloat(strings.TrimSpace(output), 64)
	}
}

// NewAggregateReader combines the current values of other sensors. A
// referenced sensor that is missing or has no known-good value makes the
// aggregate read fail (transient).
func NewAggregateReader(function string, ids []string) ReadFunc {
	return func() (float64, error) {
		values := make([]float64, 0, len(ids))
		for _, id := range ids {
			referenced, ok := SensorMap.Get(id)
			if !ok {
				return math.NaN(), fmt.Errorf("aggregate input missing: %s", id)
			}
			snapshot := referenced.Snapshot()
			if snapshot == nil || math.IsNaN(snapshot.Value) {
				return math.NaN(), fmt.Errorf("aggregate input unknown: %s", id)
			}
			values = append(values, snapshot.Value)
		}

		switch strings.ToLower(function) {
		case configuration.AggregateFunctionMinimum:
			return util.Min(values), nil
		case configuration.AggregateFunctionMaximum:
			return util.Max(values), nil
		case configuration.AggregateFunctionAverage:
			return util.Avg(values), nil
		}
		return math.NaN(), fmt.Errorf("unknown aggregate function: %s", function)
	}
}

// NewReader picks the reader matching the sensor's sub-configuration.
func NewReader(config configuration.SensorConfig) (ReadFunc, error) {
	if config.HwMon != nil {
		if len(config.HwMon.Input) <= 0 {
			return nil, fmt.Errorf("sensor %s: hwmon input not resolved", config.ID)
		}
		return NewSysfsReader(config.HwMon.Input), nil
	}

	if config.File != nil {
		return NewFileReader(config.File.Path)
	}

	if config.Cmd != nil {
		return NewCmdReader(config.Cmd.Exec, config.Cmd.Args), nil
	}

	if config.Aggregate != nil {
		return NewAggregateReader(config.Aggregate.Function, config.Aggregate.Sensors), nil
	}

	return nil, fmt.Errorf("no matching sensor type for sensor: %s", config.ID)
}
