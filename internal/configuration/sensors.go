package configuration

import "time"

type SensorConfig struct {
	ID string `json:"id"`

	// Type tags the monitored quantity: temperature, voltage, current,
	// power, fanspeed
	Type string `json:"type"`
	Unit string `json:"unit"`

	Min float64 `json:"min"`
	Max float64 `json:"max"`

	// reading transformation: value = (raw + offset) * scale
	Scale  float64 `json:"scale"`
	Offset float64 `json:"offset"`

	// PowerState gates readings: always | on | biosPost
	PowerState PowerStateValue `json:"powerState"`

	// PollRate overrides the shared cadence; zero means the sensor is
	// driven by the synchronized scheduler tick.
	PollRate time.Duration `json:"pollRate"`

	// RollingWindowSize smooths readings over the last n polls; zero
	// disables smoothing.
	RollingWindowSize int `json:"rollingWindowSize"`

	Thresholds []ThresholdConfig `json:"thresholds"`

	HwMon     *HwMonSensorConfig     `json:"hwmon,omitempty"`
	File      *FileSensorConfig      `json:"file,omitempty"`
	Cmd       *CmdSensorConfig       `json:"cmd,omitempty"`
	Aggregate *AggregateSensorConfig `json:"aggregate,omitempty"`
}

type ThresholdConfig struct {
	// Severity: warning | critical | softShutdown | hardShutdown
	Severity string `json:"severity"`
	// Direction: high | low
	Direction string  `json:"direction"`
	Value     float64 `json:"value"`
	// Hysteresis overrides the sensor's auto-derived trigger hysteresis
	Hysteresis *float64 `json:"hysteresis,omitempty"`
}

type HwMonSensorConfig struct {
	Platform string `json:"platform"`
	Index    int    `json:"index"`

	// resolved during sensor construction
	Input string `json:"input,omitempty"`
}

type FileSensorConfig struct {
	Path string `json:"path"`
}

type CmdSensorConfig struct {
	Exec string   `json:"exec"`
	Args []string `json:"args"`
}

const (
	AggregateFunctionMinimum = "minimum"
	AggregateFunctionMaximum = "maximum"
	AggregateFunctionAverage = "average"
)

type AggregateSensorConfig struct {
	Function string   `json:"function"`
	Sensors  []string `json:"sensors"`
}
