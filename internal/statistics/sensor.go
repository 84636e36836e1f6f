package statistics

import (
	"math"

	"github.com/markusressel/sensormon/internal/poll"
	"github.com/prometheus/client_golang/prometheus"
)

const subsystemSensor = "sensor"

// SensorCollector exposes the active sensor generation. The source is
// consulted on every scrape, so generation swaps are picked up without
// re-registering the collector.
type SensorCollector struct {
	source func() []*poll.Cycle

	value      *prometheus.Desc
	rawValue   *prometheus.Desc
	available  *prometheus.Desc
	functional *prometheus.Desc
	errCount   *prometheus.Desc
	alarm      *prometheus.Desc
	readCount  *prometheus.Desc
	goodCount  *prometheus.Desc
	slowCount  *prometheus.Desc
}

func NewSensorCollector(source func() []*poll.Cycle) *SensorCollector {
	return &SensorCollector{
		source: source,
		value: prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystemSensor, "value"),
			"Current value of the sensor",
			[]string{"id", "type"}, nil,
		),
		rawValue: prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystemSensor, "raw_value"),
			"Last raw reading of the sensor, before scale and offset",
			[]string{"id", "type"}, nil,
		),
		available: prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystemSensor, "available"),
			"Whether the sensor's data source currently delivers readings",
			[]string{"id", "type"}, nil,
		),
		functional: prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystemSensor, "functional"),
			"Whether the sensor is operating within its error budget",
			[]string{"id", "type"}, nil,
		),
		errCount: prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystemSensor, "error_count"),
			"Consecutive failed reads of the sensor",
			[]string{"id", "type"}, nil,
		),
		alarm: prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystemSensor, "alarm"),
			"Asserted state of one threshold alarm of the sensor",
			[]string{"id", "type", "severity", "direction"}, nil,
		),
		readCount: prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystemSensor, "read_count"),
			"Completed read attempts of the sensor",
			[]string{"id", "type"}, nil,
		),
		goodCount: prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystemSensor, "good_count"),
			"Reads of the sensor that produced a usable value",
			[]string{"id", "type"}, nil,
		),
		slowCount: prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystemSensor, "slow_count"),
			"Reads of the sensor abandoned because they missed their tick",
			[]string{"id", "type"}, nil,
		),
	}
}

func (collector *SensorCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- collector.value
	ch <- collector.rawValue
	ch <- collector.available
	ch <- collector.functional
	ch <- collector.errCount
	ch <- collector.alarm
	ch <- collector.readCount
	ch <- collector.goodCount
	ch <- collector.slowCount
}

func boolToGauge(value bool) float64 {
	if value {
		return 1
	}
	return 0
}

func (collector *SensorCollector) Collect(ch chan<- prometheus.Metric) {
	for _, cycle := range collector.source() {
		snapshot := cycle.Sensor().Snapshot()
		if snapshot == nil {
			continue
		}
		id := snapshot.Name
		objectType := snapshot.ObjectType

		if !math.IsNaN(snapshot.Value) {
			ch <- prometheus.MustNewConstMetric(collector.value, prometheus.GaugeValue, snapshot.Value, id, objectType)
		}
		if !math.IsNaN(snapshot.RawValue) {
			ch <- prometheus.MustNewConstMetric(collector.rawValue, prometheus.GaugeValue, snapshot.RawValue, id, objectType)
		}
		ch <- prometheus.MustNewConstMetric(collector.available, prometheus.GaugeValue, boolToGauge(snapshot.Available), id, objectType)
		ch <- prometheus.MustNewConstMetric(collector.functional, prometheus.GaugeValue, boolToGauge(snapshot.Functional), id, objectType)
		ch <- prometheus.MustNewConstMetric(collector.errCount, prometheus.GaugeValue, float64(snapshot.ErrCount), id, objectType)
		ch <- prometheus.MustNewConstMetric(collector.readCount, prometheus.CounterValue, float64(cycle.ReadCount()), id, objectType)
		ch <- prometheus.MustNewConstMetric(collector.goodCount, prometheus.CounterValue, float64(cycle.GoodCount()), id, objectType)
		ch <- prometheus.MustNewConstMetric(collector.slowCount, prometheus.CounterValue, float64(cycle.SlowCount()), id, objectType)

		for _, threshold := range snapshot.Thresholds {
			ch <- prometheus.MustNewConstMetric(collector.alarm, prometheus.GaugeValue, boolToGauge(threshold.Asserted),
				id, objectType, threshold.Level, threshold.Direction)
		}
	}
}
