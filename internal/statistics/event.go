package statistics

import (
	"github.com/markusressel/sensormon/internal/events"
	"github.com/prometheus/client_golang/prometheus"
)

const subsystemEvent = "event"

type EventCollector struct {
	source func() []*events.CombinedEvent

	functional *prometheus.Desc
}

func NewEventCollector(source func() []*events.CombinedEvent) *EventCollector {
	return &EventCollector{
		source: source,
		functional: prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystemEvent, "functional"),
			"Combined functional state of the event's fault sources",
			[]string{"id"}, nil,
		),
	}
}

func (collector *EventCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- collector.functional
}

func (collector *EventCollector) Collect(ch chan<- prometheus.Metric) {
	for _, event := range collector.source() {
		ch <- prometheus.MustNewConstMetric(collector.functional, prometheus.GaugeValue,
			boolToGauge(event.Functional()), event.Name)
	}
}
