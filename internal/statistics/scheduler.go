package statistics

import (
	"github.com/markusressel/sensormon/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus"
)

const subsystemScheduler = "scheduler"

type SchedulerCollector struct {
	scheduler *scheduler.Scheduler

	ticks           *prometheus.Desc
	slowTicks       *prometheus.Desc
	anomalies       *prometheus.Desc
	avgTickDuration *prometheus.Desc
}

func NewSchedulerCollector(s *scheduler.Scheduler) *SchedulerCollector {
	return &SchedulerCollector{
		scheduler: s,
		ticks: prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystemScheduler, "ticks"),
			"Completed scheduler ticks",
			nil, nil,
		),
		slowTicks: prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystemScheduler, "slow_ticks"),
			"Ticks on which at least one sensor read had to be abandoned",
			nil, nil,
		),
		anomalies: prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystemScheduler, "anomalies"),
			"Ticks that required re-anchoring the schedule deadline",
			nil, nil,
		),
		avgTickDuration: prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystemScheduler, "avg_tick_duration_seconds"),
			"Average tick processing time over the last sixty ticks",
			nil, nil,
		),
	}
}

func (collector *SchedulerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- collector.ticks
	ch <- collector.slowTicks
	ch <- collector.anomalies
	ch <- collector.avgTickDuration
}

func (collector *SchedulerCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(collector.ticks, prometheus.CounterValue, float64(collector.scheduler.Ticks()))
	ch <- prometheus.MustNewConstMetric(collector.slowTicks, prometheus.CounterValue, float64(collector.scheduler.SlowTicks()))
	ch <- prometheus.MustNewConstMetric(collector.anomalies, prometheus.CounterValue, float64(collector.scheduler.Anomalies()))
	ch <- prometheus.MustNewConstMetric(collector.avgTickDuration, prometheus.GaugeValue, collector.scheduler.AvgTickDuration())
}
