package internal

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/markusressel/sensormon/internal/api"
	"github.com/markusressel/sensormon/internal/configuration"
	"github.com/markusressel/sensormon/internal/events"
	"github.com/markusressel/sensormon/internal/hwmon"
	"github.com/markusressel/sensormon/internal/lifecycle"
	"github.com/markusressel/sensormon/internal/persistence"
	"github.com/markusressel/sensormon/internal/poll"
	"github.com/markusressel/sensormon/internal/power"
	"github.com/markusressel/sensormon/internal/properties"
	"github.com/markusressel/sensormon/internal/reactor"
	"github.com/markusressel/sensormon/internal/scheduler"
	"github.com/markusressel/sensormon/internal/sensors"
	"github.com/markusressel/sensormon/internal/statistics"
	"github.com/markusressel/sensormon/internal/ui"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
)

// generation is the set of objects built from one configuration state.
// Swapped atomically so that collectors and the REST api always see a
// consistent population.
type generation struct {
	cycles    []*poll.Cycle
	scheduled []*poll.Cycle
	events    []*events.CombinedEvent
}

type daemon struct {
	rtr      *reactor.Reactor
	registry *properties.Registry
	gate     *power.Gate
	store    persistence.Persistence

	current atomic.Pointer[generation]
}

func RunDaemon() {
	d := &daemon{
		rtr:      reactor.New(),
		registry: properties.NewRegistry(),
		gate:     power.NewGate(),
	}
	d.current.Store(&generation{})

	power.RegisterHostProperties(d.registry)
	if !d.gate.Bind(d.registry) {
		ui.Fatal("Unable to bind power gate to host properties")
	}

	store := persistence.NewPersistence(configuration.CurrentConfig.DbPath)
	if err := store.Init(); err != nil {
		ui.Warning("Unable to open database %s, threshold overrides will not survive restarts: %v",
			configuration.CurrentConfig.DbPath, err)
	} else {
		d.store = store
	}

	manager := lifecycle.NewManager(d.rtr, lifecycle.Config{
		RebuildDebounce: configuration.CurrentConfig.RebuildDebounce,
	}, d.buildGeneration)
	manager.InstallInitial()

	sched := scheduler.New(d.rtr, configuration.CurrentConfig.PollRate, func() []scheduler.Pollable {
		scheduled := d.current.Load().scheduled
		pollables := make([]scheduler.Pollable, len(scheduled))
		for i, cycle := range scheduled {
			pollables[i] = cycle
		}
		return pollables
	})
	sched.Start()

	statistics.Register(statistics.NewSensorCollector(func() []*poll.Cycle {
		return d.current.Load().cycles
	}))
	statistics.Register(statistics.NewSchedulerCollector(sched))
	statistics.Register(statistics.NewEventCollector(func() []*events.CombinedEvent {
		return d.current.Load().events
	}))

	// configuration hot reload: a change triggers a debounced rebuild of
	// the whole sensor population
	viper.OnConfigChange(func(in fsnotify.Event) {
		ui.Info("Configuration file changed, scheduling rebuild")
		reloadConfig()
		manager.RequestRebuild()
	})
	viper.WatchConfig()

	ctx, cancel := context.WithCancel(context.Background())

	var g run.Group
	{
		// === reactor, owns all sensor state
		g.Add(func() error {
			return d.rtr.Run(ctx)
		}, func(err error) {
			cancel()
		})
	}
	{
		enabled := configuration.CurrentConfig.Statistics.Enabled
		if enabled {
			// === Prometheus Exporter
			port := configuration.CurrentConfig.Statistics.Port
			addr := fmt.Sprintf(":%d", port)
			server := &http.Server{Addr: addr, Handler: promhttp.Handler()}

			g.Add(func() error {
				ui.Info("Serving statistics on %s/metrics", addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					ui.Error("Cannot start prometheus metrics endpoint (%s)", err.Error())
					return err
				}
				return nil
			}, func(err error) {
				timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer timeoutCancel()
				if err := server.Shutdown(timeoutCtx); err != nil {
					ui.Warning("Error stopping statistics server: %v", err)
				} else {
					ui.Info("Statistics server stopped.")
				}
			})
		}
	}
	{
		enabled := configuration.CurrentConfig.Api.Enabled
		if enabled {
			// === REST api
			restService := api.CreateRestService(api.Deps{
				Registry: d.registry,
				Events: func() []*events.CombinedEvent {
					return d.current.Load().events
				},
			})

			g.Add(func() error {
				port := configuration.CurrentConfig.Api.Port
				addr := fmt.Sprintf(":%d", port)
				ui.Info("Serving api on %s", addr)
				if err := restService.Start(addr); err != nil && err != http.ErrServerClosed {
					ui.Error("Cannot start rest api endpoint (%s)", err.Error())
					return err
				}
				return nil
			}, func(err error) {
				timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer timeoutCancel()
				if err := restService.Shutdown(timeoutCtx); err != nil {
					ui.Warning("Error stopping api server: %v", err)
				} else {
					ui.Info("Api server stopped.")
				}
			})
		}
	}
	{
		// === signal handling
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

		g.Add(func() error {
			for received := range sig {
				if received == syscall.SIGHUP {
					ui.Info("Received SIGHUP, scheduling rebuild")
					reloadConfig()
					manager.RequestRebuild()
					continue
				}
				ui.Info("Received %s signal, exiting...", received)
				return nil
			}
			return nil
		}, func(err error) {
			sched.Stop()
			manager.RetireAll()
			signal.Stop(sig)
			close(sig)
			cancel()
		})
	}

	if err := g.Run(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	} else {
		ui.Info("Done.")
		os.Exit(0)
	}
}

// reloadConfig re-reads and validates the configuration file. An invalid
// configuration is rejected, the running population stays as it is.
func reloadConfig() {
	previous := configuration.CurrentConfig
	if err := viper.ReadInConfig(); err != nil {
		ui.Error("Error re-reading config file: %v", err)
		return
	}
	configuration.LoadConfig()
	if err := configuration.Validate(viper.ConfigFileUsed()); err != nil {
		ui.Error("Rejecting invalid configuration: %v", err)
		configuration.CurrentConfig = previous
	}
}

// buildGeneration constructs sensors, poll cycles and events from the
// current configuration. Runs on the reactor goroutine.
func (d *daemon) buildGeneration() []lifecycle.Retirable {
	config := configuration.CurrentConfig

	var chips []*hwmon.Chip
	for _, sensorConfig := range config.Sensors {
		if sensorConfig.HwMon != nil {
			chips = hwmon.GetChips()
			break
		}
	}

	next := &generation{}
	var retirables []lifecycle.Retirable

	sensors.SensorMap.Clear()

	for _, sensorConfig := range config.Sensors {
		scale := sensorConfig.Scale

		if sensorConfig.HwMon != nil {
			feature, err := hwmon.ResolveSensorConfig(&sensorConfig, chips)
			if err != nil {
				ui.Error("Skipping sensor %s: %v", sensorConfig.ID, err)
				continue
			}
			if scale == 0 {
				scale = feature.Scale
			}
		}

		sensor, err := sensors.FromConfig(sensorConfig, viper.ConfigFileUsed(), d.gate, d.registry, d.store, d.rtr.Post)
		if err != nil {
			ui.Error("Skipping sensor %s: %v", sensorConfig.ID, err)
			continue
		}

		read, err := sensors.NewReader(sensorConfig)
		if err != nil {
			ui.Error("Skipping sensor %s: %v", sensorConfig.ID, err)
			sensor.Close()
			continue
		}

		cycle := poll.NewCycle(sensor, read, poll.Config{
			Interval:          sensorConfig.PollRate,
			Scale:             scale,
			Offset:            sensorConfig.Offset,
			RollingWindowSize: sensorConfig.RollingWindowSize,
		}, d.rtr)

		if sensorConfig.PollRate > 0 {
			// own cadence, self-scheduled
			cycle.Start()
		} else {
			next.scheduled = append(next.scheduled, cycle)
		}

		next.cycles = append(next.cycles, cycle)
		retirables = append(retirables, cycle)
		sensors.SensorMap.Set(sensor.GetId(), sensor)
	}

	for _, eventConfig := range config.Events {
		event := events.NewCombinedEvent(eventConfig.ID, eventConfig.Groups,
			config.EventPollRate, d.registry, d.rtr)
		event.Start()

		next.events = append(next.events, event)
		retirables = append(retirables, event)
	}

	ui.Info("Built generation: %d sensors (%d on shared tick), %d events",
		len(next.cycles), len(next.scheduled), len(next.events))

	d.current.Store(next)
	return retirables
}
