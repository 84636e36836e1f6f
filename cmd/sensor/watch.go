package sensor

import (
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/markusressel/sensormon/internal/configuration"
	"github.com/markusressel/sensormon/internal/ui"
	"github.com/spf13/cobra"
)

const watchGraphHeight = 15

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a graph of sensor readings",
	Long:  ``,
	RunE: func(cmd *cobra.Command, args []string) error {
		read, config, err := getReader(sensorId)
		if err != nil {
			return err
		}

		pollRate := config.PollRate
		if pollRate <= 0 {
			pollRate = configuration.CurrentConfig.PollRate
		}

		var values []float64
		for {
			value, err := readScaled(read, config)
			if err != nil {
				ui.Warning("Error reading sensor %s: %v", config.ID, err)
			} else {
				values = append(values, value)
				if len(values) > 120 {
					values = values[1:]
				}

				graph := asciigraph.Plot(
					values,
					asciigraph.Height(watchGraphHeight),
					asciigraph.Caption(config.ID),
				)
				asciigraph.Clear()
				ui.Printfln("%s", graph)
			}

			time.Sleep(pollRate)
		}
	},
}

func init() {
	Command.AddCommand(watchCmd)
}
