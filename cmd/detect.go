package cmd

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/markusressel/sensormon/cmd/global"
	"github.com/markusressel/sensormon/internal/hwmon"
	"github.com/markusressel/sensormon/internal/ui"
	"github.com/markusressel/sensormon/internal/util"
	"github.com/mgutz/ansi"
	"github.com/spf13/cobra"
	"github.com/tomlazar/table"
)

var detectOutputPath string

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect devices",
	Long:  `Detects all hwmon sensors and prints them as a list`,
	Run: func(cmd *cobra.Command, args []string) {
		chips := hwmon.GetChips()

		// === Print detected devices ===
		tableConfig := &table.Config{
			ShowIndex:       false,
			Color:           !global.NoColor,
			AlternateColors: true,
			TitleColorCode:  ansi.ColorCode("white+buf"),
			AltColorCodes: []string{
				ansi.ColorCode("white"),
				ansi.ColorCode("white:236"),
			},
		}

		for _, chip := range chips {
			if len(chip.Name) <= 0 || len(chip.Sensors) <= 0 {
				continue
			}

			ui.Printfln("> %s (platform: %s)", chip.Name, chip.Platform)

			var sensorRows [][]string
			for _, feature := range chip.Sensors {
				valueText := "N/A"
				if feature.Scale != 0 {
					valueText = strconv.FormatFloat(feature.Value, 'f', -1, 64)
				}

				_, file := filepath.Split(feature.Input)
				labelAndFile := fmt.Sprintf("%s (%s)", feature.Label, file)

				sensorRows = append(sensorRows, []string{
					"", strconv.Itoa(feature.Index), feature.Type, labelAndFile, valueText,
				})
			}

			sensorTable := table.Table{
				Headers: []string{"Sensors", "Index", "Type", "Label", "Value"},
				Rows:    sensorRows,
			}

			var buf bytes.Buffer
			if err := sensorTable.WriteTable(&buf, tableConfig); err != nil {
				ui.Fatal("Error printing table: %v", err)
			}
			ui.Printfln("%s", buf.String())
		}

		if len(detectOutputPath) > 0 {
			if err := writeConfigSkeleton(chips, detectOutputPath); err != nil {
				ui.Fatal("Error writing config skeleton: %v", err)
			}
			ui.Success("Wrote config skeleton to %s", detectOutputPath)
		}
	},
}

// writeConfigSkeleton renders a sensor configuration entry for every
// detected feature, ready to be trimmed down by hand.
func writeConfigSkeleton(chips []*hwmon.Chip, path string) error {
	var builder strings.Builder
	builder.WriteString("sensors:\n")

	for _, chip := range chips {
		for _, feature := range chip.Sensors {
			id := strings.ToLower(strings.ReplaceAll(chip.Name+"_"+feature.Label, " ", "_"))
			builder.WriteString(fmt.Sprintf("  - id: %s\n", id))
			builder.WriteString(fmt.Sprintf("    type: %s\n", feature.Type))
			builder.WriteString(fmt.Sprintf("    min: %v\n", feature.Min))
			builder.WriteString(fmt.Sprintf("    max: %v\n", feature.Max))
			builder.WriteString("    hwmon:\n")
			builder.WriteString(fmt.Sprintf("      platform: %s\n", chip.Platform))
			builder.WriteString(fmt.Sprintf("      index: %d\n", feature.Index))
		}
	}

	return util.WriteTextFileAtomic(builder.String(), path)
}

func init() {
	detectCmd.Flags().StringVarP(&detectOutputPath, "output", "o", "", "Write a config skeleton for the detected sensors to the given file")
	rootCmd.AddCommand(detectCmd)
}
