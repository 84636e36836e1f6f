package hwmon

import (
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/markusressel/sensormon/internal/configuration"
	"github.com/markusressel/sensormon/internal/util"
	"github.com/md14454/gosensors"
)

const (
	BusTypeIsa  = 1
	BusTypePci  = 2
	BusTypeAcpi = 5
)

// Chip is one hwmon device together with the sensor features it exposes.
type Chip struct {
	Name     string
	DType    string
	Modalias string
	Platform string
	Path     string

	Sensors []*Feature
}

// Feature is a single measurable input of a chip. Index counts features
// of the same object type on the same chip, starting at 1, matching the
// index used in sensor configurations.
type Feature struct {
	Label string
	Index int
	Type  string
	Input string

	// Scale converts the raw sysfs reading into the canonical unit of
	// the object type, f.ex. millidegrees into degrees.
	Scale float64

	// Value is the reading at detection time, already scaled
	Value float64
	Max   float64
	Min   float64
}

// featureKinds maps libsensors feature types onto object types and the
// sysfs scaling conventions of the hwmon ABI.
var featureKinds = map[gosensors.FeatureType]struct {
	objectType string
	scale      float64
}{
	gosensors.FeatureTypeTemp:  {"temperature", 0.001},
	gosensors.FeatureTypeIn:    {"voltage", 0.001},
	gosensors.FeatureTypeCurr:  {"current", 0.001},
	gosensors.FeatureTypePower: {"power", 0.000001},
	gosensors.FeatureTypeFan:   {"fanspeed", 1},
}

// GetChips enumerates all hwmon devices with at least one usable sensor
// feature.
func GetChips() []*Chip {
	gosensors.Init()
	defer gosensors.Cleanup()
	chips := gosensors.GetDetectedChips()

	var list []*Chip

	for i := 0; i < len(chips); i++ {
		chip := chips[i]

		identifier := computeIdentifier(chip)
		platform := findPlatform(chip.Path)
		if len(platform) <= 0 {
			platform = identifier
		}

		sensorList := GetSensors(chip)
		if len(sensorList) <= 0 {
			continue
		}

		list = append(list, &Chip{
			Name:     identifier,
			DType:    util.GetDeviceType(chip.Path),
			Modalias: util.GetDeviceModalias(chip.Path),
			Platform: platform,
			Path:     chip.Path,
			Sensors:  sensorList,
		})
	}

	return list
}

// GetSensors collects all measurable features of a chip.
func GetSensors(chip gosensors.Chip) []*Feature {
	var sensorList []*Feature
	indexPerType := map[string]int{}

	features := chip.GetFeatures()
	for j := 0; j < len(features); j++ {
		feature := features[j]

		kind, ok := featureKinds[feature.Type]
		if !ok {
			continue
		}

		subfeatures := feature.GetSubFeatures()
		inputSubFeature, ok := findInputSubFeature(subfeatures)
		if !ok {
			continue
		}
		sensorInputPath := fmt.Sprintf("%s/%s", chip.Path, inputSubFeature.Name)

		indexPerType[kind.objectType]++

		sensorList = append(sensorList, &Feature{
			Label: util.GetLabel(chip.Path, inputSubFeature.Name),
			Index: indexPerType[kind.objectType],
			Type:  kind.objectType,
			Input: sensorInputPath,
			Scale: kind.scale,
			Value: inputSubFeature.GetValue(),
			Max:   subFeatureValue(subfeatures, maxSubFeatureTypes),
			Min:   subFeatureValue(subfeatures, minSubFeatureTypes),
		})
	}

	return sensorList
}

var inputSubFeatureTypes = []gosensors.SubFeatureType{
	gosensors.SubFeatureTypeTempInput,
	gosensors.SubFeatureTypeInInput,
	gosensors.SubFeatureTypeCurrInput,
	gosensors.SubFeatureTypePowerInput,
	gosensors.SubFeatureTypeFanInput,
}

var maxSubFeatureTypes = []gosensors.SubFeatureType{
	gosensors.SubFeatureTypeTempMax,
	gosensors.SubFeatureTypeInMax,
	gosensors.SubFeatureTypeCurrMax,
	gosensors.SubFeatureTypeFanMax,
}

var minSubFeatureTypes = []gosensors.SubFeatureType{
	gosensors.SubFeatureTypeTempMin,
	gosensors.SubFeatureTypeInMin,
	gosensors.SubFeatureTypeCurrMin,
	gosensors.SubFeatureTypeFanMin,
}

func findInputSubFeature(subfeatures []gosensors.SubFeature) (gosensors.SubFeature, bool) {
	for _, subfeature := range subfeatures {
		for _, inputType := range inputSubFeatureTypes {
			if subfeature.Type == inputType {
				return subfeature, true
			}
		}
	}
	return gosensors.SubFeature{}, false
}

func subFeatureValue(subfeatures []gosensors.SubFeature, types []gosensors.SubFeatureType) float64 {
	for _, subfeature := range subfeatures {
		for _, wanted := range types {
			if subfeature.Type == wanted {
				return subfeature.GetValue()
			}
		}
	}
	return -1
}

func computeIdentifier(chip gosensors.Chip) (name string) {
	name = chip.Prefix

	devicePath := chip.Path
	if len(name) <= 0 {
		name = util.GetDeviceName(devicePath)
	}

	if len(name) <= 0 {
		_, name = filepath.Split(devicePath)
	}

	identifier := name
	switch chip.Bus.Type {
	case BusTypeIsa:
		identifier = fmt.Sprintf("%s-isa-%d", identifier, chip.Bus.Nr)
	case BusTypePci:
		identifier = fmt.Sprintf("%s-pci-%d", identifier, chip.Bus.Nr)
	case BusTypeAcpi:
		identifier = fmt.Sprintf("%s-acpi-%d", identifier, chip.Bus.Nr)
	}

	return identifier
}

func findPlatform(devicePath string) string {
	platformRegex := regexp.MustCompile(".*/platform/{}/.*")
	return platformRegex.FindString(devicePath)
}

// ResolveSensorConfig fills in the input path of a hwmon sensor
// configuration by matching the platform regex and feature index against
// the detected chips. Returns the matched feature.
func ResolveSensorConfig(config *configuration.SensorConfig, chips []*Chip) (*Feature, error) {
	objectType := config.Type
	if len(objectType) <= 0 {
		objectType = "temperature"
	}

	for _, chip := range chips {
		matched, err := regexp.MatchString("(?i)"+config.HwMon.Platform, chip.Platform)
		if err != nil {
			return nil, fmt.Errorf("sensor %s: invalid platform regex %q: %w", config.ID, config.HwMon.Platform, err)
		}
		if !matched {
			continue
		}

		for _, feature := range chip.Sensors {
			if feature.Type == objectType && feature.Index == config.HwMon.Index {
				config.HwMon.Input = feature.Input
				return feature, nil
			}
		}
	}

	return nil, fmt.Errorf("sensor %s: no hwmon device with platform %q has %s feature %d",
		config.ID, config.HwMon.Platform, objectType, config.HwMon.Index)
}
