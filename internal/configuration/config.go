package configuration

import (
	"os"
	"time"

	"github.com/markusressel/sensormon/internal/ui"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

type Configuration struct {
	DbPath string `json:"dbPath"`

	// PollRate is the shared cadence all sensors without an own pollRate
	// are read at.
	PollRate time.Duration `json:"pollRate"`

	// EventPollRate is the cadence of combined-event fault sources.
	EventPollRate time.Duration `json:"eventPollRate"`

	// RebuildDebounce is the quiet period after a configuration change
	// before the sensor population is rebuilt.
	RebuildDebounce time.Duration `json:"rebuildDebounce"`

	Statistics StatisticsConfig `json:"statistics"`
	Api        ApiConfig        `json:"api"`

	Sensors []SensorConfig `json:"sensors"`
	Events  []EventConfig  `json:"events"`
}

type StatisticsConfig struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port"`
}

type ApiConfig struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port"`
}

var CurrentConfig Configuration

// InitConfig reads in config file and ENV variables if set.
func InitConfig(cfgFile string) {
	viper.SetConfigName("sensormon")

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			ui.Error("Couldn't detect home directory: %v", err)
			os.Exit(1)
		}

		viper.AddConfigPath(".")
		viper.AddConfigPath(home)
		viper.AddConfigPath("/etc/sensormon/")
	}

	viper.AutomaticEnv() // read in environment variables that match

	setDefaultValues()
}

func setDefaultValues() {
	viper.SetDefault("dbpath", "/etc/sensormon/sensormon.db")
	viper.SetDefault("PollRate", 1*time.Second)
	viper.SetDefault("EventPollRate", 1*time.Second)
	viper.SetDefault("RebuildDebounce", 2*time.Second)

	viper.SetDefault("statistics.enabled", false)
	viper.SetDefault("statistics.port", 9640)
	viper.SetDefault("api.enabled", false)
	viper.SetDefault("api.port", 9641)

	viper.SetDefault("sensors", []SensorConfig{})
	viper.SetDefault("events", []EventConfig{})
}

// DetectConfigFile returns the path of the configuration file viper found.
func DetectConfigFile() string {
	if err := viper.ReadInConfig(); err != nil {
		// config file is required, so we fail here
		ui.Fatal("Error reading config file, %s", err)
	}
	// this is only populated _after_ ReadInConfig()
	return viper.ConfigFileUsed()
}

func LoadConfig() {
	err := viper.Unmarshal(&CurrentConfig, viper.DecodeHook(decodeHooks()))
	if err != nil {
		ui.Fatal("unable to decode into struct, %v", err)
	}
}
