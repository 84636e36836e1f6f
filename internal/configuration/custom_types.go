package configuration

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// PowerStateValue is the configuration spelling of a power-gating mode.
type PowerStateValue string

const (
	PowerStateAlways   PowerStateValue = "always"
	PowerStateOn       PowerStateValue = "on"
	PowerStateBiosPost PowerStateValue = "biosPost"
)

// decodeHooks composes the default viper hooks with the config-specific ones.
func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		powerStateHookFunc(),
	)
}

// powerStateHookFunc normalizes power state spellings and defaults empty
// values to "always".
func powerStateHookFunc() mapstructure.DecodeHookFuncType {
	powerStateType := reflect.TypeOf(PowerStateValue(""))

	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if t != powerStateType {
			return data, nil
		}

		raw, ok := data.(string)
		if !ok {
			return data, nil
		}

		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "", "always":
			return PowerStateAlways, nil
		case "on", "poweron":
			return PowerStateOn, nil
		case "biospost", "post":
			return PowerStateBiosPost, nil
		}
		return nil, fmt.Errorf("unknown power state: %q", raw)
	}
}
