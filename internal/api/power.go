package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/markusressel/sensormon/internal/power"
)

type PowerDto struct {
	PowerOn  bool `json:"powerOn"`
	BiosPost bool `json:"biosPost"`
}

type PowerRequest struct {
	PowerOn  *bool `json:"powerOn"`
	BiosPost *bool `json:"biosPost"`
}

func registerPowerEndpoints(rest *echo.Echo, deps Deps) {
	group := rest.Group("/power")

	group.GET("/", func(c echo.Context) error {
		return getPower(c, deps)
	})
	group.PUT("/", func(c echo.Context) error {
		return setPower(c, deps)
	})
}

func getPower(c echo.Context, deps Deps) error {
	dto := PowerDto{}
	if prop, ok := deps.Registry.Get(power.PropertyPowerOn); ok {
		dto.PowerOn, _ = prop.Value().(bool)
	}
	if prop, ok := deps.Registry.Get(power.PropertyBiosPost); ok {
		dto.BiosPost, _ = prop.Value().(bool)
	}
	return c.JSONPretty(http.StatusOK, dto, indentationChar)
}

// setPower feeds host power notifications into the gate. Intended for
// the platform's power control integration, not for interactive use.
func setPower(c echo.Context, deps Deps) error {
	var request PowerRequest
	if err := c.Bind(&request); err != nil {
		return returnBadRequest(c, "expected body: {\"powerOn\": <bool>, \"biosPost\": <bool>}")
	}

	if request.PowerOn != nil {
		if prop, ok := deps.Registry.Get(power.PropertyPowerOn); ok {
			if err := prop.ExternalSet(*request.PowerOn); err != nil {
				return returnError(c, err)
			}
		}
	}
	if request.BiosPost != nil {
		if prop, ok := deps.Registry.Get(power.PropertyBiosPost); ok {
			if err := prop.ExternalSet(*request.BiosPost); err != nil {
				return returnError(c, err)
			}
		}
	}
	return c.NoContent(http.StatusOK)
}
