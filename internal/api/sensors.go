package api

import (
	"math"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/markusressel/sensormon/internal/sensors"
	"github.com/qdm12/reprint"
)

type (
	// SensorDto mirrors a sensor snapshot with JSON-safe numbers: an
	// unknown reading is null, never NaN.
	SensorDto struct {
		Name       string                      `json:"name"`
		ObjectType string                      `json:"objectType"`
		Unit       string                      `json:"unit"`
		Value      *float64                    `json:"value"`
		RawValue   *float64                    `json:"rawValue"`
		MinValue   float64                     `json:"minValue"`
		MaxValue   float64                     `json:"maxValue"`
		Available  bool                        `json:"available"`
		Functional bool                        `json:"functional"`
		Overridden bool                        `json:"overridden"`
		ErrCount   int                         `json:"errCount"`
		Thresholds []sensors.ThresholdSnapshot `json:"thresholds"`
	}

	ValueRequest struct {
		Value *float64 `json:"value"`
	}

	ThresholdRequest struct {
		Property string   `json:"property"`
		Value    *float64 `json:"value"`
	}
)

func registerSensorEndpoints(rest *echo.Echo, deps Deps) {
	group := rest.Group("/sensor")

	group.GET("/", getSensors)
	group.GET("/:"+urlParamId+"/", getSensor)
	group.PUT("/:"+urlParamId+"/value/", func(c echo.Context) error {
		return setSensorValue(c, deps)
	})
	group.DELETE("/:"+urlParamId+"/value/", clearSensorOverride)
	group.PUT("/:"+urlParamId+"/threshold/", func(c echo.Context) error {
		return setSensorThreshold(c, deps)
	})
}

func nullableFloat(value float64) *float64 {
	if math.IsNaN(value) {
		return nil
	}
	return &value
}

func toDto(snapshot *sensors.Snapshot) SensorDto {
	var thresholds []sensors.ThresholdSnapshot
	_ = reprint.FromTo(&snapshot.Thresholds, &thresholds)
	return SensorDto{
		Name:       snapshot.Name,
		ObjectType: snapshot.ObjectType,
		Unit:       snapshot.Unit,
		Value:      nullableFloat(snapshot.Value),
		RawValue:   nullableFloat(snapshot.RawValue),
		MinValue:   snapshot.MinValue,
		MaxValue:   snapshot.MaxValue,
		Available:  snapshot.Available,
		Functional: snapshot.Functional,
		Overridden: snapshot.Overridden,
		ErrCount:   snapshot.ErrCount,
		Thresholds: thresholds,
	}
}

func getSensors(c echo.Context) error {
	data := map[string]SensorDto{}
	for id, sensor := range sensors.SensorMap.Items() {
		snapshot := sensor.Snapshot()
		if snapshot == nil {
			continue
		}
		data[id] = toDto(snapshot)
	}
	return c.JSONPretty(http.StatusOK, data, indentationChar)
}

func getSensor(c echo.Context) error {
	id := c.Param(urlParamId)

	sensor, exists := sensors.SensorMap.Get(id)
	if !exists {
		return returnNotFound(c, id)
	}
	return c.JSONPretty(http.StatusOK, toDto(sensor.Snapshot()), indentationChar)
}

// setSensorValue pins the sensor to the written value until the override
// is cleared again.
func setSensorValue(c echo.Context, deps Deps) error {
	id := c.Param(urlParamId)

	sensor, exists := sensors.SensorMap.Get(id)
	if !exists {
		return returnNotFound(c, id)
	}

	var request ValueRequest
	if err := c.Bind(&request); err != nil || request.Value == nil {
		return returnBadRequest(c, "expected body: {\"value\": <number>}")
	}

	property, exists := deps.Registry.Get(sensor.PropertyName("Value"))
	if !exists {
		return returnNotFound(c, id)
	}
	if err := property.ExternalSet(*request.Value); err != nil {
		return returnError(c, err)
	}
	return c.NoContent(http.StatusOK)
}

func clearSensorOverride(c echo.Context) error {
	id := c.Param(urlParamId)

	sensor, exists := sensors.SensorMap.Get(id)
	if !exists {
		return returnNotFound(c, id)
	}
	sensor.DispatchClearOverride()
	return c.NoContent(http.StatusOK)
}

func setSensorThreshold(c echo.Context, deps Deps) error {
	id := c.Param(urlParamId)

	sensor, exists := sensors.SensorMap.Get(id)
	if !exists {
		return returnNotFound(c, id)
	}

	var request ThresholdRequest
	if err := c.Bind(&request); err != nil || request.Value == nil || request.Property == "" {
		return returnBadRequest(c, "expected body: {\"property\": \"CriticalHigh\", \"value\": <number>}")
	}

	property, exists := deps.Registry.Get(sensor.PropertyName(request.Property))
	if !exists {
		return returnNotFound(c, request.Property)
	}
	if err := property.ExternalSet(*request.Value); err != nil {
		return returnError(c, err)
	}
	return c.NoContent(http.StatusOK)
}
