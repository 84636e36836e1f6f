package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type EventDto struct {
	Name       string `json:"name"`
	Functional bool   `json:"functional"`
}

func registerEventEndpoints(rest *echo.Echo, deps Deps) {
	group := rest.Group("/event")

	group.GET("/", func(c echo.Context) error {
		return getEvents(c, deps)
	})
	group.GET("/:"+urlParamId+"/", func(c echo.Context) error {
		return getEvent(c, deps)
	})
}

func getEvents(c echo.Context, deps Deps) error {
	data := map[string]EventDto{}
	for _, event := range deps.Events() {
		data[event.Name] = EventDto{Name: event.Name, Functional: event.Functional()}
	}
	return c.JSONPretty(http.StatusOK, data, indentationChar)
}

func getEvent(c echo.Context, deps Deps) error {
	id := c.Param(urlParamId)

	for _, event := range deps.Events() {
		if event.Name == id {
			return c.JSONPretty(http.StatusOK, EventDto{Name: event.Name, Functional: event.Functional()}, indentationChar)
		}
	}
	return returnNotFound(c, id)
}
