package httpapi

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes wires every route on e. Metrics are served from reg.
func RegisterRoutes(e *echo.Echo, h *Handler, reg *prometheus.Registry) {
	e.GET("/healthz", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	e.GET("/link", h.Link)
	e.GET("/qr", h.QR)

	events := e.Group("/events")
	events.GET("", h.ListEvents)
	events.POST("", h.CreateEvent)
	events.GET("/:id", h.GetEvent)
	events.PUT("/:id", h.UpdateEvent)
	events.DELETE("/:id", h.DeleteEvent)
	events.POST("/:id/entrants", h.Register)
	events.GET("/:id/roster", h.Roster)
	events.GET("/:id/export", h.Export)

	e.DELETE("/entrants/:id", h.RemoveEntrant)
	e.POST("/checkins", h.CheckIn)
	e.POST("/catches", h.RecordCatch)
	e.POST("/visits", h.RecordVisit)

	e.GET("/anglers", h.ListAnglers)
	e.POST("/anglers", h.CreateAngler)
	e.DELETE("/anglers/:id", h.DeleteAngler)

	e.GET("/stats/:year", h.Stats)

	e.GET("/remote", h.RemoteStatus)
	e.POST("/remote", h.ConnectRemote)
	e.DELETE("/remote", h.DisconnectRemote)
}
