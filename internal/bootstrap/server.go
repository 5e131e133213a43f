package bootstrap

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	httpecho "github.com/mohammadpnp/school-import/internal/interfaces/http/echo"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewHTTPServer(a *App) *echo.Echo {
	server := echo.New()
	server.HideBanner = true
	server.HidePort = true

	server.Use(middleware.Recover())
	server.Use(middleware.RequestID())
	server.Use(middleware.BodyLimit(a.Config.HTTP.BodyLimit))

	httpecho.RegisterRoutes(server,
		httpecho.NewImportHandler(a.Controller),
		httpecho.NewSchoolHandler(a.Schools),
	)

	server.GET("/healthz", func(c echo.Context) error {
		if err := a.Pool.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	server.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return server
}
