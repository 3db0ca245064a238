package http

import "github.com/labstack/echo/v4"

// Handler is implemented by every API surface the server mounts. The
// server calls RegisterRoutes once at startup, before Start.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}
