package http

import "github.com/labstack/echo/v4"

// Handler is a route group mounted by NewServer.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}
