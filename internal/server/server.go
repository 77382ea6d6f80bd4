package server

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/llebout/random-imgur-wall/internal/config"
	"github.com/llebout/random-imgur-wall/internal/errors"
)

// viewerHub is the slice of the broadcast registry the server needs.
type viewerHub interface {
	Register(conn *gws.Conn) (uuid.UUID, error)
	Unregister(id uuid.UUID)
	Broadcast(data []byte)
	ViewerCount() int
}

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	hub       viewerHub
	startTime time.Time
}

func NewServer(cfg *config.Config, hub viewerHub) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(errors.Middleware())

	srv := &Server{
		echo:      e,
		config:    cfg,
		hub:       hub,
		startTime: time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
