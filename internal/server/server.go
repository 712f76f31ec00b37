package server

import (
	"net/http"
	"sweer/internal/config"
	"sweer/internal/ports"
	"sweer/pkg/logg"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	serverName  = "Server"
	maxBodySize = 16 << 20
)

// Server exposes the controller as an HTTP/JSON API. Every operation answers
// with HTTP 200 and a status/message envelope.
type Server struct {
	config     *config.Config
	logger     *zap.Logger
	controller ports.Controller
	router     chi.Router
}

type Params struct {
	fx.In

	Config     *config.Config
	Logger     *zap.Logger
	Controller ports.Controller
}

func NewServer(params Params) *Server {
	s := &Server{
		config:     params.Config,
		logger:     params.Logger.With(zap.String(logg.Layer, serverName)),
		controller: params.Controller,
	}

	s.router = s.routes()

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(s.accessLog)
	router.Use(middleware.RequestSize(maxBodySize))

	router.Get("/metrics", promhttp.Handler().ServeHTTP)

	router.Get("/info", s.handleInfo)
	router.Post("/open", s.handleOpen)
	router.Post("/close", s.handleClose)
	router.Get("/screenshot", s.handleScreenshot)
	router.Post("/click", s.handleClick)
	router.Post("/type", s.handleType)
	router.Post("/scroll", s.handleScroll)
	router.Post("/get_text", s.handleGetText)
	router.Post("/get_attribute", s.handleGetAttribute)
	router.Post("/execute_script", s.handleExecuteScript)
	router.Post("/navigate", s.handleNavigate)
	router.Post("/reload", s.handleReload)
	router.Post("/list_elements", s.handleListElements)

	return router
}
