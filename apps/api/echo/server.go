package echoapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/classroom"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/services/metrics"
)

type (
	Options struct {
		Address        string
		DisableReqLogs bool

		Conf           *core.Config
		Logger         core.Logger
		UserSvc        *user.Service
		ClassroomSvc   *classroom.Service
		SignalShutdown func()
	}

	Server interface {
		http.Handler
		Start()
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(observeRequestDuration)
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	jwt := middleware.JWTWithConfig(newJWTConfig(conf))

	registerUserAPI(s.app, conf, s.opts.UserSvc)
	registerClassroomAPI(s.app, jwt, s.opts.ClassroomSvc, s.opts.UserSvc)
}

func (s *server) Start() {
	s.app.Logger.Fatal(s.app.Start(s.opts.Address))
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Academia API!")
}

func observeRequestDuration(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		start := time.Now()
		err := next(ctx)

		// the error handler has not run yet; approximate the status for failed requests
		status := ctx.Response().Status
		if herr, ok := err.(*echo.HTTPError); ok {
			status = herr.Code
		}
		metrics.APIRequestDuration.
			WithLabelValues(ctx.Path(), ctx.Request().Method, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
		return err
	}
}
