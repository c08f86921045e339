package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/academic"
	"github.com/trezcool/darasa/core/board"
	"github.com/trezcool/darasa/core/cascade"
	"github.com/trezcool/darasa/core/ledger"
	"github.com/trezcool/darasa/core/school"
)

// Deps are the services exposed by the API.
type Deps struct {
	SchoolSvc   *school.Service
	AcademicSvc *academic.Service
	BoardSvc    *board.Service
	Ledger      *ledger.Ledger
	Cascade     *cascade.Engine
}

type Server struct {
	conf     *core.Config
	logger   core.Logger
	app      *echo.Echo
	tokens   *TokenIssuer
	errors   chan error
	shutdown chan os.Signal
}

func NewServer(conf *core.Config, logger core.Logger, translator ut.Translator, deps Deps) *Server {
	s := &Server{
		conf:     conf,
		logger:   logger,
		app:      echo.New(),
		tokens:   NewTokenIssuer(conf),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup(translator, deps)
	return s
}

func (s *Server) setup(translator ut.Translator, deps Deps) {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.conf.Debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.JSONSerializer = strictJSONSerializer{}
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.logger, translator, s.SignalShutdown)
	s.app.Debug = s.conf.Debug

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	auth := s.tokens.Middleware()

	registerSchoolAPI(v1, auth, s.tokens, deps.SchoolSvc)
	registerAcademicAPI(v1, auth, s.tokens, deps.AcademicSvc, deps.Cascade)
	registerLedgerAPI(v1, auth, deps.Ledger)
	registerBoardAPI(v1, auth, deps.BoardSvc)
}

// Start listens on the configured address. Failures other than a shutdown are sent to Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

// SignalShutdown asks the owner of the Server to shut it down.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already signaled
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.conf.AppName+" API!")
}
