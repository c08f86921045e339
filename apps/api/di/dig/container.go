package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/academic"
	"github.com/trezcool/darasa/core/board"
	"github.com/trezcool/darasa/core/cascade"
	"github.com/trezcool/darasa/core/ledger"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/core/validation"
	emailsvc "github.com/trezcool/darasa/services/email"
	logsvc "github.com/trezcool/darasa/services/logger"
	metricsvc "github.com/trezcool/darasa/services/metrics"
	"github.com/trezcool/darasa/storage"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Repositories splits the opened storage into the repositories the services depend on.
type Repositories struct {
	dig.Out
	Academic academic.Store
	Schools  school.Repository
	Board    board.Repository
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newStorage(conf *core.Config, loggerParam DBLoggerParam) *storage.Stores {
	stores, err := storage.Open(context.Background(), conf, loggerParam.Logger)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return stores
}

func newRepositories(stores *storage.Stores) Repositories {
	return Repositories{Academic: stores.Academic, Schools: stores.Schools, Board: stores.Board}
}

func newMetrics(pm *metricsvc.PrometheusMetrics) core.Metrics {
	return pm
}

func newServer(
	conf *core.Config,
	logger core.Logger,
	translator ut.Translator,
	schoolSvc *school.Service,
	academicSvc *academic.Service,
	boardSvc *board.Service,
	l *ledger.Ledger,
	engine *cascade.Engine,
) *echoapi.Server {
	return echoapi.NewServer(conf, logger, translator, echoapi.Deps{
		SchoolSvc:   schoolSvc,
		AcademicSvc: academicSvc,
		BoardSvc:    boardSvc,
		Ledger:      l,
		Cascade:     engine,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStorage))
	must(c.Provide(newRepositories))
	must(c.Provide(emailsvc.NewService))
	must(c.Provide(validation.New))
	must(c.Provide(metricsvc.NewPrometheusMetrics))
	must(c.Provide(newMetrics))
	must(c.Provide(school.NewService))
	must(c.Provide(academic.NewService))
	must(c.Provide(board.NewService))
	must(c.Provide(ledger.New))
	must(c.Provide(cascade.NewEngine))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
