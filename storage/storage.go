// Package storage opens the repositories of the configured database engine.
package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/academic"
	"github.com/trezcool/darasa/core/board"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/storage/database"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
	mongorepos "github.com/trezcool/darasa/storage/database/mongo"
	sqlxrepos "github.com/trezcool/darasa/storage/database/sqlx"
)

// Stores groups the repositories backed by a single database.
type Stores struct {
	Academic academic.Store
	Schools  school.Repository
	Board    board.Repository

	// SQL is the postgres connection; nil for the other engines.
	SQL *sqlx.DB

	close func() error
}

// Open connects to the database of conf.Database.Engine. SQL databases are created and migrated
// when needed, mongodb collections get their indexes.
func Open(ctx context.Context, conf *core.Config, logger core.Logger) (*Stores, error) {
	switch engine := conf.Database.Engine; engine {
	case "memory":
		db := inmemdb.Open()
		return &Stores{
			Academic: inmemdb.NewAcademicStore(db),
			Schools:  inmemdb.NewSchoolRepository(db),
			Board:    inmemdb.NewBoardRepository(db),
			close:    func() error { return nil },
		}, nil

	case "postgres", "pgx":
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}
		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}
		if err = database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		logger.Info(fmt.Sprintf("connected to %s database %q at %s", engine, conf.Database.Name, conf.Database.Address()))
		return &Stores{
			Academic: sqlxrepos.NewAcademicStore(db),
			Schools:  sqlxrepos.NewSchoolRepository(db),
			Board:    sqlxrepos.NewBoardRepository(db),
			SQL:      db,
			close:    db.Close,
		}, nil

	case "mongodb":
		db, err := mongorepos.Open(ctx, conf.Database.URI, conf.Database.Name)
		if err != nil {
			return nil, err
		}
		disconnect := func() error { return db.Client().Disconnect(context.Background()) }
		if err = mongorepos.EnsureIndexes(ctx, db); err != nil {
			_ = disconnect()
			return nil, err
		}
		logger.Info(fmt.Sprintf("connected to mongodb database %q", conf.Database.Name))
		return &Stores{
			Academic: mongorepos.NewAcademicStore(db),
			Schools:  mongorepos.NewSchoolRepository(db),
			Board:    mongorepos.NewBoardRepository(db),
			close:    disconnect,
		}, nil

	default:
		return nil, errors.Errorf("unknown database engine %q", engine)
	}
}

func (s *Stores) Close() error {
	return s.close()
}
