package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/board"
)

const (
	noticeColumns   = "id, school_id, title, description, date, created_at, updated_at"
	complainColumns = "id, school_id, author_id, author_role, title, description, date, created_at"
)

type (
	noticeRow struct {
		ID          string    `db:"id"`
		SchoolID    string    `db:"school_id"`
		Title       string    `db:"title"`
		Description string    `db:"description"`
		Date        time.Time `db:"date"`
		CreatedAt   time.Time `db:"created_at"`
		UpdatedAt   time.Time `db:"updated_at"`
	}

	complainRow struct {
		ID          string    `db:"id"`
		SchoolID    string    `db:"school_id"`
		AuthorID    string    `db:"author_id"`
		AuthorRole  string    `db:"author_role"`
		Title       string    `db:"title"`
		Description string    `db:"description"`
		Date        time.Time `db:"date"`
		CreatedAt   time.Time `db:"created_at"`
	}
)

func (r noticeRow) toNotice() board.Notice {
	return board.Notice{
		ID:          r.ID,
		SchoolID:    r.SchoolID,
		Title:       r.Title,
		Description: r.Description,
		Date:        core.StartOfDay(r.Date),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func (r complainRow) toComplain() board.Complain {
	return board.Complain{
		ID:          r.ID,
		SchoolID:    r.SchoolID,
		AuthorID:    r.AuthorID,
		AuthorRole:  core.Role(r.AuthorRole),
		Title:       r.Title,
		Description: r.Description,
		Date:        core.StartOfDay(r.Date),
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

type boardRepository struct {
	db *sqlx.DB
}

var _ board.Repository = (*boardRepository)(nil) // interface compliance check

func NewBoardRepository(db *sqlx.DB) board.Repository {
	return &boardRepository{db: db}
}

func (repo *boardRepository) CreateNotice(ctx context.Context, notice board.Notice) (board.Notice, error) {
	notice.ID = uuid.NewString()
	_, err := repo.db.ExecContext(ctx,
		"INSERT INTO notices ("+noticeColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7)",
		notice.ID, notice.SchoolID, notice.Title, notice.Description, day(notice.Date), notice.CreatedAt, notice.UpdatedAt,
	)
	if err != nil {
		return board.Notice{}, core.StoreFailure(err, "inserting notice")
	}
	return notice, nil
}

func (repo *boardRepository) GetNotice(ctx context.Context, id string) (board.Notice, error) {
	var row noticeRow
	if err := sqlx.GetContext(ctx, repo.db, &row, "SELECT "+noticeColumns+" FROM notices WHERE id = $1", id); err != nil {
		return board.Notice{}, notFoundOr(err, "notice", "selecting notice")
	}
	return row.toNotice(), nil
}

func (repo *boardRepository) QueryNotices(ctx context.Context, schoolID string) ([]board.Notice, error) {
	var rows []noticeRow
	err := sqlx.SelectContext(ctx, repo.db, &rows,
		"SELECT "+noticeColumns+" FROM notices WHERE school_id = $1 ORDER BY seq", schoolID)
	if err != nil {
		return nil, core.StoreFailure(err, "selecting notices")
	}
	notices := make([]board.Notice, len(rows))
	for i, row := range rows {
		notices[i] = row.toNotice()
	}
	return notices, nil
}

func (repo *boardRepository) UpdateNotice(ctx context.Context, notice board.Notice) (board.Notice, error) {
	n, err := exec(ctx, repo.db, "updating notice",
		"UPDATE notices SET title = $2, description = $3, date = $4, updated_at = $5 WHERE id = $1",
		notice.ID, notice.Title, notice.Description, day(notice.Date), notice.UpdatedAt,
	)
	if err != nil {
		return board.Notice{}, err
	}
	if n == 0 {
		return board.Notice{}, core.NewNotFoundError("notice")
	}
	return notice, nil
}

func (repo *boardRepository) DeleteNotices(ctx context.Context, filter board.NoticeFilter) (int, error) {
	if filter.IsZero() {
		return 0, nil
	}
	c := new(clause)
	if len(filter.IDs) > 0 {
		c.add("id = ANY(?)", pq.Array(filter.IDs))
	}
	if filter.SchoolID != "" {
		c.add("school_id = ?", filter.SchoolID)
	}
	return exec(ctx, repo.db, "deleting notices", "DELETE FROM notices"+c.where(), c.args...)
}

func (repo *boardRepository) CreateComplain(ctx context.Context, complain board.Complain) (board.Complain, error) {
	complain.ID = uuid.NewString()
	_, err := repo.db.ExecContext(ctx,
		"INSERT INTO complains ("+complainColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		complain.ID, complain.SchoolID, complain.AuthorID, string(complain.AuthorRole), complain.Title,
		complain.Description, day(complain.Date), complain.CreatedAt,
	)
	if err != nil {
		return board.Complain{}, core.StoreFailure(err, "inserting complain")
	}
	return complain, nil
}

func (repo *boardRepository) QueryComplains(ctx context.Context, schoolID string) ([]board.Complain, error) {
	var rows []complainRow
	err := sqlx.SelectContext(ctx, repo.db, &rows,
		"SELECT "+complainColumns+" FROM complains WHERE school_id = $1 ORDER BY seq", schoolID)
	if err != nil {
		return nil, core.StoreFailure(err, "selecting complains")
	}
	complains := make([]board.Complain, len(rows))
	for i, row := range rows {
		complains[i] = row.toComplain()
	}
	return complains, nil
}
