package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/board"
)

type boardRepository struct {
	db *DB
}

var _ board.Repository = (*boardRepository)(nil) // interface compliance check

func NewBoardRepository(db *DB) board.Repository {
	return &boardRepository{db: db}
}

func (repo *boardRepository) CreateNotice(_ context.Context, notice board.Notice) (board.Notice, error) {
	_ = repo.db.update(func(t *tables) error {
		notice.ID = uuid.NewString()
		t.notices.insert(t, notice.ID, notice)
		return nil
	})
	return notice, nil
}

func (repo *boardRepository) GetNotice(_ context.Context, id string) (notice board.Notice, err error) {
	err = repo.db.view(func(t *tables) error {
		r, ok := t.notices[id]
		if !ok {
			return core.NewNotFoundError("notice")
		}
		notice = r.val
		return nil
	})
	return
}

func (repo *boardRepository) QueryNotices(_ context.Context, schoolID string) (notices []board.Notice, err error) {
	err = repo.db.view(func(t *tables) error {
		notices = t.notices.filter(func(n board.Notice) bool { return n.SchoolID == schoolID })
		return nil
	})
	return
}

func (repo *boardRepository) UpdateNotice(_ context.Context, notice board.Notice) (board.Notice, error) {
	err := repo.db.update(func(t *tables) error {
		if !t.notices.replace(t, notice.ID, notice) {
			return core.NewNotFoundError("notice")
		}
		return nil
	})
	if err != nil {
		return board.Notice{}, err
	}
	return notice, nil
}

func (repo *boardRepository) DeleteNotices(_ context.Context, filter board.NoticeFilter) (n int, err error) {
	if filter.IsZero() {
		return 0, nil
	}
	err = repo.db.update(func(t *tables) error {
		n = t.notices.remove(t, filter.Match)
		return nil
	})
	return
}

func (repo *boardRepository) CreateComplain(_ context.Context, complain board.Complain) (board.Complain, error) {
	_ = repo.db.update(func(t *tables) error {
		complain.ID = uuid.NewString()
		t.complains.insert(t, complain.ID, complain)
		return nil
	})
	return complain, nil
}

func (repo *boardRepository) QueryComplains(_ context.Context, schoolID string) (complains []board.Complain, err error) {
	err = repo.db.view(func(t *tables) error {
		complains = t.complains.filter(func(c board.Complain) bool { return c.SchoolID == schoolID })
		return nil
	})
	return
}
