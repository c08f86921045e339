package mongorepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/board"
)

type (
	noticeDoc struct {
		ID          string    `bson:"_id"`
		SchoolID    string    `bson:"school_id"`
		Title       string    `bson:"title"`
		Description string    `bson:"description"`
		Date        time.Time `bson:"date"`
		CreatedAt   time.Time `bson:"created_at"`
		UpdatedAt   time.Time `bson:"updated_at"`
	}

	complainDoc struct {
		ID          string    `bson:"_id"`
		SchoolID    string    `bson:"school_id"`
		AuthorID    string    `bson:"author_id"`
		AuthorRole  string    `bson:"author_role"`
		Title       string    `bson:"title"`
		Description string    `bson:"description"`
		Date        time.Time `bson:"date"`
		CreatedAt   time.Time `bson:"created_at"`
	}
)

func (d noticeDoc) toNotice() board.Notice {
	return board.Notice{
		ID:          d.ID,
		SchoolID:    d.SchoolID,
		Title:       d.Title,
		Description: d.Description,
		Date:        core.StartOfDay(d.Date),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func (d complainDoc) toComplain() board.Complain {
	return board.Complain{
		ID:          d.ID,
		SchoolID:    d.SchoolID,
		AuthorID:    d.AuthorID,
		AuthorRole:  core.Role(d.AuthorRole),
		Title:       d.Title,
		Description: d.Description,
		Date:        core.StartOfDay(d.Date),
		CreatedAt:   d.CreatedAt,
	}
}

type boardRepository struct {
	notices   *mongo.Collection
	complains *mongo.Collection
}

var _ board.Repository = (*boardRepository)(nil) // interface compliance check

func NewBoardRepository(db *mongo.Database) board.Repository {
	return &boardRepository{
		notices:   db.Collection(noticesCol),
		complains: db.Collection(complainsCol),
	}
}

func (repo *boardRepository) CreateNotice(ctx context.Context, notice board.Notice) (board.Notice, error) {
	notice.ID = uuid.NewString()
	doc := noticeDoc{
		ID:          notice.ID,
		SchoolID:    notice.SchoolID,
		Title:       notice.Title,
		Description: notice.Description,
		Date:        notice.Date,
		CreatedAt:   notice.CreatedAt,
		UpdatedAt:   notice.UpdatedAt,
	}
	if _, err := repo.notices.InsertOne(ctx, doc); err != nil {
		return board.Notice{}, core.StoreFailure(err, "inserting notice")
	}
	return notice, nil
}

func (repo *boardRepository) GetNotice(ctx context.Context, id string) (board.Notice, error) {
	var doc noticeDoc
	if err := repo.notices.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return board.Notice{}, notFoundOr(err, "notice", "finding notice")
	}
	return doc.toNotice(), nil
}

func (repo *boardRepository) QueryNotices(ctx context.Context, schoolID string) ([]board.Notice, error) {
	docs, err := find[noticeDoc](ctx, repo.notices, bson.M{"school_id": schoolID}, "finding notices")
	if err != nil {
		return nil, err
	}
	notices := make([]board.Notice, len(docs))
	for i, d := range docs {
		notices[i] = d.toNotice()
	}
	return notices, nil
}

func (repo *boardRepository) UpdateNotice(ctx context.Context, notice board.Notice) (board.Notice, error) {
	res, err := repo.notices.UpdateByID(ctx, notice.ID, bson.M{"$set": bson.M{
		"title":       notice.Title,
		"description": notice.Description,
		"date":        notice.Date,
		"updated_at":  notice.UpdatedAt,
	}})
	if err != nil {
		return board.Notice{}, core.StoreFailure(err, "updating notice")
	}
	if res.MatchedCount == 0 {
		return board.Notice{}, core.NewNotFoundError("notice")
	}
	return notice, nil
}

func (repo *boardRepository) DeleteNotices(ctx context.Context, filter board.NoticeFilter) (int, error) {
	if filter.IsZero() {
		return 0, nil
	}
	q := bson.M{}
	if len(filter.IDs) > 0 {
		q["_id"] = in(filter.IDs)
	}
	if filter.SchoolID != "" {
		q["school_id"] = filter.SchoolID
	}
	res, err := repo.notices.DeleteMany(ctx, q)
	if err != nil {
		return 0, core.StoreFailure(err, "deleting notices")
	}
	return int(res.DeletedCount), nil
}

func (repo *boardRepository) CreateComplain(ctx context.Context, complain board.Complain) (board.Complain, error) {
	complain.ID = uuid.NewString()
	doc := complainDoc{
		ID:          complain.ID,
		SchoolID:    complain.SchoolID,
		AuthorID:    complain.AuthorID,
		AuthorRole:  string(complain.AuthorRole),
		Title:       complain.Title,
		Description: complain.Description,
		Date:        complain.Date,
		CreatedAt:   complain.CreatedAt,
	}
	if _, err := repo.complains.InsertOne(ctx, doc); err != nil {
		return board.Complain{}, core.StoreFailure(err, "inserting complain")
	}
	return complain, nil
}

func (repo *boardRepository) QueryComplains(ctx context.Context, schoolID string) ([]board.Complain, error) {
	docs, err := find[complainDoc](ctx, repo.complains, bson.M{"school_id": schoolID}, "finding complains")
	if err != nil {
		return nil, err
	}
	complains := make([]board.Complain, len(docs))
	for i, d := range docs {
		complains[i] = d.toComplain()
	}
	return complains, nil
}
