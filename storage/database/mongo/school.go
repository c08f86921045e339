package mongorepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/school"
)

type schoolDoc struct {
	ID           string     `bson:"_id"`
	Name         string     `bson:"name"`
	SchoolName   string     `bson:"school_name"`
	Email        string     `bson:"email"`
	PasswordHash []byte     `bson:"password_hash"`
	CreatedAt    time.Time  `bson:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at"`
	LastLogin    *time.Time `bson:"last_login,omitempty"`
}

func newSchoolDoc(s school.School) schoolDoc {
	doc := schoolDoc{
		ID:           s.ID,
		Name:         s.Name,
		SchoolName:   s.SchoolName,
		Email:        s.Email,
		PasswordHash: s.PasswordHash,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
	if !s.LastLogin.IsZero() {
		doc.LastLogin = &s.LastLogin
	}
	return doc
}

func (d schoolDoc) toSchool() school.School {
	sch := school.School{
		ID:           d.ID,
		Name:         d.Name,
		SchoolName:   d.SchoolName,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if d.LastLogin != nil {
		sch.LastLogin = *d.LastLogin
	}
	return sch
}

type schoolRepository struct {
	col *mongo.Collection
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *mongo.Database) school.Repository {
	return &schoolRepository{col: db.Collection(schoolsCol)}
}

func schoolWriteError(err error, op string) error {
	switch {
	case duplicateOn(err, "school_name"):
		return core.NewDuplicateKeyError("school_name", "a school with this name already exists")
	case duplicateOn(err, "email"):
		return core.NewDuplicateKeyError("email", "a school with this email already exists")
	}
	return core.StoreFailure(err, op)
}

func (repo *schoolRepository) CreateSchool(ctx context.Context, sch school.School) (school.School, error) {
	sch.ID = uuid.NewString()
	if _, err := repo.col.InsertOne(ctx, newSchoolDoc(sch)); err != nil {
		return school.School{}, schoolWriteError(err, "inserting school")
	}
	return sch, nil
}

func (repo *schoolRepository) GetSchool(ctx context.Context, filter school.Filter) (school.School, error) {
	q := bson.M{}
	if filter.ID != "" {
		q["_id"] = filter.ID
	}
	if filter.Email != "" {
		q["email"] = filter.Email
	}
	if filter.SchoolName != "" {
		q["school_name"] = filter.SchoolName
	}
	if len(q) == 0 {
		return school.School{}, core.NewNotFoundError("school")
	}

	var doc schoolDoc
	if err := repo.col.FindOne(ctx, q).Decode(&doc); err != nil {
		return school.School{}, notFoundOr(err, "school", "finding school")
	}
	return doc.toSchool(), nil
}

func (repo *schoolRepository) UpdateSchool(ctx context.Context, sch school.School) (school.School, error) {
	res, err := repo.col.ReplaceOne(ctx, bson.M{"_id": sch.ID}, newSchoolDoc(sch))
	if err != nil {
		return school.School{}, schoolWriteError(err, "replacing school")
	}
	if res.MatchedCount == 0 {
		return school.School{}, core.NewNotFoundError("school")
	}
	return sch, nil
}
