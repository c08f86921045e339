package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/school"
)

type schoolRepository struct {
	db *DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db}
}

func (repo *schoolRepository) CreateSchool(_ context.Context, sch school.School) (school.School, error) {
	err := repo.db.update(func(t *tables) error {
		if len(t.schools.filter(school.Filter{Email: sch.Email}.Match)) > 0 {
			return core.NewDuplicateKeyError("email", "a school with this email already exists")
		}
		if len(t.schools.filter(school.Filter{SchoolName: sch.SchoolName}.Match)) > 0 {
			return core.NewDuplicateKeyError("school_name", "a school with this name already exists")
		}
		sch.ID = uuid.NewString()
		t.schools.insert(t, sch.ID, sch)
		return nil
	})
	if err != nil {
		return school.School{}, err
	}
	return sch, nil
}

func (repo *schoolRepository) GetSchool(_ context.Context, filter school.Filter) (sch school.School, err error) {
	err = repo.db.view(func(t *tables) error {
		found := t.schools.filter(filter.Match)
		if len(found) == 0 {
			return core.NewNotFoundError("school")
		}
		sch = found[0]
		return nil
	})
	return
}

func (repo *schoolRepository) UpdateSchool(_ context.Context, sch school.School) (school.School, error) {
	err := repo.db.update(func(t *tables) error {
		if !t.schools.replace(t, sch.ID, sch) {
			return core.NewNotFoundError("school")
		}
		return nil
	})
	if err != nil {
		return school.School{}, err
	}
	return sch, nil
}
