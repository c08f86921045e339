package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/storage/database"
)

const schoolColumns = "id, name, school_name, email, password_hash, created_at, updated_at, last_login"

type schoolRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	SchoolName   string    `db:"school_name"`
	Email        string    `db:"email"`
	PasswordHash []byte    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	LastLogin    null.Time `db:"last_login"`
}

func (r schoolRow) toSchool() school.School {
	sch := school.School{
		ID:           r.ID,
		Name:         r.Name,
		SchoolName:   r.SchoolName,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.LastLogin.Valid {
		sch.LastLogin = r.LastLogin.Time.UTC()
	}
	return sch
}

type schoolRepository struct {
	db *sqlx.DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *sqlx.DB) school.Repository {
	return &schoolRepository{db: db}
}

func schoolWriteError(err error, op string) error {
	if constraint, dup := database.UniqueViolation(err); dup {
		if constraint == "schools_school_name_key" {
			return core.NewDuplicateKeyError("school_name", "a school with this name already exists")
		}
		return core.NewDuplicateKeyError("email", "a school with this email already exists")
	}
	return core.StoreFailure(err, op)
}

func (repo *schoolRepository) CreateSchool(ctx context.Context, sch school.School) (school.School, error) {
	sch.ID = uuid.NewString()
	_, err := repo.db.ExecContext(ctx,
		"INSERT INTO schools ("+schoolColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		sch.ID, sch.Name, sch.SchoolName, sch.Email, sch.PasswordHash, sch.CreatedAt, sch.UpdatedAt,
		null.NewTime(sch.LastLogin, !sch.LastLogin.IsZero()),
	)
	if err != nil {
		return school.School{}, schoolWriteError(err, "inserting school")
	}
	return sch, nil
}

func (repo *schoolRepository) GetSchool(ctx context.Context, filter school.Filter) (school.School, error) {
	c := new(clause)
	if filter.ID != "" {
		c.add("id = ?", filter.ID)
	}
	if filter.Email != "" {
		c.add("email = ?", filter.Email)
	}
	if filter.SchoolName != "" {
		c.add("school_name = ?", filter.SchoolName)
	}
	if len(c.conds) == 0 {
		return school.School{}, core.NewNotFoundError("school")
	}

	var row schoolRow
	if err := sqlx.GetContext(ctx, repo.db, &row, "SELECT "+schoolColumns+" FROM schools"+c.where()+" LIMIT 1", c.args...); err != nil {
		return school.School{}, notFoundOr(err, "school", "selecting school")
	}
	return row.toSchool(), nil
}

func (repo *schoolRepository) UpdateSchool(ctx context.Context, sch school.School) (school.School, error) {
	n, err := exec(ctx, repo.db, "updating school",
		`UPDATE schools SET name = $2, school_name = $3, email = $4, password_hash = $5, updated_at = $6, last_login = $7
		WHERE id = $1`,
		sch.ID, sch.Name, sch.SchoolName, sch.Email, sch.PasswordHash, sch.UpdatedAt,
		null.NewTime(sch.LastLogin, !sch.LastLogin.IsZero()),
	)
	if err != nil {
		return school.School{}, schoolWriteError(err, "updating school")
	}
	if n == 0 {
		return school.School{}, core.NewNotFoundError("school")
	}
	return sch, nil
}
