package database

import (
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestUniqueViolation(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		constraint string
		ok         bool
	}{
		{"pq", &pq.Error{Code: "23505", Constraint: "schools_email_key"}, "schools_email_key", true},
		{"pgx", &pgconn.PgError{Code: "23505", ConstraintName: "classes_school_id_name_key"}, "classes_school_id_name_key", true},
		{"wrapped", errors.Wrap(&pq.Error{Code: "23505", Constraint: "c"}, "inserting"), "c", true},
		{"other code", &pq.Error{Code: "23503"}, "", false},
		{"other error", errors.New("boom"), "", false},
		{"nil", nil, "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			constraint, ok := UniqueViolation(tc.err)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.constraint, constraint)
		})
	}
}

func TestDriverName(t *testing.T) {
	assert.Equal(t, "pgx", driverName("pgx"))
	assert.Equal(t, "postgres", driverName("postgres"))
	assert.Equal(t, "postgres", driverName(""))
}
