package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"

	"github.com/conduit-lang/scaffold/pkg/repository"
)

var mysqlDuplicate = mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'a@b.c' for key 'email'"}

func TestConvertDBError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", sql.ErrNoRows, repository.ErrRecordNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", sql.ErrNoRows), repository.ErrRecordNotFound},
		{"pgx unique", &pgconn.PgError{Code: "23505", Detail: "Key (email)=(a) already exists."}, ErrUniqueViolation},
		{"pgx foreign key", &pgconn.PgError{Code: "23503"}, ErrForeignKeyViolation},
		{"pgx not null", &pgconn.PgError{Code: "23502", ColumnName: "name"}, ErrNotNullViolation},
		{"pq check", &pq.Error{Code: "23514"}, ErrCheckViolation},
		{"pq unique", &pq.Error{Code: "23505"}, ErrUniqueViolation},
		{"mysql duplicate", &mysqlDuplicate, ErrUniqueViolation},
		{"mysql foreign key", &mysql.MySQLError{Number: 1452}, ErrForeignKeyViolation},
		{"mysql not null", &mysql.MySQLError{Number: 1048}, ErrNotNullViolation},
		{"sqlite unique", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, ErrUniqueViolation},
		{"sqlite foreign key", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}, ErrForeignKeyViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(ConvertDBError(tt.err), tt.want))
		})
	}
}

func TestConvertDBError_PassesThroughUnknown(t *testing.T) {
	assert.Nil(t, ConvertDBError(nil))

	other := errors.New("connection refused")
	assert.Equal(t, other, ConvertDBError(other))

	pgOther := &pgconn.PgError{Code: "40001"}
	assert.Equal(t, error(pgOther), ConvertDBError(pgOther))
}

func TestParseOperator(t *testing.T) {
	tests := map[string]Operator{
		"=":           OpEqual,
		"<>":          OpNotEqual,
		"LIKE":        OpLike,
		"Not  Like":   OpNotLike,
		" in ":        OpIn,
		"NOT IN":      OpNotIn,
		"between":     OpBetween,
		"is not null": OpIsNotNull,
	}
	for input, want := range tests {
		got, err := ParseOperator(input)
		assert.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseOperator("=~")
	assert.True(t, errors.Is(err, ErrUnsupportedOperator))
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect("postgresql")
	assert.NoError(t, err)
	assert.Equal(t, Postgres, d)
	assert.Equal(t, "$3", d.Placeholder(3))

	d, err = ParseDialect("sqlite3")
	assert.NoError(t, err)
	assert.Equal(t, "?", d.Placeholder(3))
	assert.True(t, d.SupportsReturning())

	d, err = ParseDialect("MySQL")
	assert.NoError(t, err)
	assert.False(t, d.SupportsReturning())

	_, err = ParseDialect("oracle")
	assert.Error(t, err)
}
