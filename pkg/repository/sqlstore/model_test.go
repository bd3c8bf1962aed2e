package sqlstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/scaffold/pkg/repository"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time {
	return fixedNow
}

func TestModel_CreateReturning(t *testing.T) {
	db, mock := newMock(t)
	table := usersTable()
	table.Timestamps = true

	mock.ExpectQuery(`INSERT INTO users (created_at, name, updated_at) VALUES ($1, $2, $3) RETURNING *`).
		WithArgs(fixedNow, "ann", fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "ann"))

	m := NewModel(db, Postgres, table, WithClock(fixedClock))
	record, err := m.Create(context.Background(), repository.Record{"name": "ann"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), record["id"])
}

func TestModel_CreateMySQLUsesLastInsertID(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec(`INSERT INTO users (name) VALUES (?)`).
		WithArgs("ann").
		WillReturnResult(sqlmock.NewResult(5, 1))

	input := repository.Record{"name": "ann"}
	record, err := NewModel(db, MySQL, usersTable()).Create(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, int64(5), record["id"])
	assert.NotContains(t, input, "id")
}

func TestModel_CreateGeneratesUUID(t *testing.T) {
	db, mock := newMock(t)
	table := usersTable()
	table.UUIDKeys = true

	mock.ExpectQuery(`INSERT INTO users (id, name) VALUES (?, ?) RETURNING *`).
		WithArgs(sqlmock.AnyArg(), "ann").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	record, err := NewModel(db, SQLite, table).Create(context.Background(), repository.Record{"name": "ann"})
	require.NoError(t, err)
	assert.Len(t, record["id"], 36)
}

func TestModel_CreateRejectsBadColumn(t *testing.T) {
	_, err := NewModel(nil, Postgres, usersTable()).Create(context.Background(), repository.Record{"name) --": 1})
	assert.True(t, errors.Is(err, ErrInvalidIdentifier))
}

func TestModel_CreateConvertsDriverErrors(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec(`INSERT INTO users (email) VALUES (?)`).
		WithArgs("a@b.c").
		WillReturnError(&mysqlDuplicate)

	_, err := NewModel(db, MySQL, usersTable()).Create(context.Background(), repository.Record{"email": "a@b.c"})
	assert.True(t, IsUniqueViolation(err))
}

func TestModel_Update(t *testing.T) {
	db, mock := newMock(t)
	table := usersTable()
	table.Timestamps = true

	mock.ExpectExec(`UPDATE users SET name = $1, updated_at = $2 WHERE id = $3`).
		WithArgs("bob", fixedNow, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT users.* FROM users WHERE users.id = $1 LIMIT $2`).
		WithArgs(1, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "bob"))

	m := NewModel(db, Postgres, table, WithClock(fixedClock))
	record, err := m.Update(context.Background(), 1, repository.Record{"id": 99, "name": "bob"})
	require.NoError(t, err)
	assert.Equal(t, "bob", record["name"])
}

func TestModel_SoftDelete(t *testing.T) {
	db, mock := newMock(t)
	table := usersTable()
	table.SoftDeletes = true

	mock.ExpectExec(`UPDATE users SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`).
		WithArgs(fixedNow, 4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM users WHERE id = $1`).
		WithArgs(4).
		WillReturnResult(sqlmock.NewResult(0, 1))

	m := NewModel(db, Postgres, table, WithClock(fixedClock))

	deleted, err := m.Delete(context.Background(), 4)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = m.ForceDelete(context.Background(), 4)
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestModel_Restore(t *testing.T) {
	db, mock := newMock(t)
	table := usersTable()
	table.SoftDeletes = true

	mock.ExpectQuery(`SELECT users.* FROM users WHERE users.id = $1 LIMIT $2`).
		WithArgs(4, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "deleted_at"}).AddRow(int64(4), fixedNow))
	mock.ExpectExec(`UPDATE users SET deleted_at = NULL WHERE id = $1`).
		WithArgs(4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT users.* FROM users WHERE users.id = $1 LIMIT $2`).
		WithArgs(5, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "deleted_at"}))

	m := NewModel(db, Postgres, table)

	restored, err := m.Restore(context.Background(), 4)
	require.NoError(t, err)
	assert.True(t, restored)

	_, err = m.Restore(context.Background(), 5)
	assert.True(t, errors.Is(err, repository.ErrRecordNotFound))

	_, err = NewModel(db, Postgres, usersTable()).Restore(context.Background(), 4)
	assert.True(t, errors.Is(err, ErrSoftDeletesDisabled))
}

func TestModel_RestoreLiveRowOnMySQL(t *testing.T) {
	db, mock := newMock(t)
	table := usersTable()
	table.SoftDeletes = true

	mock.ExpectQuery(`SELECT users.* FROM users WHERE users.id = ? LIMIT ?`).
		WithArgs(7, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "deleted_at"}).AddRow(int64(7), nil))
	mock.ExpectExec(`UPDATE users SET deleted_at = NULL WHERE id = ?`).
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 0))

	restored, err := NewModel(db, MySQL, table).Restore(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, restored)
}

func TestModel_Insert(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec(`INSERT INTO users (email, name) VALUES ($1, $2), ($3, $4)`).
		WithArgs("a@b.c", "ann", nil, "bob").
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := NewModel(db, Postgres, usersTable()).Insert(context.Background(), []repository.Record{
		{"name": "ann", "email": "a@b.c"},
		{"name": "bob"},
	})
	require.NoError(t, err)

	require.NoError(t, NewModel(db, Postgres, usersTable()).Insert(context.Background(), nil))
}

func TestModel_WhereIn(t *testing.T) {
	db, mock := newMock(t)
	table := usersTable()
	table.SoftDeletes = true

	mock.ExpectExec(`UPDATE users SET active = $1 WHERE id IN ($2, $3) AND deleted_at IS NULL`).
		WithArgs(false, 1, 2).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`UPDATE users SET deleted_at = $1 WHERE id IN ($2) AND deleted_at IS NULL`).
		WithArgs(fixedNow, 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	m := NewModel(db, Postgres, table, WithClock(fixedClock))

	n, err := m.UpdateWhereIn(context.Background(), "id", []any{1, 2}, repository.Record{"active": false})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = m.DeleteWhereIn(context.Background(), "id", []any{3})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = m.DeleteWhereIn(context.Background(), "id", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestModel_HardDeleteWhereIn(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec(`DELETE FROM users WHERE id IN (?, ?)`).
		WithArgs("a", "b").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := NewModel(db, SQLite, usersTable()).DeleteWhereIn(context.Background(), "id", []any{"a", "b"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestModel_UpdateOrCreate(t *testing.T) {
	t.Run("updates existing row", func(t *testing.T) {
		db, mock := newMock(t)

		mock.ExpectQuery(`SELECT users.* FROM users WHERE users.email = $1 LIMIT $2`).
			WithArgs("a@b.c", 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).AddRow(int64(3), "a@b.c"))
		mock.ExpectExec(`UPDATE users SET name = $1 WHERE id = $2`).
			WithArgs("ann", int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT users.* FROM users WHERE users.id = $1 LIMIT $2`).
			WithArgs(int64(3), 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(3), "ann"))

		record, err := NewModel(db, Postgres, usersTable()).UpdateOrCreate(context.Background(),
			repository.Record{"email": "a@b.c"}, repository.Record{"name": "ann"})
		require.NoError(t, err)
		assert.Equal(t, "ann", record["name"])
	})

	t.Run("creates missing row", func(t *testing.T) {
		db, mock := newMock(t)

		mock.ExpectQuery(`SELECT users.* FROM users WHERE users.email = $1 LIMIT $2`).
			WithArgs("a@b.c", 1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectQuery(`INSERT INTO users (email, name) VALUES ($1, $2) RETURNING *`).
			WithArgs("a@b.c", "ann").
			WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name"}).AddRow(int64(9), "a@b.c", "ann"))

		record, err := NewModel(db, Postgres, usersTable()).UpdateOrCreate(context.Background(),
			repository.Record{"email": "a@b.c"}, repository.Record{"name": "ann"})
		require.NoError(t, err)
		assert.Equal(t, int64(9), record["id"])
	})
}

func TestModel_RepositoryDeleteMissingRecord(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(`SELECT users.* FROM users WHERE users.id = $1 LIMIT $2`).
		WithArgs(42, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	repo := repository.New(NewModel(db, Postgres, usersTable()))
	_, err := repo.Delete(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, repository.IsNotFound(err))
	assert.Equal(t, "Record with ID 42 not found", err.Error())
}
