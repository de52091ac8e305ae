package chunkstore_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"ragstor/internal/blocks"
	"ragstor/internal/chunkstore"
)

func TestPostgresRepo_ReplaceForUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := chunkstore.NewPostgresRepo(db)

	t.Run("Success", func(t *testing.T) {
		chunks := []blocks.Chunk{
			{ChunkID: 0, Filename: "a.pdf", Type: "title", Page: 0, Text: "Annual Report"},
			{ChunkID: 1, Filename: "a.pdf", Type: "text", Page: 1, Text: "Revenue grew."},
		}

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM chunks WHERE user_id = $1")).
			WithArgs("alice").
			WillReturnResult(sqlmock.NewResult(0, 3))
		insert := regexp.QuoteMeta("INSERT INTO chunks (user_id, chunk_id, filename, type, page, text) VALUES ($1, $2, $3, $4, $5, $6)")
		mock.ExpectExec(insert).
			WithArgs("alice", 0, "a.pdf", "title", 0, "Annual Report").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(insert).
			WithArgs("alice", 1, "a.pdf", "text", 1, "Revenue grew.").
			WillReturnResult(sqlmock.NewResult(2, 1))
		mock.ExpectCommit()

		err := repo.ReplaceForUser(context.Background(), "alice", chunks)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RollbackOnInsertError", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM chunks WHERE user_id = $1")).
			WithArgs("alice").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO chunks")).
			WillReturnError(errors.New("constraint violation"))
		mock.ExpectRollback()

		err := repo.ReplaceForUser(context.Background(), "alice", []blocks.Chunk{{ChunkID: 0}})
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("EmptySetDeletesAll", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM chunks WHERE user_id = $1")).
			WithArgs("alice").
			WillReturnResult(sqlmock.NewResult(0, 5))
		mock.ExpectCommit()

		err := repo.ReplaceForUser(context.Background(), "alice", nil)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresRepo_GetByIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := chunkstore.NewPostgresRepo(db)

	t.Run("Success", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"chunk_id", "filename", "type", "page", "text"}).
			AddRow(2, "a.pdf", "text", 1, "second chunk").
			AddRow(0, "a.pdf", "title", 0, "first chunk")

		mock.ExpectQuery(regexp.QuoteMeta("SELECT chunk_id, filename, type, page, text FROM chunks WHERE user_id = $1 AND chunk_id = ANY($2)")).
			WithArgs("alice", pq.Array([]int{0, 2})).
			WillReturnRows(rows)

		got, err := repo.GetByIDs(context.Background(), "alice", []int{0, 2})
		assert.NoError(t, err)
		assert.Len(t, got, 2)
		assert.Equal(t, "first chunk", got[0].Text)
		assert.Equal(t, "second chunk", got[2].Text)
		assert.Equal(t, "alice", got[0].UserID)
	})

	t.Run("EmptyIDs", func(t *testing.T) {
		got, err := repo.GetByIDs(context.Background(), "alice", nil)
		assert.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestPostgresRepo_CountForUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := chunkstore.NewPostgresRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM chunks WHERE user_id = $1")).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	n, err := repo.CountForUser(context.Background(), "alice")
	assert.NoError(t, err)
	assert.Equal(t, 42, n)
}
