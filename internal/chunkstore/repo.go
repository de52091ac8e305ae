package chunkstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"ragstor/internal/blocks"
)

// PostgresRepo is the chunk metadata store. The vector index holds only
// labels; everything needed to render a search result lives here.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// ReplaceForUser swaps the user's chunk rows in one transaction. An index
// rebuild always replaces the whole set; partial updates would desync the
// metadata from the graph labels.
func (r *PostgresRepo) ReplaceForUser(ctx context.Context, userID string, chunks []blocks.Chunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}

	query := `INSERT INTO chunks (user_id, chunk_id, filename, type, page, text) VALUES ($1, $2, $3, $4, $5, $6)`
	for _, c := range chunks {
		if _, err := tx.ExecContext(ctx, query, userID, c.ChunkID, c.Filename, c.Type, c.Page, c.Text); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.ChunkID, err)
		}
	}
	return tx.Commit()
}

// GetByIDs fetches the named chunks for one user, keyed by chunk id.
func (r *PostgresRepo) GetByIDs(ctx context.Context, userID string, ids []int) (map[int]blocks.Chunk, error) {
	out := make(map[int]blocks.Chunk, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := `SELECT chunk_id, filename, type, page, text FROM chunks WHERE user_id = $1 AND chunk_id = ANY($2)`
	rows, err := r.db.QueryContext(ctx, query, userID, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		c := blocks.Chunk{UserID: userID}
		if err := rows.Scan(&c.ChunkID, &c.Filename, &c.Type, &c.Page, &c.Text); err != nil {
			return nil, err
		}
		out[c.ChunkID] = c
	}
	return out, rows.Err()
}

// CountForUser reports how many chunk rows the user has. Used to verify the
// metadata store agrees with a loaded index.
func (r *PostgresRepo) CountForUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}
