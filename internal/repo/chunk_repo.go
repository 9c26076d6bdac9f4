package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/siteinsight/internal/model"
	"github.com/xxxsen/siteinsight/internal/pkg/dbutil"
)

// insertBatchSize keeps a multi-row insert well under the postgres parameter limit.
const insertBatchSize = 500

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// Replace swaps the chunk set of url inside one transaction.
func (r *ChunkRepo) Replace(ctx context.Context, url string, chunks []model.Chunk) error {
	now := time.Now().Unix()
	return dbutil.InTx(ctx, r.db, func(tx *sql.Tx) error {
		websiteID, err := upsertWebsite(ctx, tx, url, now)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM website_chunks WHERE website_id = $1`, websiteID); err != nil {
			return err
		}
		for start := 0; start < len(chunks); start += insertBatchSize {
			end := min(start+insertBatchSize, len(chunks))
			rows := make([]map[string]interface{}, 0, end-start)
			for _, c := range chunks[start:end] {
				rows = append(rows, map[string]interface{}{
					"id":         c.ID,
					"website_id": websiteID,
					"seq":        c.SequenceIndex,
					"text":       c.Text,
					"embedding":  pgvector.NewVector(c.Embedding),
					"ctime":      now,
				})
			}
			sqlStr, args, err := builder.BuildInsert("website_chunks", rows)
			if err != nil {
				return err
			}
			sqlStr, args = dbutil.Finalize(sqlStr, args)
			if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
				return err
			}
		}
		return nil
	})
}

// Search returns at most k chunks of url nearest to query by cosine distance.
func (r *ChunkRepo) Search(ctx context.Context, url string, query []float32, k int) ([]model.ScoredChunk, error) {
	const q = `
		SELECT c.id, c.seq, c.text, c.embedding <=> $1 AS distance
		FROM website_chunks c
		JOIN websites w ON w.id = c.website_id
		WHERE w.url = $2
		ORDER BY distance ASC, c.seq ASC
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, q, pgvector.NewVector(query), url, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.ScoredChunk, 0, k)
	for rows.Next() {
		item := model.ScoredChunk{Chunk: model.Chunk{WebsiteURL: url}}
		if err := rows.Scan(&item.ID, &item.SequenceIndex, &item.Text, &item.Distance); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *ChunkRepo) Count(ctx context.Context, url string) (int, error) {
	const q = `
		SELECT COUNT(*)
		FROM website_chunks c
		JOIN websites w ON w.id = c.website_id
		WHERE w.url = $1
	`
	var n int
	if err := r.db.QueryRowContext(ctx, q, url).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func upsertWebsite(ctx context.Context, tx *sql.Tx, url string, now int64) (int64, error) {
	const q = `
		INSERT INTO websites (url, ctime, mtime)
		VALUES ($1, $2, $2)
		ON CONFLICT (url) DO UPDATE SET mtime = EXCLUDED.mtime
		RETURNING id
	`
	var id int64
	if err := tx.QueryRowContext(ctx, q, url, now).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}
