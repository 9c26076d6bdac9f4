package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/siteinsight/internal/model"
	"github.com/xxxsen/siteinsight/internal/pkg/dbutil"
	appErr "github.com/xxxsen/siteinsight/internal/pkg/errors"
)

type InsightRepo struct {
	db *sql.DB
}

func NewInsightRepo(db *sql.DB) *InsightRepo {
	return &InsightRepo{db: db}
}

// Save overwrites the current insight record of rec.URL.
func (r *InsightRepo) Save(ctx context.Context, rec *model.InsightRecord) error {
	blob, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO websites (url, insights, analyzed_at, ctime, mtime)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (url) DO UPDATE SET
			insights = EXCLUDED.insights,
			analyzed_at = EXCLUDED.analyzed_at,
			mtime = EXCLUDED.mtime
	`
	_, err = r.db.ExecContext(ctx, q, rec.URL, blob, rec.AnalyzedAt, time.Now().Unix())
	return err
}

func (r *InsightRepo) Get(ctx context.Context, url string) (*model.InsightRecord, error) {
	where := map[string]interface{}{
		"url":           url,
		"analyzed_at >": 0,
	}
	sqlStr, args, err := builder.BuildSelect("websites", where, []string{"insights"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var blob []byte
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	if len(blob) == 0 {
		return nil, appErr.ErrNotFound
	}
	var rec model.InsightRecord
	if err := json.Unmarshal(blob, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
