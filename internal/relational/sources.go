package relational

import (
	"encoding/json"
	"errors"

	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sibyl-platform/sibyl/internal/model"
)

// SourceStore provides typed CRUD for Source and its crawl bookkeeping.
type SourceStore struct {
	db *DB
}

func NewSourceStore(db *DB) *SourceStore { return &SourceStore{db: db} }

func (s *SourceStore) Create(ctx context.Context, src *model.Source) error {
	incl, _ := json.Marshal(src.IncludePatterns)
	excl, _ := json.Marshal(src.ExcludePatterns)
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO crawl_sources (id, organization_id, project_id, name, root_url, status,
			include_patterns, exclude_patterns, max_depth, use_headless,
			pages_crawled, pages_total, pages_failed, error_message, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, src.ID, src.OrganizationID, src.ProjectID, src.Name, src.RootURL, string(src.Status),
		incl, excl, src.MaxDepth, src.UseHeadless,
		src.PagesCrawled, src.PagesTotal, src.PagesFailed, src.ErrorMessage, src.CreatedAt, src.UpdatedAt)
	return wrapStorageErr(err)
}

func (s *SourceStore) Get(ctx context.Context, id uuid.UUID) (*model.Source, error) {
	var src model.Source
	var status string
	var incl, excl []byte
	err := s.db.Pool.QueryRow(ctx, `
		SELECT id, organization_id, project_id, name, root_url, status,
			include_patterns, exclude_patterns, max_depth, use_headless,
			pages_crawled, pages_total, pages_failed, error_message, created_at, updated_at
		FROM crawl_sources WHERE id = $1
	`, id).Scan(&src.ID, &src.OrganizationID, &src.ProjectID, &src.Name, &src.RootURL, &status,
		&incl, &excl, &src.MaxDepth, &src.UseHeadless,
		&src.PagesCrawled, &src.PagesTotal, &src.PagesFailed, &src.ErrorMessage, &src.CreatedAt, &src.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFoundErr("source", id.String())
	}
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	src.Status = model.SourceStatus(status)
	json.Unmarshal(incl, &src.IncludePatterns)
	json.Unmarshal(excl, &src.ExcludePatterns)
	return &src, nil
}

func (s *SourceStore) UpdateStatus(ctx context.Context, id uuid.UUID, status model.SourceStatus, errMsg string) error {
	_, err := s.db.Pool.Exec(ctx, `
		UPDATE crawl_sources SET status = $2, error_message = $3, updated_at = now() WHERE id = $1
	`, id, string(status), errMsg)
	return wrapStorageErr(err)
}

func (s *SourceStore) UpdateProgress(ctx context.Context, id uuid.UUID, crawled, total, failed int) error {
	_, err := s.db.Pool.Exec(ctx, `
		UPDATE crawl_sources SET pages_crawled = $2, pages_total = $3, pages_failed = $4, updated_at = now() WHERE id = $1
	`, id, crawled, total, failed)
	return wrapStorageErr(err)
}
