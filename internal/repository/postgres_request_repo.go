package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/hitoshi/ravist/internal/model"
)

// PostgresRequestRepo はPostgreSQLを使用した楽曲リクエストリポジトリ。
type PostgresRequestRepo struct {
	db *sql.DB
}

// NewPostgresRequestRepo はPostgresRequestRepoを生成する。
func NewPostgresRequestRepo(db *sql.DB) *PostgresRequestRepo {
	return &PostgresRequestRepo{db: db}
}

// Create はリクエストを作成する。重複排除は行わず、同一内容でも別行として記録する。
func (r *PostgresRequestRepo) Create(ctx context.Context, request *model.SongRequest) error {
	id := request.ID
	if id == "" {
		id = uuid.New().String()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO song_requests (id, handle, body, title, artist, link)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, request.Handle, request.Body,
		nullString(request.Title), nullString(request.Artist), nullString(request.Link),
	)
	if err != nil {
		return fmt.Errorf("failed to insert song request: %w", err)
	}

	return nil
}

// ListAll は全リクエストをcreated_at降順で返す。
func (r *PostgresRequestRepo) ListAll(ctx context.Context) ([]model.SongRequest, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, handle, body, title, artist, link, created_at
		 FROM song_requests
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query song requests: %w", err)
	}
	defer rows.Close()

	var requests []model.SongRequest
	for rows.Next() {
		var req model.SongRequest
		var title, artist, link sql.NullString

		if err := rows.Scan(&req.ID, &req.Handle, &req.Body, &title, &artist, &link, &req.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan song request: %w", err)
		}
		req.Title = title.String
		req.Artist = artist.String
		req.Link = link.String
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate song requests: %w", err)
	}

	return requests, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// compile-time interface check
var _ RequestRepository = (*PostgresRequestRepo)(nil)
