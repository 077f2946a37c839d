package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/hitoshi/ravist/internal/model"
)

// PostgresPatronRepo はPostgreSQLを使用した来店者リポジトリ。
type PostgresPatronRepo struct {
	db *sql.DB
}

// NewPostgresPatronRepo はPostgresPatronRepoを生成する。
func NewPostgresPatronRepo(db *sql.DB) *PostgresPatronRepo {
	return &PostgresPatronRepo{db: db}
}

// FindByHandle は正規化済みhandleで来店者を取得する。見つからない場合はnilを返す。
func (r *PostgresPatronRepo) FindByHandle(ctx context.Context, handle string) (*model.Patron, error) {
	patron := &model.Patron{}
	var token sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, handle, spotify_token, created_at, updated_at FROM patrons WHERE handle = $1`,
		handle,
	).Scan(&patron.ID, &patron.Handle, &token, &patron.CreatedAt, &patron.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find patron by handle: %w", err)
	}

	patron.SpotifyToken = token.String
	return patron, nil
}

// UpsertToken はhandleに対するSpotifyトークンをUPSERTし、来店者IDを返す。
// 単一のINSERT ... ON CONFLICT文で実行するため、同一handleへの並行書き込みでも
// 行が二重に作られることはなく、最後に成功した書き込みのトークンが残る。
func (r *PostgresPatronRepo) UpsertToken(ctx context.Context, handle, token string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO patrons (id, handle, spotify_token)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (handle) DO UPDATE SET
		     spotify_token = EXCLUDED.spotify_token,
		     updated_at = now()
		 RETURNING id`,
		uuid.New().String(), handle, token,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert patron token: %w", err)
	}

	return id, nil
}

// compile-time interface check
var _ PatronRepository = (*PostgresPatronRepo)(nil)
