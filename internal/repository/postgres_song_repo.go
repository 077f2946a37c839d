package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/hitoshi/ravist/internal/model"
)

// PostgresLikedSongRepo はPostgreSQLを使用した楽曲リポジトリ。
type PostgresLikedSongRepo struct {
	db *sql.DB
}

// NewPostgresLikedSongRepo はPostgresLikedSongRepoを生成する。
func NewPostgresLikedSongRepo(db *sql.DB) *PostgresLikedSongRepo {
	return &PostgresLikedSongRepo{db: db}
}

// Upsert は楽曲を (patron_id, track_id) をキーにUPSERTする。
// 既存行の場合はgenreとtempoのみ更新し、タイトル等の表示フィールドは初回取り込みの値を維持する。
func (r *PostgresLikedSongRepo) Upsert(ctx context.Context, song *model.LikedSong) error {
	var tempo sql.NullFloat64
	if song.Tempo != nil {
		tempo = sql.NullFloat64{Float64: *song.Tempo, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO liked_songs (id, patron_id, track_id, title, artist, spotify_url, genre, tempo)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (patron_id, track_id) DO UPDATE SET
		     genre = EXCLUDED.genre,
		     tempo = EXCLUDED.tempo,
		     updated_at = now()`,
		uuid.New().String(), song.PatronID, song.TrackID,
		song.Title, song.Artist, song.SpotifyURL, song.Genre, tempo,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert liked song: %w", err)
	}

	return nil
}

// MostLiked は全来店者を横断した「いいね」ランキングをページ取得する。
// pageは1始まり。0以下が渡された場合は1ページ目として扱う。
func (r *PostgresLikedSongRepo) MostLiked(ctx context.Context, page, pageSize int) ([]model.RankedSong, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	rows, err := r.db.QueryContext(ctx,
		`SELECT title, artist, genre, tempo, COUNT(*) AS like_count
		 FROM liked_songs
		 GROUP BY track_id, title, artist, genre, tempo
		 ORDER BY like_count DESC
		 LIMIT $1 OFFSET $2`,
		pageSize, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query most liked songs: %w", err)
	}
	defer rows.Close()

	var ranked []model.RankedSong
	for rows.Next() {
		var song model.RankedSong
		var tempo sql.NullFloat64

		if err := rows.Scan(&song.Title, &song.Artist, &song.Genre, &tempo, &song.LikeCount); err != nil {
			return nil, fmt.Errorf("failed to scan ranked song: %w", err)
		}
		if tempo.Valid {
			t := tempo.Float64
			song.Tempo = &t
		}
		ranked = append(ranked, song)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ranked songs: %w", err)
	}

	return ranked, nil
}

// compile-time interface check
var _ LikedSongRepository = (*PostgresLikedSongRepo)(nil)

// PostgresPlaylistRepo はPostgreSQLを使用したプレイリストリポジトリ。
type PostgresPlaylistRepo struct {
	db *sql.DB
}

// NewPostgresPlaylistRepo はPostgresPlaylistRepoを生成する。
func NewPostgresPlaylistRepo(db *sql.DB) *PostgresPlaylistRepo {
	return &PostgresPlaylistRepo{db: db}
}

// ExistsByPatronAndName は (patron_id, name) のプレイリストの存在を確認する。
// 名前のみで照合するため、リネームされたプレイリストは別行として扱われる。
func (r *PostgresPlaylistRepo) ExistsByPatronAndName(ctx context.Context, patronID, name string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM playlists WHERE patron_id = $1 AND name = $2)`,
		patronID, name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check playlist existence: %w", err)
	}

	return exists, nil
}

// Create はプレイリストを作成する。
func (r *PostgresPlaylistRepo) Create(ctx context.Context, playlist *model.Playlist) error {
	id := playlist.ID
	if id == "" {
		id = uuid.New().String()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO playlists (id, patron_id, name, spotify_url) VALUES ($1, $2, $3, $4)`,
		id, playlist.PatronID, playlist.Name, playlist.SpotifyURL,
	)
	if err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}

	return nil
}

// compile-time interface check
var _ PlaylistRepository = (*PostgresPlaylistRepo)(nil)
