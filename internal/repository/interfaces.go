// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/ravist/internal/model"
)

// PatronRepository は来店者データの永続化インターフェース。
type PatronRepository interface {
	// FindByHandle は正規化済みhandleで来店者を検索する。見つからない場合はnilを返す。
	FindByHandle(ctx context.Context, handle string) (*model.Patron, error)

	// UpsertToken はhandleに対するSpotifyトークンを原子的にUPSERTし、来店者IDを返す。
	// 同一handleへの並行書き込みは最後に成功した書き込みが勝つ。
	// webhookとOAuthコールバックが同時に同じhandleへ到達しても来店者は1行のまま。
	UpsertToken(ctx context.Context, handle, token string) (string, error)
}

// LikedSongRepository は取り込み済み楽曲の永続化インターフェース。
type LikedSongRepository interface {
	// Upsert は楽曲を (patron_id, track_id) をキーにUPSERTする。
	// 既存行に対してはgenreとtempoのみ更新する。
	Upsert(ctx context.Context, song *model.LikedSong) error

	// MostLiked は全来店者を横断して (track_id, title, artist, genre, tempo) で
	// グルーピングし、出現数降順でページ取得する。pageは1始まり。
	MostLiked(ctx context.Context, page, pageSize int) ([]model.RankedSong, error)
}

// PlaylistRepository はプレイリストの永続化インターフェース。
type PlaylistRepository interface {
	// ExistsByPatronAndName は (patron_id, name) の存在を確認する。
	ExistsByPatronAndName(ctx context.Context, patronID, name string) (bool, error)

	// Create はプレイリストを作成する。
	Create(ctx context.Context, playlist *model.Playlist) error
}

// RequestRepository は楽曲リクエストの永続化インターフェース。追記専用。
type RequestRepository interface {
	// Create はリクエストを作成する。
	Create(ctx context.Context, request *model.SongRequest) error

	// ListAll は全リクエストをcreated_at降順で返す。ページネーションなし。
	ListAll(ctx context.Context) ([]model.SongRequest, error)
}
