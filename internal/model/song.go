package model

import "time"

// GenreUnknown はジャンルが特定できなかった場合のセンチネル値。
const GenreUnknown = "Unknown"

// LikedSong は来店者のSpotifyライブラリから取り込んだ楽曲を表す。
// 自然キーは (patron_id, track_id)。再インポート時はgenreとtempoのみ更新し、
// 同一キーの行を重複させない。
type LikedSong struct {
	ID         string
	PatronID   string
	TrackID    string
	Title      string
	Artist     string // 複数アーティストは ", " 連結の表示文字列
	SpotifyURL string
	Genre      string
	Tempo      *float64 // audio-features取得失敗時はnil
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Playlist は来店者のSpotifyプレイリストを表す。
// (patron_id, name) で存在チェックのみ行い、更新経路を持たない。
// プレイリストがリネームされた場合は別行として追加される（既知の仕様ギャップ）。
type Playlist struct {
	ID         string
	PatronID   string
	Name       string
	SpotifyURL string
	CreatedAt  time.Time
}

// RankedSong は全来店者を横断した「いいね」集計の1行を表す。
type RankedSong struct {
	Title     string
	Artist    string
	Genre     string
	Tempo     *float64
	LikeCount int
}
