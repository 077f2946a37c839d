package model

import "time"

// SongRequest は来店者からの楽曲リクエストを表す。
// 追記専用で更新・削除経路を持たない。同一内容の再送信はそれぞれ
// 独立したイベントとして別行になる（重複排除キーなし）。
type SongRequest struct {
	ID        string
	Handle    string
	Body      string // 受信メッセージの生テキスト（リンク解決時は共有リンク本文）
	Title     string // リンク解決済みタイトル。未解決の場合は空
	Artist    string // リンク解決済みアーティスト。未解決の場合は空
	Link      string // 解決対象のURL。テキストリクエストの場合は空
	CreatedAt time.Time
}
