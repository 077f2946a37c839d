// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// Patron はWhatsApp経由でチェックインした来店者を表す。
// handleはトランスポートプレフィックスを除去した正規化済みの番号で一意。
// SpotifyTokenは未連携の場合は空文字列。
type Patron struct {
	ID           string
	Handle       string
	SpotifyToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// handlePrefix はメッセージングプロバイダーが付与するトランスポートプレフィックス。
const handlePrefix = "whatsapp:"

// NormalizeHandle はhandleからトランスポートプレフィックスを除去する。
// すべての保存経路（webhook、OAuthコールバック）で同じ正規化を適用すること。
func NormalizeHandle(raw string) string {
	return strings.TrimPrefix(strings.TrimSpace(raw), handlePrefix)
}
