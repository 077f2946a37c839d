package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, spotify, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidPage     = "INVALID_PAGE"
	ErrCodeTokenExchange   = "TOKEN_EXCHANGE_FAILED"
	ErrCodeMissingState    = "MISSING_STATE"
	ErrCodeLinkUnresolved  = "LINK_UNRESOLVED"
	ErrCodePersistence     = "PERSISTENCE_FAILED"
)

// NewInvalidPageError は無効なページ番号エラーを生成する。
func NewInvalidPageError(page string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPage,
		Message:  fmt.Sprintf("無効なページ番号です: %s", page),
		Category: "validation",
		Action:   "pageには1以上の整数を指定してください。",
	}
}

// NewTokenExchangeError はSpotifyトークン交換失敗エラーを生成する。
// 詳細はログのみに記録し、ブラウザには一般的なメッセージを返す。
func NewTokenExchangeError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenExchange,
		Message:  "Spotifyアカウントの連携に失敗しました。",
		Category: "spotify",
		Action:   "WhatsAppのリンクからもう一度お試しください。",
	}
}

// NewMissingStateError はOAuth stateパラメータ欠落エラーを生成する。
func NewMissingStateError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingState,
		Message:  "連携元のWhatsApp番号を特定できませんでした。",
		Category: "validation",
		Action:   "WhatsAppに届いたリンクからアクセスしてください。",
	}
}

// NewPersistenceError は永続化失敗エラーを生成する。
func NewPersistenceError() *APIError {
	return &APIError{
		Code:     ErrCodePersistence,
		Message:  "データの保存に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
