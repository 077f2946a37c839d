// Package security はアプリケーションのセキュリティ機能を提供する。
//
// MetadataSanitizerService はスクレイピングで抽出した楽曲メタデータ
// （タイトル、アーティスト名等）をサニタイズし、外部ページ由来の
// HTMLやスクリプト断片がダッシュボードへ流れ込むのを防ぐ。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// MetadataSanitizerService はテキストメタデータのサニタイズ機能のインターフェースを定義する。
// リンク解決結果の保存前に使用される。
type MetadataSanitizerService interface {
	// SanitizeText は抽出したメタデータ文字列からHTMLタグを全て除去し、
	// エンティティをデコードした上で前後の空白を削除したプレーンテキストを返す。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeText(raw string) string
}

// metadataSanitizer はMetadataSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type metadataSanitizer struct {
	policy *bluemonday.Policy
}

// NewMetadataSanitizer はMetadataSanitizerServiceの新しいインスタンスを生成する。
// メタデータは表示用のプレーンテキストとして扱うため、許可タグを
// 一切持たないStrictPolicyを使用する。
func NewMetadataSanitizer() *metadataSanitizer {
	return &metadataSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeText は抽出したメタデータ文字列をプレーンテキスト化する。
// StrictPolicyはタグ除去後のテキストをエンティティエスケープするため、
// 「AC/DC &amp; Friends」のような二重エスケープを避けるべくデコードを挟む。
func (s *metadataSanitizer) SanitizeText(raw string) string {
	stripped := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(stripped))
}
