// Package scrape は共有リンクのページメタデータ解決機能を提供する。
// 来店者がメッセージで送ったリンク先から楽曲タイトルとアーティスト名を抽出する。
package scrape

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/hitoshi/ravist/internal/security"
)

// urlPattern はメッセージ本文からリンクを検出する正規表現。
var urlPattern = regexp.MustCompile(`https?://\S+`)

// ExtractFirstURL はメッセージ本文から最初のURLを抽出する。
// URLが含まれない場合は空文字列を返す。
func ExtractFirstURL(body string) string {
	return urlPattern.FindString(body)
}

// Metadata は共有リンクから解決した楽曲メタデータ。
type Metadata struct {
	Title  string
	Artist string
}

// SSRFValidator はSSRF検証のインターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// Resolver は共有リンクのメタデータ解決機能を提供する。
type Resolver struct {
	ssrfGuard SSRFValidator
	sanitizer security.MetadataSanitizerService
	logger    *slog.Logger
	timeout   time.Duration
	maxSize   int64
}

// NewResolver はResolverの新しいインスタンスを生成する。
func NewResolver(ssrfGuard SSRFValidator, sanitizer security.MetadataSanitizerService, logger *slog.Logger, timeout time.Duration, maxSize int64) *Resolver {
	return &Resolver{
		ssrfGuard: ssrfGuard,
		sanitizer: sanitizer,
		logger:    logger,
		timeout:   timeout,
		maxSize:   maxSize,
	}
}

// Resolve はリンク先ページを取得してメタデータを解決する。
// 1. SSRF検証を実行
// 2. リンクにHTTPリクエストを送信（レスポンスは上限サイズまで読み込み）
// 3. HTMLのhead要素からタイトルとアーティスト候補を抽出
// 4. 抽出結果をサニタイズして返す
// ネットワークエラー、非2xx応答、非HTML、タイトル未検出はいずれもエラー。
func (r *Resolver) Resolve(ctx context.Context, link string) (*Metadata, error) {
	if link == "" {
		return nil, fmt.Errorf("リンクが空です")
	}

	// SSRF検証
	if err := r.ssrfGuard.ValidateURL(link); err != nil {
		return nil, fmt.Errorf("リンクの検証に失敗しました: %w", err)
	}

	client := r.ssrfGuard.NewSafeClient(r.timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "Ravist/1.0 Club Companion")
	req.Header.Set("Accept", "text/html, */*")

	resp, err := client.Do(req)
	if err != nil {
		r.logger.Warn("共有リンクの取得に失敗しました",
			slog.String("link", link),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("リンクの取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("リンク先がステータス %d を返しました", resp.StatusCode)
	}

	// HTML以外のコンテンツは解決対象外
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if !strings.Contains(strings.ToLower(mediaType), "html") {
		return nil, fmt.Errorf("リンク先がHTMLではありません: %s", mediaType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxSize))
	if err != nil {
		return nil, fmt.Errorf("レスポンスの読み取りに失敗しました: %w", err)
	}

	meta := parsePageMetadata(body)

	title := r.sanitizer.SanitizeText(meta.Title)
	if title == "" {
		return nil, fmt.Errorf("リンク先からタイトルを抽出できませんでした")
	}

	return &Metadata{
		Title:  title,
		Artist: r.sanitizer.SanitizeText(meta.Artist),
	}, nil
}

// pageMetadata はHTMLから抽出した生のメタデータ候補。
type pageMetadata struct {
	Title  string
	Artist string
}

// parsePageMetadata はHTMLのhead要素からメタデータ候補を解析・抽出する。
// タイトルはog:titleを優先し、なければtitle要素を使用する。
// アーティストはmeta[name=author]を優先し、なければog:site_nameを使用する。
func parsePageMetadata(htmlBody []byte) pageMetadata {
	var titleTag, ogTitle, author, siteName string

	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	inTitle := false

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return buildMetadata(titleTag, ogTitle, author, siteName)

		case html.TextToken:
			if inTitle {
				titleTag += string(tokenizer.Text())
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tagName := string(tn)

			if tagName == "title" && tt == html.StartTagToken {
				inTitle = true
				continue
			}

			if tagName == "body" {
				// bodyに入ったらheadの解析を終了
				return buildMetadata(titleTag, ogTitle, author, siteName)
			}

			if tagName != "meta" || !hasAttr {
				continue
			}

			// meta要素の属性を解析
			var name, property, content string
			for {
				key, val, more := tokenizer.TagAttr()
				k := strings.ToLower(string(key))
				v := string(val)
				switch k {
				case "name":
					name = strings.ToLower(v)
				case "property":
					property = strings.ToLower(v)
				case "content":
					content = v
				}
				if !more {
					break
				}
			}

			switch {
			case property == "og:title":
				ogTitle = content
			case property == "og:site_name":
				siteName = content
			case name == "author":
				author = content
			}

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "title" {
				inTitle = false
			}
		}
	}
}

// buildMetadata は抽出した候補から優先順位に従ってメタデータを構築する。
func buildMetadata(titleTag, ogTitle, author, siteName string) pageMetadata {
	meta := pageMetadata{}

	if ogTitle != "" {
		meta.Title = ogTitle
	} else {
		meta.Title = titleTag
	}

	if author != "" {
		meta.Artist = author
	} else {
		meta.Artist = siteName
	}

	return meta
}
