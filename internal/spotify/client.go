// Package spotify はSpotify Web API連携機能を提供する。
// OAuth認可コードフロー、保存楽曲・プレイリストのページ取得、
// アーティストとオーディオ特徴量の参照を含む。
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/hitoshi/ravist/internal/config"
	"github.com/hitoshi/ravist/internal/metrics"
)

const (
	// authURL はSpotifyの認可エンドポイント。
	authURL = "https://accounts.spotify.com/authorize"
	// tokenURL はSpotifyのトークン交換エンドポイント。
	tokenURL = "https://accounts.spotify.com/api/token"
	// defaultAPIBaseURL はSpotify Web APIのベースURL。
	defaultAPIBaseURL = "https://api.spotify.com/v1"
	// defaultPageLimit は1ページあたりの取得件数のデフォルト。Spotify APIの上限値。
	defaultPageLimit = 50
)

// Track はSpotifyの楽曲。
type Track struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Artists      []TrackArtist `json:"artists"`
	ExternalURLs ExternalURLs  `json:"external_urls"`
}

// TrackArtist は楽曲に紐づくアーティストの簡易表現。
// ジャンルは含まれないため、必要な場合はArtistで取得する。
type TrackArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ExternalURLs は外部リンク集合。
type ExternalURLs struct {
	Spotify string `json:"spotify"`
}

// SavedTrack は保存日時付きの楽曲。
type SavedTrack struct {
	AddedAt string `json:"added_at"`
	Track   Track  `json:"track"`
}

// SavedTracksPage は保存楽曲のページ取得レスポンス。
// Nextは次ページの絶対URL。最終ページではnil。
type SavedTracksPage struct {
	Items []SavedTrack `json:"items"`
	Total int          `json:"total"`
	Next  *string      `json:"next"`
}

// Artist はSpotifyのアーティスト。ジャンルリストを含む。
type Artist struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
}

// AudioFeatures は楽曲のオーディオ特徴量。
type AudioFeatures struct {
	ID    string  `json:"id"`
	Tempo float64 `json:"tempo"`
}

// Playlist はSpotifyのプレイリスト。
type Playlist struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	ExternalURLs ExternalURLs `json:"external_urls"`
}

// PlaylistsPage はプレイリストのページ取得レスポンス。
type PlaylistsPage struct {
	Items []Playlist `json:"items"`
	Total int        `json:"total"`
	Next  *string    `json:"next"`
}

// API はSpotify連携のインターフェース。linker/importerがモック差し替えに使用する。
type API interface {
	LoginURL(state string) string
	ExchangeCode(ctx context.Context, code string) (string, error)
	SavedTracksPage(ctx context.Context, accessToken, pageURL string) (*SavedTracksPage, error)
	Artist(ctx context.Context, accessToken, artistID string) (*Artist, error)
	AudioFeatures(ctx context.Context, accessToken, trackID string) (*AudioFeatures, error)
	PlaylistsPage(ctx context.Context, accessToken, pageURL string) (*PlaylistsPage, error)
}

// Client はSpotify Web APIのクライアント。
// 全APIコールはlimiterで間隔制御され、Spotify側のレート制限を回避する。
type Client struct {
	oauth      *oauth2.Config
	httpClient *http.Client
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
	limiter    *rate.Limiter
	pageLimit  int
	apiBaseURL string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(cfg *config.Config, httpClient *http.Client, logger *slog.Logger, collector metrics.MetricsCollector) *Client {
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.SpotifyClientID,
		ClientSecret: cfg.SpotifyClientSecret,
		RedirectURL:  cfg.SpotifyRedirectURL,
		Scopes:       []string{"user-library-read", "user-read-private"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: tokenURL,
		},
	}

	pageLimit := cfg.ImportPageLimit
	if pageLimit <= 0 {
		pageLimit = defaultPageLimit
	}

	return &Client{
		oauth:      oauthCfg,
		httpClient: httpClient,
		logger:     logger,
		metrics:    collector,
		limiter:    rate.NewLimiter(rate.Every(cfg.SpotifyAPIInterval), 1),
		pageLimit:  pageLimit,
		apiBaseURL: defaultAPIBaseURL,
	}
}

// LoginURL は認可コードフローの開始URLを返す。
// stateには来店者のhandleを載せ、コールバックで誰の連携かを特定する。
func (c *Client) LoginURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// ExchangeCode は認可コードをアクセストークンに交換する。
func (c *Client) ExchangeCode(ctx context.Context, code string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("認可コードの交換に失敗しました: %w", err)
	}

	return token.AccessToken, nil
}

// SavedTracksPage は保存楽曲を1ページ取得する。
// pageURLが空の場合は先頭ページを取得する。2ページ目以降は
// 前ページのNextに入っている絶対URLをそのまま渡す。
func (c *Client) SavedTracksPage(ctx context.Context, accessToken, pageURL string) (*SavedTracksPage, error) {
	if pageURL == "" {
		pageURL = fmt.Sprintf("%s/me/tracks?limit=%d&offset=0", c.apiBaseURL, c.pageLimit)
	}

	var page SavedTracksPage
	if err := c.doGet(ctx, accessToken, pageURL, &page); err != nil {
		return nil, fmt.Errorf("保存楽曲の取得に失敗しました: %w", err)
	}

	return &page, nil
}

// Artist はアーティストを1件取得する。ジャンル判定に使用する。
func (c *Client) Artist(ctx context.Context, accessToken, artistID string) (*Artist, error) {
	var artist Artist
	url := fmt.Sprintf("%s/artists/%s", c.apiBaseURL, artistID)
	if err := c.doGet(ctx, accessToken, url, &artist); err != nil {
		return nil, fmt.Errorf("アーティストの取得に失敗しました: %w", err)
	}

	return &artist, nil
}

// AudioFeatures は楽曲のオーディオ特徴量を取得する。BPM（tempo）の取得に使用する。
func (c *Client) AudioFeatures(ctx context.Context, accessToken, trackID string) (*AudioFeatures, error) {
	var features AudioFeatures
	url := fmt.Sprintf("%s/audio-features/%s", c.apiBaseURL, trackID)
	if err := c.doGet(ctx, accessToken, url, &features); err != nil {
		return nil, fmt.Errorf("オーディオ特徴量の取得に失敗しました: %w", err)
	}

	return &features, nil
}

// PlaylistsPage はプレイリストを1ページ取得する。
// pageURLが空の場合は先頭ページを取得する。
func (c *Client) PlaylistsPage(ctx context.Context, accessToken, pageURL string) (*PlaylistsPage, error) {
	if pageURL == "" {
		pageURL = fmt.Sprintf("%s/me/playlists?limit=%d&offset=0", c.apiBaseURL, c.pageLimit)
	}

	var page PlaylistsPage
	if err := c.doGet(ctx, accessToken, pageURL, &page); err != nil {
		return nil, fmt.Errorf("プレイリストの取得に失敗しました: %w", err)
	}

	return &page, nil
}

// doGet は認証付きGETリクエストを実行してレスポンスJSONをデコードする。
// 実行前にレート制限の待機を行う。
func (c *Client) doGet(ctx context.Context, accessToken, url string, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("レート制限の待機に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.RecordSpotifyLatency(time.Since(start))
	if err != nil {
		c.logger.Error("Spotify APIの呼び出しに失敗しました",
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// エラーボディは診断ログにのみ残す
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Error("Spotify APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("url", url),
			slog.String("body", strings.TrimSpace(string(body))),
		)
		return fmt.Errorf("Spotify APIがステータス %d を返しました", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	return nil
}

// compile-time interface check
var _ API = (*Client)(nil)
