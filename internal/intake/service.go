// Package intake はWhatsApp受信メッセージの振り分けを提供する。
// 連携状態の確認、リンク解決リクエスト、テキストリクエストを
// ガード付きルールの先頭一致で処理し、来店者への返信文を組み立てる。
package intake

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/hitoshi/ravist/internal/metrics"
	"github.com/hitoshi/ravist/internal/model"
	"github.com/hitoshi/ravist/internal/notifier"
	"github.com/hitoshi/ravist/internal/repository"
	"github.com/hitoshi/ravist/internal/scrape"
)

// メッセージ処理結果。メトリクスのoutcomeラベルに使う。
const (
	OutcomeLinkPrompt     = "link_prompt"
	OutcomeRequestStored  = "request_stored"
	OutcomeLinkUnresolved = "link_unresolved"
	OutcomeFormatError    = "format_error"
	OutcomeUsageHelp      = "usage_help"
)

const requestPrefix = "request "

// LinkResolver は共有リンクのページメタデータ解決インターフェース。
type LinkResolver interface {
	Resolve(ctx context.Context, link string) (*scrape.Metadata, error)
}

// Service は受信メッセージ処理のビジネスロジックを提供する。
type Service struct {
	patronRepo  repository.PatronRepository
	requestRepo repository.RequestRepository
	resolver    LinkResolver
	broadcaster notifier.Broadcaster
	metrics     metrics.MetricsCollector
	logger      *slog.Logger
	baseURL     string
}

// NewService はServiceを生成する。baseURLは連携URLの組み立てに使う。
func NewService(
	patronRepo repository.PatronRepository,
	requestRepo repository.RequestRepository,
	resolver LinkResolver,
	broadcaster notifier.Broadcaster,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	baseURL string,
) *Service {
	return &Service{
		patronRepo:  patronRepo,
		requestRepo: requestRepo,
		resolver:    resolver,
		broadcaster: broadcaster,
		metrics:     collector,
		logger:      logger,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
	}
}

// HandleMessage は受信メッセージを処理して来店者への返信文を返す。
// ルールは上から順に評価され、最初に一致したものだけが適用される:
//  1. 未連携の来店者には連携用リンクを案内する
//  2. URLを含むメッセージはリンク解決してリクエスト保存する
//  3. "request " プレフィックスのテキストはそのまま保存する
//  4. いずれにも該当しなければ使い方を案内する
//
// 永続化の失敗のみエラーとして返す。それ以外は常に返信文を返す。
func (s *Service) HandleMessage(ctx context.Context, rawHandle, body string) (string, error) {
	handle := model.NormalizeHandle(rawHandle)

	patron, err := s.patronRepo.FindByHandle(ctx, handle)
	if err != nil {
		return "", fmt.Errorf("来店者の検索に失敗しました: %w", err)
	}

	if patron == nil || patron.SpotifyToken == "" {
		s.metrics.RecordWebhookMessage(OutcomeLinkPrompt)
		return s.linkPrompt(handle), nil
	}

	if link := scrape.ExtractFirstURL(body); link != "" {
		return s.handleLinkRequest(ctx, handle, body, link)
	}

	if len(body) >= len(requestPrefix) && strings.EqualFold(body[:len(requestPrefix)], requestPrefix) {
		return s.handleTextRequest(ctx, handle, body)
	}

	s.metrics.RecordWebhookMessage(OutcomeUsageHelp)
	return `Welcome back! Share a Spotify link or text "Request <song> by <artist>" to send the DJ a request.`, nil
}

// linkPrompt はSpotify連携の案内文を返す。handleはstateとしてURLに埋め込む。
func (s *Service) linkPrompt(handle string) string {
	return fmt.Sprintf(
		"Thanks for checking in at our club! Feel free to share your Spotify profile to help us create the perfect vibe for tonight. Click here to connect your Spotify: %s/login?state=%s",
		s.baseURL, url.QueryEscape(handle),
	)
}

// handleLinkRequest は共有リンクを解決してリクエストを保存する。
// 解決に失敗した場合は何も保存せず、失敗の旨だけを返信する。
func (s *Service) handleLinkRequest(ctx context.Context, handle, body, link string) (string, error) {
	meta, err := s.resolver.Resolve(ctx, link)
	if err != nil {
		s.logger.Warn("共有リンクの解決に失敗しました",
			slog.String("handle", handle),
			slog.String("link", link),
			slog.String("error", err.Error()),
		)
		s.metrics.RecordWebhookMessage(OutcomeLinkUnresolved)
		return `Sorry, we couldn't read that link. Please check the URL or send your request as text, e.g. "Request Blinding Lights by The Weeknd".`, nil
	}

	request := &model.SongRequest{
		Handle: handle,
		Body:   body,
		Title:  meta.Title,
		Artist: meta.Artist,
		Link:   link,
	}
	if err := s.requestRepo.Create(ctx, request); err != nil {
		return "", fmt.Errorf("リクエストの保存に失敗しました: %w", err)
	}

	s.metrics.RecordRequestStored()
	s.metrics.RecordWebhookMessage(OutcomeRequestStored)
	s.broadcaster.Broadcast(notifier.EventRequestAdded)
	s.metrics.RecordBroadcast(notifier.EventRequestAdded)

	if meta.Artist != "" {
		return fmt.Sprintf("Got it! We added %q by %s to the DJ's request list.", meta.Title, meta.Artist), nil
	}
	return fmt.Sprintf("Got it! We added %q to the DJ's request list.", meta.Title), nil
}

// handleTextRequest は"request "プレフィックス付きのテキストリクエストを保存する。
// プレフィックスの後が空の場合は保存せず書式の案内を返す。
func (s *Service) handleTextRequest(ctx context.Context, handle, body string) (string, error) {
	remainder := strings.TrimSpace(body[len(requestPrefix):])
	if remainder == "" {
		s.metrics.RecordWebhookMessage(OutcomeFormatError)
		return `Please include the song after "Request", e.g. "Request Blinding Lights by The Weeknd".`, nil
	}

	request := &model.SongRequest{
		Handle: handle,
		Body:   remainder,
	}
	if err := s.requestRepo.Create(ctx, request); err != nil {
		return "", fmt.Errorf("リクエストの保存に失敗しました: %w", err)
	}

	s.metrics.RecordRequestStored()
	s.metrics.RecordWebhookMessage(OutcomeRequestStored)
	s.broadcaster.Broadcast(notifier.EventRequestAdded)
	s.metrics.RecordBroadcast(notifier.EventRequestAdded)

	return fmt.Sprintf("Got it! Your request %q is on the DJ's list.", remainder), nil
}
