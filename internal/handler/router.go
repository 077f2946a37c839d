package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/ravist/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger            *slog.Logger
	CORSAllowedOrigin string

	// WhatsApp受信
	IntakeService IntakeServiceInterface

	// Spotify連携
	LinkerService LinkerServiceInterface

	// DJ照会
	SongRanker    SongRanker
	RequestLister RequestLister

	// WebSocket配信ハブ
	NotifierHub http.Handler

	// Prometheusメトリクス
	MetricsHandler http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RecoveryMiddleware → LoggingMiddleware → CORSMiddleware
//
// WebSocketエンドポイント（/ws）はハイジャック後の書き込みと競合しないよう
// ロギングミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())

	webhookHandler := NewWebhookHandler(deps.IntakeService, deps.Logger)
	linkHandler := NewLinkHandler(deps.LinkerService, deps.Logger)
	djHandler := NewDJHandler(deps.SongRanker, deps.RequestLister)

	// WebSocketと運用エンドポイントはロギング対象外
	r.Get("/ws", deps.NotifierHub.ServeHTTP)
	r.Get("/health", healthHandler)
	r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

		// WhatsApp受信webhook
		r.Post("/whatsapp", webhookHandler.Receive)

		// Spotify連携フロー
		r.Get("/login", linkHandler.Login)
		r.Get("/callback", linkHandler.Callback)

		// DJダッシュボード照会
		r.Route("/dj", func(r chi.Router) {
			r.Get("/most-liked-songs", djHandler.MostLikedSongs)
			r.Get("/song-requests", djHandler.SongRequests)
		})
	})

	return r
}

// healthHandler は死活確認に200を返す。
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
