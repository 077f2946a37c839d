package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/ravist/internal/middleware"
	"github.com/hitoshi/ravist/internal/model"
)

// LinkerServiceInterface は連携ハンドラーが必要とするサービスインターフェース。
type LinkerServiceInterface interface {
	// LoginURL はhandleをstateとして埋め込んだSpotify認可URLを返す。
	LoginURL(handle string) string
	// HandleCallback はOAuthコールバックを処理する。
	HandleCallback(ctx context.Context, code, rawHandle string) error
}

// LinkHandler はSpotify連携フローのHTTPハンドラー。
type LinkHandler struct {
	linker LinkerServiceInterface
	logger *slog.Logger
}

// NewLinkHandler はLinkHandlerを生成する。
func NewLinkHandler(linker LinkerServiceInterface, logger *slog.Logger) *LinkHandler {
	return &LinkHandler{
		linker: linker,
		logger: logger,
	}
}

// Login はSpotify認可画面へリダイレクトする。
// GET /login?state=<handle>
func (h *LinkHandler) Login(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if state == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMissingStateError())
		return
	}

	http.Redirect(w, r, h.linker.LoginURL(state), http.StatusFound)
}

// Callback はSpotifyからのOAuthコールバックを処理する。
// GET /callback?code=<code>&state=<handle>
//
// ブラウザで開かれるためプレーンテキストで結果を返す。
// ライブラリ取り込みはバックグラウンドで続くので、レスポンスは完了を待たない。
func (h *LinkHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	if state == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMissingStateError())
		return
	}
	if code == "" {
		h.logger.Warn("コールバックにcodeがありません", slog.String("state", state))
		http.Error(w, "Spotify connection was cancelled. Please try again from the WhatsApp link.", http.StatusBadRequest)
		return
	}

	if err := h.linker.HandleCallback(r.Context(), code, state); err != nil {
		h.logger.Error("OAuthコールバックの処理に失敗しました",
			slog.String("error", err.Error()),
		)
		http.Error(w, "Spotify account connection failed. Please try again from the WhatsApp link.", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Spotify account connected successfully! Your favorite songs and playlists are being saved."))
}
