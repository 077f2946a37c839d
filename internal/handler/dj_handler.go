package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/ravist/internal/middleware"
	"github.com/hitoshi/ravist/internal/model"
)

// defaultPageSize は集計ページの1ページあたりの件数。
const defaultPageSize = 40

// SongRanker はDJハンドラーが必要とする楽曲集計インターフェース。
type SongRanker interface {
	// MostLiked は全来店者横断の「いいね」集計を出現数降順でページ取得する。
	MostLiked(ctx context.Context, page, pageSize int) ([]model.RankedSong, error)
}

// RequestLister はDJハンドラーが必要とするリクエスト一覧インターフェース。
type RequestLister interface {
	// ListAll は全リクエストを新しい順に返す。
	ListAll(ctx context.Context) ([]model.SongRequest, error)
}

// DJHandler はDJダッシュボード向け照会のHTTPハンドラー。
type DJHandler struct {
	ranker SongRanker
	lister RequestLister
}

// NewDJHandler はDJHandlerを生成する。
func NewDJHandler(ranker SongRanker, lister RequestLister) *DJHandler {
	return &DJHandler{
		ranker: ranker,
		lister: lister,
	}
}

// rankedSongResponse は集計結果1行のAPIレスポンス。
type rankedSongResponse struct {
	Title     string   `json:"title"`
	Artist    string   `json:"artist"`
	Genre     string   `json:"genre"`
	Tempo     *float64 `json:"tempo"`
	LikeCount int      `json:"like_count"`
}

// songRequestResponse はリクエスト1件のAPIレスポンス。
type songRequestResponse struct {
	Handle    string    `json:"handle"`
	Body      string    `json:"body"`
	Title     string    `json:"title"`
	Artist    string    `json:"artist"`
	Link      string    `json:"link"`
	CreatedAt time.Time `json:"created_at"`
}

// MostLikedSongs は「いいね」数の多い楽曲を返す。
// GET /dj/most-liked-songs?page=N
//
// pageは1始まり。未指定は1。整数でない値や1未満は400を返す。
func (h *DJHandler) MostLikedSongs(w http.ResponseWriter, r *http.Request) {
	page := 1
	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		parsed, err := strconv.Atoi(pageStr)
		if err != nil || parsed < 1 {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidPageError(pageStr))
			return
		}
		page = parsed
	}

	songs, err := h.ranker.MostLiked(r.Context(), page, defaultPageSize)
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	resp := make([]rankedSongResponse, 0, len(songs))
	for _, s := range songs {
		resp = append(resp, rankedSongResponse{
			Title:     s.Title,
			Artist:    s.Artist,
			Genre:     s.Genre,
			Tempo:     s.Tempo,
			LikeCount: s.LikeCount,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// SongRequests は全リクエストを新しい順に返す。ページネーションなし。
// GET /dj/song-requests
func (h *DJHandler) SongRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.lister.ListAll(r.Context())
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	resp := make([]songRequestResponse, 0, len(requests))
	for _, req := range requests {
		resp = append(resp, songRequestResponse{
			Handle:    req.Handle,
			Body:      req.Body,
			Title:     req.Title,
			Artist:    req.Artist,
			Link:      req.Link,
			CreatedAt: req.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
