package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/ravist/internal/model"
)

// mockSongRanker はSongRankerのモック。
type mockSongRanker struct {
	mostLikedFn func(ctx context.Context, page, pageSize int) ([]model.RankedSong, error)
}

func (m *mockSongRanker) MostLiked(ctx context.Context, page, pageSize int) ([]model.RankedSong, error) {
	if m.mostLikedFn != nil {
		return m.mostLikedFn(ctx, page, pageSize)
	}
	return nil, nil
}

// mockRequestLister はRequestListerのモック。
type mockRequestLister struct {
	listAllFn func(ctx context.Context) ([]model.SongRequest, error)
}

func (m *mockRequestLister) ListAll(ctx context.Context) ([]model.SongRequest, error) {
	if m.listAllFn != nil {
		return m.listAllFn(ctx)
	}
	return nil, nil
}

func TestMostLikedSongs_DefaultPage(t *testing.T) {
	tempo := 128.0
	var gotPage, gotPageSize int
	ranker := &mockSongRanker{
		mostLikedFn: func(ctx context.Context, page, pageSize int) ([]model.RankedSong, error) {
			gotPage = page
			gotPageSize = pageSize
			return []model.RankedSong{
				{Title: "One More Time", Artist: "Daft Punk", Genre: "french house", Tempo: &tempo, LikeCount: 12},
				{Title: "Strobe", Artist: "deadmau5", Genre: "progressive house", Tempo: nil, LikeCount: 7},
			}, nil
		},
	}
	h := NewDJHandler(ranker, &mockRequestLister{})

	req := httptest.NewRequest(http.MethodGet, "/dj/most-liked-songs", nil)
	w := httptest.NewRecorder()
	h.MostLikedSongs(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if gotPage != 1 {
		t.Errorf("page = %d, want 1", gotPage)
	}
	if gotPageSize != 40 {
		t.Errorf("pageSize = %d, want 40", gotPageSize)
	}

	var rows []struct {
		Title     string   `json:"title"`
		Artist    string   `json:"artist"`
		Genre     string   `json:"genre"`
		Tempo     *float64 `json:"tempo"`
		LikeCount int      `json:"like_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		t.Fatalf("レスポンスの解析に失敗: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("行数 = %d, want 2", len(rows))
	}
	if rows[0].Title != "One More Time" || rows[0].LikeCount != 12 {
		t.Errorf("先頭行が不正: %+v", rows[0])
	}
	if rows[0].Tempo == nil || *rows[0].Tempo != 128.0 {
		t.Errorf("tempo = %v, want 128.0", rows[0].Tempo)
	}
	// tempo未取得の楽曲はJSONでnull
	if rows[1].Tempo != nil {
		t.Errorf("tempo = %v, want null", rows[1].Tempo)
	}
}

func TestMostLikedSongs_ExplicitPage(t *testing.T) {
	var gotPage int
	ranker := &mockSongRanker{
		mostLikedFn: func(ctx context.Context, page, pageSize int) ([]model.RankedSong, error) {
			gotPage = page
			return nil, nil
		},
	}
	h := NewDJHandler(ranker, &mockRequestLister{})

	req := httptest.NewRequest(http.MethodGet, "/dj/most-liked-songs?page=2", nil)
	w := httptest.NewRecorder()
	h.MostLikedSongs(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if gotPage != 2 {
		t.Errorf("page = %d, want 2", gotPage)
	}
}

func TestMostLikedSongs_InvalidPage_Returns400(t *testing.T) {
	tests := []struct {
		name string
		page string
	}{
		{"NotANumber", "abc"},
		{"Zero", "0"},
		{"Negative", "-1"},
		{"Float", "1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rankerCalled := false
			ranker := &mockSongRanker{
				mostLikedFn: func(ctx context.Context, page, pageSize int) ([]model.RankedSong, error) {
					rankerCalled = true
					return nil, nil
				},
			}
			h := NewDJHandler(ranker, &mockRequestLister{})

			req := httptest.NewRequest(http.MethodGet, "/dj/most-liked-songs?page="+tt.page, nil)
			w := httptest.NewRecorder()
			h.MostLikedSongs(w, req)

			resp := w.Result()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
			}
			if rankerCalled {
				t.Error("無効なページ番号でサービスが呼ばれた")
			}

			var errResp struct {
				Code string `json:"code"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
				t.Fatalf("エラーレスポンスの解析に失敗: %v", err)
			}
			if errResp.Code != "INVALID_PAGE" {
				t.Errorf("code = %q, want INVALID_PAGE", errResp.Code)
			}
		})
	}
}

func TestMostLikedSongs_ServiceError_Returns500(t *testing.T) {
	ranker := &mockSongRanker{
		mostLikedFn: func(ctx context.Context, page, pageSize int) ([]model.RankedSong, error) {
			return nil, fmt.Errorf("db down")
		},
	}
	h := NewDJHandler(ranker, &mockRequestLister{})

	req := httptest.NewRequest(http.MethodGet, "/dj/most-liked-songs", nil)
	w := httptest.NewRecorder()
	h.MostLikedSongs(w, req)

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusInternalServerError)
	}
}

func TestMostLikedSongs_EmptyResult_ReturnsEmptyArray(t *testing.T) {
	h := NewDJHandler(&mockSongRanker{}, &mockRequestLister{})

	req := httptest.NewRequest(http.MethodGet, "/dj/most-liked-songs?page=99", nil)
	w := httptest.NewRecorder()
	h.MostLikedSongs(w, req)

	// 範囲外のページはnullではなく空配列
	if body := w.Body.String(); body != "[]\n" {
		t.Errorf("body = %q, want []", body)
	}
}

func TestSongRequests_ReturnsAllFields(t *testing.T) {
	createdAt := time.Date(2026, 8, 30, 23, 15, 0, 0, time.UTC)
	lister := &mockRequestLister{
		listAllFn: func(ctx context.Context) ([]model.SongRequest, error) {
			return []model.SongRequest{
				{
					Handle:    "+15551234567",
					Body:      "check this https://open.spotify.com/track/abc",
					Title:     "Blinding Lights",
					Artist:    "The Weeknd",
					Link:      "https://open.spotify.com/track/abc",
					CreatedAt: createdAt,
				},
				{
					Handle:    "+15559876543",
					Body:      "Strobe",
					CreatedAt: createdAt.Add(-time.Hour),
				},
			}, nil
		},
	}
	h := NewDJHandler(&mockSongRanker{}, lister)

	req := httptest.NewRequest(http.MethodGet, "/dj/song-requests", nil)
	w := httptest.NewRecorder()
	h.SongRequests(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var rows []struct {
		Handle    string    `json:"handle"`
		Body      string    `json:"body"`
		Title     string    `json:"title"`
		Artist    string    `json:"artist"`
		Link      string    `json:"link"`
		CreatedAt time.Time `json:"created_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		t.Fatalf("レスポンスの解析に失敗: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("行数 = %d, want 2", len(rows))
	}
	if rows[0].Title != "Blinding Lights" || rows[0].Artist != "The Weeknd" {
		t.Errorf("解決済みリクエストの行が不正: %+v", rows[0])
	}
	if !rows[0].CreatedAt.Equal(createdAt) {
		t.Errorf("created_at = %v, want %v", rows[0].CreatedAt, createdAt)
	}
	// テキストリクエストはメタデータが空
	if rows[1].Title != "" || rows[1].Link != "" {
		t.Errorf("テキストリクエストの行が不正: %+v", rows[1])
	}
}

func TestSongRequests_ServiceError_Returns500(t *testing.T) {
	lister := &mockRequestLister{
		listAllFn: func(ctx context.Context) ([]model.SongRequest, error) {
			return nil, fmt.Errorf("db down")
		},
	}
	h := NewDJHandler(&mockSongRanker{}, lister)

	req := httptest.NewRequest(http.MethodGet, "/dj/song-requests", nil)
	w := httptest.NewRecorder()
	h.SongRequests(w, req)

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusInternalServerError)
	}
}
