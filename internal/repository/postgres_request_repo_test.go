package repository

import (
	"database/sql"
	"testing"

	"github.com/hitoshi/ravist/internal/model"
)

// PostgresRequestRepoはRequestRepositoryインターフェースを満たすことを検証
func TestPostgresRequestRepo_ImplementsInterface(t *testing.T) {
	var _ RequestRepository = (*PostgresRequestRepo)(nil)
}

// NewPostgresRequestRepoが正しく初期化されることを検証
func TestNewPostgresRequestRepo_Initializes(t *testing.T) {
	repo := NewPostgresRequestRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// フリーテキストのリクエストはtitle/artist/linkが空のまま保存されることを検証
func TestPostgresRequestRepo_RequestModel_FreeText(t *testing.T) {
	req := &model.SongRequest{
		ID:     "req-id-1",
		Handle: "+15551234567",
		Body:   "Blinding Lights by The Weeknd",
	}

	if req.Title != "" || req.Artist != "" || req.Link != "" {
		t.Error("free-text request should not carry resolved metadata")
	}
}

// nullStringが空文字列を無効なNullStringに変換することを検証
func TestNullString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  sql.NullString
	}{
		{"空文字列", "", sql.NullString{String: "", Valid: false}},
		{"非空文字列", "Blinding Lights", sql.NullString{String: "Blinding Lights", Valid: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nullString(tt.input)
			if got != tt.want {
				t.Errorf("nullString(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}
