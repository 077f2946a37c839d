// Package linker はSpotifyアカウント連携のビジネスロジックを提供する。
// OAuth認可URLの発行、コールバックでのトークン交換・保存、
// 連携直後のライブラリ取り込み起動を担当する。
package linker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/ravist/internal/model"
	"github.com/hitoshi/ravist/internal/repository"
	"github.com/hitoshi/ravist/internal/spotify"
)

// LibraryImporter は連携完了後のライブラリ取り込みインターフェース。
type LibraryImporter interface {
	ImportLibrary(ctx context.Context, patronID, token string) error
}

// Service はアカウント連携のビジネスロジックを提供する。
type Service struct {
	spotify    spotify.API
	patronRepo repository.PatronRepository
	importer   LibraryImporter
	logger     *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	spotifyAPI spotify.API,
	patronRepo repository.PatronRepository,
	importer LibraryImporter,
	logger *slog.Logger,
) *Service {
	return &Service{
		spotify:    spotifyAPI,
		patronRepo: patronRepo,
		importer:   importer,
		logger:     logger,
	}
}

// LoginURL は来店者のhandleをstateとして埋め込んだ認可URLを返す。
// stateは改変せずそのままコールバックまで往復させる。
func (s *Service) LoginURL(handle string) string {
	return s.spotify.LoginURL(handle)
}

// HandleCallback はOAuthコールバックを処理する。
// コードをトークンに交換し、正規化済みhandleに紐付けて保存した後、
// ライブラリ取り込みをバックグラウンドで起動して即座に戻る。
// トークン交換に失敗した場合、ストアは一切変更されない。
func (s *Service) HandleCallback(ctx context.Context, code, rawHandle string) error {
	token, err := s.spotify.ExchangeCode(ctx, code)
	if err != nil {
		return fmt.Errorf("トークン交換に失敗しました: %w", err)
	}

	handle := model.NormalizeHandle(rawHandle)
	patronID, err := s.patronRepo.UpsertToken(ctx, handle, token)
	if err != nil {
		return fmt.Errorf("トークンの保存に失敗しました: %w", err)
	}

	s.logger.Info("Spotify連携が完了しました",
		slog.String("patron_id", patronID),
		slog.String("handle", handle),
	)

	// 取り込みはリクエストのライフサイクルから切り離して実行する。
	// コールバックレスポンスは取り込み完了を待たない。
	go func() {
		if err := s.importer.ImportLibrary(context.Background(), patronID, token); err != nil {
			s.logger.Error("連携後のライブラリ取り込みに失敗しました",
				slog.String("patron_id", patronID),
				slog.String("error", err.Error()),
			)
		}
	}()

	return nil
}
