// Package importer は連携済み来店者のSpotifyライブラリ取り込みを提供する。
// 保存楽曲のページ巡回とジャンル・テンポの付加、プレイリストの差分登録を行う。
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/ravist/internal/metrics"
	"github.com/hitoshi/ravist/internal/model"
	"github.com/hitoshi/ravist/internal/notifier"
	"github.com/hitoshi/ravist/internal/repository"
	"github.com/hitoshi/ravist/internal/spotify"
)

// Service はライブラリ取り込みのビジネスロジックを提供する。
type Service struct {
	spotify      spotify.API
	songRepo     repository.LikedSongRepository
	playlistRepo repository.PlaylistRepository
	broadcaster  notifier.Broadcaster
	metrics      metrics.MetricsCollector
	logger       *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	spotifyAPI spotify.API,
	songRepo repository.LikedSongRepository,
	playlistRepo repository.PlaylistRepository,
	broadcaster notifier.Broadcaster,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	return &Service{
		spotify:      spotifyAPI,
		songRepo:     songRepo,
		playlistRepo: playlistRepo,
		broadcaster:  broadcaster,
		metrics:      collector,
		logger:       logger,
	}
}

// ImportLibrary は保存楽曲とプレイリストの2系統の取り込みを実行する。
// 2系統は独立しており、片方が失敗してももう片方は実行される。
// 途中失敗時はそこまでの取り込み結果が残る（ロールバックや再実行キューはない）。
func (s *Service) ImportLibrary(ctx context.Context, patronID, token string) error {
	var failures []string

	if err := s.importSavedTracks(ctx, patronID, token); err != nil {
		failures = append(failures, "saved_tracks")
		s.metrics.RecordImportFailure("saved_tracks")
		s.logger.Error("保存楽曲の取り込みに失敗しました",
			slog.String("patron_id", patronID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.importPlaylists(ctx, patronID, token); err != nil {
		failures = append(failures, "playlists")
		s.metrics.RecordImportFailure("playlists")
		s.logger.Error("プレイリストの取り込みに失敗しました",
			slog.String("patron_id", patronID),
			slog.String("error", err.Error()),
		)
	}

	if len(failures) > 0 {
		return fmt.Errorf("ライブラリ取り込みに失敗しました: %s", strings.Join(failures, ", "))
	}

	s.metrics.RecordImportSuccess()
	return nil
}

// importSavedTracks は保存楽曲をページ巡回で取り込む。
// 各楽曲はジャンルとテンポを付加してアップサートし、成功のたびに
// ダッシュボードへイベントを配信する（バッチ化しない）。
func (s *Service) importSavedTracks(ctx context.Context, patronID, token string) error {
	pageURL := ""
	imported := 0

	for {
		page, err := s.spotify.SavedTracksPage(ctx, token, pageURL)
		if err != nil {
			return fmt.Errorf("保存楽曲ページの取得に失敗しました: %w", err)
		}

		for _, item := range page.Items {
			song := s.buildSong(ctx, patronID, token, item.Track)

			if err := s.songRepo.Upsert(ctx, song); err != nil {
				// 1曲の永続化失敗でページ全体を止めない
				s.logger.Warn("楽曲のアップサートに失敗しました",
					slog.String("patron_id", patronID),
					slog.String("track_id", song.TrackID),
					slog.String("error", err.Error()),
				)
				continue
			}

			imported++
			s.metrics.RecordTracksUpserted(1)
			s.broadcaster.Broadcast(notifier.EventLikedSongsUpdated)
			s.metrics.RecordBroadcast(notifier.EventLikedSongsUpdated)
		}

		if page.Next == nil {
			break
		}
		pageURL = *page.Next
	}

	s.logger.Info("保存楽曲の取り込みが完了しました",
		slog.String("patron_id", patronID),
		slog.Int("imported", imported),
	)
	return nil
}

// buildSong は楽曲レスポンスからジャンル・テンポ付きの保存用レコードを構築する。
// ジャンル参照やテンポ参照の失敗は致命的ではなく、フォールバック値で続行する。
func (s *Service) buildSong(ctx context.Context, patronID, token string, track spotify.Track) *model.LikedSong {
	names := make([]string, 0, len(track.Artists))
	for _, a := range track.Artists {
		names = append(names, a.Name)
	}

	return &model.LikedSong{
		PatronID:   patronID,
		TrackID:    track.ID,
		Title:      track.Name,
		Artist:     strings.Join(names, ", "),
		SpotifyURL: track.ExternalURLs.Spotify,
		Genre:      s.lookupGenre(ctx, token, track),
		Tempo:      s.lookupTempo(ctx, token, track.ID),
	}
}

// lookupGenre は先頭アーティストの先頭ジャンルを返す。
// アーティスト不在、ジャンル不在、参照失敗のいずれもGenreUnknownにフォールバックする。
func (s *Service) lookupGenre(ctx context.Context, token string, track spotify.Track) string {
	if len(track.Artists) == 0 {
		return model.GenreUnknown
	}

	artist, err := s.spotify.Artist(ctx, token, track.Artists[0].ID)
	if err != nil {
		s.logger.Warn("アーティストのジャンル参照に失敗しました",
			slog.String("track_id", track.ID),
			slog.String("artist_id", track.Artists[0].ID),
			slog.String("error", err.Error()),
		)
		return model.GenreUnknown
	}

	if len(artist.Genres) == 0 {
		return model.GenreUnknown
	}
	return artist.Genres[0]
}

// lookupTempo はオーディオ特徴量からBPMを返す。参照失敗時はnil（NULL保存）。
func (s *Service) lookupTempo(ctx context.Context, token, trackID string) *float64 {
	features, err := s.spotify.AudioFeatures(ctx, token, trackID)
	if err != nil {
		s.logger.Warn("オーディオ特徴量の参照に失敗しました",
			slog.String("track_id", trackID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	tempo := features.Tempo
	return &tempo
}

// importPlaylists はプレイリストを取り込む。
// (patron, name) で既存確認し、存在しないものだけ登録する。
// リネームされたプレイリストは新しい名前で別レコードとして追加される。
func (s *Service) importPlaylists(ctx context.Context, patronID, token string) error {
	page, err := s.spotify.PlaylistsPage(ctx, token, "")
	if err != nil {
		return fmt.Errorf("プレイリストの取得に失敗しました: %w", err)
	}

	created := 0
	for _, pl := range page.Items {
		exists, err := s.playlistRepo.ExistsByPatronAndName(ctx, patronID, pl.Name)
		if err != nil {
			return fmt.Errorf("プレイリストの存在確認に失敗しました: %w", err)
		}
		if exists {
			continue
		}

		playlist := &model.Playlist{
			PatronID:   patronID,
			Name:       pl.Name,
			SpotifyURL: pl.ExternalURLs.Spotify,
		}
		if err := s.playlistRepo.Create(ctx, playlist); err != nil {
			return fmt.Errorf("プレイリストの登録に失敗しました: %w", err)
		}
		created++
	}

	s.logger.Info("プレイリストの取り込みが完了しました",
		slog.String("patron_id", patronID),
		slog.Int("created", created),
		slog.Int("total", len(page.Items)),
	)
	return nil
}
