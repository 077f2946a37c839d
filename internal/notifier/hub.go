// Package notifier はダッシュボード向けのライブ通知機能を提供する。
// 接続中のWebSocketセッションを管理し、データ変更イベントをファンアウトする。
package notifier

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// EventLikedSongsUpdated は楽曲取り込みで保存楽曲が変化したことを示すイベント。
	EventLikedSongsUpdated = "liked_songs_updated"
	// EventRequestAdded は楽曲リクエストが追加されたことを示すイベント。
	EventRequestAdded = "request_added"

	// writeTimeout は1セッションへの書き込み上限時間。
	// 超過したセッションは切断されたものとして破棄する。
	writeTimeout = 5 * time.Second
)

// Broadcaster はイベント配信のインターフェース。
// linker/importer/intakeはトランスポートではなくこのインターフェースに依存する。
type Broadcaster interface {
	// Broadcast は接続中の全セッションへイベントを配信する。
	// イベント名以外のペイロードは持たない。受信側は再取得で追従する。
	Broadcast(event string)
}

// event はWebSocketへ送信されるイベントメッセージ。
type event struct {
	Event string `json:"event"`
}

// session は接続中のダッシュボードクライアント。
type session struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex // 並行Broadcastからの書き込みを直列化する
}

// writeEvent はセッションへイベントを書き込む。
func (s *session) writeEvent(ev event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return s.conn.WriteJSON(ev)
}

// Hub は接続中のWebSocketセッションの集合を管理する。
// セッションは揮発性で、プロセス再起動後はクライアントが再接続する。
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[*session]struct{}
}

// NewHub はHubの新しいインスタンスを生成する。
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			// ダッシュボードは認証を持たないため、オリジン制限はCORS側の設定に委ねる
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions: make(map[*session]struct{}),
	}
}

// ServeHTTP はHTTPリクエストをWebSocket接続にアップグレードしてHubへ登録する。
// クライアントからの受信メッセージは読み捨て、切断検知のためだけに読み続ける。
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocketへのアップグレードに失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}

	s := &session{
		id:   uuid.New().String(),
		conn: conn,
	}
	h.register(s)
	h.logger.Info("ダッシュボードが接続しました",
		slog.String("session_id", s.id),
		slog.Int("session_count", h.SessionCount()),
	)

	defer func() {
		h.unregister(s)
		conn.Close()
		h.logger.Info("ダッシュボードが切断しました",
			slog.String("session_id", s.id),
			slog.Int("session_count", h.SessionCount()),
		)
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Broadcast は接続中の全セッションへイベントを配信する。
// 書き込みに失敗したセッションはその場で破棄する。
func (h *Hub) Broadcast(eventName string) {
	ev := event{Event: eventName}

	for _, s := range h.snapshot() {
		if err := s.writeEvent(ev); err != nil {
			h.logger.Warn("セッションへの配信に失敗したため切断します",
				slog.String("session_id", s.id),
				slog.String("event", eventName),
				slog.String("error", err.Error()),
			)
			h.unregister(s)
			s.conn.Close()
		}
	}
}

// SessionCount は接続中のセッション数を返す。
func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func (h *Hub) register(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s] = struct{}{}
}

func (h *Hub) unregister(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, s)
}

// snapshot はロック外で配信を行うためのセッション一覧コピーを返す。
func (h *Hub) snapshot() []*session {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessions := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// compile-time interface check
var _ Broadcaster = (*Hub)(nil)
