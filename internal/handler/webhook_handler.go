package handler

import (
	"context"
	"encoding/xml"
	"log/slog"
	"net/http"
)

// IntakeServiceInterface はwebhookハンドラーが必要とするサービスインターフェース。
type IntakeServiceInterface interface {
	// HandleMessage は受信メッセージを処理して返信文を返す。
	HandleMessage(ctx context.Context, rawHandle, body string) (string, error)
}

// WebhookHandler はWhatsApp受信webhookのHTTPハンドラー。
type WebhookHandler struct {
	intake IntakeServiceInterface
	logger *slog.Logger
}

// NewWebhookHandler はWebhookHandlerを生成する。
func NewWebhookHandler(intake IntakeServiceInterface, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		intake: intake,
		logger: logger,
	}
}

// twimlResponse はTwilioへの返信XML。<Response><Message>...</Message></Response>
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

// Receive はWhatsApp受信メッセージを処理する。
// POST /whatsapp
//
// TwilioはフォームフィールドFrom（送信元handle）とBody（本文）を送ってくる。
// レスポンスは常にステータス200のTwiML XMLで、Messageが来店者への返信になる。
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.logger.Warn("webhookフォームの解析に失敗しました",
			slog.String("error", err.Error()),
		)
		writeTwiML(w, "Sorry, we couldn't read your message. Please try again.")
		return
	}

	from := r.PostFormValue("From")
	body := r.PostFormValue("Body")

	reply, err := h.intake.HandleMessage(r.Context(), from, body)
	if err != nil {
		// 永続化失敗など。Twilioへのリトライを誘発しないよう200で返す
		h.logger.Error("受信メッセージの処理に失敗しました",
			slog.String("from", from),
			slog.String("error", err.Error()),
		)
		writeTwiML(w, "Sorry, something went wrong on our side. Please try again in a moment.")
		return
	}

	writeTwiML(w, reply)
}

// writeTwiML はTwiML XMLレスポンスを書き込む。
func writeTwiML(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(xml.Header))
	xml.NewEncoder(w).Encode(twimlResponse{Message: message})
}
