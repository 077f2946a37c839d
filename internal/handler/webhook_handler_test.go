package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// mockIntakeService はIntakeServiceInterfaceのモック。
type mockIntakeService struct {
	handleMessageFn func(ctx context.Context, rawHandle, body string) (string, error)
}

func (m *mockIntakeService) HandleMessage(ctx context.Context, rawHandle, body string) (string, error) {
	if m.handleMessageFn != nil {
		return m.handleMessageFn(ctx, rawHandle, body)
	}
	return "ok", nil
}

// postWebhookForm はTwilio形式のフォームPOSTを実行する。
func postWebhookForm(t *testing.T, h *WebhookHandler, from, body string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{}
	form.Set("From", from)
	form.Set("Body", body)

	req := httptest.NewRequest(http.MethodPost, "/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.Receive(w, req)
	return w
}

func TestWebhookReceive_ReturnsTwiML(t *testing.T) {
	var buf bytes.Buffer
	var gotHandle, gotBody string
	intake := &mockIntakeService{
		handleMessageFn: func(ctx context.Context, rawHandle, body string) (string, error) {
			gotHandle = rawHandle
			gotBody = body
			return "Got it! Your request is on the DJ's list.", nil
		},
	}
	h := NewWebhookHandler(intake, newTestLogger(&buf))

	w := postWebhookForm(t, h, "whatsapp:+15551234567", "Request Strobe")

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/xml" {
		t.Errorf("Content-Type = %q, want text/xml", ct)
	}

	// フォームフィールドがそのままサービスに渡る
	if gotHandle != "whatsapp:+15551234567" {
		t.Errorf("handle = %q", gotHandle)
	}
	if gotBody != "Request Strobe" {
		t.Errorf("body = %q", gotBody)
	}

	respBody, _ := io.ReadAll(resp.Body)
	bodyStr := string(respBody)
	if !strings.Contains(bodyStr, "<Response><Message>Got it! Your request is on the DJ&#39;s list.</Message></Response>") {
		t.Errorf("TwiMLの形式が不正: %s", bodyStr)
	}
}

func TestWebhookReceive_ServiceError_StillReturns200(t *testing.T) {
	var buf bytes.Buffer
	intake := &mockIntakeService{
		handleMessageFn: func(ctx context.Context, rawHandle, body string) (string, error) {
			return "", fmt.Errorf("db down")
		},
	}
	h := NewWebhookHandler(intake, newTestLogger(&buf))

	w := postWebhookForm(t, h, "whatsapp:+15551234567", "hello")

	resp := w.Result()
	// Twilioのリトライを誘発しないよう常に200で返す
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	respBody, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(respBody), "something went wrong") {
		t.Errorf("エラー時の返信が不正: %s", respBody)
	}
	if !strings.Contains(buf.String(), "ERROR") {
		t.Error("エラーログが出力されていない")
	}
}

func TestWebhookReceive_EscapesXMLCharacters(t *testing.T) {
	var buf bytes.Buffer
	intake := &mockIntakeService{
		handleMessageFn: func(ctx context.Context, rawHandle, body string) (string, error) {
			return `Got it! We added "Mea Culpa" by Enigma <Remix> & more.`, nil
		},
	}
	h := NewWebhookHandler(intake, newTestLogger(&buf))

	w := postWebhookForm(t, h, "whatsapp:+15551234567", "x")

	respBody, _ := io.ReadAll(w.Result().Body)
	bodyStr := string(respBody)
	if strings.Contains(bodyStr, "<Remix>") {
		t.Errorf("XML特殊文字がエスケープされていない: %s", bodyStr)
	}
	if !strings.Contains(bodyStr, "&lt;Remix&gt;") || !strings.Contains(bodyStr, "&amp;") {
		t.Errorf("エスケープ結果が不正: %s", bodyStr)
	}
}

func TestWebhookReceive_EmptyForm_PassesEmptyValues(t *testing.T) {
	var buf bytes.Buffer
	var gotHandle, gotBody string
	intake := &mockIntakeService{
		handleMessageFn: func(ctx context.Context, rawHandle, body string) (string, error) {
			gotHandle = rawHandle
			gotBody = body
			return "reply", nil
		},
	}
	h := NewWebhookHandler(intake, newTestLogger(&buf))

	req := httptest.NewRequest(http.MethodPost, "/whatsapp", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.Receive(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if gotHandle != "" || gotBody != "" {
		t.Errorf("空フォームの値が不正: handle=%q body=%q", gotHandle, gotBody)
	}
}
