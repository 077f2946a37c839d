package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// mockLinkerService はLinkerServiceInterfaceのモック。
type mockLinkerService struct {
	loginURLFn       func(handle string) string
	handleCallbackFn func(ctx context.Context, code, rawHandle string) error
}

func (m *mockLinkerService) LoginURL(handle string) string {
	if m.loginURLFn != nil {
		return m.loginURLFn(handle)
	}
	return "https://accounts.spotify.com/authorize?state=" + handle
}

func (m *mockLinkerService) HandleCallback(ctx context.Context, code, rawHandle string) error {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code, rawHandle)
	}
	return nil
}

func TestLogin_RedirectsToAuthorizeURL(t *testing.T) {
	var buf bytes.Buffer
	linker := &mockLinkerService{
		loginURLFn: func(handle string) string {
			if handle != "+15551234567" {
				t.Errorf("handle = %q, want +15551234567", handle)
			}
			return "https://accounts.spotify.com/authorize?state=" + handle
		},
	}
	h := NewLinkHandler(linker, newTestLogger(&buf))

	req := httptest.NewRequest(http.MethodGet, "/login?state=%2B15551234567", nil)
	w := httptest.NewRecorder()
	h.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusFound)
	}
	location := resp.Header.Get("Location")
	if !strings.HasPrefix(location, "https://accounts.spotify.com/authorize") {
		t.Errorf("Location = %q", location)
	}
}

func TestLogin_MissingState_Returns400(t *testing.T) {
	var buf bytes.Buffer
	h := NewLinkHandler(&mockLinkerService{}, newTestLogger(&buf))

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	w := httptest.NewRecorder()
	h.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	var errResp struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("エラーレスポンスの解析に失敗: %v", err)
	}
	if errResp.Code != "MISSING_STATE" {
		t.Errorf("code = %q, want MISSING_STATE", errResp.Code)
	}
}

func TestCallback_Success_ReturnsPlainText(t *testing.T) {
	var buf bytes.Buffer
	var gotCode, gotState string
	linker := &mockLinkerService{
		handleCallbackFn: func(ctx context.Context, code, rawHandle string) error {
			gotCode = code
			gotState = rawHandle
			return nil
		},
	}
	h := NewLinkHandler(linker, newTestLogger(&buf))

	req := httptest.NewRequest(http.MethodGet, "/callback?code=auth-code&state=%2B15551234567", nil)
	w := httptest.NewRecorder()
	h.Callback(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if gotCode != "auth-code" || gotState != "+15551234567" {
		t.Errorf("サービスに渡った引数が不正: code=%q state=%q", gotCode, gotState)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "connected successfully") {
		t.Errorf("成功メッセージが不正: %s", body)
	}
}

func TestCallback_MissingState_Returns400(t *testing.T) {
	var buf bytes.Buffer
	h := NewLinkHandler(&mockLinkerService{}, newTestLogger(&buf))

	req := httptest.NewRequest(http.MethodGet, "/callback?code=auth-code", nil)
	w := httptest.NewRecorder()
	h.Callback(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestCallback_MissingCode_Returns400(t *testing.T) {
	var buf bytes.Buffer
	callbackCalled := false
	linker := &mockLinkerService{
		handleCallbackFn: func(ctx context.Context, code, rawHandle string) error {
			callbackCalled = true
			return nil
		},
	}
	h := NewLinkHandler(linker, newTestLogger(&buf))

	req := httptest.NewRequest(http.MethodGet, "/callback?state=%2B15551234567", nil)
	w := httptest.NewRecorder()
	h.Callback(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
	if callbackCalled {
		t.Error("code欠落時にサービスが呼ばれた")
	}
}

func TestCallback_ServiceError_Returns502(t *testing.T) {
	var buf bytes.Buffer
	linker := &mockLinkerService{
		handleCallbackFn: func(ctx context.Context, code, rawHandle string) error {
			return fmt.Errorf("トークン交換に失敗しました")
		},
	}
	h := NewLinkHandler(linker, newTestLogger(&buf))

	req := httptest.NewRequest(http.MethodGet, "/callback?code=bad-code&state=%2B15551234567", nil)
	w := httptest.NewRecorder()
	h.Callback(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadGateway)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "connection failed") {
		t.Errorf("失敗メッセージが不正: %s", body)
	}
	if !strings.Contains(buf.String(), "ERROR") {
		t.Error("エラーログが出力されていない")
	}
}
